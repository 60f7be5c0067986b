// Package testing provides test utilities and database setup for testing the CRM system
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/clinio/crm-api/models"
	"github.com/clinio/crm-api/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCustomer creates a test customer with a unique email and phone number
func (tf *TestFixtures) CreateTestCustomer() (*models.Customer, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	customer := &models.Customer{
		Name:        "Jane Doe",
		Email:       fmt.Sprintf("jane.doe.%s@example.com", randomDigits),
		PhoneNumber: fmt.Sprintf("5%s", randomDigits),
		Address:     "123 Test Street, Springfield",
		Problem:     "Chronic lower back pain",
		Age:         34,
		Sex:         models.SexFemale,
	}

	if err := tf.DB.DB.Create(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create test customer: %w", err)
	}

	return customer, nil
}

// CreateTestCustomerWithTreatments creates a test customer assigned to the given treatment names
func (tf *TestFixtures) CreateTestCustomerWithTreatments(treatmentNames ...string) (*models.Customer, error) {
	customer, err := tf.CreateTestCustomer()
	if err != nil {
		return nil, err
	}

	var treatments []models.Treatment
	if err := tf.DB.DB.Where("name IN ?", treatmentNames).Find(&treatments).Error; err != nil {
		return nil, fmt.Errorf("failed to find treatments: %w", err)
	}
	if len(treatments) != len(treatmentNames) {
		return nil, fmt.Errorf("expected %d treatments, found %d", len(treatmentNames), len(treatments))
	}

	if err := tf.DB.DB.Model(customer).Association("Treatments").Replace(treatments); err != nil {
		return nil, fmt.Errorf("failed to assign treatments: %w", err)
	}
	customer.Treatments = treatments

	return customer, nil
}

// CreateTestInvoice creates a test invoice for the given customer
func (tf *TestFixtures) CreateTestInvoice(customerID uint, amount float64) (*models.Invoice, error) {
	invoice := &models.Invoice{
		CustomerID:       customerID,
		Amount:           amount,
		ReceiptPath:      fmt.Sprintf("/tmp/receipts/test-%d.pdf", rand.Intn(1000000)),
		ReceiptSize:      1024,
		OriginalFilename: "receipt.jpg",
	}

	if err := tf.DB.DB.Create(invoice).Error; err != nil {
		return nil, fmt.Errorf("failed to create test invoice: %w", err)
	}

	return invoice, nil
}

// CreateTestMessageSchedule creates a message schedule for the given customer
func (tf *TestFixtures) CreateTestMessageSchedule(customerID uint, scheduledAt time.Time, channel models.MessageChannel) (*models.MessageSchedule, error) {
	message := &models.MessageSchedule{
		CustomerID:           customerID,
		Content:              "Reminder: your next session is coming up",
		ScheduledAt:          scheduledAt,
		Channel:              channel,
		Sent:                 utils.ToPtr(false),
		ReminderAcknowledged: utils.ToPtr(false),
	}

	if err := tf.DB.DB.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to create test message schedule: %w", err)
	}

	return message, nil
}

// CreateSentMessageSchedule creates a message schedule that has already been delivered
func (tf *TestFixtures) CreateSentMessageSchedule(customerID uint, scheduledAt time.Time) (*models.MessageSchedule, error) {
	sentAt := time.Now().UTC()
	message := &models.MessageSchedule{
		CustomerID:           customerID,
		Content:              "Reminder: your next session is coming up",
		ScheduledAt:          scheduledAt,
		Channel:              models.ChannelSMS,
		Sent:                 utils.ToPtr(true),
		ReminderAcknowledged: utils.ToPtr(false),
		Attempts:             1,
		SentAt:               &sentAt,
	}

	if err := tf.DB.DB.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to create sent message schedule: %w", err)
	}

	return message, nil
}

// CreateTestOperator creates a back-office operator with the given password
func (tf *TestFixtures) CreateTestOperator(password string) (*models.Operator, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	operator := &models.Operator{
		Email:        fmt.Sprintf("operator.%d@clinio.app", rand.Intn(10000000)),
		FullName:     "Test Operator",
		PasswordHash: string(hashedPassword),
		IsActive:     utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(operator).Error; err != nil {
		return nil, fmt.Errorf("failed to create test operator: %w", err)
	}

	return operator, nil
}

// CreateMultipleTestCustomers creates the requested number of unique test customers
func (tf *TestFixtures) CreateMultipleTestCustomers(count int) ([]*models.Customer, error) {
	var customers []*models.Customer
	for i := 0; i < count; i++ {
		customer, err := tf.CreateTestCustomer()
		if err != nil {
			return nil, fmt.Errorf("failed to create customer %d: %w", i, err)
		}
		customers = append(customers, customer)
	}
	return customers, nil
}
