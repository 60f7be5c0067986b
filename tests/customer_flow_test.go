// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/clinio/crm-api/app/dto"
	"github.com/clinio/crm-api/app/services"
	businessflow "github.com/clinio/crm-api/business_flow"
	"github.com/clinio/crm-api/models"
	"github.com/clinio/crm-api/repository"
	testingutil "github.com/clinio/crm-api/testing"
	"github.com/clinio/crm-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestCustomerFlow(testDB *testingutil.TestDB) (businessflow.CustomerFlow, *businessflow.MessageFlowImpl) {
	messageFlow, _ := newTestMessageFlow(testDB, services.NewMockSMSProvider())
	flow := businessflow.NewCustomerFlow(
		testDB.DB,
		repository.NewCustomerRepository(testDB.DB),
		repository.NewTreatmentRepository(testDB.DB),
		repository.NewInvoiceRepository(testDB.DB),
		repository.NewMessageScheduleRepository(testDB.DB),
		messageFlow,
	)
	return flow, messageFlow
}

func validCreateRequest(email string) *dto.CreateCustomerRequest {
	return &dto.CreateCustomerRequest{
		Name:        "Alex Mercer",
		Email:       email,
		PhoneNumber: "5557654321",
		Address:     "9 Elm Road",
		Problem:     "Sciatica",
		Age:         45,
		Sex:         "M",
		Treatments:  []string{models.TreatmentPhysiotherapy, models.TreatmentOsteopathy},
	}
}

func TestCreateCustomer(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		flow, _ := newTestCustomerFlow(testDB)

		t.Run("Success", func(t *testing.T) {
			resp, err := flow.CreateCustomer(ctx, validCreateRequest("alex.mercer@example.com"), testMetadata())
			require.NoError(t, err)
			assert.NotEmpty(t, resp.Customer.UUID)
			assert.Equal(t, "Alex Mercer", resp.Customer.Name)
			assert.ElementsMatch(t, []string{models.TreatmentPhysiotherapy, models.TreatmentOsteopathy}, resp.Customer.Treatments)
			assert.Nil(t, resp.MessageUUID)
		})

		t.Run("DuplicateEmail", func(t *testing.T) {
			_, err := flow.CreateCustomer(ctx, validCreateRequest("dup@example.com"), testMetadata())
			require.NoError(t, err)

			_, err = flow.CreateCustomer(ctx, validCreateRequest("dup@example.com"), testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsEmailAlreadyExists(err))
		})

		t.Run("InvalidPhone", func(t *testing.T) {
			req := validCreateRequest("shortphone@example.com")
			req.PhoneNumber = "12345"
			_, err := flow.CreateCustomer(ctx, req, testMetadata())
			require.Error(t, err)
		})

		t.Run("UnknownTreatment", func(t *testing.T) {
			req := validCreateRequest("unknown.treatment@example.com")
			req.Treatments = []string{"Crystal Healing"}
			_, err := flow.CreateCustomer(ctx, req, testMetadata())
			require.Error(t, err)
		})

		t.Run("WithScheduledMessage", func(t *testing.T) {
			req := validCreateRequest("with.message@example.com")
			req.ScheduleMessage = &dto.ScheduleMessageRequest{
				Content:       "How is the knee?",
				DaysFromToday: 3,
				Channel:       "WhatsApp",
			}

			resp, err := flow.CreateCustomer(ctx, req, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, resp.MessageUUID)

			var message models.MessageSchedule
			require.NoError(t, testDB.DB.Last(&message, "uuid = ?", *resp.MessageUUID).Error)
			assert.Equal(t, "How is the knee?", message.Content)
			assert.Equal(t, models.ChannelWhatsApp, message.Channel)
			assert.WithinDuration(t, utils.UTCNow().AddDate(0, 0, 3), message.ScheduledAt, time.Minute)
		})

		t.Run("InvalidScheduleRejectsNothingElse", func(t *testing.T) {
			// The customer is created even though the inline schedule is invalid;
			// the scheduling error is returned for the operator to retry
			req := validCreateRequest("bad.schedule@example.com")
			req.ScheduleMessage = &dto.ScheduleMessageRequest{
				Content:       "Today",
				DaysFromToday: 0,
				Channel:       "SMS",
			}

			_, err := flow.CreateCustomer(ctx, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsScheduleTimeNotFuture(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestListCustomers(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, _ := newTestCustomerFlow(testDB)

		customers, err := fixtures.CreateMultipleTestCustomers(5)
		require.NoError(t, err)

		t.Run("DefaultPaging", func(t *testing.T) {
			resp, err := flow.ListCustomers(ctx, &dto.ListCustomersRequest{}, testMetadata())
			require.NoError(t, err)
			assert.Len(t, resp.Customers, 5)
			assert.Equal(t, int64(5), resp.Total)
			assert.Empty(t, resp.DueMessages)
		})

		t.Run("PageSize", func(t *testing.T) {
			resp, err := flow.ListCustomers(ctx, &dto.ListCustomersRequest{Page: 1, PageSize: 2}, testMetadata())
			require.NoError(t, err)
			assert.Len(t, resp.Customers, 2)
			assert.Equal(t, int64(5), resp.Total)

			resp, err = flow.ListCustomers(ctx, &dto.ListCustomersRequest{Page: 3, PageSize: 2}, testMetadata())
			require.NoError(t, err)
			assert.Len(t, resp.Customers, 1)
		})

		t.Run("PageSizeTooLarge", func(t *testing.T) {
			_, err := flow.ListCustomers(ctx, &dto.ListCustomersRequest{PageSize: 500}, testMetadata())
			require.Error(t, err)
		})

		t.Run("DueReminderBlock", func(t *testing.T) {
			message, err := fixtures.CreateTestMessageSchedule(customers[0].ID, utils.UTCNow().Add(-time.Hour), models.ChannelSMS)
			require.NoError(t, err)

			resp, err := flow.ListCustomers(ctx, &dto.ListCustomersRequest{}, testMetadata())
			require.NoError(t, err)
			require.Len(t, resp.DueMessages, 1)
			assert.Equal(t, message.UUID.String(), resp.DueMessages[0].UUID)
			assert.Equal(t, customers[0].Name, resp.DueMessages[0].CustomerName)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGetUpdateDeleteCustomer(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, _ := newTestCustomerFlow(testDB)

		customer, err := fixtures.CreateTestCustomerWithTreatments(models.TreatmentChiropractic)
		require.NoError(t, err)
		_, err = fixtures.CreateTestInvoice(customer.ID, 120.00)
		require.NoError(t, err)
		_, err = fixtures.CreateTestMessageSchedule(customer.ID, utils.UTCNow().Add(time.Hour), models.ChannelSMS)
		require.NoError(t, err)
		_, err = fixtures.CreateSentMessageSchedule(customer.ID, utils.UTCNow().Add(-time.Hour))
		require.NoError(t, err)

		t.Run("GetWithRelations", func(t *testing.T) {
			detail, err := flow.GetCustomer(ctx, customer.UUID.String(), testMetadata())
			require.NoError(t, err)
			assert.Equal(t, customer.Email, detail.Email)
			assert.Len(t, detail.Invoices, 1)
			// Only the pending message is surfaced, not the delivered one
			require.Len(t, detail.UnsentMessages, 1)
			assert.False(t, detail.UnsentMessages[0].Sent)
		})

		t.Run("GetNotFound", func(t *testing.T) {
			_, err := flow.GetCustomer(ctx, "46b2f8e4-9a6e-4f1c-b8d0-5d4f6a7b8c9d", testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCustomerNotFound(err))
		})

		t.Run("PartialUpdate", func(t *testing.T) {
			item, err := flow.UpdateCustomer(ctx, customer.UUID.String(), &dto.UpdateCustomerRequest{
				Age:        utils.ToPtr(36),
				Treatments: []string{models.TreatmentHijama},
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, 36, item.Age)
			assert.Equal(t, []string{models.TreatmentHijama}, item.Treatments)
			// Untouched fields survive
			assert.Equal(t, customer.Email, item.Email)
		})

		t.Run("UpdateToTakenEmail", func(t *testing.T) {
			other, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			_, err = flow.UpdateCustomer(ctx, customer.UUID.String(), &dto.UpdateCustomerRequest{
				Email: utils.ToPtr(other.Email),
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsEmailAlreadyExists(err))
		})

		t.Run("Delete", func(t *testing.T) {
			require.NoError(t, flow.DeleteCustomer(ctx, customer.UUID.String(), testMetadata()))

			_, err := flow.GetCustomer(ctx, customer.UUID.String(), testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCustomerNotFound(err))

			var messageCount int64
			require.NoError(t, testDB.DB.Model(&models.MessageSchedule{}).Where("customer_id = ?", customer.ID).Count(&messageCount).Error)
			assert.Zero(t, messageCount)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestExportCustomers(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		flow, _ := newTestCustomerFlow(testDB)

		for i := 0; i < 3; i++ {
			req := validCreateRequest(fmt.Sprintf("export%d@example.com", i))
			_, err := flow.CreateCustomer(ctx, req, testMetadata())
			require.NoError(t, err)
		}

		data, err := flow.ExportCustomers(ctx, testMetadata())
		require.NoError(t, err)
		require.NotEmpty(t, data)

		wb, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer wb.Close()

		rows, err := wb.GetRows(wb.GetSheetName(0))
		require.NoError(t, err)
		require.Len(t, rows, 4) // header + 3 customers
		assert.Equal(t, "Name", rows[0][0])
		assert.Equal(t, "Alex Mercer", rows[1][0])

		return nil
	})
	require.NoError(t, err)
}
