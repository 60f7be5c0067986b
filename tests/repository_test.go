// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"
	"time"

	"github.com/clinio/crm-api/models"
	"github.com/clinio/crm-api/repository"
	testingutil "github.com/clinio/crm-api/testing"
	"github.com/clinio/crm-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreatmentRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewTreatmentRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("ByName", func(t *testing.T) {
			treatment, err := repo.ByName(ctx, models.TreatmentPhysiotherapy)
			require.NoError(t, err)
			require.NotNil(t, treatment)
			assert.Equal(t, models.TreatmentPhysiotherapy, treatment.Name)
		})

		t.Run("ByNameNotFound", func(t *testing.T) {
			treatment, err := repo.ByName(ctx, "Acupuncture")
			require.NoError(t, err)
			assert.Nil(t, treatment)
		})

		t.Run("EnsureSeededIsIdempotent", func(t *testing.T) {
			before, err := repo.Count(ctx, models.TreatmentFilter{})
			require.NoError(t, err)

			err = repo.EnsureSeeded(ctx, models.SeededTreatments())
			require.NoError(t, err)

			after, err := repo.Count(ctx, models.TreatmentFilter{})
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})

		t.Run("ByIDs", func(t *testing.T) {
			all, err := repo.ByFilter(ctx, models.TreatmentFilter{}, "", 0, 0)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(all), 2)

			treatments, err := repo.ByIDs(ctx, []uint{all[0].ID, all[1].ID})
			require.NoError(t, err)
			assert.Len(t, treatments, 2)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCustomerRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewCustomerRepository(testDB.DB)
		treatmentRepo := repository.NewTreatmentRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("SaveAndByUUID", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			found, err := repo.ByUUID(ctx, customer.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, customer.Email, found.Email)
		})

		t.Run("ByUUIDNotFound", func(t *testing.T) {
			found, err := repo.ByUUID(ctx, "46b2f8e4-9a6e-4f1c-b8d0-5d4f6a7b8c9d")
			require.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("ByEmail", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			found, err := repo.ByEmail(ctx, customer.Email)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, customer.ID, found.ID)
		})

		t.Run("ByFilterName", func(t *testing.T) {
			customers, err := repo.ByFilter(ctx, models.CustomerFilter{Name: utils.ToPtr("jane")}, "", 0, 0)
			require.NoError(t, err)
			assert.NotEmpty(t, customers)
		})

		t.Run("ReplaceTreatments", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomerWithTreatments(models.TreatmentChiropractic)
			require.NoError(t, err)

			osteopathy, err := treatmentRepo.ByName(ctx, models.TreatmentOsteopathy)
			require.NoError(t, err)
			hijama, err := treatmentRepo.ByName(ctx, models.TreatmentHijama)
			require.NoError(t, err)

			err = repo.ReplaceTreatments(ctx, customer, []*models.Treatment{osteopathy, hijama})
			require.NoError(t, err)

			found, err := repo.ByUUID(ctx, customer.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, found)
			require.Len(t, found.Treatments, 2)

			names := []string{found.Treatments[0].Name, found.Treatments[1].Name}
			assert.Contains(t, names, models.TreatmentOsteopathy)
			assert.Contains(t, names, models.TreatmentHijama)
		})

		t.Run("Update", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			customer.Problem = "Shoulder impingement"
			err = repo.Update(ctx, customer)
			require.NoError(t, err)

			found, err := repo.ByUUID(ctx, customer.UUID.String())
			require.NoError(t, err)
			assert.Equal(t, "Shoulder impingement", found.Problem)
		})

		t.Run("DeleteRemovesDependents", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomerWithTreatments(models.TreatmentCuppingTherapy)
			require.NoError(t, err)

			_, err = fixtures.CreateTestInvoice(customer.ID, 99.50)
			require.NoError(t, err)
			_, err = fixtures.CreateTestMessageSchedule(customer.ID, time.Now().UTC().Add(time.Hour), models.ChannelWhatsApp)
			require.NoError(t, err)

			err = repo.Delete(ctx, customer)
			require.NoError(t, err)

			found, err := repo.ByUUID(ctx, customer.UUID.String())
			require.NoError(t, err)
			assert.Nil(t, found)

			var invoiceCount int64
			require.NoError(t, testDB.DB.Model(&models.Invoice{}).Where("customer_id = ?", customer.ID).Count(&invoiceCount).Error)
			assert.Zero(t, invoiceCount)

			var messageCount int64
			require.NoError(t, testDB.DB.Model(&models.MessageSchedule{}).Where("customer_id = ?", customer.ID).Count(&messageCount).Error)
			assert.Zero(t, messageCount)

			// Catalogue entries survive customer deletion
			treatment, err := treatmentRepo.ByName(ctx, models.TreatmentCuppingTherapy)
			require.NoError(t, err)
			assert.NotNil(t, treatment)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestInvoiceRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewInvoiceRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)

		t.Run("SaveAndByUUID", func(t *testing.T) {
			invoice, err := fixtures.CreateTestInvoice(customer.ID, 200.00)
			require.NoError(t, err)

			found, err := repo.ByUUID(ctx, invoice.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, 200.00, found.Amount)
			require.NotNil(t, found.Customer)
			assert.Equal(t, customer.ID, found.Customer.ID)
		})

		t.Run("ListByCustomer", func(t *testing.T) {
			_, err := fixtures.CreateTestInvoice(customer.ID, 75.00)
			require.NoError(t, err)

			invoices, err := repo.ListByCustomer(ctx, customer.ID)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, len(invoices), 2)
		})

		t.Run("ListByCustomerEmpty", func(t *testing.T) {
			other, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			invoices, err := repo.ListByCustomer(ctx, other.ID)
			require.NoError(t, err)
			assert.Empty(t, invoices)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMessageScheduleRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewMessageScheduleRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := time.Now().UTC()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)

		t.Run("ListDueExcludesSentAndAcknowledged", func(t *testing.T) {
			require.NoError(t, testDB.DB.Exec("DELETE FROM message_schedules").Error)

			due, err := fixtures.CreateTestMessageSchedule(customer.ID, now.Add(-time.Hour), models.ChannelSMS)
			require.NoError(t, err)

			_, err = fixtures.CreateTestMessageSchedule(customer.ID, now.Add(time.Hour), models.ChannelSMS)
			require.NoError(t, err)

			_, err = fixtures.CreateSentMessageSchedule(customer.ID, now.Add(-time.Hour))
			require.NoError(t, err)

			acked, err := fixtures.CreateTestMessageSchedule(customer.ID, now.Add(-time.Hour), models.ChannelWhatsApp)
			require.NoError(t, err)
			require.NoError(t, repo.Acknowledge(ctx, acked.ID))

			messages, err := repo.ListDue(ctx, time.Now().UTC())
			require.NoError(t, err)
			require.Len(t, messages, 1)
			assert.Equal(t, due.UUID, messages[0].UUID)
			require.NotNil(t, messages[0].Customer)
			assert.Equal(t, customer.ID, messages[0].Customer.ID)
		})

		t.Run("ListDeliverableIncludesAcknowledged", func(t *testing.T) {
			require.NoError(t, testDB.DB.Exec("DELETE FROM message_schedules").Error)

			acked, err := fixtures.CreateTestMessageSchedule(customer.ID, now.Add(-time.Hour), models.ChannelSMS)
			require.NoError(t, err)
			require.NoError(t, repo.Acknowledge(ctx, acked.ID))

			_, err = fixtures.CreateSentMessageSchedule(customer.ID, now.Add(-time.Hour))
			require.NoError(t, err)

			messages, err := repo.ListDeliverable(ctx, time.Now().UTC(), 100)
			require.NoError(t, err)
			require.Len(t, messages, 1)
			assert.Equal(t, acked.UUID, messages[0].UUID)
		})

		t.Run("MarkSentClaimsOnlyOnce", func(t *testing.T) {
			message, err := fixtures.CreateTestMessageSchedule(customer.ID, now.Add(-time.Hour), models.ChannelSMS)
			require.NoError(t, err)

			sentAt := time.Now().UTC()
			claimed, err := repo.MarkSent(ctx, message.ID, sentAt)
			require.NoError(t, err)
			assert.True(t, claimed)

			// Second claim on the same message loses
			claimed, err = repo.MarkSent(ctx, message.ID, sentAt)
			require.NoError(t, err)
			assert.False(t, claimed)

			found, err := repo.ByID(ctx, message.ID)
			require.NoError(t, err)
			assert.True(t, utils.IsTrue(found.Sent))
			assert.Equal(t, 1, found.Attempts)
			require.NotNil(t, found.SentAt)
		})

		t.Run("RecordFailure", func(t *testing.T) {
			message, err := fixtures.CreateTestMessageSchedule(customer.ID, now.Add(-time.Hour), models.ChannelWhatsApp)
			require.NoError(t, err)

			err = repo.RecordFailure(ctx, message.ID, "gateway timeout")
			require.NoError(t, err)
			err = repo.RecordFailure(ctx, message.ID, "gateway unreachable")
			require.NoError(t, err)

			found, err := repo.ByID(ctx, message.ID)
			require.NoError(t, err)
			assert.False(t, utils.IsTrue(found.Sent))
			assert.Equal(t, 2, found.Attempts)
			require.NotNil(t, found.LastError)
			assert.Equal(t, "gateway unreachable", *found.LastError)
		})

		t.Run("AcknowledgeIsIdempotent", func(t *testing.T) {
			message, err := fixtures.CreateTestMessageSchedule(customer.ID, now.Add(-time.Hour), models.ChannelSMS)
			require.NoError(t, err)

			require.NoError(t, repo.Acknowledge(ctx, message.ID))
			require.NoError(t, repo.Acknowledge(ctx, message.ID))

			found, err := repo.ByID(ctx, message.ID)
			require.NoError(t, err)
			assert.True(t, utils.IsTrue(found.ReminderAcknowledged))
			assert.False(t, utils.IsTrue(found.Sent))
		})

		t.Run("ListByCustomerUnsentOnly", func(t *testing.T) {
			require.NoError(t, testDB.DB.Exec("DELETE FROM message_schedules").Error)

			unsent, err := fixtures.CreateTestMessageSchedule(customer.ID, now.Add(time.Hour), models.ChannelSMS)
			require.NoError(t, err)
			_, err = fixtures.CreateSentMessageSchedule(customer.ID, now.Add(-time.Hour))
			require.NoError(t, err)

			messages, err := repo.ListByCustomer(ctx, customer.ID, true)
			require.NoError(t, err)
			require.Len(t, messages, 1)
			assert.Equal(t, unsent.UUID, messages[0].UUID)

			all, err := repo.ListByCustomer(ctx, customer.ID, false)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestOperatorRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewOperatorRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("ByEmail", func(t *testing.T) {
			operator, err := fixtures.CreateTestOperator("SecretPass123!")
			require.NoError(t, err)

			found, err := repo.ByEmail(ctx, operator.Email)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, operator.ID, found.ID)
			assert.True(t, utils.IsTrue(found.IsActive))
		})

		t.Run("ByEmailNotFound", func(t *testing.T) {
			found, err := repo.ByEmail(ctx, "nobody@clinio.app")
			require.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("UpdateLastLogin", func(t *testing.T) {
			operator, err := fixtures.CreateTestOperator("SecretPass123!")
			require.NoError(t, err)
			require.Nil(t, operator.LastLoginAt)

			at := time.Now().UTC()
			err = repo.UpdateLastLogin(ctx, operator.ID, at)
			require.NoError(t, err)

			found, err := repo.ByID(ctx, operator.ID)
			require.NoError(t, err)
			require.NotNil(t, found.LastLoginAt)
			assert.WithinDuration(t, at, *found.LastLoginAt, time.Second)
		})

		return nil
	})
	require.NoError(t, err)
}
