// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"
	"time"

	"github.com/clinio/crm-api/models"
	testingutil "github.com/clinio/crm-api/testing"
	"github.com/clinio/crm-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSex(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.True(t, models.SexMale.Valid())
		assert.True(t, models.SexFemale.Valid())
		assert.True(t, models.SexOther.Valid())
		assert.False(t, models.Sex("X").Valid())
		assert.False(t, models.Sex("").Valid())
	})

	t.Run("ScanAndValue", func(t *testing.T) {
		var s models.Sex
		require.NoError(t, s.Scan("F"))
		assert.Equal(t, models.SexFemale, s)

		require.NoError(t, s.Scan([]byte("M")))
		assert.Equal(t, models.SexMale, s)

		v, err := models.SexOther.Value()
		require.NoError(t, err)
		assert.Equal(t, "O", v)

		_, err = models.Sex("Z").Value()
		assert.Error(t, err)
	})
}

func TestMessageChannel(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.True(t, models.ChannelSMS.Valid())
		assert.True(t, models.ChannelWhatsApp.Valid())
		assert.False(t, models.MessageChannel("Email").Valid())
	})

	t.Run("ScanAndValue", func(t *testing.T) {
		var c models.MessageChannel
		require.NoError(t, c.Scan("WhatsApp"))
		assert.Equal(t, models.ChannelWhatsApp, c)

		v, err := models.ChannelSMS.Value()
		require.NoError(t, err)
		assert.Equal(t, "SMS", v)

		_, err = models.MessageChannel("Carrier Pigeon").Value()
		assert.Error(t, err)
	})
}

func TestMessageScheduleDueState(t *testing.T) {
	now := time.Now().UTC()

	t.Run("DueWhenPastAndUntouched", func(t *testing.T) {
		m := &models.MessageSchedule{
			ScheduledAt:          now.Add(-time.Hour),
			Sent:                 utils.ToPtr(false),
			ReminderAcknowledged: utils.ToPtr(false),
		}
		assert.True(t, m.IsDue(now))
		assert.True(t, m.IsDeliverable(now))
	})

	t.Run("NotDueBeforeScheduledTime", func(t *testing.T) {
		m := &models.MessageSchedule{
			ScheduledAt:          now.Add(time.Hour),
			Sent:                 utils.ToPtr(false),
			ReminderAcknowledged: utils.ToPtr(false),
		}
		assert.False(t, m.IsDue(now))
		assert.False(t, m.IsDeliverable(now))
	})

	t.Run("SentNeverDue", func(t *testing.T) {
		m := &models.MessageSchedule{
			ScheduledAt:          now.Add(-time.Hour),
			Sent:                 utils.ToPtr(true),
			ReminderAcknowledged: utils.ToPtr(false),
		}
		assert.False(t, m.IsDue(now))
		assert.False(t, m.IsDeliverable(now))
	})

	t.Run("AcknowledgedStillDeliverable", func(t *testing.T) {
		m := &models.MessageSchedule{
			ScheduledAt:          now.Add(-time.Hour),
			Sent:                 utils.ToPtr(false),
			ReminderAcknowledged: utils.ToPtr(true),
		}
		assert.False(t, m.IsDue(now))
		assert.True(t, m.IsDeliverable(now))
	})

	t.Run("DueAtExactScheduledTime", func(t *testing.T) {
		m := &models.MessageSchedule{
			ScheduledAt:          now,
			Sent:                 utils.ToPtr(false),
			ReminderAcknowledged: utils.ToPtr(false),
		}
		assert.True(t, m.IsDue(now))
	})
}

func TestCustomerModel(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("CreateCustomer", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)
			assert.NotZero(t, customer.ID)
			assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", customer.UUID.String())
			assert.Equal(t, "Jane Doe", customer.Name)
			assert.Equal(t, models.SexFemale, customer.Sex)
		})

		t.Run("TableName", func(t *testing.T) {
			assert.Equal(t, "customers", models.Customer{}.TableName())
		})

		t.Run("UniqueEmail", func(t *testing.T) {
			customer1, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			customer2 := &models.Customer{
				Name:        "John Doe",
				Email:       customer1.Email, // Same email
				PhoneNumber: "5559999999",
				Address:     "456 Other Street",
				Problem:     "Neck pain",
				Age:         40,
				Sex:         models.SexMale,
			}

			err = testDB.DB.Create(customer2).Error
			assert.Error(t, err) // Should fail due to unique constraint on email
		})

		t.Run("TreatmentAssignment", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomerWithTreatments(
				models.TreatmentPhysiotherapy,
				models.TreatmentHijama,
			)
			require.NoError(t, err)
			assert.Len(t, customer.Treatments, 2)

			var loaded models.Customer
			err = testDB.DB.Preload("Treatments").Last(&loaded, "id = ?", customer.ID).Error
			require.NoError(t, err)
			assert.Len(t, loaded.Treatments, 2)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestModelRelationships(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)

		invoice, err := fixtures.CreateTestInvoice(customer.ID, 150.00)
		require.NoError(t, err)

		message, err := fixtures.CreateTestMessageSchedule(customer.ID, time.Now().UTC().Add(24*time.Hour), models.ChannelSMS)
		require.NoError(t, err)

		t.Run("CustomerHasInvoicesAndMessages", func(t *testing.T) {
			var loaded models.Customer
			err := testDB.DB.Preload("Invoices").Preload("MessageSchedules").Last(&loaded, "id = ?", customer.ID).Error
			require.NoError(t, err)
			require.Len(t, loaded.Invoices, 1)
			assert.Equal(t, invoice.UUID, loaded.Invoices[0].UUID)
			require.Len(t, loaded.MessageSchedules, 1)
			assert.Equal(t, message.UUID, loaded.MessageSchedules[0].UUID)
		})

		t.Run("DeleteCustomerCascades", func(t *testing.T) {
			err := testDB.DB.Select("Treatments").Delete(customer).Error
			require.NoError(t, err)

			var invoiceCount int64
			require.NoError(t, testDB.DB.Model(&models.Invoice{}).Where("customer_id = ?", customer.ID).Count(&invoiceCount).Error)
			assert.Zero(t, invoiceCount)

			var messageCount int64
			require.NoError(t, testDB.DB.Model(&models.MessageSchedule{}).Where("customer_id = ?", customer.ID).Count(&messageCount).Error)
			assert.Zero(t, messageCount)
		})

		return nil
	})
	require.NoError(t, err)
}
