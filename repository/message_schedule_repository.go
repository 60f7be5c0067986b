package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinio/crm-api/models"
	"gorm.io/gorm"
)

// MessageScheduleRepositoryImpl implements MessageScheduleRepository interface
type MessageScheduleRepositoryImpl struct {
	*BaseRepository[models.MessageSchedule, models.MessageScheduleFilter]
}

// NewMessageScheduleRepository creates a new message schedule repository instance
func NewMessageScheduleRepository(db *gorm.DB) MessageScheduleRepository {
	return &MessageScheduleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.MessageSchedule, models.MessageScheduleFilter](db),
	}
}

func (r *MessageScheduleRepositoryImpl) applyFilter(query *gorm.DB, filter models.MessageScheduleFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Channel != nil {
		query = query.Where("channel = ?", *filter.Channel)
	}
	if filter.Sent != nil {
		query = query.Where("sent = ?", *filter.Sent)
	}
	if filter.ReminderAcknowledged != nil {
		query = query.Where("reminder_acknowledged = ?", *filter.ReminderAcknowledged)
	}
	if filter.ScheduledBefore != nil {
		query = query.Where("scheduled_at <= ?", *filter.ScheduledBefore)
	}
	if filter.ScheduledAfter != nil {
		query = query.Where("scheduled_at >= ?", *filter.ScheduledAfter)
	}
	return query
}

// ByFilter retrieves message schedules matching the provided filter
func (r *MessageScheduleRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageScheduleFilter, orderBy string, limit, offset int) ([]*models.MessageSchedule, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.MessageSchedule{})
	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "scheduled_at ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var messages []*models.MessageSchedule
	err := query.Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find message schedules by filter: %w", err)
	}

	return messages, nil
}

// Count returns the number of message schedules matching the provided filter
func (r *MessageScheduleRepositoryImpl) Count(ctx context.Context, filter models.MessageScheduleFilter) (int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.MessageSchedule{})
	query = r.applyFilter(query, filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count message schedules: %w", err)
	}

	return count, nil
}

// ByUUID retrieves a message schedule by UUID with its customer preloaded
func (r *MessageScheduleRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.MessageSchedule, error) {
	db := r.getDB(ctx)

	var message models.MessageSchedule
	err := db.Preload("Customer").Where("uuid = ?", uuid).Last(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find message schedule by UUID: %w", err)
	}

	return &message, nil
}

// ListByCustomer retrieves message schedules for a customer, soonest first
func (r *MessageScheduleRepositoryImpl) ListByCustomer(ctx context.Context, customerID uint, unsentOnly bool) ([]*models.MessageSchedule, error) {
	db := r.getDB(ctx)

	query := db.Where("customer_id = ?", customerID)
	if unsentOnly {
		query = query.Where("sent = ?", false)
	}

	var messages []*models.MessageSchedule
	err := query.Order("scheduled_at ASC").Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list message schedules for customer: %w", err)
	}

	return messages, nil
}

// ListDue retrieves messages past their scheduled time that are unsent and
// whose reminder has not been acknowledged. This feeds the operator reminder surface.
func (r *MessageScheduleRepositoryImpl) ListDue(ctx context.Context, now time.Time) ([]*models.MessageSchedule, error) {
	db := r.getDB(ctx)

	var messages []*models.MessageSchedule
	err := db.Preload("Customer").
		Where("scheduled_at <= ? AND sent = ? AND reminder_acknowledged = ?", now, false, false).
		Order("scheduled_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due messages: %w", err)
	}

	return messages, nil
}

// ListDeliverable retrieves messages past their scheduled time that are unsent,
// regardless of acknowledgment. This feeds the delivery sweep.
func (r *MessageScheduleRepositoryImpl) ListDeliverable(ctx context.Context, now time.Time, limit int) ([]*models.MessageSchedule, error) {
	db := r.getDB(ctx)

	query := db.Preload("Customer").
		Where("scheduled_at <= ? AND sent = ?", now, false).
		Order("scheduled_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []*models.MessageSchedule
	err := query.Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deliverable messages: %w", err)
	}

	return messages, nil
}

// MarkSent flips sent to true if and only if the message is still unsent.
// Returns false when another path already delivered the message, so the
// timer and the reconciliation sweep cannot double-send.
func (r *MessageScheduleRepositoryImpl) MarkSent(ctx context.Context, id uint, sentAt time.Time) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	result := db.Model(&models.MessageSchedule{}).
		Where("id = ? AND sent = ?", id, false).
		Updates(map[string]any{
			"sent":       true,
			"sent_at":    sentAt,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": nil,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		err = fmt.Errorf("failed to mark message as sent: %w", result.Error)
		return false, err
	}

	return result.RowsAffected > 0, nil
}

// RecordFailure increments the attempt counter and stores the failure cause
func (r *MessageScheduleRepositoryImpl) RecordFailure(ctx context.Context, id uint, cause string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.MessageSchedule{}).
		Where("id = ? AND sent = ?", id, false).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to record delivery failure: %w", err)
	}

	return nil
}

// Acknowledge silences the operator reminder for a due message. Idempotent;
// it never touches the sent flag.
func (r *MessageScheduleRepositoryImpl) Acknowledge(ctx context.Context, id uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.MessageSchedule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reminder_acknowledged": true,
			"updated_at":            time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to acknowledge message reminder: %w", err)
	}

	return nil
}
