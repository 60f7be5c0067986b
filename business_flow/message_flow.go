package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/clinio/crm-api/app/dto"
	"github.com/clinio/crm-api/app/services"
	"github.com/clinio/crm-api/config"
	"github.com/clinio/crm-api/models"
	"github.com/clinio/crm-api/repository"
	"github.com/clinio/crm-api/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// MessageFlow defines operations for scheduling and delivering outbound messages
type MessageFlow interface {
	ScheduleMessage(ctx context.Context, customerUUID string, req *dto.ScheduleMessageRequest, metadata *ClientMetadata) (*dto.ScheduleMessageResponse, error)
	ListDueMessages(ctx context.Context, metadata *ClientMetadata) (*dto.ListDueMessagesResponse, error)
	AcknowledgeReminder(ctx context.Context, messageUUID string, metadata *ClientMetadata) (*dto.AcknowledgeMessageResponse, error)
	DeliverMessage(ctx context.Context, message *models.MessageSchedule) error
	ListDeliverable(ctx context.Context, now time.Time, limit int) ([]*models.MessageSchedule, error)
}

// ScheduleHook is invoked after a message is persisted so the in-process timer
// can be registered for it
type ScheduleHook func(message *models.MessageSchedule)

// MessageFlowImpl implements MessageFlow
type MessageFlowImpl struct {
	db           *gorm.DB
	customerRepo repository.CustomerRepository
	messageRepo  repository.MessageScheduleRepository
	notifier     services.NotificationService
	rc           *redis.Client
	cacheCfg     *config.CacheConfig
	onScheduled  ScheduleHook
}

func NewMessageFlow(
	db *gorm.DB,
	customerRepo repository.CustomerRepository,
	messageRepo repository.MessageScheduleRepository,
	notifier services.NotificationService,
	rc *redis.Client,
	cacheCfg *config.CacheConfig,
) *MessageFlowImpl {
	return &MessageFlowImpl{
		db:           db,
		customerRepo: customerRepo,
		messageRepo:  messageRepo,
		notifier:     notifier,
		rc:           rc,
		cacheCfg:     cacheCfg,
	}
}

const dueMessagesCacheKey = "due_messages"

func (f *MessageFlowImpl) dueCacheKey() string {
	prefix := ""
	if f.cacheCfg != nil {
		prefix = f.cacheCfg.RedisPrefix
	}
	return prefix + dueMessagesCacheKey
}

// invalidateDueCache drops the cached reminder block after any state change
// that can alter it
func (f *MessageFlowImpl) invalidateDueCache(ctx context.Context) {
	if f.rc == nil {
		return
	}
	if err := f.rc.Del(ctx, f.dueCacheKey()).Err(); err != nil {
		log.Printf("failed to invalidate due-message cache: %v", err)
	}
}

// SetScheduleHook wires the in-process timer registration. Set once during startup,
// before the HTTP server begins accepting requests.
func (f *MessageFlowImpl) SetScheduleHook(hook ScheduleHook) {
	f.onScheduled = hook
}

// ScheduleMessage persists a future message for a customer and registers its delivery timer.
// DaysFromToday must be at least 1, so the delivery moment is strictly in the future.
func (f *MessageFlowImpl) ScheduleMessage(ctx context.Context, customerUUID string, req *dto.ScheduleMessageRequest, metadata *ClientMetadata) (*dto.ScheduleMessageResponse, error) {
	customer, err := f.customerRepo.ByUUID(ctx, customerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "failed to look up customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "customer not found", ErrCustomerNotFound)
	}

	message, err := f.scheduleForCustomer(ctx, customer, req)
	if err != nil {
		return nil, err
	}

	return &dto.ScheduleMessageResponse{
		Message:     "Message scheduled successfully",
		UUID:        message.UUID.String(),
		ScheduledAt: message.ScheduledAt.Format(time.RFC3339),
		Channel:     message.Channel.String(),
	}, nil
}

// scheduleForCustomer validates and persists a schedule for an already-loaded customer.
// Shared with the customer creation flow's inline scheduling.
func (f *MessageFlowImpl) scheduleForCustomer(ctx context.Context, customer *models.Customer, req *dto.ScheduleMessageRequest) (*models.MessageSchedule, error) {
	if req.Content == "" {
		return nil, NewBusinessError("MESSAGE_CONTENT_REQUIRED", "message content is required", ErrMessageContentRequired)
	}
	if req.DaysFromToday < utils.MinScheduleDays {
		return nil, NewBusinessErrorf("SCHEDULE_TIME_NOT_FUTURE", "days_from_today must be at least %d", ErrScheduleTimeNotFuture, utils.MinScheduleDays)
	}
	channel := models.MessageChannel(req.Channel)
	if !channel.Valid() {
		return nil, NewBusinessError("INVALID_CHANNEL", "channel must be SMS or WhatsApp", ErrInvalidMessageChannel)
	}

	message := &models.MessageSchedule{
		CustomerID:           customer.ID,
		Content:              req.Content,
		ScheduledAt:          utils.UTCNow().AddDate(0, 0, req.DaysFromToday),
		Channel:              channel,
		Sent:                 utils.ToPtr(false),
		ReminderAcknowledged: utils.ToPtr(false),
	}

	if err := f.messageRepo.Save(ctx, message); err != nil {
		return nil, NewBusinessError("MESSAGE_SAVE_FAILED", "failed to save message schedule", err)
	}

	message.Customer = customer
	f.invalidateDueCache(ctx)
	if f.onScheduled != nil {
		f.onScheduled(message)
	}

	return message, nil
}

// ListDueMessages returns messages past their scheduled time that still need
// operator attention: unsent and not acknowledged
func (f *MessageFlowImpl) ListDueMessages(ctx context.Context, metadata *ClientMetadata) (*dto.ListDueMessagesResponse, error) {
	if f.rc != nil {
		if bs, err := f.rc.Get(ctx, f.dueCacheKey()).Bytes(); err == nil && len(bs) > 0 {
			var cached []dto.MessageItem
			if err := json.Unmarshal(bs, &cached); err == nil {
				return &dto.ListDueMessagesResponse{
					Message:     "Due messages retrieved successfully",
					DueMessages: cached,
				}, nil
			}
		}
	}

	due, err := f.messageRepo.ListDue(ctx, utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("DUE_QUERY_FAILED", "failed to list due messages", err)
	}

	items := make([]dto.MessageItem, 0, len(due))
	for _, m := range due {
		items = append(items, ToMessageItem(m))
	}

	if f.rc != nil && f.cacheCfg != nil && f.cacheCfg.DefaultTTL > 0 {
		if bs, err := json.Marshal(items); err == nil {
			if err := f.rc.Set(ctx, f.dueCacheKey(), bs, f.cacheCfg.DefaultTTL).Err(); err != nil {
				log.Printf("failed to cache due messages: %v", err)
			}
		}
	}

	return &dto.ListDueMessagesResponse{
		Message:     "Due messages retrieved successfully",
		DueMessages: items,
	}, nil
}

// AcknowledgeReminder silences the due reminder for a message. Idempotent; it never
// blocks delivery of the underlying message.
func (f *MessageFlowImpl) AcknowledgeReminder(ctx context.Context, messageUUID string, metadata *ClientMetadata) (*dto.AcknowledgeMessageResponse, error) {
	message, err := f.messageRepo.ByUUID(ctx, messageUUID)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LOOKUP_FAILED", "failed to look up message", err)
	}
	if message == nil {
		return nil, NewBusinessError("MESSAGE_NOT_FOUND", "message not found", ErrMessageNotFound)
	}

	if err := f.messageRepo.Acknowledge(ctx, message.ID); err != nil {
		return nil, NewBusinessError("ACKNOWLEDGE_FAILED", "failed to acknowledge message reminder", err)
	}
	f.invalidateDueCache(ctx)

	return &dto.AcknowledgeMessageResponse{
		Message: "Reminder acknowledged",
		UUID:    message.UUID.String(),
	}, nil
}

// ListDeliverable exposes unsent past-due messages for the reconciliation sweep
func (f *MessageFlowImpl) ListDeliverable(ctx context.Context, now time.Time, limit int) ([]*models.MessageSchedule, error) {
	return f.messageRepo.ListDeliverable(ctx, now, limit)
}

// DeliverMessage attempts delivery of a single message. The sent flag is claimed
// inside the transaction before the provider call, so a concurrent timer and sweep
// cannot both deliver the same row: the loser of the claim sees no rows updated
// and skips. A failed provider call rolls the claim back and records the attempt,
// leaving the message for the next sweep.
func (f *MessageFlowImpl) DeliverMessage(ctx context.Context, message *models.MessageSchedule) error {
	if utils.IsTrue(message.Sent) {
		return nil
	}

	recipient := ""
	if message.Customer != nil {
		recipient = message.Customer.PhoneNumber
	}
	if recipient == "" {
		customer, err := f.customerRepo.ByID(ctx, message.CustomerID)
		if err != nil || customer == nil {
			return NewBusinessError("CUSTOMER_LOOKUP_FAILED", "failed to resolve message recipient", err)
		}
		recipient = customer.PhoneNumber
	}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		claimed, err := f.messageRepo.MarkSent(txCtx, message.ID, utils.UTCNow())
		if err != nil {
			return err
		}
		if !claimed {
			return ErrMessageAlreadySent
		}

		if err := f.notifier.Send(txCtx, message.Channel, recipient, message.Content); err != nil {
			return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}

		return nil
	})
	if err == nil {
		f.invalidateDueCache(ctx)
		return nil
	}
	if IsMessageAlreadySent(err) {
		return nil
	}

	if IsDeliveryFailed(err) {
		if recordErr := f.messageRepo.RecordFailure(ctx, message.ID, err.Error()); recordErr != nil {
			log.Printf("failed to record delivery failure for message %s: %v", message.UUID, recordErr)
		}
		return NewBusinessErrorf("DELIVERY_FAILED", "delivery of message %s failed", err, message.UUID)
	}

	return NewBusinessError("DELIVERY_ERROR", "failed to deliver message", err)
}
