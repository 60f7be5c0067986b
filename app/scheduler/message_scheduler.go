// Package scheduler provides background delivery of scheduled customer messages
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clinio/crm-api/app/middleware"
	"github.com/clinio/crm-api/config"
	"github.com/clinio/crm-api/models"
	"gopkg.in/natefinch/lumberjack.v2"
)

// MessageDeliverer is the minimal surface the scheduler needs from the message flow.
// Keeping it narrow makes the scheduler easy to test with a fake.
type MessageDeliverer interface {
	DeliverMessage(ctx context.Context, message *models.MessageSchedule) error
	ListDeliverable(ctx context.Context, now time.Time, limit int) ([]*models.MessageSchedule, error)
}

// MessageScheduler delivers scheduled messages. Each schedule gets a one-shot
// in-process timer; a periodic reconciliation sweep re-derives lost timers from
// persisted state, so messages survive process restarts. The transactional
// mark-sent in the deliverer keeps the timer/sweep race at-most-once.
type MessageScheduler struct {
	deliverer MessageDeliverer
	cfg       config.SchedulerConfig
	logger    *log.Logger
	logCloser io.Closer

	mu     sync.Mutex
	timers map[uint]*time.Timer
}

func NewMessageScheduler(deliverer MessageDeliverer, cfg config.SchedulerConfig) *MessageScheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}

	s := &MessageScheduler{
		deliverer: deliverer,
		cfg:       cfg,
		timers:    make(map[uint]*time.Timer),
	}
	s.initLogger()
	return s
}

// initLogger configures a logger that writes to both stdout and a rotated persistent file
func (s *MessageScheduler) initLogger() {
	if s.cfg.LogFile == "" {
		s.logger = log.New(os.Stdout, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.LogFile), 0o755); err != nil {
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to create log directory: %v", err)
		return
	}

	lj := &lumberjack.Logger{
		Filename:   s.cfg.LogFile,
		MaxSize:    s.cfg.LogMaxSizeMB,
		MaxBackups: s.cfg.LogMaxBackups,
		MaxAge:     s.cfg.LogMaxAgeDays,
		Compress:   true,
	}
	s.logCloser = lj
	s.logger = log.New(io.MultiWriter(os.Stdout, lj), "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start runs the startup reconciliation sweep, launches the periodic sweep loop,
// and returns a stop function
func (s *MessageScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		s.safeSweep(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.safeSweep(ctx)
			}
		}
	}()

	return func() {
		cancel()
		s.cancelTimers()
		if s.logCloser != nil {
			s.logCloser.Close()
		}
	}
}

// Register arms a one-shot timer for a newly persisted schedule. A delay that is
// already past fires immediately. Fire-and-forget: the caller never blocks on delivery.
func (s *MessageScheduler) Register(message *models.MessageSchedule) {
	delay := time.Until(message.ScheduledAt)
	if delay < 0 {
		delay = 0
	}

	m := message
	timer := time.AfterFunc(delay, func() {
		s.forget(m.ID)
		s.deliver(context.Background(), m)
	})

	s.mu.Lock()
	if old, ok := s.timers[m.ID]; ok {
		old.Stop()
	}
	s.timers[m.ID] = timer
	s.mu.Unlock()

	s.logger.Printf("scheduler: registered timer for message id=%d at %s", m.ID, m.ScheduledAt.Format(time.RFC3339))
}

// safeSweep runs one reconciliation pass, recovering from panics so a bad row
// cannot kill the loop
func (s *MessageScheduler) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("scheduler: sweep panic recovered: %v", r)
		}
	}()
	s.sweep(ctx)
}

// sweep picks up every unsent past-due message and attempts delivery. This is what
// recovers messages whose timers were lost to a restart.
func (s *MessageScheduler) sweep(ctx context.Context) {
	pending, err := s.deliverer.ListDeliverable(ctx, time.Now().UTC(), s.cfg.SweepBatch)
	if err != nil {
		s.logger.Printf("scheduler: sweep query failed: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	s.logger.Printf("scheduler: sweep found %d deliverable messages", len(pending))

	for _, message := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.deliver(ctx, message)
	}
}

func (s *MessageScheduler) deliver(ctx context.Context, message *models.MessageSchedule) {
	if err := s.deliverer.DeliverMessage(ctx, message); err != nil {
		middleware.RecordDelivery(message.Channel.String(), "failed")
		s.logger.Printf("scheduler: delivery failed for message id=%d: %v", message.ID, err)
		return
	}
	middleware.RecordDelivery(message.Channel.String(), "sent")
	s.logger.Printf("scheduler: delivered message id=%d channel=%s", message.ID, message.Channel)
}

func (s *MessageScheduler) forget(id uint) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()
}

func (s *MessageScheduler) cancelTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
