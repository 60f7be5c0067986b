package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clinio/crm-api/config"
	"github.com/clinio/crm-api/models"
	"github.com/clinio/crm-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDeliverer records delivery attempts and serves a canned deliverable list
type fakeDeliverer struct {
	mu          sync.Mutex
	delivered   []uint
	deliverable []*models.MessageSchedule
}

func (f *fakeDeliverer) DeliverMessage(ctx context.Context, message *models.MessageSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, message.ID)
	// Mimic the real flow: a delivered message stops being deliverable
	remaining := f.deliverable[:0]
	for _, m := range f.deliverable {
		if m.ID != message.ID {
			remaining = append(remaining, m)
		}
	}
	f.deliverable = remaining
	return nil
}

func (f *fakeDeliverer) ListDeliverable(ctx context.Context, now time.Time, limit int) ([]*models.MessageSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.deliverable) > limit {
		return append([]*models.MessageSchedule(nil), f.deliverable[:limit]...), nil
	}
	return append([]*models.MessageSchedule(nil), f.deliverable...), nil
}

func (f *fakeDeliverer) deliveredIDs() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.delivered...)
}

func testSchedule(id uint, scheduledAt time.Time) *models.MessageSchedule {
	return &models.MessageSchedule{
		ID:          id,
		CustomerID:  1,
		Content:     "Reminder",
		ScheduledAt: scheduledAt,
		Channel:     models.ChannelSMS,
		Sent:        utils.ToPtr(false),
	}
}

func TestRegisterFiresTimer(t *testing.T) {
	deliverer := &fakeDeliverer{}
	s := NewMessageScheduler(deliverer, config.SchedulerConfig{SweepInterval: time.Hour})

	s.Register(testSchedule(1, time.Now().UTC().Add(20*time.Millisecond)))

	require.Eventually(t, func() bool {
		return len(deliverer.deliveredIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint(1), deliverer.deliveredIDs()[0])
}

func TestRegisterPastDueFiresImmediately(t *testing.T) {
	deliverer := &fakeDeliverer{}
	s := NewMessageScheduler(deliverer, config.SchedulerConfig{SweepInterval: time.Hour})

	s.Register(testSchedule(7, time.Now().UTC().Add(-time.Hour)))

	require.Eventually(t, func() bool {
		return len(deliverer.deliveredIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegisterReplacesExistingTimer(t *testing.T) {
	deliverer := &fakeDeliverer{}
	s := NewMessageScheduler(deliverer, config.SchedulerConfig{SweepInterval: time.Hour})

	// The first timer is far in the future; re-registering supersedes it
	s.Register(testSchedule(3, time.Now().UTC().Add(time.Hour)))
	s.Register(testSchedule(3, time.Now().UTC().Add(20*time.Millisecond)))

	require.Eventually(t, func() bool {
		return len(deliverer.deliveredIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// No second firing from the replaced timer
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, deliverer.deliveredIDs(), 1)
}

func TestStartupSweepDeliversPending(t *testing.T) {
	// Messages persisted before a restart have no timers; the startup sweep picks them up
	deliverer := &fakeDeliverer{
		deliverable: []*models.MessageSchedule{
			testSchedule(10, time.Now().UTC().Add(-time.Hour)),
			testSchedule(11, time.Now().UTC().Add(-time.Minute)),
		},
	}
	s := NewMessageScheduler(deliverer, config.SchedulerConfig{SweepInterval: time.Hour})

	stop := s.Start(context.Background())
	defer stop()

	require.Eventually(t, func() bool {
		return len(deliverer.deliveredIDs()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []uint{10, 11}, deliverer.deliveredIDs())
}

func TestPeriodicSweep(t *testing.T) {
	deliverer := &fakeDeliverer{}
	s := NewMessageScheduler(deliverer, config.SchedulerConfig{SweepInterval: 30 * time.Millisecond})

	stop := s.Start(context.Background())
	defer stop()

	// Becomes deliverable only after the startup sweep has already run
	time.Sleep(10 * time.Millisecond)
	deliverer.mu.Lock()
	deliverer.deliverable = append(deliverer.deliverable, testSchedule(20, time.Now().UTC().Add(-time.Minute)))
	deliverer.mu.Unlock()

	require.Eventually(t, func() bool {
		return len(deliverer.deliveredIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopCancelsTimers(t *testing.T) {
	deliverer := &fakeDeliverer{}
	s := NewMessageScheduler(deliverer, config.SchedulerConfig{SweepInterval: time.Hour})

	stop := s.Start(context.Background())
	s.Register(testSchedule(30, time.Now().UTC().Add(50*time.Millisecond)))
	stop()

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, deliverer.deliveredIDs())
}

func TestSweepBatchLimit(t *testing.T) {
	deliverer := &fakeDeliverer{
		deliverable: []*models.MessageSchedule{
			testSchedule(40, time.Now().UTC().Add(-time.Hour)),
			testSchedule(41, time.Now().UTC().Add(-time.Hour)),
			testSchedule(42, time.Now().UTC().Add(-time.Hour)),
		},
	}
	s := NewMessageScheduler(deliverer, config.SchedulerConfig{SweepInterval: 30 * time.Millisecond, SweepBatch: 2})

	stop := s.Start(context.Background())
	defer stop()

	// Successive sweeps drain the backlog despite the per-sweep limit
	require.Eventually(t, func() bool {
		return len(deliverer.deliveredIDs()) == 3
	}, 2*time.Second, 10*time.Millisecond)
}
