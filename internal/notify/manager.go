package notify

import (
	"context"
	"sync"
	"time"

	"github.com/systmms/rolecreds/internal/logging"
	"github.com/systmms/rolecreds/internal/metrics"
)

const (
	// DefaultQueueSize is the maximum number of events that can be queued.
	DefaultQueueSize = 100

	drainTimeout = 5 * time.Second
)

// Manager fans events out to notifiers from a single background worker.
// Send never blocks the caller, so it is safe from a rotation worker.
type Manager struct {
	logger  *logging.Logger
	metrics *metrics.RotationMetrics

	queue chan Event
	wg    sync.WaitGroup
	done  chan struct{}

	mu        sync.RWMutex
	notifiers []Notifier
	running   bool
	dropped   int64
}

// NewManager creates a manager with the given queue size. If queueSize is
// 0, DefaultQueueSize is used.
func NewManager(queueSize int, logger *logging.Logger, m *metrics.RotationMetrics) *Manager {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = logging.New(false, false)
	}
	return &Manager{
		logger:  logger.Named("notify"),
		metrics: m,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
}

// Register adds a notifier.
func (m *Manager) Register(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// Notifiers returns a copy of the registered notifiers.
func (m *Manager) Notifiers() []Notifier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Notifier, len(m.notifiers))
	copy(out, m.notifiers)
	return out
}

// Start launches the delivery worker. ctx bounds deliveries, not the worker.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true

	m.wg.Add(1)
	go m.worker(ctx)
}

// Stop delivers queued events and waits for the worker to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()
}

// Send queues event. Events sent while the manager is not running, or
// while the queue is full, are dropped.
func (m *Manager) Send(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}

	select {
	case m.queue <- event:
	default:
		m.dropped++
		m.metrics.RecordNotificationDropped()
		m.logger.Warn("Notification queue full, dropped %s event", event.Type)
	}
}

// Dropped returns the number of events lost to a full queue.
func (m *Manager) Dropped() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dropped
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			m.drain()
			return
		case event := <-m.queue:
			m.dispatch(ctx, event)
		}
	}
}

func (m *Manager) drain() {
	for {
		select {
		case event := <-m.queue:
			ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			m.dispatch(ctx, event)
			cancel()
		default:
			return
		}
	}
}

func (m *Manager) dispatch(ctx context.Context, event Event) {
	for _, n := range m.Notifiers() {
		if !n.SupportsEvent(event.Type) {
			continue
		}
		if err := n.Send(ctx, event); err != nil {
			m.metrics.RecordNotification(n.Name(), metrics.ResultFailure)
			m.logger.Warn("Failed to deliver %s event to %s: %v", event.Type, n.Name(), err)
			continue
		}
		m.metrics.RecordNotification(n.Name(), metrics.ResultSuccess)
		m.logger.Debug("Delivered %s event to %s", event.Type, n.Name())
	}
}
