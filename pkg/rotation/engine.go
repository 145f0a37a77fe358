package rotation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/internal/logging"
	"github.com/systmms/rolecreds/internal/metrics"
	"github.com/systmms/rolecreds/pkg/credentials"
)

const (
	// DefaultLeadTime is how long before expiration a rotation happens.
	DefaultLeadTime = 300 * time.Second

	// DefaultMinInterval bounds how soon after a retrieval the next one may
	// run, for snapshots whose expiration is already inside the lead time.
	DefaultMinInterval = time.Second

	// DefaultFetchTimeout bounds a single background retrieval.
	DefaultFetchTimeout = 30 * time.Second
)

// ErrStopped is returned by Start when the engine was stopped while the
// bootstrap retrieval was in flight.
var ErrStopped = errors.New("rotation engine stopped")

// Config configures an Engine.
type Config struct {
	// Label names the engine in logs and metrics.
	Label string

	// Retriever fetches snapshots. Required. The engine owns it and closes
	// it when rotation ends.
	Retriever credentials.Retriever

	// Clock supplies timers. Defaults to the real clock.
	Clock clock.Clock

	// LeadTime is subtracted from a snapshot's expiration to get the next
	// rotation deadline. Defaults to DefaultLeadTime.
	LeadTime time.Duration

	// MinInterval defaults to DefaultMinInterval.
	MinInterval time.Duration

	// FetchTimeout bounds background retrievals. Defaults to
	// DefaultFetchTimeout. Stop does not cancel a retrieval in flight.
	FetchTimeout time.Duration

	Logger  *logging.Logger
	Metrics *metrics.RotationMetrics

	// OnRotate, if set, is called from the worker after each successful
	// background rotation. It may call Stop.
	OnRotate func(credentials.Snapshot)

	// OnFailure, if set, is called from the worker when a background
	// rotation fails and the engine freezes.
	OnFailure func(error)
}

// Validate returns an error if config cannot drive an Engine.
func (c Config) Validate() error {
	if c.Retriever == nil {
		return dserrors.ConfigError{Key: "retriever", Message: "a retriever is required"}
	}
	if c.LeadTime < 0 {
		return dserrors.ConfigError{Key: "lead_time", Value: c.LeadTime, Message: "must not be negative"}
	}
	if c.MinInterval < 0 {
		return dserrors.ConfigError{Key: "min_interval", Value: c.MinInterval, Message: "must not be negative"}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Label == "" {
		c.Label = "default"
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	if c.LeadTime == 0 {
		c.LeadTime = DefaultLeadTime
	}
	if c.MinInterval == 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.Logger == nil {
		c.Logger = logging.New(false, false)
	}
	return c
}

// Engine rotates a credentials snapshot before it expires.
type Engine struct {
	config Config
	logger *logging.Logger

	// snapshot is only written with mu held; readers load it lock-free.
	snapshot atomic.Pointer[credentials.Snapshot]

	mu       sync.Mutex
	status   Status
	starting bool
	stopping chan struct{}
	done     chan struct{}
}

var _ credentials.Provider = (*Engine)(nil)

// New returns an Initialized engine.
func New(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	e := &Engine{
		config:   config,
		logger:   config.Logger.Named(config.Label),
		status:   StatusInitialized,
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
	e.snapshot.Store(&credentials.Snapshot{Source: config.Label})
	config.Metrics.RecordStatus(config.Label, int(StatusInitialized))
	return e, nil
}

// Label returns the engine's label.
func (e *Engine) Label() string {
	return e.config.Label
}

// Credentials returns a copy of the current snapshot. Before Start it is
// the zero snapshot.
func (e *Engine) Credentials() credentials.Snapshot {
	return *e.snapshot.Load()
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Start performs the bootstrap retrieval and starts background rotation.
// It is a no-op unless the engine is Initialized. A bootstrap failure is
// returned as a RetrievalError and leaves the engine Initialized; the caller
// should Stop it to release the retriever.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.status != StatusInitialized || e.starting {
		e.mu.Unlock()
		return nil
	}
	e.starting = true
	e.mu.Unlock()

	snapshot, err := e.retrieve(ctx)

	e.mu.Lock()
	e.starting = false
	if e.status != StatusInitialized {
		e.mu.Unlock()
		e.closeRetriever()
		return ErrStopped
	}
	if err != nil {
		e.mu.Unlock()
		e.logger.Error("Bootstrap retrieval failed: %v", err)
		return &dserrors.RetrievalError{Source: e.config.Label, Op: "bootstrap", Err: err}
	}
	e.runLocked(snapshot)
	e.mu.Unlock()

	e.logger.Info("Credentials bootstrapped: %s", snapshot)
	return nil
}

// StartWith starts background rotation from a snapshot retrieved elsewhere.
// It is a no-op unless the engine is Initialized.
func (e *Engine) StartWith(snapshot credentials.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusInitialized || e.starting {
		return
	}
	e.runLocked(snapshot)
}

func (e *Engine) runLocked(snapshot credentials.Snapshot) {
	e.storeLocked(snapshot)
	e.setStatusLocked(StatusRunning)
	go e.loop(snapshot)
}

// Stop ends rotation. It never blocks and may be called from any
// goroutine, including from OnRotate.
func (e *Engine) Stop() {
	e.mu.Lock()
	switch e.status {
	case StatusInitialized:
		e.setStatusLocked(StatusStopped)
		close(e.done)
		owned := !e.starting
		e.mu.Unlock()
		// A bootstrap in flight still uses the retriever; Start closes it.
		if owned {
			e.closeRetriever()
		}
		return
	case StatusRunning:
		e.setStatusLocked(StatusShuttingDown)
		close(e.stopping)
	}
	e.mu.Unlock()
}

// Wait blocks until the engine is Stopped.
func (e *Engine) Wait() {
	<-e.done
}

// Done is closed once the engine is Stopped.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Close stops the engine and waits for the worker to exit.
func (e *Engine) Close() error {
	e.Stop()
	e.Wait()
	return nil
}

// loop is the engine's worker. At most one timer is armed at a time and
// only this goroutine arms it.
func (e *Engine) loop(current credentials.Snapshot) {
	defer e.finish()

	frozen := false
	for {
		select {
		case <-e.stopping:
			return
		default:
		}

		var (
			timer clock.Timer
			fire  <-chan time.Time
		)
		if deadline, ok := current.RotationDeadline(e.config.LeadTime); ok && !frozen {
			delay := deadline.Sub(e.config.Clock.Now())
			if delay < e.config.MinInterval {
				delay = e.config.MinInterval
			}
			timer = e.config.Clock.NewTimer(delay)
			fire = timer.C()
			e.logger.Debug("Next rotation in %s", delay)
		}

		select {
		case <-e.stopping:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-fire:
		}

		if !e.running() {
			return
		}

		next, err := e.retrieve(context.Background())
		if !e.running() {
			e.logger.Debug("Stopped during rotation, discarding result")
			return
		}
		if err != nil {
			e.logger.Error("%v", &dserrors.RotationError{Label: e.config.Label, Err: err})
			frozen = true
			if e.config.OnFailure != nil {
				e.config.OnFailure(err)
			}
			continue
		}

		if !e.storeIfRunning(next) {
			return
		}
		current = next
		e.logger.Info("Credentials rotated: %s", next)
		if e.config.OnRotate != nil {
			e.config.OnRotate(next)
		}
	}
}

// finish runs when the worker exits.
func (e *Engine) finish() {
	e.closeRetriever()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.setStatusLocked(StatusStopped)
	e.logger.Debug("Rotation stopped")
	close(e.done)
}

func (e *Engine) running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status == StatusRunning
}

func (e *Engine) retrieve(ctx context.Context) (credentials.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
	defer cancel()

	started := e.config.Clock.Now()
	snapshot, err := e.config.Retriever.Retrieve(ctx)
	elapsed := e.config.Clock.Since(started)
	if err != nil {
		e.config.Metrics.RecordRetrieval(e.config.Label, metrics.ResultFailure, elapsed)
		return credentials.Snapshot{}, err
	}
	e.config.Metrics.RecordRetrieval(e.config.Label, metrics.ResultSuccess, elapsed)
	if snapshot.Source == "" {
		snapshot.Source = e.config.Label
	}
	return snapshot, nil
}

// storeIfRunning swaps in snapshot unless Stop has been called.
func (e *Engine) storeIfRunning(snapshot credentials.Snapshot) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusRunning {
		return false
	}
	e.storeLocked(snapshot)
	return true
}

func (e *Engine) storeLocked(snapshot credentials.Snapshot) {
	e.snapshot.Store(&snapshot)
	e.config.Metrics.RecordExpiry(e.config.Label, snapshot.Expiration)
}

func (e *Engine) setStatusLocked(status Status) {
	e.status = status
	e.config.Metrics.RecordStatus(e.config.Label, int(status))
}

func (e *Engine) closeRetriever() {
	if err := e.config.Retriever.Close(); err != nil {
		e.logger.Warn("Failed to release retriever: %v", err)
	}
}
