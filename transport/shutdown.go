package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ShutdownConfig configures how Serve drains the HTTP transport.
type ShutdownConfig struct {
	// Timeout bounds the wait for in-flight messages. Default: 30 seconds.
	Timeout time.Duration

	// DrainDelay is the time to wait before refusing new messages, so load
	// balancers can take the server out of rotation while /health still
	// answers.
	DrainDelay time.Duration

	// OnDrainStart is called once new messages start being refused.
	OnDrainStart func()

	// OnShutdownComplete receives the result of Shutdown.
	OnShutdownComplete func(err error)
}

// DefaultShutdownConfig waits up to 30 seconds and starts draining at once.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		Timeout: 30 * time.Second,
	}
}

// ShutdownManager counts in-flight messages and refuses new ones once
// draining starts.
type ShutdownManager struct {
	config ShutdownConfig

	draining  atomic.Bool
	inFlight  atomic.Int64
	idle      chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewShutdownManager creates a new shutdown manager.
func NewShutdownManager(config ShutdownConfig) *ShutdownManager {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &ShutdownManager{
		config: config,
		idle:   make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}
}

// IsDraining returns true if new messages are being refused.
func (sm *ShutdownManager) IsDraining() bool {
	return sm.draining.Load()
}

// InFlightRequests returns the number of messages being handled.
func (sm *ShutdownManager) InFlightRequests() int64 {
	return sm.inFlight.Load()
}

// TrackRequest registers a new in-flight message. It returns false once
// draining has started; the caller must then refuse the message.
func (sm *ShutdownManager) TrackRequest() bool {
	sm.inFlight.Add(1)
	if sm.draining.Load() {
		sm.release()
		return false
	}
	return true
}

// CompleteRequest marks a tracked message as done.
func (sm *ShutdownManager) CompleteRequest() {
	sm.release()
}

// release drops the in-flight count and wakes a draining Shutdown when
// the last message finishes.
func (sm *ShutdownManager) release() {
	if sm.inFlight.Add(-1) == 0 && sm.draining.Load() {
		select {
		case sm.idle <- struct{}{}:
		default:
		}
	}
}

// Shutdown waits DrainDelay, starts refusing new messages and then waits
// for in-flight ones. It returns the context error if messages were still
// in flight when Timeout or ctx expired.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	if sm.config.DrainDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sm.config.DrainDelay):
		}
	}

	sm.draining.Store(true)
	if sm.config.OnDrainStart != nil {
		sm.config.OnDrainStart()
	}

	waitCtx, cancel := context.WithTimeout(ctx, sm.config.Timeout)
	defer cancel()

	err := sm.waitIdle(waitCtx)

	sm.closeOnce.Do(func() {
		close(sm.doneCh)
	})
	if sm.config.OnShutdownComplete != nil {
		sm.config.OnShutdownComplete(err)
	}
	return err
}

func (sm *ShutdownManager) waitIdle(ctx context.Context) error {
	for sm.inFlight.Load() > 0 {
		select {
		case <-ctx.Done():
			if sm.inFlight.Load() > 0 {
				return ctx.Err()
			}
			return nil
		case <-sm.idle:
		}
	}
	return nil
}

// Done returns a channel that is closed when shutdown is complete.
func (sm *ShutdownManager) Done() <-chan struct{} {
	return sm.doneCh
}

// WithShutdownTimeout sets how long Serve waits for in-flight messages.
func WithShutdownTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.shutdownTimeout = d
	}
}

// WithShutdownDrainDelay sets the delay before Serve starts refusing
// new messages.
func WithShutdownDrainDelay(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.drainDelay = d
	}
}
