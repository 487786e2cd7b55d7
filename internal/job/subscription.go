package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bot-dashboard/internal/domain"

	"github.com/google/uuid"
)

// Lifecycle is the state of a subscription's timer. Cancelled is terminal.
type Lifecycle int

const (
	Idle Lifecycle = iota
	Running
	Cancelled
)

func (l Lifecycle) String() string {
	switch l {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
}

// Subscription is one consumer's interest in one key. It owns at most one
// live timer.
type Subscription struct {
	ID       string
	Key      domain.Key
	Interval time.Duration

	mu     sync.Mutex
	state  Lifecycle
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSubscription(key domain.Key, interval time.Duration) (*Subscription, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("subscription %s: interval must be positive, got %s", key, interval)
	}
	return &Subscription{
		ID:       uuid.NewString(),
		Key:      key,
		Interval: interval,
		done:     make(chan struct{}),
	}, nil
}

// Active reports whether ticks may still be committed.
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != Cancelled
}

func (s *Subscription) Lifecycle() Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel stops the timer. Calling it again, or on a subscription that never
// started, has no further effect.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Cancelled {
		return
	}
	wasRunning := s.state == Running
	s.state = Cancelled
	if s.cancel != nil {
		s.cancel()
	}
	if !wasRunning {
		close(s.done)
	}
}

// Done is closed once the timer loop has exited, or immediately after
// cancelling a subscription that never started.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) begin(parent context.Context) (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.state = Running
	return ctx, true
}
