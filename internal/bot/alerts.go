package bot

import (
	"fmt"
	"sync"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/synchronizer"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Alerter sends one message when a key starts failing and one when it
// recovers.
type Alerter struct {
	sender Sender
	chat   tele.Recipient
	logger *zap.Logger

	mu      sync.Mutex
	failing map[domain.Key]bool
}

func NewAlerter(sender Sender, chat tele.Recipient, logger *zap.Logger) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{
		sender:  sender,
		chat:    chat,
		logger:  logger,
		failing: make(map[domain.Key]bool),
	}
}

// StateChanged implements synchronizer.Listener.
func (a *Alerter) StateChanged(h *synchronizer.Handle, prev, next domain.ResolvedState) {
	a.Observe(h.Key(), next)
}

func (a *Alerter) Observe(key domain.Key, state domain.ResolvedState) {
	a.mu.Lock()
	wasFailing := a.failing[key]
	failing := state.IsStale && state.Error != ""
	switch {
	case failing && !wasFailing:
		a.failing[key] = true
	case !failing && wasFailing:
		delete(a.failing, key)
	default:
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	var msg string
	if failing {
		msg = fmt.Sprintf("⚠️ %s is stale (%s)\n%s", key, originLabel(state.Origin), state.Error)
	} else {
		msg = fmt.Sprintf("✅ %s recovered (%s)", key, originLabel(state.Origin))
	}
	if _, err := a.sender.Send(a.chat, msg); err != nil {
		a.logger.Warn("telegram alert failed", zap.String("key", key.String()), zap.Error(err))
	}
}

func originLabel(o domain.Origin) string {
	if o == domain.OriginNone {
		return "no value"
	}
	return string(o)
}
