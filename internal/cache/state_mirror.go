package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/synchronizer"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stateKeyPrefix = "state:"

const mirrorWriteTimeout = 2 * time.Second

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// StateMirror copies committed states into Redis so a restarted process or a
// second dashboard instance can serve the last known value before its own
// first tick completes.
type StateMirror struct {
	redis  RedisClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewStateMirror(client RedisClient, ttl time.Duration, logger *zap.Logger) *StateMirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateMirror{redis: client, ttl: ttl, logger: logger}
}

// mirroredState keeps the value as raw JSON; the concrete type is not known
// on the read side.
type mirroredState struct {
	Value       json.RawMessage `json:"value"`
	Origin      domain.Origin   `json:"origin"`
	IsStale     bool            `json:"isStale"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Error       string          `json:"error,omitempty"`
}

// StateChanged implements synchronizer.Listener. Unresolved states are not
// written.
func (m *StateMirror) StateChanged(h *synchronizer.Handle, prev, next domain.ResolvedState) {
	if !next.Resolved() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()
	if err := m.Store(ctx, h.Key(), next); err != nil {
		m.logger.Warn("state mirror write failed", zap.String("key", h.Key().String()), zap.Error(err))
	}
}

func (m *StateMirror) Store(ctx context.Context, key domain.Key, state domain.ResolvedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}
	return m.redis.Set(ctx, stateKeyPrefix+key.String(), data, m.ttl).Err()
}

// Load returns the mirrored state for key. ok is false on a cache miss.
func (m *StateMirror) Load(ctx context.Context, key domain.Key) (domain.ResolvedState, bool, error) {
	raw, err := m.redis.Get(ctx, stateKeyPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ResolvedState{}, false, nil
	}
	if err != nil {
		return domain.ResolvedState{}, false, fmt.Errorf("read state %s: %w", key, err)
	}

	var ms mirroredState
	if err := json.Unmarshal(raw, &ms); err != nil {
		return domain.ResolvedState{}, false, fmt.Errorf("decode state %s: %w", key, err)
	}
	state := domain.ResolvedState{
		Origin:      ms.Origin,
		IsStale:     ms.IsStale,
		LastUpdated: ms.LastUpdated,
		Error:       ms.Error,
	}
	if len(ms.Value) > 0 && string(ms.Value) != "null" {
		state.Value = ms.Value
	}
	return state, true, nil
}
