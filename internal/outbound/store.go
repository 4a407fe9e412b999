package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/callwindow/internal/callwindow"
)

// ErrNotFound is returned when a deferred call does not exist.
var ErrNotFound = errors.New("outbound: deferred call not found")

// DeferredCall is a call held until its callee's window opens.
type DeferredCall struct {
	ID        string            `json:"id"`
	Phone     string            `json:"phone"`
	Timezone  string            `json:"timezone"`
	Window    callwindow.Window `json:"window"`
	NextOpen  time.Time         `json:"next_open"`
	CreatedAt time.Time         `json:"created_at"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"last_error,omitempty"`
}

// DeferralStore persists deferred calls ordered by NextOpen.
// Add replaces an existing call with the same ID.
type DeferralStore interface {
	Add(ctx context.Context, call DeferredCall) error
	Due(ctx context.Context, now time.Time, limit int) ([]DeferredCall, error)
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (DeferredCall, error)
}

const defaultKeyPrefix = "callwindow:deferred"

// RedisDeferralStore keeps call payloads in a hash and the schedule in a
// sorted set scored by NextOpen in unix milliseconds.
type RedisDeferralStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisDeferralStore(client *redis.Client) *RedisDeferralStore {
	return &RedisDeferralStore{redis: client, prefix: defaultKeyPrefix}
}

// WithPrefix namespaces the store's keys.
func (s *RedisDeferralStore) WithPrefix(prefix string) *RedisDeferralStore {
	if prefix != "" {
		s.prefix = prefix
	}
	return s
}

func (s *RedisDeferralStore) callsKey() string    { return s.prefix + ":calls" }
func (s *RedisDeferralStore) scheduleKey() string { return s.prefix + ":schedule" }

func (s *RedisDeferralStore) Add(ctx context.Context, call DeferredCall) error {
	if call.ID == "" {
		return fmt.Errorf("outbound: deferred call id required")
	}
	data, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("outbound: marshal deferred call: %w", err)
	}
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, s.callsKey(), call.ID, data)
	pipe.ZAdd(ctx, s.scheduleKey(), redis.Z{Score: float64(call.NextOpen.UnixMilli()), Member: call.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("outbound: save deferred call: %w", err)
	}
	return nil
}

func (s *RedisDeferralStore) Due(ctx context.Context, now time.Time, limit int) ([]DeferredCall, error) {
	rng := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	if limit > 0 {
		rng.Count = int64(limit)
	}
	ids, err := s.redis.ZRangeByScore(ctx, s.scheduleKey(), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("outbound: list due calls: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := s.redis.HMGet(ctx, s.callsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("outbound: load due calls: %w", err)
	}

	calls := make([]DeferredCall, 0, len(ids))
	var orphans []interface{}
	for i, v := range raw {
		str, ok := v.(string)
		if !ok {
			orphans = append(orphans, ids[i])
			continue
		}
		var call DeferredCall
		if err := json.Unmarshal([]byte(str), &call); err != nil {
			return nil, fmt.Errorf("outbound: decode deferred call %s: %w", ids[i], err)
		}
		calls = append(calls, call)
	}
	if len(orphans) > 0 {
		if err := s.redis.ZRem(ctx, s.scheduleKey(), orphans...).Err(); err != nil {
			return nil, fmt.Errorf("outbound: prune schedule: %w", err)
		}
	}
	return calls, nil
}

func (s *RedisDeferralStore) Remove(ctx context.Context, id string) error {
	pipe := s.redis.TxPipeline()
	pipe.HDel(ctx, s.callsKey(), id)
	pipe.ZRem(ctx, s.scheduleKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("outbound: remove deferred call: %w", err)
	}
	return nil
}

func (s *RedisDeferralStore) Get(ctx context.Context, id string) (DeferredCall, error) {
	data, err := s.redis.HGet(ctx, s.callsKey(), id).Bytes()
	if err == redis.Nil {
		return DeferredCall{}, ErrNotFound
	}
	if err != nil {
		return DeferredCall{}, fmt.Errorf("outbound: get deferred call: %w", err)
	}
	var call DeferredCall
	if err := json.Unmarshal(data, &call); err != nil {
		return DeferredCall{}, fmt.Errorf("outbound: decode deferred call: %w", err)
	}
	return call, nil
}

// MemoryDeferralStore is an in-process DeferralStore.
type MemoryDeferralStore struct {
	mu    sync.Mutex
	calls map[string]DeferredCall
}

func NewMemoryDeferralStore() *MemoryDeferralStore {
	return &MemoryDeferralStore{calls: make(map[string]DeferredCall)}
}

func (s *MemoryDeferralStore) Add(_ context.Context, call DeferredCall) error {
	if call.ID == "" {
		return fmt.Errorf("outbound: deferred call id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[call.ID] = call
	return nil
}

func (s *MemoryDeferralStore) Due(_ context.Context, now time.Time, limit int) ([]DeferredCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []DeferredCall
	for _, c := range s.calls {
		if !c.NextOpen.After(now) {
			due = append(due, c)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextOpen.Equal(due[j].NextOpen) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextOpen.Before(due[j].NextOpen)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryDeferralStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.calls, id)
	return nil
}

func (s *MemoryDeferralStore) Get(_ context.Context, id string) (DeferredCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return DeferredCall{}, ErrNotFound
	}
	return c, nil
}

// Len reports the number of stored calls.
func (s *MemoryDeferralStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
