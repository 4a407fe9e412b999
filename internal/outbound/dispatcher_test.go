package outbound

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/callwindow/internal/observability/metrics"
	"github.com/wolfman30/callwindow/pkg/logging"
)

type recordingDialer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *recordingDialer) Dial(_ context.Context, call DeferredCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call.ID)
	return d.err
}

func (d *recordingDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func newTestDispatcher(store DeferralStore, dialer Dialer, now time.Time) *Dispatcher {
	return NewDispatcher(store, newTestGate(now), dialer, logging.Default()).
		WithClock(fixedClock(now)).
		WithMetrics(metrics.NewCallWindowMetrics(prometheus.NewRegistry()))
}

func TestDispatcherDialsOpenCalls(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeferralStore()
	require.NoError(t, store.Add(ctx, deferred("due", tuesdayMorningUTC.Add(-time.Hour))))
	require.NoError(t, store.Add(ctx, deferred("later", tuesdayMorningUTC.Add(time.Hour))))
	dialer := &recordingDialer{}

	handled := newTestDispatcher(store, dialer, tuesdayMorningUTC).drain(ctx)

	assert.Equal(t, 1, handled)
	assert.Equal(t, []string{"due"}, dialer.dialed())
	_, err := store.Get(ctx, "due")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "later")
	assert.NoError(t, err)
}

func TestDispatcherReschedulesClosedCalls(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeferralStore()
	// Due by the stored instant but the callee's window is closed at 23:00.
	require.NoError(t, store.Add(ctx, deferred("stale", mondayNightUTC.Add(-time.Minute))))
	dialer := &recordingDialer{}

	newTestDispatcher(store, dialer, mondayNightUTC).drain(ctx)

	assert.Empty(t, dialer.dialed())
	got, err := store.Get(ctx, "stale")
	require.NoError(t, err)
	assert.True(t, got.NextOpen.Equal(time.Date(2024, time.March, 12, 13, 0, 0, 0, time.UTC)), "got %s", got.NextOpen)
	assert.Zero(t, got.Attempts)
}

func TestDispatcherRetriesFailedDial(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeferralStore()
	require.NoError(t, store.Add(ctx, deferred("flaky", tuesdayMorningUTC)))
	dialer := &recordingDialer{err: errors.New("carrier busy")}

	newTestDispatcher(store, dialer, tuesdayMorningUTC).WithRetryDelay(10 * time.Minute).drain(ctx)

	got, err := store.Get(ctx, "flaky")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "carrier busy", got.LastError)
	assert.True(t, got.NextOpen.Equal(tuesdayMorningUTC.Add(10*time.Minute)))
}

func TestDispatcherDropsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeferralStore()
	call := deferred("doomed", tuesdayMorningUTC)
	call.Attempts = 2
	require.NoError(t, store.Add(ctx, call))
	dialer := &recordingDialer{err: errors.New("no answer")}

	newTestDispatcher(store, dialer, tuesdayMorningUTC).WithMaxAttempts(3).drain(ctx)

	assert.Equal(t, []string{"doomed"}, dialer.dialed())
	assert.Zero(t, store.Len())
}

func TestDispatcherUnknownTimezoneDialsImmediately(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeferralStore()
	call := deferred("nozone", mondayNightUTC)
	call.Timezone = ""
	require.NoError(t, store.Add(ctx, call))
	dialer := &recordingDialer{}

	newTestDispatcher(store, dialer, mondayNightUTC).drain(ctx)

	assert.Equal(t, []string{"nozone"}, dialer.dialed())
}

func TestDispatcherBatchSize(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeferralStore()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Add(ctx, deferred(id, tuesdayMorningUTC.Add(-time.Hour))))
	}
	dialer := &recordingDialer{}

	d := newTestDispatcher(store, dialer, tuesdayMorningUTC).WithBatchSize(2)
	assert.Equal(t, 2, d.drain(ctx))
	assert.Equal(t, []string{"a", "b"}, dialer.dialed())
	assert.Equal(t, 1, d.drain(ctx))
	assert.Zero(t, store.Len())
}

func TestDispatcherWithRedisStore(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)
	require.NoError(t, store.Add(ctx, deferred("r1", tuesdayMorningUTC.Add(-time.Minute))))
	dialer := &recordingDialer{}

	newTestDispatcher(store, dialer, tuesdayMorningUTC).drain(ctx)

	assert.Equal(t, []string{"r1"}, dialer.dialed())
	_, err := store.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDispatcherMissingDependencies(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)
	assert.Zero(t, d.drain(context.Background()))
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewMemoryDeferralStore()
	require.NoError(t, store.Add(ctx, deferred("loop", tuesdayMorningUTC.Add(-time.Hour))))
	dialer := &recordingDialer{}
	d := newTestDispatcher(store, dialer, tuesdayMorningUTC).WithInterval(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(dialer.dialed()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}
