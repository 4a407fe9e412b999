package bootstrap

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appconfig "github.com/wolfman30/callwindow/internal/config"
	"github.com/wolfman30/callwindow/internal/outbound"
	"github.com/wolfman30/callwindow/pkg/logging"
)

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: " "}, nil, true))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Default(), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	_, isRedis := BuildDeferralStore(client).(*outbound.RedisDeferralStore)
	assert.True(t, isRedis)
}

func TestBuildRedisClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logging.Default(), true)
	assert.Nil(t, client)

	_, isMemory := BuildDeferralStore(client).(*outbound.MemoryDeferralStore)
	assert.True(t, isMemory)
}

func TestBuildMetricsExposesCounters(t *testing.T) {
	handler, m := BuildMetrics()
	require.NotNil(t, handler)
	require.NotNil(t, m)

	m.ObserveDecision(false, outbound.ReasonOutsideWindow)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "callwindow_gate_decisions_total"))
	assert.True(t, strings.Contains(rr.Body.String(), "go_goroutines"))
}

func TestBuildEngineRejectsInvalidWindow(t *testing.T) {
	_, err := BuildEngine(&appconfig.Config{CallWindowStartHour: 9, CallWindowEndHour: 25})
	assert.Error(t, err)

	engine, err := BuildEngine(&appconfig.Config{CallWindowStartHour: 9, CallWindowEndHour: 20, CallWindowDays: "1,2,3,4,5"})
	require.NoError(t, err)
	assert.Equal(t, 9, engine.Window.StartHour)
}

func TestDispatcherPipelineDialsThroughLoggingDialer(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)
	cfg := &appconfig.Config{
		CallWindowStartHour:  0,
		CallWindowEndHour:    24,
		CallWindowDays:       "0,1,2,3,4,5,6",
		DeferralPollInterval: time.Minute,
		DeferralBatchSize:    10,
		DeferralMaxAttempts:  3,
	}
	engine, err := BuildEngine(cfg)
	require.NoError(t, err)
	store := BuildDeferralStore(nil)
	_, m := BuildMetrics()
	gate := BuildGate(engine, store, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, store.Add(ctx, outbound.DeferredCall{
		ID:       "ready",
		Timezone: "America/Chicago",
		Window:   engine.Window,
		NextOpen: time.Now().Add(-time.Minute),
	}))

	dispatcher := BuildDispatcher(cfg, store, gate, LoggingDialer(logger), m, logger)
	go dispatcher.Run(ctx)

	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, "ready")
		return err == outbound.ErrNotFound
	}, time.Second, 10*time.Millisecond)
}
