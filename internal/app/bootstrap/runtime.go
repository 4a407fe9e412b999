package bootstrap

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/callwindow/internal/callwindow"
	appconfig "github.com/wolfman30/callwindow/internal/config"
	"github.com/wolfman30/callwindow/internal/observability/metrics"
	"github.com/wolfman30/callwindow/internal/outbound"
	"github.com/wolfman30/callwindow/internal/timezone"
	"github.com/wolfman30/callwindow/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, deferrals kept in memory", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildDeferralStore returns the Redis-backed store, or an in-memory one when
// Redis is unavailable.
func BuildDeferralStore(redisClient *redis.Client) outbound.DeferralStore {
	if redisClient == nil {
		return outbound.NewMemoryDeferralStore()
	}
	return outbound.NewRedisDeferralStore(redisClient)
}

// BuildMetrics registers the service metrics on a fresh registry and returns
// the /metrics handler serving it alongside Go runtime collectors.
func BuildMetrics() (http.Handler, *metrics.CallWindowMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCallWindowMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// Engine bundles the shared resolution and window components.
type Engine struct {
	Resolver  *timezone.Resolver
	Evaluator *callwindow.Evaluator
	Window    callwindow.Window
}

// BuildEngine validates the configured default window and builds the engine.
func BuildEngine(cfg *appconfig.Config) (*Engine, error) {
	window, err := cfg.DefaultWindow()
	if err != nil {
		return nil, err
	}
	return &Engine{
		Resolver:  timezone.NewResolver(timezone.DefaultTables()),
		Evaluator: callwindow.NewEvaluator(callwindow.LocationProjector{}),
		Window:    window,
	}, nil
}

// BuildGate wires the outbound gate to the engine and deferral store.
func BuildGate(engine *Engine, store outbound.DeferralStore, m *metrics.CallWindowMetrics, logger *logging.Logger) *outbound.Gate {
	return outbound.NewGate(engine.Resolver, engine.Evaluator, engine.Window, logger).
		WithStore(store).
		WithMetrics(m)
}

// BuildDispatcher wires the deferral dispatcher using the configured cadence.
func BuildDispatcher(cfg *appconfig.Config, store outbound.DeferralStore, gate *outbound.Gate, dialer outbound.Dialer, m *metrics.CallWindowMetrics, logger *logging.Logger) *outbound.Dispatcher {
	return outbound.NewDispatcher(store, gate, dialer, logger).
		WithInterval(cfg.DeferralPollInterval).
		WithBatchSize(cfg.DeferralBatchSize).
		WithMaxAttempts(cfg.DeferralMaxAttempts).
		WithMetrics(m)
}

// LoggingDialer is the default Dialer: it records that a deferred call is ready.
// Telephony integrations replace it.
func LoggingDialer(logger *logging.Logger) outbound.Dialer {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("dialer")
	return outbound.DialerFunc(func(_ context.Context, call outbound.DeferredCall) error {
		logger.Info("deferred call ready to dial",
			"call_id", call.ID,
			"timezone", call.Timezone,
			"attempts", call.Attempts,
		)
		return nil
	})
}
