package outbound

import (
	"context"
	"time"

	"github.com/wolfman30/callwindow/internal/observability/metrics"
	"github.com/wolfman30/callwindow/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var dispatchTracer = otel.Tracer("callwindow/deferral-dispatcher")

// Dispatch outcomes.
const (
	StatusDialed      = "dialed"
	StatusRescheduled = "rescheduled"
	StatusRetry       = "retry"
	StatusDropped     = "dropped"
)

// Dialer places a call whose window is open.
type Dialer interface {
	Dial(ctx context.Context, call DeferredCall) error
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, call DeferredCall) error

func (f DialerFunc) Dial(ctx context.Context, call DeferredCall) error {
	return f(ctx, call)
}

// Dispatcher polls the deferral store and dials calls whose window has opened.
type Dispatcher struct {
	store       DeferralStore
	gate        *Gate
	dialer      Dialer
	logger      *logging.Logger
	metrics     *metrics.CallWindowMetrics
	interval    time.Duration
	batchSize   int
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

func NewDispatcher(store DeferralStore, gate *Gate, dialer Dialer, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		store:       store,
		gate:        gate,
		dialer:      dialer,
		logger:      logger.WithComponent("deferral-dispatcher"),
		interval:    30 * time.Second,
		batchSize:   50,
		maxAttempts: 5,
		retryDelay:  5 * time.Minute,
		now:         time.Now,
	}
}

func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Dispatcher) WithBatchSize(n int) *Dispatcher {
	if n > 0 {
		d.batchSize = n
	}
	return d
}

func (d *Dispatcher) WithMaxAttempts(n int) *Dispatcher {
	if n > 0 {
		d.maxAttempts = n
	}
	return d
}

func (d *Dispatcher) WithRetryDelay(delay time.Duration) *Dispatcher {
	if delay > 0 {
		d.retryDelay = delay
	}
	return d
}

func (d *Dispatcher) WithMetrics(m *metrics.CallWindowMetrics) *Dispatcher {
	d.metrics = m
	return d
}

func (d *Dispatcher) WithClock(clock func() time.Time) *Dispatcher {
	if clock != nil {
		d.now = clock
	}
	return d
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	d.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain processes one batch of due calls and returns how many it handled.
func (d *Dispatcher) drain(ctx context.Context) int {
	if d.store == nil || d.gate == nil || d.dialer == nil {
		return 0
	}
	ctx, span := dispatchTracer.Start(ctx, "deferral.drain")
	defer span.End()

	now := d.now()
	calls, err := d.store.Due(ctx, now, d.batchSize)
	if err != nil {
		span.RecordError(err)
		d.logger.Error("deferral fetch failed", "error", err)
		return 0
	}
	d.metrics.SetDueBatch(len(calls))
	span.SetAttributes(attribute.Int("due_count", len(calls)))

	handled := 0
	for _, call := range calls {
		if ctx.Err() != nil {
			break
		}
		d.process(ctx, call, now)
		handled++
	}
	return handled
}

func (d *Dispatcher) process(ctx context.Context, call DeferredCall, now time.Time) {
	ctx, span := dispatchTracer.Start(ctx, "deferral.process",
		trace.WithAttributes(attribute.String("callwindow.call_id", call.ID)))
	defer span.End()
	lag := now.Sub(call.NextOpen).Seconds()

	// The open instant may have moved since scheduling (DST, tz data updates).
	dec := d.gate.Recheck(call, now)
	if !dec.Allowed {
		call.NextOpen = *dec.NextOpen
		if err := d.store.Add(ctx, call); err != nil {
			d.logger.Error("reschedule deferred call failed", "error", err, "call_id", call.ID)
			return
		}
		d.metrics.ObserveDispatch(StatusRescheduled, lag)
		d.logger.Info("deferred call still outside window",
			"call_id", call.ID,
			"timezone", call.Timezone,
			"next_open", call.NextOpen.Format(time.RFC3339),
		)
		return
	}

	if err := d.dialer.Dial(ctx, call); err != nil {
		span.RecordError(err)
		call.Attempts++
		call.LastError = err.Error()
		if call.Attempts >= d.maxAttempts {
			if rmErr := d.store.Remove(ctx, call.ID); rmErr != nil {
				d.logger.Error("remove exhausted call failed", "error", rmErr, "call_id", call.ID)
			}
			d.metrics.ObserveDispatch(StatusDropped, lag)
			d.logger.Error("deferred call dropped after max attempts",
				"call_id", call.ID,
				"attempts", call.Attempts,
				"error", err,
			)
			return
		}
		call.NextOpen = now.Add(d.retryDelay)
		if addErr := d.store.Add(ctx, call); addErr != nil {
			d.logger.Error("schedule dial retry failed", "error", addErr, "call_id", call.ID)
			return
		}
		d.metrics.ObserveDispatch(StatusRetry, lag)
		d.logger.Warn("dial failed, retry scheduled",
			"call_id", call.ID,
			"attempts", call.Attempts,
			"error", err,
		)
		return
	}

	if err := d.store.Remove(ctx, call.ID); err != nil {
		d.logger.Error("remove dialed call failed", "error", err, "call_id", call.ID)
	}
	d.metrics.ObserveDispatch(StatusDialed, lag)
	d.logger.Info("deferred call dialed", "call_id", call.ID, "timezone", call.Timezone)
}
