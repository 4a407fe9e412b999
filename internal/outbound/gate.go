// Package outbound gates outbound calls on the callee's local calling window
// and defers the ones that arrive while the window is closed.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/callwindow/internal/callwindow"
	"github.com/wolfman30/callwindow/internal/observability/metrics"
	"github.com/wolfman30/callwindow/internal/timezone"
	"github.com/wolfman30/callwindow/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var gateTracer = otel.Tracer("callwindow/outbound-gate")

// Decision reasons.
const (
	ReasonUnknownTimezone = "unknown_timezone"
	ReasonInWindow        = "in_window"
	ReasonOutsideWindow   = "outside_window"
)

var (
	ErrInvalidRequest = errors.New("outbound: invalid call request")
	ErrNoStore        = errors.New("outbound: no deferral store configured")
)

// CallRequest asks whether Phone may be called now. A nil Window uses the
// gate's default window.
type CallRequest struct {
	Phone  string             `json:"phone"`
	Window *callwindow.Window `json:"window,omitempty"`
}

// Decision is the gate's answer for a single call.
type Decision struct {
	Allowed  bool       `json:"allowed"`
	Reason   string     `json:"reason"`
	Timezone string     `json:"timezone,omitempty"`
	NextOpen *time.Time `json:"next_open,omitempty"`
	CallID   string     `json:"call_id,omitempty"`
}

// Deferred reports whether the call was stored for later dispatch.
func (d Decision) Deferred() bool {
	return d.CallID != ""
}

// Gate resolves a callee's timezone and enforces the calling window.
type Gate struct {
	resolver  *timezone.Resolver
	evaluator *callwindow.Evaluator
	window    callwindow.Window
	store     DeferralStore
	metrics   *metrics.CallWindowMetrics
	logger    *logging.Logger
}

func NewGate(resolver *timezone.Resolver, evaluator *callwindow.Evaluator, window callwindow.Window, logger *logging.Logger) *Gate {
	if resolver == nil {
		resolver = timezone.NewResolver(timezone.DefaultTables())
	}
	if evaluator == nil {
		evaluator = callwindow.NewEvaluator(nil)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{
		resolver:  resolver,
		evaluator: evaluator,
		window:    window,
		logger:    logger.WithComponent("outbound-gate"),
	}
}

func (g *Gate) WithStore(store DeferralStore) *Gate {
	g.store = store
	return g
}

func (g *Gate) WithMetrics(m *metrics.CallWindowMetrics) *Gate {
	g.metrics = m
	return g
}

// DefaultWindow returns the window applied to requests that carry none.
func (g *Gate) DefaultWindow() callwindow.Window {
	return g.window
}

// Check decides whether req may be dialed now. Numbers whose timezone cannot be
// resolved are allowed through with ReasonUnknownTimezone.
func (g *Gate) Check(ctx context.Context, req CallRequest) (Decision, error) {
	_, span := gateTracer.Start(ctx, "outbound.gate.check")
	defer span.End()

	w, err := g.windowFor(req)
	if err != nil {
		span.RecordError(err)
		return Decision{}, err
	}
	tz, ok := g.resolver.Resolve(req.Phone)
	if ok {
		g.metrics.ObserveResolve("resolved")
	} else {
		g.metrics.ObserveResolve("unresolved")
	}

	dec := g.decide(tz, ok, w, g.evaluator.Now())
	span.SetAttributes(
		attribute.String("callwindow.timezone", tz),
		attribute.Bool("callwindow.allowed", dec.Allowed),
		attribute.String("callwindow.reason", dec.Reason),
	)
	g.metrics.ObserveDecision(dec.Allowed, dec.Reason)
	return dec, nil
}

// Schedule runs Check and stores calls that are outside their window so the
// dispatcher can dial them once it opens.
func (g *Gate) Schedule(ctx context.Context, req CallRequest) (Decision, error) {
	dec, err := g.Check(ctx, req)
	if err != nil || dec.Allowed {
		return dec, err
	}
	if g.store == nil {
		return dec, ErrNoStore
	}

	ctx, span := gateTracer.Start(ctx, "outbound.gate.schedule")
	defer span.End()

	w, _ := g.windowFor(req)
	call := DeferredCall{
		ID:        uuid.NewString(),
		Phone:     strings.TrimSpace(req.Phone),
		Timezone:  dec.Timezone,
		Window:    w,
		NextOpen:  *dec.NextOpen,
		CreatedAt: g.evaluator.Now().UTC(),
	}
	if err := g.store.Add(ctx, call); err != nil {
		span.RecordError(err)
		return dec, fmt.Errorf("outbound: defer call: %w", err)
	}
	span.SetAttributes(attribute.String("callwindow.call_id", call.ID))
	g.metrics.ObserveDeferred()
	g.logger.Info("call deferred",
		"call_id", call.ID,
		"timezone", call.Timezone,
		"next_open", call.NextOpen.Format(time.RFC3339),
	)
	dec.CallID = call.ID
	return dec, nil
}

// Recheck evaluates a stored call against its own timezone and window at now.
// It records no gate decision; the dispatcher counts its own outcomes.
func (g *Gate) Recheck(call DeferredCall, now time.Time) Decision {
	return g.decide(call.Timezone, call.Timezone != "", call.Window, now)
}

func (g *Gate) decide(tz string, resolved bool, w callwindow.Window, now time.Time) Decision {
	if !resolved {
		return Decision{Allowed: true, Reason: ReasonUnknownTimezone}
	}
	if g.evaluator.IsCallableAt(tz, w, now) {
		return Decision{Allowed: true, Reason: ReasonInWindow, Timezone: tz}
	}
	next := g.evaluator.NextValidInstantAt(tz, w, now)
	return Decision{Allowed: false, Reason: ReasonOutsideWindow, Timezone: tz, NextOpen: &next}
}

func (g *Gate) windowFor(req CallRequest) (callwindow.Window, error) {
	if strings.TrimSpace(req.Phone) == "" {
		return callwindow.Window{}, fmt.Errorf("%w: phone is required", ErrInvalidRequest)
	}
	if req.Window == nil {
		return g.window, nil
	}
	if err := req.Window.Validate(); err != nil {
		return callwindow.Window{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return *req.Window, nil
}
