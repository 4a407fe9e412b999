package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/callwindow/internal/callwindow"
	"github.com/wolfman30/callwindow/internal/display"
	"github.com/wolfman30/callwindow/internal/observability/metrics"
	"github.com/wolfman30/callwindow/internal/phone"
	"github.com/wolfman30/callwindow/internal/timezone"
	"github.com/wolfman30/callwindow/pkg/logging"
)

// LookupHandler serves read-only timezone and calling-window queries.
type LookupHandler struct {
	resolver  *timezone.Resolver
	evaluator *callwindow.Evaluator
	formatter *display.Formatter
	window    callwindow.Window
	metrics   *metrics.CallWindowMetrics
	logger    *logging.Logger
}

type LookupConfig struct {
	Resolver      *timezone.Resolver
	Evaluator     *callwindow.Evaluator
	Formatter     *display.Formatter
	DefaultWindow callwindow.Window
	Metrics       *metrics.CallWindowMetrics
	Logger        *logging.Logger
}

func NewLookupHandler(cfg LookupConfig) *LookupHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = timezone.NewResolver(timezone.DefaultTables())
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = callwindow.NewEvaluator(nil)
	}
	if cfg.Formatter == nil {
		cfg.Formatter = display.NewFormatter(cfg.Evaluator.Projector())
	}
	return &LookupHandler{
		resolver:  cfg.Resolver,
		evaluator: cfg.Evaluator,
		formatter: cfg.Formatter,
		window:    cfg.DefaultWindow,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

type timezoneResponse struct {
	Phone       string `json:"phone"`
	Digits      string `json:"digits"`
	Timezone    string `json:"timezone"`
	Resolved    bool   `json:"resolved"`
	ZoneDisplay string `json:"zone_display,omitempty"`
	LocalTime   string `json:"local_time,omitempty"`
	E164        string `json:"e164,omitempty"`
	Region      string `json:"region,omitempty"`
}

// Timezone handles GET /v1/timezone?phone=...
func (h *LookupHandler) Timezone(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("phone"))
	if raw == "" {
		http.Error(w, "missing phone", http.StatusBadRequest)
		return
	}

	digits := phone.Normalize(raw)
	tz, ok := h.resolver.ResolveDigits(digits)
	resp := timezoneResponse{
		Phone:    raw,
		Digits:   string(digits),
		Timezone: tz,
		Resolved: ok,
	}
	if e164, valid := phone.FormatE164(raw); valid {
		resp.E164 = e164
	}
	resp.Region = phone.RegionCode(raw)
	if ok {
		h.metrics.ObserveResolve("resolved")
		now := h.evaluator.Now()
		resp.ZoneDisplay = h.formatter.ZoneAt(tz, now)
		resp.LocalTime = h.formatter.LocalTimeAt(tz, now)
	} else {
		h.metrics.ObserveResolve("unresolved")
		h.logger.Debug("timezone unresolved", "digits", len(digits.Number()))
	}
	writeJSON(w, http.StatusOK, resp)
}

type windowCheckRequest struct {
	Phone    string             `json:"phone"`
	Timezone string             `json:"timezone"`
	Window   *callwindow.Window `json:"window,omitempty"`
}

type windowCheckResponse struct {
	Timezone    string            `json:"timezone"`
	Callable    bool              `json:"callable"`
	NextOpen    *time.Time        `json:"next_open,omitempty"`
	LocalTime   string            `json:"local_time"`
	ZoneDisplay string            `json:"zone_display"`
	Window      callwindow.Window `json:"window"`
}

// WindowCheck handles POST /v1/window/check. An explicit timezone wins over phone.
func (h *LookupHandler) WindowCheck(w http.ResponseWriter, r *http.Request) {
	var req windowCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	win := h.window
	if req.Window != nil {
		if err := req.Window.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		win = *req.Window
	}

	now := h.evaluator.Now()
	tz := strings.TrimSpace(req.Timezone)
	switch {
	case tz != "":
		if _, err := h.evaluator.Projector().Project(tz, now); err != nil {
			http.Error(w, "unknown timezone", http.StatusBadRequest)
			return
		}
	case strings.TrimSpace(req.Phone) != "":
		resolved, ok := h.resolver.Resolve(req.Phone)
		if !ok {
			h.metrics.ObserveResolve("unresolved")
			http.Error(w, "unable to resolve timezone", http.StatusUnprocessableEntity)
			return
		}
		h.metrics.ObserveResolve("resolved")
		tz = resolved
	default:
		http.Error(w, "phone or timezone required", http.StatusBadRequest)
		return
	}

	resp := windowCheckResponse{
		Timezone:    tz,
		Callable:    h.evaluator.IsCallableAt(tz, win, now),
		LocalTime:   h.formatter.LocalTimeAt(tz, now),
		ZoneDisplay: h.formatter.ZoneAt(tz, now),
		Window:      win,
	}
	if !resp.Callable {
		next := h.evaluator.NextValidInstantAt(tz, win, now).UTC()
		resp.NextOpen = &next
	}
	writeJSON(w, http.StatusOK, resp)
}
