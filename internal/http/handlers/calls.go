package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/callwindow/internal/outbound"
	"github.com/wolfman30/callwindow/pkg/logging"
)

// CallsHandler gates outbound call requests and exposes deferred calls.
type CallsHandler struct {
	gate   *outbound.Gate
	store  outbound.DeferralStore
	logger *logging.Logger
}

func NewCallsHandler(gate *outbound.Gate, store outbound.DeferralStore, logger *logging.Logger) *CallsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CallsHandler{gate: gate, store: store, logger: logger}
}

// Create handles POST /v1/calls. Callable requests get 200, deferred ones 202.
func (h *CallsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req outbound.CallRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	dec, err := h.gate.Schedule(r.Context(), req)
	switch {
	case errors.Is(err, outbound.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, outbound.ErrNoStore):
		http.Error(w, "call deferral unavailable", http.StatusServiceUnavailable)
		return
	case err != nil:
		h.logger.Error("failed to gate call", "error", err)
		http.Error(w, "failed to defer call", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if dec.Deferred() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, dec)
}

// Get handles GET /v1/calls/{id}.
func (h *CallsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}
	if h.store == nil {
		http.Error(w, "call deferral unavailable", http.StatusServiceUnavailable)
		return
	}
	call, err := h.store.Get(r.Context(), id)
	if errors.Is(err, outbound.ErrNotFound) {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load deferred call", "error", err, "call_id", id)
		http.Error(w, "failed to load call", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, call)
}
