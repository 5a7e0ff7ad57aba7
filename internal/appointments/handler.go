package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sathicare/booking-core/internal/identity"
	"github.com/sathicare/booking-core/pkg/logging"
)

type Handler struct {
	guard  *Guard
	logger *logging.Logger
}

func NewHandler(guard *Guard, logger *logging.Logger) *Handler {
	if guard == nil {
		panic("appointments: guard cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{guard: guard, logger: logger}
}

// Mine handles GET /appointments/mine.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	list, err := h.guard.ListFor(r.Context(), principal)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": list})
}

// BookedSlots handles GET /professionals/{professionalID}/booked-slots.
func (h *Handler) BookedSlots(w http.ResponseWriter, r *http.Request) {
	professionalID, err := uuid.Parse(chi.URLParam(r, "professionalID"))
	if err != nil {
		http.Error(w, "invalid professional id", http.StatusBadRequest)
		return
	}
	starts, err := h.guard.BookedSlots(r.Context(), professionalID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if starts == nil {
		starts = []time.Time{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"professional_id": professionalID, "booked_slots": starts})
}

// Cancel handles POST /appointments/{appointmentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.guard.Cancel)
}

// Complete handles POST /appointments/{appointmentID}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.guard.Complete)
}

// Confirm handles POST /appointments/{appointmentID}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.guard.Confirm)
}

type changeFunc func(ctx context.Context, id uuid.UUID, actor identity.Principal) (Appointment, error)

func (h *Handler) change(w http.ResponseWriter, r *http.Request, fn changeFunc) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	appt, err := fn(r.Context(), id, principal)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "appointment not found", "code": "not_found"})
	case errors.Is(err, ErrNotParticipant):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error(), "code": "forbidden"})
	case errors.Is(err, ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "code": "invalid_transition"})
	default:
		h.logger.Error("appointment request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
