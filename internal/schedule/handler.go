package schedule

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

// ProfileStore supplies and replaces availability snapshots.
type ProfileStore interface {
	Profile(ctx context.Context, professionalID uuid.UUID) (Profile, error)
	SaveProfile(ctx context.Context, p Profile) error
}

// BookedLister returns taken timestamps for display only.
type BookedLister interface {
	BookedSlots(ctx context.Context, professionalID uuid.UUID) ([]time.Time, error)
}

type Handler struct {
	profiles ProfileStore
	booked   BookedLister
	loc      *time.Location
	logger   *logging.Logger
}

func NewHandler(profiles ProfileStore, booked BookedLister, loc *time.Location, logger *logging.Logger) *Handler {
	if profiles == nil {
		panic("schedule: profile store cannot be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{profiles: profiles, booked: booked, loc: loc, logger: logger}
}

type slotView struct {
	Slot
	Booked bool `json:"booked"`
}

type slotsResponse struct {
	ProfessionalID uuid.UUID  `json:"professional_id"`
	Date           string     `json:"date"`
	Slots          []slotView `json:"slots"`
}

// ListSlots handles GET /professionals/{professionalID}/slots?date=YYYY-MM-DD.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	professionalID, err := uuid.Parse(chi.URLParam(r, "professionalID"))
	if err != nil {
		http.Error(w, "invalid professional id", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation(time.DateOnly, r.URL.Query().Get("date"), h.loc)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	profile, err := h.profiles.Profile(r.Context(), professionalID)
	if err != nil {
		h.logger.Error("load profile failed", "error", err, "professional_id", professionalID)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}

	taken := map[int64]bool{}
	if h.booked != nil {
		booked, err := h.booked.BookedSlots(r.Context(), professionalID)
		if err != nil {
			// advisory only; serve slots without flags
			h.logger.Warn("booked slots unavailable", "error", err, "professional_id", professionalID)
		}
		for _, ts := range booked {
			taken[ts.Unix()] = true
		}
	}

	slots := profile.Slots(date)
	resp := slotsResponse{ProfessionalID: professionalID, Date: date.Format(time.DateOnly), Slots: make([]slotView, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotView{Slot: s, Booked: taken[s.Start.Unix()]})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAvailability handles GET /professionals/me/availability.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok || !principal.Is(identity.RoleProfessional) {
		http.Error(w, "professional role required", http.StatusForbidden)
		return
	}
	profile, err := h.profiles.Profile(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("load profile failed", "error", err, "professional_id", principal.ID)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type saveAvailabilityRequest struct {
	SessionTypes []SessionType `json:"session_types"`
	Availability []TimeBlock   `json:"availability"`
}

// SaveAvailability handles PUT /professionals/me/availability with
// replace-all semantics.
func (h *Handler) SaveAvailability(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok || !principal.Is(identity.RoleProfessional) {
		http.Error(w, "professional role required", http.StatusForbidden)
		return
	}

	var req saveAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	profile := Profile{ProfessionalID: principal.ID, Availability: req.Availability}
	for _, st := range req.SessionTypes {
		if st.ID == uuid.Nil {
			st.ID = uuid.New()
		}
		st.ProfessionalID = principal.ID
		profile.SessionTypes = append(profile.SessionTypes, st)
	}

	err := h.profiles.SaveProfile(r.Context(), profile)
	switch {
	case errors.Is(err, ErrInvalidProfile):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "code": "validation_error"})
		return
	case errors.Is(err, ErrForeignSessionType):
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	case err != nil:
		h.logger.Error("save profile failed", "error", err, "professional_id", principal.ID)
		http.Error(w, "failed to save availability", http.StatusInternalServerError)
		return
	}

	h.logger.Info("availability saved",
		"professional_id", principal.ID,
		"session_types", len(profile.SessionTypes),
		"blocks", len(profile.Availability),
	)
	writeJSON(w, http.StatusOK, profile)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
