package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sathicare/booking-core/internal/identity"
)

type stubProfiles struct {
	profile Profile
	saved   *Profile
	saveErr error
}

func (s *stubProfiles) Profile(_ context.Context, id uuid.UUID) (Profile, error) {
	p := s.profile.Clone()
	p.ProfessionalID = id
	return p, nil
}

func (s *stubProfiles) SaveProfile(_ context.Context, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = &p
	return nil
}

type stubBooked []time.Time

func (s stubBooked) BookedSlots(context.Context, uuid.UUID) ([]time.Time, error) {
	return s, nil
}

func routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/professionals/{professionalID}/slots", h.ListSlots)
	r.Get("/professionals/me/availability", h.GetAvailability)
	r.Put("/professionals/me/availability", h.SaveAvailability)
	return r
}

func TestListSlotsMarksBooked(t *testing.T) {
	p := validProfile()
	booked := stubBooked{time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)}
	h := NewHandler(&stubProfiles{profile: p}, booked, time.UTC, nil)

	req := httptest.NewRequest(http.MethodGet, "/professionals/"+p.ProfessionalID.String()+"/slots?date=2024-06-03", nil)
	rec := httptest.NewRecorder()
	routes(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Date  string `json:"date"`
		Slots []struct {
			Start  time.Time `json:"start_date_time"`
			Booked bool      `json:"booked"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-06-03", resp.Date)
	// two 30-minute talk slots plus three 60-minute therapy slots
	require.Len(t, resp.Slots, 5)
	assert.False(t, resp.Slots[0].Booked)
	assert.True(t, resp.Slots[1].Booked)
}

func TestListSlotsBadInput(t *testing.T) {
	h := NewHandler(&stubProfiles{}, nil, time.UTC, nil)
	for _, path := range []string{
		"/professionals/not-a-uuid/slots?date=2024-06-03",
		"/professionals/" + uuid.NewString() + "/slots?date=03-06-2024",
	} {
		rec := httptest.NewRecorder()
		routes(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func withPrincipal(req *http.Request, role identity.Role) (*http.Request, uuid.UUID) {
	id := uuid.New()
	return req.WithContext(identity.WithPrincipal(req.Context(), identity.Principal{ID: id, Role: role})), id
}

func TestSaveAvailabilityRequiresProfessional(t *testing.T) {
	h := NewHandler(&stubProfiles{}, nil, time.UTC, nil)
	req, _ := withPrincipal(httptest.NewRequest(http.MethodPut, "/professionals/me/availability", strings.NewReader(`{}`)), identity.RoleClient)
	rec := httptest.NewRecorder()
	routes(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSaveAvailabilityAssignsOwnership(t *testing.T) {
	store := &stubProfiles{}
	h := NewHandler(store, nil, time.UTC, nil)
	stID := uuid.New()
	body := `{
		"session_types": [{"id": "` + stID.String() + `", "name": "Intro", "duration_minutes": 30, "price": 0, "is_pro_bono": true}],
		"availability": [{"day": "Monday", "start_time": "09:00", "end_time": "10:00", "session_type_id": "` + stID.String() + `"}]
	}`
	req, pro := withPrincipal(httptest.NewRequest(http.MethodPut, "/professionals/me/availability", strings.NewReader(body)), identity.RoleProfessional)
	rec := httptest.NewRecorder()
	routes(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, store.saved)
	assert.Equal(t, pro, store.saved.ProfessionalID)
	assert.Equal(t, pro, store.saved.SessionTypes[0].ProfessionalID)
}

func TestSaveAvailabilityValidationError(t *testing.T) {
	h := NewHandler(&stubProfiles{}, nil, time.UTC, nil)
	body := `{"session_types": [{"name": "Broken", "duration_minutes": 0, "is_pro_bono": true}]}`
	req, _ := withPrincipal(httptest.NewRequest(http.MethodPut, "/professionals/me/availability", strings.NewReader(body)), identity.RoleProfessional)
	rec := httptest.NewRecorder()
	routes(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestSaveAvailabilityStoreFailure(t *testing.T) {
	h := NewHandler(&stubProfiles{saveErr: errors.New("db down")}, nil, time.UTC, nil)
	body := `{"session_types": [], "availability": []}`
	req, _ := withPrincipal(httptest.NewRequest(http.MethodPut, "/professionals/me/availability", strings.NewReader(body)), identity.RoleProfessional)
	rec := httptest.NewRecorder()
	routes(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
