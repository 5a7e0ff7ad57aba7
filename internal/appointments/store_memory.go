package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type slotKey struct {
	professionalID uuid.UUID
	startsAt       int64
}

func keyOf(professionalID uuid.UUID, startsAt time.Time) slotKey {
	return slotKey{professionalID: professionalID, startsAt: startsAt.UnixNano()}
}

// MemoryStore is an in-process Store for tests and single-instance local
// runs. Its mutex stands in for the unique index, so it must not back more
// than one process.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]Appointment
	active   map[slotKey]uuid.UUID
	payments map[string]uuid.UUID
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     map[uuid.UUID]Appointment{},
		active:   map[slotKey]uuid.UUID{},
		payments: map[string]uuid.UUID{},
		now:      time.Now,
	}
}

func (s *MemoryStore) Insert(_ context.Context, appt Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(appt.ProfessionalID, appt.StartsAt)
	if appt.Status.Active() {
		if _, taken := s.active[key]; taken {
			return &ConflictError{ProfessionalID: appt.ProfessionalID, StartsAt: appt.StartsAt}
		}
	}
	if appt.PaymentReference != "" {
		if _, used := s.payments[appt.PaymentReference]; used {
			return ErrPaymentRedeemed
		}
		s.payments[appt.PaymentReference] = appt.ID
	}
	if appt.Status.Active() {
		s.active[key] = appt.ID
	}
	s.byID[appt.ID] = appt
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) FindByPaymentReference(_ context.Context, ref string) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.payments[ref]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) ExistsActive(_ context.Context, professionalID uuid.UUID, startsAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[keyOf(professionalID, startsAt)]
	return ok, nil
}

func (s *MemoryStore) ConfirmedStarts(_ context.Context, professionalID uuid.UUID) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for _, a := range s.byID {
		if a.ProfessionalID == professionalID && a.Status == StatusConfirmed {
			out = append(out, a.StartsAt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *MemoryStore) ListByClient(_ context.Context, clientID uuid.UUID) ([]Appointment, error) {
	return s.filter(func(a Appointment) bool { return a.ClientID == clientID }), nil
}

func (s *MemoryStore) ListByProfessional(_ context.Context, professionalID uuid.UUID) ([]Appointment, error) {
	return s.filter(func(a Appointment) bool { return a.ProfessionalID == professionalID }), nil
}

func (s *MemoryStore) filter(keep func(Appointment) bool) []Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Appointment
	for _, a := range s.byID {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, videoRoomURL string, _ uuid.UUID) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok || a.Status != from {
		return Appointment{}, ErrStaleStatus
	}
	a.Status = to
	if a.VideoRoomURL == "" {
		a.VideoRoomURL = videoRoomURL
	}
	a.UpdatedAt = s.now().UTC()
	if !to.Active() {
		delete(s.active, keyOf(a.ProfessionalID, a.StartsAt))
	}
	s.byID[id] = a
	return a, nil
}

// Count returns how many appointments are stored.
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
