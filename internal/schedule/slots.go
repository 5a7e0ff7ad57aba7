package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Slot is a concrete candidate appointment window. It is never persisted.
type Slot struct {
	Start       time.Time   `json:"start_date_time"`
	End         time.Time   `json:"end_date_time"`
	SessionType SessionType `json:"session_type"`
}

// GenerateSlots expands the template entries for date's weekday into
// consecutive fixed-length slots. Wall-clock times are interpreted in date's
// location. Slots that would run past a block's end are not emitted, and
// blocks are tiled independently in template order.
func GenerateSlots(blocks []TimeBlock, sessionTypes []SessionType, date time.Time) []Slot {
	byID := make(map[uuid.UUID]SessionType, len(sessionTypes))
	for _, st := range sessionTypes {
		byID[st.ID] = st
	}

	year, month, day := date.Date()
	loc := date.Location()
	weekday := Weekday(date.Weekday())

	var slots []Slot
	for _, b := range blocks {
		if b.Weekday != weekday {
			continue
		}
		st, ok := byID[b.SessionTypeID]
		if !ok || st.DurationMinutes <= 0 {
			continue
		}
		step := ClockTime(st.DurationMinutes)
		for cursor := b.Start; cursor+step <= b.End; cursor += step {
			end := cursor + step
			slots = append(slots, Slot{
				Start:       time.Date(year, month, day, int(cursor)/60, int(cursor)%60, 0, 0, loc),
				End:         time.Date(year, month, day, int(end)/60, int(end)%60, 0, 0, loc),
				SessionType: st,
			})
		}
	}
	return slots
}

// Slots generates the profile's slots for date.
func (p Profile) Slots(date time.Time) []Slot {
	return GenerateSlots(p.Availability, p.SessionTypes, date)
}

// FindSlot reports the generated slot for sessionTypeID starting exactly at
// startsAt, evaluated on startsAt's calendar date in loc.
func (p Profile) FindSlot(sessionTypeID uuid.UUID, startsAt time.Time, loc *time.Location) (Slot, bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, s := range p.Slots(startsAt.In(loc)) {
		if s.SessionType.ID == sessionTypeID && s.Start.Equal(startsAt) {
			return s, true
		}
	}
	return Slot{}, false
}
