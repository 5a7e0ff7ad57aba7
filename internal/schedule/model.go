// Package schedule owns the availability model and expands weekly templates
// into concrete bookable slots.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionType is an offering a professional publishes. Appointments copy it by
// value at booking time.
type SessionType struct {
	ID              uuid.UUID `json:"id"`
	ProfessionalID  uuid.UUID `json:"professional_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	// Price is in currency minor units.
	Price     int64 `json:"price"`
	IsProBono bool  `json:"is_pro_bono"`
}

func (s SessionType) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// ClockTime is a wall-clock time of day in minutes after midnight.
type ClockTime int

const minutesPerDay = 24 * 60

// ParseClock parses "HH:mm". "24:00" is accepted so a block can end at midnight.
func ParseClock(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("schedule: invalid time %q, want HH:mm", s)
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil || h < 0 || m < 0 {
		return 0, fmt.Errorf("schedule: invalid time %q, want HH:mm", s)
	}
	if m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("schedule: time %q out of range", s)
	}
	return ClockTime(h*60 + m), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Weekday serializes as the English day name.
type Weekday time.Weekday

func ParseWeekday(s string) (Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return Weekday(d), nil
		}
	}
	return 0, fmt.Errorf("schedule: unknown weekday %q", s)
}

func (d Weekday) String() string {
	return time.Weekday(d).String()
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseWeekday(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeBlock is one entry of a weekly availability template.
type TimeBlock struct {
	Weekday       Weekday   `json:"day"`
	Start         ClockTime `json:"start_time"`
	End           ClockTime `json:"end_time"`
	SessionTypeID uuid.UUID `json:"session_type_id"`
}

func (b TimeBlock) overlaps(o TimeBlock) bool {
	return b.Weekday == o.Weekday && b.Start < o.End && o.Start < b.End
}

// Profile is the availability snapshot a professional publishes: session
// types plus the ordered weekly template that references them.
type Profile struct {
	ProfessionalID uuid.UUID     `json:"professional_id"`
	SessionTypes   []SessionType `json:"session_types"`
	Availability   []TimeBlock   `json:"availability"`
}

// SessionType looks up a session type by id.
func (p Profile) SessionType(id uuid.UUID) (SessionType, bool) {
	for _, st := range p.SessionTypes {
		if st.ID == id {
			return st, true
		}
	}
	return SessionType{}, false
}

// Clone returns a deep copy so callers can never share backing arrays.
func (p Profile) Clone() Profile {
	out := Profile{ProfessionalID: p.ProfessionalID}
	out.SessionTypes = append([]SessionType(nil), p.SessionTypes...)
	out.Availability = append([]TimeBlock(nil), p.Availability...)
	return out
}

// ErrInvalidProfile marks availability that fails validation on save.
var ErrInvalidProfile = errors.New("schedule: invalid profile")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidProfile, fmt.Sprintf(format, args...))
}

// Validate enforces the availability invariants. All problems are reported.
func (p Profile) Validate() error {
	var errs []error
	if p.ProfessionalID == uuid.Nil {
		errs = append(errs, invalid("professional id is required"))
	}

	seen := make(map[uuid.UUID]bool, len(p.SessionTypes))
	for i, st := range p.SessionTypes {
		field := fmt.Sprintf("session_types[%d]", i)
		switch {
		case st.ID == uuid.Nil:
			errs = append(errs, invalid("%s: id is required", field))
		case seen[st.ID]:
			errs = append(errs, invalid("%s: duplicate id %s", field, st.ID))
		}
		seen[st.ID] = true
		if st.ProfessionalID != p.ProfessionalID {
			errs = append(errs, invalid("%s: owned by another professional", field))
		}
		if strings.TrimSpace(st.Name) == "" {
			errs = append(errs, invalid("%s: name is required", field))
		}
		if st.DurationMinutes <= 0 {
			errs = append(errs, invalid("%s: duration_minutes must be positive", field))
		}
		if st.Price < 0 {
			errs = append(errs, invalid("%s: price must not be negative", field))
		}
		if st.IsProBono && st.Price != 0 {
			errs = append(errs, invalid("%s: pro-bono sessions must have price 0", field))
		}
		if !st.IsProBono && st.Price == 0 {
			errs = append(errs, invalid("%s: paid sessions need a positive price", field))
		}
	}

	for i, b := range p.Availability {
		field := fmt.Sprintf("availability[%d]", i)
		if b.Weekday < Weekday(time.Sunday) || b.Weekday > Weekday(time.Saturday) {
			errs = append(errs, invalid("%s: unknown weekday", field))
		}
		if b.Start < 0 || b.End > minutesPerDay || b.Start >= b.End {
			errs = append(errs, invalid("%s: start_time must be before end_time", field))
		}
		if _, ok := p.SessionType(b.SessionTypeID); !ok {
			errs = append(errs, invalid("%s: session type %s is not offered by this professional", field, b.SessionTypeID))
		}
		for j := 0; j < i; j++ {
			if other := p.Availability[j]; other.SessionTypeID == b.SessionTypeID && other.overlaps(b) {
				errs = append(errs, invalid("%s: overlaps availability[%d] for the same session type", field, j))
			}
		}
	}
	return errors.Join(errs...)
}
