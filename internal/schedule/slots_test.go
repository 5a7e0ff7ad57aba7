package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock(t *testing.T, s string) ClockTime {
	t.Helper()
	c, err := ParseClock(s)
	require.NoError(t, err)
	return c
}

func session(minutes int, proBono bool) SessionType {
	st := SessionType{ID: uuid.New(), Name: "session", DurationMinutes: minutes, IsProBono: proBono}
	if !proBono {
		st.Price = 50000
	}
	return st
}

// 2024-06-03 is a Monday.
var monday = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

func TestGenerateSlotsProBonoMorning(t *testing.T) {
	st := session(30, true)
	blocks := []TimeBlock{{Weekday: Weekday(time.Monday), Start: clock(t, "09:00"), End: clock(t, "10:00"), SessionTypeID: st.ID}}

	slots := GenerateSlots(blocks, []SessionType{st}, monday)

	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC), slots[0].End)
	assert.Equal(t, time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC), slots[1].Start)
	assert.Equal(t, time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC), slots[1].End)
	assert.Equal(t, st, slots[0].SessionType)
}

func TestGenerateSlotsTilingCount(t *testing.T) {
	start := 8 * 60
	for length := 0; length <= 600; length += 7 {
		for duration := 5; duration <= 120; duration += 5 {
			st := session(duration, true)
			block := TimeBlock{Weekday: Weekday(time.Monday), Start: ClockTime(start), End: ClockTime(start + length), SessionTypeID: st.ID}
			slots := GenerateSlots([]TimeBlock{block}, []SessionType{st}, monday)

			if len(slots) != length/duration {
				t.Fatalf("L=%d D=%d: expected %d slots, got %d", length, duration, length/duration, len(slots))
			}
			blockEnd := monday.Add(time.Duration(start+length) * time.Minute)
			for i, s := range slots {
				if s.End.After(blockEnd) {
					t.Fatalf("L=%d D=%d: slot %d ends %s after block end %s", length, duration, i, s.End, blockEnd)
				}
				if s.End.Sub(s.Start) != st.Duration() {
					t.Fatalf("L=%d D=%d: slot %d has length %s", length, duration, i, s.End.Sub(s.Start))
				}
				if i > 0 && !s.Start.Equal(slots[i-1].End) {
					t.Fatalf("L=%d D=%d: slots are not contiguous at %d", length, duration, i)
				}
			}
		}
	}
}

func TestGenerateSlotsEdgeCases(t *testing.T) {
	fifty := session(50, false)
	thirty := session(30, true)

	tests := []struct {
		name   string
		blocks []TimeBlock
		date   time.Time
		want   int
	}{
		{
			name:   "no entries for weekday",
			blocks: []TimeBlock{{Weekday: Weekday(time.Tuesday), Start: 540, End: 600, SessionTypeID: thirty.ID}},
			date:   monday,
			want:   0,
		},
		{
			name:   "block shorter than duration",
			blocks: []TimeBlock{{Weekday: Weekday(time.Monday), Start: 540, End: 580, SessionTypeID: fifty.ID}},
			date:   monday,
			want:   0,
		},
		{
			name:   "trailing remainder dropped",
			blocks: []TimeBlock{{Weekday: Weekday(time.Monday), Start: 540, End: 660, SessionTypeID: fifty.ID}},
			date:   monday,
			want:   2,
		},
		{
			name: "overlapping blocks of different types both contribute",
			blocks: []TimeBlock{
				{Weekday: Weekday(time.Monday), Start: 540, End: 600, SessionTypeID: thirty.ID},
				{Weekday: Weekday(time.Monday), Start: 540, End: 640, SessionTypeID: fifty.ID},
			},
			date: monday,
			want: 4,
		},
		{
			name:   "unknown session type skipped",
			blocks: []TimeBlock{{Weekday: Weekday(time.Monday), Start: 540, End: 600, SessionTypeID: uuid.New()}},
			date:   monday,
			want:   0,
		},
		{
			name:   "block ending at midnight",
			blocks: []TimeBlock{{Weekday: Weekday(time.Monday), Start: clock(t, "23:00"), End: clock(t, "24:00"), SessionTypeID: thirty.ID}},
			date:   monday,
			want:   2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := GenerateSlots(tt.blocks, []SessionType{fifty, thirty}, tt.date)
			assert.Len(t, slots, tt.want)
		})
	}
}

func TestGenerateSlotsUsesDateLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	st := session(60, true)
	blocks := []TimeBlock{{Weekday: Weekday(time.Monday), Start: 540, End: 600, SessionTypeID: st.ID}}

	slots := GenerateSlots(blocks, []SessionType{st}, time.Date(2024, 6, 3, 12, 0, 0, 0, loc))
	require.Len(t, slots, 1)
	assert.Equal(t, time.Date(2024, 6, 3, 3, 30, 0, 0, time.UTC), slots[0].Start.UTC())
}

func TestGenerateSlotsIsDeterministic(t *testing.T) {
	st := session(45, true)
	blocks := []TimeBlock{{Weekday: Weekday(time.Monday), Start: 480, End: 720, SessionTypeID: st.ID}}
	first := GenerateSlots(blocks, []SessionType{st}, monday)
	second := GenerateSlots(blocks, []SessionType{st}, monday)
	assert.Equal(t, first, second)
}

func TestProfileFindSlot(t *testing.T) {
	st := session(30, true)
	other := session(30, true)
	profile := Profile{
		ProfessionalID: uuid.New(),
		SessionTypes:   []SessionType{st, other},
		Availability:   []TimeBlock{{Weekday: Weekday(time.Monday), Start: 540, End: 600, SessionTypeID: st.ID}},
	}

	slot, ok := profile.FindSlot(st.ID, time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC), time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC), slot.End)

	_, ok = profile.FindSlot(st.ID, time.Date(2024, 6, 3, 9, 15, 0, 0, time.UTC), time.UTC)
	assert.False(t, ok, "off-grid start")

	_, ok = profile.FindSlot(other.ID, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), time.UTC)
	assert.False(t, ok, "session type without a block")
}
