package schedule

import (
	"testing"
	"time"

	"slotify/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekdayConfig() *models.CalendarConfig {
	return &models.CalendarConfig{
		WorkingDays:     []int{1, 2, 3, 4, 5}, // Mon-Fri
		OpenTime:        "09:00",
		CloseTime:       "18:00",
		GranularityMin:  30,
		MinAdvanceHours: 2,
		MaxAdvanceDays:  30,
	}
}

// Mon-Fri 09:00-18:00, 30-minute slots, 2-hour minimum advance.
// Querying today at 08:00 must return the first slot no earlier than
// 10:00 and no slot after 17:30.
func TestSlotTimes_MinAdvanceCutoff(t *testing.T) {
	cfg := weekdayConfig()

	// A Monday.
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	slots, err := SlotTimes(cfg, date, now)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	assert.Equal(t, "10:00", slots[0])
	assert.Equal(t, "17:30", slots[len(slots)-1])

	for i := 1; i < len(slots); i++ {
		assert.Less(t, slots[i-1], slots[i], "slots must be ordered")
	}
}

func TestSlotTimes_NonWorkingDay(t *testing.T) {
	cfg := weekdayConfig()
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	slots, err := SlotTimes(cfg, sunday, now)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotTimes_BeyondMaxAdvance(t *testing.T) {
	cfg := weekdayConfig()
	cfg.MaxAdvanceDays = 7
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	farMonday := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)

	slots, err := SlotTimes(cfg, farMonday, now)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotTimes_FutureDayIgnoresTimeOfDayCutoff(t *testing.T) {
	cfg := weekdayConfig()
	now := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	slots, err := SlotTimes(cfg, tomorrow, now)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "09:00", slots[0])
}

// Open/close not divisible by granularity: the trailing partial slot is
// dropped, never rounded up.
func TestSlotTimes_PartialFinalSlotDropped(t *testing.T) {
	cfg := weekdayConfig()
	cfg.CloseTime = "17:45"

	now := time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	slots, err := SlotTimes(cfg, date, now)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "17:00", slots[len(slots)-1])
}

func TestSlotTimes_InvalidGranularity(t *testing.T) {
	cfg := weekdayConfig()
	cfg.GranularityMin = 0

	_, err := SlotTimes(cfg, time.Now(), time.Now())
	assert.Error(t, err)
}

// A 60-minute booking at 10:00 occupies [10:00, 11:00). With a
// 60-minute service, 09:30 and 10:00-10:30 overlap; 11:00 is free.
func TestResolve_OverlapWithExistingBooking(t *testing.T) {
	slotTimes := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	busy := []Interval{{Start: 10 * 60, End: 11 * 60}}

	slots := Resolve(slotTimes, 60, busy, nil)
	require.Len(t, slots, 6)

	byTime := map[string]bool{}
	for _, s := range slots {
		byTime[s.Time] = s.Available
	}

	assert.False(t, byTime["09:30"], "ends 10:30, overlaps")
	assert.False(t, byTime["10:00"])
	assert.False(t, byTime["10:30"])
	assert.True(t, byTime["11:00"])
	assert.True(t, byTime["11:30"])
	// 09:00 ends exactly at 10:00 - half-open intervals do not touch.
	assert.True(t, byTime["09:00"])
}

func TestResolve_BlockedRange(t *testing.T) {
	slotTimes := []string{"09:00", "09:30", "10:00"}
	blocked := BlockedIntervals([]*models.BlockedRange{
		{StartTime: "09:30", EndTime: "10:00", Reason: "lunch"},
	})

	slots := Resolve(slotTimes, 30, nil, blocked)
	require.Len(t, slots, 3)
	assert.True(t, slots[0].Available)
	assert.False(t, slots[1].Available)
	assert.True(t, slots[2].Available)
}

// Recomputing after the conflicting booking goes away makes the slot
// available again - resolution is a pure function of its inputs.
func TestResolve_IdempotentRecompute(t *testing.T) {
	slotTimes := []string{"10:00", "10:30"}
	busy := []Interval{{Start: 10 * 60, End: 10*60 + 30}}

	before := Resolve(slotTimes, 30, busy, nil)
	assert.False(t, before[0].Available)

	after := Resolve(slotTimes, 30, nil, nil)
	assert.True(t, after[0].Available)

	again := Resolve(slotTimes, 30, busy, nil)
	assert.Equal(t, before, again)
}

func TestBookingIntervals_UsesOwnDuration(t *testing.T) {
	intervals := BookingIntervals([]*models.Booking{
		{Time: "10:00", DurationMin: 90},
		{Time: "bogus", DurationMin: 30},
	})
	require.Len(t, intervals, 1)
	assert.Equal(t, Interval{Start: 600, End: 690}, intervals[0])
}

func TestInterval_Overlaps(t *testing.T) {
	a := Interval{Start: 60, End: 120}
	assert.True(t, a.Overlaps(Interval{Start: 90, End: 150}))
	assert.True(t, a.Overlaps(Interval{Start: 0, End: 61}))
	assert.False(t, a.Overlaps(Interval{Start: 120, End: 180}), "half-open: touching is not overlap")
	assert.False(t, a.Overlaps(Interval{Start: 0, End: 60}))
}
