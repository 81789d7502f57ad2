// Package schedule computes nominal slot times and per-slot
// availability. Everything here is pure: no I/O, no clocks other than
// the "now" argument, deterministic for the same inputs.
package schedule

import (
	"fmt"
	"time"

	"slotify/internal/models"
)

// Interval is a half-open [Start, End) range in minutes from midnight.
type Interval struct {
	Start int
	End   int
}

func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// ParseMinute converts "HH:MM" to minutes from midnight.
func ParseMinute(s string) (int, error) {
	t, err := time.Parse(models.TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// SlotTimes returns the ordered nominal slot start times for a date.
// A date outside the booking window, or not on a working day, yields an
// empty set. On the boundary day the minimum-advance cutoff applies per
// slot start, so a morning query still exposes the afternoon. The final
// partial slot before close is dropped, never rounded up.
func SlotTimes(cfg *models.CalendarConfig, date time.Time, now time.Time) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.IsWorkingDay(date.Weekday()) {
		return nil, nil
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, now.Location())

	maxDays := cfg.MaxAdvanceDays
	if maxDays <= 0 {
		maxDays = models.DefaultMaxAdvanceDays
	}
	lastDay := now.AddDate(0, 0, maxDays)
	if dayStart.After(lastDay) {
		return nil, nil
	}

	open, err := ParseMinute(cfg.OpenTime)
	if err != nil {
		return nil, err
	}
	close, err := ParseMinute(cfg.CloseTime)
	if err != nil {
		return nil, err
	}
	if close <= open {
		return nil, nil
	}

	cutoff := now.Add(time.Duration(cfg.MinAdvanceHours) * time.Hour)

	var slots []string
	for m := open; m+cfg.GranularityMin <= close; m += cfg.GranularityMin {
		start := dayStart.Add(time.Duration(m) * time.Minute)
		if start.Before(cutoff) {
			continue
		}
		slots = append(slots, formatMinute(m))
	}
	return slots, nil
}

// BookingIntervals converts active bookings to their occupied
// intervals, each using that booking's own service duration.
func BookingIntervals(bookings []*models.Booking) []Interval {
	intervals := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		start, err := b.StartMinute()
		if err != nil {
			continue
		}
		intervals = append(intervals, Interval{Start: start, End: start + b.DurationMin})
	}
	return intervals
}

// BlockedIntervals converts blocked ranges to intervals. Malformed rows
// are skipped rather than poisoning the whole computation.
func BlockedIntervals(ranges []*models.BlockedRange) []Interval {
	intervals := make([]Interval, 0, len(ranges))
	for _, br := range ranges {
		start, err := ParseMinute(br.StartTime)
		if err != nil {
			continue
		}
		end, err := ParseMinute(br.EndTime)
		if err != nil || end <= start {
			continue
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}
	return intervals
}

// Resolve marks each nominal slot available or not for a service of the
// given duration. A slot is unavailable when [start, start+duration)
// overlaps an existing booking's occupied interval or a blocked range.
// Unavailable slots are returned, never hidden: the UI shows them
// struck through. The result is best effort as of read time, not a
// reservation.
func Resolve(slotTimes []string, serviceDurationMin int, busy, blocked []Interval) []models.Slot {
	slots := make([]models.Slot, 0, len(slotTimes))
	for _, st := range slotTimes {
		start, err := ParseMinute(st)
		if err != nil {
			continue
		}
		occupied := Interval{Start: start, End: start + serviceDurationMin}

		available := true
		for _, iv := range busy {
			if occupied.Overlaps(iv) {
				available = false
				break
			}
		}
		if available {
			for _, iv := range blocked {
				if occupied.Overlaps(iv) {
					available = false
					break
				}
			}
		}

		slots = append(slots, models.Slot{Time: st, Available: available})
	}
	return slots
}
