package scheduling

import (
	"sort"
	"time"
)

// LayoutConfig maps time-of-day to pixel offsets for one rendered day.
type LayoutConfig struct {
	// DayStartMinute is the top of the visible day window, minutes from
	// midnight.
	DayStartMinute int
	// PixelsPerMinute scales intervals into layout units.
	PixelsPerMinute float64
	// MinHeight keeps near-zero-duration sessions visible and clickable.
	MinHeight float64
}

func (c LayoutConfig) withDefaults() LayoutConfig {
	if c.PixelsPerMinute <= 0 {
		c.PixelsPerMinute = 1
	}
	if c.MinHeight <= 0 {
		c.MinHeight = 18
	}
	return c
}

// LayoutDay assigns every session of one day to a display column via greedy
// interval partitioning and computes its pixel offsets. Sessions are sorted
// by start time, ties broken by longer duration first, and each takes the
// first column whose last assigned end time does not run past its start.
//
// The total-column count of a session is the highest column index among all
// sessions overlapping it, plus one — not just its direct cluster — so two
// sessions that overlap a common third but not each other still reserve the
// same width.
func LayoutDay(sessions []SessionInfo, cfg LayoutConfig) map[uint]LayoutAssignment {
	cfg = cfg.withDefaults()
	out := make(map[uint]LayoutAssignment, len(sessions))
	if len(sessions) == 0 {
		return out
	}

	ordered := make([]SessionInfo, len(sessions))
	copy(ordered, sessions)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		da, db := a.End.Sub(a.Start), b.End.Sub(b.Start)
		if da != db {
			return da > db
		}
		return a.ID < b.ID
	})

	columns := make([]time.Time, 0, 4) // latest end per column
	assigned := make([]int, len(ordered))
	for i, s := range ordered {
		col := -1
		for j, end := range columns {
			if !end.After(s.Start) {
				col = j
				break
			}
		}
		if col == -1 {
			columns = append(columns, s.End)
			col = len(columns) - 1
		} else {
			columns[col] = s.End
		}
		assigned[i] = col
	}

	for i, s := range ordered {
		maxCol := assigned[i]
		for j, other := range ordered {
			if j == i || !s.Overlaps(other) {
				continue
			}
			if assigned[j] > maxCol {
				maxCol = assigned[j]
			}
		}

		dayStart := time.Date(s.Start.Year(), s.Start.Month(), s.Start.Day(), 0, 0, 0, 0, s.Start.Location()).
			Add(time.Duration(cfg.DayStartMinute) * time.Minute)
		top := s.Start.Sub(dayStart).Minutes() * cfg.PixelsPerMinute
		height := s.End.Sub(s.Start).Minutes() * cfg.PixelsPerMinute
		if height < cfg.MinHeight {
			height = cfg.MinHeight
		}

		out[s.ID] = LayoutAssignment{
			SessionID:    s.ID,
			Column:       assigned[i],
			TotalColumns: maxCol + 1,
			Top:          top,
			Height:       height,
		}
	}
	return out
}
