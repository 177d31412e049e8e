package scheduling

import "time"

// WeeklyRule is the expansion input: a weekly recurrence expressed as a
// weekday plus start/end minutes from midnight, with an optional room.
type WeeklyRule struct {
	RecurringScheduleID uint
	ClassID             uint
	Weekday             time.Weekday
	StartMinute         int
	EndMinute           int
	RoomName            string
}

// ExpandWeekly turns the rule into one planned session per matching date in
// the closed range [from, to]. Instants are built in from's location so the
// result carries timezone information. Expansion never drops or deduplicates
// anything: conflict evaluation happens per instance downstream, and
// duplicate suppression across overlapping ranges is the store's
// upsert-by-(schedule, date) contract.
func ExpandWeekly(rule WeeklyRule, from, to time.Time) ([]PlannedSession, error) {
	if rule.Weekday < time.Sunday || rule.Weekday > time.Saturday {
		return nil, &ValidationError{Field: "weekday", Reason: "must be 0-6"}
	}
	if rule.StartMinute < 0 || rule.EndMinute > 24*60 {
		return nil, &ValidationError{Field: "time_of_day", Reason: "outside the day"}
	}
	if rule.EndMinute <= rule.StartMinute {
		return nil, &ValidationError{Field: "time_of_day", Reason: "end must be after start"}
	}
	if to.Before(from) {
		return nil, &ValidationError{Field: "date_range", Reason: "end date before start date"}
	}

	loc := from.Location()
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)

	// Jump to the first matching weekday instead of probing day by day.
	if delta := (int(rule.Weekday) - int(day.Weekday()) + 7) % 7; delta > 0 {
		day = day.AddDate(0, 0, delta)
	}

	planned := make([]PlannedSession, 0)
	for !day.After(last) {
		planned = append(planned, PlannedSession{
			RecurringScheduleID: rule.RecurringScheduleID,
			ClassID:             rule.ClassID,
			Date:                day,
			Start:               day.Add(time.Duration(rule.StartMinute) * time.Minute),
			End:                 day.Add(time.Duration(rule.EndMinute) * time.Minute),
			RoomName:            rule.RoomName,
		})
		day = day.AddDate(0, 0, 7)
	}
	return planned, nil
}
