package controllers

import (
	"testing"
	"time"

	"classboard_go/models"
	"classboard_go/scheduling"
)

func TestWeeklyRuleConversion(t *testing.T) {
	rule := models.RecurringSchedule{
		ClassID:   7,
		Weekday:   3,
		StartTime: "09:00",
		EndTime:   "10:30",
		RoomName:  "A1",
	}
	rule.ID = 42

	wr := weeklyRule(rule, 9*60, 10*60+30)
	if wr.Weekday != time.Wednesday {
		t.Fatalf("weekday 3 must map to Wednesday, got %v", wr.Weekday)
	}
	if wr.RecurringScheduleID != 42 || wr.ClassID != 7 || wr.RoomName != "A1" {
		t.Fatalf("identity fields lost in conversion: %+v", wr)
	}
	if wr.StartMinute != 540 || wr.EndMinute != 630 {
		t.Fatalf("minute window lost in conversion: %+v", wr)
	}

	// The converted rule must feed the expander directly.
	planned, err := scheduling.ExpandWeekly(wr,
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(planned) != 1 || planned[0].Date.Weekday() != time.Wednesday {
		t.Fatalf("expected one Wednesday instance, got %+v", planned)
	}
}
