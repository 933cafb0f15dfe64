package recur

import (
	"testing"
	"time"

	"github.com/julianstephens/evertodo/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestMatches_DailyMatchesEveryDate(t *testing.T) {
	p := &models.RecurringPattern{Type: models.PatternDaily}

	d := date(2026, time.January, 1)
	for i := 0; i < 400; i++ {
		if !Matches(p, d) {
			t.Fatalf("daily pattern did not match %s", FormatDate(d))
		}
		d = d.AddDate(0, 0, 1)
	}
}

func TestMatches_DailyRespectsEndDate(t *testing.T) {
	p := &models.RecurringPattern{
		Type:    models.PatternDaily,
		EndDate: datePtr(2026, time.March, 15),
	}

	if !Matches(p, date(2026, time.March, 15)) {
		t.Errorf("expected match on the end date itself")
	}
	if Matches(p, date(2026, time.March, 16)) {
		t.Errorf("expected no match after the end date")
	}
}

func TestMatches_WeeklyMatchesOnlyListedWeekdays(t *testing.T) {
	p := &models.RecurringPattern{
		Type:       models.PatternWeekly,
		DaysOfWeek: []time.Weekday{time.Monday, time.Thursday},
	}

	d := date(2026, time.February, 1) // a Sunday
	for i := 0; i < 28; i++ {
		want := d.Weekday() == time.Monday || d.Weekday() == time.Thursday
		if got := Matches(p, d); got != want {
			t.Errorf("%s (%s): got %v, want %v", FormatDate(d), d.Weekday(), got, want)
		}
		d = d.AddDate(0, 0, 1)
	}
}

func TestMatches_WeeklyEmptyWeekdaySetNeverMatches(t *testing.T) {
	p := &models.RecurringPattern{Type: models.PatternWeekly}

	d := date(2026, time.February, 1)
	for i := 0; i < 7; i++ {
		if Matches(p, d) {
			t.Fatalf("weekly pattern with no weekdays matched %s", FormatDate(d))
		}
		d = d.AddDate(0, 0, 1)
	}
}

func TestMatches_CustomUsesWeekdaySet(t *testing.T) {
	p := &models.RecurringPattern{
		Type:       models.PatternCustom,
		DaysOfWeek: []time.Weekday{time.Saturday, time.Sunday},
	}

	if !Matches(p, date(2026, time.February, 7)) { // Saturday
		t.Errorf("expected custom pattern to match Saturday")
	}
	if Matches(p, date(2026, time.February, 9)) { // Monday
		t.Errorf("expected custom pattern not to match Monday")
	}
}

func TestMatches_MonthlySkipsMonthsWithoutTargetDay(t *testing.T) {
	p := &models.RecurringPattern{Type: models.PatternMonthly, DayOfMonth: 31}

	if !Matches(p, date(2026, time.January, 31)) {
		t.Errorf("expected match on Jan 31")
	}
	// February 2026 has no day 31; no date in it should match.
	d := date(2026, time.February, 1)
	for d.Month() == time.February {
		if Matches(p, d) {
			t.Fatalf("day-31 pattern matched %s", FormatDate(d))
		}
		d = d.AddDate(0, 0, 1)
	}
	if !Matches(p, date(2026, time.March, 31)) {
		t.Errorf("expected match on Mar 31")
	}
}

func TestMatches_YearlyLeapDay(t *testing.T) {
	p := &models.RecurringPattern{
		Type:        models.PatternYearly,
		MonthOfYear: time.February,
		DayOfMonth:  29,
	}

	if !Matches(p, date(2028, time.February, 29)) {
		t.Errorf("expected match on leap day 2028")
	}
	// 2027 is not a leap year; nothing in it matches.
	d := date(2027, time.January, 1)
	for d.Year() == 2027 {
		if Matches(p, d) {
			t.Fatalf("Feb-29 pattern matched %s", FormatDate(d))
		}
		d = d.AddDate(0, 0, 1)
	}
}

func TestMatches_NilPattern(t *testing.T) {
	if Matches(nil, date(2026, time.January, 1)) {
		t.Errorf("nil pattern must never match")
	}
}

func TestMatches_DailyIntervalAnchored(t *testing.T) {
	p := &models.RecurringPattern{
		Type:     models.PatternDaily,
		Interval: 3,
		Anchor:   datePtr(2026, time.January, 1),
	}

	cases := []struct {
		day  int
		want bool
	}{
		{1, true}, {2, false}, {3, false}, {4, true}, {5, false}, {7, true},
	}
	for _, tc := range cases {
		d := date(2026, time.January, tc.day)
		if got := Matches(p, d); got != tc.want {
			t.Errorf("Jan %d: got %v, want %v", tc.day, got, tc.want)
		}
	}
}

func TestMatches_DailyIntervalBeforeAnchor(t *testing.T) {
	p := &models.RecurringPattern{
		Type:     models.PatternDaily,
		Interval: 3,
		Anchor:   datePtr(2026, time.January, 10),
	}

	// Matching must work for dates before the anchor too.
	if !Matches(p, date(2026, time.January, 7)) {
		t.Errorf("expected match 3 days before the anchor")
	}
	if Matches(p, date(2026, time.January, 9)) {
		t.Errorf("expected no match 1 day before the anchor")
	}
}

func TestMatches_DailyIntervalWithoutAnchorMatchesEveryDay(t *testing.T) {
	p := &models.RecurringPattern{Type: models.PatternDaily, Interval: 3}

	d := date(2026, time.January, 1)
	for i := 0; i < 10; i++ {
		if !Matches(p, d) {
			t.Fatalf("anchorless interval pattern did not match %s", FormatDate(d))
		}
		d = d.AddDate(0, 0, 1)
	}
}

func TestMatches_WeeklyIntervalAnchored(t *testing.T) {
	// Every 2 weeks on Monday, anchored in the week of Jan 4 2026 (Sunday).
	p := &models.RecurringPattern{
		Type:       models.PatternWeekly,
		Interval:   2,
		DaysOfWeek: []time.Weekday{time.Monday},
		Anchor:     datePtr(2026, time.January, 5),
	}

	if !Matches(p, date(2026, time.January, 5)) {
		t.Errorf("expected match on the anchor Monday")
	}
	if Matches(p, date(2026, time.January, 12)) {
		t.Errorf("expected no match on the off week")
	}
	if !Matches(p, date(2026, time.January, 19)) {
		t.Errorf("expected match two weeks after the anchor")
	}
}

func TestNextOccurrence_DailyIsTomorrow(t *testing.T) {
	p := &models.RecurringPattern{Type: models.PatternDaily}

	next, ok := NextOccurrence(p, date(2026, time.January, 22))
	if !ok {
		t.Fatalf("expected an occurrence")
	}
	if !next.Equal(date(2026, time.January, 23)) {
		t.Errorf("got %s, want 2026-01-23", FormatDate(next))
	}
}

func TestNextOccurrence_StrictlyAfter(t *testing.T) {
	p := &models.RecurringPattern{
		Type:       models.PatternWeekly,
		DaysOfWeek: []time.Weekday{time.Wednesday},
	}

	// Starting on a Wednesday must land on the following Wednesday.
	start := date(2025, time.December, 31) // Wednesday
	next, ok := NextOccurrence(p, start)
	if !ok {
		t.Fatalf("expected an occurrence")
	}
	if !next.Equal(date(2026, time.January, 7)) {
		t.Errorf("got %s, want 2026-01-07", FormatDate(next))
	}
}

func TestNextOccurrence_NoneAfterEndDate(t *testing.T) {
	p := &models.RecurringPattern{
		Type:    models.PatternDaily,
		EndDate: datePtr(2026, time.January, 22),
	}

	if _, ok := NextOccurrence(p, date(2026, time.January, 22)); ok {
		t.Errorf("expected no occurrence past the end date")
	}
}

func TestNextOccurrence_MonthlyDay31SkipsShortMonths(t *testing.T) {
	p := &models.RecurringPattern{Type: models.PatternMonthly, DayOfMonth: 31}

	next, ok := NextOccurrence(p, date(2026, time.January, 31))
	if !ok {
		t.Fatalf("expected an occurrence")
	}
	// February and (for day 31) no match until March 31.
	if !next.Equal(date(2026, time.March, 31)) {
		t.Errorf("got %s, want 2026-03-31", FormatDate(next))
	}
}

func TestNextOccurrence_WeeklyEmptySetReturnsFalse(t *testing.T) {
	p := &models.RecurringPattern{Type: models.PatternWeekly}

	if _, ok := NextOccurrence(p, date(2026, time.January, 1)); ok {
		t.Errorf("expected no occurrence for an empty weekday set")
	}
}

func TestDateOnly_StripsTimeOfDay(t *testing.T) {
	ts := time.Date(2026, time.June, 3, 23, 59, 58, 0, time.Local)
	got := DateOnly(ts)
	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 {
		t.Errorf("DateOnly left time-of-day: %v", got)
	}
	if got.Day() != 3 {
		t.Errorf("DateOnly moved the calendar date: %v", got)
	}
}

func TestDaysBetween(t *testing.T) {
	cases := []struct {
		a, b time.Time
		want int
	}{
		{date(2026, time.January, 1), date(2026, time.January, 1), 0},
		{date(2026, time.January, 1), date(2026, time.January, 4), 3},
		{date(2026, time.January, 4), date(2026, time.January, 1), -3},
		{date(2026, time.February, 27), date(2026, time.March, 2), 3},
	}
	for _, tc := range cases {
		if got := DaysBetween(tc.a, tc.b); got != tc.want {
			t.Errorf("DaysBetween(%s, %s) = %d, want %d",
				FormatDate(tc.a), FormatDate(tc.b), got, tc.want)
		}
	}
}
