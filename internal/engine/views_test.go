package engine

import (
	"context"
	"testing"
	"time"

	"github.com/julianstephens/evertodo/internal/models"
	"github.com/julianstephens/evertodo/internal/recur"
)

func TestTodayView_WeeklyPatternMatchingToday(t *testing.T) {
	today := localDate(2026, time.March, 9) // Monday
	todos := []models.Todo{{
		ID:   "1",
		Text: "weekly review",
		RecurringPattern: &models.RecurringPattern{
			Type:       models.PatternWeekly,
			DaysOfWeek: []time.Weekday{today.Weekday()},
		},
	}}

	entries := TodayView(todos, nil, today, FilterAll, "")
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want exactly 1", len(entries))
	}
	if !recur.SameDay(entries[0].VirtualDate, today) {
		t.Errorf("VirtualDate = %v, want %v", entries[0].VirtualDate, today)
	}
	if entries[0].OccurrenceCompleted != nil {
		t.Errorf("OccurrenceCompleted = %v, want unknown (nil)", *entries[0].OccurrenceCompleted)
	}
}

func TestTodayView_IncludesNonRecurringDueToday(t *testing.T) {
	today := localDate(2026, time.March, 9)
	yesterday := today.AddDate(0, 0, -1)
	todos := []models.Todo{
		{ID: "1", Text: "due today", DueDate: &today},
		{ID: "2", Text: "due yesterday", DueDate: &yesterday},
		{ID: "3", Text: "undated"},
	}

	entries := TodayView(todos, nil, today, FilterAll, "")
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ID != "1" {
		t.Errorf("entry ID = %q, want %q", entries[0].ID, "1")
	}
}

func TestTodayView_SearchAndCompletionFilters(t *testing.T) {
	today := localDate(2026, time.March, 9)
	todos := []models.Todo{
		{ID: "1", Text: "buy groceries", DueDate: &today},
		{ID: "2", Text: "buy stamps", DueDate: &today, Completed: true},
		{ID: "3", Text: "water plants", DueDate: &today},
	}

	if got := TodayView(todos, nil, today, FilterAll, "buy"); len(got) != 2 {
		t.Errorf("search 'buy': got %d entries, want 2", len(got))
	}
	if got := TodayView(todos, nil, today, FilterActive, "buy"); len(got) != 1 {
		t.Errorf("search 'buy' active: got %d entries, want 1", len(got))
	}
	if got := TodayView(todos, nil, today, FilterCompleted, ""); len(got) != 1 {
		t.Errorf("completed: got %d entries, want 1", len(got))
	}
	if got := TodayView(todos, nil, today, FilterAll, "BUY GROCERIES"); len(got) != 1 {
		t.Errorf("case-insensitive search: got %d entries, want 1", len(got))
	}
}

func TestFilterPartition(t *testing.T) {
	today := localDate(2026, time.March, 9)
	now := time.Now()
	todos := []models.Todo{
		{ID: "1", Text: "open", DueDate: &today},
		{ID: "2", Text: "closed", DueDate: &today, Completed: true},
		{ID: "3", Text: "daily", RecurringPattern: &models.RecurringPattern{Type: models.PatternDaily}},
	}
	ledger := CompletionIndex{
		models.VirtualKeyFor("3", today): {TodoID: "3", ScheduledDate: today, CompletedAt: &now},
	}

	all := TodayView(todos, ledger, today, FilterAll, "")
	active := TodayView(todos, ledger, today, FilterActive, "")
	completed := TodayView(todos, ledger, today, FilterCompleted, "")

	if len(active)+len(completed) != len(all) {
		t.Fatalf("partition broken: %d active + %d completed != %d all",
			len(active), len(completed), len(all))
	}
	seen := make(map[string]int)
	for _, v := range active {
		seen[v.VirtualKey]++
	}
	for _, v := range completed {
		seen[v.VirtualKey]++
	}
	for _, v := range all {
		if seen[v.VirtualKey] != 1 {
			t.Errorf("entry %q appears %d times across active/completed, want exactly 1",
				v.VirtualKey, seen[v.VirtualKey])
		}
	}
}

func TestUpcomingView_GroupsAscendingByDate(t *testing.T) {
	today := localDate(2026, time.March, 9)
	wednesday := localDate(2026, time.March, 11)
	todos := []models.Todo{
		{ID: "1", Text: "midweek", DueDate: &wednesday},
		{ID: "2", Text: "daily", RecurringPattern: &models.RecurringPattern{Type: models.PatternDaily}},
	}

	groups := UpcomingView(todos, nil, today, 7)
	if len(groups) != 8 {
		t.Fatalf("got %d date groups, want 8", len(groups))
	}
	for i := 1; i < len(groups); i++ {
		if !groups[i-1].Date.Before(groups[i].Date) {
			t.Errorf("groups not ascending: %v before %v", groups[i-1].Date, groups[i].Date)
		}
	}

	var wedGroup *DateGroup
	for i := range groups {
		if recur.SameDay(groups[i].Date, wednesday) {
			wedGroup = &groups[i]
		}
	}
	if wedGroup == nil {
		t.Fatal("no group for the explicit due date")
	}
	if len(wedGroup.Entries) != 2 {
		t.Errorf("wednesday group has %d entries, want 2", len(wedGroup.Entries))
	}
}

func TestUpcomingView_TimeOfDayOrdering(t *testing.T) {
	today := localDate(2026, time.March, 9)
	morningReminder := time.Date(2026, time.March, 9, 8, 0, 0, 0, time.Local)
	lateDue := time.Date(2026, time.March, 9, 21, 0, 0, 0, time.Local)
	midnightDue := today // zero clock: treated as having no time

	todos := []models.Todo{
		{ID: "1", Text: "no time", DueDate: &midnightDue},
		{ID: "2", Text: "morning reminder", DueDate: &midnightDue, ReminderAt: &morningReminder},
		{ID: "3", Text: "late evening", DueDate: &lateDue},
		{
			ID:   "4",
			Text: "noon notify",
			RecurringPattern: &models.RecurringPattern{
				Type:     models.PatternDaily,
				NotifyAt: "12:00",
			},
		},
	}

	groups := UpcomingView(todos, nil, today, 0)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	got := make([]string, 0, len(groups[0].Entries))
	for _, v := range groups[0].Entries {
		got = append(got, v.ID)
	}
	// 21:00 due > 12:00 notify > 08:00 reminder > no time last.
	want := []string{"3", "4", "2", "1"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestOverdueView_NonRecurringBeforeToday(t *testing.T) {
	today := localDate(2026, time.March, 9)
	lastWeek := today.AddDate(0, 0, -5)
	tomorrow := today.AddDate(0, 0, 1)
	todos := []models.Todo{
		{ID: "1", Text: "missed", DueDate: &lastWeek},
		{ID: "2", Text: "done late", DueDate: &lastWeek, Completed: true},
		{ID: "3", Text: "due today", DueDate: &today},
		{ID: "4", Text: "future", DueDate: &tomorrow},
	}

	groups := OverdueView(todos, nil, today, 7, FilterAll)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	// Completed-but-overdue stays visible under the all filter.
	if len(groups[0].Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(groups[0].Entries))
	}
	// Active entries sort before completed within a date.
	if groups[0].Entries[0].ID != "1" {
		t.Errorf("first entry = %q, want active todo first", groups[0].Entries[0].ID)
	}

	active := OverdueView(todos, nil, today, 7, FilterActive)
	if len(active) != 1 || len(active[0].Entries) != 1 {
		t.Fatalf("active filter: got %+v, want one group with one entry", active)
	}
	if active[0].Entries[0].ID != "1" {
		t.Errorf("active entry = %q, want %q", active[0].Entries[0].ID, "1")
	}
}

func TestOverdueView_MonthlyMissedThreeDaysAgo(t *testing.T) {
	today := localDate(2026, time.March, 9)
	missed := localDate(2026, time.March, 6)
	todos := []models.Todo{{
		ID:   "1",
		Text: "pay rent",
		RecurringPattern: &models.RecurringPattern{
			Type:       models.PatternMonthly,
			DayOfMonth: 6,
		},
	}}

	groups := OverdueView(todos, nil, today, 7, FilterAll)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if !recur.SameDay(groups[0].Date, missed) {
		t.Errorf("group date = %v, want %v", groups[0].Date, missed)
	}
	entry := groups[0].Entries[0]
	if entry.Done() {
		t.Error("never-completed occurrence reported as done")
	}

	// With a completed ledger entry the date still appears under the all
	// filter but drops out of the active filter.
	now := time.Now()
	ledger := CompletionIndex{
		models.VirtualKeyFor("1", missed): {TodoID: "1", ScheduledDate: missed, CompletedAt: &now},
	}
	all := OverdueView(todos, ledger, today, 7, FilterAll)
	if len(all) != 1 || !all[0].Entries[0].Done() {
		t.Error("completed occurrence missing or not flagged under all filter")
	}
	if got := OverdueView(todos, ledger, today, 7, FilterActive); len(got) != 0 {
		t.Errorf("active filter: got %d groups, want 0", len(got))
	}
}

func TestOverdueView_ExcludesTodayAndGroupsDescending(t *testing.T) {
	today := localDate(2026, time.March, 9)
	todos := []models.Todo{{
		ID:               "1",
		Text:             "daily",
		RecurringPattern: &models.RecurringPattern{Type: models.PatternDaily},
	}}

	groups := OverdueView(todos, nil, today, 7, FilterAll)
	if len(groups) != 7 {
		t.Fatalf("got %d groups, want 7 (trailing week excluding today)", len(groups))
	}
	for i, g := range groups {
		if recur.SameDay(g.Date, today) {
			t.Error("today appears in the overdue view")
		}
		if i > 0 && !g.Date.Before(groups[i-1].Date) {
			t.Errorf("groups not descending at index %d", i)
		}
	}
	if !recur.SameDay(groups[0].Date, today.AddDate(0, 0, -1)) {
		t.Errorf("first group = %v, want yesterday", groups[0].Date)
	}
}

func TestEngineViews_EndToEnd(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	due := localDate(2026, time.March, 9)
	if _, err := store.CreateTodo(ctx, "alice", models.Todo{
		Text:             "daily walk",
		DueDate:          &due,
		RecurringPattern: &models.RecurringPattern{Type: models.PatternDaily},
	}); err != nil {
		t.Fatalf("CreateTodo() returned error: %v", err)
	}

	eng := New(store, "alice")
	eng.now = func() time.Time {
		return time.Date(2026, time.March, 9, 10, 0, 0, 0, time.Local)
	}

	entries, err := eng.Today(ctx, FilterAll, "")
	if err != nil {
		t.Fatalf("Today() returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Today(): got %d entries, want 1", len(entries))
	}

	groups, err := eng.Upcoming(ctx)
	if err != nil {
		t.Fatalf("Upcoming() returned error: %v", err)
	}
	if len(groups) != 8 {
		t.Errorf("Upcoming(): got %d groups, want 8", len(groups))
	}

	overdue, err := eng.Overdue(ctx, FilterActive)
	if err != nil {
		t.Fatalf("Overdue() returned error: %v", err)
	}
	if len(overdue) != 7 {
		t.Errorf("Overdue(): got %d groups, want 7", len(overdue))
	}
}

func TestEngine_SetWindows(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	due := localDate(2026, time.March, 9)
	if _, err := store.CreateTodo(ctx, "alice", models.Todo{
		Text:             "daily walk",
		DueDate:          &due,
		RecurringPattern: &models.RecurringPattern{Type: models.PatternDaily},
	}); err != nil {
		t.Fatalf("CreateTodo() returned error: %v", err)
	}

	eng := New(store, "alice")
	eng.now = func() time.Time {
		return time.Date(2026, time.March, 9, 10, 0, 0, 0, time.Local)
	}
	eng.SetWindows(3, 2)

	groups, err := eng.Upcoming(ctx)
	if err != nil {
		t.Fatalf("Upcoming() returned error: %v", err)
	}
	if len(groups) != 4 {
		t.Errorf("Upcoming() with a 3-day window: got %d groups, want 4", len(groups))
	}

	overdue, err := eng.Overdue(ctx, FilterActive)
	if err != nil {
		t.Fatalf("Overdue() returned error: %v", err)
	}
	if len(overdue) != 2 {
		t.Errorf("Overdue() with a 2-day lookback: got %d groups, want 2", len(overdue))
	}

	// Non-positive overrides keep the current sizes.
	eng.SetWindows(0, -1)
	groups, err = eng.Upcoming(ctx)
	if err != nil {
		t.Fatalf("Upcoming() returned error: %v", err)
	}
	if len(groups) != 4 {
		t.Errorf("Upcoming() after SetWindows(0, -1): got %d groups, want 4", len(groups))
	}
}
