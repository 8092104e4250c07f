package metrics

import (
	"testing"
	"time"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/utils"
)

// Wednesday; the surrounding week runs 2024-06-09 (Sun) to 2024-06-15 (Sat)
var testNow = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)

func setupTestEngine(t *testing.T, habits ...models.Habit) (*Engine, *models.Document) {
	t.Helper()
	doc := models.NewDocument(testNow)
	doc.Habits = habits
	return New(doc, WithClock(func() time.Time { return testNow })), doc
}

func testHabit(id string, subs ...string) models.Habit {
	h := models.Habit{
		ID:           id,
		Name:         id,
		CreatedAt:    "2024-01-01T00:00:00.000Z",
		HeatmapView:  constants.ViewMonth,
		WeeklyTarget: 3,
	}
	if len(subs) == 0 {
		subs = []string{id + "-sub-1"}
	}
	for _, s := range subs {
		h.SubHabits = append(h.SubHabits, models.SubHabit{ID: s, Name: s})
	}
	return h
}

func mark(doc *models.Document, date string, habit models.Habit, subs ...string) {
	if len(subs) == 0 {
		subs = habit.SubHabitIDs()
	}
	day, ok := doc.Entries[date]
	if !ok {
		day = map[string]models.Entry{}
		doc.Entries[date] = day
	}
	marks := map[string]bool{}
	for _, s := range subs {
		marks[s] = true
	}
	day[habit.ID] = models.Entry{SubHabits: marks, UpdatedAt: models.FormatTimestamp(testNow)}
}

func daysBefore(date string, n int) string {
	key, _ := utils.ShiftKey(date, -n)
	return key
}

func TestRatioToIntensity(t *testing.T) {
	tests := []struct {
		ratio float64
		want  int
	}{
		{-1, 0},
		{0, 0},
		{0.01, 1},
		{0.49, 1},
		{0.5, 2},
		{2.0 / 3.0, 2},
		{0.75, 3},
		{0.99, 3},
		{1, 4},
		{2.5, 4},
	}
	for _, tt := range tests {
		if got := RatioToIntensity(tt.ratio); got != tt.want {
			t.Errorf("RatioToIntensity(%v) = %d, want %d", tt.ratio, got, tt.want)
		}
	}
}

func TestHabitProgress(t *testing.T) {
	habit := testHabit("h", "a", "b", "c")
	e, doc := setupTestEngine(t, habit)

	mark(doc, "2024-06-12", habit, "a", "b", "removed-checkpoint")

	p := e.HabitProgress("2024-06-12", habit)
	if p.Done != 2 || p.Total != 3 {
		t.Errorf("HabitProgress = %+v, want 2/3", p)
	}
	if p.Done > p.Total {
		t.Error("done must never exceed total")
	}
	if e.IsHabitComplete("2024-06-12", habit) {
		t.Error("2/3 must not be complete")
	}

	mark(doc, "2024-06-11", habit)
	if !e.IsHabitComplete("2024-06-11", habit) {
		t.Error("all checkpoints marked should be complete")
	}

	none := e.HabitProgress("2024-06-01", habit)
	if none.Done != 0 || none.Total != 3 {
		t.Errorf("missing entry progress = %+v, want 0/3", none)
	}

	bare := models.Habit{ID: "bare"}
	if got := e.HabitProgress("2024-06-12", bare).Total; got != 1 {
		t.Errorf("habit without checkpoints should have total 1, got %d", got)
	}
}

func TestStreak(t *testing.T) {
	habit := testHabit("h", "a", "b")
	e, doc := setupTestEngine(t, habit)

	mark(doc, "2024-06-12", habit)
	mark(doc, "2024-06-11", habit)
	mark(doc, "2024-06-10", habit)
	mark(doc, "2024-06-09", habit, "a") // partial breaks the run
	mark(doc, "2024-06-08", habit)

	tests := []struct {
		name string
		upto string
		want int
	}{
		{"today", "2024-06-12", 3},
		{"yesterday", "2024-06-11", 2},
		{"partial day", "2024-06-09", 0},
		{"before partial", "2024-06-08", 1},
		{"future reference skips ahead", "2024-06-20", 3},
		{"invalid date", "junk", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Streak(habit.ID, tt.upto); got != tt.want {
				t.Errorf("Streak(%s) = %d, want %d", tt.upto, got, tt.want)
			}
		})
	}

	if got := e.Streak("unknown", "2024-06-12"); got != 0 {
		t.Errorf("unknown habit streak = %d, want 0", got)
	}
}

func TestStreakMonotonicWhenCompletingEarlierDay(t *testing.T) {
	habit := testHabit("h")
	e, doc := setupTestEngine(t, habit)

	mark(doc, "2024-06-12", habit)
	mark(doc, "2024-06-10", habit)

	before := map[string]int{}
	dates := []string{"2024-06-09", "2024-06-10", "2024-06-11", "2024-06-12"}
	for _, d := range dates {
		before[d] = e.Streak(habit.ID, d)
	}

	mark(doc, "2024-06-11", habit)
	for _, d := range dates {
		if after := e.Streak(habit.ID, d); after < before[d] {
			t.Errorf("streak at %s decreased from %d to %d", d, before[d], after)
		}
	}
	if got := e.Streak(habit.ID, "2024-06-12"); got != 3 {
		t.Errorf("Streak after filling gap = %d, want 3", got)
	}
}

func TestStreakScanIsBounded(t *testing.T) {
	habit := testHabit("h")
	e, doc := setupTestEngine(t, habit)

	for i := 0; i < 400; i++ {
		mark(doc, daysBefore("2024-06-12", i), habit)
	}
	if got := e.Streak(habit.ID, "2024-06-12"); got != constants.StreakScanLimit {
		t.Errorf("Streak = %d, want capped at %d", got, constants.StreakScanLimit)
	}
}

func TestOverallStreakIgnoresArchivedHabits(t *testing.T) {
	walk := testHabit("walk", "a", "b")
	old := testHabit("old")
	old.Archived = true
	e, doc := setupTestEngine(t, walk, old)

	mark(doc, "2024-06-12", walk, "a")
	mark(doc, "2024-06-11", old)
	mark(doc, "2024-06-10", walk)

	if got := e.OverallStreak("2024-06-12"); got != 1 {
		t.Errorf("OverallStreak = %d, want 1", got)
	}
	if got := e.OverallStreak("2024-06-10"); got != 1 {
		t.Errorf("OverallStreak(06-10) = %d, want 1", got)
	}
}

func TestWeeklyProgress(t *testing.T) {
	habit := testHabit("h")
	habit.WeeklyTarget = 3
	e, doc := setupTestEngine(t, habit)

	mark(doc, "2024-06-09", habit)
	mark(doc, "2024-06-11", habit)
	mark(doc, "2024-06-16", habit) // next week

	for _, start := range []string{"2024-06-09", "2024-06-12"} {
		wp := e.WeeklyProgress(start, habit)
		if wp.CompletedDays != 2 || wp.Target != 3 || wp.Intensity != 2 {
			t.Errorf("WeeklyProgress(%s) = %+v, want 2/3 at intensity 2", start, wp)
		}
	}

	mark(doc, "2024-06-12", habit)
	mark(doc, "2024-06-13", habit)
	if wp := e.WeeklyProgress("2024-06-09", habit); wp.Intensity != 4 {
		t.Errorf("exceeding the target should be intensity 4, got %+v", wp)
	}
}

func TestWeekStart(t *testing.T) {
	tests := map[string]string{
		"2024-06-09": "2024-06-09",
		"2024-06-12": "2024-06-09",
		"2024-06-15": "2024-06-09",
		"2024-03-01": "2024-02-25",
	}
	for in, want := range tests {
		got, err := WeekStart(in)
		if err != nil || got != want {
			t.Errorf("WeekStart(%s) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := WeekStart("2024-13-01"); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestActiveHabitsAndDayLevel(t *testing.T) {
	later := testHabit("later")
	later.CreatedAt = "2024-03-01T00:00:00.000Z"
	earlier := testHabit("earlier")
	earlier.CreatedAt = "2024-02-01T00:00:00.000Z"
	archived := testHabit("archived")
	archived.Archived = true
	e, doc := setupTestEngine(t, later, archived, earlier)

	active := e.ActiveHabits()
	if len(active) != 2 || active[0].ID != "earlier" || active[1].ID != "later" {
		t.Fatalf("ActiveHabits order = %v", active)
	}

	mark(doc, "2024-06-12", earlier)
	mark(doc, "2024-06-12", archived)
	if got := e.DayLevel("2024-06-12"); got != 2 {
		t.Errorf("DayLevel with 1 of 2 active complete = %d, want 2", got)
	}
	if got := e.DayLevel("2024-06-11"); got != 0 {
		t.Errorf("DayLevel for empty day = %d, want 0", got)
	}
}

func TestHabitAge(t *testing.T) {
	tests := []struct {
		name      string
		createdAt string
		want      int
	}{
		{"created today", "2024-06-12T08:00:00.000Z", 1},
		{"two days ago", "2024-06-10T23:00:00.000Z", 3},
		{"in the future", "2024-07-01T00:00:00.000Z", 1},
		{"unparsable", "nope", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := models.Habit{CreatedAt: tt.createdAt}
			if got := HabitAge(h, testNow); got != tt.want {
				t.Errorf("HabitAge = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWeeklySummary(t *testing.T) {
	walk := testHabit("walk")
	read := testHabit("read", "ch1", "ch2")
	e, doc := setupTestEngine(t, walk, read)

	mark(doc, "2024-06-12", walk)
	mark(doc, "2024-06-12", read, "ch1")
	mark(doc, "2024-06-11", walk)
	mark(doc, "2024-06-08", read, "ch2")
	mark(doc, "2024-06-01", walk) // outside the 7-day window

	s, err := e.WeeklySummary("2024-06-12")
	if err != nil {
		t.Fatalf("WeeklySummary failed: %v", err)
	}
	if s.DaysShowedUp != 3 {
		t.Errorf("DaysShowedUp = %d, want 3", s.DaysShowedUp)
	}
	if s.TotalDays != 7 || s.TotalHabits != 2 {
		t.Errorf("TotalDays/TotalHabits = %d/%d, want 7/2", s.TotalDays, s.TotalHabits)
	}
	if s.CompletedToday != 1 {
		t.Errorf("CompletedToday = %d, want 1", s.CompletedToday)
	}
	if s.BestHabit == nil || s.BestHabit.Habit.ID != "walk" || s.BestHabit.Streak != 2 {
		t.Errorf("BestHabit = %+v, want walk with 2", s.BestHabit)
	}
}

func TestAgeUsesEngineZone(t *testing.T) {
	zone := time.FixedZone("UTC-4", -4*60*60)
	// 22:00 on 2024-06-11 locally, already 2024-06-12 in UTC
	now := time.Date(2024, 6, 12, 2, 0, 0, 0, time.UTC).In(zone)
	h := models.Habit{CreatedAt: "2024-06-11T23:30:00.000Z"}
	e := New(models.NewDocument(now), WithClock(func() time.Time { return now }))

	if got := e.Today(); got != "2024-06-11" {
		t.Fatalf("Today = %s, want 2024-06-11", got)
	}
	if !e.Now().Equal(now) {
		t.Errorf("Now = %v, want %v", e.Now(), now)
	}
	age, err := e.Age(h, e.Today())
	if err != nil {
		t.Fatalf("Age failed: %v", err)
	}
	if age != 1 {
		t.Errorf("Age = %d, want 1 (created earlier the same local day)", age)
	}
	if age, _ := e.Age(h, "2024-06-20"); age != 10 {
		t.Errorf("Age on 2024-06-20 = %d, want 10", age)
	}
	if _, err := e.Age(h, "June"); err == nil {
		t.Error("expected error for invalid reference date")
	}
}
