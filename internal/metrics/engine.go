// Package metrics derives streaks, completion ratios, intensity levels and
// calendar windows from a document's completion log. Nothing here mutates
// the document.
package metrics

import (
	"sort"
	"time"

	"github.com/julianstephens/habitmap/internal/completion"
	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/utils"
)

// Engine computes derived views over one document
type Engine struct {
	doc *models.Document
	log *completion.Log
	now func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the source of "today". The clock's location decides the
// local calendar date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine reading doc. The document must not be mutated
// concurrently with Engine calls.
func New(doc *models.Document, opts ...Option) *Engine {
	if doc == nil {
		doc = &models.Document{}
	}
	e := &Engine{
		doc: doc,
		log: completion.New(doc.Entries),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the local calendar date of the engine's clock
func (e *Engine) Today() string {
	return utils.DateKey(e.now())
}

// Progress is how many of a habit's checkpoints are marked on one day
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Ratio returns Done/Total
func (p Progress) Ratio() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total)
}

// HabitProgress counts marked checkpoints for habit on date
func (e *Engine) HabitProgress(date string, habit models.Habit) Progress {
	return Progress{
		Done:  e.log.MarkedCount(date, habit),
		Total: habit.TotalCheckpoints(),
	}
}

// IsHabitComplete reports whether every checkpoint is marked on date
func (e *Engine) IsHabitComplete(date string, habit models.Habit) bool {
	p := e.HabitProgress(date, habit)
	return p.Total > 0 && p.Done == p.Total
}

// RatioToIntensity bands a completion ratio into heatmap levels 0-4
func RatioToIntensity(ratio float64) int {
	switch {
	case ratio <= 0:
		return 0
	case ratio >= 1:
		return 4
	case ratio >= 0.75:
		return 3
	case ratio >= 0.5:
		return 2
	default:
		return 1
	}
}

// Streak counts consecutive complete days for the habit ending at upto.
// Days after today are skipped rather than breaking the run, and the walk
// never looks further back than StreakScanLimit days.
func (e *Engine) Streak(habitID, upto string) int {
	habit, ok := e.doc.Habit(habitID)
	if !ok {
		return 0
	}
	return e.countBack(upto, func(date string) bool {
		return e.IsHabitComplete(date, habit)
	})
}

// OverallStreak counts consecutive days on which at least one active habit
// has progress, with the same scan bound and future skip as Streak.
func (e *Engine) OverallStreak(upto string) int {
	active := make(map[string]bool)
	for _, h := range e.ActiveHabits() {
		active[h.ID] = true
	}
	return e.countBack(upto, func(date string) bool {
		for habitID, entry := range e.log.Entries()[date] {
			if active[habitID] && !entry.Empty() {
				return true
			}
		}
		return false
	})
}

func (e *Engine) countBack(upto string, counts func(date string) bool) int {
	start, err := utils.ParseDate(upto, time.UTC)
	if err != nil {
		return 0
	}
	today := e.Today()

	streak := 0
	for i := 0; i < constants.StreakScanLimit; i++ {
		date := utils.DateKey(start.AddDate(0, 0, -i))
		if date > today {
			continue
		}
		if !counts(date) {
			break
		}
		streak++
	}
	return streak
}

// WeekProgress is a habit's completion count against its weekly goal
type WeekProgress struct {
	CompletedDays int `json:"completedDays"`
	Target        int `json:"target"`
	Intensity     int `json:"intensity"`
}

// WeeklyProgress counts complete days in the Sunday-start week containing
// weekStart and bands them against the habit's weekly target.
func (e *Engine) WeeklyProgress(weekStart string, habit models.Habit) WeekProgress {
	target := habit.WeeklyTarget
	if target < constants.MinWeeklyTarget || target > constants.MaxWeeklyTarget {
		target = constants.DefaultWeeklyTarget
	}
	wp := WeekProgress{Target: target}

	start, err := WeekStart(weekStart)
	if err != nil {
		return wp
	}
	first, _ := utils.ParseDate(start, time.UTC)
	for i := 0; i < 7; i++ {
		if e.IsHabitComplete(utils.DateKey(first.AddDate(0, 0, i)), habit) {
			wp.CompletedDays++
		}
	}
	wp.Intensity = RatioToIntensity(float64(wp.CompletedDays) / float64(target))
	return wp
}

// WeekStart returns the Sunday on or before date
func WeekStart(date string) (string, error) {
	t, err := utils.ParseDate(date, time.UTC)
	if err != nil {
		return "", err
	}
	return utils.DateKey(utils.WeekStart(t)), nil
}

// ActiveHabits returns non-archived habits ordered by creation time
func (e *Engine) ActiveHabits() []models.Habit {
	return ActiveHabits(e.doc.Habits)
}

// ActiveHabits filters out archived habits and sorts the rest by createdAt.
// Ties keep document order.
func ActiveHabits(habits []models.Habit) []models.Habit {
	active := make([]models.Habit, 0, len(habits))
	for _, h := range habits {
		if !h.Archived {
			active = append(active, h)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		ti, _ := models.ParseTimestamp(active[i].CreatedAt)
		tj, _ := models.ParseTimestamp(active[j].CreatedAt)
		return ti.Before(tj)
	})
	return active
}

// DayLevel is the combined intensity for a date: complete active habits over
// all active habits.
func (e *Engine) DayLevel(date string) int {
	active := e.ActiveHabits()
	if len(active) == 0 {
		return 0
	}
	complete := 0
	for _, h := range active {
		if e.IsHabitComplete(date, h) {
			complete++
		}
	}
	return RatioToIntensity(float64(complete) / float64(len(active)))
}

// Now returns the engine's current time in its local zone
func (e *Engine) Now() time.Time {
	return e.now()
}

// Age is HabitAge as of the local calendar date ref
func (e *Engine) Age(habit models.Habit, ref string) (int, error) {
	day, err := utils.ParseDate(ref, e.now().Location())
	if err != nil {
		return 0, err
	}
	return HabitAge(habit, day), nil
}

// HabitAge is the number of calendar days since the habit was created,
// counting the creation day as day 1.
func HabitAge(habit models.Habit, ref time.Time) int {
	created, err := models.ParseTimestamp(habit.CreatedAt)
	if err != nil {
		return 1
	}
	days := utils.DaysBetween(created.In(ref.Location()), ref)
	if days < 0 {
		days = 0
	}
	return days + 1
}
