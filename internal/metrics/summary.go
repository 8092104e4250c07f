package metrics

import (
	"sort"
	"time"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/utils"
)

// HabitStreak pairs a habit with its current streak
type HabitStreak struct {
	Habit  models.Habit `json:"habit"`
	Streak int          `json:"streak"`
}

// Summary describes the week leading up to a reference date
type Summary struct {
	DaysShowedUp   int          `json:"daysShowedUp"`
	TotalDays      int          `json:"totalDays"`
	TotalHabits    int          `json:"totalHabits"`
	CompletedToday int          `json:"completedToday"`
	BestHabit      *HabitStreak `json:"bestHabit,omitempty"`
}

// Streaks returns every active habit's streak at ref, longest first
func (e *Engine) Streaks(ref string) []HabitStreak {
	active := e.ActiveHabits()
	streaks := make([]HabitStreak, 0, len(active))
	for _, h := range active {
		streaks = append(streaks, HabitStreak{Habit: h, Streak: e.Streak(h.ID, ref)})
	}
	sort.SliceStable(streaks, func(i, j int) bool {
		return streaks[i].Streak > streaks[j].Streak
	})
	return streaks
}

// WeeklySummary reports activity over the SummaryWindowDays ending at ref
func (e *Engine) WeeklySummary(ref string) (Summary, error) {
	end, err := utils.ParseDate(ref, time.UTC)
	if err != nil {
		return Summary{}, err
	}
	active := e.ActiveHabits()
	s := Summary{
		TotalDays:   constants.SummaryWindowDays,
		TotalHabits: len(active),
	}

	for i := 0; i < constants.SummaryWindowDays; i++ {
		date := utils.DateKey(end.AddDate(0, 0, -i))
		for _, h := range active {
			if entry, ok := e.log.Entry(date, h.ID); ok && !entry.Empty() {
				s.DaysShowedUp++
				break
			}
		}
	}
	for _, h := range active {
		if e.IsHabitComplete(ref, h) {
			s.CompletedToday++
		}
	}
	if streaks := e.Streaks(ref); len(streaks) > 0 {
		best := streaks[0]
		s.BestHabit = &best
	}
	return s, nil
}
