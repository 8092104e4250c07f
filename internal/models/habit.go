package models

import "github.com/julianstephens/habitmap/internal/constants"

// SubHabit is one checkpoint of a habit. All checkpoints must be marked for
// the habit to count as complete on a day.
type SubHabit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Habit represents a recurring practice to track
type Habit struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Color        string                `json:"color"`
	Archived     bool                  `json:"archived"`
	CreatedAt    string                `json:"createdAt"` // RFC3339
	SubHabits    []SubHabit            `json:"subHabits"`
	HeatmapView  constants.HeatmapView `json:"heatmapView"`
	WeeklyTarget int                   `json:"weeklyTarget"`
	HideFuture   bool                  `json:"hideFuture"`
}

// TotalCheckpoints is the denominator for progress; never below one.
func (h Habit) TotalCheckpoints() int {
	if len(h.SubHabits) < 1 {
		return 1
	}
	return len(h.SubHabits)
}

// HasSubHabit reports whether id names one of the habit's checkpoints
func (h Habit) HasSubHabit(id string) bool {
	for _, sub := range h.SubHabits {
		if sub.ID == id {
			return true
		}
	}
	return false
}

// SubHabitIDs returns the checkpoint ids in order
func (h Habit) SubHabitIDs() []string {
	ids := make([]string, 0, len(h.SubHabits))
	for _, sub := range h.SubHabits {
		ids = append(ids, sub.ID)
	}
	return ids
}

// EffectiveView returns the habit's own view, falling back to the document setting
func (h Habit) EffectiveView(settings Settings) constants.HeatmapView {
	if h.HeatmapView.Valid() {
		return h.HeatmapView
	}
	if settings.HeatmapView.Valid() {
		return settings.HeatmapView
	}
	return constants.DefaultHeatmapView
}
