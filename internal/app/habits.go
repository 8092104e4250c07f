package app

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/habitmap/internal/completion"
	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/utils"
)

// HabitInput describes a new habit
type HabitInput struct {
	Name         string
	Color        string
	SubHabits    []string
	WeeklyTarget int
	HeatmapView  constants.HeatmapView
	HideFuture   bool
}

// AddHabit creates a habit. Without checkpoint names the habit gets a single
// checkpoint named after itself.
func (a *App) AddHabit(in HabitInput) (models.Habit, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Habit{}, fmt.Errorf("%w: habit name is required", ErrInvalidInput)
	}
	if in.HeatmapView != "" && !in.HeatmapView.Valid() {
		return models.Habit{}, fmt.Errorf("%w: unknown view %q", ErrInvalidInput, in.HeatmapView)
	}

	var habit models.Habit
	err := a.mutate(func(doc *models.Document) error {
		habit = models.Habit{
			ID:           uuid.NewString(),
			Name:         name,
			Color:        in.Color,
			CreatedAt:    models.FormatTimestamp(a.now()),
			SubHabits:    rebuildSubHabits(nil, in.SubHabits, name),
			HeatmapView:  in.HeatmapView,
			WeeklyTarget: clampTarget(in.WeeklyTarget),
			HideFuture:   in.HideFuture,
		}
		if habit.Color == "" {
			habit.Color = constants.PaletteColor(len(doc.Habits))
		}
		if habit.HeatmapView == "" {
			habit.HeatmapView = doc.Settings.HeatmapView
		}
		doc.Habits = append(doc.Habits, habit)
		return nil
	})
	return habit, err
}

// UpdateHabit renames a habit and replaces its checkpoints. Existing
// checkpoint ids are kept for names that survive, then by position, so
// history follows the checkpoint. Marks for removed checkpoints are pruned.
func (a *App) UpdateHabit(id, name string, subHabits []string) (models.Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Habit{}, fmt.Errorf("%w: habit name is required", ErrInvalidInput)
	}

	var habit models.Habit
	err := a.updateHabit(id, func(doc *models.Document, h *models.Habit) error {
		h.Name = name
		h.SubHabits = rebuildSubHabits(h.SubHabits, subHabits, name)
		completion.ForDocument(doc).Prune(*h)
		habit = *h
		return nil
	})
	return habit, err
}

// ArchiveHabit hides a habit from active views; its history is kept
func (a *App) ArchiveHabit(id string) error {
	return a.updateHabit(id, func(_ *models.Document, h *models.Habit) error {
		h.Archived = true
		return nil
	})
}

func (a *App) UnarchiveHabit(id string) error {
	return a.updateHabit(id, func(_ *models.Document, h *models.Habit) error {
		h.Archived = false
		return nil
	})
}

// DeleteHabit removes a habit and all of its entries
func (a *App) DeleteHabit(id string) error {
	return a.mutate(func(doc *models.Document) error {
		i := doc.HabitIndex(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrHabitNotFound, id)
		}
		doc.Habits = append(doc.Habits[:i], doc.Habits[i+1:]...)
		completion.ForDocument(doc).RemoveHabit(id)
		return nil
	})
}

func (a *App) SetHabitView(id string, view constants.HeatmapView) error {
	if !view.Valid() {
		return fmt.Errorf("%w: unknown view %q", ErrInvalidInput, view)
	}
	return a.updateHabit(id, func(_ *models.Document, h *models.Habit) error {
		h.HeatmapView = view
		return nil
	})
}

// SetWeeklyTarget sets the days-per-week goal, clamped to 1..7
func (a *App) SetWeeklyTarget(id string, target int) error {
	return a.updateHabit(id, func(_ *models.Document, h *models.Habit) error {
		h.WeeklyTarget = clampTarget(target)
		return nil
	})
}

func (a *App) SetHideFuture(id string, hide bool) error {
	return a.updateHabit(id, func(_ *models.Document, h *models.Habit) error {
		h.HideFuture = hide
		return nil
	})
}

// ToggleSubHabit flips one checkpoint on date (today when empty) and returns
// whether it is now marked.
func (a *App) ToggleSubHabit(habitID, subID, date string) (bool, error) {
	var marked bool
	err := a.logHabit(habitID, date, func(log *completion.Log, day string, h models.Habit) error {
		var err error
		marked, err = log.Toggle(day, h, subID, a.now())
		return err
	})
	return marked, err
}

// ToggleHabit completes every checkpoint on date, or clears the day when the
// habit was already complete. Returns whether the habit is now complete.
func (a *App) ToggleHabit(habitID, date string) (bool, error) {
	var complete bool
	err := a.logHabit(habitID, date, func(log *completion.Log, day string, h models.Habit) error {
		var err error
		complete, err = log.ToggleAll(day, h, a.now())
		return err
	})
	return complete, err
}

func (a *App) logHabit(habitID, date string, fn func(log *completion.Log, day string, h models.Habit) error) error {
	today := utils.DateKey(a.now())
	if date == "" {
		date = today
	}
	if !utils.ValidDateKey(date) {
		return fmt.Errorf("%w: invalid date %q (expected YYYY-MM-DD)", ErrInvalidInput, date)
	}
	if date > today {
		return fmt.Errorf("%w: %s", ErrFutureDate, date)
	}
	return a.mutate(func(doc *models.Document) error {
		h, ok := doc.Habit(habitID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrHabitNotFound, habitID)
		}
		return fn(completion.ForDocument(doc), date, h)
	})
}

func (a *App) updateHabit(id string, fn func(doc *models.Document, h *models.Habit) error) error {
	return a.mutate(func(doc *models.Document) error {
		i := doc.HabitIndex(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrHabitNotFound, id)
		}
		return fn(doc, &doc.Habits[i])
	})
}

// rebuildSubHabits maps checkpoint names onto ids, reusing an old id whose
// name matches first and the old id at the same position second.
func rebuildSubHabits(old []models.SubHabit, names []string, habitName string) []models.SubHabit {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{habitName}
	}

	used := make(map[string]bool, len(old))
	ids := make([]string, len(cleaned))
	for i, n := range cleaned {
		for _, sub := range old {
			if !used[sub.ID] && sub.Name == n {
				ids[i] = sub.ID
				used[sub.ID] = true
				break
			}
		}
	}
	for i := range cleaned {
		if ids[i] == "" && i < len(old) && !used[old[i].ID] {
			ids[i] = old[i].ID
			used[old[i].ID] = true
		}
	}

	subs := make([]models.SubHabit, len(cleaned))
	for i, n := range cleaned {
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}
		subs[i] = models.SubHabit{ID: ids[i], Name: n}
	}
	return subs
}

func clampTarget(n int) int {
	switch {
	case n == 0:
		return constants.DefaultWeeklyTarget
	case n < constants.MinWeeklyTarget:
		return constants.MinWeeklyTarget
	case n > constants.MaxWeeklyTarget:
		return constants.MaxWeeklyTarget
	}
	return n
}
