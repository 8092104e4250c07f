// Package completion is the sparse per-day, per-habit record of marked
// checkpoints. A Log is a view over a document's entries map; mutations made
// through it are visible in the document.
package completion

import (
	"fmt"
	"sort"
	"time"

	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/utils"
)

// Log wraps an entries map
type Log struct {
	entries models.Entries
}

// New returns a Log over entries. A nil map is replaced, so callers must
// store Entries() back when they passed nil.
func New(entries models.Entries) *Log {
	if entries == nil {
		entries = models.Entries{}
	}
	return &Log{entries: entries}
}

// ForDocument returns a Log bound to doc.Entries, initializing it if needed
func ForDocument(doc *models.Document) *Log {
	if doc.Entries == nil {
		doc.Entries = models.Entries{}
	}
	return &Log{entries: doc.Entries}
}

// Entries returns the underlying map
func (l *Log) Entries() models.Entries {
	return l.entries
}

// Entry returns the entry for a habit on a date
func (l *Log) Entry(date, habitID string) (models.Entry, bool) {
	byHabit, ok := l.entries[date]
	if !ok {
		return models.Entry{}, false
	}
	entry, ok := byHabit[habitID]
	return entry, ok
}

// IsMarked reports whether one checkpoint is marked on a date
func (l *Log) IsMarked(date, habitID, subID string) bool {
	entry, ok := l.Entry(date, habitID)
	return ok && entry.SubHabits[subID]
}

// MarkedCount counts the habit's current checkpoints marked on a date.
// Marks for checkpoints the habit no longer has are ignored.
func (l *Log) MarkedCount(date string, habit models.Habit) int {
	entry, ok := l.Entry(date, habit.ID)
	if !ok {
		return 0
	}
	n := 0
	for _, sub := range habit.SubHabits {
		if entry.SubHabits[sub.ID] {
			n++
		}
	}
	return n
}

// HasProgress reports whether any habit has a non-empty entry on date
func (l *Log) HasProgress(date string) bool {
	for _, entry := range l.entries[date] {
		if !entry.Empty() {
			return true
		}
	}
	return false
}

// Set marks or clears one checkpoint. Clearing the last mark removes the
// entry, and the date bucket when it becomes empty.
func (l *Log) Set(date string, habit models.Habit, subID string, marked bool, now time.Time) error {
	if !utils.ValidDateKey(date) {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
	}
	if !habit.HasSubHabit(subID) {
		return fmt.Errorf("habit %q has no checkpoint %q", habit.ID, subID)
	}

	entry, _ := l.Entry(date, habit.ID)
	subs := make(map[string]bool, len(entry.SubHabits)+1)
	for id, v := range entry.SubHabits {
		if v {
			subs[id] = true
		}
	}
	if marked {
		subs[subID] = true
	} else {
		delete(subs, subID)
	}

	l.put(date, habit.ID, models.Entry{SubHabits: subs, UpdatedAt: models.FormatTimestamp(now)})
	return nil
}

// Toggle flips one checkpoint and returns its new state
func (l *Log) Toggle(date string, habit models.Habit, subID string, now time.Time) (bool, error) {
	marked := !l.IsMarked(date, habit.ID, subID)
	if err := l.Set(date, habit, subID, marked, now); err != nil {
		return false, err
	}
	return marked, nil
}

// SetAll marks every checkpoint of the habit, or clears the entry
func (l *Log) SetAll(date string, habit models.Habit, marked bool, now time.Time) error {
	if !utils.ValidDateKey(date) {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
	}
	subs := make(map[string]bool, len(habit.SubHabits))
	if marked {
		for _, sub := range habit.SubHabits {
			subs[sub.ID] = true
		}
	}
	l.put(date, habit.ID, models.Entry{SubHabits: subs, UpdatedAt: models.FormatTimestamp(now)})
	return nil
}

// ToggleAll completes the habit for the day unless it already is complete,
// in which case the entry is cleared. Returns whether the habit is now complete.
func (l *Log) ToggleAll(date string, habit models.Habit, now time.Time) (bool, error) {
	complete := l.MarkedCount(date, habit) >= habit.TotalCheckpoints()
	if err := l.SetAll(date, habit, !complete, now); err != nil {
		return false, err
	}
	return !complete, nil
}

// RemoveHabit drops every entry for a habit and returns how many were removed
func (l *Log) RemoveHabit(habitID string) int {
	removed := 0
	for date, byHabit := range l.entries {
		if _, ok := byHabit[habitID]; ok {
			delete(byHabit, habitID)
			removed++
		}
		if len(byHabit) == 0 {
			delete(l.entries, date)
		}
	}
	return removed
}

// Prune drops marks for checkpoints the habit no longer has, deleting
// entries that end up empty.
func (l *Log) Prune(habit models.Habit) {
	for date, byHabit := range l.entries {
		entry, ok := byHabit[habit.ID]
		if !ok {
			continue
		}
		for id := range entry.SubHabits {
			if !habit.HasSubHabit(id) || !entry.SubHabits[id] {
				delete(entry.SubHabits, id)
			}
		}
		if entry.Empty() {
			delete(byHabit, habit.ID)
		}
		if len(byHabit) == 0 {
			delete(l.entries, date)
		}
	}
}

// Dates returns every date with at least one entry, ascending
func (l *Log) Dates() []string {
	dates := make([]string, 0, len(l.entries))
	for date := range l.entries {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// EarliestDate returns the first date the habit has an entry on or after
// notBefore. An empty habitID matches any habit.
func (l *Log) EarliestDate(habitID, notBefore string) (string, bool) {
	earliest := ""
	for date, byHabit := range l.entries {
		if date < notBefore {
			continue
		}
		if habitID != "" {
			if _, ok := byHabit[habitID]; !ok {
				continue
			}
		} else if len(byHabit) == 0 {
			continue
		}
		if earliest == "" || date < earliest {
			earliest = date
		}
	}
	return earliest, earliest != ""
}

func (l *Log) put(date, habitID string, entry models.Entry) {
	if entry.Empty() {
		if byHabit, ok := l.entries[date]; ok {
			delete(byHabit, habitID)
			if len(byHabit) == 0 {
				delete(l.entries, date)
			}
		}
		return
	}
	byHabit, ok := l.entries[date]
	if !ok {
		byHabit = make(map[string]models.Entry)
		l.entries[date] = byHabit
	}
	byHabit[habitID] = entry
}
