package models

// Entry records which checkpoints of a habit were marked on one day.
// An entry with no marked checkpoints must not be stored.
type Entry struct {
	SubHabits map[string]bool `json:"subHabits"`
	UpdatedAt string          `json:"updatedAt"`
}

// MarkedCount counts checkpoints set to true
func (e Entry) MarkedCount() int {
	n := 0
	for _, marked := range e.SubHabits {
		if marked {
			n++
		}
	}
	return n
}

// Empty reports whether the entry marks nothing
func (e Entry) Empty() bool {
	return e.MarkedCount() == 0
}

// Entries maps dateISO -> habitId -> Entry
type Entries map[string]map[string]Entry

// Clone returns a deep copy
func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	for date, byHabit := range e {
		day := make(map[string]Entry, len(byHabit))
		for habitID, entry := range byHabit {
			subs := make(map[string]bool, len(entry.SubHabits))
			for id, marked := range entry.SubHabits {
				subs[id] = marked
			}
			day[habitID] = Entry{SubHabits: subs, UpdatedAt: entry.UpdatedAt}
		}
		out[date] = day
	}
	return out
}
