package models

import (
	"encoding/json"
	"time"

	"github.com/julianstephens/habitmap/internal/constants"
)

// Meta carries the document's sync bookkeeping
type Meta struct {
	// UpdatedAt is bumped on every sync-relevant mutation. It is the only
	// signal used for last-writer-wins reconciliation.
	UpdatedAt string `json:"updatedAt"`
	// Backfilled marks an UpdatedAt stamped by migration rather than by a real
	// edit. Reconciliation treats such a timestamp as absent.
	Backfilled bool `json:"backfilled,omitempty"`
}

// Document is the complete persisted state of one account
type Document struct {
	Habits   []Habit  `json:"habits"`
	Entries  Entries  `json:"entries"`
	Todos    []Todo   `json:"todos"`
	Settings Settings `json:"settings"`
	Meta     Meta     `json:"meta"`
}

// NewDocument returns an empty seed document
func NewDocument(now time.Time) *Document {
	return &Document{
		Habits:   []Habit{},
		Entries:  Entries{},
		Todos:    []Todo{},
		Settings: Settings{HeatmapView: constants.DefaultHeatmapView},
		Meta:     Meta{UpdatedAt: FormatTimestamp(now)},
	}
}

// HasMeaningfulContent reports whether the document holds at least one habit,
// one non-empty day of entries, or one todo. An empty seed must never win
// reconciliation against real history.
func (d *Document) HasMeaningfulContent() bool {
	if d == nil {
		return false
	}
	if len(d.Habits) > 0 || len(d.Todos) > 0 {
		return true
	}
	for _, byHabit := range d.Entries {
		for _, entry := range byHabit {
			if !entry.Empty() {
				return true
			}
		}
	}
	return false
}

// UpdatedAtTime parses Meta.UpdatedAt. ok is false when the timestamp is
// missing, unparsable, or only a migration backfill.
func (d *Document) UpdatedAtTime() (time.Time, bool) {
	if d == nil || d.Meta.UpdatedAt == "" || d.Meta.Backfilled {
		return time.Time{}, false
	}
	t, err := ParseTimestamp(d.Meta.UpdatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Touch bumps Meta.UpdatedAt after a mutation
func (d *Document) Touch(now time.Time) {
	d.Meta.UpdatedAt = FormatTimestamp(now)
	d.Meta.Backfilled = false
}

// Habit returns the habit with the given id
func (d *Document) Habit(id string) (Habit, bool) {
	if i := d.HabitIndex(id); i >= 0 {
		return d.Habits[i], true
	}
	return Habit{}, false
}

// HabitIndex returns the position of the habit in Habits, or -1
func (d *Document) HabitIndex(id string) int {
	for i, h := range d.Habits {
		if h.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers never alias another owner's state
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Habits:   make([]Habit, len(d.Habits)),
		Entries:  d.Entries.Clone(),
		Todos:    make([]Todo, len(d.Todos)),
		Settings: d.Settings,
		Meta:     d.Meta,
	}
	for i, h := range d.Habits {
		h.SubHabits = append([]SubHabit(nil), h.SubHabits...)
		if h.SubHabits == nil {
			h.SubHabits = []SubHabit{}
		}
		out.Habits[i] = h
	}
	for i, t := range d.Todos {
		if t.CompletedAt != nil {
			completed := *t.CompletedAt
			t.CompletedAt = &completed
		}
		out.Todos[i] = t
	}
	return out
}

// Marshal encodes the document in its wire format
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// FormatTimestamp renders t as a UTC ISO8601 timestamp with millisecond precision
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// ParseTimestamp accepts any RFC3339 timestamp, with or without fractional seconds
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// TimestampFormat matches the ISO strings browsers produce (2006-01-02T15:04:05.000Z)
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"
