package migration

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/logger"
	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/utils"
)

// ErrInvalidData means the stored payload cannot be migrated and the caller
// must fall back to a fresh seed.
var ErrInvalidData = errors.New("invalid document data")

// Migrator normalizes persisted documents of any schema generation into the
// current Document shape.
type Migrator struct {
	now   func() time.Time
	newID func() string
}

// Option configures a Migrator
type Option func(*Migrator)

// WithClock overrides the time source used for backfilled timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Migrator) { m.now = now }
}

// WithIDGenerator overrides how missing habit and todo ids are minted
func WithIDGenerator(newID func() string) Option {
	return func(m *Migrator) { m.newID = newID }
}

// NewMigrator creates a Migrator
func NewMigrator(opts ...Option) *Migrator {
	m := &Migrator{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultMigrator = NewMigrator()

// Migrate normalizes a decoded JSON document with the default Migrator
func Migrate(raw map[string]any) (*models.Document, error) {
	return defaultMigrator.Migrate(raw)
}

// MigrateJSON decodes and normalizes a JSON document with the default Migrator
func MigrateJSON(data []byte) (*models.Document, error) {
	return defaultMigrator.MigrateJSON(data)
}

// MigrateJSON decodes data and migrates it
func (m *Migrator) MigrateJSON(data []byte) (*models.Document, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document is not an object", ErrInvalidData)
	}
	return m.Migrate(obj)
}

// MigrateDocument re-normalizes an already typed document
func (m *Migrator) MigrateDocument(doc *models.Document) (*models.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidData)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return m.MigrateJSON(data)
}

// Migrate converts raw into the current schema. It fails with ErrInvalidData
// only when habits is not an array; every other malformed field is coerced.
func (m *Migrator) Migrate(raw map[string]any) (*models.Document, error) {
	habitsRaw, ok := raw["habits"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: habits is not an array", ErrInvalidData)
	}

	doc := &models.Document{
		Habits:  make([]models.Habit, 0, len(habitsRaw)),
		Entries: models.Entries{},
		Todos:   []models.Todo{},
	}

	meta, _ := raw["meta"].(map[string]any)
	doc.Meta = m.migrateMeta(meta)

	settings, _ := raw["settings"].(map[string]any)
	doc.Settings.HeatmapView = constants.HeatmapView(stringField(settings, "heatmapView"))
	if !doc.Settings.HeatmapView.Valid() {
		doc.Settings.HeatmapView = constants.DefaultHeatmapView
	}

	habits := make(map[string]models.Habit, len(habitsRaw))
	for _, item := range habitsRaw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		habit := m.migrateHabit(obj, len(doc.Habits), doc.Settings.HeatmapView, doc.Meta.UpdatedAt)
		if _, dup := habits[habit.ID]; dup {
			logger.Warn("Dropping habit with duplicate id", "id", habit.ID, "name", habit.Name)
			continue
		}
		habits[habit.ID] = habit
		doc.Habits = append(doc.Habits, habit)
	}

	entriesRaw, _ := raw["entries"].(map[string]any)
	for date, dayRaw := range entriesRaw {
		if !utils.ValidDateKey(date) {
			continue
		}
		day := migrateDay(dayRaw, habits, doc.Meta.UpdatedAt)
		if len(day) > 0 {
			doc.Entries[date] = day
		}
	}

	if todosRaw, ok := raw["todos"].([]any); ok {
		doc.Todos = m.migrateTodos(todosRaw, doc.Meta.UpdatedAt)
	}

	// The journal feature was removed; its notes are discarded, not carried over.
	if _, ok := raw["journal"]; ok {
		logger.Debug("Discarding legacy journal notes")
	}

	return doc, nil
}

func (m *Migrator) migrateMeta(meta map[string]any) models.Meta {
	updatedAt := stringField(meta, "updatedAt")
	if _, err := models.ParseTimestamp(updatedAt); err != nil {
		return models.Meta{UpdatedAt: models.FormatTimestamp(m.now()), Backfilled: true}
	}
	return models.Meta{UpdatedAt: updatedAt, Backfilled: boolField(meta, "backfilled")}
}

func (m *Migrator) migrateHabit(obj map[string]any, index int, globalView constants.HeatmapView, fallbackTS string) models.Habit {
	habit := models.Habit{
		ID:         strings.TrimSpace(stringField(obj, "id")),
		Name:       strings.TrimSpace(stringField(obj, "name")),
		Color:      stringField(obj, "color"),
		Archived:   boolField(obj, "archived"),
		CreatedAt:  stringField(obj, "createdAt"),
		HideFuture: boolField(obj, "hideFuture"),
	}

	if habit.ID == "" {
		habit.ID = m.newID()
	}
	if habit.Name == "" {
		habit.Name = "Untitled habit"
	}
	if habit.Color == "" {
		habit.Color = constants.PaletteColor(index)
	}
	if _, err := models.ParseTimestamp(habit.CreatedAt); err != nil {
		habit.CreatedAt = fallbackTS
	}
	// v1 documents flagged inactive habits instead of archiving them
	if active, ok := obj["isActive"].(bool); ok && !active {
		habit.Archived = true
	}

	habit.HeatmapView = constants.HeatmapView(stringField(obj, "heatmapView"))
	if !habit.HeatmapView.Valid() {
		habit.HeatmapView = globalView
	}
	habit.WeeklyTarget = clampTarget(obj["weeklyTarget"])
	habit.SubHabits = migrateSubHabits(obj["subHabits"], habit.ID, habit.Name)

	return habit
}

func migrateSubHabits(raw any, habitID, habitName string) []models.SubHabit {
	items, _ := raw.([]any)
	subs := make([]models.SubHabit, 0, len(items))
	used := make(map[string]bool, len(items))

	for pos, item := range items {
		var id, name string
		switch v := item.(type) {
		case map[string]any:
			id = strings.TrimSpace(stringField(v, "id"))
			name = strings.TrimSpace(stringField(v, "name"))
		case string:
			name = strings.TrimSpace(v)
		default:
			continue
		}
		if name == "" {
			name = fmt.Sprintf(constants.DefaultCheckpointFn, pos+1)
		}
		if id == "" || used[id] {
			id = derivedSubHabitID(habitID, pos, used)
		}
		used[id] = true
		subs = append(subs, models.SubHabit{ID: id, Name: name})
	}

	// Habits from before checkpoints existed become a single checkpoint
	// standing for the whole habit.
	if len(subs) == 0 {
		subs = append(subs, models.SubHabit{ID: derivedSubHabitID(habitID, 0, used), Name: habitName})
	}
	return subs
}

// derivedSubHabitID is deterministic in habit id and position so repeated
// migrations of the same payload agree.
func derivedSubHabitID(habitID string, pos int, used map[string]bool) string {
	base := fmt.Sprintf("%s-sub-%d", habitID, pos+1)
	id := base
	for n := 2; used[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

func migrateDay(raw any, habits map[string]models.Habit, fallbackTS string) map[string]models.Entry {
	day := make(map[string]models.Entry)

	switch v := raw.(type) {
	case []any:
		// v1: a plain list of habit ids completed that day
		for _, item := range v {
			habitID, _ := item.(string)
			habit, ok := habits[habitID]
			if !ok {
				continue
			}
			day[habitID] = allMarked(habit, fallbackTS)
		}
	case map[string]any:
		for habitID, entryRaw := range v {
			habit, ok := habits[habitID]
			if !ok {
				continue
			}
			entry := migrateEntry(entryRaw, habit, fallbackTS)
			if !entry.Empty() {
				day[habitID] = entry
			}
		}
	}

	return day
}

func migrateEntry(raw any, habit models.Habit, fallbackTS string) models.Entry {
	switch v := raw.(type) {
	case bool:
		if v {
			return allMarked(habit, fallbackTS)
		}
		return models.Entry{}
	case map[string]any:
		updatedAt := stringField(v, "updatedAt")
		if _, err := models.ParseTimestamp(updatedAt); err != nil {
			updatedAt = fallbackTS
		}

		subs := make(map[string]bool)
		switch marks := v["subHabits"].(type) {
		case map[string]any:
			for id, marked := range marks {
				if b, _ := marked.(bool); b && habit.HasSubHabit(id) {
					subs[id] = true
				}
			}
		case []any:
			for _, item := range marks {
				if id, _ := item.(string); habit.HasSubHabit(id) {
					subs[id] = true
				}
			}
		default:
			// Binary-era entry: {done: true, note: "..."}. The note is dropped.
			if done, _ := v["done"].(bool); done {
				return allMarked(habit, updatedAt)
			}
		}
		return models.Entry{SubHabits: subs, UpdatedAt: updatedAt}
	}
	return models.Entry{}
}

func allMarked(habit models.Habit, updatedAt string) models.Entry {
	subs := make(map[string]bool, len(habit.SubHabits))
	for _, sub := range habit.SubHabits {
		subs[sub.ID] = true
	}
	return models.Entry{SubHabits: subs, UpdatedAt: updatedAt}
}

func (m *Migrator) migrateTodos(items []any, fallbackTS string) []models.Todo {
	todos := make([]models.Todo, 0, len(items))
	seen := make(map[string]bool, len(items))

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		todo := models.Todo{
			ID:        strings.TrimSpace(stringField(obj, "id")),
			Text:      stringField(obj, "text"),
			Done:      boolField(obj, "done"),
			CreatedAt: stringField(obj, "createdAt"),
		}
		if todo.ID == "" || seen[todo.ID] {
			todo.ID = m.newID()
		}
		seen[todo.ID] = true
		if _, err := models.ParseTimestamp(todo.CreatedAt); err != nil {
			todo.CreatedAt = fallbackTS
		}
		if completedAt := stringField(obj, "completedAt"); completedAt != "" {
			todo.CompletedAt = &completedAt
		}
		todos = append(todos, todo)
	}
	return todos
}

func clampTarget(raw any) int {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return constants.DefaultWeeklyTarget
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return constants.DefaultWeeklyTarget
		}
		n = f
	default:
		return constants.DefaultWeeklyTarget
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return constants.DefaultWeeklyTarget
	}

	target := int(math.Round(n))
	if target < constants.MinWeeklyTarget {
		return constants.MinWeeklyTarget
	}
	if target > constants.MaxWeeklyTarget {
		return constants.MaxWeeklyTarget
	}
	return target
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func boolField(obj map[string]any, key string) bool {
	b, _ := obj[key].(bool)
	return b
}
