package metrics

import (
	"time"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/utils"
)

// Cell is one square of a heatmap. For day-based views Date is the day and
// Done/Total are checkpoint counts; for the week view Date is the Sunday the
// week starts on and Done/Total are completed days against the weekly target.
type Cell struct {
	Date      string `json:"date"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	Intensity int    `json:"intensity"`
	Future    bool   `json:"future"`
}

// Window is a contiguous run of cells for one habit
type Window struct {
	View  constants.HeatmapView `json:"view"`
	Start string                `json:"start"`
	End   string                `json:"end"`
	Cells []Cell                `json:"cells"`
}

// Window builds the heatmap for habit ending at anchor (today when empty).
// An invalid view falls back to the habit's effective view. Day grids are
// padded to whole Sunday-start weeks; cells after today are flagged Future,
// or dropped when the habit hides future days.
func (e *Engine) Window(habit models.Habit, view constants.HeatmapView, anchor string) (Window, error) {
	if anchor == "" {
		anchor = e.Today()
	}
	end, err := utils.ParseDate(anchor, time.UTC)
	if err != nil {
		return Window{}, err
	}
	if !view.Valid() {
		view = habit.EffectiveView(e.doc.Settings)
	}

	week := utils.WeekStart(end)
	lastDay := week.AddDate(0, 0, 6)

	w := Window{View: view}
	switch view {
	case constants.ViewWeekDays:
		w.Cells = e.dayCells(habit, week, lastDay)
	case constants.ViewWeek:
		minStart := week.AddDate(0, 0, -7*(constants.WeekWindowMinWeeks-1))
		bound := week.AddDate(0, 0, -7*constants.WeekLookbackWeeks)
		start := utils.WeekStart(e.anchorStart(habit.ID, minStart, bound, end))
		w.Cells = e.weekCells(habit, start, week)
	case constants.ViewYear:
		w.Cells = e.dayCells(habit, lastDay.AddDate(0, 0, -(constants.YearWindowDays-1)), lastDay)
	default:
		minStart := end.AddDate(0, 0, -(constants.MonthWindowMinDays - 1))
		bound := end.AddDate(0, 0, -constants.MonthLookbackDays)
		start := utils.WeekStart(e.anchorStart(habit.ID, minStart, bound, end))
		w.Cells = e.dayCells(habit, start, lastDay)
	}

	if habit.HideFuture {
		kept := w.Cells[:0]
		for _, c := range w.Cells {
			if !c.Future {
				kept = append(kept, c)
			}
		}
		w.Cells = kept
	}
	if n := len(w.Cells); n > 0 {
		w.Start = w.Cells[0].Date
		w.End = w.Cells[n-1].Date
	}
	return w, nil
}

// anchorStart returns the later of the habit's earliest completion on or
// after bound and bound itself, so the window opens at the habit's real
// history. Without history between bound and end the window keeps its
// minimum start.
func (e *Engine) anchorStart(habitID string, minStart, bound, end time.Time) time.Time {
	earliest, ok := e.log.EarliestDate(habitID, utils.DateKey(bound))
	if !ok {
		return minStart
	}
	t, err := utils.ParseDate(earliest, time.UTC)
	if err != nil || t.After(end) {
		return minStart
	}
	if t.Before(bound) {
		return bound
	}
	return t
}

func (e *Engine) dayCells(habit models.Habit, start, end time.Time) []Cell {
	today := e.Today()
	var cells []Cell
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := utils.DateKey(d)
		p := e.HabitProgress(date, habit)
		cells = append(cells, Cell{
			Date:      date,
			Done:      p.Done,
			Total:     p.Total,
			Intensity: RatioToIntensity(p.Ratio()),
			Future:    date > today,
		})
	}
	return cells
}

func (e *Engine) weekCells(habit models.Habit, start, end time.Time) []Cell {
	today := e.Today()
	var cells []Cell
	for ws := start; !ws.After(end); ws = ws.AddDate(0, 0, 7) {
		date := utils.DateKey(ws)
		wp := e.WeeklyProgress(date, habit)
		cells = append(cells, Cell{
			Date:      date,
			Done:      wp.CompletedDays,
			Total:     wp.Target,
			Intensity: wp.Intensity,
			Future:    date > today,
		})
	}
	return cells
}
