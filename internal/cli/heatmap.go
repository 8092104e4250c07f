package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitmap/internal/app"
	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/metrics"
	"github.com/julianstephens/habitmap/internal/models"
)

// Intensity glyphs, level 0 through 4
var levelGlyphs = [...]string{"□", "░", "▒", "▓", "█"}

const futureGlyph = "·"

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(4)
)

var weekdayLabels = [7]string{"Sun", "", "Tue", "", "Thu", "", "Sat"}

type HeatmapCmd struct {
	Habit string `arg:"" optional:"" help:"Habit name or id (default: every active habit)."`
	View  string `help:"Override the view (weekDays, month, week, year)."`
	Date  string `help:"Last day shown (default: today)."`
}

func (c *HeatmapCmd) Run(ctx *Context) error {
	if c.View != "" && !constants.HeatmapView(c.View).Valid() {
		return fmt.Errorf("%w: unknown view %q", app.ErrInvalidInput, c.View)
	}
	if err := ctx.Activate(); err != nil {
		return err
	}
	engine, err := ctx.App.Engine()
	if err != nil {
		return err
	}
	doc := ctx.App.Snapshot()

	habits := engine.ActiveHabits()
	if c.Habit != "" {
		h, err := findHabit(doc, c.Habit)
		if err != nil {
			return err
		}
		habits = []models.Habit{h}
	}
	if len(habits) == 0 {
		ctx.printf("No habits found.\n")
		return nil
	}

	for i, h := range habits {
		w, err := engine.Window(h, constants.HeatmapView(c.View), c.Date)
		if err != nil {
			return err
		}
		if i > 0 {
			ctx.printf("\n")
		}
		ctx.printf("%s\n", RenderHeatmap(h, w))
	}
	return nil
}

// RenderHeatmap draws a window as a block of intensity glyphs in the habit's
// color. Day grids have a row per weekday and a column per week; the
// weekDays and week views are a single row.
func RenderHeatmap(h models.Habit, w metrics.Window) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(h.Color))

	var b strings.Builder
	b.WriteString(titleStyle.Render(h.Name))
	b.WriteString(emptyStyle.Render("  " + string(w.View) + "  " + w.Start + " → " + w.End))
	b.WriteString("\n")

	if w.View == constants.ViewWeekDays || w.View == constants.ViewWeek {
		cells := make([]string, len(w.Cells))
		for i, cell := range w.Cells {
			cells[i] = renderCell(style, cell)
		}
		b.WriteString(strings.Join(cells, " "))
		return b.String()
	}

	rows := make([][]string, 7)
	for i, cell := range w.Cells {
		rows[i%7] = append(rows[i%7], renderCell(style, cell))
	}
	for day, row := range rows {
		if len(row) == 0 {
			continue
		}
		b.WriteString(labelStyle.Render(weekdayLabels[day]))
		b.WriteString(strings.Join(row, ""))
		if day < 6 {
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderCell(style lipgloss.Style, cell metrics.Cell) string {
	if cell.Future {
		return dimStyle.Render(futureGlyph)
	}
	if cell.Intensity <= 0 {
		return emptyStyle.Render(levelGlyphs[0])
	}
	return style.Render(glyph(cell.Intensity, false))
}

func glyph(level int, future bool) string {
	if future {
		return futureGlyph
	}
	if level < 0 {
		level = 0
	}
	if level >= len(levelGlyphs) {
		level = len(levelGlyphs) - 1
	}
	return levelGlyphs[level]
}
