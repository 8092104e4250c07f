package cli

import (
	"fmt"
	"strings"

	"github.com/julianstephens/habitmap/internal/app"
	"github.com/julianstephens/habitmap/internal/constants"
)

type HabitCmd struct {
	Add        HabitAddCmd        `cmd:"" help:"Add a new habit."`
	List       HabitListCmd       `cmd:"" help:"List habits."`
	Edit       HabitEditCmd       `cmd:"" help:"Rename a habit or change its checkpoints."`
	Archive    HabitArchiveCmd    `cmd:"" help:"Archive a habit."`
	Unarchive  HabitUnarchiveCmd  `cmd:"" help:"Restore an archived habit."`
	Delete     HabitDeleteCmd     `cmd:"" help:"Delete a habit and its history."`
	Toggle     HabitToggleCmd     `cmd:"" help:"Complete a habit for a day, or clear it."`
	Check      HabitCheckCmd      `cmd:"" help:"Toggle one checkpoint of a habit."`
	View       HabitViewCmd       `cmd:"" help:"Set a habit's heatmap view."`
	Target     HabitTargetCmd     `cmd:"" help:"Set a habit's weekly target."`
	HideFuture HabitHideFutureCmd `cmd:"" help:"Hide or show future days in a habit's heatmap."`
}

type HabitAddCmd struct {
	Name   string   `arg:"" help:"Habit name."`
	Sub    []string `short:"s" help:"Checkpoint names (repeatable)."`
	Target int      `help:"Days per week (1-7)." default:"3"`
	View   string   `help:"Heatmap view (weekDays, month, week, year)."`
	Color  string   `help:"Hex color; defaults to the next palette color."`
}

func (c *HabitAddCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	habit, err := ctx.App.AddHabit(app.HabitInput{
		Name:         c.Name,
		Color:        c.Color,
		SubHabits:    c.Sub,
		WeeklyTarget: c.Target,
		HeatmapView:  constants.HeatmapView(c.View),
	})
	if err != nil {
		return err
	}
	ctx.printf("Added habit: %s (%s, %d checkpoint(s))\n", habit.Name, shortID(habit.ID), len(habit.SubHabits))
	return nil
}

type HabitListCmd struct {
	Archived bool `help:"Include archived habits."`
}

func (c *HabitListCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	engine, err := ctx.App.Engine()
	if err != nil {
		return err
	}
	doc := ctx.App.Snapshot()
	if len(doc.Habits) == 0 {
		ctx.printf("No habits found.\n")
		return nil
	}

	today := engine.Today()
	for _, h := range doc.Habits {
		if h.Archived && !c.Archived {
			continue
		}
		status := ""
		if h.Archived {
			status = " [ARCHIVED]"
		}
		p := engine.HabitProgress(today, h)
		ctx.printf("%s  %s%s  today %d/%d  streak %d  target %d/wk\n",
			shortID(h.ID), h.Name, status, p.Done, p.Total, engine.Streak(h.ID, today), h.WeeklyTarget)
		if len(h.SubHabits) > 1 {
			for _, sub := range h.SubHabits {
				mark := " "
				if e, ok := doc.Entries[today][h.ID]; ok && e.SubHabits[sub.ID] {
					mark = "x"
				}
				ctx.printf("    [%s] %s\n", mark, sub.Name)
			}
		}
	}
	return nil
}

type HabitEditCmd struct {
	Habit string   `arg:"" help:"Habit name or id."`
	Name  string   `help:"New name."`
	Sub   []string `short:"s" help:"Replacement checkpoint names (repeatable); omitted keeps the current ones."`
}

func (c *HabitEditCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	h, err := findHabit(ctx.App.Snapshot(), c.Habit)
	if err != nil {
		return err
	}
	name := h.Name
	if c.Name != "" {
		name = c.Name
	}
	subs := c.Sub
	if len(subs) == 0 {
		for _, sub := range h.SubHabits {
			subs = append(subs, sub.Name)
		}
	}
	updated, err := ctx.App.UpdateHabit(h.ID, name, subs)
	if err != nil {
		return err
	}
	ctx.printf("Updated habit: %s\n", updated.Name)
	return nil
}

type HabitArchiveCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitArchiveCmd) Run(ctx *Context) error {
	return withHabit(ctx, c.Habit, func(id, name string) error {
		if err := ctx.App.ArchiveHabit(id); err != nil {
			return err
		}
		ctx.printf("Archived habit: %s\n", name)
		return nil
	})
}

type HabitUnarchiveCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitUnarchiveCmd) Run(ctx *Context) error {
	return withHabit(ctx, c.Habit, func(id, name string) error {
		if err := ctx.App.UnarchiveHabit(id); err != nil {
			return err
		}
		ctx.printf("Unarchived habit: %s\n", name)
		return nil
	})
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitDeleteCmd) Run(ctx *Context) error {
	return withHabit(ctx, c.Habit, func(id, name string) error {
		if err := ctx.App.DeleteHabit(id); err != nil {
			return err
		}
		ctx.printf("Deleted habit: %s\n", name)
		return nil
	})
}

type HabitToggleCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
	Date  string `help:"Date in YYYY-MM-DD format (default: today)."`
}

func (c *HabitToggleCmd) Run(ctx *Context) error {
	return withHabit(ctx, c.Habit, func(id, name string) error {
		complete, err := ctx.App.ToggleHabit(id, c.Date)
		if err != nil {
			return err
		}
		if complete {
			ctx.printf("✓ Completed %q for %s\n", name, dayLabel(c.Date))
		} else {
			ctx.printf("Cleared %q for %s\n", name, dayLabel(c.Date))
		}
		return nil
	})
}

type HabitCheckCmd struct {
	Habit      string `arg:"" help:"Habit name or id."`
	Checkpoint string `arg:"" help:"Checkpoint name or id."`
	Date       string `help:"Date in YYYY-MM-DD format (default: today)."`
}

func (c *HabitCheckCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	h, err := findHabit(ctx.App.Snapshot(), c.Habit)
	if err != nil {
		return err
	}
	sub, err := findSubHabit(h, c.Checkpoint)
	if err != nil {
		return err
	}
	marked, err := ctx.App.ToggleSubHabit(h.ID, sub.ID, c.Date)
	if err != nil {
		return err
	}
	state := "unchecked"
	if marked {
		state = "checked"
	}
	ctx.printf("%s: %s %s for %s\n", h.Name, sub.Name, state, dayLabel(c.Date))
	return nil
}

type HabitViewCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
	View  string `arg:"" enum:"weekDays,month,week,year" help:"Heatmap view."`
}

func (c *HabitViewCmd) Run(ctx *Context) error {
	return withHabit(ctx, c.Habit, func(id, name string) error {
		if err := ctx.App.SetHabitView(id, constants.HeatmapView(c.View)); err != nil {
			return err
		}
		ctx.printf("%s now uses the %s view\n", name, c.View)
		return nil
	})
}

type HabitTargetCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
	Days  int    `arg:"" help:"Days per week (1-7)."`
}

func (c *HabitTargetCmd) Run(ctx *Context) error {
	if c.Days < constants.MinWeeklyTarget || c.Days > constants.MaxWeeklyTarget {
		return fmt.Errorf("%w: weekly target must be between %d and %d", app.ErrInvalidInput,
			constants.MinWeeklyTarget, constants.MaxWeeklyTarget)
	}
	return withHabit(ctx, c.Habit, func(id, name string) error {
		if err := ctx.App.SetWeeklyTarget(id, c.Days); err != nil {
			return err
		}
		ctx.printf("%s target: %d days/week\n", name, c.Days)
		return nil
	})
}

type HabitHideFutureCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
	Show  bool   `help:"Show future days again."`
}

func (c *HabitHideFutureCmd) Run(ctx *Context) error {
	return withHabit(ctx, c.Habit, func(id, name string) error {
		if err := ctx.App.SetHideFuture(id, !c.Show); err != nil {
			return err
		}
		if c.Show {
			ctx.printf("%s shows future days\n", name)
		} else {
			ctx.printf("%s hides future days\n", name)
		}
		return nil
	})
}

func withHabit(ctx *Context, ref string, fn func(id, name string) error) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	h, err := findHabit(ctx.App.Snapshot(), ref)
	if err != nil {
		return err
	}
	return fn(h.ID, h.Name)
}

func dayLabel(date string) string {
	if strings.TrimSpace(date) == "" {
		return "today"
	}
	return date
}
