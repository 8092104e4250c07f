package cli

import (
	"github.com/julianstephens/habitmap/internal/metrics"
)

type StreakCmd struct {
	Habit string `arg:"" optional:"" help:"Habit name or id (default: every active habit)."`
	Date  string `help:"Count back from this date (default: today)."`
}

func (c *StreakCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	engine, err := ctx.App.Engine()
	if err != nil {
		return err
	}
	ref := c.Date
	if ref == "" {
		ref = engine.Today()
	}

	if c.Habit != "" {
		h, err := findHabit(ctx.App.Snapshot(), c.Habit)
		if err != nil {
			return err
		}
		ctx.printf("%s: %d day streak\n", h.Name, engine.Streak(h.ID, ref))
		return nil
	}

	for _, s := range engine.Streaks(ref) {
		age, err := engine.Age(s.Habit, ref)
		if err != nil {
			return err
		}
		ctx.printf("%-24s %3d days  (tracked %d days)\n", s.Habit.Name, s.Streak, age)
	}
	ctx.printf("Overall: %d day streak\n", engine.OverallStreak(ref))
	return nil
}

type WeekCmd struct {
	Date string `help:"Any date in the week (default: today)."`
}

func (c *WeekCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	engine, err := ctx.App.Engine()
	if err != nil {
		return err
	}
	ref := c.Date
	if ref == "" {
		ref = engine.Today()
	}
	start, err := metrics.WeekStart(ref)
	if err != nil {
		return err
	}

	ctx.printf("Week of %s\n", start)
	for _, h := range engine.ActiveHabits() {
		wp := engine.WeeklyProgress(start, h)
		ctx.printf("%-24s %d/%d  %s\n", h.Name, wp.CompletedDays, wp.Target, glyph(wp.Intensity, false))
	}
	return nil
}

type SummaryCmd struct {
	Date string `help:"Last day of the summary (default: today)."`
}

func (c *SummaryCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	engine, err := ctx.App.Engine()
	if err != nil {
		return err
	}
	ref := c.Date
	if ref == "" {
		ref = engine.Today()
	}
	s, err := engine.WeeklySummary(ref)
	if err != nil {
		return err
	}

	ctx.printf("Showed up %d of the last %d days\n", s.DaysShowedUp, s.TotalDays)
	ctx.printf("Completed %d of %d habits on %s\n", s.CompletedToday, s.TotalHabits, ref)
	if s.BestHabit != nil && s.BestHabit.Streak > 0 {
		ctx.printf("Best streak: %s (%d days)\n", s.BestHabit.Habit.Name, s.BestHabit.Streak)
	}
	return nil
}
