package main

import (
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitmap/internal/cli"
	"github.com/julianstephens/habitmap/internal/config"
	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/errors"
	"github.com/julianstephens/habitmap/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"path" env:"HABITMAP_CONFIG"`
	Debug   bool   `help:"Log debug output to stderr."`
	Offline bool   `help:"Work on the local document only; never contact the remote store."`

	Signup  cli.SignUpCmd  `cmd:"" help:"Create an account and start syncing."`
	Signin  cli.SignInCmd  `cmd:"" help:"Sign in and reconcile with the remote copy."`
	Signout cli.SignOutCmd `cmd:"" help:"Sign out and forget the session."`
	Status  cli.StatusCmd  `cmd:"" help:"Show account and sync status." default:"1"`
	Sync    cli.SyncCmd    `cmd:"" help:"Reconcile with the remote copy now."`
	Watch   cli.WatchCmd   `cmd:"" help:"Apply remote changes as they arrive."`

	Habit   cli.HabitCmd   `cmd:"" help:"Manage habits and log completions."`
	Streak  cli.StreakCmd  `cmd:"" help:"Show current streaks."`
	Week    cli.WeekCmd    `cmd:"" help:"Show weekly progress against targets."`
	Heatmap cli.HeatmapCmd `cmd:"" help:"Render habit heatmaps."`
	Summary cli.SummaryCmd `cmd:"" help:"Summarize the last seven days."`
	Todo    cli.TodoCmd    `cmd:"" help:"Manage todos."`
	View    cli.ViewCmd    `cmd:"" help:"Manage the default heatmap view."`

	Export  cli.ExportCmd  `cmd:"" help:"Export the document as JSON."`
	Import  cli.ImportCmd  `cmd:"" help:"Import a JSON document, migrating older formats."`
	Backup  cli.BackupCmd  `cmd:"" help:"Snapshot and restore the local document."`
	Keyring cli.KeyringCmd `cmd:"" help:"Manage the remote connection string in the OS keyring."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("habitmap"),
		kong.Description("Habit heatmaps with local-first sync"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		errors.Fatalf("config: %v", err)
	}
	if CLI.Debug {
		cfg.Debug = true
	}
	if err := logger.Init(logger.Config{Dir: cfg.DataDir, Level: cfg.LogLevel, Debug: cfg.Debug}); err != nil {
		errors.Fatalf("failed to initialize logging in %s: %v", cfg.DataDir, err)
	}

	// Keyring commands must work while the stored remote is unreachable.
	offline := CLI.Offline || strings.HasPrefix(kctx.Command(), "keyring")
	appCtx, err := cli.NewContext(cfg, offline)
	if err != nil {
		errors.Fatal(err)
	}

	runErr := kctx.Run(appCtx)
	if err := appCtx.Close(); err != nil {
		logger.Warn("Failed to close storage", "error", err)
	}
	errors.Fatal(runErr)
}
