package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitmap/internal/app"
	"github.com/julianstephens/habitmap/internal/auth"
	"github.com/julianstephens/habitmap/internal/logger"
	habitsync "github.com/julianstephens/habitmap/internal/sync"
)

// promptCredentials asks for whichever of email and password is missing
var promptCredentials = func(email, password *string, confirm bool) error {
	var fields []huh.Field
	if *email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Value(email).
			Validate(func(s string) error {
				if !strings.Contains(s, "@") {
					return auth.ErrInvalidEmail
				}
				return nil
			}))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password).
			Validate(func(s string) error {
				if confirm && len(s) < auth.MinPasswordLength {
					return auth.ErrWeakPassword
				}
				return nil
			}))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

type SignUpCmd struct {
	Email    string `arg:"" optional:"" help:"Account email."`
	Password string `help:"Account password (prompted when omitted)." env:"HABITMAP_PASSWORD"`
}

func (c *SignUpCmd) Run(ctx *Context) error {
	if !ctx.SyncConfigured() {
		return fmt.Errorf("%w: configure remote.connection_string first", app.ErrSyncUnavailable)
	}
	if err := promptCredentials(&c.Email, &c.Password, true); err != nil {
		return err
	}
	if err := ctx.App.SignUp(context.Background(), c.Email, c.Password); err != nil {
		return err
	}
	ctx.printf("✓ Account created for %s\n", ctx.App.Status().Email)
	return nil
}

type SignInCmd struct {
	Email    string `arg:"" optional:"" help:"Account email."`
	Password string `help:"Account password (prompted when omitted)." env:"HABITMAP_PASSWORD"`
}

func (c *SignInCmd) Run(ctx *Context) error {
	if !ctx.SyncConfigured() {
		return fmt.Errorf("%w: configure remote.connection_string first", app.ErrSyncUnavailable)
	}
	if err := promptCredentials(&c.Email, &c.Password, false); err != nil {
		return err
	}
	if err := ctx.App.SignIn(context.Background(), c.Email, c.Password); err != nil {
		return err
	}
	ctx.printf("✓ Signed in as %s\n", ctx.App.Status().Email)
	printSyncState(ctx)
	return nil
}

type SignOutCmd struct{}

func (c *SignOutCmd) Run(ctx *Context) error {
	if err := ctx.App.Resume(context.Background()); err != nil && !errors.Is(err, app.ErrNotSignedIn) {
		return err
	}
	if err := ctx.App.SignOut(); err != nil {
		return err
	}
	ctx.printf("Signed out\n")
	return nil
}

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	st := ctx.App.Status()
	switch {
	case st.Offline:
		ctx.printf("Account: local only\n")
	case st.Email != "":
		ctx.printf("Account: %s\n", st.Email)
	default:
		ctx.printf("Account: %s\n", st.AccountID)
	}
	printSyncState(ctx)

	doc := ctx.App.Snapshot()
	ctx.printf("Habits:  %d\nTodos:   %d\nUpdated: %s\n", len(doc.Habits), len(doc.Todos), doc.Meta.UpdatedAt)
	return nil
}

func printSyncState(ctx *Context) {
	st := ctx.App.Status().Sync
	ctx.printf("Sync:    %s\n", st.State)
	if !st.LastSyncedAt.IsZero() {
		ctx.printf("Synced:  %s\n", st.LastSyncedAt.Format("2006-01-02 15:04:05"))
	}
	if st.LastError != nil {
		ctx.printf("Error:   %v\n", st.LastError)
	}
	printActivity(ctx)
}

// printActivity reports what the sync engine did in this process
func printActivity(ctx *Context) {
	act, err := habitsync.ReadActivity(ctx.Metrics)
	if err != nil {
		logger.Warn("Failed to read sync metrics", "error", err)
		return
	}
	if act.TotalCycles() == 0 && act.Scheduled == 0 {
		return
	}
	outcomes := make([]string, 0, len(act.Cycles))
	for outcome, n := range act.Cycles {
		if n > 0 {
			outcomes = append(outcomes, fmt.Sprintf("%s %d", outcome, n))
		}
	}
	sort.Strings(outcomes)
	realtime := 0
	for _, n := range act.Realtime {
		realtime += n
	}
	ctx.printf("Activity: %d cycle(s) [%s] in %.2fs, %d scheduled push(es), %d realtime event(s)\n",
		act.TotalCycles(), strings.Join(outcomes, ", "), act.Seconds, act.Scheduled, realtime)
}

type SyncCmd struct {
	Force bool `help:"Push the local document even when the remote copy is not older."`
}

func (c *SyncCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	res, err := ctx.App.SyncNow(context.Background(), c.Force)
	if err != nil {
		return err
	}
	switch {
	case res.Pulled && res.Pushed:
		ctx.printf("✓ Pulled remote changes and pushed\n")
	case res.Pulled:
		ctx.printf("✓ Pulled newer remote document\n")
	case res.Pushed:
		ctx.printf("✓ Pushed local document\n")
	default:
		ctx.printf("✓ Already up to date\n")
	}
	return nil
}

type WatchCmd struct{}

func (c *WatchCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := ctx.App.SyncNow(runCtx, false); err != nil {
		return err
	}
	ctx.printf("Watching for remote changes (Ctrl+C to stop)\n")
	err := ctx.App.Watch(runCtx)
	printActivity(ctx)
	return err
}
