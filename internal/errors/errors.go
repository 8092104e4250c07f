// Package errors renders command failures for the terminal
package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitmap/internal/app"
	"github.com/julianstephens/habitmap/internal/auth"
	"github.com/julianstephens/habitmap/internal/keyring"
	"github.com/julianstephens/habitmap/internal/logger"
	"github.com/julianstephens/habitmap/internal/migration"
	"github.com/julianstephens/habitmap/internal/remote/postgres"
)

var hints = []struct {
	target error
	hint   string
}{
	{app.ErrNotSignedIn, "Run 'habitmap signin', or pass --offline to use the local-only account."},
	{app.ErrSyncUnavailable, "Set remote.connection_string and remote.jwt_secret in the config, or store the connection string with 'habitmap keyring set'."},
	{auth.ErrInvalidCredentials, "Check the email and password, or create an account with 'habitmap signup'."},
	{auth.ErrAccountExists, "Sign in with 'habitmap signin' instead."},
	{postgres.ErrEmbeddedCredentials, "Remove the password from the connection string and use ~/.pgpass, PGPASSWORD, or 'habitmap keyring set'."},
	{keyring.ErrKeyringUnavailable, "Put the connection string in the config file or HABITMAP_DB_CONNECTION instead."},
	{migration.ErrInvalidData, "The file is not a habitmap document."},
}

// Hint returns a suggested next step for well-known errors, or ""
func Hint(err error) string {
	for _, h := range hints {
		if stderrors.Is(err, h.target) {
			return h.hint
		}
	}
	return ""
}

// Format formats an error message with a consistent "Error: " prefix and,
// when one applies, a hint on the following line
func Format(err error) string {
	if err == nil {
		return ""
	}
	msg := fmt.Sprintf("Error: %v", err)
	if hint := Hint(err); hint != "" {
		msg += "\n  " + hint
	}
	return msg
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1. A nil error is a no-op.
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
