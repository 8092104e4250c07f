// Package logger holds the process-wide structured logger. Records go to a
// rotating file under the data directory and, in debug mode, to stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/habitmap/internal/constants"
)

// Logger is the global logger instance; nil until Init
var Logger *log.Logger

type Config struct {
	// Dir is the data directory; logs live in Dir/logs
	Dir string
	// Level is a charmbracelet/log level name; empty means "warn"
	Level string
	// Debug forces the debug level and mirrors records to Console
	Debug bool
	// Console receives records in debug mode; defaults to stderr
	Console io.Writer
}

// LogPath returns the rotating log file used for dir
func LogPath(dir string) string {
	return filepath.Join(dir, "logs", constants.AppName+".log")
}

// Init replaces the global logger
func Init(cfg Config) error {
	level := log.WarnLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	if cfg.Debug {
		level = log.DebugLevel
	}

	path := LogPath(cfg.Dir)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	var w io.Writer = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}
	// The sync loop warns on every failed push while offline, so stderr stays quiet by default
	if cfg.Debug {
		console := cfg.Console
		if console == nil {
			console = os.Stderr
		}
		w = io.MultiWriter(console, w)
	}

	Logger = log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
	})
	return nil
}

func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}
