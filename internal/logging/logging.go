// Package logging builds the slog handlers the binaries install. Terminal
// runs get colored console output, automation passes --log-json and gets
// one JSON object per line.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"
)

// New returns a logger writing to stderr at the given level. Level is one
// of debug, info, warn or error, case-insensitive.
func New(level string, json bool) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
	}
	return slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{Level: lvl})), nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}
