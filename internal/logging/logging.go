package logging

import (
	"log/slog"
	"os"
)

// Init installs the default slog logger. Warnings and errors are always
// shown; verbose mode enables debug output.
func Init(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
