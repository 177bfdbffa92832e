package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup builds a slog.Logger that writes JSON-structured records to w.
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

// SetupDefault installs a JSON-structured logger as the slog package
// default. w is typically os.Stdout in production.
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w)
	slog.SetDefault(logger)
}
