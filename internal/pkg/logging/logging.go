package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
)

func New(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// AccessWriter turns each line written by gorilla/handlers' logging handler
// into an info record on the wrapped logger.
type AccessWriter struct {
	logger *slog.Logger
}

func NewAccessWriter(logger *slog.Logger) *AccessWriter {
	return &AccessWriter{logger: logger}
}

func (w *AccessWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		w.logger.LogAttrs(context.Background(), slog.LevelInfo, "http request", slog.String("access", string(line)))
	}
	return len(p), nil
}
