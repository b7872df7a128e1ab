// Package testutil holds helpers shared by package tests
package testutil

import (
	"io"
	"log/slog"
	"testing"
)

// NopLogger returns a logger that drops every record
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Logger returns a debug logger that writes through t.Log, so output only
// shows for failing tests or with -v
func Logger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
