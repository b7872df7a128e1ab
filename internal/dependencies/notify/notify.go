// Package notify delivers user-facing notifications (toasts in a browser,
// lines on the terminal for the CLI).
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Level is the severity of a notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one message shown to the user
type Notification struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier shows notifications to the user
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to a structured logger
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "notify"))}
}

func (n *LogNotifier) Notify(ctx context.Context, note Notification) {
	level := slog.LevelInfo
	if note.Level == LevelError {
		level = slog.LevelWarn
	}
	n.logger.LogAttrs(ctx, level, "notification",
		slog.String("level", string(note.Level)),
		slog.String("title", note.Title),
		slog.String("message", note.Message))
}

// WriterNotifier prints notifications as text lines
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a notifier printing to w
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Notify(_ context.Context, note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	marker := "*"
	switch note.Level {
	case LevelSuccess:
		marker = "+"
	case LevelError:
		marker = "!"
	}
	_, _ = fmt.Fprintf(n.w, "[%s] %s: %s\n", marker, note.Title, note.Message)
}

// Multi fans a notification out to several notifiers
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, note Notification) {
	for _, n := range m {
		n.Notify(ctx, note)
	}
}
