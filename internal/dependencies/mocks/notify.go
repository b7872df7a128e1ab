package mocks

import (
	"context"
	"sync"

	"github.com/mcoot/arena-auth/internal/dependencies/notify"
)

// MockNotifier records notifications for assertions
type MockNotifier struct {
	mu    sync.Mutex
	notes []notify.Notification
}

// Ensure MockNotifier implements Notifier
var _ notify.Notifier = (*MockNotifier)(nil)

// NewMockNotifier creates an empty MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (n *MockNotifier) Notify(_ context.Context, note notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

// Notifications returns everything recorded so far
func (n *MockNotifier) Notifications() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.notes...)
}

// Levels returns the level of every recorded notification in order
func (n *MockNotifier) Levels() []notify.Level {
	n.mu.Lock()
	defer n.mu.Unlock()
	levels := make([]notify.Level, len(n.notes))
	for i, note := range n.notes {
		levels[i] = note.Level
	}
	return levels
}

// Reset forgets recorded notifications
func (n *MockNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = nil
}
