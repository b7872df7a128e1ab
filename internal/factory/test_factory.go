package factory

import (
	"time"

	"github.com/mcoot/arena-auth/internal/backend/memory"
	"github.com/mcoot/arena-auth/internal/dependencies/mocks"
	"github.com/mcoot/arena-auth/internal/dependencies/navigate"
	"github.com/mcoot/arena-auth/internal/services/signup"
	memstorage "github.com/mcoot/arena-auth/internal/storage/memory"
	"github.com/mcoot/arena-auth/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock    *mocks.MockClock
	MockRandom   *mocks.MockRandom
	MockNotifier *mocks.MockNotifier
	History      *navigate.History
	Directory    *memory.Directory
	MemoryStore  *memstorage.Storage
}

// NewTestApp creates an App on the memory backend with mocked dependencies
func NewTestApp(opts memory.Options) *TestApp {
	return newTestApp(opts, memstorage.New())
}

// Restart builds a second App over the same directory, clock and state
// store, the way a new process would see them
func (t *TestApp) Restart() *TestApp {
	next := &TestApp{
		MockClock:    t.MockClock,
		MockRandom:   t.MockRandom,
		MockNotifier: mocks.NewMockNotifier(),
		History:      navigate.NewHistory(nil),
		Directory:    t.Directory,
		MemoryStore:  t.MemoryStore,
	}
	return next.rewire()
}

func newTestApp(opts memory.Options, store *memstorage.Storage) *TestApp {
	t := &TestApp{
		MockClock:    mocks.NewMockClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)),
		MockRandom:   mocks.NewMockRandom(),
		MockNotifier: mocks.NewMockNotifier(),
		History:      navigate.NewHistory(nil),
		MemoryStore:  store,
	}
	t.Directory = memory.NewDirectory(opts, t.MockClock, t.MockRandom, testutil.NopLogger())
	return t.rewire()
}

func (t *TestApp) rewire() *TestApp {
	logger := testutil.NopLogger()
	client := memory.NewClient(t.Directory, t.MockClock, logger)

	app := &App{
		Store:   t.MemoryStore,
		Clock:   t.MockClock,
		closers: []func() error{client.Close},
	}
	wire(app, client, client, t.MockNotifier, t.History, signup.DefaultConfig(), logger)

	t.App = app
	return t
}
