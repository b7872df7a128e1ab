package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/arena-auth/internal/testutil"
)

func newRunningHub(t *testing.T) *Hub[int] {
	t.Helper()
	hub := NewHub[int]("test", testutil.NopLogger())
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub
}

func collect(t *testing.T, ch <-chan int, n int) []int {
	t.Helper()
	got := make([]int, 0, n)
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case v := <-ch:
			got = append(got, v)
		case <-timeout:
			t.Fatalf("timed out after %d of %d values", len(got), n)
		}
	}
	return got
}

func TestHubDeliversInOrder(t *testing.T) {
	hub := newRunningHub(t)

	ch := make(chan int, 10)
	sub := hub.Subscribe(func(v int) { ch <- v })
	defer sub.Unsubscribe()

	for i := 1; i <= 5; i++ {
		hub.Publish(i)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, collect(t, ch, 5))
}

func TestHubFansOutToAllListeners(t *testing.T) {
	hub := newRunningHub(t)

	a := make(chan int, 1)
	b := make(chan int, 1)
	hub.Subscribe(func(v int) { a <- v })
	hub.Subscribe(func(v int) { b <- v })
	require.Eventually(t, func() bool { return hub.ListenerCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Publish(7)

	assert.Equal(t, []int{7}, collect(t, a, 1))
	assert.Equal(t, []int{7}, collect(t, b, 1))
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := newRunningHub(t)

	var mu sync.Mutex
	var got []int
	sub := hub.Subscribe(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Eventually(t, func() bool { return hub.ListenerCount() == 0 }, time.Second, 5*time.Millisecond)

	// A second listener proves the publish went through the loop
	ch := make(chan int, 1)
	hub.Subscribe(func(v int) { ch <- v })
	hub.Publish(1)
	collect(t, ch, 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, got)
}

func TestHubUnsubscribeFromInsideListener(t *testing.T) {
	hub := newRunningHub(t)

	done := make(chan struct{})
	var sub *Subscription
	ready := make(chan struct{})
	sub = hub.Subscribe(func(int) {
		<-ready
		sub.Unsubscribe()
		close(done)
	})
	close(ready)

	hub.Publish(1)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not unsubscribe itself")
	}
}

func TestHubSurvivesPanickingListener(t *testing.T) {
	hub := newRunningHub(t)

	ch := make(chan int, 2)
	hub.Subscribe(func(v int) {
		if v == 1 {
			panic("bad listener")
		}
		ch <- v
	})

	hub.Publish(1)
	hub.Publish(2)

	assert.Equal(t, []int{2}, collect(t, ch, 1))
}

func TestHubClosed(t *testing.T) {
	hub := NewHub[int]("closed", testutil.NopLogger())
	go hub.Run()
	hub.Close()
	hub.Close()

	sub := hub.Subscribe(func(int) { t.Error("closed hub delivered a value") })
	sub.Unsubscribe()
	hub.Publish(1)
}
