package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/internal/mock"
	"github.com/eventmux-dispatch/dispatchkit/plugins/memory"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

func TestAdapter_SendFansOutToAllSubscribers(t *testing.T) {
	a := memory.New("mem")
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(context.Background())

	first, second := mock.NewDispatcher(), mock.NewDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); a.Subscribe(ctx, "topic-a", first) }()
	go func() { defer wg.Done(); a.Subscribe(ctx, "topic-a", second) }()

	// Subscribe registers its channel asynchronously; keep publishing until
	// both subscribers have picked up at least one delivery each.
	msg := core.NewMessage(core.Event, []byte("hi"))
	waitUntil(t, func() bool {
		_ = a.Send(context.Background(), msg, "topic-a")
		return len(first.Calls()) >= 1 && len(second.Calls()) >= 1
	})
	cancel()
	wg.Wait()

	if got1, got2 := len(first.Calls()), len(second.Calls()); got1 < 1 || got2 < 1 {
		t.Fatalf("expected both subscribers to receive the message, got %d and %d calls", got1, got2)
	}
}

func TestAdapter_SendToUnknownTopicIsANoOp(t *testing.T) {
	a := memory.New("mem")
	if err := a.Send(context.Background(), core.NewMessage(core.Event, nil), "nobody-subscribed"); err != nil {
		t.Fatalf("expected no error sending to a topic with no subscribers, got %v", err)
	}
}

func TestAdapter_UnsubscribeStopsDelivery(t *testing.T) {
	a := memory.New("mem")
	dispatcher := mock.NewDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		a.Subscribe(ctx, "topic-b", dispatcher)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond) // let the Subscribe goroutine register its channel

	if err := a.Unsubscribe(context.Background(), "topic-b"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after Unsubscribe closed its channel")
	}
}

func TestAdapter_TransportType(t *testing.T) {
	a := memory.New("mem")
	if a.TransportType() != transport.InMemory {
		t.Fatalf("expected InMemory, got %v", a.TransportType())
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
