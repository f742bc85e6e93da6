package pubsub

import (
	"context"
	"testing"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/internal/mock"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// New dials a real Pub/Sub client, so these exercise the zero-value
// construction path the way sns's tests do.

func TestAdapter_NameAndTransportType(t *testing.T) {
	a := &Adapter{name: "events", projectID: "my-project"}
	if a.Name() != "events" {
		t.Fatalf("got %q", a.Name())
	}
	if a.TransportType() != transport.GooglePubSub {
		t.Fatalf("expected GooglePubSub, got %v", a.TransportType())
	}
}

func TestAdapter_StartStopTogglesRunning(t *testing.T) {
	a := &Adapter{name: "events"}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !a.IsRunning() {
		t.Fatal("expected running after Start")
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if a.IsRunning() {
		t.Fatal("expected not running after Stop")
	}
}

func TestAdapter_Receive_DispatchesBuiltMessage(t *testing.T) {
	a := &Adapter{name: "events"}
	dispatcher := mock.NewDispatcher()

	raw := transport.RawMessage{Body: []byte("hi"), Headers: map[string]string{core.HeaderMessageType: "orders.Created"}}
	if _, err := a.Receive(context.Background(), raw, dispatcher); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(dispatcher.Calls()) != 1 {
		t.Fatalf("expected one dispatch call, got %d", len(dispatcher.Calls()))
	}
}

func TestAdapter_SupportsSubscription(t *testing.T) {
	a := &Adapter{name: "events"}
	if !a.SupportsSubscription() {
		t.Fatal("expected pubsub adapter to support subscription")
	}
}
