package mock

import (
	"context"
	"sync"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// Adapter is a transport.Adapter test double: Send records destinations
// instead of touching a real substrate, and Deliver lets a test simulate
// an inbound message the way the teacher's Broker.Deliver simulated one
// against a topic-keyed handler map.
type Adapter struct {
	mu      sync.Mutex
	name    string
	kind    transport.Type
	running bool
	sent    []SentMessage
	SendErr error

	subscriptions map[string]transport.Dispatcher
	Healthy       bool
}

// SentMessage records one Send call.
type SentMessage struct {
	Message     *core.Message
	Destination string
}

// NewAdapter returns a stopped, healthy Adapter named name of kind.
func NewAdapter(name string, kind transport.Type) *Adapter {
	return &Adapter{name: name, kind: kind, Healthy: true, subscriptions: make(map[string]transport.Dispatcher)}
}

func (a *Adapter) Name() string                  { return a.name }
func (a *Adapter) TransportType() transport.Type { return a.kind }

func (a *Adapter) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = true
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = false
	return nil
}

func (a *Adapter) Dispose() error { return a.Stop(context.Background()) }

func (a *Adapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SendErr != nil {
		return a.SendErr
	}
	a.sent = append(a.sent, SentMessage{Message: msg, Destination: destination})
	return nil
}

// Sent returns a snapshot of every message handed to Send.
func (a *Adapter) Sent() []SentMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]SentMessage, len(a.sent))
	copy(out, a.sent)
	return out
}

func (a *Adapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	msg, mctx := transport.BuildMessage(ctx, raw)
	mctx.SetSourceTransport(a.name)
	return dispatcher.Dispatch(ctx, msg, mctx)
}

func (a *Adapter) SupportsSubscription() bool { return true }

func (a *Adapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher transport.Dispatcher) error {
	a.mu.Lock()
	a.subscriptions[subscriptionName] = dispatcher
	a.mu.Unlock()
	<-ctx.Done()
	return nil
}

// IsSubscribed reports whether Subscribe has registered subscriptionName,
// letting a test wait deterministically for the registration side effect
// of a Subscribe call running on another goroutine before delivering.
func (a *Adapter) IsSubscribed(subscriptionName string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.subscriptions[subscriptionName]
	return ok
}

func (a *Adapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.subscriptions, subscriptionName)
	return nil
}

// Deliver simulates an inbound raw message arriving on subscriptionName,
// dispatching it to whatever Dispatcher Subscribe registered for that name.
func (a *Adapter) Deliver(ctx context.Context, subscriptionName string, raw transport.RawMessage) (core.Result, error) {
	a.mu.Lock()
	dispatcher, ok := a.subscriptions[subscriptionName]
	a.mu.Unlock()
	if !ok {
		return core.Result{}, core.ErrNoHandler
	}
	return a.Receive(ctx, raw, dispatcher)
}

func (a *Adapter) CheckHealth(ctx context.Context) transport.HealthResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return transport.HealthResult{Healthy: a.Healthy, Category: transport.HealthCategoryConnectivity}
}
