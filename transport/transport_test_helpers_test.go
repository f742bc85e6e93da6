package transport_test

import (
	"context"
	"sync"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// fakeAdapter is a minimal transport.Adapter test double, grounded on the
// teacher's internal/mock.Broker (mutex-guarded state, no real I/O).
type fakeAdapter struct {
	mu         sync.Mutex
	name       string
	kind       transport.Type
	running    bool
	sent       []string
	healthy    bool
	subscribed map[string]transport.Dispatcher
}

func newFakeAdapter(name string, kind transport.Type, healthy bool) *fakeAdapter {
	return &fakeAdapter{name: name, kind: kind, healthy: healthy, subscribed: make(map[string]transport.Dispatcher)}
}

func (f *fakeAdapter) Name() string                { return f.name }
func (f *fakeAdapter) TransportType() transport.Type { return f.kind }

func (f *fakeAdapter) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeAdapter) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	return nil
}

func (f *fakeAdapter) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

func (f *fakeAdapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, destination)
	return nil
}

func (f *fakeAdapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	return core.Success(), nil
}

func (f *fakeAdapter) CheckHealth(ctx context.Context) transport.HealthResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return transport.HealthResult{Healthy: f.healthy, Category: transport.HealthCategoryConnectivity}
}

func (f *fakeAdapter) SupportsSubscription() bool { return true }

func (f *fakeAdapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher transport.Dispatcher) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[subscriptionName] = dispatcher
	return nil
}

func (f *fakeAdapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribed, subscriptionName)
	return nil
}
