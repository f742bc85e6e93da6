// Package pubsub implements a transport.Adapter over Google Cloud
// Pub/Sub via cloud.google.com/go/pubsub/v2, generalized from the
// hyperforge streaming adapter's single-client/topic-by-name shape into
// a full publish+subscribe transport.Adapter.
package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// Adapter implements transport.Adapter for Google Cloud Pub/Sub.
type Adapter struct {
	name      string
	projectID string
	client    *pubsub.Client
	opts      options

	mu         sync.Mutex
	running    bool
	publishers map[string]*pubsub.Publisher
}

// New constructs a Pub/Sub client scoped to projectID.
func New(ctx context.Context, name, projectID string, fns ...Option) (*Adapter, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	client, err := pubsub.NewClient(ctx, projectID, opts.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("eventmux/pubsub: new client: %w", err)
	}

	return &Adapter{name: name, projectID: projectID, client: client, opts: opts, publishers: make(map[string]*pubsub.Publisher)}, nil
}

func (a *Adapter) Name() string                  { return a.name }
func (a *Adapter) TransportType() transport.Type { return transport.GooglePubSub }

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
	for _, p := range a.publishers {
		p.Stop()
	}
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

func (a *Adapter) Dispose() error { return a.Stop(context.Background()) }

func (a *Adapter) publisherFor(topicID string) *pubsub.Publisher {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.publishers[topicID]; ok {
		return p
	}
	p := a.client.Publisher(topicID)
	a.publishers[topicID] = p
	return p
}

// Send publishes msg to the topic ID named by destination.
func (a *Adapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	attrs := make(map[string]string, len(msg.Headers.Keys()))
	for _, k := range msg.Headers.Keys() {
		v, _ := msg.Headers.Get(k)
		attrs[k] = v
	}

	publisher := a.publisherFor(destination)
	result := publisher.Publish(ctx, &pubsub.Message{Data: msg.Body, Attributes: attrs, OrderingKey: msg.CorrelationID})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("eventmux/pubsub: publish to %q: %w", destination, err)
	}
	return nil
}

func (a *Adapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	msg, mctx := transport.BuildMessage(ctx, raw)
	mctx.SetSourceTransport(a.name)
	return dispatcher.Dispatch(ctx, msg, mctx)
}

func (a *Adapter) SupportsSubscription() bool { return true }

// Subscribe pulls from the subscription ID named by subscriptionName
// until ctx is cancelled, acking on successful dispatch and nacking
// (for redelivery) otherwise.
func (a *Adapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher transport.Dispatcher) error {
	sub := a.client.Subscriber(subscriptionName)
	err := sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		raw := transport.RawMessage{Body: m.Data, Headers: m.Attributes}
		res, err := a.Receive(ctx, raw, dispatcher)
		if err != nil || !res.Succeeded() {
			m.Nack()
			return
		}
		m.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("eventmux/pubsub: receive on %q: %w", subscriptionName, err)
	}
	return nil
}

// Unsubscribe is a no-op; Subscribe's Receive loop exits on ctx cancellation.
func (a *Adapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	return nil
}

func (a *Adapter) CheckHealth(ctx context.Context) transport.HealthResult {
	start := time.Now()
	a.mu.Lock()
	healthy := a.running
	a.mu.Unlock()
	desc := "client initialized"
	if !healthy {
		desc = "not started"
	}
	return transport.HealthResult{Healthy: healthy, Description: desc, Category: transport.HealthCategoryConnectivity, Duration: time.Since(start)}
}
