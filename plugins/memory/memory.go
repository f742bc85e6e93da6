// Package memory implements a transport.Adapter entirely over Go channels,
// generalizing the teacher's internal/mock.Broker (handler map +
// mutex-guarded Deliver) from a test double into a real in-process pub/sub
// transport: Send fans a message out to every channel Subscribe registered
// for that topic.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// Adapter implements transport.Adapter entirely in-process.
type Adapter struct {
	name string
	opts options

	mu          sync.RWMutex
	running     bool
	subscribers map[string][]chan transport.RawMessage
}

// New constructs an in-memory adapter.
func New(name string, fns ...Option) *Adapter {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Adapter{name: name, opts: opts, subscribers: make(map[string][]chan transport.RawMessage)}
}

func (a *Adapter) Name() string                  { return a.name }
func (a *Adapter) TransportType() transport.Type { return transport.InMemory }

func (a *Adapter) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
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
	for topic, chans := range a.subscribers {
		for _, ch := range chans {
			close(ch)
		}
		delete(a.subscribers, topic)
	}
	return nil
}

func (a *Adapter) Dispose() error { return a.Stop(context.Background()) }

// Send fans msg out to every subscriber currently registered for the topic
// named by destination. A full subscriber channel drops the message for
// that subscriber rather than blocking the publisher.
func (a *Adapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	headers := make(map[string]string, len(msg.Headers.Keys()))
	for _, k := range msg.Headers.Keys() {
		v, _ := msg.Headers.Get(k)
		headers[k] = v
	}
	raw := transport.RawMessage{Body: msg.Body, Headers: headers}

	a.mu.RLock()
	chans := a.subscribers[destination]
	a.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- raw:
		default:
			// subscriber is behind; drop rather than block the publisher
		}
	}
	return nil
}

func (a *Adapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	msg, mctx := transport.BuildMessage(ctx, raw)
	mctx.SetSourceTransport(a.name)
	return dispatcher.Dispatch(ctx, msg, mctx)
}

func (a *Adapter) SupportsSubscription() bool { return true }

// Subscribe registers a channel for subscriptionName (the topic) and
// dispatches everything it receives until ctx is cancelled.
func (a *Adapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher transport.Dispatcher) error {
	ch := make(chan transport.RawMessage, a.opts.bufferSize)

	a.mu.Lock()
	a.subscribers[subscriptionName] = append(a.subscribers[subscriptionName], ch)
	a.mu.Unlock()

	defer a.removeSubscriber(subscriptionName, ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := a.Receive(ctx, raw, dispatcher); err != nil {
				return fmt.Errorf("eventmux/memory: dispatch on %q: %w", subscriptionName, err)
			}
		}
	}
}

func (a *Adapter) removeSubscriber(topic string, target chan transport.RawMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	chans := a.subscribers[topic]
	for i, ch := range chans {
		if ch == target {
			a.subscribers[topic] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
}

// Unsubscribe removes every registered channel for subscriptionName; each
// subscriber's consume loop then exits on the resulting closed channel.
func (a *Adapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range a.subscribers[subscriptionName] {
		close(ch)
	}
	delete(a.subscribers, subscriptionName)
	return nil
}

func (a *Adapter) CheckHealth(ctx context.Context) transport.HealthResult {
	start := time.Now()
	healthy := a.IsRunning()
	return transport.HealthResult{Healthy: healthy, Description: "in-process, always reachable", Category: transport.HealthCategoryConnectivity, Duration: time.Since(start)}
}
