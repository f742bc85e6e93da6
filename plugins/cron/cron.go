// Package cron implements a transport.Adapter over robfig/cron/v3: a
// scheduled/internal-clock transport with no external substrate. Each
// Subscribe call registers subscriptionName as a cron schedule expression;
// on every tick the adapter synthesizes a RawMessage and dispatches it.
// There is nothing to Send to, since the clock is the only producer.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// Adapter implements transport.Adapter for cron-scheduled triggers.
type Adapter struct {
	name string
	opts options

	mu      sync.Mutex
	running bool
	sched   *cron.Cron
	entries map[string]cron.EntryID
}

// New constructs a cron-backed adapter.
func New(name string, fns ...Option) *Adapter {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Adapter{name: name, opts: opts, entries: make(map[string]cron.EntryID)}
}

func (a *Adapter) Name() string                  { return a.name }
func (a *Adapter) TransportType() transport.Type { return transport.Cron }

func (a *Adapter) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sched == nil {
		a.sched = cron.New(a.opts.cronOpts...)
	}
	a.sched.Start()
	a.running = true
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	sched := a.sched
	a.running = false
	a.mu.Unlock()
	if sched == nil {
		return nil
	}
	<-sched.Stop().Done()
	return nil
}

func (a *Adapter) Dispose() error { return a.Stop(context.Background()) }

// Send always fails: cron has no publish destination, only a schedule.
func (a *Adapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	return fmt.Errorf("eventmux/cron: transport is schedule-only, cannot send to %q", destination)
}

// SupportsPublishing reports false per the transport.PublishCapable
// capability, so MultiAdapter.SupportsPublishing does not count this
// adapter as publish-capable.
func (a *Adapter) SupportsPublishing() bool { return false }

func (a *Adapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	msg, mctx := transport.BuildMessage(ctx, raw)
	mctx.SetSourceTransport(a.name)
	return dispatcher.Dispatch(ctx, msg, mctx)
}

func (a *Adapter) SupportsSubscription() bool { return true }

// Subscribe treats subscriptionName as a cron schedule expression and
// registers a job that synthesizes and dispatches a tick message on every
// firing, until ctx is cancelled.
func (a *Adapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher transport.Dispatcher) error {
	a.mu.Lock()
	if a.sched == nil {
		a.sched = cron.New(a.opts.cronOpts...)
		a.sched.Start()
		a.running = true
	}
	sched := a.sched
	a.mu.Unlock()

	id, err := sched.AddFunc(subscriptionName, func() {
		raw := transport.RawMessage{
			Body: nil,
			Headers: map[string]string{
				core.HeaderMessageType: "eventmux.cron.Tick",
			},
		}
		if _, err := a.Receive(ctx, raw, dispatcher); err != nil {
			return
		}
	})
	if err != nil {
		return fmt.Errorf("eventmux/cron: invalid schedule %q: %w", subscriptionName, err)
	}

	a.mu.Lock()
	a.entries[subscriptionName] = id
	a.mu.Unlock()

	<-ctx.Done()
	sched.Remove(id)
	return nil
}

// Unsubscribe removes the cron entry registered for subscriptionName.
func (a *Adapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.entries[subscriptionName]
	if !ok {
		return nil
	}
	if a.sched != nil {
		a.sched.Remove(id)
	}
	delete(a.entries, subscriptionName)
	return nil
}

func (a *Adapter) CheckHealth(ctx context.Context) transport.HealthResult {
	start := time.Now()
	healthy := a.IsRunning()
	desc := "scheduler running"
	if !healthy {
		desc = "scheduler stopped"
	}
	return transport.HealthResult{Healthy: healthy, Description: desc, Category: transport.HealthCategoryConnectivity, Duration: time.Since(start)}
}
