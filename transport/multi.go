package transport

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// PublishCapable is an optional adapter capability. Adapters that don't
// implement it are assumed publish-capable, since the base Adapter
// contract already exposes Send.
type PublishCapable interface {
	SupportsPublishing() bool
}

// Subscriber is an optional adapter capability for substrates that support
// a subscribe/unsubscribe surface (queues, topics) as opposed to pure
// send/receive (e.g. cron has neither).
type Subscriber interface {
	SupportsSubscription() bool
	Subscribe(ctx context.Context, subscriptionName string, dispatcher Dispatcher) error
	Unsubscribe(ctx context.Context, subscriptionName string) error
}

// HealthStatus is the §4.9 aggregate health verdict.
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// HealthPolicy configures aggregate health evaluation.
type HealthPolicy struct {
	RequireAtLeastOneTransport     bool
	RequireDefaultTransportHealthy bool
	Timeout                        time.Duration
}

// MultiAdapter aggregates every adapter in a Registry behind a single
// publish/subscribe/health surface (§4.9). Generalizes the teacher's
// broker.Broker single-instance surface to fan out across N registered
// adapters, the way internal/mock.Broker's Deliver indexes by topic
// generalizes here to indexing by transport name via a scheme prefix.
type MultiAdapter struct {
	registry *Registry
	policy   HealthPolicy
}

// NewMultiAdapter constructs a MultiAdapter over registry.
func NewMultiAdapter(registry *Registry, policy HealthPolicy) *MultiAdapter {
	if policy.Timeout <= 0 {
		policy.Timeout = 5 * time.Second
	}
	return &MultiAdapter{registry: registry, policy: policy}
}

// SupportsPublishing is true iff any registered adapter is publish-capable.
func (m *MultiAdapter) SupportsPublishing() bool {
	for _, reg := range m.registry.GetAllTransports() {
		if pc, ok := reg.Adapter.(PublishCapable); ok {
			if pc.SupportsPublishing() {
				return true
			}
			continue
		}
		return true // no capability interface: base Send is assumed available
	}
	return false
}

// SupportsSubscription is true iff any registered adapter supports
// subscribe/unsubscribe.
func (m *MultiAdapter) SupportsSubscription() bool {
	for _, reg := range m.registry.GetAllTransports() {
		if sc, ok := reg.Adapter.(Subscriber); ok && sc.SupportsSubscription() {
			return true
		}
	}
	return false
}

// Publish forwards to the default adapter's Send. If no default exists and
// the registry is empty, it returns a failed Result rather than an error
// (§4.9, §7: multi-transport publish never throws on "no default").
func (m *MultiAdapter) Publish(ctx context.Context, msg *core.Message, destination string) core.Result {
	adapter := m.registry.GetDefaultTransportAdapter()
	if adapter == nil {
		return core.Failure(core.NewError(core.ConfigurationError, "eventmux: no default transport configured"))
	}
	if err := adapter.Send(ctx, msg, destination); err != nil {
		return core.Failure(core.WrapError(core.ConfigurationError, "eventmux: publish failed", err))
	}
	return core.Success()
}

// resolveScheme splits a "<transport>://<name>" subscription name into its
// adapter and bare name. If no scheme is present, ok is false and the bare
// name is the original input.
func resolveScheme(name string) (scheme, bare string, hasScheme bool) {
	if idx := strings.Index(name, "://"); idx >= 0 {
		return name[:idx], name[idx+3:], true
	}
	return "", name, false
}

// Subscribe resolves the target adapter (by scheme prefix, or the default
// if scheme-less) and subscribes to it. An unknown scheme fails with
// InvalidArgument (§4.9).
func (m *MultiAdapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher Dispatcher) error {
	adapter, bare, err := m.resolveAdapter(subscriptionName, true)
	if err != nil {
		return err
	}
	if adapter == nil {
		return core.NewError(core.ConfigurationError, "eventmux: no default transport configured")
	}
	sub, ok := adapter.(Subscriber)
	if !ok {
		return core.NewError(core.ConfigurationError, "eventmux: adapter does not support subscription")
	}
	return sub.Subscribe(ctx, bare, dispatcher)
}

// Unsubscribe mirrors Subscribe's scheme resolution, except an unknown
// scheme is a silent no-op rather than an error (§4.9).
func (m *MultiAdapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	adapter, bare, err := m.resolveAdapter(subscriptionName, false)
	if err != nil || adapter == nil {
		return nil
	}
	sub, ok := adapter.(Subscriber)
	if !ok {
		return nil
	}
	return sub.Unsubscribe(ctx, bare)
}

func (m *MultiAdapter) resolveAdapter(name string, failOnUnknownScheme bool) (Adapter, string, error) {
	scheme, bare, hasScheme := resolveScheme(name)
	if !hasScheme {
		return m.registry.GetDefaultTransportAdapter(), bare, nil
	}
	adapter := m.registry.GetTransportAdapter(scheme)
	if adapter == nil {
		if failOnUnknownScheme {
			return nil, "", core.NewError(core.InvalidArgument, "eventmux: unknown transport scheme "+scheme)
		}
		return nil, "", nil
	}
	return adapter, bare, nil
}

// Start and Stop fan out concurrently to every registered adapter, wait for
// all of them, and return the first non-nil error in registry order.
// MultiAdapter has no separate Initialize step.
func (m *MultiAdapter) Start(ctx context.Context) error {
	return m.fanOut(func(a Adapter) error { return a.Start(ctx) })
}

func (m *MultiAdapter) Stop(ctx context.Context) error {
	return m.fanOut(func(a Adapter) error { return a.Stop(ctx) })
}

func (m *MultiAdapter) fanOut(op func(Adapter) error) error {
	regs := m.registry.GetAllTransports()
	errs := make([]error, len(regs))
	var wg sync.WaitGroup
	for i, reg := range regs {
		wg.Add(1)
		go func(i int, a Adapter) {
			defer wg.Done()
			errs[i] = op(a)
		}(i, reg.Adapter)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Dispose disposes every adapter and clears the registry (§4.9).
func (m *MultiAdapter) Dispose() {
	m.registry.Dispose()
}

// CheckHealth runs every adapter's quick health check concurrently, bounded
// by policy.Timeout, and aggregates per the §4.9 table. Per-adapter panics
// or context errors are treated as unhealthy for that adapter without
// aborting the overall aggregation.
func (m *MultiAdapter) CheckHealth(ctx context.Context) HealthStatus {
	regs := m.registry.GetAllTransports()
	if len(regs) == 0 {
		if m.policy.RequireAtLeastOneTransport {
			return Unhealthy
		}
		return Healthy
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.policy.Timeout)
	defer cancel()

	type outcome struct {
		name    string
		healthy bool
	}
	results := make([]outcome, len(regs))
	var wg sync.WaitGroup
	for i, reg := range regs {
		wg.Add(1)
		go func(i int, reg *Registration) {
			defer wg.Done()
			results[i] = outcome{name: reg.Name, healthy: checkOne(checkCtx, reg.Adapter)}
		}(i, reg)
	}
	wg.Wait()

	if checkCtx.Err() != nil {
		return Unhealthy
	}

	defaultName, hasDefault := m.registry.DefaultTransportName()
	allHealthy, allUnhealthy := true, true
	defaultHealthy := true
	for _, r := range results {
		if r.healthy {
			allUnhealthy = false
		} else {
			allHealthy = false
		}
		if hasDefault && r.name == defaultName {
			defaultHealthy = r.healthy
		}
	}

	switch {
	case allHealthy:
		return Healthy
	case allUnhealthy:
		return Unhealthy
	case m.policy.RequireDefaultTransportHealthy && hasDefault && !defaultHealthy:
		return Unhealthy
	default:
		return Degraded
	}
}

func checkOne(ctx context.Context, adapter Adapter) (healthy bool) {
	defer func() {
		if recover() != nil {
			healthy = false
		}
	}()
	hc, ok := adapter.(HealthChecker)
	if !ok {
		return adapter.IsRunning()
	}
	select {
	case <-ctx.Done():
		return false
	default:
	}
	return hc.CheckHealth(ctx).Healthy
}
