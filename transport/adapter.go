// Package transport implements the §4.8/§4.9 registry, router, binding
// matcher, startup validator, and multi-transport aggregation, grounded on
// the teacher's broker package (broker/registry.go's factory map,
// broker/config.go's loose options bag) generalized from a single
// broker-kind registry to a named, typed, health-aware adapter registry.
package transport

import (
	"context"
	"time"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// Type identifies a transport's underlying substrate.
type Type string

const (
	RabbitMQ          Type = "rabbitmq"
	Kafka             Type = "kafka"
	NATS              Type = "nats"
	AzureServiceBus   Type = "azure_service_bus"
	AWSSQS            Type = "aws_sqs"
	AWSSNS            Type = "aws_sns"
	GooglePubSub      Type = "google_pubsub"
	GRPC              Type = "grpc"
	InMemory          Type = "in_memory"
	Cron              Type = "cron"
)

// RawMessage is an inbound transport message as handed to Receive, before
// it is mapped into a core.Message. Adapters populate what their substrate
// gives them; mapping into core.Message/core.MessageContext happens in the
// mapping package.
type RawMessage struct {
	Body       []byte
	Headers    map[string]string
	Properties map[string]any
}

// Dispatcher is the surface an adapter's Receive hands control to after
// turning a RawMessage into a core.Message — normally a core.Invoker, but
// kept as an interface so adapters never import core.ChainBuilder directly.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error) {
	return f(ctx, msg, mctx)
}

// HealthCategory classifies a health check's subject.
type HealthCategory string

const (
	HealthCategoryConnectivity HealthCategory = "connectivity"
	HealthCategoryThroughput   HealthCategory = "throughput"
	HealthCategoryUnknown      HealthCategory = "unknown"
)

// HealthResult is the §6 adapter health-check shape.
type HealthResult struct {
	Healthy     bool
	Description string
	Category    HealthCategory
	Duration    time.Duration
	Metrics     map[string]float64
}

// Adapter is the §6 adapter contract every transport plugin implements.
type Adapter interface {
	Name() string
	TransportType() Type
	IsRunning() bool
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg *core.Message, destination string) error
	Receive(ctx context.Context, raw RawMessage, dispatcher Dispatcher) (core.Result, error)
}

// HealthChecker is an optional capability: adapters that can report a quick
// health verdict implement it.
type HealthChecker interface {
	CheckHealth(ctx context.Context) HealthResult
}

// DetailedHealthChecker is an optional capability for adapters whose health
// check is expensive enough to warrant a distinct, context-bound call.
type DetailedHealthChecker interface {
	CheckHealthDetailed(ctx context.Context) HealthResult
}

// Disposer is implemented by adapters that hold resources the registry must
// release on Dispose/Clear (§3 "Ownership": the registry owns adapters).
type Disposer interface {
	Dispose() error
}
