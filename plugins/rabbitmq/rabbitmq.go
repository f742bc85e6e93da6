// Package rabbitmq implements a transport.Adapter over AMQP 0-9-1 via
// amqp091-go, generalized from the teacher's broker.Broker: the same
// single-connection/single-channel, manual-ack consume loop, but
// retargeted at transport.RawMessage/transport.Dispatcher instead of
// core.Handler, and exposing lifecycle/health through the transport.Adapter
// contract rather than the teacher's broker.Register factory.
package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// Adapter implements transport.Adapter for RabbitMQ.
type Adapter struct {
	name string
	conn *amqp.Connection
	ch   *amqp.Channel
	opts options

	mu      sync.Mutex
	running bool
}

// New dials uri and opens a single channel, applying the configured QoS.
func New(name, uri string, fns ...Option) (*Adapter, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("eventmux/rabbitmq: dial %q: %w", uri, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("eventmux/rabbitmq: open channel: %w", err)
	}
	if err := ch.Qos(opts.prefetchCount, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("eventmux/rabbitmq: set qos: %w", err)
	}

	return &Adapter{name: name, conn: conn, ch: ch, opts: opts}, nil
}

func (a *Adapter) Name() string                  { return a.name }
func (a *Adapter) TransportType() transport.Type { return transport.RabbitMQ }

func (a *Adapter) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Start marks the adapter running. The underlying connection is already
// established by New; Start exists to satisfy the Adapter lifecycle and
// flips IsRunning for health reporting.
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
	var errs []error
	if err := a.ch.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("eventmux/rabbitmq: stop: %v", errs)
	}
	return nil
}

// Dispose is Stop without a context, for transport.Disposer/registry ownership.
func (a *Adapter) Dispose() error {
	return a.Stop(context.Background())
}

// Send publishes msg to destination (queue name or routing key), with the
// adapter's configured exchange (empty string for the default exchange).
// When WithRoutingKey is set, that key is used in place of destination.
func (a *Adapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	headers := amqp.Table{}
	for _, k := range msg.Headers.Keys() {
		v, _ := msg.Headers.Get(k)
		headers[k] = v
	}

	routingKey := destination
	if a.opts.routingKey != "" {
		routingKey = a.opts.routingKey
	}

	if err := a.ch.PublishWithContext(ctx, a.opts.exchange, routingKey, false, false, amqp.Publishing{
		Body:      msg.Body,
		Headers:   headers,
		MessageId: msg.ID,
	}); err != nil {
		return fmt.Errorf("eventmux/rabbitmq: publish to %q: %w", destination, err)
	}
	return nil
}

// Receive turns raw into a core.Message/MessageContext and dispatches it.
func (a *Adapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	msg, mctx := transport.BuildMessage(ctx, raw)
	mctx.SetSourceTransport(a.name)
	return dispatcher.Dispatch(ctx, msg, mctx)
}

func (a *Adapter) SupportsSubscription() bool { return true }

// Subscribe declares (or reuses) a durable queue bound to the adapter's
// exchange, if configured, and consumes until ctx is cancelled.
func (a *Adapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher transport.Dispatcher) error {
	q, err := a.ch.QueueDeclare(subscriptionName, a.opts.durable, a.opts.autoDelete, a.opts.exclusive, false, nil)
	if err != nil {
		return fmt.Errorf("eventmux/rabbitmq: declare queue %q: %w", subscriptionName, err)
	}
	if a.opts.exchange != "" {
		rk := subscriptionName
		if a.opts.routingKey != "" {
			rk = a.opts.routingKey
		}
		if err := a.ch.QueueBind(q.Name, rk, a.opts.exchange, false, nil); err != nil {
			return fmt.Errorf("eventmux/rabbitmq: bind queue %q: %w", q.Name, err)
		}
	}

	deliveries, err := a.ch.Consume(q.Name, "", false, a.opts.exclusive, false, false, nil)
	if err != nil {
		return fmt.Errorf("eventmux/rabbitmq: consume %q: %w", q.Name, err)
	}
	return a.consumeLoop(ctx, deliveries, dispatcher)
}

func (a *Adapter) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery, dispatcher transport.Dispatcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			raw := transport.RawMessage{Body: d.Body, Headers: headersFromTable(d.Headers)}
			res, err := a.Receive(ctx, raw, dispatcher)
			if err != nil || !res.Succeeded() {
				_ = d.Nack(false, a.opts.requeueOnNack)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Unsubscribe is a no-op: Subscribe's consumeLoop exits on context
// cancellation, which is this adapter's only unsubscribe mechanism.
func (a *Adapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	return nil
}

// CheckHealth reports connection liveness as the adapter's quick health
// signal.
func (a *Adapter) CheckHealth(ctx context.Context) transport.HealthResult {
	start := time.Now()
	healthy := a.conn != nil && !a.conn.IsClosed()
	desc := "connected"
	if !healthy {
		desc = "connection closed"
	}
	return transport.HealthResult{
		Healthy:     healthy,
		Description: desc,
		Category:    transport.HealthCategoryConnectivity,
		Duration:    time.Since(start),
	}
}

func headersFromTable(t amqp.Table) map[string]string {
	out := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
