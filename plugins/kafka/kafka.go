// Package kafka implements a transport.Adapter over Apache Kafka via
// segmentio/kafka-go, generalized from the teacher's broker.Broker: a
// shared kafka.Writer plus per-subscription kafka.Reader, manual offset
// commit, retargeted at transport.RawMessage/transport.Dispatcher.
package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// Adapter implements transport.Adapter for Kafka.
type Adapter struct {
	name    string
	brokers []string
	group   string
	opts    options

	writer *kafka.Writer

	mu      sync.Mutex
	running bool
	readers []*kafka.Reader
}

// New constructs a Kafka adapter over brokers, consuming (when subscribed)
// under the given consumer group.
func New(name string, brokers []string, group string, fns ...Option) (*Adapter, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("eventmux/kafka: at least one broker address is required")
	}
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     opts.balancer,
		BatchSize:    opts.batchSize,
		Async:        opts.async,
		RequiredAcks: kafka.RequireAll,
	}

	return &Adapter{name: name, brokers: brokers, group: group, opts: opts, writer: w}, nil
}

func (a *Adapter) Name() string                  { return a.name }
func (a *Adapter) TransportType() transport.Type { return transport.Kafka }

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
	var errs []error
	if err := a.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, r := range a.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("eventmux/kafka: stop: %v", errs)
	}
	return nil
}

func (a *Adapter) Dispose() error { return a.Stop(context.Background()) }

// Send publishes msg to the topic named by destination.
func (a *Adapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	km := kafka.Message{
		Topic:   destination,
		Key:     []byte(msg.ID),
		Value:   msg.Body,
		Headers: toHeaders(msg.Headers),
	}
	if err := a.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("eventmux/kafka: publish to %q: %w", destination, err)
	}
	return nil
}

func (a *Adapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	msg, mctx := transport.BuildMessage(ctx, raw)
	mctx.SetSourceTransport(a.name)
	return dispatcher.Dispatch(ctx, msg, mctx)
}

func (a *Adapter) SupportsSubscription() bool { return true }

// Subscribe opens a reader for the topic named by subscriptionName and
// consumes until ctx is cancelled. Not committing an offset (handler
// failure) leaves the message to be redelivered after rebalance/restart.
func (a *Adapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher transport.Dispatcher) error {
	cfg := kafka.ReaderConfig{
		Brokers:  a.brokers,
		Topic:    subscriptionName,
		GroupID:  a.group,
		MinBytes: a.opts.minBytes,
		MaxBytes: a.opts.maxBytes,
		MaxWait:  a.opts.maxWait,
		Dialer:   a.opts.dialer,
	}
	if a.group == "" {
		cfg.StartOffset = a.opts.startOffset
	}
	r := kafka.NewReader(cfg)

	a.mu.Lock()
	a.readers = append(a.readers, r)
	a.mu.Unlock()

	return a.consumeLoop(ctx, r, dispatcher)
}

func (a *Adapter) consumeLoop(ctx context.Context, r *kafka.Reader, dispatcher transport.Dispatcher) error {
	for {
		fetched, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("eventmux/kafka: fetch: %w", err)
		}

		raw := transport.RawMessage{Body: fetched.Value, Headers: fromHeaders(fetched.Headers)}
		res, err := a.Receive(ctx, raw, dispatcher)
		if err != nil || !res.Succeeded() {
			continue // offset not committed: redelivered later
		}
		if err := r.CommitMessages(ctx, fetched); err != nil {
			return fmt.Errorf("eventmux/kafka: commit offset: %w", err)
		}
	}
}

// Unsubscribe is a no-op; Subscribe's consumeLoop exits on ctx cancellation.
func (a *Adapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	return nil
}

func (a *Adapter) CheckHealth(ctx context.Context) transport.HealthResult {
	start := time.Now()
	conn, err := kafka.DialContext(ctx, "tcp", a.brokers[0])
	if err != nil {
		return transport.HealthResult{
			Healthy:     false,
			Description: err.Error(),
			Category:    transport.HealthCategoryConnectivity,
			Duration:    time.Since(start),
		}
	}
	conn.Close()
	return transport.HealthResult{
		Healthy:     true,
		Description: "brokers reachable",
		Category:    transport.HealthCategoryConnectivity,
		Duration:    time.Since(start),
	}
}

func toHeaders(h core.Headers) []kafka.Header {
	keys := h.Keys()
	if len(keys) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		v, _ := h.Get(k)
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func fromHeaders(h []kafka.Header) map[string]string {
	out := make(map[string]string, len(h))
	for _, kh := range h {
		out[kh.Key] = string(kh.Value)
	}
	return out
}
