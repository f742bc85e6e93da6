// Package nats implements a transport.Adapter over NATS JetStream,
// generalized from the teacher's broker.Broker: durable stream/consumer
// per subscription, explicit ack/nak, retargeted at
// transport.RawMessage/transport.Dispatcher.
package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// Adapter implements transport.Adapter for NATS JetStream.
type Adapter struct {
	name  string
	conn  *nats.Conn
	js    jetstream.JetStream
	group string
	opts  options

	mu      sync.Mutex
	running bool
	subs    []jetstream.ConsumeContext
}

// New connects to url and initializes JetStream.
func New(name, url, group string, fns ...Option) (*Adapter, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("eventmux/nats: connect to %q: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("eventmux/nats: init jetstream: %w", err)
	}

	return &Adapter{name: name, conn: nc, js: js, group: group, opts: opts}, nil
}

func (a *Adapter) Name() string                  { return a.name }
func (a *Adapter) TransportType() transport.Type { return transport.NATS }

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
	for _, s := range a.subs {
		s.Stop()
	}
	a.conn.Close()
	return nil
}

func (a *Adapter) Dispose() error { return a.Stop(context.Background()) }

// Send publishes msg to the subject named by destination.
func (a *Adapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	headers := nats.Header{}
	for _, k := range msg.Headers.Keys() {
		v, _ := msg.Headers.Get(k)
		headers.Set(k, v)
	}
	nm := &nats.Msg{Subject: destination, Data: msg.Body, Header: headers}
	if _, err := a.js.PublishMsg(ctx, nm); err != nil {
		return fmt.Errorf("eventmux/nats: publish to %q: %w", destination, err)
	}
	return nil
}

func (a *Adapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	msg, mctx := transport.BuildMessage(ctx, raw)
	mctx.SetSourceTransport(a.name)
	return dispatcher.Dispatch(ctx, msg, mctx)
}

func (a *Adapter) SupportsSubscription() bool { return true }

// Subscribe creates (or reuses) a stream and durable consumer for
// subscriptionName and consumes until ctx is cancelled.
func (a *Adapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher transport.Dispatcher) error {
	streamName := sanitizeStreamName(subscriptionName)
	stream, err := a.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subscriptionName},
		MaxMsgs:   a.opts.maxMsgs,
		MaxBytes:  a.opts.maxBytes,
		MaxAge:    a.opts.maxAge,
		Replicas:  a.opts.replicas,
		Retention: a.opts.retention,
		Storage:   a.opts.storage,
	})
	if err != nil {
		return fmt.Errorf("eventmux/nats: create stream %q: %w", streamName, err)
	}

	consumerName := a.group
	if consumerName == "" {
		consumerName = "eventmux-" + streamName
	}
	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:    consumerName,
		AckPolicy:  jetstream.AckExplicitPolicy,
		AckWait:    a.opts.ackWait,
		MaxDeliver: a.opts.maxDeliver,
	})
	if err != nil {
		return fmt.Errorf("eventmux/nats: create consumer %q: %w", consumerName, err)
	}

	cc, err := cons.Consume(func(jsMsg jetstream.Msg) {
		raw := transport.RawMessage{Body: jsMsg.Data(), Headers: fromNatsHeader(jsMsg.Headers())}
		res, err := a.Receive(ctx, raw, dispatcher)
		if err != nil || !res.Succeeded() {
			_ = jsMsg.Nak()
			return
		}
		_ = jsMsg.Ack()
	})
	if err != nil {
		return fmt.Errorf("eventmux/nats: start consume on %q: %w", consumerName, err)
	}

	a.mu.Lock()
	a.subs = append(a.subs, cc)
	a.mu.Unlock()

	<-ctx.Done()
	cc.Stop()
	return nil
}

func (a *Adapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	return nil
}

func (a *Adapter) CheckHealth(ctx context.Context) transport.HealthResult {
	start := time.Now()
	healthy := a.conn.IsConnected()
	desc := "connected"
	if !healthy {
		desc = "not connected"
	}
	return transport.HealthResult{Healthy: healthy, Description: desc, Category: transport.HealthCategoryConnectivity, Duration: time.Since(start)}
}

func sanitizeStreamName(subject string) string {
	buf := make([]byte, len(subject))
	for i := 0; i < len(subject); i++ {
		c := subject[i]
		if c == '.' || c == '*' || c == '>' {
			buf[i] = '-'
		} else {
			buf[i] = c
		}
	}
	return string(buf)
}

func fromNatsHeader(h nats.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
