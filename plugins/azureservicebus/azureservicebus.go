// Package azureservicebus implements a transport.Adapter over Azure Service
// Bus queues/topics via azservicebus, following the same
// connect-once/sender-plus-receivers shape as the teacher's broker.Broker,
// with completion/abandon/dead-letter replacing ack/nack.
package azureservicebus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// Adapter implements transport.Adapter for Azure Service Bus.
type Adapter struct {
	name   string
	client *azservicebus.Client
	opts   options

	mu        sync.Mutex
	running   bool
	senders   map[string]*azservicebus.Sender
	receivers []*azservicebus.Receiver
}

// New builds an adapter from a Service Bus connection string.
func New(name, connectionString string, fns ...Option) (*Adapter, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("eventmux/azureservicebus: connect: %w", err)
	}

	return &Adapter{name: name, client: client, opts: opts, senders: make(map[string]*azservicebus.Sender)}, nil
}

func (a *Adapter) Name() string                  { return a.name }
func (a *Adapter) TransportType() transport.Type { return transport.AzureServiceBus }

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
	for _, r := range a.receivers {
		if err := r.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range a.senders {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.client.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("eventmux/azureservicebus: stop: %v", errs)
	}
	return nil
}

func (a *Adapter) Dispose() error { return a.Stop(context.Background()) }

func (a *Adapter) senderFor(ctx context.Context, destination string) (*azservicebus.Sender, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.senders[destination]; ok {
		return s, nil
	}
	s, err := a.client.NewSender(destination, nil)
	if err != nil {
		return nil, err
	}
	a.senders[destination] = s
	return s, nil
}

// Send publishes msg to the queue or topic named by destination.
func (a *Adapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	sender, err := a.senderFor(ctx, destination)
	if err != nil {
		return fmt.Errorf("eventmux/azureservicebus: sender for %q: %w", destination, err)
	}

	sbMsg := &azservicebus.Message{
		Body:                  msg.Body,
		MessageID:             &msg.ID,
		ApplicationProperties: make(map[string]any, len(msg.Headers.Keys())),
	}
	if msg.CorrelationID != "" {
		sbMsg.CorrelationID = &msg.CorrelationID
	}
	for _, k := range msg.Headers.Keys() {
		v, _ := msg.Headers.Get(k)
		sbMsg.ApplicationProperties[k] = v
	}

	if err := sender.SendMessage(ctx, sbMsg, nil); err != nil {
		return fmt.Errorf("eventmux/azureservicebus: publish to %q: %w", destination, err)
	}
	return nil
}

func (a *Adapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	msg, mctx := transport.BuildMessage(ctx, raw)
	mctx.SetSourceTransport(a.name)
	return dispatcher.Dispatch(ctx, msg, mctx)
}

func (a *Adapter) SupportsSubscription() bool { return true }

// Subscribe opens a receiver for subscriptionName (a queue name, or
// "topic/subscriptionName" for a topic subscription) and consumes in a
// peek-lock loop until ctx is cancelled.
func (a *Adapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher transport.Dispatcher) error {
	var (
		receiver *azservicebus.Receiver
		err      error
	)
	if topic, sub, ok := splitTopicSubscription(subscriptionName); ok {
		receiver, err = a.client.NewReceiverForSubscription(topic, sub, nil)
	} else {
		receiver, err = a.client.NewReceiverForQueue(subscriptionName, nil)
	}
	if err != nil {
		return fmt.Errorf("eventmux/azureservicebus: open receiver for %q: %w", subscriptionName, err)
	}

	a.mu.Lock()
	a.receivers = append(a.receivers, receiver)
	a.mu.Unlock()

	return a.consumeLoop(ctx, receiver, dispatcher)
}

func (a *Adapter) consumeLoop(ctx context.Context, receiver *azservicebus.Receiver, dispatcher transport.Dispatcher) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		messages, err := receiver.ReceiveMessages(ctx, a.opts.maxBatchSize, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("eventmux/azureservicebus: receive: %w", err)
		}
		for _, sbMsg := range messages {
			raw := transport.RawMessage{Body: sbMsg.Body, Headers: headersFromMessage(sbMsg)}
			res, err := a.Receive(ctx, raw, dispatcher)
			if err != nil || !res.Succeeded() {
				if abandonErr := receiver.AbandonMessage(ctx, sbMsg, nil); abandonErr != nil {
					return fmt.Errorf("eventmux/azureservicebus: abandon: %w", abandonErr)
				}
				continue
			}
			if err := receiver.CompleteMessage(ctx, sbMsg, nil); err != nil {
				return fmt.Errorf("eventmux/azureservicebus: complete: %w", err)
			}
		}
	}
}

// Unsubscribe is a no-op; Subscribe's consumeLoop exits on ctx cancellation.
func (a *Adapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	return nil
}

func (a *Adapter) CheckHealth(ctx context.Context) transport.HealthResult {
	start := time.Now()
	a.mu.Lock()
	healthy := a.running
	a.mu.Unlock()
	desc := "running"
	if !healthy {
		desc = "not started"
	}
	return transport.HealthResult{Healthy: healthy, Description: desc, Category: transport.HealthCategoryConnectivity, Duration: time.Since(start)}
}

func splitTopicSubscription(name string) (topic, subscription string, ok bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return name[:i], name[i+1:], true
		}
	}
	return "", "", false
}

func headersFromMessage(m *azservicebus.ReceivedMessage) map[string]string {
	out := make(map[string]string, len(m.ApplicationProperties))
	for k, v := range m.ApplicationProperties {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	if m.CorrelationID != nil {
		out[core.HeaderCorrelationID] = *m.CorrelationID
	}
	return out
}
