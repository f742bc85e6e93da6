// Package sqs implements a transport.Adapter over AWS SQS via
// aws-sdk-go-v2, generalized from the sqsrouter example's long-poll/
// delete-on-success consumer loop and retargeted at
// transport.RawMessage/transport.Dispatcher.
package sqs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// Adapter implements transport.Adapter for AWS SQS.
type Adapter struct {
	name   string
	client *sqs.Client
	opts   options

	mu       sync.Mutex
	running  bool
	queueURL string
}

// New loads AWS config from the environment and constructs an SQS client.
func New(ctx context.Context, name string, fns ...Option) (*Adapter, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts.configOpts...)
	if err != nil {
		return nil, fmt.Errorf("eventmux/sqs: load aws config: %w", err)
	}

	return &Adapter{name: name, client: sqs.NewFromConfig(cfg), opts: opts}, nil
}

func (a *Adapter) Name() string                  { return a.name }
func (a *Adapter) TransportType() transport.Type { return transport.AWSSQS }

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
	return nil
}

func (a *Adapter) Dispose() error { return a.Stop(context.Background()) }

// Send publishes msg to the queue URL named by destination.
func (a *Adapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	attrs := make(map[string]types.MessageAttributeValue, len(msg.Headers.Keys()))
	for _, k := range msg.Headers.Keys() {
		v, _ := msg.Headers.Get(k)
		attrs[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}

	body := string(msg.Body)
	_, err := a.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(destination),
		MessageBody:       aws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("eventmux/sqs: publish to %q: %w", destination, err)
	}
	return nil
}

func (a *Adapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	msg, mctx := transport.BuildMessage(ctx, raw)
	mctx.SetSourceTransport(a.name)
	return dispatcher.Dispatch(ctx, msg, mctx)
}

func (a *Adapter) SupportsSubscription() bool { return true }

// Subscribe long-polls the queue named by subscriptionName (its URL) and
// deletes each message after a successful dispatch; a failed dispatch
// leaves the message to reappear once its visibility timeout elapses.
func (a *Adapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher transport.Dispatcher) error {
	a.mu.Lock()
	a.queueURL = subscriptionName
	a.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return nil
		}

		out, err := a.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(subscriptionName),
			MaxNumberOfMessages:   a.opts.maxMessages,
			WaitTimeSeconds:       a.opts.waitTimeSeconds,
			MessageAttributeNames: []string{"All"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("eventmux/sqs: receive: %w", err)
		}

		for _, m := range out.Messages {
			a.handleOne(ctx, subscriptionName, m, dispatcher)
		}
	}
}

func (a *Adapter) handleOne(ctx context.Context, queueURL string, m types.Message, dispatcher transport.Dispatcher) {
	body := ""
	if m.Body != nil {
		body = *m.Body
	}
	raw := transport.RawMessage{Body: []byte(body), Headers: headersFromAttributes(m.MessageAttributes)}

	res, err := a.Receive(ctx, raw, dispatcher)
	if err != nil || !res.Succeeded() {
		return // left in place; redelivered after visibility timeout
	}

	if _, err := a.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		return
	}
}

// Unsubscribe is a no-op; Subscribe's poll loop exits on ctx cancellation.
func (a *Adapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	return nil
}

func (a *Adapter) CheckHealth(ctx context.Context) transport.HealthResult {
	start := time.Now()
	a.mu.Lock()
	url := a.queueURL
	a.mu.Unlock()
	if url == "" {
		return transport.HealthResult{Healthy: true, Description: "client initialized, not yet subscribed", Category: transport.HealthCategoryConnectivity, Duration: time.Since(start)}
	}
	_, err := a.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{QueueUrl: aws.String(url)})
	if err != nil {
		return transport.HealthResult{Healthy: false, Description: err.Error(), Category: transport.HealthCategoryConnectivity, Duration: time.Since(start)}
	}
	return transport.HealthResult{Healthy: true, Description: "queue reachable", Category: transport.HealthCategoryConnectivity, Duration: time.Since(start)}
}

func headersFromAttributes(attrs map[string]types.MessageAttributeValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if v.StringValue != nil {
			out[k] = *v.StringValue
		}
	}
	return out
}
