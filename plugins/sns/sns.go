// Package sns implements a transport.Adapter over AWS SNS via
// aws-sdk-go-v2, grounded on the hyperforge sns.Sender's Publish call.
// SNS is fan-out only: it never implements transport.Subscriber, since
// inbound delivery happens through whatever SNS subscribes (typically
// an SQS queue, handled by the sqs adapter).
package sns

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// Adapter implements transport.Adapter for AWS SNS (publish-only).
type Adapter struct {
	name   string
	client *sns.Client

	mu      sync.Mutex
	running bool
}

// New loads AWS config from the environment and constructs an SNS client.
func New(ctx context.Context, name string, fns ...Option) (*Adapter, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts.configOpts...)
	if err != nil {
		return nil, fmt.Errorf("eventmux/sns: load aws config: %w", err)
	}

	return &Adapter{name: name, client: sns.NewFromConfig(cfg)}, nil
}

func (a *Adapter) Name() string                  { return a.name }
func (a *Adapter) TransportType() transport.Type { return transport.AWSSNS }

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

// Send publishes msg to the topic ARN named by destination, carrying
// headers as SNS message attributes.
func (a *Adapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	attrs := make(map[string]types.MessageAttributeValue, len(msg.Headers.Keys()))
	for _, k := range msg.Headers.Keys() {
		v, _ := msg.Headers.Get(k)
		attrs[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}

	_, err := a.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(destination),
		Message:           aws.String(string(msg.Body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("eventmux/sns: publish to %q: %w", destination, err)
	}
	return nil
}

// Receive exists to satisfy transport.Adapter but has no SNS-native
// caller: fan-out delivery lands on whichever adapter the topic is
// subscribed by (e.g. sqs), which builds its own RawMessage.
func (a *Adapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	msg, mctx := transport.BuildMessage(ctx, raw)
	mctx.SetSourceTransport(a.name)
	return dispatcher.Dispatch(ctx, msg, mctx)
}

func (a *Adapter) CheckHealth(ctx context.Context) transport.HealthResult {
	start := time.Now()
	_, err := a.client.ListTopics(ctx, &sns.ListTopicsInput{})
	if err != nil {
		return transport.HealthResult{Healthy: false, Description: err.Error(), Category: transport.HealthCategoryConnectivity, Duration: time.Since(start)}
	}
	return transport.HealthResult{Healthy: true, Description: "topics reachable", Category: transport.HealthCategoryConnectivity, Duration: time.Since(start)}
}
