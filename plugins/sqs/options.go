package sqs

import "github.com/aws/aws-sdk-go-v2/config"

// Option configures the SQS adapter.
type Option func(*options)

type options struct {
	maxMessages     int32
	waitTimeSeconds int32
	configOpts      []func(*config.LoadOptions) error
}

func defaults() options {
	return options{maxMessages: 10, waitTimeSeconds: 10}
}

// WithMaxMessages sets the max number of messages per ReceiveMessage call.
func WithMaxMessages(n int32) Option {
	return func(o *options) { o.maxMessages = n }
}

// WithWaitTimeSeconds enables/tunes SQS long polling.
func WithWaitTimeSeconds(s int32) Option {
	return func(o *options) { o.waitTimeSeconds = s }
}

// WithRegion pins the AWS region instead of relying on the environment.
func WithRegion(region string) Option {
	return func(o *options) { o.configOpts = append(o.configOpts, config.WithRegion(region)) }
}
