package pubsub

import "google.golang.org/api/option"

// Option configures the Pub/Sub adapter.
type Option func(*options)

type options struct {
	clientOpts []option.ClientOption
}

func defaults() options {
	return options{}
}

// WithClientOptions passes through raw google.golang.org/api/option values,
// e.g. for credentials or endpoint overrides in tests.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}
