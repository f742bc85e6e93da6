package azureservicebus

// Option configures the Service Bus adapter.
type Option func(*options)

type options struct {
	maxBatchSize int
}

func defaults() options {
	return options{maxBatchSize: 32}
}

// WithMaxBatchSize sets how many messages a single ReceiveMessages call pulls.
func WithMaxBatchSize(n int) Option {
	return func(o *options) { o.maxBatchSize = n }
}
