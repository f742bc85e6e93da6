package memory

// Option configures the in-memory adapter.
type Option func(*options)

type options struct {
	bufferSize int
}

func defaults() options {
	return options{bufferSize: 64}
}

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}
