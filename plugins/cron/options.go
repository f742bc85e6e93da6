package cron

import "github.com/robfig/cron/v3"

// Option configures the cron adapter.
type Option func(*options)

type options struct {
	cronOpts []cron.Option
}

func defaults() options {
	return options{cronOpts: []cron.Option{cron.WithSeconds()}}
}

// WithCronOptions passes through raw robfig/cron/v3 options.
func WithCronOptions(opts ...cron.Option) Option {
	return func(o *options) { o.cronOpts = opts }
}
