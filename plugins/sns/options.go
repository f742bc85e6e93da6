package sns

import "github.com/aws/aws-sdk-go-v2/config"

// Option configures the SNS adapter.
type Option func(*options)

type options struct {
	configOpts []func(*config.LoadOptions) error
}

func defaults() options {
	return options{}
}

// WithRegion pins the AWS region instead of relying on the environment.
func WithRegion(region string) Option {
	return func(o *options) { o.configOpts = append(o.configOpts, config.WithRegion(region)) }
}
