package grpc

import (
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Option configures the gRPC adapter.
type Option func(*options)

type options struct {
	credentials credentials.TransportCredentials
}

func defaults() options {
	return options{credentials: insecure.NewCredentials()}
}

// WithTransportCredentials overrides the default insecure credentials, for
// TLS-secured deployments.
func WithTransportCredentials(creds credentials.TransportCredentials) Option {
	return func(o *options) { o.credentials = creds }
}
