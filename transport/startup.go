package transport

import (
	"strings"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// StartupPolicy configures the §4.8 startup validator.
type StartupPolicy struct {
	RequireAtLeastOneTransport          bool
	RequireDefaultTransportWhenMultiple bool
}

// DefaultStartupPolicy requires at least one transport and a default once
// two or more are registered — the conservative default a fresh deployment
// should start from.
func DefaultStartupPolicy() StartupPolicy {
	return StartupPolicy{
		RequireAtLeastOneTransport:          true,
		RequireDefaultTransportWhenMultiple: true,
	}
}

// Validate enforces policy against registry before any dispatch is
// permitted. The "no transports" check precedes the "default when
// multiple" check so the more actionable message surfaces first (§4.8).
func Validate(registry *Registry, policy StartupPolicy) error {
	names := registry.GetTransportNames()

	if policy.RequireAtLeastOneTransport && len(names) == 0 {
		return core.NewError(core.ConfigurationError,
			"eventmux: no transports registered; call AddRabbitMQTransport, AddKafkaTransport, "+
				"or another AddXTransport helper before starting")
	}

	if policy.RequireDefaultTransportWhenMultiple && len(names) >= 2 && !registry.HasDefaultTransport() {
		return core.NewError(core.ConfigurationError,
			"eventmux: multiple transports registered ("+strings.Join(names, ", ")+
				") but no default is set; call SetDefaultTransport")
	}

	return nil
}
