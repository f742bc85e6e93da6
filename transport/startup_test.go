package transport_test

import (
	"strings"
	"testing"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

func TestValidate_NoTransportsFailsFirst(t *testing.T) {
	r := transport.NewRegistry()
	policy := transport.StartupPolicy{RequireAtLeastOneTransport: true, RequireDefaultTransportWhenMultiple: true}

	err := transport.Validate(r, policy)
	if kind, ok := core.KindOf(err); !ok || kind != core.ConfigurationError {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "AddRabbitMQTransport") {
		t.Fatalf("expected actionable remedy in message, got %q", err.Error())
	}
}

func TestValidate_MultipleWithoutDefaultFails(t *testing.T) {
	r := transport.NewRegistry()
	_ = r.RegisterTransport("rabbit", newFakeAdapter("rabbit", transport.RabbitMQ, true), transport.RabbitMQ, nil)
	_ = r.RegisterTransport("kafka", newFakeAdapter("kafka", transport.Kafka, true), transport.Kafka, nil)

	err := transport.Validate(r, transport.DefaultStartupPolicy())
	if kind, ok := core.KindOf(err); !ok || kind != core.ConfigurationError {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "rabbit") || !strings.Contains(err.Error(), "kafka") {
		t.Fatalf("expected both transport names named in message, got %q", err.Error())
	}
}

func TestValidate_PassesWithDefaultSet(t *testing.T) {
	r := transport.NewRegistry()
	_ = r.RegisterTransport("rabbit", newFakeAdapter("rabbit", transport.RabbitMQ, true), transport.RabbitMQ, nil)
	_ = r.RegisterTransport("kafka", newFakeAdapter("kafka", transport.Kafka, true), transport.Kafka, nil)
	_ = r.SetDefaultTransport("rabbit")

	if err := transport.Validate(r, transport.DefaultStartupPolicy()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_SingleTransportNoDefaultRequired(t *testing.T) {
	r := transport.NewRegistry()
	_ = r.RegisterTransport("rabbit", newFakeAdapter("rabbit", transport.RabbitMQ, true), transport.RabbitMQ, nil)

	if err := transport.Validate(r, transport.DefaultStartupPolicy()); err != nil {
		t.Fatalf("unexpected error for a single registered transport: %v", err)
	}
}
