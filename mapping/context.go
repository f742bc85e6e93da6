// Package mapping implements §4.5: mapping a source transport's context
// into a target-transport-specific context, cross-transport property
// translation, and an optional typed per-message-type configurator.
// Grounded on the teacher's plugins/rabbitmq/message.go and
// plugins/kafka/message.go, which wrap a wire message with
// transport-specific fields (RoutingKey, Headers) the way Base's
// transport-specific siblings below do, generalized from a one-way wire
// adapter into a bidirectional mapping record.
package mapping

import (
	"time"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// Base is the transport-neutral portion of a mapping context, copied
// verbatim by every concrete Map implementation (§4.5 "base contract").
type Base struct {
	MessageID       string
	CorrelationID   string
	CausationID     string
	Timestamp       time.Time
	ContentType     string
	SourceTransport string
	TargetTransport string
	Headers         core.Headers
	Properties      map[string]any
}

// CloneBase copies identity/correlation/causation/timestamp/content-type/
// source-transport/headers/properties into a fresh Base with targetTransport
// set, per §4.5's base contract.
func CloneBase(source Base, targetTransport string) Base {
	props := make(map[string]any, len(source.Properties))
	for k, v := range source.Properties {
		props[k] = v
	}
	return Base{
		MessageID:       source.MessageID,
		CorrelationID:   source.CorrelationID,
		CausationID:     source.CausationID,
		Timestamp:       source.Timestamp,
		ContentType:     source.ContentType,
		SourceTransport: source.SourceTransport,
		TargetTransport: targetTransport,
		Headers:         source.Headers.Clone(),
		Properties:      props,
	}
}

// RabbitMQContext is the concrete target context for the RabbitMQ
// transport.
type RabbitMQContext struct {
	Base
	RoutingKey    string
	Priority      *uint8 // nil means "unset", distinct from priority 0
	Expiration    string
	ReplyTo       string
	DeliveryMode  uint8 // 1 = non-persistent, 2 = persistent
}

// KafkaContext is the concrete target context for the Kafka transport.
type KafkaContext struct {
	Base
	Key       string
	Partition *int32
}

// GenericContext is the fallback target context used for any transport
// without a dedicated concrete type (§4.5 "all others -> generic transport
// context"), and the mapping result for an unknown target transport name
// (§9 Open Questions: unknown targets get a generic context with properties
// copied, never an error).
type GenericContext struct {
	Base
}
