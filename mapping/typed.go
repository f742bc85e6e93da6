package mapping

import (
	"strings"
	"sync"
)

// RabbitMQConfig configures an outbound RabbitMQ publish.
type RabbitMQConfig struct {
	Exchange   string
	RoutingKey string
}

// KafkaConfig configures an outbound Kafka publish.
type KafkaConfig struct {
	Topic     string
	Key       string
	Partition *int32
}

// AzureServiceBusConfig configures an outbound Azure Service Bus send.
type AzureServiceBusConfig struct {
	Session   string
	Partition string
}

// SQSConfig configures an outbound AWS SQS send.
type SQSConfig struct {
	Attributes map[string]string
}

// SNSConfig configures an outbound AWS SNS publish.
type SNSConfig struct {
	Attributes map[string]string
}

// PubSubConfig configures an outbound Google Pub/Sub publish.
type PubSubConfig struct {
	OrderingKey string
}

// GRPCConfig configures an outbound gRPC call.
type GRPCConfig struct {
	Method string
}

// TypeConfig is the per-message-type bundle of transport configurators
// (§4.5 "Typed mapping configuration"). Any field may be nil. Resolve
// returns a matching type's TypeConfig as a whole, nil fields included; the
// builder's default configuration is returned only when no type entry matches.
type TypeConfig struct {
	RabbitMQ        *RabbitMQConfig
	Kafka           *KafkaConfig
	AzureServiceBus *AzureServiceBusConfig
	SQS             *SQSConfig
	SNS             *SNSConfig
	PubSub          *PubSubConfig
	GRPC            *GRPCConfig
}

// TypedBuilder is the fluent entry point returned by Builder.For, grounded
// on the teacher's plugins/*/options.go functional-options style adapted
// into a chainable per-type configurator instead of a one-shot options
// slice.
type TypedBuilder struct {
	owner *Builder
	key   string
}

func (tb *TypedBuilder) cfg() *TypeConfig {
	tb.owner.mu.Lock()
	defer tb.owner.mu.Unlock()

	if tb.key == defaultBuilderKey {
		if tb.owner.defaultConfig == nil {
			tb.owner.defaultConfig = &TypeConfig{}
		}
		return tb.owner.defaultConfig
	}

	c, ok := tb.owner.byType[tb.key]
	if !ok {
		c = &TypeConfig{}
		tb.owner.byType[tb.key] = c
	}
	return c
}

// RabbitMQ attaches exchange/routing-key configuration for this type.
func (tb *TypedBuilder) RabbitMQ(exchange, routingKey string) *TypedBuilder {
	tb.cfg().RabbitMQ = &RabbitMQConfig{Exchange: exchange, RoutingKey: routingKey}
	return tb
}

// Kafka attaches topic/key/partition configuration for this type.
func (tb *TypedBuilder) Kafka(topic, key string, partition *int32) *TypedBuilder {
	tb.cfg().Kafka = &KafkaConfig{Topic: topic, Key: key, Partition: partition}
	return tb
}

// AzureServiceBus attaches session/partition configuration for this type.
func (tb *TypedBuilder) AzureServiceBus(session, partition string) *TypedBuilder {
	tb.cfg().AzureServiceBus = &AzureServiceBusConfig{Session: session, Partition: partition}
	return tb
}

// SQS attaches message-attribute configuration for this type.
func (tb *TypedBuilder) SQS(attributes map[string]string) *TypedBuilder {
	tb.cfg().SQS = &SQSConfig{Attributes: attributes}
	return tb
}

// SNS attaches message-attribute configuration for this type.
func (tb *TypedBuilder) SNS(attributes map[string]string) *TypedBuilder {
	tb.cfg().SNS = &SNSConfig{Attributes: attributes}
	return tb
}

// PubSub attaches ordering-key configuration for this type.
func (tb *TypedBuilder) PubSub(orderingKey string) *TypedBuilder {
	tb.cfg().PubSub = &PubSubConfig{OrderingKey: orderingKey}
	return tb
}

// GRPC attaches method configuration for this type.
func (tb *TypedBuilder) GRPC(method string) *TypedBuilder {
	tb.cfg().GRPC = &GRPCConfig{Method: method}
	return tb
}

// Builder associates message types with transport-specific configurators
// and resolves them at map time by the X-Message-Type header (§4.5).
type Builder struct {
	mu            sync.RWMutex
	byType        map[string]*TypeConfig
	defaultConfig *TypeConfig
}

// NewBuilder constructs an empty typed-mapping builder.
func NewBuilder() *Builder {
	return &Builder{byType: make(map[string]*TypeConfig)}
}

// For returns a TypedBuilder scoped to messageType, which may be either the
// full dotted type path or its unqualified short name — both forms are
// checked at Resolve time.
func (b *Builder) For(messageType string) *TypedBuilder {
	return &TypedBuilder{owner: b, key: messageType}
}

// Default returns a TypedBuilder for the transport-level fallback applied
// when no type-specific entry matches (§4.5).
func (b *Builder) Default() *TypedBuilder {
	b.mu.Lock()
	if b.defaultConfig == nil {
		b.defaultConfig = &TypeConfig{}
	}
	b.mu.Unlock()
	return &TypedBuilder{owner: b, key: defaultBuilderKey}
}

// defaultBuilderKey is a sentinel key not derivable from any real message
// type name; TypedBuilder.cfg routes it to Builder.defaultConfig instead of
// byType.
const defaultBuilderKey = "\x00default"

// ShortName returns the unqualified tail of a dotted type path, or the
// input unchanged if it has no dot.
func ShortName(typeName string) string {
	idx := strings.LastIndex(typeName, ".")
	if idx < 0 {
		return typeName
	}
	return typeName[idx+1:]
}

// Resolve looks up the configuration for messageTypeHeader, trying the
// full dotted path first, then its short name, then the default
// configuration registered via Default() (§4.5). Returns nil if nothing
// matches and no default was registered.
func (b *Builder) Resolve(messageTypeHeader string) *TypeConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if cfg, ok := b.byType[messageTypeHeader]; ok {
		return cfg
	}
	if short := ShortName(messageTypeHeader); short != messageTypeHeader {
		if cfg, ok := b.byType[short]; ok {
			return cfg
		}
	}
	return b.defaultConfig
}
