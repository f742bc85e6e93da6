package mapping_test

import (
	"testing"
	"time"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/mapping"
)

func TestMap_UnknownTargetReturnsGenericContext(t *testing.T) {
	reg := mapping.NewRegistry()
	base := mapping.Base{MessageID: "m1", SourceTransport: "rabbitmq", Headers: core.NewHeaders()}

	result := reg.Map(base, "some-future-transport")
	generic, ok := result.(mapping.GenericContext)
	if !ok {
		t.Fatalf("expected GenericContext, got %T", result)
	}
	if generic.MessageID != "m1" || generic.TargetTransport != "some-future-transport" {
		t.Fatalf("unexpected generic context: %+v", generic)
	}
}

func TestMap_KnownTargetsProduceConcreteTypes(t *testing.T) {
	reg := mapping.NewRegistry()
	base := mapping.Base{MessageID: "m1", SourceTransport: "http", Headers: core.NewHeaders()}

	if _, ok := reg.Map(base, "rabbitmq").(mapping.RabbitMQContext); !ok {
		t.Fatal("expected RabbitMQContext for target rabbitmq")
	}
	if _, ok := reg.Map(base, "kafka").(mapping.KafkaContext); !ok {
		t.Fatal("expected KafkaContext for target kafka")
	}
}

func priority(v uint8) *uint8 { return &v }

func TestCrossTransport_RoundTripPreservesFields(t *testing.T) {
	original := mapping.RabbitMQContext{
		Base: mapping.Base{
			MessageID:       "m1",
			CorrelationID:   "corr-1",
			CausationID:     "cause-1",
			Timestamp:       time.Now().UTC(),
			SourceTransport: "rabbitmq",
			Headers:         core.NewHeaders(),
		},
		RoutingKey: "orders.created",
		Priority:   priority(0), // zero must survive, not be treated as unset
		Expiration: "60000",
		ReplyTo:    "rq",
	}

	toKafka := mapping.RabbitMqToKafka(original)
	back := mapping.KafkaToRabbitMq(toKafka)

	if back.RoutingKey != original.RoutingKey {
		t.Errorf("routing key: got %q, want %q", back.RoutingKey, original.RoutingKey)
	}
	if back.Priority == nil || *back.Priority != *original.Priority {
		t.Errorf("priority: got %v, want %v", back.Priority, original.Priority)
	}
	if back.Expiration != original.Expiration {
		t.Errorf("expiration: got %q, want %q", back.Expiration, original.Expiration)
	}
	if back.ReplyTo != original.ReplyTo {
		t.Errorf("reply-to: got %q, want %q", back.ReplyTo, original.ReplyTo)
	}
	if back.CorrelationID != original.CorrelationID {
		t.Errorf("correlation id: got %q, want %q", back.CorrelationID, original.CorrelationID)
	}
	if back.CausationID != original.CausationID {
		t.Errorf("causation id: got %q, want %q", back.CausationID, original.CausationID)
	}
	if back.DeliveryMode != 2 {
		t.Errorf("expected delivery mode forced to persistent, got %d", back.DeliveryMode)
	}
}

func TestRabbitMqToKafka_CarriesFieldsAsHeaders(t *testing.T) {
	source := mapping.RabbitMQContext{
		Base:       mapping.Base{Headers: core.NewHeaders()},
		RoutingKey: "orders.created",
		Priority:   priority(5),
		Expiration: "30000",
		ReplyTo:    "reply-q",
	}
	k := mapping.RabbitMqToKafka(source)
	if k.Key != "orders.created" {
		t.Errorf("expected key = routing key, got %q", k.Key)
	}
	if v, ok := k.Headers.Get("x-priority"); !ok || v != "5" {
		t.Errorf("expected x-priority header 5, got %q (ok=%v)", v, ok)
	}
	if v, ok := k.Headers.Get("x-expiration"); !ok || v != "30000" {
		t.Errorf("expected x-expiration header, got %q (ok=%v)", v, ok)
	}
	if v, ok := k.Headers.Get("x-reply-to"); !ok || v != "reply-q" {
		t.Errorf("expected x-reply-to header, got %q (ok=%v)", v, ok)
	}
}

func TestKafkaToRabbitMq_OutOfRangePriorityIsNilNotError(t *testing.T) {
	headers := core.NewHeaders()
	headers.Set("x-priority", "999")
	source := mapping.KafkaContext{Base: mapping.Base{Headers: headers}}

	rmq := mapping.KafkaToRabbitMq(source)
	if rmq.Priority != nil {
		t.Errorf("expected nil priority for out-of-range header, got %v", *rmq.Priority)
	}
}

func TestTypedBuilder_ResolvesFullAndShortNames(t *testing.T) {
	b := mapping.NewBuilder()
	b.For("myapp.orders.OrderCreated").RabbitMQ("orders-exchange", "orders.created")

	byFull := b.Resolve("myapp.orders.OrderCreated")
	if byFull == nil || byFull.RabbitMQ == nil || byFull.RabbitMQ.Exchange != "orders-exchange" {
		t.Fatalf("expected resolution by full type name, got %+v", byFull)
	}

	byShort := b.Resolve("OrderCreated")
	if byShort == nil || byShort.RabbitMQ == nil || byShort.RabbitMQ.Exchange != "orders-exchange" {
		t.Fatalf("expected resolution by short type name, got %+v", byShort)
	}
}

func TestTypedBuilder_FallsBackToDefault(t *testing.T) {
	b := mapping.NewBuilder()
	b.Default().Kafka("fallback-topic", "", nil)

	cfg := b.Resolve("SomeUnregisteredType")
	if cfg == nil || cfg.Kafka == nil || cfg.Kafka.Topic != "fallback-topic" {
		t.Fatalf("expected default config fallback, got %+v", cfg)
	}
}
