package mapping

import "strconv"

// RabbitMqToKafka translates a RabbitMQ context into Kafka, carrying
// fields with no Kafka slot as x-* headers (§4.5, §6 "Cross-transport
// header namespace"): routing-key -> key; priority -> x-priority;
// expiration -> x-expiration; reply-to -> x-reply-to.
func RabbitMqToKafka(source RabbitMQContext) KafkaContext {
	base := CloneBase(source.Base, "kafka")

	if source.Priority != nil {
		base.Headers.Set("x-priority", strconv.Itoa(int(*source.Priority)))
	}
	if source.Expiration != "" {
		base.Headers.Set("x-expiration", source.Expiration)
	}
	if source.ReplyTo != "" {
		base.Headers.Set("x-reply-to", source.ReplyTo)
	}

	return KafkaContext{Base: base, Key: source.RoutingKey}
}

// KafkaToRabbitMq is the reverse of RabbitMqToKafka. Delivery mode is
// forced to persistent (2); an out-of-range x-priority header ([0,255])
// produces a nil Priority rather than a failure (§4.5).
func KafkaToRabbitMq(source KafkaContext) RabbitMQContext {
	base := CloneBase(source.Base, "rabbitmq")

	target := RabbitMQContext{
		Base:         base,
		RoutingKey:   source.Key,
		DeliveryMode: 2,
	}

	if v, ok := base.Headers.Get("x-priority"); ok {
		base.Headers.Remove("x-priority")
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 255 {
			p := uint8(n)
			target.Priority = &p
		}
	}
	if v, ok := base.Headers.Get("x-expiration"); ok {
		base.Headers.Remove("x-expiration")
		target.Expiration = v
	}
	if v, ok := base.Headers.Get("x-reply-to"); ok {
		base.Headers.Remove("x-reply-to")
		target.ReplyTo = v
	}

	target.Base = base
	return target
}
