package transport

import (
	"context"
	"time"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// BuildMessage turns a RawMessage into a core.Message plus its
// MessageContext, the shared final step every adapter's Receive performs
// before calling its Dispatcher (§6 "Adapter contract"). Kind is resolved
// from the X-Message-Type header via the suffix-based detector (§9
// "Dynamic dispatch on message kind"); correlation/causation ride the
// matching well-known headers when present.
func BuildMessage(ctx context.Context, raw RawMessage) (*core.Message, core.MessageContext) {
	headers := core.NewHeaders()
	for k, v := range raw.Headers {
		headers.Set(k, v)
	}

	typeName, _ := headers.Get(core.HeaderMessageType)
	kind := core.DetectKind(typeName)

	msg := &core.Message{
		Kind:      kind,
		Headers:   headers,
		Body:      raw.Body,
		Timestamp: time.Now().UTC(),
	}
	if v, ok := headers.Get(core.HeaderCorrelationID); ok {
		msg.CorrelationID = v
	}
	if v, ok := headers.Get(core.HeaderCausationID); ok {
		msg.CausationID = v
	}
	msg.EnsureID()

	mctx := core.NewMessageContext(ctx, msg)
	for k, v := range raw.Properties {
		mctx.SetTransportProperty(k, v)
	}
	return msg, mctx
}
