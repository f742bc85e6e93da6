package core

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MessageContext is the per-dispatch mutable carrier described in §3/§4.4.
// One instance exists per in-flight dispatch; it is not shared across
// goroutines, matching the teacher's eventContext (core/context.go).
type MessageContext interface {
	// Context returns the underlying context.Context used for cancellation.
	Context() context.Context
	// SetContext replaces the underlying context.Context.
	SetContext(ctx context.Context)

	MessageID() string
	CorrelationID() string
	SetCorrelationID(string)
	CausationID() string
	SetCausationID(string)

	SourceTransport() string
	SetSourceTransport(string)
	TargetTransport() string
	SetTargetTransport(string)

	ContentType() string
	SetContentType(string)

	Timestamp() time.Time

	// Header returns a header value, case-insensitively.
	Header(name string) (string, bool)
	// SetHeader requires a non-empty name; empty names fail with InvalidArgument.
	SetHeader(name, value string) error
	// RemoveHeader reports whether the header existed.
	RemoveHeader(name string) bool
	Headers() Headers

	// SetTransportProperty stores an arbitrary value under a case-insensitive key.
	SetTransportProperty(name string, value any)
	// transportProperty is the untyped accessor backing the generic
	// GetTransportProperty[T] free function below.
	transportProperty(name string) (any, bool)

	// Properties is the out-of-band bag middleware uses to thread values
	// through the chain without mutating the message itself.
	Set(key string, val any)
	Get(key string) (any, bool)

	// Clone produces an independent copy for reentrant/nested dispatch.
	Clone() MessageContext
}

// GetTransportProperty returns the stored value cast to T, or the zero value
// of T if absent or stored under a different type — best effort, no error,
// no coercion, per §4.4.
func GetTransportProperty[T any](c MessageContext, name string) T {
	var zero T
	raw, ok := c.transportProperty(name)
	if !ok {
		return zero
	}
	typed, ok := raw.(T)
	if !ok {
		return zero
	}
	return typed
}

// messageContext is the default MessageContext implementation.
type messageContext struct {
	ctx context.Context

	messageID     string
	correlationID string
	causationID   string
	source        string
	target        string
	contentType   string
	timestamp     time.Time

	headers Headers

	mu         sync.RWMutex
	transProps map[string]any // lowercase key -> value
	store      map[string]any
}

// NewMessageContext builds a MessageContext for msg, freshly minted with no
// transport assigned yet. The router/adapter sets source/target afterward.
func NewMessageContext(ctx context.Context, msg *Message) MessageContext {
	return &messageContext{
		ctx:           ctx,
		messageID:     msg.ID,
		correlationID: msg.CorrelationID,
		causationID:   msg.CausationID,
		timestamp:     msg.Timestamp,
		headers:       msg.Headers.Clone(),
		transProps:    make(map[string]any),
		store:         make(map[string]any),
	}
}

func (c *messageContext) Context() context.Context        { return c.ctx }
func (c *messageContext) SetContext(ctx context.Context)  { c.ctx = ctx }
func (c *messageContext) MessageID() string               { return c.messageID }
func (c *messageContext) CorrelationID() string            { return c.correlationID }
func (c *messageContext) SetCorrelationID(v string)         { c.correlationID = v }
func (c *messageContext) CausationID() string               { return c.causationID }
func (c *messageContext) SetCausationID(v string)            { c.causationID = v }
func (c *messageContext) SourceTransport() string            { return c.source }
func (c *messageContext) SetSourceTransport(v string)        { c.source = v }
func (c *messageContext) TargetTransport() string            { return c.target }
func (c *messageContext) SetTargetTransport(v string)        { c.target = v }
func (c *messageContext) ContentType() string                { return c.contentType }
func (c *messageContext) SetContentType(v string)             { c.contentType = v }
func (c *messageContext) Timestamp() time.Time                { return c.timestamp }

func (c *messageContext) Header(name string) (string, bool) {
	return c.headers.Get(name)
}

func (c *messageContext) SetHeader(name, value string) error {
	if strings.TrimSpace(name) == "" {
		return NewError(InvalidArgument, "eventmux: header name must not be empty")
	}
	c.headers.Set(name, value)
	return nil
}

func (c *messageContext) RemoveHeader(name string) bool {
	return c.headers.Remove(name)
}

func (c *messageContext) Headers() Headers { return c.headers }

func (c *messageContext) SetTransportProperty(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transProps == nil {
		c.transProps = make(map[string]any)
	}
	c.transProps[strings.ToLower(name)] = value
}

func (c *messageContext) transportProperty(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.transProps[strings.ToLower(name)]
	return v, ok
}

func (c *messageContext) Set(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = val
}

func (c *messageContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.store[key]
	return v, ok
}

func (c *messageContext) Clone() MessageContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clone := &messageContext{
		ctx:           c.ctx,
		messageID:     c.messageID,
		correlationID: c.correlationID,
		causationID:   c.causationID,
		source:        c.source,
		target:        c.target,
		contentType:   c.contentType,
		timestamp:     c.timestamp,
		headers:       c.headers.Clone(),
		transProps:    make(map[string]any, len(c.transProps)),
		store:         make(map[string]any, len(c.store)),
	}
	for k, v := range c.transProps {
		clone.transProps[k] = v
	}
	for k, v := range c.store {
		clone.store[k] = v
	}
	return clone
}
