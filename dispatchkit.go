// Package dispatchkit is the top-level entry point. It composes the
// pieces built across core, transport, inbox, and saga into the single
// object an application actually constructs: register message handlers
// and transports on a Dispatcher, Start it, and publish/subscribe through
// it. This generalizes the teacher's eventmux.Router (a thin wrapper
// around one broker.Broker exposing Handle/Use) into a struct wired to
// many named transports instead of one, and to a handler resolved by
// message type rather than by broker topic.
package dispatchkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/inbox"
	"github.com/eventmux-dispatch/dispatchkit/mapping"
	"github.com/eventmux-dispatch/dispatchkit/saga"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

// Re-exported core types, the way the teacher's eventmux.go re-exported
// its core types for callers that only need this package's import path.
type (
	Message        = core.Message
	MessageContext = core.MessageContext
	Middleware     = core.Middleware
	MiddlewareFunc = core.MiddlewareFunc
	Kind           = core.Kind
	Result         = core.Result
	Binder         = core.Binder
)

// HandlerFunc is the application-level terminal handler for one message
// type. It plays the role core.FinalHandler plays inside the chain, but at
// the granularity a caller actually registers things at: per message type,
// not per call.
type HandlerFunc func(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error)

// HandlerRegistry resolves a HandlerFunc from an inbound message's
// X-Message-Type header. Resolution tries the full header value, then its
// unqualified short name, then a registered default handler — the same
// three-step strategy mapping.Builder.Resolve uses for typed transport
// configuration (mapping/typed.go), reused here because handler dispatch
// needs exactly the same "caller may register by full or short name"
// flexibility.
type HandlerRegistry struct {
	byType   map[string]HandlerFunc
	fallback HandlerFunc
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{byType: make(map[string]HandlerFunc)}
}

// Handle registers fn for messageType, which may be a full dotted type
// path or its unqualified short name.
func (r *HandlerRegistry) Handle(messageType string, fn HandlerFunc) {
	r.byType[messageType] = fn
}

// Default registers the fallback handler used when no type-specific entry
// matches.
func (r *HandlerRegistry) Default(fn HandlerFunc) {
	r.fallback = fn
}

func (r *HandlerRegistry) resolve(messageType string) (HandlerFunc, bool) {
	if fn, ok := r.byType[messageType]; ok {
		return fn, true
	}
	if short := mapping.ShortName(messageType); short != messageType {
		if fn, ok := r.byType[short]; ok {
			return fn, true
		}
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Dispatcher is the façade: it implements transport.Dispatcher, so any
// adapter's Receive/Subscribe can call it directly, and it owns the
// pieces an adapter never needs to see — the middleware chain, the
// handler registry, the inbox dedup store, and the saga index.
type Dispatcher struct {
	handlers  *HandlerRegistry
	builder   *core.ChainBuilder
	invoker   *core.Invoker
	evaluator *core.ApplicabilityEvaluator
	features  core.FeatureSet

	registry *transport.Registry
	multi    *transport.MultiAdapter

	inboxStore *inbox.Store
	sagaIndex  *saga.Index

	binder core.Binder

	startMu sync.Mutex
	started bool
}

// Option configures a Dispatcher at construction time.
type Option func(*dispatcherConfig)

type dispatcherConfig struct {
	middlewares  []core.Middleware
	features     core.FeatureSet
	caching      bool
	healthPolicy transport.HealthPolicy
	inboxStore   *inbox.Store
	sagaIndex    *saga.Index
	binder       core.Binder
}

// WithMiddleware appends middlewares to the pipeline, in the order given.
func WithMiddleware(mw ...core.Middleware) Option {
	return func(c *dispatcherConfig) { c.middlewares = append(c.middlewares, mw...) }
}

// WithFeatures sets the enabled FeatureSet used for applicability gating.
func WithFeatures(features core.FeatureSet) Option {
	return func(c *dispatcherConfig) { c.features = features }
}

// WithChainCaching controls whether built chains are interned per (type,
// kind) or rebuilt on every dispatch (§4.3's caching flag on Invoker).
// Caching defaults to on.
func WithChainCaching(enabled bool) Option {
	return func(c *dispatcherConfig) { c.caching = enabled }
}

// WithHealthPolicy overrides the default health-aggregation policy used by
// the MultiAdapter backing Publish/CheckHealth.
func WithHealthPolicy(policy transport.HealthPolicy) Option {
	return func(c *dispatcherConfig) { c.healthPolicy = policy }
}

// WithInbox attaches an inbox.Store; when set, Dispatch deduplicates by
// (message ID, resolved message type) before invoking the handler.
func WithInbox(store *inbox.Store) Option {
	return func(c *dispatcherConfig) { c.inboxStore = store }
}

// WithSagaIndex attaches a saga.Index, exposed to handlers through Sagas.
// The Dispatcher does not index messages into it on its own.
func WithSagaIndex(idx *saga.Index) Option {
	return func(c *dispatcherConfig) { c.sagaIndex = idx }
}

// WithBinder replaces the Binder used by Dispatcher.Bind, the generalized
// equivalent of the teacher's Router.SetBinder (core/router.go) — swap in a
// Protobuf/Avro binder without touching handler code. Defaults to
// core.JSONBinder.
func WithBinder(b core.Binder) Option {
	return func(c *dispatcherConfig) { c.binder = b }
}

// New constructs a Dispatcher. Chain caching defaults to enabled.
func New(opts ...Option) *Dispatcher {
	cfg := dispatcherConfig{caching: true, healthPolicy: transport.HealthPolicy{}, binder: core.JSONBinder{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	evaluator := core.NewApplicabilityEvaluator()
	builder := core.NewChainBuilder(cfg.middlewares, evaluator, cfg.features)
	registry := transport.NewRegistry()

	return &Dispatcher{
		handlers:   NewHandlerRegistry(),
		builder:    builder,
		invoker:    core.NewInvoker(builder, cfg.caching),
		evaluator:  evaluator,
		features:   cfg.features,
		registry:   registry,
		multi:      transport.NewMultiAdapter(registry, cfg.healthPolicy),
		inboxStore: cfg.inboxStore,
		sagaIndex:  cfg.sagaIndex,
		binder:     cfg.binder,
	}
}

// Handle registers the handler invoked for inbound messages whose
// X-Message-Type header resolves to messageType (full or short name).
func (d *Dispatcher) Handle(messageType string, fn HandlerFunc) {
	d.handlers.Handle(messageType, fn)
}

// DefaultHandler registers the fallback handler used when no type-specific
// registration matches.
func (d *Dispatcher) DefaultHandler(fn HandlerFunc) {
	d.handlers.Default(fn)
}

// AddTransport registers a named adapter, the generalized equivalent of
// the teacher's broker.Create("kafka", cfg) one-broker-per-process
// construction.
func (d *Dispatcher) AddTransport(name string, adapter transport.Adapter, transportType transport.Type, options map[string]any) error {
	return d.registry.RegisterTransport(name, adapter, transportType, options)
}

// SetDefaultTransport designates name as the transport Publish uses and
// Subscribe falls back to when no explicit scheme prefix ("name://...") is
// given.
func (d *Dispatcher) SetDefaultTransport(name string) error {
	return d.registry.SetDefaultTransport(name)
}

// Transport returns the named adapter directly, or nil if unregistered.
// Publish always targets the default transport (see transport.MultiAdapter
// §4.9); callers that need to send on a specific non-default transport go
// through the adapter's own Send via this accessor instead.
func (d *Dispatcher) Transport(name string) transport.Adapter {
	return d.registry.GetTransportAdapter(name)
}

// Validate runs policy against the registered transports, surfacing
// configuration mistakes before Start is ever called.
func (d *Dispatcher) Validate(policy transport.StartupPolicy) error {
	return transport.Validate(d.registry, policy)
}

// Start starts every registered transport. A second call before Stop fails
// with InvalidTransition, the generalized equivalent of the teacher's
// Router.Start guard (core/router.go: "started" flag, ErrAlreadyStarted).
func (d *Dispatcher) Start(ctx context.Context) error {
	d.startMu.Lock()
	if d.started {
		d.startMu.Unlock()
		return core.WrapError(core.InvalidTransition, "eventmux: dispatcher already started", core.ErrAlreadyStarted)
	}
	d.started = true
	d.startMu.Unlock()

	if err := d.multi.Start(ctx); err != nil {
		d.startMu.Lock()
		d.started = false
		d.startMu.Unlock()
		return err
	}
	return nil
}

// Stop stops every registered transport and clears the started guard so a
// subsequent Start is accepted again.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.startMu.Lock()
	d.started = false
	d.startMu.Unlock()
	return d.multi.Stop(ctx)
}

// Publish sends msg to destination, routed to the transport that owns it
// (by scheme prefix, or the configured default).
func (d *Dispatcher) Publish(ctx context.Context, msg *core.Message, destination string) core.Result {
	return d.multi.Publish(ctx, msg, destination)
}

// Subscribe starts consuming subscriptionName on the owning transport,
// dispatching everything received back through this Dispatcher, until ctx
// is cancelled.
func (d *Dispatcher) Subscribe(ctx context.Context, subscriptionName string) error {
	return d.multi.Subscribe(ctx, subscriptionName, d)
}

// Unsubscribe stops consuming subscriptionName.
func (d *Dispatcher) Unsubscribe(ctx context.Context, subscriptionName string) error {
	return d.multi.Unsubscribe(ctx, subscriptionName)
}

// Sagas returns the attached saga.Index, or nil if none was configured via
// WithSagaIndex. Handlers that orchestrate multi-step workflows call
// IndexSaga/UpdateStatus on it directly — the Dispatcher itself has no way
// to infer a sagaID or sagaType from a generic message, so it never writes
// to this index on its own.
func (d *Dispatcher) Sagas() *saga.Index {
	return d.sagaIndex
}

// Inbox returns the attached inbox.Store, or nil if none was configured via
// WithInbox.
func (d *Dispatcher) Inbox() *inbox.Store {
	return d.inboxStore
}

// Bind deserializes msg.Body into v using the Dispatcher's configured
// Binder (core.JSONBinder unless overridden via WithBinder), the
// generalized equivalent of the teacher's Context.Bind (core/context.go),
// which delegated to Router.binder. Handlers call this instead of
// constructing a Binder themselves, so a caller that swaps to Protobuf or
// Avro via WithBinder changes deserialization everywhere at once.
func (d *Dispatcher) Bind(msg *core.Message, v any) error {
	return d.binder.Bind(msg.Body, v)
}

// CheckHealth aggregates health across every registered transport.
func (d *Dispatcher) CheckHealth(ctx context.Context) transport.HealthStatus {
	return d.multi.CheckHealth(ctx)
}

// Dispose releases every registered transport's resources.
func (d *Dispatcher) Dispose() {
	d.multi.Dispose()
}

// Dispatch implements transport.Dispatcher. It resolves the registered
// handler for msg's X-Message-Type header, then runs the middleware chain
// with that handler as the terminal step — this is the bridge between
// transport.Dispatcher's per-call signature (no handler argument) and
// core.Invoker.Invoke's (handler required): the handler lookup happens
// here, once per dispatch, from the registry callers populated via Handle.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error) {
	if msg == nil {
		return core.Result{}, core.NewError(core.InvalidArgument, "eventmux: message must not be nil")
	}

	typeName, _ := msg.Headers.Get(core.HeaderMessageType)
	fn, ok := d.handlers.resolve(typeName)
	if !ok {
		return core.Result{}, core.WrapError(core.NotFound,
			fmt.Sprintf("eventmux: no handler registered for message type %q", typeName), core.ErrNoHandler)
	}

	final := core.FinalHandler(func(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error) {
		return d.invokeOnce(ctx, msg, mctx, typeName, fn)
	})

	return d.invoker.Invoke(ctx, msg, mctx, final)
}

// invokeOnce applies inbox deduplication (when configured) around a single
// handler invocation. A duplicate (message ID, message type) pair is
// treated as already-handled rather than an error, so redelivery by an
// at-least-once transport is idempotent from the caller's perspective.
func (d *Dispatcher) invokeOnce(ctx context.Context, msg *core.Message, mctx core.MessageContext, typeName string, fn HandlerFunc) (core.Result, error) {
	if d.inboxStore == nil {
		return fn(ctx, msg, mctx)
	}

	handlerKey := typeName
	if err := d.inboxStore.CreateEntry(msg.ID, handlerKey, typeName, msg.Body, nil); err != nil {
		if kind, ok := core.KindOf(err); ok && kind == core.Duplicate {
			return core.Success(), nil
		}
		return core.Result{}, err
	}

	res, err := fn(ctx, msg, mctx)
	if err != nil || !res.Succeeded() {
		reason := ""
		if err != nil {
			reason = err.Error()
		} else if res.Error() != nil {
			reason = res.Error().Error()
		}
		_ = d.inboxStore.MarkFailed(msg.ID, handlerKey, reason)
		return res, err
	}

	_ = d.inboxStore.MarkProcessed(msg.ID, handlerKey)
	return res, nil
}
