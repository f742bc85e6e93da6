package core

import (
	"context"
	"reflect"
	"sync"
)

// FinalHandler is the terminal callable a chain invokes once every
// middleware in it has called next (§3 "Chain").
type FinalHandler func(ctx context.Context, msg *Message, mctx MessageContext) (Result, error)

// ChainExecutor drives one dispatch through a fixed, ordered list of
// middlewares plus a terminal handler (§4.2). It is immutable once built:
// the same executor instance is safe for concurrent use by distinct
// dispatches (§5).
//
// Zero-allocation discipline: each dispatch allocates one *chainState
// (holding a Cursor over the middleware list plus the final handler) and
// binds its continuation (chainState.next) into a single NextFunc value
// once, at construction — two allocations in all, and every middleware in
// the chain is handed that same value rather than each layer minting its
// own closure.
// This matches the "index-threaded state object allocated once per
// dispatch" strategy named in §4.2.
type ChainExecutor struct {
	middlewares []Middleware
}

// chainState is the single per-dispatch allocation threading position and
// the final handler through the chain. Position is tracked by a Cursor
// (§3 "Middleware context cursor") rather than a bare index field, so the
// cursor's moveNext/hasNext/reset invariants are the actual traversal
// mechanism instead of a parallel, undocumented bookkeeping scheme.
//
// self is bound exactly once, in newChainState, and handed unchanged to
// every middleware in the chain. Rebinding the method value on every call
// to next (e.g. writing "s.next" fresh at each call site) would mint a new
// closure per layer — binding once keeps per-dispatch allocation independent
// of chain depth (§4.2 "zero-allocation discipline").
type chainState struct {
	cursor Cursor
	final  FinalHandler
	self   NextFunc
}

func newChainState(middlewares []Middleware, final FinalHandler) *chainState {
	s := &chainState{cursor: NewCursor(middlewares), final: final}
	s.self = s.next
	return s
}

func (s *chainState) next(ctx context.Context, msg *Message, mctx MessageContext) (Result, error) {
	mw := s.cursor.MoveNext()
	if mw == nil {
		return s.final(ctx, msg, mctx)
	}
	return mw.Invoke(ctx, msg, mctx, s.self)
}

// BuildChainExecutor closes an ordered middleware list into an executor.
func BuildChainExecutor(middlewares []Middleware) *ChainExecutor {
	cp := make([]Middleware, len(middlewares))
	copy(cp, middlewares)
	return &ChainExecutor{middlewares: cp}
}

// Invoke executes the middlewares in configured order, then finalHandler,
// per §4.2's chain executor contract. A middleware that doesn't call next
// short-circuits everything after it; an error or panic propagates unchanged
// — the executor adds no retry, logging, or result substitution.
//
// Per-dispatch allocation is one *chainState plus its bound NextFunc (this
// call), regardless of chain depth: see chainState's doc comment.
func (e *ChainExecutor) Invoke(ctx context.Context, msg *Message, mctx MessageContext, final FinalHandler) (Result, error) {
	if len(e.middlewares) == 0 {
		return final(ctx, msg, mctx)
	}
	state := newChainState(e.middlewares, final)
	return state.next(ctx, msg, mctx)
}

// InvokeTyped runs the chain and asserts the terminal result's payload type
// against T (§4.2 "Typed variant").
func InvokeTyped[T any](e *ChainExecutor, ctx context.Context, msg *Message, mctx MessageContext, final FinalHandler) (ResultOf[T], error) {
	res, err := e.Invoke(ctx, msg, mctx, final)
	if err != nil {
		return ResultOf[T]{}, err
	}
	return AsTyped[T](res), nil
}

// chainKey distinguishes cached chains both by the Go type a caller used to
// represent a message and by its resolved Kind. A bare reflect.Type is not
// enough: every dispatch through Invoker reflects on *Message itself (the
// envelope, not the opaque Body), so without Kind in the key every message
// would collide on one cache entry regardless of whether it resolved to
// Action, Event, or Document.
type chainKey struct {
	typ  reflect.Type
	kind Kind
}

// ChainBuilder builds and interns one ChainExecutor per (message type, kind)
// key (§4.2 "GetChain"). Construction of a given key is guarded so that
// exactly one cached executor per key is ever visible to callers, even under
// concurrent first access. Once frozen, keys not cached before Freeze get a
// fresh, uncached executor on each lookup.
type ChainBuilder struct {
	evaluator   *ApplicabilityEvaluator
	middlewares []Middleware
	features    FeatureSet

	mu       sync.Mutex
	cache    map[chainKey]*ChainExecutor
	building map[chainKey]*sync.WaitGroup
	frozen   bool
}

// NewChainBuilder constructs a builder over the given middleware list,
// evaluated against kinds via evaluator.
func NewChainBuilder(middlewares []Middleware, evaluator *ApplicabilityEvaluator, features FeatureSet) *ChainBuilder {
	return &ChainBuilder{
		evaluator:   evaluator,
		middlewares: middlewares,
		features:    features,
		cache:       make(map[chainKey]*ChainExecutor),
		building:    make(map[chainKey]*sync.WaitGroup),
	}
}

// GetChain returns the cached executor for (messageType, kind), building it
// on miss.
func (b *ChainBuilder) GetChain(messageType reflect.Type, kind Kind) *ChainExecutor {
	key := chainKey{typ: messageType, kind: kind}

	b.mu.Lock()
	if exec, ok := b.cache[key]; ok {
		b.mu.Unlock()
		return exec
	}
	if wg, building := b.building[key]; building {
		b.mu.Unlock()
		wg.Wait()
		b.mu.Lock()
		exec := b.cache[key]
		b.mu.Unlock()
		if exec == nil {
			// the builder was frozen, so the finished build was not cached
			exec = BuildChainExecutor(b.evaluator.FilterApplicable(b.middlewares, kind, b.features))
		}
		return exec
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	b.building[key] = wg
	frozen := b.frozen
	b.mu.Unlock()

	applicable := b.evaluator.FilterApplicable(b.middlewares, kind, b.features)
	exec := BuildChainExecutor(applicable)

	b.mu.Lock()
	if !frozen {
		b.cache[key] = exec
	} else {
		// Frozen builders still serve fresh types, just without caching them
		// (§4.2 "Freeze" — "new types are served by uncached builds").
	}
	delete(b.building, key)
	b.mu.Unlock()
	wg.Done()

	return exec
}

// Freeze pre-computes chains for the supplied (type, kind) pairs and locks
// the cache against further writes.
func (b *ChainBuilder) Freeze(knownTypes []reflect.Type, kindOf func(reflect.Type) Kind) {
	for _, t := range knownTypes {
		b.GetChain(t, kindOf(t))
	}
	b.mu.Lock()
	b.frozen = true
	b.mu.Unlock()
}

// IsFrozen reports whether new chains are being cached.
func (b *ChainBuilder) IsFrozen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frozen
}
