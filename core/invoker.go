package core

import (
	"context"
	"reflect"
)

// Invoker is the public surface for callers that already hold a middleware
// list, a message, a context, and a final handler (§4.3).
type Invoker struct {
	builder *ChainBuilder
	caching bool
}

// NewInvoker builds an Invoker over builder. caching controls whether the
// chain cache is consulted (disabling it makes Invoke re-evaluate
// applicability and rebuild the chain on every dispatch, per §4.3).
func NewInvoker(builder *ChainBuilder, caching bool) *Invoker {
	return &Invoker{builder: builder, caching: caching}
}

// Invoke validates arguments, resolves (or builds) the chain for msg's
// type, executes it, and returns the result.
func (inv *Invoker) Invoke(ctx context.Context, msg *Message, mctx MessageContext, final FinalHandler) (Result, error) {
	if msg == nil {
		return Result{}, NewError(InvalidArgument, "eventmux: message must not be nil")
	}
	if mctx == nil {
		return Result{}, NewError(InvalidArgument, "eventmux: context must not be nil")
	}
	if final == nil {
		return Result{}, NewError(InvalidArgument, "eventmux: finalHandler must not be nil")
	}
	select {
	case <-ctx.Done():
		return Result{}, NewError(Cancelled, "eventmux: context already cancelled")
	default:
	}

	msgType := reflect.TypeOf(msg).Elem()
	kind := ResolveKind(msg, msgType.Name())

	var exec *ChainExecutor
	if inv.caching {
		exec = inv.builder.GetChain(msgType, kind)
	} else {
		// Caching disabled: re-evaluate applicability and rebuild the chain
		// on every dispatch instead of consulting the interned cache (§4.3).
		applicable := inv.builder.evaluator.FilterApplicable(inv.builder.middlewares, kind, inv.builder.features)
		exec = BuildChainExecutor(applicable)
	}
	return exec.Invoke(ctx, msg, mctx, final)
}

// FilteredInvoker is itself a Middleware (stage Processing, applicable to
// All kinds per §4.3) that consults the ApplicabilityEvaluator on every
// dispatch rather than relying solely on the chain cache — used when a
// caller has disabled caching, or wants per-dispatch feature-gating against
// a feature set that varies by message.
type FilteredInvoker struct {
	Evaluator              *ApplicabilityEvaluator
	Middlewares            []Middleware
	Features               FeatureSet
	IncludeOnFilterError   bool
}

func (f *FilteredInvoker) Stage() Stage { return Processing }

func (f *FilteredInvoker) AppliesTo() Kind           { return All }
func (f *FilteredInvoker) ExcludeKinds() Kind        { return None }
func (f *FilteredInvoker) RequiredFeatures() []string { return nil }

// Invoke filters f.Middlewares against msg's kind using f.Evaluator (with
// f.IncludeOnFilterError deciding the fate of any middleware whose
// applicability check panics — default is to drop it, per §4.3), builds a
// fresh ChainExecutor from the filtered list, and runs it.
func (f *FilteredInvoker) Invoke(ctx context.Context, msg *Message, mctx MessageContext, next NextFunc) (Result, error) {
	evaluator := f.Evaluator
	if evaluator == nil {
		evaluator = NewApplicabilityEvaluator()
	}
	evaluator.IncludeOnFilterError = f.IncludeOnFilterError

	kind := ResolveKind(msg, reflect.TypeOf(msg).Elem().Name())
	applicable := evaluator.FilterApplicable(f.Middlewares, kind, f.Features)
	exec := BuildChainExecutor(applicable)

	final := FinalHandler(func(ctx context.Context, msg *Message, mctx MessageContext) (Result, error) {
		return next(ctx, msg, mctx)
	})
	return exec.Invoke(ctx, msg, mctx, final)
}
