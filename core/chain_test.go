package core_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// kindOnlyMiddleware applies to exactly one Kind, letting a test prove
// which filtered chain actually ran by checking which middleware fired.
type kindOnlyMiddleware struct {
	core.StaticApplicability
	ran *bool
}

func (m *kindOnlyMiddleware) Invoke(ctx context.Context, msg *core.Message, mctx core.MessageContext, next core.NextFunc) (core.Result, error) {
	*m.ran = true
	return next(ctx, msg, mctx)
}

func TestChainBuilder_GetChain_DistinguishesKindForSameType(t *testing.T) {
	var eventRan, actionRan bool
	eventMw := &kindOnlyMiddleware{StaticApplicability: core.StaticApplicability{Applies: core.Event}, ran: &eventRan}
	actionMw := &kindOnlyMiddleware{StaticApplicability: core.StaticApplicability{Applies: core.Action}, ran: &actionRan}

	builder := core.NewChainBuilder([]core.Middleware{eventMw, actionMw}, core.NewApplicabilityEvaluator(), nil)

	msgType := reflect.TypeOf(&core.Message{}).Elem()

	// First dispatch resolves as Event: only eventMw should be in the chain.
	eventMsg := core.NewMessage(core.Event, nil)
	eventCtx := core.NewMessageContext(context.Background(), eventMsg)
	final := func(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error) {
		return core.Success(), nil
	}
	exec := builder.GetChain(msgType, core.Event)
	if _, err := exec.Invoke(context.Background(), eventMsg, eventCtx, final); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eventRan || actionRan {
		t.Fatalf("expected only event middleware to run, got eventRan=%v actionRan=%v", eventRan, actionRan)
	}

	// Second dispatch resolves as Action against the *same* reflect.Type —
	// before the (type, kind) cache key fix this incorrectly reused the
	// Event-filtered chain cached above.
	eventRan, actionRan = false, false
	actionMsg := core.NewMessage(core.Action, nil)
	actionCtx := core.NewMessageContext(context.Background(), actionMsg)
	exec = builder.GetChain(msgType, core.Action)
	if _, err := exec.Invoke(context.Background(), actionMsg, actionCtx, final); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eventRan || !actionRan {
		t.Fatalf("expected only action middleware to run, got eventRan=%v actionRan=%v", eventRan, actionRan)
	}
}

func TestChainBuilder_GetChain_CachesPerKind(t *testing.T) {
	var builds int
	builder := core.NewChainBuilder(nil, core.NewApplicabilityEvaluator(), nil)
	msgType := reflect.TypeOf(&core.Message{}).Elem()

	first := builder.GetChain(msgType, core.Event)
	for i := 0; i < 3; i++ {
		// A cached chain is the same executor instance on every lookup of
		// the same (type, kind) key.
		if exec := builder.GetChain(msgType, core.Event); exec != first {
			t.Fatalf("call %d: expected the cached executor for (Message, Event)", i)
		}
		builds++
	}
	if builds != 3 {
		t.Fatalf("expected 3 calls, got %d", builds)
	}
	if builder.GetChain(msgType, core.Action) == first {
		t.Fatal("expected a separate cached executor for a different kind")
	}
}

func TestInvoker_Invoke_RejectsNilArguments(t *testing.T) {
	builder := core.NewChainBuilder(nil, core.NewApplicabilityEvaluator(), nil)
	inv := core.NewInvoker(builder, true)
	final := func(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error) {
		return core.Success(), nil
	}

	if _, err := inv.Invoke(context.Background(), nil, core.NewMessageContext(context.Background(), core.NewMessage(core.Action, nil)), final); err == nil {
		t.Fatal("expected error for nil message")
	}
	msg := core.NewMessage(core.Action, nil)
	if _, err := inv.Invoke(context.Background(), msg, nil, final); err == nil {
		t.Fatal("expected error for nil context")
	}
	if _, err := inv.Invoke(context.Background(), msg, core.NewMessageContext(context.Background(), msg), nil); err == nil {
		t.Fatal("expected error for nil final handler")
	}
}

// tracingMiddleware records "<name>-before" ahead of calling next and
// "<name>-after" once next returns, the way a logging middleware would wrap
// both legs of the call.
func tracingMiddleware(name string, trace *[]string) core.MiddlewareFunc {
	return func(ctx context.Context, msg *core.Message, mctx core.MessageContext, next core.NextFunc) (core.Result, error) {
		*trace = append(*trace, name+"-before")
		res, err := next(ctx, msg, mctx)
		*trace = append(*trace, name+"-after")
		return res, err
	}
}

// TestChainExecutor_Invoke_PreservesConfiguredOrder reproduces the chain
// traversal scenario from §4.2: two wrapping middlewares around a final
// handler must run outer-to-inner on the way in and inner-to-outer on the
// way out, i.e. m1-before, m2-before, final, m2-after, m1-after.
func TestChainExecutor_Invoke_PreservesConfiguredOrder(t *testing.T) {
	var trace []string
	m1 := tracingMiddleware("m1", &trace)
	m2 := tracingMiddleware("m2", &trace)

	exec := core.BuildChainExecutor([]core.Middleware{m1, m2})
	final := func(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error) {
		trace = append(trace, "final")
		return core.Success(), nil
	}

	msg := core.NewMessage(core.Action, nil)
	mctx := core.NewMessageContext(context.Background(), msg)
	if _, err := exec.Invoke(context.Background(), msg, mctx, final); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"m1-before", "m2-before", "final", "m2-after", "m1-after"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

// passThroughMiddleware is a minimal Middleware that does nothing but call
// next, used to build a deep chain without any per-middleware state that
// would itself allocate.
type passThroughMiddleware struct{}

func (passThroughMiddleware) Invoke(ctx context.Context, msg *core.Message, mctx core.MessageContext, next core.NextFunc) (core.Result, error) {
	return next(ctx, msg, mctx)
}

func deepChain(depth int) *core.ChainExecutor {
	middlewares := make([]core.Middleware, depth)
	for i := range middlewares {
		middlewares[i] = passThroughMiddleware{}
	}
	return core.BuildChainExecutor(middlewares)
}

// TestChainExecutor_Invoke_AllocatesOnceRegardlessOfDepth exercises the
// "per-dispatch allocation is independent of chain depth" claim documented
// on ChainExecutor: a 100-deep chain of pass-through
// middlewares must not allocate more per Invoke than a single-middleware
// chain does.
func TestChainExecutor_Invoke_AllocatesOnceRegardlessOfDepth(t *testing.T) {
	const depth = 100
	exec := deepChain(depth)
	final := func(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error) {
		return core.Success(), nil
	}
	msg := core.NewMessage(core.Action, nil)
	mctx := core.NewMessageContext(context.Background(), msg)

	run := func() {
		if _, err := exec.Invoke(context.Background(), msg, mctx, final); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	shallow := deepChain(1)
	shallowRun := func() {
		if _, err := shallow.Invoke(context.Background(), msg, mctx, final); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	deepAllocs := testing.AllocsPerRun(50, run)
	shallowAllocs := testing.AllocsPerRun(50, shallowRun)

	if deepAllocs != shallowAllocs {
		t.Fatalf("expected allocations independent of chain depth, got %v for depth 1 and %v for depth %d",
			shallowAllocs, deepAllocs, depth)
	}
}

// BenchmarkChainExecutor_Invoke_Deep reports allocations for a 100-deep
// chain so a regression that starts minting a closure per middleware layer
// shows up in `go test -bench . -benchmem` output.
func BenchmarkChainExecutor_Invoke_Deep(b *testing.B) {
	exec := deepChain(100)
	final := func(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error) {
		return core.Success(), nil
	}
	msg := core.NewMessage(core.Action, nil)
	mctx := core.NewMessageContext(context.Background(), msg)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exec.Invoke(context.Background(), msg, mctx, final); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}
