package core_test

import (
	"context"
	"testing"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// stubMiddleware is a no-op Middleware used only to give Cursor distinct,
// comparable elements to traverse.
type stubMiddleware struct{}

func (*stubMiddleware) Invoke(ctx context.Context, msg *core.Message, mctx core.MessageContext, next core.NextFunc) (core.Result, error) {
	return next(ctx, msg, mctx)
}

func TestCursor_InitialInvariants(t *testing.T) {
	c := core.NewCursor(nil)
	if c.Index() != -1 {
		t.Fatalf("expected initial index -1, got %d", c.Index())
	}
	if c.HasNext() {
		t.Fatal("expected HasNext to be false over an empty middleware list")
	}
}

func TestCursor_MoveNext_AdvancesAndReturnsElements(t *testing.T) {
	m1, m2 := &stubMiddleware{}, &stubMiddleware{}
	c := core.NewCursor([]core.Middleware{m1, m2})

	if !c.HasNext() {
		t.Fatal("expected HasNext before the first element")
	}
	if got := c.MoveNext(); got != core.Middleware(m1) {
		t.Fatalf("expected first MoveNext to return m1, got %v", got)
	}
	if c.Index() != 0 {
		t.Fatalf("expected index 0 after first MoveNext, got %d", c.Index())
	}
	if !c.HasNext() {
		t.Fatal("expected HasNext before the second element")
	}
	if got := c.MoveNext(); got != core.Middleware(m2) {
		t.Fatalf("expected second MoveNext to return m2, got %v", got)
	}
	if c.HasNext() {
		t.Fatal("expected HasNext false past the last element")
	}
	if got := c.MoveNext(); got != nil {
		t.Fatalf("expected MoveNext past the end to return nil, got %v", got)
	}
}

func TestCursor_Reset_RestoresInitialPosition(t *testing.T) {
	c := core.NewCursor([]core.Middleware{&stubMiddleware{}})
	c.MoveNext()
	c.Reset()
	if c.Index() != -1 {
		t.Fatalf("expected index -1 after Reset, got %d", c.Index())
	}
	if !c.HasNext() {
		t.Fatal("expected HasNext true again after Reset")
	}
}

func TestCursor_Equal_ComparesLengthAndIndex(t *testing.T) {
	a := core.NewCursor([]core.Middleware{&stubMiddleware{}, &stubMiddleware{}})
	b := core.NewCursor([]core.Middleware{&stubMiddleware{}, &stubMiddleware{}})
	if !a.Equal(b) {
		t.Fatal("expected two fresh cursors over same-length lists to be equal")
	}
	a.MoveNext()
	if a.Equal(b) {
		t.Fatal("expected cursors at different indices to be unequal")
	}
	b.MoveNext()
	if !a.Equal(b) {
		t.Fatal("expected cursors to be equal again once both advanced once")
	}

	c := core.NewCursor([]core.Middleware{&stubMiddleware{}})
	if a.Equal(c) {
		t.Fatal("expected cursors over different-length lists to be unequal")
	}
}
