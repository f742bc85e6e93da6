package core_test

import (
	"errors"
	"testing"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

func TestHeaders_SetGetIsCaseInsensitive(t *testing.T) {
	h := core.NewHeaders()
	h.Set("X-Trace-Id", "abc")

	got, ok := h.Get("x-trace-id")
	if !ok || got != "abc" {
		t.Fatalf("got %q, ok=%v", got, ok)
	}
}

func TestHeaders_KeysPreservesInsertionOrderAndCasing(t *testing.T) {
	h := core.NewHeaders()
	h.Set("b", "2")
	h.Set("A", "1")

	keys := h.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "A" {
		t.Fatalf("unexpected key order/casing: %v", keys)
	}
}

func TestHeaders_SetOverwritesWithoutDuplicatingKey(t *testing.T) {
	h := core.NewHeaders()
	h.Set("x", "1")
	h.Set("X", "2")

	if len(h.Keys()) != 1 {
		t.Fatalf("expected a single key after overwrite, got %v", h.Keys())
	}
	got, _ := h.Get("x")
	if got != "2" {
		t.Fatalf("expected overwritten value, got %q", got)
	}
}

func TestHeaders_Remove(t *testing.T) {
	h := core.NewHeaders()
	h.Set("x", "1")

	if !h.Remove("X") {
		t.Fatal("expected removal to report true for an existing header")
	}
	if _, ok := h.Get("x"); ok {
		t.Fatal("expected header to be gone after Remove")
	}
	if h.Remove("x") {
		t.Fatal("expected removal to report false the second time")
	}
}

func TestHeaders_Clone_IsIndependent(t *testing.T) {
	h := core.NewHeaders()
	h.Set("x", "1")

	clone := h.Clone()
	clone.Set("x", "2")

	got, _ := h.Get("x")
	if got != "1" {
		t.Fatalf("expected original to be unaffected by mutating the clone, got %q", got)
	}
}

func TestNewMessage_GeneratesIDAndTimestamp(t *testing.T) {
	msg := core.NewMessage(core.Event, []byte("body"))
	if msg.ID == "" {
		t.Fatal("expected a generated ID")
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("expected a timestamp")
	}
}

func TestMessage_EnsureID_DoesNotOverwriteExisting(t *testing.T) {
	msg := &core.Message{ID: "fixed"}
	msg.EnsureID()
	if msg.ID != "fixed" {
		t.Fatalf("expected existing ID preserved, got %q", msg.ID)
	}

	empty := &core.Message{}
	empty.EnsureID()
	if empty.ID == "" {
		t.Fatal("expected a generated ID when none was set")
	}
}

func TestKind_Has(t *testing.T) {
	k := core.Action | core.Event
	if !k.Has(core.Event) {
		t.Fatal("expected Has to report Event as set")
	}
	if k.Has(core.Document) {
		t.Fatal("expected Has to report Document as unset")
	}
}

func TestKind_String(t *testing.T) {
	if core.Event.String() != "event" {
		t.Fatalf("got %q", core.Event.String())
	}
	if core.All.String() != "all" {
		t.Fatalf("got %q", core.All.String())
	}
}

func TestDetectKind_SuffixMapping(t *testing.T) {
	cases := map[string]core.Kind{
		"orders.v1.PlaceOrderCommand": core.Action,
		"orders.v1.OrderCreatedEvent": core.Event,
		"orders.v1.OrderNotification": core.Event,
		"orders.v1.GetOrderQuery":     core.Document,
		"orders.v1.OrderDocument":     core.Document,
		"orders.v1.Unsuffixed":        core.Action,
	}
	for typeName, want := range cases {
		if got := core.DetectKind(typeName); got != want {
			t.Errorf("DetectKind(%q) = %v, want %v", typeName, got, want)
		}
	}
}

func TestResolveKind_PrefersExplicitKindOverDetection(t *testing.T) {
	msg := &core.Message{Kind: core.Document}
	if got := core.ResolveKind(msg, "SomethingEvent"); got != core.Document {
		t.Fatalf("expected explicit Kind to win, got %v", got)
	}
}

func TestResolveKind_FallsBackToDetection(t *testing.T) {
	msg := &core.Message{}
	if got := core.ResolveKind(msg, "SomethingEvent"); got != core.Event {
		t.Fatalf("expected detected Event kind, got %v", got)
	}
}

// customKindMarker is a non-Message payload used to prove ResolveKind
// consults any KindMarker implementation, not just *core.Message.
type customKindMarker struct{ kind core.Kind }

func (c customKindMarker) MessageKind() core.Kind { return c.kind }

func TestResolveKind_ConsultsArbitraryKindMarker(t *testing.T) {
	marker := customKindMarker{kind: core.Document}
	if got := core.ResolveKind(marker, "SomethingCommand"); got != core.Document {
		t.Fatalf("expected marker's declared kind to win, got %v", got)
	}
}

func TestResolveKind_NonMarkerFallsBackToDetection(t *testing.T) {
	if got := core.ResolveKind("not a marker", "SomethingQuery"); got != core.Document {
		t.Fatalf("expected detected Document kind for a non-marker value, got %v", got)
	}
}

func TestKindOf_ExtractsDispatchErrorKind(t *testing.T) {
	err := core.WrapError(core.NotFound, "no handler", errors.New("cause"))
	kind, ok := core.KindOf(err)
	if !ok || kind != core.NotFound {
		t.Fatalf("kind=%v ok=%v", kind, ok)
	}
}

func TestKindOf_FalseForPlainError(t *testing.T) {
	if _, ok := core.KindOf(errors.New("plain")); ok {
		t.Fatal("expected a plain error to not resolve a Kind")
	}
}

func TestDispatchError_IsComparesKindAgainstSentinel(t *testing.T) {
	err := core.WrapError(core.Duplicate, "already processed", nil)
	if !errors.Is(err, core.ErrDuplicate) {
		t.Fatal("expected errors.Is to match on Kind against the sentinel")
	}
	if errors.Is(err, core.ErrNotFound) {
		t.Fatal("expected errors.Is to not match a different Kind")
	}
}

func TestDispatchError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := core.WrapError(core.ConfigurationError, "bad config", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap to expose the original cause")
	}
}
