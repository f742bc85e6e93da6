package transport_test

import (
	"testing"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

func TestMatchEndpoint_StarAndQuestionMark(t *testing.T) {
	cases := []struct {
		pattern, endpoint string
		want              bool
	}{
		{"orders/*", "orders/create", true},
		{"orders/*", "payments/create", false},
		{"orders/?", "orders/1", true},
		{"orders/?", "orders/12", false},
		{"ORDERS/*", "orders/create", true}, // case-insensitive
	}
	for _, c := range cases {
		if got := transport.MatchEndpoint(c.pattern, c.endpoint); got != c.want {
			t.Errorf("MatchEndpoint(%q, %q) = %v, want %v", c.pattern, c.endpoint, got, c.want)
		}
	}
}

func TestBindingMatcher_PicksHighestPriorityMatch(t *testing.T) {
	low := transport.Binding{Name: "low", EndpointPattern: "orders/*", AcceptedKinds: core.All, Priority: 1}
	high := transport.Binding{Name: "high", EndpointPattern: "orders/*", AcceptedKinds: core.All, Priority: 10}

	m := transport.BindingMatcher{}
	got := m.Match([]transport.Binding{low, high}, "orders/create", core.Action)
	if got == nil || got.Name != "high" {
		t.Fatalf("expected high-priority binding to win, got %+v", got)
	}
}

func TestBindingMatcher_FiltersByKind(t *testing.T) {
	b := transport.Binding{Name: "events-only", EndpointPattern: "orders/*", AcceptedKinds: core.Event, Priority: 1}
	m := transport.BindingMatcher{}
	if got := m.Match([]transport.Binding{b}, "orders/create", core.Action); got != nil {
		t.Fatalf("expected no match for Action against an Event-only binding, got %+v", got)
	}
	if got := m.Match([]transport.Binding{b}, "orders/create", core.Event); got == nil {
		t.Fatal("expected a match for Event")
	}
}
