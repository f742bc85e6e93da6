package transport

import (
	"context"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// Router forwards an inbound transport message, tagged with the name of
// the adapter that produced it, to a configured Dispatcher (§4.8).
// Generalizes the teacher's broker.Broker.Subscribe/Deliver pairing (a
// topic-keyed handler map) into a single dispatcher fed by many named
// adapters.
type Router struct {
	dispatcher Dispatcher
}

// NewRouter constructs a Router over dispatcher.
func NewRouter(dispatcher Dispatcher) *Router {
	return &Router{dispatcher: dispatcher}
}

// Route validates its arguments and forwards to the dispatcher. adapterName
// identifies which registered adapter produced msg/mctx; the router itself
// does not consult the registry — callers that need per-adapter behavior do
// that lookup before calling Route.
func (r *Router) Route(ctx context.Context, adapterName string, msg *core.Message, mctx core.MessageContext) (core.Result, error) {
	if adapterName == "" {
		return core.Result{}, core.NewError(core.InvalidArgument, "eventmux: adapter name is required")
	}
	if msg == nil {
		return core.Result{}, core.NewError(core.InvalidArgument, "eventmux: message must not be nil")
	}
	if mctx == nil {
		return core.Result{}, core.NewError(core.InvalidArgument, "eventmux: context must not be nil")
	}
	if r.dispatcher == nil {
		return core.Result{}, core.NewError(core.ConfigurationError, "eventmux: router has no dispatcher configured")
	}
	return r.dispatcher.Dispatch(ctx, msg, mctx)
}
