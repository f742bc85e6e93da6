// Package mock provides shared test doubles for transport.Adapter and
// transport.Dispatcher, grounded on the teacher's internal/mock.Broker: a
// mutex-guarded recorder with no real I/O, generalized from "one handler
// per topic" to the new architecture's adapter/dispatcher interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// Dispatcher is a transport.Dispatcher test double that records every
// call and returns a programmable Result/error pair.
type Dispatcher struct {
	mu       sync.Mutex
	calls    []DispatchCall
	Result   core.Result
	Err      error
	OnDispatch func(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error)
}

// DispatchCall records one Dispatch invocation.
type DispatchCall struct {
	Message *core.Message
	Context core.MessageContext
}

// NewDispatcher returns a Dispatcher that succeeds by default.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{Result: core.Success()}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg *core.Message, mctx core.MessageContext) (core.Result, error) {
	d.mu.Lock()
	d.calls = append(d.calls, DispatchCall{Message: msg, Context: mctx})
	onDispatch := d.OnDispatch
	result, err := d.Result, d.Err
	d.mu.Unlock()

	if onDispatch != nil {
		return onDispatch(ctx, msg, mctx)
	}
	return result, err
}

// Calls returns a snapshot of every recorded Dispatch invocation.
func (d *Dispatcher) Calls() []DispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DispatchCall, len(d.calls))
	copy(out, d.calls)
	return out
}
