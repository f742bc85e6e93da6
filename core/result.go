package core

// Result is the uniform end-to-end dispatch outcome (§3). It is immutable
// once constructed: callers get typed access through Payload[T].
type Result struct {
	succeeded bool
	payload   any
	err       *DispatchError
}

// Success returns a succeeded Result with no payload.
func Success() Result {
	return Result{succeeded: true}
}

// SuccessWith returns a succeeded Result carrying a typed payload.
func SuccessWith(value any) Result {
	return Result{succeeded: true, payload: value}
}

// Failure returns a failed Result wrapping a DispatchError.
func Failure(err *DispatchError) Result {
	return Result{succeeded: false, err: err}
}

// Succeeded reports the outcome.
func (r Result) Succeeded() bool { return r.succeeded }

// Error returns the failure detail, or nil on success.
func (r Result) Error() *DispatchError { return r.err }

// RawPayload returns the untyped payload attached to a successful result.
func (r Result) RawPayload() any { return r.payload }

// Payload extracts a typed payload from a Result. If the result failed, ok is
// false. If the result succeeded with a nil payload, the zero value of T is
// returned with ok true (a null-typed payload is legal per §4.2). If the
// stored payload's runtime type does not match T, Payload returns the zero
// value of T and false, the same as for a failed result; AsTyped is the
// accessor that reports a wrong payload type as a TypeMismatch error.
func Payload[T any](r Result) (T, bool) {
	var zero T
	if !r.succeeded {
		return zero, false
	}
	if r.payload == nil {
		return zero, true
	}
	typed, ok := r.payload.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// ResultOf is the typed variant of Result returned by ChainExecutor.Invoke's
// generic sibling (§4.2 "Typed variant"). A "succeeded but wrong payload
// type" outcome is a failed ResultOf whose Error has Kind TypeMismatch.
type ResultOf[T any] struct {
	succeeded bool
	value     T
	err       *DispatchError
}

func (r ResultOf[T]) Succeeded() bool      { return r.succeeded }
func (r ResultOf[T]) Value() T             { return r.value }
func (r ResultOf[T]) Error() *DispatchError { return r.err }

// AsTyped converts an untyped Result into a ResultOf[T], failing with
// TypeMismatch when the payload exists but is of the wrong type (§4.2).
func AsTyped[T any](r Result) ResultOf[T] {
	if !r.succeeded {
		return ResultOf[T]{succeeded: false, err: r.err}
	}
	if r.payload == nil {
		var zero T
		return ResultOf[T]{succeeded: true, value: zero}
	}
	typed, ok := r.payload.(T)
	if !ok {
		return ResultOf[T]{
			succeeded: false,
			err:       NewError(TypeMismatch, "eventmux: payload type does not match requested response type"),
		}
	}
	return ResultOf[T]{succeeded: true, value: typed}
}

// MiddlewareResult is the short-circuit signal a middleware can hand back
// without itself driving the rest of the chain (§3, distinct from Result).
type MiddlewareResult struct {
	ContinueChain bool
	Succeeded     bool
	ErrorMessage  string
}

// Continue lets the chain proceed to the next middleware/handler.
func Continue() MiddlewareResult {
	return MiddlewareResult{ContinueChain: true, Succeeded: true}
}

// StopWithSuccess short-circuits the chain, declaring success.
func StopWithSuccess() MiddlewareResult {
	return MiddlewareResult{ContinueChain: false, Succeeded: true}
}

// StopWithError short-circuits the chain, declaring failure with msg.
func StopWithError(msg string) MiddlewareResult {
	return MiddlewareResult{ContinueChain: false, Succeeded: false, ErrorMessage: msg}
}
