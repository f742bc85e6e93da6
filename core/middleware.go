package core

import "context"

// Stage is the declared position of a middleware within the conceptual
// pipeline (§3). It is informational — the chain executes in configured
// list order regardless of Stage — but middleware authors and the builder's
// diagnostics use it to group and order registration.
type Stage string

const (
	PreProcessing  Stage = "pre_processing"
	Validation     Stage = "validation"
	Processing     Stage = "processing"
	PostProcessing Stage = "post_processing"
	End            Stage = "end"
	UnspecifiedStage Stage = ""
)

// NextFunc is the continuation a Middleware calls to proceed to the next
// entry in the chain (or the final handler, for the last middleware).
type NextFunc func(ctx context.Context, msg *Message, mctx MessageContext) (Result, error)

// Middleware is the single extension point of the pipeline (§3). It mirrors
// the teacher's core.Middleware (core/message.go: func(Handler) Handler) but
// takes the form of an interface so that applicability metadata can be
// attached alongside Invoke rather than via reflection over struct tags.
type Middleware interface {
	Invoke(ctx context.Context, msg *Message, mctx MessageContext, next NextFunc) (Result, error)
}

// MiddlewareFunc adapts a plain function to Middleware, the way the teacher
// adapts core.MiddlewareFunc to core.Middleware via a closure.
type MiddlewareFunc func(ctx context.Context, msg *Message, mctx MessageContext, next NextFunc) (Result, error)

func (f MiddlewareFunc) Invoke(ctx context.Context, msg *Message, mctx MessageContext, next NextFunc) (Result, error) {
	return f(ctx, msg, mctx, next)
}

// Staged is an optional interface a Middleware can implement to declare its
// conceptual Stage (§3). Middlewares that don't implement it are treated as
// UnspecifiedStage.
type Staged interface {
	Stage() Stage
}

// Applicability is the optional interface carrying the applies-to /
// exclude-kinds / requires-features annotations described in §3/§4.1. A
// Middleware that does not implement it defaults to appliesTo=All,
// excludeKinds=None, requiredFeatures=∅ (interface default).
type Applicability interface {
	AppliesTo() Kind
	ExcludeKinds() Kind
	RequiredFeatures() []string
}

// StaticApplicability is a ready-made Applicability a middleware can embed
// to declare its annotations as plain fields rather than implementing the
// three methods individually.
type StaticApplicability struct {
	Applies  Kind
	Excludes Kind
	Requires []string
}

func (s StaticApplicability) AppliesTo() Kind           { return s.Applies }
func (s StaticApplicability) ExcludeKinds() Kind        { return s.Excludes }
func (s StaticApplicability) RequiredFeatures() []string { return s.Requires }

// resolveApplicability reads annotations off a middleware value (or its
// registered type-level descriptor — see applicability.go), applying the
// documented defaults when absent.
func resolveApplicability(v any) (appliesTo, excludeKinds Kind, required []string) {
	appliesTo = All
	excludeKinds = None
	if a, ok := v.(Applicability); ok {
		if a.AppliesTo() != None {
			appliesTo = a.AppliesTo()
		}
		excludeKinds = a.ExcludeKinds()
		required = a.RequiredFeatures()
	}
	return appliesTo, excludeKinds, required
}
