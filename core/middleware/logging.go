// Package middleware provides the runtime's built-in, optional
// cross-cutting middlewares (logging, recovery, metrics), mirroring the
// teacher's core/middleware package but targeting the new core.Middleware
// interface and the corpus's structured-logging idiom instead of bare
// log.Printf.
package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// loggingMiddleware implements core.Middleware and declares its Stage, the
// way a teacher-style middleware would be a concrete type rather than a bare
// closure once it needs to carry applicability/stage metadata.
type loggingMiddleware struct{}

// Logging returns middleware that logs dispatch duration and outcome via
// zerolog, the way agentoven-agentoven's auth chain
// (control-plane/internal/auth/chain.go) logs structured one-liners instead
// of the teacher's log.Printf.
func Logging() core.Middleware {
	return loggingMiddleware{}
}

func (loggingMiddleware) Stage() core.Stage { return core.PostProcessing }

func (loggingMiddleware) Invoke(ctx context.Context, msg *core.Message, mctx core.MessageContext, next core.NextFunc) (core.Result, error) {
	start := time.Now()
	res, err := next(ctx, msg, mctx)
	elapsed := time.Since(start)

	evt := log.Info()
	if err != nil || !res.Succeeded() {
		evt = log.Error()
	}
	evt.
		Str("message_id", msg.ID).
		Str("kind", msg.Kind.String()).
		Dur("elapsed", elapsed).
		Bool("succeeded", res.Succeeded()).
		Msg("dispatch")
	return res, err
}
