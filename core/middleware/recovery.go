package middleware

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

type recoveryMiddleware struct{}

// Recovery returns middleware that recovers from panics raised by later
// middlewares or the final handler, logs the stack trace, and turns the
// panic into an ordinary failed Result. This is an opt-in chain member —
// the chain executor itself never recovers panics (§4.2).
func Recovery() core.Middleware {
	return recoveryMiddleware{}
}

func (recoveryMiddleware) Stage() core.Stage { return core.PreProcessing }

func (recoveryMiddleware) Invoke(ctx context.Context, msg *core.Message, mctx core.MessageContext, next core.NextFunc) (res core.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			log.Error().
				Str("message_id", msg.ID).
				Interface("panic", r).
				Str("stack", string(buf[:n])).
				Msg("dispatch panic recovered")
			res = core.Failure(core.NewError(core.Internal, fmt.Sprintf("panic recovered: %v", r)))
			err = nil
		}
	}()
	return next(ctx, msg, mctx)
}
