package websocket

import (
	"context"
	"io"

	"github.com/go-kit/kit/log"

	"github.com/fluxcd/rgcomposer/pkg/api"
	"github.com/fluxcd/rgcomposer/pkg/compose"
)

// ServePreview runs a preview session over ws until the peer goes
// away or ctx is done. The session starts empty and lives as long as
// the connection: the state is sent once on connecting, then once per
// op received. It returns nil on a clean disconnection.
func ServePreview(ctx context.Context, p api.Previewer, ws Websocket, logger log.Logger) error {
	session := compose.NewSession()
	ops := 0
	defer func() {
		logger.Log("session", "closed", "ops", ops)
	}()

	if err := ws.WriteJSON(p.Preview(ctx, session, api.PreviewOp{Op: api.OpRefresh})); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var op api.PreviewOp
		err := ws.ReadJSON(&op)
		switch {
		case err == nil:
		case err == io.EOF || IsExpectedWSCloseError(err):
			return nil
		case isDecodeError(err):
			// The peer sent something we can't read; tell it so and
			// carry on with the session as it was.
			state := p.Preview(ctx, session, api.PreviewOp{Op: api.OpRefresh})
			state.Error = "invalid op: " + err.Error()
			if err := ws.WriteJSON(state); err != nil {
				return err
			}
			continue
		default:
			return err
		}

		ops++
		if err := ws.WriteJSON(p.Preview(ctx, session, op)); err != nil {
			return err
		}
	}
}

func isDecodeError(err error) bool {
	_, ok := err.(*DecodeError)
	return ok
}
