package router

import (
	"enceladus/pkg/controller"
	"enceladus/pkg/state/logger"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
)

// StatusFor maps a controller error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return fasthttp.StatusOK
	case errors.Is(err, controller.ErrNotFound):
		return fasthttp.StatusNotFound
	case errors.Is(err, controller.ErrUnauthorized):
		return fasthttp.StatusUnauthorized
	case errors.Is(err, controller.ErrForbidden):
		return fasthttp.StatusForbidden
	case errors.Is(err, controller.ErrPreconditionFailed):
		return fasthttp.StatusPreconditionFailed
	case errors.Is(err, controller.ErrUnprocessable):
		return fasthttp.StatusUnprocessableEntity
	default:
		return fasthttp.StatusInternalServerError
	}
}

// WriteError answers with the status for err. Internal errors are logged
// and hidden from the client.
func WriteError(ctx *fasthttp.RequestCtx, err error) {
	status := StatusFor(err)
	if status == fasthttp.StatusInternalServerError {
		logger.Error("request_failed", "path", string(ctx.Path()), "method", string(ctx.Method()), "error", err)
		WriteJSONError(ctx, status, "internal error")
		return
	}
	WriteJSONError(ctx, status, err.Error())
}
