package features

import (
	"bytes"

	"github.com/valyala/fasthttp"
)

var jsonContentType = []byte("application/json")

// Middleware filters JSON responses of next using the features query
// parameter of the request.
func Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		next(ctx)
		if !bytes.HasPrefix(ctx.Response.Header.ContentType(), jsonContentType) {
			return
		}
		body := ctx.Response.Body()
		if len(body) == 0 {
			return
		}
		enabled := Parse(string(ctx.QueryArgs().Peek(QueryParam)))
		ctx.Response.SetBody(FilterJSON(body, enabled))
	}
}
