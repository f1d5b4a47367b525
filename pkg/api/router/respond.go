package router

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// WriteJSON writes a JSON response.
func WriteJSON(ctx *fasthttp.RequestCtx, data interface{}) error {
	ctx.Response.Header.Set("Content-Type", "application/json")
	return json.NewEncoder(ctx).Encode(data)
}

// WriteCreated answers 201 with a Location header pointing at the new
// resource.
func WriteCreated(ctx *fasthttp.RequestCtx, location string, data interface{}) error {
	ctx.SetStatusCode(fasthttp.StatusCreated)
	ctx.Response.Header.Set("Location", location)
	return WriteJSON(ctx, data)
}

// WriteNoContent answers 204 with an empty body.
func WriteNoContent(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Del("Content-Type")
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// WriteJSONError writes a JSON error response.
func WriteJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetStatusCode(status)
	ctx.Response.Header.Set("Content-Type", "application/json")
	_ = json.NewEncoder(ctx).Encode(map[string]string{"error": message})
}
