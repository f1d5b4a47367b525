package auth

import "github.com/valyala/fasthttp"

const (
	userIDKey    = "auth.user_id"
	requestIDKey = "auth.request_id"
)

// UserID returns the authenticated user id stored by the gateway.
func UserID(ctx *fasthttp.RequestCtx) (int64, bool) {
	id, ok := ctx.UserValue(userIDKey).(int64)
	return id, ok
}

func setUserID(ctx *fasthttp.RequestCtx, id int64) {
	ctx.SetUserValue(userIDKey, id)
}

// RequestID returns the id the gateway assigned to this request.
func RequestID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue(requestIDKey).(string)
	return id
}
