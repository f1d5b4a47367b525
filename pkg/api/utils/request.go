// Package utils reads the request fields the gateway and handlers share.
package utils

import (
	"net"
	"strings"

	"github.com/valyala/fasthttp"
)

func GetPath(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Path())
}

// GetHeader returns the trimmed header value, "" when absent.
func GetHeader(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.Request.Header.Peek(key)))
}

// ClientIP is the peer address without its port. Forwarding headers are
// not trusted.
func ClientIP(ctx *fasthttp.RequestCtx) string {
	addr := ctx.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// ExtractBearerToken returns the token of "Authorization: Bearer <token>",
// or "" when the header is absent or uses another scheme.
func ExtractBearerToken(ctx *fasthttp.RequestCtx) string {
	return BearerToken(GetHeader(ctx, "Authorization"))
}

func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return ""
	}
	return token
}
