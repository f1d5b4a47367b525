package logger

import (
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fasthttp"
)

var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"proxy-authorization": true,
}

func maskedValue(v string) string {
	if v == "" {
		return ""
	}
	if utf8.RuneCountInString(v) <= 2 {
		return "<redacted>"
	}
	first, _ := utf8.DecodeRuneInString(v)
	last, _ := utf8.DecodeLastRuneInString(v)
	return string(first) + "*****" + string(last)
}

// RedactHeader masks the value of credential-bearing headers and returns
// everything else unchanged.
func RedactHeader(key, v string) string {
	if sensitiveHeaders[strings.ToLower(key)] {
		return maskedValue(v)
	}
	return v
}

// SafeHeadersFast builds a redacted header string for fasthttp requests.
func SafeHeadersFast(ctx *fasthttp.RequestCtx) string {
	parts := make([]string, 0)
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		parts = append(parts, key+"="+RedactHeader(key, string(v)))
	})
	return strings.Join(parts, "; ")
}

// SafeHeaders is the net/http counterpart used by the websocket listener.
func SafeHeaders(r *http.Request) string {
	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := r.Header.Values(k); len(v) > 0 {
			parts = append(parts, k+"="+RedactHeader(k, v[0]))
		}
	}
	return strings.Join(parts, "; ")
}

func LogRequestFast(ctx *fasthttp.RequestCtx) {
	if Log == nil {
		return
	}
	Debug("incoming_request",
		"method", string(ctx.Method()),
		"path", string(ctx.Path()),
		"remote", ctx.RemoteAddr().String(),
		"headers", SafeHeadersFast(ctx),
	)
}

func LogRequest(r *http.Request) {
	if Log == nil {
		return
	}
	Debug("incoming_request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "headers", SafeHeaders(r))
}
