package routes

import (
	"strconv"
	"strings"

	"enceladus/pkg/api/router"

	"github.com/valyala/fasthttp"
)

// Repository is overridable at link time.
var Repository = "https://github.com/r-spacex/enceladus"

// Meta is the body of GET /meta.
type Meta struct {
	Version      string `json:"version"`
	VersionMajor int    `json:"version_major"`
	Repository   string `json:"repository"`
}

func NewMeta(version string) Meta {
	head, _, _ := strings.Cut(strings.TrimPrefix(version, "v"), ".")
	major, _ := strconv.Atoi(head)
	return Meta{Version: version, VersionMajor: major, Repository: Repository}
}

func MetaHandler(m Meta) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		_ = router.WriteJSON(ctx, m)
	}
}

func Healthz(ctx *fasthttp.RequestCtx) {
	_ = router.WriteJSON(ctx, map[string]string{"status": "ok"})
}

// Readyz answers 503 until ready reports true.
func Readyz(ready func() bool) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if ready != nil && !ready() {
			router.WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, "not ready")
			return
		}
		_ = router.WriteJSON(ctx, map[string]string{"status": "ready"})
	}
}
