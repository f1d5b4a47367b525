package api

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"enceladus/pkg/api/auth"
	"enceladus/pkg/api/routes"
	"enceladus/pkg/controller"
	"enceladus/pkg/features"
	httprouter "enceladus/pkg/router"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	gcPauseTotal = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "go_gc_pause_total_ns",
			Help: "Total GC pause time in nanoseconds.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.PauseTotalNs)
		},
	)

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "go_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)
)

func init() {
	prometheus.MustRegister(gcPauseTotal)
	prometheus.MustRegister(heapAlloc)
}

// wrapHTTPHandler wraps an http.Handler to work with fasthttp.
func wrapHTTPHandler(h http.Handler) func(ctx *fasthttp.RequestCtx) {
	return fasthttpadaptor.NewFastHTTPHandler(h)
}

// Options configures the REST surface.
type Options struct {
	Controller *controller.Controller
	// Gateway may be nil in tests that do not exercise auth.
	Gateway     *auth.Gateway
	DebugRoutes bool
	Version     string
	Ready       func() bool
}

// RegisterRoutes wires all API routes onto the provided router.
func RegisterRoutes(r *httprouter.Router, o Options) {
	h := routes.New(o.Controller)

	// unversioned
	r.GET("/meta", routes.MetaHandler(routes.NewMeta(o.Version)))
	r.GET("/healthz", routes.Healthz)
	r.GET("/readyz", routes.Readyz(o.Ready))

	// threads
	r.GET("/v1/thread", h.ListThreads)
	r.POST("/v1/thread", h.CreateThread)
	r.GET("/v1/thread/{id}", h.GetThread)
	r.GET("/v1/thread/{id}/full", h.GetThreadFull)
	r.PATCH("/v1/thread/{id}", h.UpdateThread)
	r.PATCH("/v1/thread/{id}/approve", h.ApproveThread)
	r.PATCH("/v1/thread/{id}/sticky", h.StickyThread(true))
	r.PATCH("/v1/thread/{id}/unsticky", h.StickyThread(false))
	r.DELETE("/v1/thread/{id}", h.DeleteThread)

	// sections
	r.GET("/v1/section", h.ListSections)
	r.POST("/v1/section", h.CreateSection)
	r.GET("/v1/section/{id}", h.GetSection)
	r.PATCH("/v1/section/{id}", h.PatchSection)
	r.DELETE("/v1/section/{id}", h.DeleteSection)

	// events
	r.GET("/v1/event", h.ListEvents)
	r.POST("/v1/event", h.CreateEvent)
	r.GET("/v1/event/{id}", h.GetEvent)
	r.PATCH("/v1/event/{id}", h.PatchEvent)
	r.DELETE("/v1/event/{id}", h.DeleteEvent)

	// users
	r.GET("/v1/user", h.ListUsers)
	r.GET("/v1/user/{id}", h.GetUser)
	if o.DebugRoutes {
		r.POST("/v1/user", h.CreateUser)
		r.PATCH("/v1/user/{id}", h.UpdateUser)
		r.DELETE("/v1/user/{id}", h.DeleteUser)
	}

	// admin debug routes, global admins only
	admin := func(hh http.Handler) fasthttp.RequestHandler {
		return h.GlobalAdmin(wrapHTTPHandler(hh))
	}
	r.GET("/admin/debug/prometheus", admin(promhttp.Handler()))
	r.GET("/admin/debug/pprof/", admin(http.HandlerFunc(pprof.Index)))
	r.GET("/admin/debug/pprof/cmdline", admin(http.HandlerFunc(pprof.Cmdline)))
	r.GET("/admin/debug/pprof/profile", admin(http.HandlerFunc(pprof.Profile)))
	r.GET("/admin/debug/pprof/symbol", admin(http.HandlerFunc(pprof.Symbol)))
	r.GET("/admin/debug/pprof/trace", admin(http.HandlerFunc(pprof.Trace)))
}

// Handler returns the fasthttp handler for the REST API: gateway, then
// the response field filter, then the router.
func Handler(o Options) fasthttp.RequestHandler {
	r := httprouter.New()
	RegisterRoutes(r, o)
	h := features.Middleware(r.Handler)
	if o.Gateway != nil {
		h = o.Gateway.Middleware(h)
	}
	return h
}
