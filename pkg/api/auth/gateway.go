package auth

import (
	"strings"

	"enceladus/pkg/api/router"
	"enceladus/pkg/api/utils"
	"enceladus/pkg/state/logger"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Anonymous requests under this prefix are refused outright.
const adminPathPrefix = "/admin/"

// SecConfig is the gateway's view of the security settings.
type SecConfig struct {
	AllowedOrigins []string
	IPWhitelist    []string
	RPS            float64
	Burst          int
	JWTSecret      []byte
}

// Gateway authenticates requests before they reach the router.
type Gateway struct {
	cfg      SecConfig
	limiters *limiterPool
}

func NewGateway(cfg SecConfig) *Gateway {
	return &Gateway{cfg: cfg, limiters: newLimiterPool(cfg.RPS, cfg.Burst)}
}

// Close stops the limiter cleanup loop.
func (g *Gateway) Close() {
	g.limiters.Shutdown()
}

// Middleware applies, in order: request id, CORS, the IP allow-list, public
// paths, bearer token verification and per-caller rate limiting. A missing
// token is allowed through; handlers that mutate demand a user themselves.
func (g *Gateway) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	cfg := g.cfg
	return func(ctx *fasthttp.RequestCtx) {
		reqID := utils.GetHeader(ctx, "X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx.SetUserValue(requestIDKey, reqID)
		ctx.Response.Header.Set("X-Request-Id", reqID)

		logger.LogRequestFast(ctx)

		// cors headers and handle options shortcut
		origin := utils.GetHeader(ctx, "Origin")
		if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
			ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
			ctx.Response.Header.Set("Vary", "Origin")
			ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,PATCH,OPTIONS")
			ctx.Response.Header.Set("Access-Control-Max-Age", "600")
			ctx.Response.Header.Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-Request-Id")
			ctx.Response.Header.Set("Access-Control-Expose-Headers", "Location,X-Request-Id")
		}
		if string(ctx.Method()) == fasthttp.MethodOptions {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}

		// ip whitelist check (always before all other checks except cors/options)
		if len(cfg.IPWhitelist) > 0 {
			ip := utils.ClientIP(ctx)
			if !ipWhitelisted(ip, cfg.IPWhitelist) {
				router.WriteJSONError(ctx, fasthttp.StatusForbidden, "forbidden")
				logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", utils.GetPath(ctx))
				return
			}
		}

		if publicAllowedPath(ctx) {
			next(ctx)
			return
		}

		key := utils.ClientIP(ctx)
		if raw := utils.ExtractBearerToken(ctx); raw != "" {
			claims, err := ParseToken(cfg.JWTSecret, raw)
			if err != nil {
				router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "invalid bearer token")
				logger.Warn("request_unauthorized", "path", utils.GetPath(ctx), "remote", ctx.RemoteAddr().String(), "request_id", reqID)
				return
			}
			setUserID(ctx, claims.UserID)
			key = "user:" + raw
		} else if strings.HasPrefix(utils.GetPath(ctx), adminPathPrefix) {
			router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "authentication required")
			logger.Warn("request_unauthorized", "path", utils.GetPath(ctx), "remote", ctx.RemoteAddr().String(), "request_id", reqID)
			return
		}

		if !g.limiters.Allow(key) {
			router.WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
			logger.Warn("rate_limited", "path", utils.GetPath(ctx), "request_id", reqID)
			return
		}

		next(ctx)
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func ipWhitelisted(ip string, list []string) bool {
	for _, w := range list {
		if ip == w {
			return true
		}
	}
	return false
}

func publicAllowedPath(ctx *fasthttp.RequestCtx) bool {
	path := utils.GetPath(ctx)
	if string(ctx.Method()) != fasthttp.MethodGet {
		return false
	}
	switch path {
	case "/healthz", "/readyz", "/meta":
		return true
	}
	return false
}
