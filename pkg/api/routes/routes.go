// Package routes holds the REST handlers. Each handler resolves its input,
// calls the controller and maps the outcome to a status.
package routes

import (
	"enceladus/pkg/api/auth"
	"enceladus/pkg/api/router"
	"enceladus/pkg/controller"
	"enceladus/pkg/models"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
)

// Handlers binds the REST handlers to one controller.
type Handlers struct {
	c *controller.Controller
}

func New(c *controller.Controller) *Handlers {
	return &Handlers{c: c}
}

// currentUser resolves the bearer token's user. It writes 401 and returns
// false when the request is anonymous or names an unknown user.
func (h *Handlers) currentUser(ctx *fasthttp.RequestCtx) (models.User, bool) {
	id, ok := auth.UserID(ctx)
	if !ok {
		router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "authentication required")
		return models.User{}, false
	}
	u, err := h.c.User(id)
	if err != nil {
		if errors.Is(err, controller.ErrNotFound) {
			router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "unknown user")
			return models.User{}, false
		}
		router.WriteError(ctx, err)
		return models.User{}, false
	}
	return u, true
}

// GlobalAdmin lets only global admins through to next: 401 for anonymous
// callers, 403 for everyone else.
func (h *Handlers) GlobalAdmin(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		u, ok := h.currentUser(ctx)
		if !ok {
			return
		}
		if !u.IsGlobalAdmin {
			router.WriteJSONError(ctx, fasthttp.StatusForbidden, "global admin required")
			return
		}
		next(ctx)
	}
}
