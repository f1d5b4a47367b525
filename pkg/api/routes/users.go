package routes

import (
	"fmt"

	"enceladus/pkg/api/router"
	"enceladus/pkg/models"

	"github.com/valyala/fasthttp"
)

func (h *Handlers) ListUsers(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "user.list")
	defer tr.Finish()

	users, err := h.c.Users()
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, users)
}

func (h *Handlers) GetUser(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "user.get")
	defer tr.Finish()

	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	u, err := h.c.User(id)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, u)
}

// The user write routes below are only registered with debug routes on.

func (h *Handlers) CreateUser(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "user.create")
	defer tr.Finish()

	var in models.UserInsert
	if !router.DecodeBody(ctx, &in) {
		return
	}
	u, err := h.c.CreateUser(ctx, in)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteCreated(ctx, fmt.Sprintf("/v1/user/%d", u.ID), u)
}

func (h *Handlers) UpdateUser(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "user.update")
	defer tr.Finish()

	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	var up models.UserUpdate
	if err := router.DecodeStrict(ctx.PostBody(), &up); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid user update: "+err.Error())
		return
	}
	u, err := h.c.UpdateUser(ctx, id, up)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, u)
}

func (h *Handlers) DeleteUser(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "user.delete")
	defer tr.Finish()

	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	if err := h.c.DeleteUser(ctx, id); err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteNoContent(ctx)
}
