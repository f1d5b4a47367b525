package routes

import (
	"fmt"

	"enceladus/pkg/api/router"
	"enceladus/pkg/models"

	"github.com/valyala/fasthttp"
)

func (h *Handlers) ListThreads(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "thread.list")
	defer tr.Finish()

	threads, err := h.c.Threads()
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	tr.Mark("list")
	_ = router.WriteJSON(ctx, threads)
}

func (h *Handlers) GetThread(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "thread.get")
	defer tr.Finish()

	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	th, err := h.c.Thread(id)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, th)
}

func (h *Handlers) GetThreadFull(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "thread.full")
	defer tr.Finish()

	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	full, err := h.c.ThreadFull(id)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	tr.Mark("assemble")
	_ = router.WriteJSON(ctx, full)
}

func (h *Handlers) CreateThread(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "thread.create")
	defer tr.Finish()

	// resolve
	user, ok := h.currentUser(ctx)
	if !ok {
		return
	}

	// parse
	var in models.ThreadInsert
	if !router.DecodeBody(ctx, &in) {
		return
	}

	th, err := h.c.CreateThread(ctx, user, in)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	tr.Mark("create")
	_ = router.WriteCreated(ctx, fmt.Sprintf("/v1/thread/%d", th.ID), th)
}

func (h *Handlers) UpdateThread(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "thread.update")
	defer tr.Finish()

	user, ok := h.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	var up models.ThreadUpdate
	if err := router.DecodeStrict(ctx.PostBody(), &up); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid thread update: "+err.Error())
		return
	}

	th, err := h.c.UpdateThread(ctx, user, id, up)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, th)
}

func (h *Handlers) DeleteThread(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "thread.delete")
	defer tr.Finish()

	user, ok := h.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	if err := h.c.DeleteThread(ctx, user, id); err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteNoContent(ctx)
}

func (h *Handlers) ApproveThread(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "thread.approve")
	defer tr.Finish()

	user, ok := h.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	if err := h.c.ApproveThread(ctx, user, id); err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteNoContent(ctx)
}

// StickyThread returns the handler for /sticky (true) or /unsticky (false).
func (h *Handlers) StickyThread(sticky bool) fasthttp.RequestHandler {
	op := "thread.unsticky"
	if sticky {
		op = "thread.sticky"
	}
	return func(ctx *fasthttp.RequestCtx) {
		tr := router.SetupHandler(ctx, op)
		defer tr.Finish()

		user, ok := h.currentUser(ctx)
		if !ok {
			return
		}
		id, ok := router.PathID(ctx, "id")
		if !ok {
			return
		}
		if err := h.c.SetThreadSticky(ctx, user, id, sticky); err != nil {
			router.WriteError(ctx, err)
			return
		}
		router.WriteNoContent(ctx)
	}
}
