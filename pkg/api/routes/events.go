package routes

import (
	"fmt"

	"enceladus/pkg/api/router"
	"enceladus/pkg/models"

	"github.com/valyala/fasthttp"
)

func (h *Handlers) ListEvents(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "event.list")
	defer tr.Finish()

	events, err := h.c.Events()
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, events)
}

func (h *Handlers) GetEvent(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "event.get")
	defer tr.Finish()

	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	ev, err := h.c.Event(id)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, ev)
}

func (h *Handlers) CreateEvent(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "event.create")
	defer tr.Finish()

	user, ok := h.currentUser(ctx)
	if !ok {
		return
	}
	var in models.EventInsert
	if !router.DecodeBody(ctx, &in) {
		return
	}
	ev, err := h.c.CreateEvent(ctx, user, in)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteCreated(ctx, fmt.Sprintf("/v1/event/%d", ev.ID), ev)
}

// PatchEvent accepts a full update object or a list of column patches.
func (h *Handlers) PatchEvent(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "event.patch")
	defer tr.Finish()

	user, ok := h.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	patch, err := decodeEventPatch(ctx.PostBody())
	if err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	var ev models.Event
	if patch.Update != nil {
		ev, err = h.c.UpdateEvent(ctx, user, id, *patch.Update)
	} else {
		ev, err = h.c.PatchEventColumns(ctx, user, id, patch.Columns)
	}
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, ev)
}

func (h *Handlers) DeleteEvent(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "event.delete")
	defer tr.Finish()

	user, ok := h.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	if err := h.c.DeleteEvent(ctx, user, id); err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteNoContent(ctx)
}
