package routes

import (
	"fmt"

	"enceladus/pkg/api/router"
	"enceladus/pkg/models"

	"github.com/valyala/fasthttp"
)

func (h *Handlers) ListSections(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "section.list")
	defer tr.Finish()

	sections, err := h.c.Sections()
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, sections)
}

func (h *Handlers) GetSection(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "section.get")
	defer tr.Finish()

	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	sec, err := h.c.Section(id)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, sec)
}

func (h *Handlers) CreateSection(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "section.create")
	defer tr.Finish()

	user, ok := h.currentUser(ctx)
	if !ok {
		return
	}
	var in models.SectionInsert
	if !router.DecodeBody(ctx, &in) {
		return
	}
	sec, err := h.c.CreateSection(ctx, user, in)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteCreated(ctx, fmt.Sprintf("/v1/section/%d", sec.ID), sec)
}

// PatchSection handles both the lock-set and field update bodies.
func (h *Handlers) PatchSection(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "section.patch")
	defer tr.Finish()

	// resolve
	user, ok := h.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}

	// parse
	patch, err := decodeSectionPatch(ctx.PostBody())
	if err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	var sec models.Section
	if patch.Lock != nil {
		tr.Mark("lock")
		sec, err = h.c.SetSectionLock(ctx, user, id, *patch.Lock)
	} else {
		tr.Mark("update")
		sec, err = h.c.UpdateSection(ctx, user, id, *patch.Update)
	}
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, sec)
}

func (h *Handlers) DeleteSection(ctx *fasthttp.RequestCtx) {
	tr := router.SetupHandler(ctx, "section.delete")
	defer tr.Finish()

	user, ok := h.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := router.PathID(ctx, "id")
	if !ok {
		return
	}
	if err := h.c.DeleteSection(ctx, user, id); err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteNoContent(ctx)
}
