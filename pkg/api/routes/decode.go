package routes

import (
	"encoding/json"

	"enceladus/pkg/api/router"
	"enceladus/pkg/models"

	"github.com/cockroachdb/errors"
)

const lockField = "lock_held_by_user_id"

// sectionPatch is the decoded PATCH /v1/section/{id} body. Exactly one of
// Lock and Update is set.
type sectionPatch struct {
	Lock   *models.LockRequest
	Update *models.SectionUpdate
}

// decodeSectionPatch tries the lock-set shape first: an object whose only
// key is lock_held_by_user_id. Anything else must be a field update.
func decodeSectionPatch(body []byte) (sectionPatch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return sectionPatch{}, errors.Wrap(err, "section patch must be a json object")
	}
	if _, ok := fields[lockField]; ok && len(fields) == 1 {
		var req models.LockRequest
		if err := router.DecodeStrict(body, &req); err != nil {
			return sectionPatch{}, errors.Wrap(err, "invalid lock request")
		}
		return sectionPatch{Lock: &req}, nil
	}
	var up models.SectionUpdate
	if err := router.DecodeStrict(body, &up); err != nil {
		return sectionPatch{}, errors.Wrap(err, "invalid section update")
	}
	return sectionPatch{Update: &up}, nil
}

// eventPatch is the decoded PATCH /v1/event/{id} body. Exactly one of
// Update and Columns is set.
type eventPatch struct {
	Update  *models.EventUpdate
	Columns []models.ColumnPatch
}

// decodeEventPatch tries the full update object first, then the partial
// [[index, value], ...] form.
func decodeEventPatch(body []byte) (eventPatch, error) {
	var up models.EventUpdate
	errFull := router.DecodeStrict(body, &up)
	if errFull == nil {
		return eventPatch{Update: &up}, nil
	}
	var cols []models.ColumnPatch
	errPartial := router.DecodeStrict(body, &cols)
	if errPartial == nil {
		if cols == nil {
			cols = []models.ColumnPatch{}
		}
		return eventPatch{Columns: cols}, nil
	}
	return eventPatch{}, errors.Newf("event patch is neither an update object (%v) nor a column list (%v)", errFull, errPartial)
}
