package rooms

import (
	"encoding/json"

	"enceladus/pkg/models"

	"github.com/cockroachdb/errors"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Message is the change envelope sent to subscribers.
type Message struct {
	Room     Room        `json:"room"`
	Action   Action      `json:"action"`
	DataType models.Kind `json:"data_type"`
	Data     any         `json:"data"`
}

// Created carries the full snapshot of a new entity.
func Created(room Room, kind models.Kind, snapshot any) Message {
	return Message{Room: room, Action: ActionCreate, DataType: kind, Data: snapshot}
}

// Updated carries {"id": id} merged with the fields of changed, which must
// encode to a JSON object.
func Updated(room Room, kind models.Kind, id int64, changed any) (Message, error) {
	data := map[string]json.RawMessage{}
	if changed != nil {
		raw, err := json.Marshal(changed)
		if err != nil {
			return Message{}, errors.Wrap(err, "encode update payload")
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return Message{}, errors.Wrap(err, "update payload must be an object")
		}
		if data == nil {
			data = map[string]json.RawMessage{}
		}
	}
	idRaw, _ := json.Marshal(id)
	data["id"] = idRaw
	return Message{Room: room, Action: ActionUpdate, DataType: kind, Data: data}, nil
}

// Deleted carries only the id of the removed entity.
func Deleted(room Room, kind models.Kind, id int64) Message {
	return Message{Room: room, Action: ActionDelete, DataType: kind, Data: map[string]int64{"id": id}}
}
