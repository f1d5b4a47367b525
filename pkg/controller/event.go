package controller

import (
	"bytes"
	"context"
	"encoding/json"

	"enceladus/pkg/models"
	"enceladus/pkg/rooms"

	"github.com/cockroachdb/errors"
)

func (c *Controller) Events() ([]models.Event, error) {
	return c.store.Events.List()
}

func (c *Controller) Event(id int64) (models.Event, error) {
	ev, err := c.caches.Events.Get(id, c.store.Events.Get)
	return ev, notFound(err)
}

// ValidateColumns checks cols against the thread's column layout: one value
// per header, a number in the UTC column and strings everywhere else.
func ValidateColumns(th models.Thread, cols []json.RawMessage) error {
	if cols == nil {
		return errors.Wrap(ErrUnprocessable, "cols must be an array")
	}
	if len(cols) != len(th.EventColumnHeaders) {
		return errors.Wrapf(ErrUnprocessable, "expected %d columns, got %d", len(th.EventColumnHeaders), len(cols))
	}
	for i, col := range cols {
		want := jsonString
		if th.SpaceUTCColIndex != nil && *th.SpaceUTCColIndex == i {
			want = jsonNumber
		}
		if kindOf(col) != want {
			return errors.Wrapf(ErrUnprocessable, "column %d must be a %s", i, want)
		}
	}
	return nil
}

type jsonKind string

const (
	jsonString jsonKind = "string"
	jsonNumber jsonKind = "number"
	jsonOther  jsonKind = "other"
)

func kindOf(raw json.RawMessage) jsonKind {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return jsonOther
	}
	switch {
	case b[0] == '"':
		return jsonString
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		return jsonNumber
	}
	return jsonOther
}

// CreateEvent validates and stores the event, then appends it to its thread.
func (c *Controller) CreateEvent(ctx context.Context, user models.User, in models.EventInsert) (models.Event, error) {
	th, err := c.authorizeThread(user, in.InThreadID)
	if err != nil {
		return models.Event{}, err
	}
	if err := ValidateColumns(th, in.Cols); err != nil {
		return models.Event{}, err
	}
	ev, err := c.store.Events.Insert(func(id int64) (models.Event, error) {
		return models.Event{
			ID:         id,
			Posted:     in.Posted,
			InThreadID: in.InThreadID,
			Cols:       append([]json.RawMessage{}, in.Cols...),
		}, nil
	})
	if err != nil {
		return models.Event{}, err
	}
	c.caches.Events.Put(ev.ID, ev)
	c.publish(rooms.Created(rooms.ThreadRoom(ev.InThreadID), models.KindEvent, ev))

	err = c.editThreadIDs(ev.InThreadID, func(th *models.Thread) models.ThreadUpdate {
		th.EventsID = append(th.EventsID, ev.ID)
		return models.ThreadUpdate{EventsID: &th.EventsID}
	})
	if err != nil {
		return ev, errors.Wrapf(err, "attach event %d", ev.ID)
	}
	c.syncMirror(ctx, ev.InThreadID)
	return ev, nil
}

func (c *Controller) loadEventForWrite(user models.User, id int64) (models.Event, models.Thread, error) {
	ev, err := c.Event(id)
	if err != nil {
		return models.Event{}, models.Thread{}, err
	}
	th, err := c.authorizeThread(user, ev.InThreadID)
	if err != nil {
		return models.Event{}, models.Thread{}, err
	}
	return ev, th, nil
}

// UpdateEvent replaces the fields set in up.
func (c *Controller) UpdateEvent(ctx context.Context, user models.User, id int64, up models.EventUpdate) (models.Event, error) {
	_, th, err := c.loadEventForWrite(user, id)
	if err != nil {
		return models.Event{}, err
	}
	if up.Cols != nil {
		if err := ValidateColumns(th, up.Cols); err != nil {
			return models.Event{}, err
		}
	}
	return c.commitEvent(ctx, id, func(cur models.Event) (models.Event, models.EventUpdate, error) {
		next := cur.Clone()
		up.Apply(&next)
		return next, up, nil
	})
}

// PatchEventColumns replaces single columns of the stored event and then
// continues as a full cols update.
func (c *Controller) PatchEventColumns(ctx context.Context, user models.User, id int64, patches []models.ColumnPatch) (models.Event, error) {
	_, th, err := c.loadEventForWrite(user, id)
	if err != nil {
		return models.Event{}, err
	}
	return c.commitEvent(ctx, id, func(cur models.Event) (models.Event, models.EventUpdate, error) {
		next := cur.Clone()
		for _, p := range patches {
			if p.Index < 0 || p.Index >= len(next.Cols) {
				return cur, models.EventUpdate{}, errors.Wrapf(ErrUnprocessable, "column %d out of range", p.Index)
			}
			next.Cols[p.Index] = p.Value
		}
		if err := ValidateColumns(th, next.Cols); err != nil {
			return cur, models.EventUpdate{}, err
		}
		return next, models.EventUpdate{Cols: next.Cols}, nil
	})
}

func (c *Controller) commitEvent(ctx context.Context, id int64, apply func(cur models.Event) (models.Event, models.EventUpdate, error)) (models.Event, error) {
	var changed models.EventUpdate
	ev, err := c.store.Events.Update(id, func(cur models.Event) (models.Event, error) {
		next, up, err := apply(cur)
		changed = up
		return next, err
	})
	if err != nil {
		return models.Event{}, notFound(err)
	}
	c.caches.Events.Put(id, ev)
	c.publishUpdate(rooms.Updated(rooms.ThreadRoom(ev.InThreadID), models.KindEvent, id, changed))
	c.syncMirror(ctx, ev.InThreadID)
	return ev, nil
}

// DeleteEvent removes the event and detaches it from its thread.
func (c *Controller) DeleteEvent(ctx context.Context, user models.User, id int64) error {
	ev, _, err := c.loadEventForWrite(user, id)
	if err != nil {
		return err
	}
	if err := c.store.Events.Delete(id); err != nil {
		return notFound(err)
	}
	c.caches.Events.Remove(id)
	c.publish(rooms.Deleted(rooms.ThreadRoom(ev.InThreadID), models.KindEvent, id))

	err = c.editThreadIDs(ev.InThreadID, func(th *models.Thread) models.ThreadUpdate {
		th.EventsID = withoutID(th.EventsID, id)
		return models.ThreadUpdate{EventsID: &th.EventsID}
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrapf(err, "detach event %d", id)
	}
	c.syncMirror(ctx, ev.InThreadID)
	return nil
}
