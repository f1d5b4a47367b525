package controller

import (
	"context"

	"enceladus/pkg/models"
	"enceladus/pkg/rooms"
	"enceladus/pkg/state/logger"

	"github.com/cockroachdb/errors"
)

func (c *Controller) Sections() ([]models.Section, error) {
	return c.store.Sections.List()
}

func (c *Controller) Section(id int64) (models.Section, error) {
	sec, err := c.caches.Sections.Get(id, c.store.Sections.Get)
	return sec, notFound(err)
}

// CreateSection stores the section and appends it to its thread.
func (c *Controller) CreateSection(ctx context.Context, user models.User, in models.SectionInsert) (models.Section, error) {
	if _, err := c.authorizeThread(user, in.InThreadID); err != nil {
		return models.Section{}, err
	}
	sec, err := c.store.Sections.Insert(func(id int64) (models.Section, error) {
		return models.Section{
			ID:              id,
			Name:            in.Name,
			Content:         in.Content,
			IsEventsSection: in.IsEventsSection,
			InThreadID:      in.InThreadID,
		}, nil
	})
	if err != nil {
		return models.Section{}, err
	}
	c.caches.Sections.Put(sec.ID, sec)
	c.publish(rooms.Created(rooms.ThreadRoom(sec.InThreadID), models.KindSection, sec))

	err = c.editThreadIDs(sec.InThreadID, func(th *models.Thread) models.ThreadUpdate {
		th.SectionsID = append(th.SectionsID, sec.ID)
		return models.ThreadUpdate{SectionsID: &th.SectionsID}
	})
	if err != nil {
		return sec, errors.Wrapf(err, "attach section %d", sec.ID)
	}
	c.syncMirror(ctx, sec.InThreadID)
	return sec, nil
}

// loadSectionForWrite resolves the section and checks thread permissions.
func (c *Controller) loadSectionForWrite(user models.User, id int64) (models.Section, error) {
	sec, err := c.Section(id)
	if err != nil {
		return models.Section{}, err
	}
	if _, err := c.authorizeThread(user, sec.InThreadID); err != nil {
		return models.Section{}, err
	}
	return sec, nil
}

func (c *Controller) UpdateSection(ctx context.Context, user models.User, id int64, up models.SectionUpdate) (models.Section, error) {
	if _, err := c.loadSectionForWrite(user, id); err != nil {
		return models.Section{}, err
	}
	sec, err := c.store.Sections.Update(id, func(cur models.Section) (models.Section, error) {
		up.Apply(&cur)
		return cur, nil
	})
	if err != nil {
		return models.Section{}, notFound(err)
	}
	c.caches.Sections.Put(id, sec)
	c.publishUpdate(rooms.Updated(rooms.ThreadRoom(sec.InThreadID), models.KindSection, id, up))
	c.syncMirror(ctx, sec.InThreadID)
	return sec, nil
}

// SetSectionLock asks for req.HolderID to become the lock holder on behalf
// of user. The decision is taken against the stored row while its write
// lock is held, so concurrent first acquisitions cannot both win.
func (c *Controller) SetSectionLock(_ context.Context, user models.User, id int64, req models.LockRequest) (models.Section, error) {
	if _, err := c.loadSectionForWrite(user, id); err != nil {
		return models.Section{}, err
	}
	sec, err := c.store.Sections.Update(id, func(cur models.Section) (models.Section, error) {
		next, tr, err := c.locks.Decide(cur.Lock(), user.ID, req.HolderID, c.now())
		if err != nil {
			logger.Debug("section_lock_rejected", "section_id", id, "user_id", user.ID)
			return cur, errors.Wrapf(err, "section %d", id)
		}
		logger.Debug("section_lock_"+string(tr), "section_id", id, "user_id", user.ID)
		cur.SetLock(next)
		return cur, nil
	})
	if err != nil {
		return models.Section{}, notFound(err)
	}
	c.caches.Sections.Put(id, sec)
	c.publishUpdate(rooms.Updated(rooms.ThreadRoom(sec.InThreadID), models.KindSection, id, sec.Lock()))
	return sec, nil
}

// DeleteSection removes the section and detaches it from its thread.
func (c *Controller) DeleteSection(ctx context.Context, user models.User, id int64) error {
	sec, err := c.loadSectionForWrite(user, id)
	if err != nil {
		return err
	}
	if err := c.store.Sections.Delete(id); err != nil {
		return notFound(err)
	}
	c.caches.Sections.Remove(id)
	c.publish(rooms.Deleted(rooms.ThreadRoom(sec.InThreadID), models.KindSection, id))

	err = c.editThreadIDs(sec.InThreadID, func(th *models.Thread) models.ThreadUpdate {
		th.SectionsID = withoutID(th.SectionsID, id)
		return models.ThreadUpdate{SectionsID: &th.SectionsID}
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrapf(err, "detach section %d", id)
	}
	c.syncMirror(ctx, sec.InThreadID)
	return nil
}
