package controller

import (
	"context"
	"strings"

	"enceladus/pkg/models"
	"enceladus/pkg/rooms"
	"enceladus/pkg/state/logger"

	"github.com/cockroachdb/errors"
)

// Threads lists every thread straight from the store, bypassing the cache.
func (c *Controller) Threads() ([]models.Thread, error) {
	return c.store.Threads.List()
}

// Thread reads one thread through the cache.
func (c *Controller) Thread(id int64) (models.Thread, error) {
	th, err := c.caches.Threads.Get(id, c.store.Threads.Get)
	return th, notFound(err)
}

// SectionWithLock is a section joined with the user holding its lock.
type SectionWithLock struct {
	models.Section
	LockHeldByUser *models.User `json:"lock_held_by_user"`
}

// ThreadFull is a thread joined with its author, sections and events.
type ThreadFull struct {
	models.Thread
	CreatedByUser *models.User      `json:"created_by_user"`
	Sections      []SectionWithLock `json:"sections"`
	Events        []models.Event    `json:"events"`
}

// ThreadFull assembles the thread tree from the cache. Dangling section or
// event ids are skipped.
func (c *Controller) ThreadFull(id int64) (ThreadFull, error) {
	th, err := c.Thread(id)
	if err != nil {
		return ThreadFull{}, err
	}
	full := ThreadFull{
		Thread:   th,
		Sections: make([]SectionWithLock, 0, len(th.SectionsID)),
		Events:   make([]models.Event, 0, len(th.EventsID)),
	}
	if u, err := c.User(th.CreatedByUserID); err == nil {
		full.CreatedByUser = &u
	} else if !errors.Is(err, ErrNotFound) {
		return ThreadFull{}, err
	}
	for _, sid := range th.SectionsID {
		sec, err := c.Section(sid)
		if errors.Is(err, ErrNotFound) {
			logger.Warn("thread_dangling_section", "thread_id", id, "section_id", sid)
			continue
		} else if err != nil {
			return ThreadFull{}, err
		}
		entry := SectionWithLock{Section: sec}
		if sec.LockHeldByUserID != nil {
			if u, err := c.User(*sec.LockHeldByUserID); err == nil {
				entry.LockHeldByUser = &u
			}
		}
		full.Sections = append(full.Sections, entry)
	}
	for _, eid := range th.EventsID {
		ev, err := c.Event(eid)
		if errors.Is(err, ErrNotFound) {
			logger.Warn("thread_dangling_event", "thread_id", id, "event_id", eid)
			continue
		} else if err != nil {
			return ThreadFull{}, err
		}
		full.Events = append(full.Events, ev)
	}
	return full, nil
}

func (c *Controller) CreateThread(ctx context.Context, user models.User, in models.ThreadInsert) (models.Thread, error) {
	if strings.TrimSpace(in.ThreadName) == "" {
		return models.Thread{}, errors.Wrap(ErrUnprocessable, "thread_name is required")
	}
	if in.SpaceUTCColIndex != nil && (*in.SpaceUTCColIndex < 0 || *in.SpaceUTCColIndex >= len(in.EventColumnHeaders)) {
		return models.Thread{}, errors.Wrap(ErrUnprocessable, "space__utc_col_index is out of range")
	}

	var postID *string
	if in.Subreddit != nil && *in.Subreddit != "" {
		id, err := c.mirror.Submit(ctx, user, *in.Subreddit, in.ThreadName)
		if err != nil {
			return models.Thread{}, errors.Wrap(err, "submit thread")
		}
		if id != "" {
			postID = &id
		}
	}

	th, err := c.store.Threads.Insert(func(id int64) (models.Thread, error) {
		return models.Thread{
			ID:                 id,
			ThreadName:         in.ThreadName,
			DisplayName:        in.DisplayName,
			PostID:             postID,
			Subreddit:          in.Subreddit,
			SpaceT0:            in.SpaceT0,
			VideoURL:           in.VideoURL,
			SpaceXAPIID:        in.SpaceXAPIID,
			CreatedByUserID:    user.ID,
			SectionsID:         []int64{},
			EventsID:           []int64{},
			EventColumnHeaders: append([]string{}, in.EventColumnHeaders...),
			SpaceUTCColIndex:   in.SpaceUTCColIndex,
			IsLive:             in.IsLive != nil && *in.IsLive,
		}, nil
	})
	if err != nil {
		return models.Thread{}, err
	}
	c.caches.Threads.Put(th.ID, th)
	c.publish(rooms.Created(rooms.ThreadCreate, models.KindThread, th))
	logger.Info("thread_created", "id", th.ID, "user_id", user.ID)
	return th, nil
}

// UpdateThread applies a partial update. sections_id and events_id may
// only be reordered; adding or dropping ids fails with
// ErrPreconditionFailed.
func (c *Controller) UpdateThread(ctx context.Context, user models.User, id int64, up models.ThreadUpdate) (models.Thread, error) {
	if _, err := c.authorizeThread(user, id); err != nil {
		return models.Thread{}, err
	}
	th, err := c.store.Threads.Update(id, func(cur models.Thread) (models.Thread, error) {
		if up.SectionsID != nil && !samePermutation(cur.SectionsID, *up.SectionsID) {
			return cur, errors.Wrap(ErrPreconditionFailed, "sections_id may only be reordered")
		}
		if up.EventsID != nil && !samePermutation(cur.EventsID, *up.EventsID) {
			return cur, errors.Wrap(ErrPreconditionFailed, "events_id may only be reordered")
		}
		if up.EventColumnHeaders != nil && cur.SpaceUTCColIndex != nil && *cur.SpaceUTCColIndex >= len(*up.EventColumnHeaders) {
			return cur, errors.Wrap(ErrUnprocessable, "event_column_headers would drop the utc column")
		}
		next := cur.Clone()
		up.Apply(&next)
		return next, nil
	})
	if err != nil {
		return models.Thread{}, notFound(err)
	}
	c.caches.Threads.Put(id, th)
	c.publishUpdate(rooms.Updated(rooms.ThreadRoom(id), models.KindThread, id, up))
	c.syncMirror(ctx, id)
	return th, nil
}

func (c *Controller) DeleteThread(_ context.Context, user models.User, id int64) error {
	if _, err := c.authorizeThread(user, id); err != nil {
		return err
	}
	if err := c.store.Threads.Delete(id); err != nil {
		return notFound(err)
	}
	c.caches.Threads.Remove(id)
	c.publish(rooms.Deleted(rooms.ThreadRoom(id), models.KindThread, id))
	logger.Info("thread_deleted", "id", id, "user_id", user.ID)
	return nil
}

// moderatedThread loads a posted thread the user moderates.
func (c *Controller) moderatedThread(user models.User, id int64) (models.Thread, error) {
	th, err := c.Thread(id)
	if err != nil {
		return models.Thread{}, err
	}
	if !th.Posted() {
		return models.Thread{}, errors.Wrapf(ErrPreconditionFailed, "thread %d is not posted", id)
	}
	if !user.IsModeratorOf(th.Subreddit) {
		return models.Thread{}, errors.Wrapf(ErrUnauthorized, "user %d does not moderate this subreddit", user.ID)
	}
	return th, nil
}

func (c *Controller) ApproveThread(ctx context.Context, user models.User, id int64) error {
	th, err := c.moderatedThread(user, id)
	if err != nil {
		return err
	}
	return errors.Wrap(c.mirror.Approve(ctx, th), "approve thread")
}

func (c *Controller) SetThreadSticky(ctx context.Context, user models.User, id int64, sticky bool) error {
	th, err := c.moderatedThread(user, id)
	if err != nil {
		return err
	}
	return errors.Wrap(c.mirror.SetSticky(ctx, th, sticky), "set sticky")
}

// editThreadIDs rewrites the id lists of a thread after a child was added
// or removed, and broadcasts the change like any other thread update.
func (c *Controller) editThreadIDs(threadID int64, edit func(th *models.Thread) models.ThreadUpdate) error {
	var changed models.ThreadUpdate
	th, err := c.store.Threads.Update(threadID, func(cur models.Thread) (models.Thread, error) {
		next := cur.Clone()
		changed = edit(&next)
		return next, nil
	})
	if err != nil {
		return notFound(err)
	}
	c.caches.Threads.Put(threadID, th)
	c.publishUpdate(rooms.Updated(rooms.ThreadRoom(threadID), models.KindThread, threadID, changed))
	return nil
}

func samePermutation(cur, proposed []int64) bool {
	if len(cur) != len(proposed) {
		return false
	}
	counts := make(map[int64]int, len(cur))
	for _, id := range cur {
		counts[id]++
	}
	for _, id := range proposed {
		counts[id]--
		if counts[id] < 0 {
			return false
		}
	}
	return true
}

func withoutID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
