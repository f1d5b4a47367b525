// Package controller implements the read and write paths for every entity
// kind. Writes go to the store first; only a committed write updates the
// cache and is broadcast.
package controller

import (
	"context"
	"time"

	"enceladus/pkg/cache"
	"enceladus/pkg/locks"
	"enceladus/pkg/rooms"
	"enceladus/pkg/state/logger"
	"enceladus/pkg/store"
)

// Publisher receives one change message per committed write.
type Publisher interface {
	Publish(m rooms.Message)
}

type Options struct {
	Store        *store.Store
	Caches       *cache.Caches
	Publisher    Publisher
	Mirror       Mirror
	LockDuration time.Duration
	// Now defaults to time.Now
	Now func() time.Time
}

type Controller struct {
	store  *store.Store
	caches *cache.Caches
	pub    Publisher
	mirror Mirror
	locks  locks.Policy
	now    func() time.Time
}

func New(o Options) *Controller {
	c := &Controller{
		store:  o.Store,
		caches: o.Caches,
		pub:    o.Publisher,
		mirror: o.Mirror,
		locks:  locks.NewPolicy(o.LockDuration),
		now:    o.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.mirror == nil {
		c.mirror = LogMirror{}
	}
	return c
}

func (c *Controller) LockPolicy() locks.Policy {
	return c.locks
}

func (c *Controller) publish(m rooms.Message) {
	if c.pub == nil {
		return
	}
	c.pub.Publish(m)
}

// publishUpdate accepts the result of rooms.Updated directly.
func (c *Controller) publishUpdate(m rooms.Message, err error) {
	if err != nil {
		logger.Error("broadcast_build_failed", "error", err)
		return
	}
	c.publish(m)
}

// syncMirror re-renders the thread and hands it to the mirror. Failures are
// logged only.
func (c *Controller) syncMirror(ctx context.Context, threadID int64) {
	th, err := c.Thread(threadID)
	if err != nil {
		logger.Warn("mirror_sync_skipped", "thread_id", threadID, "error", err)
		return
	}
	if !th.Posted() {
		return
	}
	md, err := c.RenderThread(th)
	if err != nil {
		logger.Warn("markdown_render_failed", "thread_id", threadID, "error", err)
		return
	}
	if err := c.mirror.Edit(ctx, th, md); err != nil {
		logger.Warn("mirror_edit_failed", "thread_id", threadID, "error", err)
	}
}
