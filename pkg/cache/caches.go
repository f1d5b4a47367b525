package cache

import (
	"enceladus/pkg/models"
)

// Sizes are the per-kind capacities.
type Sizes struct {
	Threads  int
	Sections int
	Events   int
	Users    int
}

// Caches is the process-wide set of entity caches, built once at startup
// and handed to every component that reads or writes entities.
type Caches struct {
	Threads  *Cache[models.Thread]
	Sections *Cache[models.Section]
	Events   *Cache[models.Event]
	Users    *Cache[models.User]
}

func NewCaches(s Sizes) *Caches {
	return &Caches{
		Threads:  New[models.Thread](models.KindThread, s.Threads),
		Sections: New[models.Section](models.KindSection, s.Sections),
		Events:   New[models.Event](models.KindEvent, s.Events),
		Users:    New[models.User](models.KindUser, s.Users),
	}
}

func (c *Caches) Close() {
	c.Threads.Close()
	c.Sections.Close()
	c.Events.Close()
	c.Users.Close()
}
