package controller

import (
	"context"
	"strings"

	"enceladus/pkg/models"
	"enceladus/pkg/rooms"
	"enceladus/pkg/state/logger"

	"github.com/cockroachdb/errors"
)

func (c *Controller) Users() ([]models.User, error) {
	return c.store.Users.List()
}

func (c *Controller) User(id int64) (models.User, error) {
	u, err := c.caches.Users.Get(id, c.store.Users.Get)
	return u, notFound(err)
}

func (c *Controller) CreateUser(_ context.Context, in models.UserInsert) (models.User, error) {
	if strings.TrimSpace(in.RedditUsername) == "" {
		return models.User{}, errors.Wrap(ErrUnprocessable, "reddit_username is required")
	}
	lang := in.Lang
	if lang == "" {
		lang = models.DefaultLang
	}
	u, err := c.store.Users.Insert(func(id int64) (models.User, error) {
		return models.User{
			ID:                  id,
			RedditUsername:      in.RedditUsername,
			Lang:                lang,
			IsGlobalAdmin:       in.IsGlobalAdmin,
			SpaceXIsHost:        in.SpaceXIsHost,
			SpaceXIsMod:         in.SpaceXIsMod,
			SpaceXIsSlackMember: in.SpaceXIsSlackMember,
		}, nil
	})
	if err != nil {
		return models.User{}, err
	}
	c.caches.Users.Put(u.ID, u)
	c.publish(rooms.Created(rooms.Users, models.KindUser, u))
	logger.Info("user_created", "id", u.ID)
	return u, nil
}

func (c *Controller) UpdateUser(_ context.Context, id int64, up models.UserUpdate) (models.User, error) {
	u, err := c.store.Users.Update(id, func(cur models.User) (models.User, error) {
		up.Apply(&cur)
		return cur, nil
	})
	if err != nil {
		return models.User{}, notFound(err)
	}
	c.caches.Users.Put(id, u)
	c.publishUpdate(rooms.Updated(rooms.Users, models.KindUser, id, up))
	return u, nil
}

func (c *Controller) DeleteUser(_ context.Context, id int64) error {
	if err := c.store.Users.Delete(id); err != nil {
		return notFound(err)
	}
	c.caches.Users.Remove(id)
	c.publish(rooms.Deleted(rooms.Users, models.KindUser, id))
	return nil
}
