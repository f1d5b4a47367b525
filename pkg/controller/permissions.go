package controller

import (
	"enceladus/pkg/models"

	"github.com/cockroachdb/errors"
)

// CanModifyThread reports whether user may change th or anything inside it:
// global admins, hosts of the thread's subreddit and the thread's creator.
func CanModifyThread(user models.User, th models.Thread) bool {
	if user.IsGlobalAdmin {
		return true
	}
	if user.IsHostFor(th.Subreddit) {
		return true
	}
	return th.CreatedByUserID == user.ID
}

// authorizeThread loads the thread and checks that user may modify it.
func (c *Controller) authorizeThread(user models.User, threadID int64) (models.Thread, error) {
	th, err := c.Thread(threadID)
	if err != nil {
		return models.Thread{}, err
	}
	if !CanModifyThread(user, th) {
		return models.Thread{}, errors.Wrapf(ErrUnauthorized, "user %d may not modify thread %d", user.ID, threadID)
	}
	return th, nil
}
