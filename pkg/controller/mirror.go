package controller

import (
	"context"

	"enceladus/pkg/models"
	"enceladus/pkg/state/logger"
)

// Mirror publishes thread content to an outbound posting service.
type Mirror interface {
	// Submit creates the outbound post and returns its id. An empty id
	// leaves the thread unposted.
	Submit(ctx context.Context, author models.User, subreddit, title string) (string, error)
	Edit(ctx context.Context, th models.Thread, markdown string) error
	Approve(ctx context.Context, th models.Thread) error
	SetSticky(ctx context.Context, th models.Thread, sticky bool) error
}

// LogMirror records mirror calls in the log and posts nothing.
type LogMirror struct{}

func (LogMirror) Submit(_ context.Context, author models.User, subreddit, title string) (string, error) {
	logger.Info("mirror_submit", "user_id", author.ID, "subreddit", subreddit, "title", title)
	return "", nil
}

func (LogMirror) Edit(_ context.Context, th models.Thread, markdown string) error {
	logger.Debug("mirror_edit", "thread_id", th.ID, "len", len(markdown))
	return nil
}

func (LogMirror) Approve(_ context.Context, th models.Thread) error {
	logger.Info("mirror_approve", "thread_id", th.ID)
	return nil
}

func (LogMirror) SetSticky(_ context.Context, th models.Thread, sticky bool) error {
	logger.Info("mirror_sticky", "thread_id", th.ID, "sticky", sticky)
	return nil
}
