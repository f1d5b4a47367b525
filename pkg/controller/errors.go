package controller

import (
	"enceladus/pkg/locks"
	"enceladus/pkg/store"

	"github.com/cockroachdb/errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = locks.ErrForbidden
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrUnprocessable      = errors.New("unprocessable entity")
)

// notFound marks store absence errors with ErrNotFound and leaves every
// other error untouched.
func notFound(err error) error {
	if err != nil && store.IsNotFound(err) {
		return errors.Mark(err, ErrNotFound)
	}
	return err
}
