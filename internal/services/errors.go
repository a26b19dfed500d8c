package services

import (
	"virtus/internal/apperr"
	"virtus/internal/store"
)

// notFound turns a missing row into a typed not-found error and passes any
// other error through.
func notFound(err error, message string) error {
	if store.IsNotFound(err) {
		return apperr.New(apperr.KindNotFound, message)
	}
	return err
}
