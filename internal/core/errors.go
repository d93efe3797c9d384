package core

import (
	"errors"
	"fmt"

	database "mafia-server/internal/db"
	"mafia-server/internal/entities"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidPhase        = errors.New("invalid phase")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrValidation          = errors.New("validation error")
	ErrClosed              = errors.New("controller closed")
)

// Kind names the class of err for clients. Unclassified errors are "Internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidPhase):
		return "InvalidPhase"
	case errors.Is(err, ErrDuplicateSubmission):
		return "DuplicateSubmission"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	}
	return "Internal"
}

func wrongPhase(room entities.Room, action string) error {
	return fmt.Errorf("%w: cannot %s during %s", ErrInvalidPhase, action, room.Phase)
}

// storeErr maps store sentinels onto controller errors. what names the
// missing or conflicting thing.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, database.ErrConflict):
		return fmt.Errorf("%w: %s", ErrDuplicateSubmission, what)
	}
	return err
}
