package service

import "errors"

// Error kinds. Every error returned by this package matches one of them with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrMalformedBackup = errors.New("malformed backup")
)

// Validation errors
var (
	ErrEmptyText          = kindError{"task text is empty", ErrValidation}
	ErrEmptyName          = kindError{"space name is empty", ErrValidation}
	ErrDuplicateName      = kindError{"space already exists", ErrValidation}
	ErrDuplicateUsername  = kindError{"username already taken", ErrValidation}
	ErrInvalidCredentials = kindError{"invalid credentials", ErrValidation}
	ErrInvalidPriority    = kindError{"invalid priority", ErrValidation}
	ErrInvalidOrder       = kindError{"order must list every active task exactly once", ErrValidation}
	ErrFilteredReorder    = kindError{"reordering is only possible on the unfiltered list", ErrValidation}
	ErrLastSpace          = kindError{"the last space cannot be deleted while it holds tasks", ErrValidation}
	ErrAmbiguousID        = kindError{"id prefix matches more than one task", ErrValidation}
)

// Not found errors
var (
	ErrTaskNotFound     = kindError{"task not found", ErrNotFound}
	ErrCategoryNotFound = kindError{"space not found", ErrNotFound}
	ErrUserNotFound     = kindError{"user not found", ErrNotFound}
)

// ErrNotAuthenticated is returned by a Session with no user logged in.
var ErrNotAuthenticated = errors.New("not authenticated")

type kindError struct {
	msg  string
	kind error
}

func (e kindError) Error() string { return e.msg }

func (e kindError) Unwrap() error { return e.kind }
