package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrNoReadAccess           = errors.New("no read access")
	ErrNoWriteAccess          = errors.New("no write access")
	ErrMissingKey             = errors.New("missing key")
	ErrWrongType              = errors.New("wrong type")
	ErrWrongShape             = errors.New("wrong shape")
	ErrUnknownField           = errors.New("unknown field")
	ErrNonUniqueStep          = errors.New("non-unique step")
	ErrNonUniqueTask          = errors.New("non-unique task")
	ErrInvalidChecklist       = errors.New("checklist user is neither author nor partner")
	ErrMaxFilesExceeded       = errors.New("max files exceeded")
	ErrPostFileNotDeletable   = errors.New("post file not deletable")
	ErrSpaceOnlyAdmin         = errors.New("space only admin")
	ErrAlreadyMember          = errors.New("already member")
	ErrAlreadyAdmin           = errors.New("already admin")
	ErrAlreadyRequested       = errors.New("already requested")
	ErrAlreadyInvited         = errors.New("already invited")
	ErrUserNotMember          = errors.New("user not member")
	ErrUserNotAdmin           = errors.New("user not admin")
	ErrUserNotInvited         = errors.New("user not invited")
	ErrNotRequested           = errors.New("not requested")
	ErrSpaceNotJoinable       = errors.New("space not joinable")
	ErrSpaceNotFound          = errors.New("space not found")
	ErrInvitationNotFound     = errors.New("invitation not found")
	ErrMessageNotFound        = errors.New("message not found")
	ErrRoomNotFound           = errors.New("room not found")
	ErrNotModified            = errors.New("not modified")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrSelfFollow             = errors.New("cannot follow oneself")
	ErrConcurrentUpdate       = errors.New("changed concurrently")
)

// FieldError reports a missing or mistyped field. It matches its Kind with errors.Is.
type FieldError struct {
	Kind  error
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Field)
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

func missingKey(field string) error {
	return &FieldError{Kind: ErrMissingKey, Field: field}
}

func wrongType(field string) error {
	return &FieldError{Kind: ErrWrongType, Field: field}
}

// nested prefixes the field path of a FieldError coming from a nested document.
func nested(prefix string, err error) error {
	var fe *FieldError
	if errors.As(err, &fe) {
		return &FieldError{Kind: fe.Kind, Field: prefix + "." + fe.Field}
	}
	return err
}
