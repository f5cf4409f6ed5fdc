package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
)

// Err is the body of every failed request.
type Err struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	Field          string `json:"field,omitempty"`
	ErrorText      string `json:"error,omitempty"`
}

func RenderErr(ctx *gin.Context, err *Err) {
	if err.HTTPStatusCode >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Error(err.Err),
		)
	}
	if err.HTTPStatusCode == http.StatusNotModified {
		ctx.Status(http.StatusNotModified)
		ctx.Abort()
		return
	}

	ctx.AbortWithStatusJSON(err.HTTPStatusCode, err)
}

func newErr(status int, reason string, err error) *Err {
	e := &Err{
		Err:            err,
		HTTPStatusCode: status,
		StatusText:     http.StatusText(status),
		Reason:         reason,
	}
	if err != nil && status < http.StatusInternalServerError {
		e.ErrorText = err.Error()
	}
	var fe *domain.FieldError
	if errors.As(err, &fe) {
		e.Field = fe.Field
	}

	return e
}

func ErrBadRequest(err error) *Err {
	return newErr(http.StatusBadRequest, "bad_request", err)
}

func ErrUnauthenticated(err error) *Err {
	return newErr(http.StatusUnauthorized, "unauthenticated", err)
}

func ErrPermissionDenied(err error) *Err {
	return newErr(http.StatusForbidden, "insufficient_permission", err)
}

func ErrNotFound(entity, field string, value any) *Err {
	return newErr(http.StatusNotFound, "not_found", fmt.Errorf("%s with %s %v %w", entity, field, value, domain.ErrNotFound))
}

func ErrConflict(reason string, err error) *Err {
	return newErr(http.StatusConflict, reason, err)
}

func ErrTooManyRequests() *Err {
	return newErr(http.StatusTooManyRequests, "rate_limited", errors.New("too many requests"))
}

func ErrInternalServerError(err error) *Err {
	return newErr(http.StatusInternalServerError, "internal_error", err)
}

var conflicts = []struct {
	kind   error
	reason string
}{
	{domain.ErrAlreadyExists, "already_exists"},
	{domain.ErrSpaceOnlyAdmin, "space_only_admin"},
	{domain.ErrAlreadyMember, "already_member"},
	{domain.ErrAlreadyAdmin, "already_admin"},
	{domain.ErrAlreadyRequested, "already_requested"},
	{domain.ErrAlreadyInvited, "already_invited"},
	{domain.ErrUserNotMember, "user_not_member"},
	{domain.ErrUserNotAdmin, "user_not_admin"},
	{domain.ErrUserNotInvited, "user_not_invited"},
	{domain.ErrNotRequested, "not_requested"},
	{domain.ErrSpaceNotJoinable, "space_not_joinable"},
	{domain.ErrMaxFilesExceeded, "max_files_exceeded"},
	{domain.ErrPostFileNotDeletable, "post_file_not_deletable"},
	{domain.ErrSelfFollow, "cannot_follow_self"},
	{domain.ErrConcurrentUpdate, "concurrent_update"},
}

var badRequests = []struct {
	kind   error
	reason string
}{
	{domain.ErrMissingKey, "missing_key"},
	{domain.ErrWrongType, "wrong_type"},
	{domain.ErrWrongShape, "wrong_shape"},
	{domain.ErrUnknownField, "unknown_field"},
	{domain.ErrNonUniqueStep, "non_unique_step"},
	{domain.ErrNonUniqueTask, "non_unique_task"},
	{domain.ErrInvalidChecklist, "invalid_checklist"},
}

// FromError maps an error returned by a service to its response. Unknown errors are internal.
func FromError(err error) *Err {
	switch {
	case errors.Is(err, domain.ErrNotModified):
		return newErr(http.StatusNotModified, "not_modified", err)
	case errors.Is(err, domain.ErrUnauthenticated):
		return ErrUnauthenticated(err)
	case errors.Is(err, domain.ErrNoReadAccess):
		return newErr(http.StatusForbidden, "no_read_access", err)
	case errors.Is(err, domain.ErrNoWriteAccess):
		return newErr(http.StatusForbidden, "no_write_access", err)
	case errors.Is(err, domain.ErrInsufficientPermission):
		return ErrPermissionDenied(err)
	case errors.Is(err, domain.ErrNotFound):
		return newErr(http.StatusNotFound, "not_found", err)
	}
	for _, c := range badRequests {
		if errors.Is(err, c.kind) {
			return newErr(http.StatusBadRequest, c.reason, err)
		}
	}
	for _, c := range conflicts {
		if errors.Is(err, c.kind) {
			return ErrConflict(c.reason, err)
		}
	}

	return ErrInternalServerError(err)
}

// Render writes the response for a service error, adding call-site context to internal errors.
func Render(ctx *gin.Context, site string, err error) {
	resp := FromError(err)
	if resp.HTTPStatusCode >= http.StatusInternalServerError {
		resp.Err = fmt.Errorf("%s -> %w", site, err)
	}
	RenderErr(ctx, resp)
}
