package v1

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vecollab/backend/internal/api/handler/v1/request"
	"github.com/vecollab/backend/internal/api/handler/v1/response"
	"github.com/vecollab/backend/internal/api/middleware"
	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/service"
)

type validatable interface {
	Validate() error
}

// HandleHealthcheck godoc
// @Summary      Liveness check
// @Tags         ops
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func HandleHealthcheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func currentUser(ctx *gin.Context) (string, bool) {
	p, ok := middleware.Principal(ctx)
	if !ok {
		response.RenderErr(ctx, response.ErrUnauthenticated(domain.ErrUnauthenticated))
		return "", false
	}

	return p.Username, true
}

func bindJSON(ctx *gin.Context, req validatable) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return false
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return false
	}

	return true
}

func bindQuery(ctx *gin.Context, req validatable) bool {
	if err := ctx.ShouldBindQuery(req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return false
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return false
	}

	return true
}

func pathID(ctx *gin.Context, name string) (domain.ID, bool) {
	id, err := domain.ParseID(ctx.Param(name))
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(&domain.FieldError{Kind: domain.ErrWrongType, Field: name}))
		return domain.NilID, false
	}

	return id, true
}

func parseIDs(hexes []string) ([]domain.ID, error) {
	ids := make([]domain.ID, 0, len(hexes))
	for _, h := range hexes {
		id, err := domain.ParseID(h)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func optionalID(hex *string) (*domain.ID, error) {
	if hex == nil || *hex == "" {
		return nil, nil
	}
	id, err := domain.ParseID(*hex)
	if err != nil {
		return nil, err
	}

	return &id, nil
}

// uploads reads every file of the multipart field.
func uploads(ctx *gin.Context, field string) ([]service.Upload, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}

	files := form.File[field]
	out := make([]service.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("fh.Open(%s) -> %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("io.ReadAll(%s) -> %w", fh.Filename, err)
		}
		out = append(out, service.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	return out, nil
}

// singleUpload reads the one file expected under field.
func singleUpload(ctx *gin.Context, field string) (service.Upload, bool) {
	files, err := uploads(ctx, field)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return service.Upload{}, false
	}
	if len(files) != 1 {
		response.RenderErr(ctx, response.ErrBadRequest(&domain.FieldError{Kind: domain.ErrMissingKey, Field: field}))
		return service.Upload{}, false
	}

	return files[0], true
}

func serveObject(ctx *gin.Context, obj service.Object) {
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", obj.FileName))
	ctx.Data(http.StatusOK, contentType, obj.Data)
}

func timelinePage(ctx *gin.Context) (service.TimelinePage, bool) {
	var q request.TimelineQuery
	if !bindQuery(ctx, &q) {
		return service.TimelinePage{}, false
	}

	var page service.TimelinePage
	if q.Before != "" {
		// Validated as RFC 3339 already.
		page.Before, _ = time.Parse(time.RFC3339, q.Before)
	}
	page.Limit = q.Limit

	return page, true
}

func queryBool(ctx *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(ctx.Query(key))
	return v
}
