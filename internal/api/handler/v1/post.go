package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vecollab/backend/internal/api/handler/v1/request"
	"github.com/vecollab/backend/internal/api/handler/v1/response"
	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/service"
)

type PostService interface {
	Create(ctx context.Context, actor string, in service.NewPost) (domain.Post, error)
	Get(ctx context.Context, actor string, id domain.ID) (domain.Post, error)
	Edit(ctx context.Context, actor string, id domain.ID, e service.PostEdit) (domain.Post, error)
	Delete(ctx context.Context, actor string, id domain.ID) error
	Repost(ctx context.Context, actor string, id domain.ID, text *string, space *domain.ID) (domain.Post, error)
	Like(ctx context.Context, actor string, id domain.ID) error
	Unlike(ctx context.Context, actor string, id domain.ID) error
	Comment(ctx context.Context, actor string, postID domain.ID, text string) (domain.Comment, error)
	DeleteComment(ctx context.Context, actor string, commentID domain.ID) error
	PinComment(ctx context.Context, actor string, commentID domain.ID, pinned bool) error
	PinPost(ctx context.Context, actor string, id domain.ID, pinned bool) error
	GetByComment(ctx context.Context, actor string, commentID domain.ID) (domain.Post, error)
	SpaceTimeline(ctx context.Context, actor string, space domain.ID, page service.TimelinePage) ([]domain.Post, []domain.Post, error)
	UserTimeline(ctx context.Context, actor, author string, page service.TimelinePage) ([]domain.Post, error)
	TagTimeline(ctx context.Context, actor, tag string, page service.TimelinePage) ([]domain.Post, error)
	PersonalTimeline(ctx context.Context, actor string, page service.TimelinePage) ([]domain.Post, error)
}

type PostHandler struct {
	svc PostService
}

func NewPostHandler(svc PostService) *PostHandler {
	return &PostHandler{
		svc: svc,
	}
}

// HandleCreatePost godoc
// @Summary      Publish a post
// @Description  Without tags the hashtags of the text are used. Files posted into a space are mirrored into its repository.
// @Tags         posts
// @Accept       multipart/form-data
// @Produce      json
// @Param        text   formData  string    true   "post text"
// @Param        space  formData  string    false  "space id"
// @Param        tags   formData  []string  false  "tags"
// @Param        plans  formData  []string  false  "attached plan ids"
// @Param        file   formData  file      false  "attached files"
// @Success      201    {object}  domain.Post
// @Failure      400    {object}  response.Err
// @Failure      403    {object}  response.Err
// @Router       /posts [post]
// @Security BearerAuth
func (h *PostHandler) HandleCreatePost(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req request.CreatePostRequest
	if err := ctx.ShouldBind(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	space, err := optionalID(&req.Space)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	plans, err := parseIDs(req.Plans)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	files, err := uploads(ctx, "file")
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	post, err := h.svc.Create(ctx.Request.Context(), user, service.NewPost{
		Text:    req.Text,
		Space:   space,
		Tags:    req.Tags,
		Plans:   plans,
		Uploads: files,
	})
	if err != nil {
		response.Render(ctx, "v1.HandleCreatePost -> h.svc.Create", err)
		return
	}

	ctx.JSON(http.StatusCreated, post)
}

// HandleGetPost godoc
// @Summary      Get a post
// @Tags         posts
// @Produce      json
// @Param        postID  path      string  true  "post id"
// @Success      200     {object}  domain.Post
// @Failure      404     {object}  response.Err
// @Router       /posts/{postID} [get]
// @Security BearerAuth
func (h *PostHandler) HandleGetPost(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "postID")
	if !ok {
		return
	}

	post, err := h.svc.Get(ctx.Request.Context(), user, id)
	if err != nil {
		response.Render(ctx, "v1.HandleGetPost -> h.svc.Get", err)
		return
	}

	ctx.JSON(http.StatusOK, post)
}

// HandleEditPost godoc
// @Summary      Edit a post
// @Tags         posts
// @Accept       json
// @Produce      json
// @Param        postID   path      string                   true  "post id"
// @Param        request  body      request.EditPostRequest  true  "changes"
// @Success      200      {object}  domain.Post
// @Failure      403      {object}  response.Err
// @Router       /posts/{postID} [patch]
// @Security BearerAuth
func (h *PostHandler) HandleEditPost(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "postID")
	if !ok {
		return
	}
	var req request.EditPostRequest
	if !bindJSON(ctx, &req) {
		return
	}
	var plans []domain.ID
	if req.Plans != nil {
		var err error
		if plans, err = parseIDs(req.Plans); err != nil {
			response.RenderErr(ctx, response.ErrBadRequest(err))
			return
		}
	}

	post, err := h.svc.Edit(ctx.Request.Context(), user, id, service.PostEdit{Text: req.Text, Tags: req.Tags, Plans: plans})
	if err != nil {
		response.Render(ctx, "v1.HandleEditPost -> h.svc.Edit", err)
		return
	}

	ctx.JSON(http.StatusOK, post)
}

// HandleDeletePost godoc
// @Summary      Delete a post
// @Tags         posts
// @Param        postID  path  string  true  "post id"
// @Success      204
// @Failure      403  {object}  response.Err
// @Router       /posts/{postID} [delete]
// @Security BearerAuth
func (h *PostHandler) HandleDeletePost(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "postID")
	if !ok {
		return
	}

	if err := h.svc.Delete(ctx.Request.Context(), user, id); err != nil {
		response.Render(ctx, "v1.HandleDeletePost -> h.svc.Delete", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleRepost godoc
// @Summary      Repost a post
// @Tags         posts
// @Accept       json
// @Produce      json
// @Param        postID   path      string                 true  "post id"
// @Param        request  body      request.RepostRequest  true  "repost"
// @Success      201      {object}  domain.Post
// @Router       /posts/{postID}/repost [post]
// @Security BearerAuth
func (h *PostHandler) HandleRepost(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "postID")
	if !ok {
		return
	}
	var req request.RepostRequest
	if !bindJSON(ctx, &req) {
		return
	}
	space, err := optionalID(req.Space)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	post, err := h.svc.Repost(ctx.Request.Context(), user, id, req.Text, space)
	if err != nil {
		response.Render(ctx, "v1.HandleRepost -> h.svc.Repost", err)
		return
	}

	ctx.JSON(http.StatusCreated, post)
}

// HandleLike godoc
// @Summary      Like a post
// @Tags         posts
// @Param        postID  path  string  true  "post id"
// @Success      204
// @Router       /posts/{postID}/like [post]
// @Security BearerAuth
func (h *PostHandler) HandleLike(ctx *gin.Context) {
	h.postAction(ctx, "v1.HandleLike -> h.svc.Like", h.svc.Like)
}

// HandleUnlike godoc
// @Summary      Unlike a post
// @Tags         posts
// @Param        postID  path  string  true  "post id"
// @Success      204
// @Router       /posts/{postID}/like [delete]
// @Security BearerAuth
func (h *PostHandler) HandleUnlike(ctx *gin.Context) {
	h.postAction(ctx, "v1.HandleUnlike -> h.svc.Unlike", h.svc.Unlike)
}

// HandlePinPost godoc
// @Summary      Pin or unpin a post in its space
// @Tags         posts
// @Accept       json
// @Param        postID   path  string              true  "post id"
// @Param        request  body  request.PinRequest  true  "pin state"
// @Success      204
// @Router       /posts/{postID}/pin [put]
// @Security BearerAuth
func (h *PostHandler) HandlePinPost(ctx *gin.Context) {
	var req request.PinRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	h.postAction(ctx, "v1.HandlePinPost -> h.svc.PinPost", func(c context.Context, actor string, id domain.ID) error {
		return h.svc.PinPost(c, actor, id, req.Pinned)
	})
}

func (h *PostHandler) postAction(ctx *gin.Context, site string, action func(ctx context.Context, actor string, id domain.ID) error) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "postID")
	if !ok {
		return
	}

	if err := action(ctx.Request.Context(), user, id); err != nil {
		response.Render(ctx, site, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleComment godoc
// @Summary      Comment on a post
// @Tags         comments
// @Accept       json
// @Produce      json
// @Param        postID   path      string                  true  "post id"
// @Param        request  body      request.CommentRequest  true  "comment"
// @Success      201      {object}  domain.Comment
// @Router       /posts/{postID}/comments [post]
// @Security BearerAuth
func (h *PostHandler) HandleComment(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "postID")
	if !ok {
		return
	}
	var req request.CommentRequest
	if !bindJSON(ctx, &req) {
		return
	}

	comment, err := h.svc.Comment(ctx.Request.Context(), user, id, req.Text)
	if err != nil {
		response.Render(ctx, "v1.HandleComment -> h.svc.Comment", err)
		return
	}

	ctx.JSON(http.StatusCreated, comment)
}

// HandleGetByComment godoc
// @Summary      Get the post holding a comment
// @Tags         comments
// @Produce      json
// @Param        commentID  path      string  true  "comment id"
// @Success      200        {object}  domain.Post
// @Router       /comments/{commentID}/post [get]
// @Security BearerAuth
func (h *PostHandler) HandleGetByComment(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "commentID")
	if !ok {
		return
	}

	post, err := h.svc.GetByComment(ctx.Request.Context(), user, id)
	if err != nil {
		response.Render(ctx, "v1.HandleGetByComment -> h.svc.GetByComment", err)
		return
	}

	ctx.JSON(http.StatusOK, post)
}

// HandleDeleteComment godoc
// @Summary      Delete a comment
// @Tags         comments
// @Param        commentID  path  string  true  "comment id"
// @Success      204
// @Router       /comments/{commentID} [delete]
// @Security BearerAuth
func (h *PostHandler) HandleDeleteComment(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "commentID")
	if !ok {
		return
	}

	if err := h.svc.DeleteComment(ctx.Request.Context(), user, id); err != nil {
		response.Render(ctx, "v1.HandleDeleteComment -> h.svc.DeleteComment", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandlePinComment godoc
// @Summary      Pin or unpin a comment
// @Tags         comments
// @Accept       json
// @Param        commentID  path  string              true  "comment id"
// @Param        request    body  request.PinRequest  true  "pin state"
// @Success      204
// @Router       /comments/{commentID}/pin [put]
// @Security BearerAuth
func (h *PostHandler) HandlePinComment(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "commentID")
	if !ok {
		return
	}
	var req request.PinRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := h.svc.PinComment(ctx.Request.Context(), user, id, req.Pinned); err != nil {
		response.Render(ctx, "v1.HandlePinComment -> h.svc.PinComment", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandlePersonalTimeline godoc
// @Summary      Personal timeline
// @Description  Own posts, posts of followed users and posts in the user's spaces, newest first.
// @Tags         timelines
// @Produce      json
// @Param        before  query     string  false  "RFC 3339 cursor"
// @Param        limit   query     int     false  "page size"
// @Success      200     {array}   domain.Post
// @Router       /timeline [get]
// @Security BearerAuth
func (h *PostHandler) HandlePersonalTimeline(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	page, ok := timelinePage(ctx)
	if !ok {
		return
	}

	posts, err := h.svc.PersonalTimeline(ctx.Request.Context(), user, page)
	if err != nil {
		response.Render(ctx, "v1.HandlePersonalTimeline -> h.svc.PersonalTimeline", err)
		return
	}

	ctx.JSON(http.StatusOK, posts)
}

// HandleSpaceTimeline godoc
// @Summary      Timeline of a space
// @Tags         timelines
// @Produce      json
// @Param        spaceID  path      string  true   "space id"
// @Param        before   query     string  false  "RFC 3339 cursor"
// @Param        limit    query     int     false  "page size"
// @Success      200      {object}  map[string][]domain.Post
// @Router       /timeline/spaces/{spaceID} [get]
// @Security BearerAuth
func (h *PostHandler) HandleSpaceTimeline(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "spaceID")
	if !ok {
		return
	}
	page, ok := timelinePage(ctx)
	if !ok {
		return
	}

	pinned, posts, err := h.svc.SpaceTimeline(ctx.Request.Context(), user, id, page)
	if err != nil {
		response.Render(ctx, "v1.HandleSpaceTimeline -> h.svc.SpaceTimeline", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"pinned": pinned, "posts": posts})
}

// HandleUserTimeline godoc
// @Summary      Posts of a user
// @Tags         timelines
// @Produce      json
// @Param        username  path      string  true   "author"
// @Param        before    query     string  false  "RFC 3339 cursor"
// @Param        limit     query     int     false  "page size"
// @Success      200       {array}   domain.Post
// @Router       /timeline/users/{username} [get]
// @Security BearerAuth
func (h *PostHandler) HandleUserTimeline(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	page, ok := timelinePage(ctx)
	if !ok {
		return
	}

	posts, err := h.svc.UserTimeline(ctx.Request.Context(), user, ctx.Param("username"), page)
	if err != nil {
		response.Render(ctx, "v1.HandleUserTimeline -> h.svc.UserTimeline", err)
		return
	}

	ctx.JSON(http.StatusOK, posts)
}

// HandleTagTimeline godoc
// @Summary      Posts with a tag
// @Tags         timelines
// @Produce      json
// @Param        tag     path      string  true   "tag without #"
// @Param        before  query     string  false  "RFC 3339 cursor"
// @Param        limit   query     int     false  "page size"
// @Success      200     {array}   domain.Post
// @Router       /timeline/tags/{tag} [get]
// @Security BearerAuth
func (h *PostHandler) HandleTagTimeline(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	page, ok := timelinePage(ctx)
	if !ok {
		return
	}

	posts, err := h.svc.TagTimeline(ctx.Request.Context(), user, ctx.Param("tag"), page)
	if err != nil {
		response.Render(ctx, "v1.HandleTagTimeline -> h.svc.TagTimeline", err)
		return
	}

	ctx.JSON(http.StatusOK, posts)
}
