package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vecollab/backend/internal/api/handler/v1/request"
	"github.com/vecollab/backend/internal/api/handler/v1/response"
	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository"
	"github.com/vecollab/backend/internal/service"
)

type SpaceService interface {
	Create(ctx context.Context, actor string, in service.NewSpace) (domain.Space, error)
	Get(ctx context.Context, actor string, id domain.ID) (domain.Space, error)
	List(ctx context.Context, actor string) ([]domain.Space, error)
	ListMine(ctx context.Context, actor string) ([]domain.Space, error)
	ListPendingInvites(ctx context.Context, username string) ([]domain.Space, error)
	ListPendingRequests(ctx context.Context, username string) ([]domain.Space, error)
	ListJoinRequests(ctx context.Context, actor string, id domain.ID) ([]string, error)
	Update(ctx context.Context, actor string, id domain.ID, u repository.SpaceUpdate) (domain.Space, error)
	Invite(ctx context.Context, actor string, id domain.ID, user string) error
	AcceptInvite(ctx context.Context, user string, id domain.ID) error
	DeclineInvite(ctx context.Context, user string, id domain.ID) error
	RequestJoin(ctx context.Context, user string, id domain.ID) error
	AcceptRequest(ctx context.Context, actor string, id domain.ID, user string) error
	RejectRequest(ctx context.Context, actor string, id domain.ID, user string) error
	Join(ctx context.Context, user string, id domain.ID) error
	Leave(ctx context.Context, user string, id domain.ID) error
	Kick(ctx context.Context, actor string, id domain.ID, user string) error
	Promote(ctx context.Context, actor string, id domain.ID, user string) error
	Demote(ctx context.Context, actor string, id domain.ID, user string) error
	Delete(ctx context.Context, actor string, id domain.ID) error
	GetFiles(ctx context.Context, actor string, id domain.ID) ([]domain.FileEntry, error)
	GetFile(ctx context.Context, actor string, id, fileID domain.ID) (service.Object, error)
	AddRepoFile(ctx context.Context, actor string, id domain.ID, upload service.Upload) (domain.FileEntry, error)
	RemoveRepoFile(ctx context.Context, actor string, id, fileID domain.ID) error
}

type SpaceHandler struct {
	svc SpaceService
}

func NewSpaceHandler(svc SpaceService) *SpaceHandler {
	return &SpaceHandler{
		svc: svc,
	}
}

// HandleCreateSpace godoc
// @Summary      Create a space
// @Description  The creator becomes its first member and admin.
// @Tags         spaces
// @Accept       json
// @Produce      json
// @Param        request  body      request.CreateSpaceRequest  true  "space"
// @Success      201      {object}  domain.Space
// @Failure      403      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Router       /spaces [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleCreateSpace(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req request.CreateSpaceRequest
	if !bindJSON(ctx, &req) {
		return
	}

	space, err := h.svc.Create(ctx.Request.Context(), user, service.NewSpace{
		Name:        req.Name,
		Invisible:   req.Invisible,
		Joinable:    req.Joinable,
		Description: req.Description,
	})
	if err != nil {
		response.Render(ctx, "v1.HandleCreateSpace -> h.svc.Create", err)
		return
	}

	ctx.JSON(http.StatusCreated, space)
}

// HandleListSpaces godoc
// @Summary      List spaces
// @Description  scope=mine lists the user's spaces, scope=invites and scope=requests the pending ones. Invisible spaces are only listed to members.
// @Tags         spaces
// @Produce      json
// @Param        scope  query     string  false  "all, mine, invites or requests"
// @Success      200    {array}   domain.Space
// @Router       /spaces [get]
// @Security BearerAuth
func (h *SpaceHandler) HandleListSpaces(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	var (
		spaces []domain.Space
		err    error
	)
	switch ctx.DefaultQuery("scope", "all") {
	case "all":
		spaces, err = h.svc.List(ctx.Request.Context(), user)
	case "mine":
		spaces, err = h.svc.ListMine(ctx.Request.Context(), user)
	case "invites":
		spaces, err = h.svc.ListPendingInvites(ctx.Request.Context(), user)
	case "requests":
		spaces, err = h.svc.ListPendingRequests(ctx.Request.Context(), user)
	default:
		response.RenderErr(ctx, response.ErrBadRequest(&domain.FieldError{Kind: domain.ErrWrongType, Field: "scope"}))
		return
	}
	if err != nil {
		response.Render(ctx, "v1.HandleListSpaces -> h.svc.List", err)
		return
	}

	ctx.JSON(http.StatusOK, spaces)
}

// HandleGetSpace godoc
// @Summary      Get a space
// @Tags         spaces
// @Produce      json
// @Param        spaceID  path      string  true  "space id"
// @Success      200      {object}  domain.Space
// @Failure      404      {object}  response.Err
// @Router       /spaces/{spaceID} [get]
// @Security BearerAuth
func (h *SpaceHandler) HandleGetSpace(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "spaceID")
	if !ok {
		return
	}

	space, err := h.svc.Get(ctx.Request.Context(), user, id)
	if err != nil {
		response.Render(ctx, "v1.HandleGetSpace -> h.svc.Get", err)
		return
	}

	ctx.JSON(http.StatusOK, space)
}

// HandleUpdateSpace godoc
// @Summary      Update a space
// @Tags         spaces
// @Accept       json
// @Produce      json
// @Param        spaceID  path      string                      true  "space id"
// @Param        request  body      request.UpdateSpaceRequest  true  "changes"
// @Success      200      {object}  domain.Space
// @Failure      403      {object}  response.Err
// @Router       /spaces/{spaceID} [patch]
// @Security BearerAuth
func (h *SpaceHandler) HandleUpdateSpace(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "spaceID")
	if !ok {
		return
	}
	var req request.UpdateSpaceRequest
	if !bindJSON(ctx, &req) {
		return
	}
	pic, err := optionalID(req.PictureID)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	space, err := h.svc.Update(ctx.Request.Context(), user, id, repository.SpaceUpdate{
		Name:        req.Name,
		Invisible:   req.Invisible,
		Joinable:    req.Joinable,
		Description: req.Description,
		PictureID:   pic,
	})
	if err != nil {
		response.Render(ctx, "v1.HandleUpdateSpace -> h.svc.Update", err)
		return
	}

	ctx.JSON(http.StatusOK, space)
}

// HandleDeleteSpace godoc
// @Summary      Delete a space
// @Description  Removes the space with its posts, files and access rules.
// @Tags         spaces
// @Param        spaceID  path  string  true  "space id"
// @Success      204
// @Failure      403  {object}  response.Err
// @Router       /spaces/{spaceID} [delete]
// @Security BearerAuth
func (h *SpaceHandler) HandleDeleteSpace(ctx *gin.Context) {
	h.selfAction(ctx, "v1.HandleDeleteSpace -> h.svc.Delete", h.svc.Delete)
}

// HandleJoinRequests godoc
// @Summary      Pending join requests of a space
// @Tags         spaces
// @Produce      json
// @Param        spaceID  path      string  true  "space id"
// @Success      200      {array}   string
// @Failure      403      {object}  response.Err
// @Router       /spaces/{spaceID}/requests [get]
// @Security BearerAuth
func (h *SpaceHandler) HandleJoinRequests(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "spaceID")
	if !ok {
		return
	}

	users, err := h.svc.ListJoinRequests(ctx.Request.Context(), user, id)
	if err != nil {
		response.Render(ctx, "v1.HandleJoinRequests -> h.svc.ListJoinRequests", err)
		return
	}

	ctx.JSON(http.StatusOK, users)
}

type memberOp func(ctx context.Context, actor string, id domain.ID, user string) error

type selfOp func(ctx context.Context, user string, id domain.ID) error

// memberAction runs an admin operation on the member named in the body.
func (h *SpaceHandler) memberAction(ctx *gin.Context, site string, op memberOp) {
	actor, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "spaceID")
	if !ok {
		return
	}
	var req request.MemberRequest
	if !bindJSON(ctx, &req) {
		return
	}

	if err := op(ctx.Request.Context(), actor, id, req.Username); err != nil {
		response.Render(ctx, site, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// selfAction runs an operation of the user on their own membership.
func (h *SpaceHandler) selfAction(ctx *gin.Context, site string, op selfOp) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "spaceID")
	if !ok {
		return
	}

	if err := op(ctx.Request.Context(), user, id); err != nil {
		response.Render(ctx, site, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleInvite godoc
// @Summary      Invite a user into a space
// @Tags         membership
// @Accept       json
// @Param        spaceID  path  string                 true  "space id"
// @Param        request  body  request.MemberRequest  true  "invitee"
// @Success      204
// @Failure      409  {object}  response.Err
// @Router       /spaces/{spaceID}/invite [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleInvite(ctx *gin.Context) {
	h.memberAction(ctx, "v1.HandleInvite -> h.svc.Invite", h.svc.Invite)
}

// HandleAcceptRequest godoc
// @Summary      Accept a join request
// @Tags         membership
// @Accept       json
// @Param        spaceID  path  string                 true  "space id"
// @Param        request  body  request.MemberRequest  true  "requester"
// @Success      204
// @Router       /spaces/{spaceID}/requests/accept [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleAcceptRequest(ctx *gin.Context) {
	h.memberAction(ctx, "v1.HandleAcceptRequest -> h.svc.AcceptRequest", h.svc.AcceptRequest)
}

// HandleRejectRequest godoc
// @Summary      Reject a join request
// @Tags         membership
// @Accept       json
// @Param        spaceID  path  string                 true  "space id"
// @Param        request  body  request.MemberRequest  true  "requester"
// @Success      204
// @Router       /spaces/{spaceID}/requests/reject [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleRejectRequest(ctx *gin.Context) {
	h.memberAction(ctx, "v1.HandleRejectRequest -> h.svc.RejectRequest", h.svc.RejectRequest)
}

// HandleKick godoc
// @Summary      Remove a member
// @Tags         membership
// @Accept       json
// @Param        spaceID  path  string                 true  "space id"
// @Param        request  body  request.MemberRequest  true  "member"
// @Success      204
// @Router       /spaces/{spaceID}/kick [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleKick(ctx *gin.Context) {
	h.memberAction(ctx, "v1.HandleKick -> h.svc.Kick", h.svc.Kick)
}

// HandlePromote godoc
// @Summary      Make a member admin
// @Tags         membership
// @Accept       json
// @Param        spaceID  path  string                 true  "space id"
// @Param        request  body  request.MemberRequest  true  "member"
// @Success      204
// @Router       /spaces/{spaceID}/promote [post]
// @Security BearerAuth
func (h *SpaceHandler) HandlePromote(ctx *gin.Context) {
	h.memberAction(ctx, "v1.HandlePromote -> h.svc.Promote", h.svc.Promote)
}

// HandleDemote godoc
// @Summary      Revoke admin rights
// @Description  The last admin cannot be demoted.
// @Tags         membership
// @Accept       json
// @Param        spaceID  path  string                 true  "space id"
// @Param        request  body  request.MemberRequest  true  "admin"
// @Success      204
// @Failure      409  {object}  response.Err
// @Router       /spaces/{spaceID}/demote [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleDemote(ctx *gin.Context) {
	h.memberAction(ctx, "v1.HandleDemote -> h.svc.Demote", h.svc.Demote)
}

// HandleAcceptInvite godoc
// @Summary      Accept an invitation into a space
// @Tags         membership
// @Param        spaceID  path  string  true  "space id"
// @Success      204
// @Router       /spaces/{spaceID}/invite/accept [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleAcceptInvite(ctx *gin.Context) {
	h.selfAction(ctx, "v1.HandleAcceptInvite -> h.svc.AcceptInvite", h.svc.AcceptInvite)
}

// HandleDeclineInvite godoc
// @Summary      Decline an invitation into a space
// @Tags         membership
// @Param        spaceID  path  string  true  "space id"
// @Success      204
// @Router       /spaces/{spaceID}/invite/decline [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleDeclineInvite(ctx *gin.Context) {
	h.selfAction(ctx, "v1.HandleDeclineInvite -> h.svc.DeclineInvite", h.svc.DeclineInvite)
}

// HandleRequestJoin godoc
// @Summary      Ask to join a space
// @Tags         membership
// @Param        spaceID  path  string  true  "space id"
// @Success      204
// @Router       /spaces/{spaceID}/request [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleRequestJoin(ctx *gin.Context) {
	h.selfAction(ctx, "v1.HandleRequestJoin -> h.svc.RequestJoin", h.svc.RequestJoin)
}

// HandleJoin godoc
// @Summary      Join a joinable space
// @Tags         membership
// @Param        spaceID  path  string  true  "space id"
// @Success      204
// @Failure      409  {object}  response.Err
// @Router       /spaces/{spaceID}/join [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleJoin(ctx *gin.Context) {
	h.selfAction(ctx, "v1.HandleJoin -> h.svc.Join", h.svc.Join)
}

// HandleLeave godoc
// @Summary      Leave a space
// @Tags         membership
// @Param        spaceID  path  string  true  "space id"
// @Success      204
// @Failure      409  {object}  response.Err
// @Router       /spaces/{spaceID}/leave [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleLeave(ctx *gin.Context) {
	h.selfAction(ctx, "v1.HandleLeave -> h.svc.Leave", h.svc.Leave)
}

// HandleGetFiles godoc
// @Summary      Files of a space repository
// @Tags         space files
// @Produce      json
// @Param        spaceID  path      string  true  "space id"
// @Success      200      {array}   domain.FileEntry
// @Router       /spaces/{spaceID}/files [get]
// @Security BearerAuth
func (h *SpaceHandler) HandleGetFiles(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "spaceID")
	if !ok {
		return
	}

	files, err := h.svc.GetFiles(ctx.Request.Context(), user, id)
	if err != nil {
		response.Render(ctx, "v1.HandleGetFiles -> h.svc.GetFiles", err)
		return
	}

	ctx.JSON(http.StatusOK, files)
}

// HandleGetFile godoc
// @Summary      Download a file of a space repository
// @Tags         space files
// @Produce      octet-stream
// @Param        spaceID  path  string  true  "space id"
// @Param        fileID   path  string  true  "file id"
// @Success      200
// @Router       /spaces/{spaceID}/files/{fileID} [get]
// @Security BearerAuth
func (h *SpaceHandler) HandleGetFile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "spaceID")
	if !ok {
		return
	}
	fileID, ok := pathID(ctx, "fileID")
	if !ok {
		return
	}

	obj, err := h.svc.GetFile(ctx.Request.Context(), user, id, fileID)
	if err != nil {
		response.Render(ctx, "v1.HandleGetFile -> h.svc.GetFile", err)
		return
	}

	serveObject(ctx, obj)
}

// HandleAddFile godoc
// @Summary      Upload a file into a space repository
// @Tags         space files
// @Accept       multipart/form-data
// @Produce      json
// @Param        spaceID  path      string  true  "space id"
// @Param        file     formData  file    true  "file"
// @Success      201      {object}  domain.FileEntry
// @Router       /spaces/{spaceID}/files [post]
// @Security BearerAuth
func (h *SpaceHandler) HandleAddFile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "spaceID")
	if !ok {
		return
	}
	upload, ok := singleUpload(ctx, "file")
	if !ok {
		return
	}

	entry, err := h.svc.AddRepoFile(ctx.Request.Context(), user, id, upload)
	if err != nil {
		response.Render(ctx, "v1.HandleAddFile -> h.svc.AddRepoFile", err)
		return
	}

	ctx.JSON(http.StatusCreated, entry)
}

// HandleRemoveFile godoc
// @Summary      Remove a manually uploaded file
// @Description  Files attached to posts are removed with their post.
// @Tags         space files
// @Param        spaceID  path  string  true  "space id"
// @Param        fileID   path  string  true  "file id"
// @Success      204
// @Failure      409  {object}  response.Err
// @Router       /spaces/{spaceID}/files/{fileID} [delete]
// @Security BearerAuth
func (h *SpaceHandler) HandleRemoveFile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "spaceID")
	if !ok {
		return
	}
	fileID, ok := pathID(ctx, "fileID")
	if !ok {
		return
	}

	if err := h.svc.RemoveRepoFile(ctx.Request.Context(), user, id, fileID); err != nil {
		response.Render(ctx, "v1.HandleRemoveFile -> h.svc.RemoveRepoFile", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
