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

type PlanService interface {
	Get(ctx context.Context, id domain.ID, username string) (domain.VEPlan, error)
	GetBulk(ctx context.Context, ids []domain.ID, username string) ([]domain.VEPlan, error)
	List(ctx context.Context, f repository.PlanFilter) ([]domain.VEPlan, error)
	Search(ctx context.Context, username, text string) ([]domain.VEPlan, error)
	Insert(ctx context.Context, plan domain.VEPlan, author string) (domain.VEPlan, error)
	UpdateFull(ctx context.Context, plan domain.VEPlan, upsert bool, username string) (domain.VEPlan, error)
	UpdateField(ctx context.Context, id domain.ID, field string, value any, upsert bool, username string) (domain.VEPlan, error)
	AppendStep(ctx context.Context, id domain.ID, step domain.Step, username string) (domain.VEPlan, error)
	PutEvaluationFile(ctx context.Context, id domain.ID, username string, upload service.Upload) (domain.FileRef, error)
	RemoveEvaluationFile(ctx context.Context, id domain.ID, username string) error
	PutLiteratureFile(ctx context.Context, id domain.ID, username string, upload service.Upload) (domain.FileRef, error)
	RemoveLiteratureFile(ctx context.Context, id domain.ID, username string, fileID domain.ID) error
	GetFile(ctx context.Context, id, fileID domain.ID, username string) (service.Object, error)
	CopyPlan(ctx context.Context, id domain.ID, username string) (domain.VEPlan, error)
	SetReadPermissions(ctx context.Context, id domain.ID, actor string, usernames []string) error
	SetWritePermissions(ctx context.Context, id domain.ID, actor string, usernames []string) error
	RevokeReadPermissions(ctx context.Context, id domain.ID, actor string, usernames []string) error
	RevokeWritePermissions(ctx context.Context, id domain.ID, actor string, usernames []string) error
	Delete(ctx context.Context, id domain.ID, username string) error
	InsertInvitation(ctx context.Context, inv domain.Invitation, sender string) (domain.ID, error)
	GetInvitation(ctx context.Context, id domain.ID, username string) (domain.Invitation, error)
	SetInvitationReply(ctx context.Context, id domain.ID, username string, accepted bool) error
}

type PlanHandler struct {
	svc PlanService
}

func NewPlanHandler(svc PlanService) *PlanHandler {
	return &PlanHandler{
		svc: svc,
	}
}

func planMaps(plans []domain.VEPlan) []map[string]any {
	out := make([]map[string]any, 0, len(plans))
	for _, p := range plans {
		out = append(out, p.ToMap())
	}
	return out
}

// HandleListPlans godoc
// @Summary      List plans
// @Description  Lists the plans the user owns, the plans shared with them, or both.
// @Tags         plans
// @Produce      json
// @Param        access         query     string  false  "own, shared or all"
// @Param        good_practise  query     bool    false  "only good practise examples"
// @Param        search         query     string  false  "substring of the plan name"
// @Param        sort_by        query     string  false  "sort column"
// @Param        desc           query     bool    false  "descending order"
// @Param        limit          query     int     false  "page size"
// @Param        offset         query     int     false  "page offset"
// @Success      200  {array}   object
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Router       /plans [get]
// @Security BearerAuth
func (h *PlanHandler) HandleListPlans(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var q request.PlanListQuery
	if !bindQuery(ctx, &q) {
		return
	}
	access := repository.PlanAccess(q.Access)
	if access == "" {
		access = repository.AccessAll
	}

	plans, err := h.svc.List(ctx.Request.Context(), repository.PlanFilter{
		Username:     user,
		Access:       access,
		GoodPractise: q.GoodPractise,
		Search:       q.Search,
		SortBy:       q.SortBy,
		Descending:   q.Descending,
		Limit:        q.Limit,
		Offset:       q.Offset,
	})
	if err != nil {
		response.Render(ctx, "v1.HandleListPlans -> h.svc.List", err)
		return
	}

	ctx.JSON(http.StatusOK, planMaps(plans))
}

// HandleSearchPlans godoc
// @Summary      Full text plan search
// @Tags         plans
// @Produce      json
// @Param        q    query     string  true  "search text"
// @Success      200  {array}   object
// @Failure      400  {object}  response.Err
// @Router       /plans/search [get]
// @Security BearerAuth
func (h *PlanHandler) HandleSearchPlans(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	text := ctx.Query("q")
	if text == "" {
		response.RenderErr(ctx, response.ErrBadRequest(&domain.FieldError{Kind: domain.ErrMissingKey, Field: "q"}))
		return
	}

	plans, err := h.svc.Search(ctx.Request.Context(), user, text)
	if err != nil {
		response.Render(ctx, "v1.HandleSearchPlans -> h.svc.Search", err)
		return
	}

	ctx.JSON(http.StatusOK, planMaps(plans))
}

// HandleGetBulk godoc
// @Summary      Get several plans
// @Description  Plans that do not exist or are not readable are left out.
// @Tags         plans
// @Produce      json
// @Param        ids  query     []string  true  "plan ids"
// @Success      200  {array}   object
// @Router       /plans/bulk [get]
// @Security BearerAuth
func (h *PlanHandler) HandleGetBulk(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	ids, err := parseIDs(ctx.QueryArray("ids"))
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(&domain.FieldError{Kind: domain.ErrWrongType, Field: "ids"}))
		return
	}

	plans, err := h.svc.GetBulk(ctx.Request.Context(), ids, user)
	if err != nil {
		response.Render(ctx, "v1.HandleGetBulk -> h.svc.GetBulk", err)
		return
	}

	ctx.JSON(http.StatusOK, planMaps(plans))
}

// HandleGetPlan godoc
// @Summary      Get a plan
// @Tags         plans
// @Produce      json
// @Param        planID  path      string  true  "plan id"
// @Success      200     {object}  object
// @Failure      403     {object}  response.Err
// @Failure      404     {object}  response.Err
// @Router       /plans/{planID} [get]
// @Security BearerAuth
func (h *PlanHandler) HandleGetPlan(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "planID")
	if !ok {
		return
	}

	plan, err := h.svc.Get(ctx.Request.Context(), id, user)
	if err != nil {
		response.Render(ctx, "v1.HandleGetPlan -> h.svc.Get", err)
		return
	}

	ctx.JSON(http.StatusOK, plan.ToMap())
}

// HandleInsertPlan godoc
// @Summary      Create a plan
// @Description  The user becomes author with read and write access.
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        plan  body      object  true  "plan document"
// @Success      201   {object}  object
// @Failure      400   {object}  response.Err
// @Failure      409   {object}  response.Err
// @Router       /plans [post]
// @Security BearerAuth
func (h *PlanHandler) HandleInsertPlan(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	plan, ok := bindPlan(ctx)
	if !ok {
		return
	}

	created, err := h.svc.Insert(ctx.Request.Context(), plan, user)
	if err != nil {
		response.Render(ctx, "v1.HandleInsertPlan -> h.svc.Insert", err)
		return
	}

	ctx.JSON(http.StatusCreated, created.ToMap())
}

// HandleUpdatePlan godoc
// @Summary      Replace a plan
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        planID  path      string  true   "plan id"
// @Param        upsert  query     bool    false  "create the plan when it does not exist"
// @Param        plan    body      object  true   "plan document"
// @Success      200     {object}  object
// @Failure      400     {object}  response.Err
// @Failure      403     {object}  response.Err
// @Failure      404     {object}  response.Err
// @Router       /plans/{planID} [put]
// @Security BearerAuth
func (h *PlanHandler) HandleUpdatePlan(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "planID")
	if !ok {
		return
	}
	plan, ok := bindPlan(ctx)
	if !ok {
		return
	}
	plan.ID = id

	updated, err := h.svc.UpdateFull(ctx.Request.Context(), plan, queryBool(ctx, "upsert"), user)
	if err != nil {
		response.Render(ctx, "v1.HandleUpdatePlan -> h.svc.UpdateFull", err)
		return
	}

	ctx.JSON(http.StatusOK, updated.ToMap())
}

func bindPlan(ctx *gin.Context) (domain.VEPlan, bool) {
	var doc map[string]any
	if err := ctx.ShouldBindJSON(&doc); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return domain.VEPlan{}, false
	}
	plan, err := domain.VEPlanFromMap(doc)
	if err != nil {
		response.RenderErr(ctx, response.FromError(err))
		return domain.VEPlan{}, false
	}

	return plan, true
}

// HandleUpdateField godoc
// @Summary      Update one plan field
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        planID   path      string                      true  "plan id"
// @Param        request  body      request.UpdateFieldRequest  true  "field and value"
// @Success      200      {object}  object
// @Failure      400      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Router       /plans/{planID} [patch]
// @Security BearerAuth
func (h *PlanHandler) HandleUpdateField(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "planID")
	if !ok {
		return
	}
	var req request.UpdateFieldRequest
	if !bindJSON(ctx, &req) {
		return
	}

	plan, err := h.svc.UpdateField(ctx.Request.Context(), id, req.FieldName, req.Value, req.Upsert, user)
	if err != nil {
		response.Render(ctx, "v1.HandleUpdateField -> h.svc.UpdateField", err)
		return
	}

	ctx.JSON(http.StatusOK, plan.ToMap())
}

// HandleAppendStep godoc
// @Summary      Append a step to a plan
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        planID  path      string  true  "plan id"
// @Param        step    body      object  true  "step document"
// @Success      200     {object}  object
// @Failure      400     {object}  response.Err
// @Router       /plans/{planID}/steps [post]
// @Security BearerAuth
func (h *PlanHandler) HandleAppendStep(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "planID")
	if !ok {
		return
	}
	var doc map[string]any
	if err := ctx.ShouldBindJSON(&doc); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	step, err := domain.StepFromMap(doc)
	if err != nil {
		response.RenderErr(ctx, response.FromError(err))
		return
	}

	plan, err := h.svc.AppendStep(ctx.Request.Context(), id, step, user)
	if err != nil {
		response.Render(ctx, "v1.HandleAppendStep -> h.svc.AppendStep", err)
		return
	}

	ctx.JSON(http.StatusOK, plan.ToMap())
}

// HandleDeletePlan godoc
// @Summary      Delete a plan
// @Description  Only the author or a platform admin may delete a plan. Its files are removed too.
// @Tags         plans
// @Param        planID  path  string  true  "plan id"
// @Success      204
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /plans/{planID} [delete]
// @Security BearerAuth
func (h *PlanHandler) HandleDeletePlan(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "planID")
	if !ok {
		return
	}

	if err := h.svc.Delete(ctx.Request.Context(), id, user); err != nil {
		response.Render(ctx, "v1.HandleDeletePlan -> h.svc.Delete", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleCopyPlan godoc
// @Summary      Copy a plan
// @Description  The copy belongs to the user and has its own copies of every file.
// @Tags         plans
// @Produce      json
// @Param        planID  path      string  true  "plan id"
// @Success      201     {object}  object
// @Router       /plans/{planID}/copy [post]
// @Security BearerAuth
func (h *PlanHandler) HandleCopyPlan(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "planID")
	if !ok {
		return
	}

	plan, err := h.svc.CopyPlan(ctx.Request.Context(), id, user)
	if err != nil {
		response.Render(ctx, "v1.HandleCopyPlan -> h.svc.CopyPlan", err)
		return
	}

	ctx.JSON(http.StatusCreated, plan.ToMap())
}

// HandlePutEvaluationFile godoc
// @Summary      Upload the evaluation file of a plan
// @Tags         plans
// @Accept       multipart/form-data
// @Produce      json
// @Param        planID  path      string  true  "plan id"
// @Param        file    formData  file    true  "evaluation file"
// @Success      200     {object}  domain.FileRef
// @Router       /plans/{planID}/evaluation_file [put]
// @Security BearerAuth
func (h *PlanHandler) HandlePutEvaluationFile(ctx *gin.Context) {
	h.putFile(ctx, "v1.HandlePutEvaluationFile -> h.svc.PutEvaluationFile", h.svc.PutEvaluationFile)
}

// HandlePutLiteratureFile godoc
// @Summary      Add a literature file to a plan
// @Tags         plans
// @Accept       multipart/form-data
// @Produce      json
// @Param        planID  path      string  true  "plan id"
// @Param        file    formData  file    true  "literature file"
// @Success      200     {object}  domain.FileRef
// @Failure      409     {object}  response.Err
// @Router       /plans/{planID}/literature_files [post]
// @Security BearerAuth
func (h *PlanHandler) HandlePutLiteratureFile(ctx *gin.Context) {
	h.putFile(ctx, "v1.HandlePutLiteratureFile -> h.svc.PutLiteratureFile", h.svc.PutLiteratureFile)
}

func (h *PlanHandler) putFile(
	ctx *gin.Context,
	site string,
	put func(ctx context.Context, id domain.ID, username string, upload service.Upload) (domain.FileRef, error),
) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "planID")
	if !ok {
		return
	}
	upload, ok := singleUpload(ctx, "file")
	if !ok {
		return
	}

	ref, err := put(ctx.Request.Context(), id, user, upload)
	if err != nil {
		response.Render(ctx, site, err)
		return
	}

	ctx.JSON(http.StatusOK, ref)
}

// HandleRemoveEvaluationFile godoc
// @Summary      Remove the evaluation file of a plan
// @Tags         plans
// @Param        planID  path  string  true  "plan id"
// @Success      204
// @Router       /plans/{planID}/evaluation_file [delete]
// @Security BearerAuth
func (h *PlanHandler) HandleRemoveEvaluationFile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "planID")
	if !ok {
		return
	}

	if err := h.svc.RemoveEvaluationFile(ctx.Request.Context(), id, user); err != nil {
		response.Render(ctx, "v1.HandleRemoveEvaluationFile -> h.svc.RemoveEvaluationFile", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleRemoveLiteratureFile godoc
// @Summary      Remove a literature file of a plan
// @Tags         plans
// @Param        planID  path  string  true  "plan id"
// @Param        fileID  path  string  true  "file id"
// @Success      204
// @Router       /plans/{planID}/literature_files/{fileID} [delete]
// @Security BearerAuth
func (h *PlanHandler) HandleRemoveLiteratureFile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "planID")
	if !ok {
		return
	}
	fileID, ok := pathID(ctx, "fileID")
	if !ok {
		return
	}

	if err := h.svc.RemoveLiteratureFile(ctx.Request.Context(), id, user, fileID); err != nil {
		response.Render(ctx, "v1.HandleRemoveLiteratureFile -> h.svc.RemoveLiteratureFile", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleGetPlanFile godoc
// @Summary      Download a file of a plan
// @Tags         plans
// @Produce      octet-stream
// @Param        planID  path  string  true  "plan id"
// @Param        fileID  path  string  true  "file id"
// @Success      200
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /plans/{planID}/files/{fileID} [get]
// @Security BearerAuth
func (h *PlanHandler) HandleGetPlanFile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "planID")
	if !ok {
		return
	}
	fileID, ok := pathID(ctx, "fileID")
	if !ok {
		return
	}

	obj, err := h.svc.GetFile(ctx.Request.Context(), id, fileID, user)
	if err != nil {
		response.Render(ctx, "v1.HandleGetPlanFile -> h.svc.GetFile", err)
		return
	}

	serveObject(ctx, obj)
}

type permissionOp func(ctx context.Context, id domain.ID, actor string, usernames []string) error

func (h *PlanHandler) permissions(ctx *gin.Context, site string, op permissionOp) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "planID")
	if !ok {
		return
	}
	var req request.PermissionsRequest
	if !bindJSON(ctx, &req) {
		return
	}

	if err := op(ctx.Request.Context(), id, user, req.Usernames); err != nil {
		response.Render(ctx, site, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleGrantRead godoc
// @Summary      Grant read access on a plan
// @Description  Only the author may change permissions.
// @Tags         plans
// @Accept       json
// @Param        planID   path  string                      true  "plan id"
// @Param        request  body  request.PermissionsRequest  true  "usernames"
// @Success      204
// @Failure      403  {object}  response.Err
// @Router       /plans/{planID}/read_access [post]
// @Security BearerAuth
func (h *PlanHandler) HandleGrantRead(ctx *gin.Context) {
	h.permissions(ctx, "v1.HandleGrantRead -> h.svc.SetReadPermissions", h.svc.SetReadPermissions)
}

// HandleGrantWrite godoc
// @Summary      Grant write access on a plan
// @Description  Write access implies read access.
// @Tags         plans
// @Accept       json
// @Param        planID   path  string                      true  "plan id"
// @Param        request  body  request.PermissionsRequest  true  "usernames"
// @Success      204
// @Router       /plans/{planID}/write_access [post]
// @Security BearerAuth
func (h *PlanHandler) HandleGrantWrite(ctx *gin.Context) {
	h.permissions(ctx, "v1.HandleGrantWrite -> h.svc.SetWritePermissions", h.svc.SetWritePermissions)
}

// HandleRevokeRead godoc
// @Summary      Revoke read access on a plan
// @Description  Revoking read access revokes write access too.
// @Tags         plans
// @Accept       json
// @Param        planID   path  string                      true  "plan id"
// @Param        request  body  request.PermissionsRequest  true  "usernames"
// @Success      204
// @Router       /plans/{planID}/read_access [delete]
// @Security BearerAuth
func (h *PlanHandler) HandleRevokeRead(ctx *gin.Context) {
	h.permissions(ctx, "v1.HandleRevokeRead -> h.svc.RevokeReadPermissions", h.svc.RevokeReadPermissions)
}

// HandleRevokeWrite godoc
// @Summary      Revoke write access on a plan
// @Tags         plans
// @Accept       json
// @Param        planID   path  string                      true  "plan id"
// @Param        request  body  request.PermissionsRequest  true  "usernames"
// @Success      204
// @Router       /plans/{planID}/write_access [delete]
// @Security BearerAuth
func (h *PlanHandler) HandleRevokeWrite(ctx *gin.Context) {
	h.permissions(ctx, "v1.HandleRevokeWrite -> h.svc.RevokeWritePermissions", h.svc.RevokeWritePermissions)
}

// HandleInvite godoc
// @Summary      Invite a user to a virtual exchange
// @Description  With a plan id the recipient gains read access to the plan.
// @Tags         invitations
// @Accept       json
// @Produce      json
// @Param        request  body      request.InvitationRequest  true  "invitation"
// @Success      201      {object}  map[string]string
// @Failure      400      {object}  response.Err
// @Router       /invitations [post]
// @Security BearerAuth
func (h *PlanHandler) HandleInvite(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req request.InvitationRequest
	if !bindJSON(ctx, &req) {
		return
	}
	planID, err := optionalID(req.PlanID)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	id, err := h.svc.InsertInvitation(ctx.Request.Context(), domain.Invitation{
		PlanID:    planID,
		Recipient: req.Recipient,
		Message:   req.Message,
	}, user)
	if err != nil {
		response.Render(ctx, "v1.HandleInvite -> h.svc.InsertInvitation", err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"invitation_id": id.Hex()})
}

// HandleGetInvitation godoc
// @Summary      Get an invitation
// @Description  Only sender and recipient may read an invitation.
// @Tags         invitations
// @Produce      json
// @Param        invitationID  path      string  true  "invitation id"
// @Success      200           {object}  domain.Invitation
// @Failure      403           {object}  response.Err
// @Failure      404           {object}  response.Err
// @Router       /invitations/{invitationID} [get]
// @Security BearerAuth
func (h *PlanHandler) HandleGetInvitation(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "invitationID")
	if !ok {
		return
	}

	inv, err := h.svc.GetInvitation(ctx.Request.Context(), id, user)
	if err != nil {
		response.Render(ctx, "v1.HandleGetInvitation -> h.svc.GetInvitation", err)
		return
	}

	ctx.JSON(http.StatusOK, inv)
}

// HandleReplyInvitation godoc
// @Summary      Accept or decline an invitation
// @Description  Replying twice answers 304.
// @Tags         invitations
// @Accept       json
// @Param        invitationID  path  string                          true  "invitation id"
// @Param        request       body  request.InvitationReplyRequest  true  "reply"
// @Success      204
// @Success      304
// @Failure      403  {object}  response.Err
// @Router       /invitations/{invitationID}/reply [post]
// @Security BearerAuth
func (h *PlanHandler) HandleReplyInvitation(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "invitationID")
	if !ok {
		return
	}
	var req request.InvitationReplyRequest
	if !bindJSON(ctx, &req) {
		return
	}

	if err := h.svc.SetInvitationReply(ctx.Request.Context(), id, user, *req.Accepted); err != nil {
		response.Render(ctx, "v1.HandleReplyInvitation -> h.svc.SetInvitationReply", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
