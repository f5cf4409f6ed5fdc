package v1

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vecollab/backend/internal/api/handler/v1/request"
	"github.com/vecollab/backend/internal/api/handler/v1/response"
	"github.com/vecollab/backend/internal/domain"
)

type ACLService interface {
	GetRules(ctx context.Context, username, scope string) ([]domain.ACLRule, error)
	SetRule(ctx context.Context, username string, role domain.Role, scope string, c domain.Capability, value bool) error
}

type TaxonomyService interface {
	GetTaxonomy(ctx context.Context) (json.RawMessage, error)
	PutTaxonomy(ctx context.Context, actor string, tree any) error
}

// AdminHandler serves the access rules and the material taxonomy.
type AdminHandler struct {
	acl      ACLService
	taxonomy TaxonomyService
}

func NewAdminHandler(acl ACLService, taxonomy TaxonomyService) *AdminHandler {
	return &AdminHandler{
		acl:      acl,
		taxonomy: taxonomy,
	}
}

// HandleGetRules godoc
// @Summary      Access rules of a scope
// @Description  scope is "global" or a space id.
// @Tags         admin
// @Produce      json
// @Param        scope  query    string  true  "scope"
// @Success      200    {array}  domain.ACLRule
// @Failure      403    {object}  response.Err
// @Router       /acl [get]
// @Security BearerAuth
func (h *AdminHandler) HandleGetRules(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	rules, err := h.acl.GetRules(ctx.Request.Context(), user, ctx.DefaultQuery("scope", domain.GlobalScope))
	if err != nil {
		response.Render(ctx, "v1.HandleGetRules -> h.acl.GetRules", err)
		return
	}

	ctx.JSON(http.StatusOK, rules)
}

// HandleSetRule godoc
// @Summary      Grant or revoke a capability
// @Tags         admin
// @Accept       json
// @Param        request  body  request.ACLRuleRequest  true  "rule change"
// @Success      204
// @Failure      400  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Router       /acl [put]
// @Security BearerAuth
func (h *AdminHandler) HandleSetRule(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req request.ACLRuleRequest
	if !bindJSON(ctx, &req) {
		return
	}

	err := h.acl.SetRule(ctx.Request.Context(), user, domain.Role(req.Role), req.Scope, domain.Capability(req.Capability), *req.Value)
	if err != nil {
		response.Render(ctx, "v1.HandleSetRule -> h.acl.SetRule", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleGetTaxonomy godoc
// @Summary      Material taxonomy
// @Tags         taxonomy
// @Produce      json
// @Success      200  {array}  object
// @Router       /taxonomy [get]
func (h *AdminHandler) HandleGetTaxonomy(ctx *gin.Context) {
	tree, err := h.taxonomy.GetTaxonomy(ctx.Request.Context())
	if err != nil {
		response.Render(ctx, "v1.HandleGetTaxonomy -> h.taxonomy.GetTaxonomy", err)
		return
	}

	ctx.Data(http.StatusOK, "application/json; charset=utf-8", tree)
}

// HandlePutTaxonomy godoc
// @Summary      Replace the material taxonomy
// @Tags         taxonomy
// @Accept       json
// @Param        tree  body  []object  true  "taxonomy tree"
// @Success      204
// @Failure      403  {object}  response.Err
// @Router       /taxonomy [put]
// @Security BearerAuth
func (h *AdminHandler) HandlePutTaxonomy(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var tree []any
	if err := ctx.ShouldBindJSON(&tree); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := h.taxonomy.PutTaxonomy(ctx.Request.Context(), user, tree); err != nil {
		response.Render(ctx, "v1.HandlePutTaxonomy -> h.taxonomy.PutTaxonomy", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
