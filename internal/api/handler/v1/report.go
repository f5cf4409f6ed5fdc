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

type ReportService interface {
	Create(ctx context.Context, reporter string, t domain.ReportType, itemID, reason string) (domain.Report, error)
	ListOpen(ctx context.Context, actor string) ([]domain.Report, error)
	Get(ctx context.Context, actor string, id domain.ID) (service.ReportedItem, error)
	Close(ctx context.Context, actor string, id domain.ID) error
	DeleteItem(ctx context.Context, actor string, id domain.ID) error
}

type ReportHandler struct {
	svc ReportService
}

func NewReportHandler(svc ReportService) *ReportHandler {
	return &ReportHandler{
		svc: svc,
	}
}

// HandleCreateReport godoc
// @Summary      Report an item to the moderators
// @Tags         reports
// @Accept       json
// @Produce      json
// @Param        request  body      request.ReportRequest  true  "report"
// @Success      201      {object}  domain.Report
// @Failure      400      {object}  response.Err
// @Router       /reports [post]
// @Security BearerAuth
func (h *ReportHandler) HandleCreateReport(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req request.ReportRequest
	if !bindJSON(ctx, &req) {
		return
	}

	report, err := h.svc.Create(ctx.Request.Context(), user, domain.ReportType(req.Type), req.ItemID, req.Reason)
	if err != nil {
		response.Render(ctx, "v1.HandleCreateReport -> h.svc.Create", err)
		return
	}

	ctx.JSON(http.StatusCreated, report)
}

// HandleListReports godoc
// @Summary      Open reports
// @Tags         reports
// @Produce      json
// @Success      200  {array}   domain.Report
// @Failure      403  {object}  response.Err
// @Router       /reports [get]
// @Security BearerAuth
func (h *ReportHandler) HandleListReports(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	reports, err := h.svc.ListOpen(ctx.Request.Context(), user)
	if err != nil {
		response.Render(ctx, "v1.HandleListReports -> h.svc.ListOpen", err)
		return
	}

	ctx.JSON(http.StatusOK, reports)
}

// HandleGetReport godoc
// @Summary      A report with the reported item
// @Tags         reports
// @Produce      json
// @Param        reportID  path      string  true  "report id"
// @Success      200       {object}  service.ReportedItem
// @Router       /reports/{reportID} [get]
// @Security BearerAuth
func (h *ReportHandler) HandleGetReport(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "reportID")
	if !ok {
		return
	}

	item, err := h.svc.Get(ctx.Request.Context(), user, id)
	if err != nil {
		response.Render(ctx, "v1.HandleGetReport -> h.svc.Get", err)
		return
	}
	if plan, ok := item.Item.(domain.VEPlan); ok {
		item.Item = plan.ToMap()
	}

	ctx.JSON(http.StatusOK, item)
}

// HandleCloseReport godoc
// @Summary      Close a report without action
// @Tags         reports
// @Param        reportID  path  string  true  "report id"
// @Success      204
// @Router       /reports/{reportID}/close [post]
// @Security BearerAuth
func (h *ReportHandler) HandleCloseReport(ctx *gin.Context) {
	h.resolve(ctx, "v1.HandleCloseReport -> h.svc.Close", h.svc.Close)
}

// HandleDeleteReportedItem godoc
// @Summary      Delete the reported item and close the report
// @Tags         reports
// @Param        reportID  path  string  true  "report id"
// @Success      204
// @Router       /reports/{reportID}/delete_item [post]
// @Security BearerAuth
func (h *ReportHandler) HandleDeleteReportedItem(ctx *gin.Context) {
	h.resolve(ctx, "v1.HandleDeleteReportedItem -> h.svc.DeleteItem", h.svc.DeleteItem)
}

func (h *ReportHandler) resolve(ctx *gin.Context, site string, op func(ctx context.Context, actor string, id domain.ID) error) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "reportID")
	if !ok {
		return
	}

	if err := op(ctx.Request.Context(), user, id); err != nil {
		response.Render(ctx, site, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
