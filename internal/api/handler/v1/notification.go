package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vecollab/backend/internal/api/handler/v1/response"
	"github.com/vecollab/backend/internal/domain"
)

type NotificationService interface {
	List(ctx context.Context, username string, includeAcknowledged bool) ([]domain.Notification, error)
	Acknowledge(ctx context.Context, username string, id domain.ID) error
	AcknowledgeAll(ctx context.Context, username string) (int64, error)
}

type NotificationHandler struct {
	svc NotificationService
}

func NewNotificationHandler(svc NotificationService) *NotificationHandler {
	return &NotificationHandler{
		svc: svc,
	}
}

// HandleList godoc
// @Summary      Notifications of the current user
// @Tags         notifications
// @Produce      json
// @Param        all  query    bool  false  "include acknowledged notifications"
// @Success      200  {array}  domain.Notification
// @Router       /notifications [get]
// @Security BearerAuth
func (h *NotificationHandler) HandleList(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	notifications, err := h.svc.List(ctx.Request.Context(), user, queryBool(ctx, "all"))
	if err != nil {
		response.Render(ctx, "v1.HandleList -> h.svc.List", err)
		return
	}

	ctx.JSON(http.StatusOK, notifications)
}

// HandleAcknowledge godoc
// @Summary      Acknowledge a notification
// @Tags         notifications
// @Param        notificationID  path  string  true  "notification id"
// @Success      204
// @Failure      404  {object}  response.Err
// @Router       /notifications/{notificationID}/acknowledge [post]
// @Security BearerAuth
func (h *NotificationHandler) HandleAcknowledge(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "notificationID")
	if !ok {
		return
	}

	if err := h.svc.Acknowledge(ctx.Request.Context(), user, id); err != nil {
		response.Render(ctx, "v1.HandleAcknowledge -> h.svc.Acknowledge", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleAcknowledgeAll godoc
// @Summary      Acknowledge every notification
// @Tags         notifications
// @Produce      json
// @Success      200  {object}  map[string]int64
// @Router       /notifications/acknowledge [post]
// @Security BearerAuth
func (h *NotificationHandler) HandleAcknowledgeAll(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	n, err := h.svc.AcknowledgeAll(ctx.Request.Context(), user)
	if err != nil {
		response.Render(ctx, "v1.HandleAcknowledgeAll -> h.svc.AcknowledgeAll", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"acknowledged": n})
}
