package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vecollab/backend/internal/api/handler/v1/request"
	"github.com/vecollab/backend/internal/api/handler/v1/response"
	"github.com/vecollab/backend/internal/domain"
)

type ChatService interface {
	GetOrCreateRoom(ctx context.Context, actor string, members []string, name *string) (domain.Room, error)
	ListRooms(ctx context.Context, username string) ([]domain.Room, error)
	GetMessages(ctx context.Context, username string, id domain.ID) (domain.Room, error)
	SendMessage(ctx context.Context, sender string, roomID domain.ID, text string) (domain.Message, error)
	Acknowledge(ctx context.Context, username string, id domain.ID) error
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{
		svc: svc,
	}
}

// HandleGetOrCreateRoom godoc
// @Summary      Open a chat room
// @Description  Returns the existing room with exactly these members and the user, or creates it.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        request  body      request.RoomRequest  true  "members"
// @Success      200      {object}  domain.Room
// @Router       /chat/rooms [post]
// @Security BearerAuth
func (h *ChatHandler) HandleGetOrCreateRoom(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req request.RoomRequest
	if !bindJSON(ctx, &req) {
		return
	}

	room, err := h.svc.GetOrCreateRoom(ctx.Request.Context(), user, req.Members, req.Name)
	if err != nil {
		response.Render(ctx, "v1.HandleGetOrCreateRoom -> h.svc.GetOrCreateRoom", err)
		return
	}

	ctx.JSON(http.StatusOK, room)
}

// HandleListRooms godoc
// @Summary      Chat rooms of the current user
// @Tags         chat
// @Produce      json
// @Success      200  {array}  domain.Room
// @Router       /chat/rooms [get]
// @Security BearerAuth
func (h *ChatHandler) HandleListRooms(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	rooms, err := h.svc.ListRooms(ctx.Request.Context(), user)
	if err != nil {
		response.Render(ctx, "v1.HandleListRooms -> h.svc.ListRooms", err)
		return
	}

	ctx.JSON(http.StatusOK, rooms)
}

// HandleGetMessages godoc
// @Summary      Room with its messages
// @Tags         chat
// @Produce      json
// @Param        roomID  path      string  true  "room id"
// @Success      200     {object}  domain.Room
// @Failure      403     {object}  response.Err
// @Router       /chat/rooms/{roomID} [get]
// @Security BearerAuth
func (h *ChatHandler) HandleGetMessages(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "roomID")
	if !ok {
		return
	}

	room, err := h.svc.GetMessages(ctx.Request.Context(), user, id)
	if err != nil {
		response.Render(ctx, "v1.HandleGetMessages -> h.svc.GetMessages", err)
		return
	}

	ctx.JSON(http.StatusOK, room)
}

// HandleSendMessage godoc
// @Summary      Send a message
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        roomID   path      string                  true  "room id"
// @Param        request  body      request.MessageRequest  true  "message"
// @Success      201      {object}  domain.Message
// @Router       /chat/rooms/{roomID}/messages [post]
// @Security BearerAuth
func (h *ChatHandler) HandleSendMessage(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "roomID")
	if !ok {
		return
	}
	var req request.MessageRequest
	if !bindJSON(ctx, &req) {
		return
	}

	msg, err := h.svc.SendMessage(ctx.Request.Context(), user, id, req.Text)
	if err != nil {
		response.Render(ctx, "v1.HandleSendMessage -> h.svc.SendMessage", err)
		return
	}

	ctx.JSON(http.StatusCreated, msg)
}

// HandleAcknowledgeMessage godoc
// @Summary      Mark a message as read
// @Tags         chat
// @Param        messageID  path  string  true  "message id"
// @Success      204
// @Router       /chat/messages/{messageID}/acknowledge [post]
// @Security BearerAuth
func (h *ChatHandler) HandleAcknowledgeMessage(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "messageID")
	if !ok {
		return
	}

	if err := h.svc.Acknowledge(ctx.Request.Context(), user, id); err != nil {
		response.Render(ctx, "v1.HandleAcknowledgeMessage -> h.svc.Acknowledge", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
