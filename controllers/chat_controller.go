package controllers

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/services"
)

type replyRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	AdminID        string `json:"admin_id"`
	Message        string `json:"message" validate:"required"`
}

type markReadRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	ReaderType     string `json:"reader_type" validate:"omitempty,oneof=user admin"`
}

// ChatController serves the support chat between store users and staff.
type ChatController struct {
	chat   *services.ChatService
	logger *zap.Logger
}

func NewChatController(chat *services.ChatService, logger *zap.Logger) *ChatController {
	return &ChatController{chat: chat, logger: logger}
}

func (cc *ChatController) actions() map[string]actionHandler {
	return map[string]actionHandler{
		"chat/conversations":  {access: accessPublic, handle: cc.Conversations},
		"chat/messages":       {access: accessPublic, handle: cc.Messages},
		"chat/send":           {method: "POST", access: accessPublic, handle: cc.Send},
		"chat/reply":          {method: "POST", access: accessAdmin, handle: cc.Reply},
		"chat/mark-read":      {method: "POST", access: accessPublic, handle: cc.MarkRead},
		"chat/close":          {method: "POST", access: accessPublic, handle: cc.Close},
		"admin/conversations": {access: accessAdmin, handle: cc.AdminConversations},
	}
}

// chatUser pins signed-in chat users to their own id.
func chatUser(req *actionRequest, requested string) string {
	if p := req.principal; p != nil && p.Role == models.RoleUser {
		return p.UserID
	}
	return requested
}

func (cc *ChatController) Conversations(c echo.Context, req *actionRequest) (*actionResult, error) {
	userID := chatUser(req, req.String("user_id"))
	if userID == "" {
		return nil, models.MissingField("user_id")
	}
	convs, err := cc.chat.Conversations(c.Request().Context(), userID)
	if err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{
		"conversations": convs,
		"count":         len(convs),
	}), nil
}

func (cc *ChatController) Messages(c echo.Context, req *actionRequest) (*actionResult, error) {
	msgs, err := cc.chat.Messages(c.Request().Context(), req.String("conversation_id"))
	if err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{
		"messages": msgs,
		"count":    len(msgs),
	}), nil
}

func (cc *ChatController) Send(c echo.Context, req *actionRequest) (*actionResult, error) {
	var in services.SendMessageInput
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	in.UserID = chatUser(req, in.UserID)

	res, err := cc.chat.SendMessage(c.Request().Context(), in)
	if err != nil {
		return nil, err
	}
	return okMessage("Message sent", res), nil
}

func (cc *ChatController) Reply(c echo.Context, req *actionRequest) (*actionResult, error) {
	var in replyRequest
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	if err := validate(c, &in); err != nil {
		return nil, err
	}
	if in.AdminID == "" {
		in.AdminID = req.principal.UserID
	}

	msg, err := cc.chat.Reply(c.Request().Context(), in.ConversationID, in.AdminID, in.Message)
	if err != nil {
		return nil, err
	}
	return okMessage("Reply sent", map[string]interface{}{
		"message_id": msg.MessageID,
		"message":    msg,
	}), nil
}

func (cc *ChatController) MarkRead(c echo.Context, req *actionRequest) (*actionResult, error) {
	var in markReadRequest
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	if err := validate(c, &in); err != nil {
		return nil, err
	}
	if in.ReaderType == models.SenderAdmin && !req.isAdmin() {
		return nil, models.Forbidden("Admin access required")
	}

	if err := cc.chat.MarkRead(c.Request().Context(), in.ConversationID, in.ReaderType); err != nil {
		return nil, err
	}
	return okMessage("Messages marked as read", nil), nil
}

func (cc *ChatController) Close(c echo.Context, req *actionRequest) (*actionResult, error) {
	conversationID := req.String("conversation_id")
	if err := cc.chat.Close(c.Request().Context(), conversationID); err != nil {
		return nil, err
	}
	return okMessage("Conversation closed", map[string]string{"conversation_id": conversationID}), nil
}

func (cc *ChatController) AdminConversations(c echo.Context, req *actionRequest) (*actionResult, error) {
	limit, err := req.Int("limit", 0)
	if err != nil {
		return nil, err
	}
	convs, err := cc.chat.AdminConversations(c.Request().Context(), req.String("status"), limit)
	if err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{
		"conversations": convs,
		"count":         len(convs),
	}), nil
}
