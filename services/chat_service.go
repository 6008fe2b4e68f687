package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/repositories"
	"github.com/HSouheill/commercive_backend/utils"
)

const (
	lastMessagePreview           = 100
	defaultConversationListLimit = 50
	assistantSenderID            = "ai-assistant"
	readerUser                   = "user"
	readerAdmin                  = "admin"
)

var handoffPhrases = []string{
	"connect to representative",
	"human",
	"speak to someone",
	"real person",
	"agent",
	"support team",
	"talk to human",
}

// RequestsHuman reports whether a user message asks for a human representative.
func RequestsHuman(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range handoffPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// SendMessageInput is a user message. An empty ConversationID opens a new conversation.
type SendMessageInput struct {
	UserID         string `json:"user_id"`
	StoreURL       string `json:"store_url"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	EnableAI       *bool  `json:"enable_ai"`
	RequestHuman   bool   `json:"request_human"`
}

type SendMessageResult struct {
	ConversationID    string `json:"conversation_id"`
	MessageID         string `json:"message_id"`
	AIResponse        string `json:"ai_response,omitempty"`
	AIMessageID       string `json:"ai_message_id,omitempty"`
	IsNewConversation bool   `json:"is_new_conversation"`
	HumanRequested    bool   `json:"human_requested"`
}

type ChatService struct {
	store     repositories.Store
	assistant Assistant
	events    EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewChatService(store repositories.Store, assistant Assistant, events EventPublisher, logger *zap.Logger) *ChatService {
	return &ChatService{
		store:     store,
		assistant: assistant,
		events:    publisherOrNop(events),
		logger:    logger,
		now:       time.Now,
	}
}

// SendMessage stores a user message and, unless a human was requested, answers it
// with the assistant. Handoff phrases flag the conversation for staff instead.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageResult, error) {
	text := strings.TrimSpace(in.Message)
	if in.UserID == "" {
		return nil, models.MissingField("user_id")
	}
	if text == "" {
		return nil, models.MissingField("message")
	}
	enableAI := in.EnableAI == nil || *in.EnableAI

	now := s.now().UTC()
	result := &SendMessageResult{ConversationID: in.ConversationID, HumanRequested: in.RequestHuman}

	if in.ConversationID == "" {
		conv := &models.Conversation{
			ConversationID: utils.GenerateID(utils.ConversationPrefix),
			UserID:         in.UserID,
			StoreURL:       in.StoreURL,
			Status:         models.ConversationOpen,
			AIEnabled:      enableAI,
			HumanRequested: in.RequestHuman,
			LastMessage:    utils.Truncate(text, lastMessagePreview),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if in.RequestHuman {
			conv.UnreadAdmin = 1
		}
		if err := s.store.Put(ctx, repositories.TableConversations, conversationKey(conv.ConversationID), conv); err != nil {
			return nil, models.StoreUnavailable("create conversation", err)
		}
		result.ConversationID = conv.ConversationID
		result.IsNewConversation = true
	} else {
		upd := repositories.Update{
			Set: map[string]interface{}{
				"updated_at":   now,
				"last_message": utils.Truncate(text, lastMessagePreview),
			},
		}
		if in.RequestHuman || !enableAI {
			upd.Inc = map[string]int64{"unread_admin": 1}
		}
		if in.RequestHuman {
			upd.Set["human_requested"] = true
		}
		if err := s.updateConversation(ctx, in.ConversationID, upd); err != nil {
			return nil, err
		}
	}

	userMsg := &models.Message{
		MessageID:      utils.GenerateID(utils.MessagePrefix),
		ConversationID: result.ConversationID,
		SenderType:     models.SenderUser,
		SenderID:       in.UserID,
		MessageText:    text,
		CreatedAt:      now,
	}
	if err := s.putMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	result.MessageID = userMsg.MessageID

	if in.RequestHuman {
		s.events.Publish(EventSupportHandoff, result)
	}
	if !enableAI || in.RequestHuman {
		return result, nil
	}

	var reply string
	if RequestsHuman(text) {
		err := s.updateConversation(ctx, result.ConversationID, repositories.Update{
			Set: map[string]interface{}{"human_requested": true},
			Inc: map[string]int64{"unread_admin": 1},
		})
		if err != nil {
			return nil, err
		}
		reply = HandoffReply
		result.HumanRequested = true
		s.events.Publish(EventSupportHandoff, result)
	} else {
		reply = s.assistantReply(ctx, result.ConversationID, userMsg.MessageID, text)
	}

	replyAt := s.now().UTC()
	aiMsg := &models.Message{
		MessageID:      utils.GenerateID(utils.MessagePrefix),
		ConversationID: result.ConversationID,
		SenderType:     models.SenderAI,
		SenderID:       assistantSenderID,
		MessageText:    reply,
		CreatedAt:      replyAt,
	}
	if err := s.putMessage(ctx, aiMsg); err != nil {
		return nil, err
	}
	err := s.updateConversation(ctx, result.ConversationID, repositories.Update{
		Set: map[string]interface{}{
			"updated_at":   replyAt,
			"last_message": utils.Truncate(reply, lastMessagePreview),
		},
		Inc: map[string]int64{"unread_user": 1},
	})
	if err != nil {
		return nil, err
	}

	result.AIResponse = reply
	result.AIMessageID = aiMsg.MessageID
	return result, nil
}

// assistantReply never fails; assistant errors become a canned reply.
func (s *ChatService) assistantReply(ctx context.Context, conversationID, currentID, text string) string {
	if s.assistant == nil {
		return AssistantUnavailableReply
	}

	history, err := s.Messages(ctx, conversationID)
	if err != nil {
		s.logger.Warn("Conversation history unavailable", zap.String("conversation_id", conversationID), zap.Error(err))
		history = nil
	}
	prior := make([]models.Message, 0, len(history))
	for _, m := range history {
		if m.MessageID != currentID {
			prior = append(prior, m)
		}
	}

	reply, err := s.assistant.Reply(ctx, prior, text)
	switch {
	case errors.Is(err, ErrAssistantNotConfigured):
		return AssistantUnavailableReply
	case err != nil:
		s.logger.Warn("Assistant reply failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return AssistantFailureReply
	case reply == "":
		return AssistantFailureReply
	}
	return reply
}

// Reply stores a staff message on a conversation.
func (s *ChatService) Reply(ctx context.Context, conversationID, adminID, message string) (*models.Message, error) {
	text := strings.TrimSpace(message)
	switch {
	case conversationID == "":
		return nil, models.MissingField("conversation_id")
	case adminID == "":
		return nil, models.MissingField("admin_id")
	case text == "":
		return nil, models.MissingField("message")
	}

	now := s.now().UTC()
	err := s.updateConversation(ctx, conversationID, repositories.Update{
		Set: map[string]interface{}{
			"updated_at":   now,
			"last_message": utils.Truncate(text, lastMessagePreview),
		},
		Inc: map[string]int64{"unread_user": 1},
	})
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		MessageID:      utils.GenerateID(utils.MessagePrefix),
		ConversationID: conversationID,
		SenderType:     models.SenderAdmin,
		SenderID:       adminID,
		MessageText:    text,
		CreatedAt:      now,
	}
	if err := s.putMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkRead clears the unread counter of the given reader ("user" or "admin").
func (s *ChatService) MarkRead(ctx context.Context, conversationID, readerType string) error {
	if conversationID == "" {
		return models.MissingField("conversation_id")
	}
	field := "unread_user"
	switch readerType {
	case "", readerUser:
	case readerAdmin:
		field = "unread_admin"
	default:
		return models.ValidationError("reader_type", "reader_type must be user or admin")
	}
	return s.updateConversation(ctx, conversationID, repositories.Update{
		Set: map[string]interface{}{field: int64(0)},
	})
}

func (s *ChatService) Close(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return models.MissingField("conversation_id")
	}
	return s.updateConversation(ctx, conversationID, repositories.Update{
		Set: map[string]interface{}{
			"status":     models.ConversationClosed,
			"updated_at": s.now().UTC(),
		},
	})
}

// Conversations lists a user's conversations, newest first.
func (s *ChatService) Conversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	if userID == "" {
		return nil, models.MissingField("user_id")
	}
	convs := []models.Conversation{}
	err := s.store.QueryByIndex(ctx, repositories.TableConversations, repositories.IndexQuery{
		Index:      repositories.IndexConversationsByUser,
		Conditions: []repositories.Condition{repositories.Eq("user_id", userID)},
		SortKey:    "created_at",
		Descending: true,
	}, &convs)
	if err != nil {
		return nil, models.StoreUnavailable("query conversations", err)
	}
	return convs, nil
}

// Messages lists a conversation oldest first.
func (s *ChatService) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if conversationID == "" {
		return nil, models.MissingField("conversation_id")
	}
	msgs := []models.Message{}
	err := s.store.QueryByIndex(ctx, repositories.TableMessages, repositories.IndexQuery{
		Index:      repositories.IndexMessagesByConversation,
		Conditions: []repositories.Condition{repositories.Eq("conversation_id", conversationID)},
		SortKey:    "created_at",
	}, &msgs)
	if err != nil {
		return nil, models.StoreUnavailable("query messages", err)
	}
	return msgs, nil
}

// AdminConversations lists conversations by status ("all" for every status),
// most recently active first.
func (s *ChatService) AdminConversations(ctx context.Context, status string, limit int64) ([]models.Conversation, error) {
	if status == "" {
		status = models.ConversationOpen
	}
	if limit <= 0 {
		limit = defaultConversationListLimit
	}

	convs := []models.Conversation{}
	if status == "all" {
		if err := s.store.Scan(ctx, repositories.TableConversations, limit, &convs); err != nil {
			return nil, models.StoreUnavailable("scan conversations", err)
		}
	} else {
		err := s.store.QueryByIndex(ctx, repositories.TableConversations, repositories.IndexQuery{
			Index:      repositories.IndexConversationsByStatus,
			Conditions: []repositories.Condition{repositories.Eq("status", status)},
			SortKey:    "created_at",
			Descending: true,
			Limit:      limit,
		}, &convs)
		if err != nil {
			return nil, models.StoreUnavailable("query conversations", err)
		}
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func (s *ChatService) updateConversation(ctx context.Context, conversationID string, upd repositories.Update) error {
	ok, err := s.store.Update(ctx, repositories.TableConversations, conversationKey(conversationID), upd)
	if err != nil {
		return models.StoreUnavailable("update conversation", err)
	}
	if !ok {
		return models.NotFound("conversation not found")
	}
	return nil
}

func (s *ChatService) putMessage(ctx context.Context, msg *models.Message) error {
	if err := s.store.Put(ctx, repositories.TableMessages, repositories.Key{"message_id": msg.MessageID}, msg); err != nil {
		return models.StoreUnavailable("store message", err)
	}
	return nil
}

func conversationKey(id string) repositories.Key {
	return repositories.Key{"conversation_id": id}
}
