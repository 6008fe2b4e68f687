package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/repositories"
)

type stubAssistant struct {
	reply   string
	err     error
	calls   int
	history []models.Message
}

func (a *stubAssistant) Reply(_ context.Context, history []models.Message, _ string) (string, error) {
	a.calls++
	a.history = history
	return a.reply, a.err
}

func newTestChatService(store repositories.Store, assistant Assistant, events EventPublisher) *ChatService {
	svc := NewChatService(store, assistant, events, zap.NewNop())
	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return svc
}

func getConversation(t *testing.T, store repositories.Store, id string) models.Conversation {
	t.Helper()
	var c models.Conversation
	found, err := store.Get(context.Background(), repositories.TableConversations, conversationKey(id), &c)
	require.NoError(t, err)
	require.True(t, found)
	return c
}

func TestRequestsHuman(t *testing.T) {
	assert.True(t, RequestsHuman("Can I talk to a HUMAN please"))
	assert.True(t, RequestsHuman("CONNECT TO REPRESENTATIVE"))
	assert.True(t, RequestsHuman("is there a real person there?"))
	assert.False(t, RequestsHuman("where is my order?"))
}

func TestSendMessageOpensConversationWithAssistantReply(t *testing.T) {
	store := newTestStore()
	assistant := &stubAssistant{reply: "Your order ships tomorrow."}
	svc := newTestChatService(store, assistant, nil)

	res, err := svc.SendMessage(context.Background(), SendMessageInput{UserID: "U1", StoreURL: "shop.example", Message: "Where is my order?"})
	require.NoError(t, err)
	assert.True(t, res.IsNewConversation)
	assert.Equal(t, "Your order ships tomorrow.", res.AIResponse)
	assert.NotEmpty(t, res.AIMessageID)
	assert.Empty(t, assistant.history)

	conv := getConversation(t, store, res.ConversationID)
	assert.Equal(t, models.ConversationOpen, conv.Status)
	assert.Equal(t, int64(1), conv.UnreadUser)
	assert.Equal(t, int64(0), conv.UnreadAdmin)
	assert.Equal(t, "Your order ships tomorrow.", conv.LastMessage)

	msgs, err := svc.Messages(context.Background(), res.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.SenderUser, msgs[0].SenderType)
	assert.Equal(t, models.SenderAI, msgs[1].SenderType)

	_, err = svc.SendMessage(context.Background(), SendMessageInput{UserID: "U1", ConversationID: res.ConversationID, Message: "Thanks"})
	require.NoError(t, err)
	assert.Len(t, assistant.history, 2)
}

func TestSendMessageHandoffPhraseFlagsConversation(t *testing.T) {
	store := newTestStore()
	assistant := &stubAssistant{reply: "unused"}
	events := &recordingPublisher{}
	svc := newTestChatService(store, assistant, events)

	res, err := svc.SendMessage(context.Background(), SendMessageInput{UserID: "U1", Message: "I want to speak to someone"})
	require.NoError(t, err)
	assert.Equal(t, HandoffReply, res.AIResponse)
	assert.True(t, res.HumanRequested)
	assert.Zero(t, assistant.calls)

	conv := getConversation(t, store, res.ConversationID)
	assert.True(t, conv.HumanRequested)
	assert.Equal(t, int64(1), conv.UnreadAdmin)
	assert.Equal(t, []string{EventSupportHandoff}, events.Events())
}

func TestSendMessageRequestHumanSkipsAssistant(t *testing.T) {
	store := newTestStore()
	assistant := &stubAssistant{reply: "unused"}
	svc := newTestChatService(store, assistant, nil)

	res, err := svc.SendMessage(context.Background(), SendMessageInput{UserID: "U1", Message: "Billing question", RequestHuman: true})
	require.NoError(t, err)
	assert.Empty(t, res.AIResponse)
	assert.Zero(t, assistant.calls)

	conv := getConversation(t, store, res.ConversationID)
	assert.Equal(t, int64(1), conv.UnreadAdmin)
	assert.True(t, conv.HumanRequested)
}

func TestSendMessageAssistantFailureUsesFallback(t *testing.T) {
	store := newTestStore()
	svc := newTestChatService(store, &stubAssistant{err: errors.New("timeout")}, nil)

	res, err := svc.SendMessage(context.Background(), SendMessageInput{UserID: "U1", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, AssistantFailureReply, res.AIResponse)

	svc = newTestChatService(store, &stubAssistant{err: ErrAssistantNotConfigured}, nil)
	res, err = svc.SendMessage(context.Background(), SendMessageInput{UserID: "U1", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, AssistantUnavailableReply, res.AIResponse)
}

func TestSendMessageValidation(t *testing.T) {
	svc := newTestChatService(newTestStore(), nil, nil)

	_, err := svc.SendMessage(context.Background(), SendMessageInput{Message: "hi"})
	assert.True(t, models.IsKind(err, models.KindValidation))

	_, err = svc.SendMessage(context.Background(), SendMessageInput{UserID: "U1", Message: "   "})
	assert.True(t, models.IsKind(err, models.KindValidation))

	_, err = svc.SendMessage(context.Background(), SendMessageInput{UserID: "U1", Message: "hi", ConversationID: "CONV-404"})
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestReplyMarkReadAndClose(t *testing.T) {
	store := newTestStore()
	disabled := false
	svc := newTestChatService(store, nil, nil)

	long := strings.Repeat("x", 150)
	res, err := svc.SendMessage(context.Background(), SendMessageInput{UserID: "U1", Message: long, EnableAI: &disabled})
	require.NoError(t, err)
	assert.Empty(t, res.AIResponse)

	conv := getConversation(t, store, res.ConversationID)
	assert.Len(t, conv.LastMessage, 100)
	assert.False(t, conv.AIEnabled)

	_, err = svc.SendMessage(context.Background(), SendMessageInput{UserID: "U1", ConversationID: res.ConversationID, Message: "anyone?", EnableAI: &disabled})
	require.NoError(t, err)
	assert.Equal(t, int64(1), getConversation(t, store, res.ConversationID).UnreadAdmin)

	_, err = svc.Reply(context.Background(), res.ConversationID, "ADMIN-1", "Hi, how can we help?")
	require.NoError(t, err)
	conv = getConversation(t, store, res.ConversationID)
	assert.Equal(t, int64(1), conv.UnreadUser)

	require.NoError(t, svc.MarkRead(context.Background(), res.ConversationID, "admin"))
	require.NoError(t, svc.MarkRead(context.Background(), res.ConversationID, "user"))
	conv = getConversation(t, store, res.ConversationID)
	assert.Zero(t, conv.UnreadAdmin)
	assert.Zero(t, conv.UnreadUser)

	assert.True(t, models.IsKind(svc.MarkRead(context.Background(), res.ConversationID, "robot"), models.KindValidation))

	require.NoError(t, svc.Close(context.Background(), res.ConversationID))
	assert.Equal(t, models.ConversationClosed, getConversation(t, store, res.ConversationID).Status)

	open, err := svc.AdminConversations(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := svc.AdminConversations(context.Background(), "all", 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	mine, err := svc.Conversations(context.Background(), "U1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.Reply(context.Background(), "CONV-404", "ADMIN-1", "hello")
	assert.True(t, models.IsKind(err, models.KindNotFound))
}
