package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/models"
)

const (
	assistantHistoryLimit = 10
	assistantMaxTokens    = 500
	assistantTemperature  = 0.7

	assistantSystemPrompt = `You are a helpful customer support assistant for Commercive, a fulfillment and e-commerce logistics company.

About Commercive:
- We provide order fulfillment services for Shopify store owners
- We offer inventory management and tracking solutions
- We have an affiliate program where partners can earn commissions
- We ship to 65+ countries worldwide

You can help users with general questions about our services, shipping and tracking, the affiliate program, basic account and dashboard questions, and inventory management.

Be friendly, professional, and concise. Keep responses under 200 words unless more detail is needed. If the user needs specific account help or has complex issues, recommend they request human assistance.

When a user wants to speak with a human, tell them: "Please type 'CONNECT TO REPRESENTATIVE' and our support team will be notified to assist you directly."`
)

// Canned assistant replies.
const (
	AssistantUnavailableReply = "I apologize, but the AI assistant is currently unavailable. Please type 'CONNECT TO REPRESENTATIVE' to speak with a human support agent."
	AssistantFailureReply     = "I apologize, but I'm having trouble responding right now. Would you like to speak with a human representative? Just type 'CONNECT TO REPRESENTATIVE'."
	HandoffReply              = "I've noted your request to speak with a human representative. Our support team has been notified and will respond to this conversation shortly. In the meantime, is there anything else I can help you with?"
)

// ErrAssistantNotConfigured is returned when no API key is set.
var ErrAssistantNotConfigured = errors.New("assistant API key not configured")

// Assistant produces an automated reply to a user message given the prior conversation.
type Assistant interface {
	Reply(ctx context.Context, history []models.Message, message string) (string, error)
}

// OpenAIAssistant calls a chat completions endpoint.
type OpenAIAssistant struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

func NewOpenAIAssistant(baseURL, apiKey, model string, logger *zap.Logger) *OpenAIAssistant {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if apiKey == "" {
		logger.Warn("OPENAI_API_KEY is missing, chat replies will use the fallback message")
	}
	return &OpenAIAssistant{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	MaxTokens   int                     `json:"max_tokens"`
	Temperature float64                 `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *OpenAIAssistant) Reply(ctx context.Context, history []models.Message, message string) (string, error) {
	if a.apiKey == "" {
		return "", ErrAssistantNotConfigured
	}

	payload := chatCompletionRequest{
		Model:       a.model,
		Messages:    buildPrompt(history, message),
		MaxTokens:   assistantMaxTokens,
		Temperature: assistantTemperature,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if completion.Error != nil {
			return "", fmt.Errorf("completion API error (status %d): %s", resp.StatusCode, completion.Error.Message)
		}
		return "", fmt.Errorf("completion API error (status %d)", resp.StatusCode)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("completion API returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// buildPrompt frames the message with the system prompt and the most recent history.
func buildPrompt(history []models.Message, message string) []chatCompletionMessage {
	if len(history) > assistantHistoryLimit {
		history = history[len(history)-assistantHistoryLimit:]
	}
	msgs := make([]chatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, chatCompletionMessage{Role: "system", Content: assistantSystemPrompt})
	for _, m := range history {
		role := "assistant"
		if m.SenderType == models.SenderUser {
			role = "user"
		}
		msgs = append(msgs, chatCompletionMessage{Role: role, Content: m.MessageText})
	}
	return append(msgs, chatCompletionMessage{Role: "user", Content: message})
}
