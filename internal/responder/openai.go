package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/unimind/internal/models"
	"go.uber.org/zap"
)

type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

// OpenAI asks a chat completion endpoint for the next assistant turn.
type OpenAI struct {
	client       *openai.Client
	model        string
	maxTokens    int
	temperature  float64
	systemPrompt string
	logger       *zap.Logger
}

func NewOpenAI(cfg OpenAIConfig, logger *zap.Logger) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		systemPrompt: cfg.SystemPrompt,
		logger:       logger,
	}
}

func (o *OpenAI) Respond(ctx context.Context, history []models.Turn) (Reply, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    chatMessages(o.systemPrompt, history),
		MaxTokens:   o.maxTokens,
		Temperature: float32(o.temperature),
	})
	if err != nil {
		o.logger.Error("Failed to get completion", zap.Error(err), zap.String("model", o.model))
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("chat completion returned no choices")
	}

	model := resp.Model
	if model == "" {
		model = o.model
	}

	return Reply{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Model: model,
	}, nil
}

func chatMessages(systemPrompt string, history []models.Turn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}
	return messages
}
