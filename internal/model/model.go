package model

import (
	"context"
	"fmt"

	"widget-backend/internal/config"
	"widget-backend/internal/utils"
	"widget-backend/pkg/logger"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoCompleter 把 eino ChatModel 适配成 Completer
type EinoCompleter struct {
	chatModel einoModel.BaseChatModel
}

func NewEinoCompleter(chatModel einoModel.BaseChatModel) *EinoCompleter {
	return &EinoCompleter{chatModel: chatModel}
}

func (e *EinoCompleter) Complete(ctx context.Context, modelID string, history []Message) (string, error) {
	var opts []einoModel.Option
	if modelID != "" {
		opts = append(opts, einoModel.WithModel(modelID))
	}

	msg, err := e.chatModel.Generate(ctx, toSchemaMessages(history), opts...)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", nil
	}

	return msg.Content, nil
}

func toSchemaMessages(history []Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == RoleModel {
			result = append(result, schema.AssistantMessage(msg.Text(), nil))
			continue
		}
		result = append(result, schema.UserMessage(msg.Text()))
	}
	return result
}

func newDoubaoCompleter(ctx context.Context, apiKey string, cfg config.DoubaoConfig, fallbackModel string) (*EinoCompleter, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = fallbackModel
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey: apiKey,
		Model:  modelName,
		CustomHeader: map[string]string{
			"X-Ark-Thinking-Mode": "disable",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create doubao model: %w", err)
	}

	return NewEinoCompleter(chatModel), nil
}

func newQwenCompleter(ctx context.Context, apiKey string, cfg config.QwenConfig, fallbackModel string) (*EinoCompleter, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = fallbackModel
	}

	httpClient := utils.NewHTTPClient(cfg.Timeout)
	if cfg.DebugRequest {
		httpClient.Transport = NewDebugTransport(httpClient.Transport)
		logger.Infof("Qwen debug transport enabled, model: %s", modelName)
	}

	maxTokens := cfg.MaxTokens
	temperature := cfg.Temperature
	topP := cfg.TopP

	chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      apiKey,
		Model:       modelName,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
		Timeout:     cfg.Timeout,
		HTTPClient:  httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create qwen model: %w", err)
	}

	return NewEinoCompleter(chatModel), nil
}
