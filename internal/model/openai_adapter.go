package model

import (
	"context"

	"widget-backend/internal/config"
	"widget-backend/internal/utils"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAICompleter struct {
	client *openai.Client
}

func NewOpenAICompleter(apiKey string, cfg config.OpenAIConfig) *OpenAICompleter {
	return &OpenAICompleter{client: NewOpenAIClient(apiKey, cfg)}
}

// NewOpenAIClient 文本补全和图片生成共用同一套客户端配置
func NewOpenAIClient(apiKey string, cfg config.OpenAIConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = utils.NewHTTPClient(cfg.Timeout)

	return openai.NewClientWithConfig(clientConfig)
}

func (m *OpenAICompleter) Complete(ctx context.Context, modelID string, history []Message) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    modelID,
		Messages: convertMessages(history),
	})
	if err != nil {
		return "", err
	}

	// 没有候选时由调用方填充占位文本
	if len(resp.Choices) == 0 {
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}

// 消息格式转换：model 角色对应 OpenAI 的 assistant
func convertMessages(history []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == RoleModel {
			role = openai.ChatMessageRoleAssistant
		}

		result = append(result, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Text(),
		})
	}
	return result
}
