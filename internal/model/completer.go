package model

import (
	"context"
	"fmt"
	"strings"

	"widget-backend/internal/config"
)

// Completer 是文本补全协作方：给定模型标识和完整历史，返回回复文本
type Completer interface {
	Complete(ctx context.Context, modelID string, history []Message) (string, error)
}

// CompleterFactory 根据凭证构造补全客户端；凭证无效时返回错误
type CompleterFactory func(ctx context.Context, credential string) (Completer, error)

// NewCompleterFactory 按 model.provider 选择实现
func NewCompleterFactory(cfg *config.Config) (CompleterFactory, error) {
	switch cfg.Model.Provider {
	case "openai", "":
		return func(_ context.Context, credential string) (Completer, error) {
			return NewOpenAICompleter(credential, cfg.OpenAI), nil
		}, nil
	case "doubao":
		return func(ctx context.Context, credential string) (Completer, error) {
			return newDoubaoCompleter(ctx, credential, cfg.Doubao, cfg.Model.Name)
		}, nil
	case "qwen":
		return func(ctx context.Context, credential string) (Completer, error) {
			return newQwenCompleter(ctx, credential, cfg.Qwen, cfg.Model.Name)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Model.Provider)
	}
}

// ValidCredential 只做格式检查：非空且不含空白
func ValidCredential(credential string) bool {
	if credential == "" {
		return false
	}
	return !strings.ContainsAny(credential, " \t\r\n")
}
