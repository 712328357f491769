// Package imagegen 提供图片生成协作方：给定提示词，返回图片地址
package imagegen

import (
	"context"
	"fmt"

	"widget-backend/internal/config"
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CredentialSource 提供当前凭证，credential.Holder 满足该接口
type CredentialSource interface {
	Value() string
}

// New 按 image.provider 选择实现
func New(cfg *config.Config, creds CredentialSource) (Generator, error) {
	switch cfg.Image.Provider {
	case "placeholder", "":
		return NewPlaceholder(cfg.Image.Placeholder)
	case "openai":
		return NewOpenAIGenerator(creds, cfg.OpenAI, cfg.Image.OpenAI), nil
	case "mcp":
		if cfg.Image.MCP.ServerURL == "" {
			return nil, fmt.Errorf("image.mcp.server_url is required for mcp image provider")
		}
		return NewMCPGenerator(cfg.Image.MCP), nil
	default:
		return nil, fmt.Errorf("unsupported image provider: %s", cfg.Image.Provider)
	}
}
