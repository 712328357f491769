package imagegen

import (
	"context"
	"errors"
	"strings"

	"widget-backend/internal/config"
	"widget-backend/internal/model"

	"github.com/sashabaranov/go-openai"
)

var ErrMissingCredential = errors.New("missing or invalid credential")

// OpenAIGenerator 调用 images/generations，每次请求使用当前凭证
type OpenAIGenerator struct {
	creds CredentialSource
	api   config.OpenAIConfig
	model string
	size  string
}

func NewOpenAIGenerator(creds CredentialSource, api config.OpenAIConfig, cfg config.OpenAIImageConfig) *OpenAIGenerator {
	return &OpenAIGenerator{
		creds: creds,
		api:   api,
		model: cfg.Model,
		size:  cfg.Size,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	key := strings.TrimSpace(g.creds.Value())
	if !model.ValidCredential(key) {
		return "", ErrMissingCredential
	}

	client := model.NewOpenAIClient(key, g.api)
	resp, err := client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		Size:           g.size,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("image service returned no image")
	}
	return resp.Data[0].URL, nil
}
