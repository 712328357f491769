package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"widget-backend/internal/config"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCreds string

func (s staticCreds) Value() string { return string(s) }

func TestNewSelectsProvider(t *testing.T) {
	cfg := &config.Config{}

	cfg.Image.Provider = "placeholder"
	g, err := New(cfg, staticCreds(""))
	require.NoError(t, err)
	assert.IsType(t, &Placeholder{}, g)

	cfg.Image.Provider = "openai"
	g, err = New(cfg, staticCreds(""))
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, g)

	cfg.Image.Provider = "mcp"
	_, err = New(cfg, staticCreds(""))
	assert.Error(t, err)

	cfg.Image.MCP.ServerURL = "http://localhost:7000/sse"
	g, err = New(cfg, staticCreds(""))
	require.NoError(t, err)
	assert.IsType(t, &MCPGenerator{}, g)

	cfg.Image.Provider = "stable-diffusion"
	_, err = New(cfg, staticCreds(""))
	assert.Error(t, err)
}

func TestOpenAIGeneratorReturnsURL(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-image", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[{"url":"https://img.example.com/1.png"}]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(staticCreds("sk-image"),
		config.OpenAIConfig{BaseURL: srv.URL},
		config.OpenAIImageConfig{Model: "dall-e-3", Size: "1024x1024"})

	url, err := g.Generate(context.Background(), "a red fox")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/1.png", url)
	assert.Equal(t, "a red fox", got["prompt"])
	assert.Equal(t, "dall-e-3", got["model"])
	assert.Equal(t, "url", got["response_format"])
}

func TestOpenAIGeneratorEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(staticCreds("sk-image"), config.OpenAIConfig{BaseURL: srv.URL}, config.OpenAIImageConfig{})
	_, err := g.Generate(context.Background(), "x")
	assert.Error(t, err)
}

func TestOpenAIGeneratorWithoutCredential(t *testing.T) {
	g := NewOpenAIGenerator(staticCreds("  "), config.OpenAIConfig{}, config.OpenAIImageConfig{})
	_, err := g.Generate(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrMissingCredential))
}

func TestExtractImageURL(t *testing.T) {
	url, err := extractImageURL(`{"content":[{"type":"text","text":"Here it is: https://img.example.com/a.png"}],"isError":false}`)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/a.png", url)

	url, err = extractImageURL("https://img.example.com/raw.png")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/raw.png", url)

	_, err = extractImageURL(`{"content":[{"type":"text","text":"no image today"}]}`)
	assert.Error(t, err)

	_, err = extractImageURL(`{"content":[{"type":"text","text":"https://x"}],"isError":true}`)
	assert.Error(t, err)
}

func TestToolErrorHandler(t *testing.T) {
	ok := &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent("https://a")}}
	res, err := toolErrorHandler(context.Background(), "generate_image", ok)
	require.NoError(t, err)
	assert.Same(t, ok, res)

	failed := &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent("quota exceeded")},
		IsError: true,
	}
	_, err = toolErrorHandler(context.Background(), "generate_image", failed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
