package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"widget-backend/internal/config"
	"widget-backend/pkg/logger"

	einoMcp "github.com/cloudwego/eino-ext/components/tool/mcp"
	"github.com/cloudwego/eino/components/tool"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPGenerator 通过 MCP 服务端的图片工具生成图片，工具结果的文本内容中应包含图片地址
type MCPGenerator struct {
	cfg config.MCPImageToolConfig

	mu   sync.Mutex
	tool tool.InvokableTool
	cli  *client.Client
}

func NewMCPGenerator(cfg config.MCPImageToolConfig) *MCPGenerator {
	return &MCPGenerator{cfg: cfg}
}

func (g *MCPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	t, err := g.connect(ctx)
	if err != nil {
		return "", err
	}

	argName := g.cfg.PromptArgName
	if argName == "" {
		argName = "prompt"
	}
	args, err := json.Marshal(map[string]string{argName: prompt})
	if err != nil {
		return "", err
	}

	out, err := t.InvokableRun(ctx, string(args))
	if err != nil {
		g.reset()
		return "", err
	}
	return extractImageURL(out)
}

// connect 首次调用时建立连接；失败不缓存，下次调用重试
func (g *MCPGenerator) connect(ctx context.Context) (tool.InvokableTool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tool != nil {
		return g.tool, nil
	}

	cli, err := client.NewSSEMCPClient(g.cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}
	if err := cli.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp client: %w", err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "widget-image-client",
		Version: "1.0.0",
	}
	if _, err := cli.Initialize(ctx, initRequest); err != nil {
		cli.Close()
		return nil, fmt.Errorf("initialize mcp connection: %w", err)
	}

	tools, err := einoMcp.GetTools(ctx, &einoMcp.Config{
		Cli:                   cli,
		ToolNameList:          []string{g.cfg.ToolName},
		ToolCallResultHandler: toolErrorHandler,
	})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("get mcp tools: %w", err)
	}
	if len(tools) == 0 {
		cli.Close()
		return nil, fmt.Errorf("mcp tool %q not found", g.cfg.ToolName)
	}
	invokable, ok := tools[0].(tool.InvokableTool)
	if !ok {
		cli.Close()
		return nil, fmt.Errorf("mcp tool %q is not invokable", g.cfg.ToolName)
	}

	logger.Infof("MCP image tool %s connected at %s", g.cfg.ToolName, g.cfg.ServerURL)
	g.cli = cli
	g.tool = invokable
	return invokable, nil
}

func (g *MCPGenerator) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cli != nil {
		g.cli.Close()
	}
	g.cli = nil
	g.tool = nil
}

func (g *MCPGenerator) Close() error {
	g.reset()
	return nil
}

// toolErrorHandler 把工具返回的错误结果转成 Go 错误，错误文本取自结果内容
func toolErrorHandler(_ context.Context, name string, result *mcp.CallToolResult) (*mcp.CallToolResult, error) {
	if result == nil || !result.IsError {
		return result, nil
	}
	msg := strings.Join(textContents(result.Content), "; ")
	if msg == "" {
		msg = "tool returned an error"
	}
	return nil, fmt.Errorf("%s: %s", name, msg)
}

func textContents(contents []mcp.Content) []string {
	var out []string
	for _, c := range contents {
		if tc, ok := mcp.AsTextContent(c); ok && tc.Text != "" {
			out = append(out, tc.Text)
		}
	}
	return out
}

// toolOutput 是 CallToolResult 序列化后的结构，只取需要的字段
type toolOutput struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// extractImageURL 从工具输出中找到第一个 http(s) 地址
func extractImageURL(out string) (string, error) {
	var texts []string
	var parsed toolOutput
	if err := json.Unmarshal([]byte(out), &parsed); err == nil && len(parsed.Content) > 0 {
		if parsed.IsError {
			return "", errors.New("tool returned an error")
		}
		for _, c := range parsed.Content {
			if c.Type == "" || c.Type == "text" {
				texts = append(texts, c.Text)
			}
		}
	} else {
		texts = []string{out}
	}

	for _, text := range texts {
		for _, field := range strings.Fields(text) {
			field = strings.Trim(field, `"'()<>[],`)
			if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
				return field, nil
			}
		}
	}
	return "", errors.New("tool result contains no image url")
}
