package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Model      ModelConfig      `mapstructure:"model"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Doubao     DoubaoConfig     `mapstructure:"doubao"`
	Qwen       QwenConfig       `mapstructure:"qwen"`
	Image      ImageConfig      `mapstructure:"image"`
	Credential CredentialConfig `mapstructure:"credential"`
	Widget     WidgetConfig     `mapstructure:"widget"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Session    SessionConfig    `mapstructure:"session"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// ModelConfig 选择补全服务提供方；Name 是初始模型标识，运行时可通过 API 修改
type ModelConfig struct {
	Provider string `mapstructure:"provider"` // openai | doubao | qwen
	Name     string `mapstructure:"name"`
}

type OpenAIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // 0 表示不设置超时
}

type DoubaoConfig struct {
	Model string `mapstructure:"model"`
}

type QwenConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	TopP         float32       `mapstructure:"top_p"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DebugRequest bool          `mapstructure:"debug_request"`
}

type ImageConfig struct {
	Provider      string             `mapstructure:"provider"` // placeholder | openai | mcp
	DefaultPrompt string             `mapstructure:"default_prompt"`
	Placeholder   PlaceholderConfig  `mapstructure:"placeholder"`
	OpenAI        OpenAIImageConfig  `mapstructure:"openai"`
	MCP           MCPImageToolConfig `mapstructure:"mcp"`
}

type PlaceholderConfig struct {
	KeywordPattern string        `mapstructure:"keyword_pattern"`
	KeywordURL     string        `mapstructure:"keyword_url"`
	DefaultURL     string        `mapstructure:"default_url"`
	Delay          time.Duration `mapstructure:"delay"`
}

type OpenAIImageConfig struct {
	Model string `mapstructure:"model"`
	Size  string `mapstructure:"size"`
}

type MCPImageToolConfig struct {
	ServerURL     string `mapstructure:"server_url"`
	ToolName      string `mapstructure:"tool_name"`
	PromptArgName string `mapstructure:"prompt_arg"`
}

type CredentialConfig struct {
	Store    string `mapstructure:"store"` // memory | disk | sqlite
	Path     string `mapstructure:"path"`
	Key      string `mapstructure:"key"`
	Remember bool   `mapstructure:"remember"`
}

type WidgetConfig struct {
	Greeting    string   `mapstructure:"greeting"`
	Suggestions []string `mapstructure:"suggestions"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.name", "gpt-4o-mini")

	v.SetDefault("qwen.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("qwen.max_tokens", 2048)
	v.SetDefault("qwen.temperature", 0.7)
	v.SetDefault("qwen.top_p", 0.9)

	v.SetDefault("image.provider", "placeholder")
	v.SetDefault("image.default_prompt", "A cozy street in Tokyo at night, neon lights reflecting on wet pavement")
	v.SetDefault("image.placeholder.keyword_pattern", `tokyo|japan`)
	v.SetDefault("image.placeholder.keyword_url", "https://images.unsplash.com/photo-1540959733332-eab4deabeeaf")
	v.SetDefault("image.placeholder.default_url", "https://images.unsplash.com/photo-1506744038136-46273834b3fb")
	v.SetDefault("image.placeholder.delay", 1500*time.Millisecond)
	v.SetDefault("image.openai.model", "dall-e-3")
	v.SetDefault("image.openai.size", "1024x1024")
	v.SetDefault("image.mcp.tool_name", "generate_image")
	v.SetDefault("image.mcp.prompt_arg", "prompt")

	v.SetDefault("credential.store", "disk")
	v.SetDefault("credential.path", "./data/credential.json")
	v.SetDefault("credential.key", "widget_api_key")
	v.SetDefault("credential.remember", false)

	v.SetDefault("widget.greeting", "Hi! I'm your travel assistant. Ask me anything, or try one of the suggestions below.")
	v.SetDefault("widget.suggestions", []string{
		"What should I see in Tokyo?",
		"Plan a 3-day trip to Kyoto",
		"What is the best season to visit Japan?",
	})

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.max_age", 43200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.cleanup_interval", 10*time.Minute)
}

// Load 读取配置文件；configPath 为空时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	// .env 不存在是正常情况
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WIDGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}

	// 提供方自身的环境变量只在配置里缺省时生效
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}

	return c, nil
}

// DefaultCredential 返回提供方环境变量里的密钥，用于首次启动时预置凭证
func (c *Config) DefaultCredential() string {
	switch c.Model.Provider {
	case "doubao":
		if key := os.Getenv("DOUBAO_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("ARK_API_KEY")
	case "qwen":
		return os.Getenv("DASHSCOPE_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}
