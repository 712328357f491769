package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"widget-backend/internal/conversation"
	"widget-backend/internal/imagegen"
	"widget-backend/internal/model"
	"widget-backend/pkg/logger"
)

const noContentPlaceholder = "[No content]"

// ClientSource 提供当前凭证对应的补全客户端，credential.Holder 满足该接口
type ClientSource interface {
	Client(ctx context.Context) (model.Completer, bool)
}

// Coordinator 串行化文本补全和图片生成两个互斥流程。
// 任一流程进行中时，新的请求直接丢弃，不排队。
type Coordinator struct {
	mu            sync.Mutex
	store         *conversation.Store
	creds         ClientSource
	images        imagegen.Generator
	settings      *Settings
	suggestions   []string
	defaultPrompt string

	textInFlight  bool
	imageInFlight bool
	lastError     string
	composer      string
	lastActive    time.Time
}

func NewCoordinator(store *conversation.Store, creds ClientSource, images imagegen.Generator, settings *Settings, suggestions []string, defaultPrompt string) *Coordinator {
	return &Coordinator{
		store:         store,
		creds:         creds,
		images:        images,
		settings:      settings,
		suggestions:   append([]string(nil), suggestions...),
		defaultPrompt: defaultPrompt,
		lastActive:    time.Now(),
	}
}

// SendMessage 发送指定文本
func (c *Coordinator) SendMessage(ctx context.Context, content string) error {
	return c.sendText(ctx, &content)
}

// SendComposed 发送输入框中的文本
func (c *Coordinator) SendComposed(ctx context.Context) error {
	return c.sendText(ctx, nil)
}

// SendSuggestion 发送第 index 条快捷建议
func (c *Coordinator) SendSuggestion(ctx context.Context, index int) error {
	if index < 0 || index >= len(c.suggestions) {
		return ErrUnknownSuggestion
	}
	return c.SendMessage(ctx, c.suggestions[index])
}

func (c *Coordinator) sendText(ctx context.Context, override *string) error {
	c.mu.Lock()
	c.lastActive = time.Now()

	content := c.composer
	if override != nil {
		content = *override
	}
	content = strings.TrimSpace(content)
	if content == "" {
		c.mu.Unlock()
		return ErrEmptyContent
	}
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrBusy
	}

	client, ok := c.creds.Client(ctx)
	if !ok {
		return c.failConfigurationLocked(FlowText)
	}

	c.lastError = ""
	c.composer = ""
	c.textInFlight = true
	c.store.Append(model.NewTextMessage(model.RoleUser, content))
	history := c.store.Messages()
	c.publishAndUnlock()

	reply, err := client.Complete(ctx, c.settings.Model(), history)

	c.mu.Lock()
	defer c.publishAndUnlock()
	c.textInFlight = false
	c.lastActive = time.Now()

	if err != nil {
		return c.failLocked(FlowText, err)
	}
	if reply == "" {
		reply = noContentPlaceholder
	}
	c.store.Append(model.NewTextMessage(model.RoleModel, reply))
	return nil
}

// GenerateImage 生成图片；prompt 为空时使用默认提示词
func (c *Coordinator) GenerateImage(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = c.defaultPrompt
	}

	c.mu.Lock()
	c.lastActive = time.Now()

	if c.busyLocked() {
		c.mu.Unlock()
		return ErrBusy
	}
	// 与文本流程一致：没有可用凭证时同样设置可见错误
	if _, ok := c.creds.Client(ctx); !ok {
		return c.failConfigurationLocked(FlowImage)
	}

	c.lastError = ""
	c.imageInFlight = true
	c.store.Append(model.NewTextMessage(model.RoleUser, fmt.Sprintf("Generate an image: %s", prompt)))
	c.publishAndUnlock()

	url, err := c.images.Generate(ctx, prompt)

	c.mu.Lock()
	defer c.publishAndUnlock()
	c.imageInFlight = false
	c.lastActive = time.Now()

	if err != nil {
		return c.failLocked(FlowImage, err)
	}
	reply := model.NewTextMessage(model.RoleModel, fmt.Sprintf("Here is the image you asked for: %s", prompt))
	reply.ImageURL = url
	c.store.Append(reply)
	return nil
}

// SetComposer 更新输入框文本，进行中的请求不受影响
func (c *Coordinator) SetComposer(text string) {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.composer = text
	c.publishAndUnlock()
}

func (c *Coordinator) Status() model.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Snapshot 在同一把锁下读取历史和状态，两者互相一致
func (c *Coordinator) Snapshot() ([]model.Message, model.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Messages(), c.statusLocked()
}

func (c *Coordinator) Store() *conversation.Store {
	return c.store
}

func (c *Coordinator) Suggestions() []string {
	return append([]string(nil), c.suggestions...)
}

func (c *Coordinator) DefaultPrompt() string {
	return c.defaultPrompt
}

func (c *Coordinator) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Coordinator) busyLocked() bool {
	return c.textInFlight || c.imageInFlight
}

func (c *Coordinator) statusLocked() model.Status {
	return model.Status{
		TextInFlight:  c.textInFlight,
		ImageInFlight: c.imageInFlight,
		Error:         c.lastError,
		Composer:      c.composer,
	}
}

// publishAndUnlock 在锁内推送状态，保证状态事件与状态变更顺序一致。
// Publish 不会阻塞，慢订阅方只会丢事件。
func (c *Coordinator) publishAndUnlock() {
	c.store.Publish(c.statusLocked())
	c.mu.Unlock()
}

func (c *Coordinator) failConfigurationLocked(flow Flow) error {
	err := &ConfigurationError{}
	c.lastError = err.Error()
	c.publishAndUnlock()
	logger.WithFields(map[string]interface{}{"flow": flow}).Warn("Request blocked: no usable credential")
	return err
}

// 调用方持有锁；失败时不追加任何消息，只替换可见错误
func (c *Coordinator) failLocked(flow Flow, cause error) error {
	failure := &CollaboratorFailure{Flow: flow, Err: cause}
	c.lastError = failure.Error()
	logger.WithFields(map[string]interface{}{"flow": flow}).Warnf("Collaborator failed: %v", cause)
	return failure
}
