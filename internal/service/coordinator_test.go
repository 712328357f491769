package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"widget-backend/internal/config"
	"widget-backend/internal/conversation"
	"widget-backend/internal/imagegen"
	"widget-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keywordURL  = "https://example.com/tokyo.jpg"
	fallbackURL = "https://example.com/default.jpg"
)

type fakeCreds struct {
	client model.Completer
}

func (f *fakeCreds) Client(context.Context) (model.Completer, bool) {
	return f.client, f.client != nil
}

type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	models  []string
	history [][]model.Message

	// 非空时 Complete 阻塞到 release 被关闭
	started chan struct{}
	release chan struct{}
}

func (f *fakeCompleter) Complete(ctx context.Context, modelID string, history []model.Message) (string, error) {
	f.mu.Lock()
	f.models = append(f.models, modelID)
	f.history = append(f.history, history)
	f.mu.Unlock()

	if f.release != nil {
		close(f.started)
		<-f.release
	}
	return f.reply, f.err
}

func blockingCompleter() *fakeCompleter {
	return &fakeCompleter{reply: "late", started: make(chan struct{}), release: make(chan struct{})}
}

type fakeImages struct {
	url     string
	err     error
	prompts []string
	started chan struct{}
	release chan struct{}
}

func (f *fakeImages) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.release != nil {
		close(f.started)
		<-f.release
	}
	return f.url, f.err
}

var _ imagegen.Generator = (*fakeImages)(nil)

func newCoordinator(client model.Completer, images imagegen.Generator) *Coordinator {
	if images == nil {
		images = &fakeImages{url: fallbackURL}
	}
	return NewCoordinator(
		conversation.New("Hi there"),
		&fakeCreds{client: client},
		images,
		NewSettings("test-model"),
		[]string{"What should I see in Tokyo?", "Plan a trip"},
		"A street in Tokyo",
	)
}

func placeholderImages(t *testing.T) imagegen.Generator {
	t.Helper()
	p, err := imagegen.NewPlaceholder(config.PlaceholderConfig{
		KeywordPattern: "tokyo|japan",
		KeywordURL:     keywordURL,
		DefaultURL:     fallbackURL,
	})
	require.NoError(t, err)
	return p
}

func TestStoreGrowsByTwoPerSuccessfulSend(t *testing.T) {
	c := newCoordinator(&fakeCompleter{reply: "ok"}, nil)
	ctx := context.Background()
	require.Equal(t, 1, c.Store().Len())

	require.NoError(t, c.SendMessage(ctx, "one"))
	assert.Equal(t, 3, c.Store().Len())

	require.NoError(t, c.GenerateImage(ctx, "a lake"))
	assert.Equal(t, 5, c.Store().Len())

	require.NoError(t, c.SendSuggestion(ctx, 1))
	assert.Equal(t, 7, c.Store().Len())
}

func TestSuccessfulReplyIsAppended(t *testing.T) {
	completer := &fakeCompleter{reply: "Tokyo is great"}
	c := newCoordinator(completer, nil)

	require.NoError(t, c.SendMessage(context.Background(), "  tell me about tokyo  "))

	last, ok := c.Store().Last()
	require.True(t, ok)
	assert.Equal(t, model.RoleModel, last.Role)
	assert.Equal(t, []model.Part{{Text: "Tokyo is great"}}, last.Parts)

	status := c.Status()
	assert.Empty(t, status.Error)
	assert.False(t, status.TextInFlight)

	msgs := c.Store().Messages()
	assert.Equal(t, "tell me about tokyo", msgs[1].Text())
	assert.Equal(t, model.RoleUser, msgs[1].Role)
}

func TestFullHistoryAndModelAreSent(t *testing.T) {
	completer := &fakeCompleter{reply: "r"}
	c := newCoordinator(completer, nil)
	ctx := context.Background()

	require.NoError(t, c.SendMessage(ctx, "first"))
	c.settings.SetModel("other-model")
	require.NoError(t, c.SendMessage(ctx, "second"))

	require.Len(t, completer.history, 2)
	assert.Len(t, completer.history[0], 2)
	assert.Len(t, completer.history[1], 4)
	assert.Equal(t, "second", completer.history[1][3].Text())
	assert.Equal(t, []string{"test-model", "other-model"}, completer.models)
}

func TestEmptyReplyUsesPlaceholder(t *testing.T) {
	c := newCoordinator(&fakeCompleter{reply: ""}, nil)

	require.NoError(t, c.SendMessage(context.Background(), "hello"))

	last, _ := c.Store().Last()
	assert.Equal(t, "[No content]", last.Text())
}

func TestCollaboratorFailureKeepsUserMessageOnly(t *testing.T) {
	c := newCoordinator(&fakeCompleter{err: errors.New("network down")}, nil)

	err := c.SendMessage(context.Background(), "hello")

	var failure *CollaboratorFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 2, c.Store().Len())
	last, _ := c.Store().Last()
	assert.Equal(t, model.RoleUser, last.Role)

	status := c.Status()
	assert.Equal(t, "network down", status.Error)
	assert.False(t, status.TextInFlight)
}

func TestMissingCredentialBlocksTextFlow(t *testing.T) {
	c := newCoordinator(nil, nil)
	events, cancel := c.Store().Subscribe()
	defer cancel()

	err := c.SendMessage(context.Background(), "hello")

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 1, c.Store().Len())
	status := c.Status()
	assert.Equal(t, "missing or invalid credential", status.Error)
	assert.False(t, status.TextInFlight)

	// 只推送状态事件，从未出现 textInFlight
	ev := <-events
	assert.Equal(t, conversation.EventStatus, ev.Type)
	assert.False(t, ev.Status.TextInFlight)
	assert.Empty(t, events)
}

func TestMissingCredentialBlocksImageFlow(t *testing.T) {
	images := &fakeImages{url: keywordURL}
	c := newCoordinator(nil, images)

	err := c.GenerateImage(context.Background(), "tokyo")

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 1, c.Store().Len())
	assert.Equal(t, "missing or invalid credential", c.Status().Error)
	assert.Empty(t, images.prompts)
}

func TestEmptyContentIsSilent(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("boom")}
	c := newCoordinator(completer, nil)
	ctx := context.Background()
	_ = c.SendMessage(ctx, "hi")
	require.Equal(t, "boom", c.Status().Error)

	err := c.SendMessage(ctx, "   \n")

	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.True(t, IsSilent(err))
	assert.Equal(t, 2, c.Store().Len())
	assert.Equal(t, "boom", c.Status().Error)
}

func TestNewFlowClearsPreviousError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("boom")}
	c := newCoordinator(completer, nil)
	ctx := context.Background()
	_ = c.SendMessage(ctx, "hi")

	completer.err = nil
	completer.reply = "fine"
	require.NoError(t, c.SendMessage(ctx, "again"))
	assert.Empty(t, c.Status().Error)
}

func TestSendComposedUsesAndClearsComposer(t *testing.T) {
	c := newCoordinator(&fakeCompleter{reply: "r"}, nil)
	ctx := context.Background()

	assert.ErrorIs(t, c.SendComposed(ctx), ErrEmptyContent)

	c.SetComposer("  from the composer ")
	require.NoError(t, c.SendComposed(ctx))

	msgs := c.Store().Messages()
	assert.Equal(t, "from the composer", msgs[1].Text())
	assert.Empty(t, c.Status().Composer)
}

func TestConfigurationErrorKeepsComposer(t *testing.T) {
	c := newCoordinator(nil, nil)
	c.SetComposer("draft")

	_ = c.SendComposed(context.Background())

	assert.Equal(t, "draft", c.Status().Composer)
}

func TestUnknownSuggestion(t *testing.T) {
	c := newCoordinator(&fakeCompleter{reply: "r"}, nil)

	assert.ErrorIs(t, c.SendSuggestion(context.Background(), 5), ErrUnknownSuggestion)
	assert.ErrorIs(t, c.SendSuggestion(context.Background(), -1), ErrUnknownSuggestion)
	assert.Equal(t, 1, c.Store().Len())
}

func TestRequestsDroppedWhileTextInFlight(t *testing.T) {
	completer := blockingCompleter()
	c := newCoordinator(completer, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.SendMessage(ctx, "first") }()
	<-completer.started

	require.True(t, c.Status().TextInFlight)
	before := c.Store().Len()

	assert.ErrorIs(t, c.SendMessage(ctx, "second"), ErrBusy)
	assert.ErrorIs(t, c.SendSuggestion(ctx, 0), ErrBusy)
	assert.ErrorIs(t, c.GenerateImage(ctx, "tokyo"), ErrBusy)
	assert.Equal(t, before, c.Store().Len())

	close(completer.release)
	require.NoError(t, <-done)
	assert.False(t, c.Status().TextInFlight)
	assert.Equal(t, 3, c.Store().Len())
}

func TestRequestsDroppedWhileImageInFlight(t *testing.T) {
	images := &fakeImages{url: keywordURL, started: make(chan struct{}), release: make(chan struct{})}
	c := newCoordinator(&fakeCompleter{reply: "r"}, images)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.GenerateImage(ctx, "tokyo") }()
	<-images.started

	require.True(t, c.Status().ImageInFlight)
	before := c.Store().Len()

	assert.ErrorIs(t, c.GenerateImage(ctx, "again"), ErrBusy)
	assert.ErrorIs(t, c.SendMessage(ctx, "text"), ErrBusy)
	assert.Equal(t, before, c.Store().Len())

	close(images.release)
	require.NoError(t, <-done)
	assert.False(t, c.Status().ImageInFlight)
}

func TestStalledCollaboratorKeepsGateSet(t *testing.T) {
	completer := blockingCompleter()
	c := newCoordinator(completer, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.SendMessage(ctx, "hello") }()
	<-completer.started

	// 没有超时：只要协作方不返回，闸门一直保持
	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond)
		assert.True(t, c.Status().TextInFlight)
		assert.ErrorIs(t, c.SendMessage(ctx, "still there?"), ErrBusy)
	}
	assert.Equal(t, 2, c.Store().Len())

	close(completer.release)
	require.NoError(t, <-done)
}

func TestImageFlowUsesKeywordReference(t *testing.T) {
	c := newCoordinator(&fakeCompleter{}, placeholderImages(t))
	ctx := context.Background()

	require.NoError(t, c.GenerateImage(ctx, "Shibuya crossing in TOKYO"))
	last, _ := c.Store().Last()
	assert.Equal(t, model.RoleModel, last.Role)
	assert.Equal(t, keywordURL, last.ImageURL)
	assert.NotEmpty(t, last.Text())

	require.NoError(t, c.GenerateImage(ctx, "a quiet forest"))
	last, _ = c.Store().Last()
	assert.Equal(t, fallbackURL, last.ImageURL)
}

func TestImageFlowDefaultPrompt(t *testing.T) {
	images := &fakeImages{url: keywordURL}
	c := newCoordinator(&fakeCompleter{}, images)

	require.NoError(t, c.GenerateImage(context.Background(), " "))
	assert.Equal(t, []string{"A street in Tokyo"}, images.prompts)

	msgs := c.Store().Messages()
	assert.Equal(t, model.RoleUser, msgs[1].Role)
	assert.Empty(t, msgs[1].ImageURL)
}

func TestImageFailureIsPrefixed(t *testing.T) {
	c := newCoordinator(&fakeCompleter{}, &fakeImages{err: errors.New("quota exceeded")})

	err := c.GenerateImage(context.Background(), "tokyo")

	var failure *CollaboratorFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FlowImage, failure.Flow)
	assert.Equal(t, "image generation failed: quota exceeded", c.Status().Error)
	assert.Equal(t, 2, c.Store().Len())
	assert.False(t, c.Status().ImageInFlight)
}

func TestStatusEventsFollowFlow(t *testing.T) {
	c := newCoordinator(&fakeCompleter{reply: "r"}, nil)
	events, cancel := c.Store().Subscribe()
	defer cancel()

	require.NoError(t, c.SendMessage(context.Background(), "hi"))

	var got []conversation.Event
	for len(events) > 0 {
		got = append(got, <-events)
	}
	require.Len(t, got, 4)
	assert.Equal(t, conversation.EventMessage, got[0].Type)
	assert.Equal(t, conversation.EventStatus, got[1].Type)
	assert.True(t, got[1].Status.TextInFlight)
	assert.Equal(t, conversation.EventMessage, got[2].Type)
	assert.Equal(t, model.RoleModel, got[2].Message.Role)
	assert.Equal(t, conversation.EventStatus, got[3].Type)
	assert.False(t, got[3].Status.TextInFlight)
}

func TestStatusEventsStayOrderedUnderComposerUpdates(t *testing.T) {
	completer := blockingCompleter()
	c := newCoordinator(completer, nil)
	events, cancel := c.Store().Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.SetComposer("typing")
		}()
	}
	done := make(chan error, 1)
	go func() { done <- c.SendMessage(context.Background(), "hello") }()
	<-completer.started
	wg.Wait()

	// 流程开始后，任何状态事件都不应回退到未进行中
	inFlight := false
	for len(events) > 0 {
		ev := <-events
		if ev.Type != conversation.EventStatus {
			continue
		}
		if ev.Status.TextInFlight {
			inFlight = true
			continue
		}
		assert.False(t, inFlight, "stale status published after flow started")
	}
	assert.True(t, inFlight)

	close(completer.release)
	require.NoError(t, <-done)
}
