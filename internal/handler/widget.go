package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"widget-backend/internal/conversation"
	"widget-backend/internal/model"
	"widget-backend/internal/render"
	"widget-backend/internal/service"
	"widget-backend/internal/utils"
	"widget-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const defaultHeartbeat = 30 * time.Second

type WidgetHandler struct {
	sessions  *service.SessionManager
	heartbeat time.Duration
}

func NewWidgetHandler(sessions *service.SessionManager) *WidgetHandler {
	return &WidgetHandler{
		sessions:  sessions,
		heartbeat: defaultHeartbeat,
	}
}

func (h *WidgetHandler) CreateSession(c *gin.Context) {
	session := h.sessions.Create()
	c.JSON(http.StatusOK, snapshot(session, true))
}

func (h *WidgetHandler) GetSession(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snapshot(session, true))
}

func (h *WidgetHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("session_id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

func (h *WidgetHandler) UpdateComposer(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req model.ComposerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session.Coordinator.SetComposer(req.Text)
	c.JSON(http.StatusOK, snapshot(session, true))
}

// Send 运行文本流程；content 缺省时发送输入框文本
func (h *WidgetHandler) Send(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req model.SendRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	runFlow(c, session, func(ctx context.Context) error {
		if req.Content == nil {
			return session.Coordinator.SendComposed(ctx)
		}
		return session.Coordinator.SendMessage(ctx, *req.Content)
	})
}

func (h *WidgetHandler) SendSuggestion(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid suggestion index"})
		return
	}

	runFlow(c, session, func(ctx context.Context) error {
		return session.Coordinator.SendSuggestion(ctx, index)
	})
}

func (h *WidgetHandler) GenerateImage(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req model.ImageRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	runFlow(c, session, func(ctx context.Context) error {
		return session.Coordinator.GenerateImage(ctx, req.Prompt)
	})
}

// Events 通过 SSE 推送新消息和状态变化
func (h *WidgetHandler) Events(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	events, cancel := session.Coordinator.Store().Subscribe()
	defer cancel()

	sseWriter := utils.NewSSEWriter(c.Writer)
	ctx := c.Request.Context()

	status := session.Coordinator.Status()
	if err := sseWriter.WriteJSON("status", streamEvent(session.ID, conversation.Event{Type: conversation.EventStatus, Status: status})); err != nil {
		logger.Errorf("Failed to write SSE: %v", err)
		return
	}

	heartbeatTicker := time.NewTicker(h.heartbeat)
	defer heartbeatTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// 会话已销毁，通知前端后结束
				_ = sseWriter.WriteJSON("closed", gin.H{
					"session_id": session.ID,
					"timestamp":  time.Now().Unix(),
				})
				return
			}
			if err := sseWriter.WriteJSON(string(ev.Type), streamEvent(session.ID, ev)); err != nil {
				logger.Errorf("Failed to write SSE: %v", err)
				return
			}

		case <-heartbeatTicker.C:
			if err := sseWriter.WriteJSON("heartbeat", gin.H{
				"type":      "heartbeat",
				"timestamp": time.Now().Unix(),
			}); err != nil {
				logger.Warnf("Heartbeat failed: %v", err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (h *WidgetHandler) lookup(c *gin.Context) (*service.Session, bool) {
	session, err := h.sessions.Get(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return session, true
}

// runFlow 与请求上下文解绑：浏览器断开不会中断进行中的流程
func runFlow(c *gin.Context, session *service.Session, flow func(ctx context.Context) error) {
	err := flow(context.WithoutCancel(c.Request.Context()))

	var cfgErr *service.ConfigurationError
	accepted := true
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnknownSuggestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case service.IsSilent(err), errors.As(err, &cfgErr):
		accepted = false
	default:
		// 协作方失败已经体现在 status.error 中
	}

	c.JSON(http.StatusOK, snapshot(session, accepted))
}

// bindOptionalJSON 允许空请求体，包括分块传输的空请求体
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func snapshot(session *service.Session, accepted bool) model.SessionResponse {
	messages, status := session.Coordinator.Snapshot()
	return model.SessionResponse{
		SessionID:     session.ID,
		Accepted:      accepted,
		Rows:          render.Transcript(messages, status),
		Status:        status,
		Suggestions:   session.Coordinator.Suggestions(),
		DefaultPrompt: session.Coordinator.DefaultPrompt(),
	}
}

func streamEvent(sessionID string, ev conversation.Event) model.StreamEvent {
	out := model.StreamEvent{
		SessionID: sessionID,
		Type:      string(ev.Type),
		Timestamp: time.Now().Unix(),
	}
	switch ev.Type {
	case conversation.EventMessage:
		msg := ev.Message
		row := render.MessageRow(ev.Index, msg)
		out.Index = ev.Index
		out.Message = &msg
		out.Row = &row
	case conversation.EventStatus:
		status := ev.Status
		out.Status = &status
	}
	return out
}
