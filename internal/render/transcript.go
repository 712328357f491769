// Package render 把会话历史和闸门状态投影成对话记录的行，不修改任何状态
package render

import (
	"bytes"
	"strconv"

	"widget-backend/internal/model"
	"widget-backend/pkg/logger"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const (
	KindMessage = "message"
	KindPending = "pending"
	KindError   = "error"

	AlignLeft  = "left"
	AlignRight = "right"

	pendingText      = "Thinking..."
	pendingImageText = "Generating image..."
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	policy   = bluemonday.UGCPolicy()
)

// Transcript 每条消息一行；进行中时追加等待行，有可见错误时追加错误行
func Transcript(messages []model.Message, status model.Status) []model.Row {
	rows := make([]model.Row, 0, len(messages)+2)
	for i, msg := range messages {
		rows = append(rows, MessageRow(i, msg))
	}

	if status.Busy() {
		text := pendingText
		if status.ImageInFlight {
			text = pendingImageText
		}
		rows = append(rows, model.Row{
			Key:   "pending",
			Kind:  KindPending,
			Role:  model.RoleModel,
			Align: AlignLeft,
			Text:  text,
		})
	}

	if status.Error != "" {
		rows = append(rows, model.Row{
			Key:   "error",
			Kind:  KindError,
			Align: AlignLeft,
			Text:  status.Error,
		})
	}

	return rows
}

// MessageRow 渲染单条消息，SSE 推送新消息时也使用
func MessageRow(index int, msg model.Message) model.Row {
	key := msg.ID
	if key == "" {
		key = "msg-" + strconv.Itoa(index)
	}

	align := AlignLeft
	if msg.Role == model.RoleUser {
		align = AlignRight
	}

	text := msg.Text()
	return model.Row{
		Key:      key,
		Kind:     KindMessage,
		Role:     msg.Role,
		Align:    align,
		Text:     text,
		HTML:     Markdown(text),
		ImageURL: msg.ImageURL,
	}
}

// Markdown 转成经过清洗的 HTML；转换失败时返回转义后的纯文本
func Markdown(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		logger.Warnf("Markdown conversion failed: %v", err)
		return policy.Sanitize(text)
	}
	return policy.Sanitize(buf.String())
}
