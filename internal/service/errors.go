package service

import (
	"errors"
	"fmt"
)

// ErrBusy 和 ErrEmptyContent 是静默忽略：不改变状态，不设置可见错误
var (
	ErrBusy              = errors.New("a request is already in flight")
	ErrEmptyContent      = errors.New("message content is empty")
	ErrUnknownSuggestion = errors.New("unknown quick suggestion")
	ErrSessionNotFound   = errors.New("session not found")
)

const configurationMessage = "missing or invalid credential"

// ConfigurationError 表示没有可用的凭证/客户端
type ConfigurationError struct{}

func (e *ConfigurationError) Error() string {
	return configurationMessage
}

type Flow string

const (
	FlowText  Flow = "text"
	FlowImage Flow = "image"
)

// CollaboratorFailure 包装补全或图片服务返回的错误；Error() 即可见错误文本
type CollaboratorFailure struct {
	Flow Flow
	Err  error
}

func (e *CollaboratorFailure) Error() string {
	if e.Flow == FlowImage {
		return fmt.Sprintf("image generation failed: %v", e.Err)
	}
	return e.Err.Error()
}

func (e *CollaboratorFailure) Unwrap() error {
	return e.Err
}

// IsSilent 判断错误是否属于静默忽略（忙碌或内容为空）
func IsSilent(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrEmptyContent)
}
