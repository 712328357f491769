package service

import (
	"strings"
	"sync"
)

// Settings 保存运行时可修改的模型标识，协作方调用时读取
type Settings struct {
	mu    sync.RWMutex
	model string
}

func NewSettings(modelID string) *Settings {
	return &Settings{model: modelID}
}

func (s *Settings) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetModel 忽略空白标识
func (s *Settings) SetModel(modelID string) bool {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return false
	}
	s.mu.Lock()
	s.model = modelID
	s.mu.Unlock()
	return true
}
