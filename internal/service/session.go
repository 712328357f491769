package service

import (
	"sync"
	"time"

	"widget-backend/internal/config"
	"widget-backend/internal/conversation"
	"widget-backend/internal/imagegen"
	"widget-backend/pkg/logger"

	"github.com/google/uuid"
)

// Session 对应一次挂件页面加载
type Session struct {
	ID          string
	Coordinator *Coordinator
}

// SessionManager 管理挂件会话的创建和销毁；所有会话共享同一个凭证持有者
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	creds    ClientSource
	images   imagegen.Generator
	settings *Settings
	widget   config.WidgetConfig
	prompt   string
	config   config.SessionConfig

	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionManager(cfg *config.Config, creds ClientSource, images imagegen.Generator, settings *Settings) *SessionManager {
	m := &SessionManager{
		sessions: make(map[string]*Session),
		creds:    creds,
		images:   images,
		settings: settings,
		widget:   cfg.Widget,
		prompt:   cfg.Image.DefaultPrompt,
		config:   cfg.Session,
		stop:     make(chan struct{}),
	}

	if m.config.TTL > 0 && m.config.CleanupInterval > 0 {
		go m.cleanupOldSessions()
	}

	return m
}

func (m *SessionManager) Create() *Session {
	store := conversation.New(m.widget.Greeting)
	session := &Session{
		ID:          uuid.New().String(),
		Coordinator: NewCoordinator(store, m.creds, m.images, m.settings, m.widget.Suggestions, m.prompt),
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	logger.Infof("Widget session created: %s", session.ID)
	return session
}

func (m *SessionManager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete 销毁会话并结束其事件流；进行中的请求完成后结果被丢弃
func (m *SessionManager) Delete(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	session.Coordinator.Store().Close()
	logger.Infof("Widget session deleted: %s", sessionID)
	return nil
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *SessionManager) cleanupOldSessions() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired(time.Now())
		case <-m.stop:
			return
		}
	}
}

// cleanupExpired 删除空闲超过 TTL 的会话；忙碌中或仍有页面订阅事件的会话保留
func (m *SessionManager) cleanupExpired(now time.Time) int {
	cutoff := now.Add(-m.config.TTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, session := range m.sessions {
		coord := session.Coordinator
		if coord.Status().Busy() || coord.Store().Subscribers() > 0 || !coord.LastActive().Before(cutoff) {
			continue
		}
		delete(m.sessions, id)
		coord.Store().Close()
		removed++
		logger.Infof("Cleaned up expired session: %s", id)
	}
	return removed
}
