// Package conversation 保存一次挂件会话的消息历史：只追加，顺序即显示顺序。
package conversation

import (
	"sync"
	"time"

	"widget-backend/internal/model"
	"widget-backend/pkg/logger"

	"github.com/google/uuid"
)

const subscriberBuffer = 64

type EventType string

const (
	EventMessage EventType = "message"
	EventStatus  EventType = "status"
)

// Event 通知订阅方（对话记录渲染、SSE）有新消息或状态变化
type Event struct {
	Type    EventType
	Index   int
	Message model.Message
	Status  model.Status
}

type Store struct {
	mu          sync.RWMutex
	messages    []model.Message
	subscribers map[int]chan Event
	nextSubID   int
	closed      bool
}

// New 创建会话并预置一条 model 角色的问候语
func New(greeting string) *Store {
	s := &Store{
		subscribers: make(map[int]chan Event),
	}
	s.Append(model.NewTextMessage(model.RoleModel, greeting))
	return s
}

// Append 在末尾追加一条消息并通知订阅方，返回追加后的副本
func (s *Store) Append(msg model.Message) model.Message {
	msg = msg.Clone()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	index := len(s.messages) - 1
	s.broadcast(Event{Type: EventMessage, Index: index, Message: msg.Clone()})
	s.mu.Unlock()

	return msg.Clone()
}

// Publish 推送状态快照，不修改历史
func (s *Store) Publish(status model.Status) {
	s.mu.Lock()
	s.broadcast(Event{Type: EventStatus, Status: status})
	s.mu.Unlock()
}

// Messages 返回历史的副本
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, len(s.messages))
	for i, msg := range s.messages {
		out[i] = msg.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Store) Last() (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.messages) == 0 {
		return model.Message{}, false
	}
	return s.messages[len(s.messages)-1].Clone(), true
}

// Subscribe 返回事件通道和取消函数；取消或 Close 后通道被关闭。
// 会话已关闭时返回已关闭的通道。
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// Close 可能已经关闭并移除了该通道
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Subscribers 返回当前订阅方数量
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Close 在会话销毁时关闭全部订阅通道，之后的事件不再推送
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

// 调用方持有写锁；非阻塞发送，慢订阅方丢事件
func (s *Store) broadcast(ev Event) {
	for id, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			logger.Warnf("Subscriber %d is full, dropping %s event", id, ev.Type)
		}
	}
}
