// Package credential holds the opaque API credential, its optional
// persistence and the per-credential client cache.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"widget-backend/internal/model"
	"widget-backend/internal/storage"
	"widget-backend/pkg/logger"
)

type clientEntry struct {
	client model.Completer
	ok     bool
}

// Holder 持有当前凭证。clients 是“凭证 -> 客户端或不存在”的缓存，凭证变化时整体失效。
type Holder struct {
	mu       sync.Mutex
	store    storage.KVStore
	key      string
	value    string
	remember bool
	factory  model.CompleterFactory
	clients  map[string]clientEntry
}

// New 读取已持久化的凭证；存在时同时打开 remember，否则 remember 取 rememberDefault
func New(store storage.KVStore, key string, rememberDefault bool, factory model.CompleterFactory) (*Holder, error) {
	h := &Holder{
		store:    store,
		key:      key,
		remember: rememberDefault,
		factory:  factory,
		clients:  make(map[string]clientEntry),
	}

	persisted, err := store.Get(key)
	switch {
	case err == nil:
		h.value = persisted
		h.remember = true
	case errors.Is(err, storage.ErrKeyNotFound):
	default:
		return nil, fmt.Errorf("load credential: %w", err)
	}

	return h, nil
}

func (h *Holder) Value() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

func (h *Holder) Remember() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remember
}

// Masked 只保留首尾各 4 个字符，用于展示和日志
func (h *Holder) Masked() string {
	return Mask(h.Value())
}

// SetCredential 更新凭证并清空客户端缓存；remember 打开时立即持久化
func (h *Holder) SetCredential(value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if value == h.value {
		return nil
	}
	h.value = value
	h.clients = make(map[string]clientEntry)

	if !h.remember {
		return nil
	}
	return h.persistLocked()
}

// SetRemember 关闭时立即删除持久化的值，打开时立即持久化当前值
func (h *Holder) SetRemember(remember bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.remember = remember
	if !remember {
		if err := h.store.Remove(h.key); err != nil {
			return fmt.Errorf("erase credential: %w", err)
		}
		return nil
	}
	return h.persistLocked()
}

func (h *Holder) persistLocked() error {
	if strings.TrimSpace(h.value) == "" {
		if err := h.store.Remove(h.key); err != nil {
			return fmt.Errorf("erase credential: %w", err)
		}
		return nil
	}
	if err := h.store.Set(h.key, h.value); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// Client 懒构造并缓存当前凭证对应的客户端。凭证为空或无效时 ok 为 false，不返回错误。
func (h *Holder) Client(ctx context.Context) (model.Completer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if entry, hit := h.clients[h.value]; hit {
		return entry.client, entry.ok
	}

	var entry clientEntry
	if model.ValidCredential(strings.TrimSpace(h.value)) {
		client, err := h.factory(ctx, strings.TrimSpace(h.value))
		if err != nil {
			logger.Warnf("Credential %s rejected by client factory: %v", Mask(h.value), err)
		} else {
			entry = clientEntry{client: client, ok: true}
		}
	}
	h.clients[h.value] = entry

	return entry.client, entry.ok
}

// Mask 按字符而不是字节截取，避免切断多字节字符
func Mask(value string) string {
	if value == "" {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= 8 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:4]) + strings.Repeat("*", len(runes)-8) + string(runes[len(runes)-4:])
}
