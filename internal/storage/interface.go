package storage

import "fmt"

// KVStore 是同步的本地键值存储，只用于持久化凭证
type KVStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	// Remove 对不存在的键不报错
	Remove(key string) error

	// 存储管理
	Init() error
	Close() error
}

// New 按类型创建存储；path 对 memory 无意义
func New(kind, path string) (KVStore, error) {
	switch kind {
	case "memory", "":
		return NewMemoryStore(), nil
	case "disk":
		return NewDiskStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", kind)
	}
}
