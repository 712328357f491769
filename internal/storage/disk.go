package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"widget-backend/pkg/logger"
)

// DiskStore 把全部键值保存在一个 JSON 文件里，写入走临时文件 + rename
type DiskStore struct {
	path string
	mu   sync.RWMutex
	data map[string]string
}

func NewDiskStore(path string) *DiskStore {
	return &DiskStore{
		path: path,
		data: make(map[string]string),
	}
}

func (d *DiskStore) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return d.save()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	values := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
	}
	d.data = values

	logger.Infof("Disk store initialized: %s", d.path)
	return nil
}

func (d *DiskStore) Get(key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	value, exists := d.data[key]
	if !exists {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (d *DiskStore) Set(key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, existed := d.data[key]
	d.data[key] = value
	if err := d.save(); err != nil {
		// 写盘失败时回滚内存状态
		if existed {
			d.data[key] = prev
		} else {
			delete(d.data, key)
		}
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStore) Remove(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, existed := d.data[key]
	if !existed {
		return nil
	}
	delete(d.data, key)
	if err := d.save(); err != nil {
		d.data[key] = prev
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStore) Close() error {
	return nil
}

func (d *DiskStore) save() error {
	tempPath := d.path + ".tmp"

	data, err := json.MarshalIndent(d.data, "", "  ")
	if err != nil {
		return err
	}

	// 凭证文件只允许当前用户读写
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tempPath, d.path)
}
