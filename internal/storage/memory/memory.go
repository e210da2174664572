package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ButyrinIA/community/internal/storage"
)

type MemoryStorage struct {
	values map[string][]byte
	mu     sync.RWMutex
}

func New() *MemoryStorage {
	return &MemoryStorage{
		values: make(map[string][]byte),
	}
}

func (s *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.values[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return clone(value), nil
}

// GetMany реализует storage.MultiGetter
func (s *MemoryStorage) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if value, exists := s.values[key]; exists {
			result[key] = clone(value)
		}
	}
	return result, nil
}

func (s *MemoryStorage) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = clone(value)
	return nil
}

// SetMany реализует storage.MultiSetter: все ключи пишутся под одной блокировкой
func (s *MemoryStorage) SetMany(ctx context.Context, values map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range values {
		s.values[key] = clone(value)
	}
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

func (s *MemoryStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	return keys, nil
}

// Close очищает хранилище
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string][]byte)
	return nil
}

// Копия защищает сохраненное значение от изменений вызывающей стороной
func clone(value []byte) []byte {
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
