package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ButyrinIA/community/internal/storage"
	goredis "github.com/go-redis/redis/v8"
)

// RedisStorage хранит записи как строки Redis. Все ключи получают префикс
// namespace, чтобы несколько установок могли делить одну базу.
type RedisStorage struct {
	client    *goredis.Client
	namespace string
}

type Options struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

func New(ctx context.Context, opts Options) (*RedisStorage, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStorage{client: client, namespace: opts.Namespace}, nil
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.namespace+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	return value, err
}

// GetMany реализует storage.MultiGetter через MGET
func (s *RedisStorage) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.namespace + key
	}

	values, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}
	for i, value := range values {
		if str, ok := value.(string); ok {
			result[keys[i]] = []byte(str)
		}
	}
	return result, nil
}

func (s *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.namespace+key, value, 0).Err()
}

// SetMany реализует storage.MultiSetter одной командой MSET
func (s *RedisStorage) SetMany(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}

	pairs := make([]interface{}, 0, 2*len(values))
	for key, value := range values {
		pairs = append(pairs, s.namespace+key, value)
	}
	return s.client.MSet(ctx, pairs...).Err()
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.namespace+key).Err()
}

func (s *RedisStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(s.namespace+prefix) + "*"

	keys := []string{}
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// escapeGlob экранирует спецсимволы шаблона MATCH
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
