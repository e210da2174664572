package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Ключи, под которыми хранятся коллекции
const (
	KeyUser        = "user"
	KeyUsers       = "users"
	KeyCommunities = "communities"
	KeyPosts       = "posts"
	KeyComments    = "comments"

	membershipPrefix = "userCommunities_"
)

// ErrNotFound возвращается из Get, если ключ ни разу не записывался
var ErrNotFound = errors.New("key not found")

// Storage - хранилище сериализованных записей по ключу
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys возвращает отсортированные ключи с заданным префиксом
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// MultiGetter реализуют хранилища, умеющие читать несколько ключей за один
// запрос. Отсутствующих ключей в результате нет.
type MultiGetter interface {
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
}

// MultiSetter реализуют хранилища, умеющие записать несколько ключей атомарно:
// либо все значения записаны, либо ни одно.
type MultiSetter interface {
	SetMany(ctx context.Context, values map[string][]byte) error
}

// MembershipKey возвращает ключ списка сообществ пользователя
func MembershipKey(userID string) string {
	return membershipPrefix + userID
}

// GetJSON читает ключ и декодирует значение в v. Возвращает false, если ключа нет.
func GetJSON(ctx context.Context, s Storage, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON кодирует v и записывает по ключу
func SetJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// SetManyJSON кодирует и записывает несколько ключей как одно изменение.
// Хранилище с MultiSetter пишет их атомарно. Иначе ключи пишутся по очереди,
// а при ошибке уже записанные ключи возвращаются к прежним значениям.
func SetManyJSON(ctx context.Context, s Storage, values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", key, err)
		}
		encoded[key] = data
	}

	if ms, ok := s.(MultiSetter); ok {
		if err := ms.SetMany(ctx, encoded); err != nil {
			return fmt.Errorf("failed to write %s: %w", keyList(encoded), err)
		}
		return nil
	}
	return setSequential(ctx, s, encoded)
}

func setSequential(ctx context.Context, s Storage, values map[string][]byte) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// prev[key] == nil - ключа до записи не было
	prev := make(map[string][]byte, len(keys))
	for _, key := range keys {
		old, err := s.Get(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
			prev[key] = nil
		case err != nil:
			return fmt.Errorf("failed to read %q: %w", key, err)
		default:
			prev[key] = old
		}
	}

	for i, key := range keys {
		if err := s.Set(ctx, key, values[key]); err != nil {
			err = fmt.Errorf("failed to write %q: %w", key, err)
			return errors.Join(err, restore(ctx, s, keys[:i], prev))
		}
	}
	return nil
}

func restore(ctx context.Context, s Storage, keys []string, prev map[string][]byte) error {
	var errs []error
	for _, key := range keys {
		var err error
		if prev[key] == nil {
			err = s.Delete(ctx, key)
		} else {
			err = s.Set(ctx, key, prev[key])
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func keyList(values map[string][]byte) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, fmt.Sprintf("%q", key))
	}
	sort.Strings(keys)
	return fmt.Sprint(keys)
}
