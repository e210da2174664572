package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/graph-gophers/dataloader/v7"
)

// Loader собирает одновременные чтения в один пакетный запрос к хранилищу.
// Кэш отключен: значения могут меняться между вызовами.
type Loader struct {
	store  Storage
	loader *dataloader.Loader[string, []byte]
}

// NewLoader создает Loader поверх хранилища
func NewLoader(store Storage) *Loader {
	l := &Loader{store: store}
	l.loader = dataloader.NewBatchedLoader(
		l.batch,
		dataloader.WithCache[string, []byte](&dataloader.NoCache[string, []byte]{}),
	)
	return l
}

func (l *Loader) batch(ctx context.Context, keys []string) []*dataloader.Result[[]byte] {
	results := make([]*dataloader.Result[[]byte], len(keys))

	if mg, ok := l.store.(MultiGetter); ok {
		values, err := mg.GetMany(ctx, keys)
		for i, key := range keys {
			switch value, found := values[key]; {
			case err != nil:
				results[i] = &dataloader.Result[[]byte]{Error: err}
			case !found:
				results[i] = &dataloader.Result[[]byte]{Error: ErrNotFound}
			default:
				results[i] = &dataloader.Result[[]byte]{Data: value}
			}
		}
		return results
	}

	for i, key := range keys {
		value, err := l.store.Get(ctx, key)
		results[i] = &dataloader.Result[[]byte]{Data: value, Error: err}
	}
	return results
}

// Load читает одно значение
func (l *Loader) Load(ctx context.Context, key string) ([]byte, error) {
	return l.loader.Load(ctx, key)()
}

// LoadJSON читает все ключи из dst одним пакетом и декодирует значения в
// соответствующие указатели. Возвращает множество найденных ключей.
func (l *Loader) LoadJSON(ctx context.Context, dst map[string]any) (map[string]bool, error) {
	thunks := make(map[string]dataloader.Thunk[[]byte], len(dst))
	for key := range dst {
		thunks[key] = l.loader.Load(ctx, key)
	}

	found := make(map[string]bool, len(dst))
	for key, thunk := range thunks {
		data, err := thunk()
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", key, err)
		}
		if err := json.Unmarshal(data, dst[key]); err != nil {
			return nil, fmt.Errorf("failed to decode %q: %w", key, err)
		}
		found[key] = true
	}
	return found, nil
}
