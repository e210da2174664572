// Package storagetest содержит общий набор проверок для реализаций storage.Storage.
package storagetest

import (
	"context"
	"testing"

	"github.com/ButyrinIA/community/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run проверяет контракт Get/Set/Delete/Keys и пакетных операций на пустом хранилище, которое
// возвращает newStore
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Set(ctx, storage.KeyCommunities, []byte(`[{"id":"book-club"}]`)))

		value, err := store.Get(ctx, storage.KeyCommunities)
		require.NoError(t, err, "Ошибка при чтении")
		assert.Equal(t, `[{"id":"book-club"}]`, string(value))
	})

	t.Run("Overwrite", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Set(ctx, storage.KeyPosts, []byte(`[]`)))
		require.NoError(t, store.Set(ctx, storage.KeyPosts, []byte(`[{"id":"post1"}]`)))

		value, err := store.Get(ctx, storage.KeyPosts)
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"post1"}]`, string(value), "Последняя запись должна побеждать")
	})

	t.Run("Get Not Found", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(ctx, "non-existent-key")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Set(ctx, storage.KeyUser, []byte(`{"id":"user_1"}`)))
		require.NoError(t, store.Delete(ctx, storage.KeyUser))

		_, err := store.Get(ctx, storage.KeyUser)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.NoError(t, store.Delete(ctx, storage.KeyUser))
	})

	t.Run("Keys", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Set(ctx, storage.MembershipKey("user_b"), []byte(`[]`)))
		require.NoError(t, store.Set(ctx, storage.MembershipKey("user_a"), []byte(`[]`)))
		require.NoError(t, store.Set(ctx, storage.KeyComments, []byte(`[]`)))

		keys, err := store.Keys(ctx, "userCommunities_")
		require.NoError(t, err)
		assert.Equal(t, []string{"userCommunities_user_a", "userCommunities_user_b"}, keys)

		keys, err = store.Keys(ctx, "nothing_")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("SetMany", func(t *testing.T) {
		store := newStore(t)
		ms, ok := store.(storage.MultiSetter)
		if !ok {
			t.Skip("хранилище не поддерживает пакетную запись")
		}

		require.NoError(t, store.Set(ctx, storage.KeyPosts, []byte(`[]`)))
		require.NoError(t, ms.SetMany(ctx, map[string][]byte{
			storage.KeyPosts:    []byte(`[{"id":"post1"}]`),
			storage.KeyComments: []byte(`[{"id":"comment1"}]`),
		}))

		posts, err := store.Get(ctx, storage.KeyPosts)
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"post1"}]`, string(posts), "Существующий ключ перезаписывается")

		comments, err := store.Get(ctx, storage.KeyComments)
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"comment1"}]`, string(comments))
	})

	t.Run("GetMany", func(t *testing.T) {
		store := newStore(t)
		mg, ok := store.(storage.MultiGetter)
		if !ok {
			t.Skip("хранилище не поддерживает пакетное чтение")
		}

		require.NoError(t, store.Set(ctx, storage.KeyPosts, []byte(`[]`)))
		require.NoError(t, store.Set(ctx, storage.KeyComments, []byte(`[1]`)))

		values, err := mg.GetMany(ctx, []string{storage.KeyPosts, storage.KeyComments, storage.KeyUsers})
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{
			storage.KeyPosts:    []byte(`[]`),
			storage.KeyComments: []byte(`[1]`),
		}, values)
	})
}
