package community

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/ButyrinIA/community/internal/seed"
	"github.com/ButyrinIA/community/internal/storage"
	"github.com/ButyrinIA/community/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type stubSession struct {
	user *models.User
}

func (s *stubSession) CurrentUser() (models.User, bool) {
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// мок для интерфейса storage.Storage
type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockStorage) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

var errDiskFull = errors.New("диск заполнен")

// failingStore отказывает в записи выбранного ключа, в том числе внутри SetMany
type failingStore struct {
	*memory.MemoryStorage
	key string
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if key == s.key {
		return errDiskFull
	}
	return s.MemoryStorage.Set(ctx, key, value)
}

func (s *failingStore) SetMany(ctx context.Context, values map[string][]byte) error {
	if _, ok := values[s.key]; ok {
		return errDiskFull
	}
	return s.MemoryStorage.SetMany(ctx, values)
}

// sequentialStore скрывает SetMany, ключи пишутся по одному
type sequentialStore struct {
	storage.Storage
}

func ptr(s string) *string {
	return &s
}

var (
	alice = &models.User{ID: "user_alice", Username: "alice", Avatar: "https://example.com/alice.png"}
	bob   = &models.User{ID: "user_bob", Username: "bob"}
)

func fixture() *seed.Dataset {
	day := func(d int) time.Time { return time.Date(2023, 7, d, 0, 0, 0, 0, time.UTC) }

	return &seed.Dataset{
		Communities: []models.Community{
			{ID: "book-club", Name: "Book Club", Description: "Discuss books and poetry", Category: "Literature", CreatedAt: day(1), MemberCount: 3, Topics: []string{"Fiction"}, IsActive: true},
			{ID: "quiet", Name: "Quiet Corner", Description: "Nobody here yet", Category: "Misc", CreatedAt: day(2), MemberCount: 0, Topics: []string{}},
			{ID: "tech", Name: "Tech Innovators", Description: "Latest TECH trends", Category: "Technology", CreatedAt: day(3), MemberCount: 10, Topics: []string{"AI"}},
			{ID: "poets", Name: "Poets", Description: "Verse", Category: "Literature", CreatedAt: day(4), MemberCount: 1, Topics: []string{}},
		},
		Posts: []models.Post{
			{ID: "p1", CommunityID: "book-club", Title: "Favourite novels", UserID: "user_alice", Username: "alice", CreatedAt: day(10), Upvotes: 1, CommentCount: 4, Tags: []string{"Books"}},
			{ID: "p2", CommunityID: "book-club", Title: "Poetry night", UserID: "user_bob", Username: "bob", CreatedAt: day(12), Upvotes: 5, Downvotes: 1, Tags: []string{}},
			{ID: "p3", CommunityID: "tech", Title: "Quantum hype", UserID: "user_alice", Username: "alice", CreatedAt: day(11), Downvotes: 3, Tags: []string{}},
		},
		Comments: []models.Comment{
			{ID: "1", PostID: "p1", UserID: "user_bob", Username: "bob", Content: "root", CreatedAt: day(10)},
			{ID: "2", PostID: "p1", UserID: "user_alice", Username: "alice", Content: "reply to 1", CreatedAt: day(11), ParentID: ptr("1")},
			{ID: "3", PostID: "p1", UserID: "user_bob", Username: "bob", Content: "another reply to 1", CreatedAt: day(12), ParentID: ptr("1")},
			{ID: "4", PostID: "p1", UserID: "user_bob", Username: "bob", Content: "reply to 2", CreatedAt: day(13), ParentID: ptr("2")},
		},
	}
}

func newProvider(t *testing.T, store storage.Storage, session Session) *Provider {
	t.Helper()

	p, err := New(context.Background(), store, session,
		WithLogger(zaptest.NewLogger(t)),
		WithClock(func() time.Time { return now }),
		WithSeed(fixture()),
	)
	require.NoError(t, err, "Ошибка при создании провайдера")
	return p
}

func TestNew_SeedsEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	p, err := New(ctx, store, &stubSession{}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	ds, err := seed.Default()
	require.NoError(t, err)
	assert.Equal(t, ds.Communities, p.Communities())
	assert.Equal(t, ds.Posts, p.Posts())
	assert.Equal(t, ds.Comments, p.Comments())

	for _, key := range []string{storage.KeyCommunities, storage.KeyPosts, storage.KeyComments} {
		_, err := store.Get(ctx, key)
		assert.NoError(t, err, "Коллекция %s должна сохраняться сразу", key)
	}
}

func TestNew_ReadsPersistedCopy(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	newProvider(t, store, &stubSession{})

	custom := []models.Community{{ID: "only", Name: "Only", Category: "Misc", Topics: []string{}}}
	require.NoError(t, storage.SetJSON(ctx, store, storage.KeyCommunities, custom))

	p := newProvider(t, store, &stubSession{})
	assert.Equal(t, custom, p.Communities(), "Повторная загрузка не должна перезаписывать данные")
	assert.Len(t, p.Posts(), 3)
}

func TestNew_SeedsOnlyMissingCollections(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, storage.SetJSON(ctx, store, storage.KeyPosts, []models.Post{}))

	p := newProvider(t, store, &stubSession{})
	assert.Empty(t, p.Posts())
	assert.Len(t, p.Communities(), 4)
	assert.Len(t, p.Comments(), 4)
}

func TestJoinLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		store := memory.New()
		p := newProvider(t, store, &stubSession{user: alice})

		for _, c := range p.Communities() {
			before := c.MemberCount

			require.NoError(t, p.JoinCommunity(ctx, c.ID))
			member, err := p.IsMember(ctx, c.ID)
			require.NoError(t, err)
			assert.True(t, member)
			joined, _ := p.Community(c.ID)
			assert.Equal(t, before+1, joined.MemberCount)

			require.NoError(t, p.LeaveCommunity(ctx, c.ID))
			member, err = p.IsMember(ctx, c.ID)
			require.NoError(t, err)
			assert.False(t, member, "После выхода пользователь не участник")
			left, _ := p.Community(c.ID)
			assert.Equal(t, before, left.MemberCount, "Счетчик должен вернуться к исходному")
		}
	})

	t.Run("membership snapshot persisted", func(t *testing.T) {
		store := memory.New()
		p := newProvider(t, store, &stubSession{user: alice})

		require.NoError(t, p.JoinCommunity(ctx, "book-club"))

		var joined []models.Community
		found, err := storage.GetJSON(ctx, store, storage.MembershipKey(alice.ID), &joined)
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, joined, 1)
		assert.Equal(t, "book-club", joined[0].ID)

		var communities []models.Community
		_, err = storage.GetJSON(ctx, store, storage.KeyCommunities, &communities)
		require.NoError(t, err)
		assert.Equal(t, 4, communities[0].MemberCount)

		mine, err := p.UserCommunities(ctx)
		require.NoError(t, err)
		assert.Equal(t, joined, mine)
	})

	t.Run("leave clamps at zero", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})

		require.NoError(t, p.LeaveCommunity(ctx, "quiet"))
		quiet, _ := p.Community("quiet")
		assert.Equal(t, 0, quiet.MemberCount, "Счетчик не может быть отрицательным")
	})

	t.Run("no session", func(t *testing.T) {
		store := memory.New()
		p := newProvider(t, store, &stubSession{})

		require.NoError(t, p.JoinCommunity(ctx, "book-club"))
		require.NoError(t, p.LeaveCommunity(ctx, "tech"))

		book, _ := p.Community("book-club")
		assert.Equal(t, 3, book.MemberCount)
		tech, _ := p.Community("tech")
		assert.Equal(t, 10, tech.MemberCount)

		member, err := p.IsMember(ctx, "book-club")
		require.NoError(t, err)
		assert.False(t, member)

		mine, err := p.UserCommunities(ctx)
		require.NoError(t, err)
		assert.Empty(t, mine)

		keys, err := store.Keys(ctx, "userCommunities_")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("unknown community", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})
		before := p.Communities()

		require.NoError(t, p.JoinCommunity(ctx, "missing"))
		assert.Equal(t, before, p.Communities())

		member, err := p.IsMember(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, member)
	})

	t.Run("membership follows session user", func(t *testing.T) {
		store := memory.New()
		session := &stubSession{user: alice}
		p := newProvider(t, store, session)

		require.NoError(t, p.JoinCommunity(ctx, "tech"))

		session.user = bob
		member, err := p.IsMember(ctx, "tech")
		require.NoError(t, err)
		assert.False(t, member, "Членство хранится отдельно для каждого пользователя")

		session.user = alice
		member, err = p.IsMember(ctx, "tech")
		require.NoError(t, err)
		assert.True(t, member)
	})
}

func TestCreatePost(t *testing.T) {
	ctx := context.Background()

	t.Run("attributed and persisted", func(t *testing.T) {
		store := memory.New()
		p := newProvider(t, store, &stubSession{user: alice})

		post, err := p.CreatePost(ctx, "book-club", "New thread", "Body", "Books", "Poetry")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(post.ID, "post_"))
		assert.Equal(t, "book-club", post.CommunityID)
		assert.Equal(t, alice.ID, post.UserID)
		assert.Equal(t, alice.Username, post.Username)
		assert.Equal(t, alice.Avatar, post.UserAvatar)
		assert.Equal(t, now, post.CreatedAt)
		assert.Zero(t, post.Upvotes)
		assert.Zero(t, post.Downvotes)
		assert.Zero(t, post.CommentCount)
		assert.Equal(t, []string{"Books", "Poetry"}, post.Tags)

		stored, ok := p.Post(post.ID)
		require.True(t, ok)
		assert.Equal(t, post, stored)

		var posts []models.Post
		_, err = storage.GetJSON(ctx, store, storage.KeyPosts, &posts)
		require.NoError(t, err)
		assert.Equal(t, post, posts[len(posts)-1])
	})

	t.Run("default tags", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})

		post, err := p.CreatePost(ctx, "tech", "Untagged", "Body")
		require.NoError(t, err)
		assert.Equal(t, []string{}, post.Tags)
	})

	t.Run("unique ids", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})

		first, err := p.CreatePost(ctx, "tech", "One", "")
		require.NoError(t, err)
		second, err := p.CreatePost(ctx, "tech", "Two", "")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("no session", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{})

		_, err := p.CreatePost(ctx, "tech", "Title", "Body")
		assert.ErrorIs(t, err, ErrUnauthenticated)
		assert.Len(t, p.Posts(), 3)
	})

	t.Run("unknown community", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})

		_, err := p.CreatePost(ctx, "missing", "Title", "Body")
		assert.ErrorIs(t, err, ErrCommunityNotFound)
	})
}

func TestCreateComment(t *testing.T) {
	ctx := context.Background()

	t.Run("counts top-level and replies", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: bob})
		countOf := func() int {
			post, _ := p.Post("p1")
			return post.CommentCount
		}

		before := countOf()
		top, err := p.CreateComment(ctx, "p1", "top-level", nil)
		require.NoError(t, err)
		assert.Nil(t, top.ParentID)
		assert.Equal(t, before+1, countOf())

		reply, err := p.CreateComment(ctx, "p1", "deep reply", ptr("4"))
		require.NoError(t, err)
		require.NotNil(t, reply.ParentID)
		assert.Equal(t, "4", *reply.ParentID)
		assert.Equal(t, before+2, countOf(), "Ответ любой глубины увеличивает счетчик на единицу")

		other, _ := p.Post("p2")
		assert.Equal(t, 0, other.CommentCount, "Другие посты не меняются")
	})

	t.Run("attributed", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})

		c, err := p.CreateComment(ctx, "p2", "Hello", nil)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(c.ID, "comment_"))
		assert.Equal(t, alice.ID, c.UserID)
		assert.Equal(t, alice.Avatar, c.UserAvatar)
		assert.Equal(t, now, c.CreatedAt)
		assert.Equal(t, []models.Comment{c}, p.PostComments("p2"))
	})

	t.Run("empty parent is top-level", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})

		c, err := p.CreateComment(ctx, "p2", "Hello", ptr(""))
		require.NoError(t, err)
		assert.Nil(t, c.ParentID)
	})

	t.Run("no session", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{})

		_, err := p.CreateComment(ctx, "p1", "Hello", nil)
		assert.ErrorIs(t, err, ErrUnauthenticated)

		post, _ := p.Post("p1")
		assert.Equal(t, 4, post.CommentCount)
	})

	t.Run("unknown post", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})

		_, err := p.CreateComment(ctx, "missing", "Hello", nil)
		assert.ErrorIs(t, err, ErrPostNotFound)
	})

	t.Run("parent from another post", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})

		_, err := p.CreateComment(ctx, "p2", "Hello", ptr("1"))
		assert.ErrorIs(t, err, ErrParentNotFound)

		_, err = p.CreateComment(ctx, "p1", "Hello", ptr("nope"))
		assert.ErrorIs(t, err, ErrParentNotFound)
	})
}

func TestVotes(t *testing.T) {
	ctx := context.Background()

	t.Run("posts", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})
		before, _ := p.Post("p2")

		require.NoError(t, p.UpvotePost(ctx, "p2"))
		require.NoError(t, p.UpvotePost(ctx, "p2"))

		after, _ := p.Post("p2")
		assert.Equal(t, before.Upvotes+2, after.Upvotes)
		assert.Equal(t, before.Downvotes, after.Downvotes)

		require.NoError(t, p.DownvotePost(ctx, "p2"))
		after, _ = p.Post("p2")
		assert.Equal(t, before.Downvotes+1, after.Downvotes)
		assert.Equal(t, before.Upvotes+2, after.Upvotes)
	})

	t.Run("net score may be negative", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})

		require.NoError(t, p.DownvotePost(ctx, "p3"))
		post, _ := p.Post("p3")
		assert.Equal(t, -4, post.NetScore())
	})

	t.Run("comments", func(t *testing.T) {
		store := memory.New()
		p := newProvider(t, store, &stubSession{user: bob})

		require.NoError(t, p.UpvoteComment(ctx, "3"))
		require.NoError(t, p.DownvoteComment(ctx, "3"))
		require.NoError(t, p.DownvoteComment(ctx, "3"))

		var comments []models.Comment
		_, err := storage.GetJSON(ctx, store, storage.KeyComments, &comments)
		require.NoError(t, err)
		assert.Equal(t, 1, comments[2].Upvotes)
		assert.Equal(t, 2, comments[2].Downvotes)
		assert.Equal(t, -1, comments[2].NetScore())
	})

	t.Run("no session", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{})
		posts, comments := p.Posts(), p.Comments()

		require.NoError(t, p.UpvotePost(ctx, "p1"))
		require.NoError(t, p.DownvotePost(ctx, "p1"))
		require.NoError(t, p.UpvoteComment(ctx, "1"))
		require.NoError(t, p.DownvoteComment(ctx, "1"))

		assert.Equal(t, posts, p.Posts())
		assert.Equal(t, comments, p.Comments())
	})

	t.Run("unknown id", func(t *testing.T) {
		p := newProvider(t, memory.New(), &stubSession{user: alice})
		posts := p.Posts()

		require.NoError(t, p.UpvotePost(ctx, "missing"))
		require.NoError(t, p.UpvoteComment(ctx, "missing"))
		assert.Equal(t, posts, p.Posts())
	})
}

func TestReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	session := &stubSession{user: alice}

	p := newProvider(t, store, session)
	post, err := p.CreatePost(ctx, "tech", "Round trip", "Body", "Go")
	require.NoError(t, err)
	root, err := p.CreateComment(ctx, post.ID, "First", nil)
	require.NoError(t, err)
	_, err = p.CreateComment(ctx, post.ID, "Second", &root.ID)
	require.NoError(t, err)
	require.NoError(t, p.UpvotePost(ctx, post.ID))
	require.NoError(t, p.DownvoteComment(ctx, root.ID))
	require.NoError(t, p.JoinCommunity(ctx, "tech"))

	reloaded := newProvider(t, store, session)
	assert.Equal(t, p.Communities(), reloaded.Communities())
	assert.Equal(t, p.Posts(), reloaded.Posts())
	assert.Equal(t, p.Comments(), reloaded.Comments())
	assert.Equal(t, p.ThreadedComments(post.ID), reloaded.ThreadedComments(post.ID))

	member, err := reloaded.IsMember(ctx, "tech")
	require.NoError(t, err)
	assert.True(t, member)

	got, _ := reloaded.Post(post.ID)
	assert.Equal(t, now, got.CreatedAt, "Даты восстанавливаются из текста")
}

func TestPersistFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store := &mockStorage{}
	store.On("Get", mock.Anything, mock.Anything).Return([]byte(nil), storage.ErrNotFound)
	store.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil).Times(3)
	store.On("Set", mock.Anything, storage.KeyPosts, mock.Anything).Return(errors.New("диск заполнен"))

	p := newProvider(t, store, &stubSession{user: alice})

	_, err := p.CreatePost(ctx, "tech", "Lost", "Body")
	assert.ErrorContains(t, err, "диск заполнен")
	assert.Len(t, p.Posts(), 3, "Состояние в памяти меняется только после записи")

	err = p.UpvotePost(ctx, "p1")
	assert.Error(t, err)
	post, _ := p.Post("p1")
	assert.Equal(t, 1, post.Upvotes)

	store.AssertExpectations(t)
}

func TestTwoKeyWriteFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	session := &stubSession{user: alice}
	membershipKey := storage.MembershipKey(alice.ID)

	modes := map[string]func(*failingStore) storage.Storage{
		"atomic":     func(s *failingStore) storage.Storage { return s },
		"sequential": func(s *failingStore) storage.Storage { return sequentialStore{s} },
	}

	type snapshot struct {
		communities []models.Community
		posts       []models.Post
		comments    []models.Comment
		joined      []models.Community
	}
	snapshotOf := func(t *testing.T, p *Provider) snapshot {
		t.Helper()
		joined, err := p.UserCommunities(ctx)
		require.NoError(t, err)
		return snapshot{p.Communities(), p.Posts(), p.Comments(), joined}
	}

	tests := []struct {
		name    string
		failKey string
		prepare func(t *testing.T, p *Provider)
		mutate  func(p *Provider) error
	}{
		{
			name:    "join, communities fail",
			failKey: storage.KeyCommunities,
			mutate:  func(p *Provider) error { return p.JoinCommunity(ctx, "book-club") },
		},
		{
			name:    "join, membership fails",
			failKey: membershipKey,
			mutate:  func(p *Provider) error { return p.JoinCommunity(ctx, "book-club") },
		},
		{
			name:    "leave, communities fail",
			failKey: storage.KeyCommunities,
			prepare: func(t *testing.T, p *Provider) { require.NoError(t, p.JoinCommunity(ctx, "book-club")) },
			mutate:  func(p *Provider) error { return p.LeaveCommunity(ctx, "book-club") },
		},
		{
			name:    "leave, membership fails",
			failKey: membershipKey,
			prepare: func(t *testing.T, p *Provider) { require.NoError(t, p.JoinCommunity(ctx, "book-club")) },
			mutate:  func(p *Provider) error { return p.LeaveCommunity(ctx, "book-club") },
		},
		{
			name:    "comment, posts fail",
			failKey: storage.KeyPosts,
			mutate: func(p *Provider) error {
				_, err := p.CreateComment(ctx, "p1", "lost", ptr("2"))
				return err
			},
		},
		{
			name:    "comment, comments fail",
			failKey: storage.KeyComments,
			mutate: func(p *Provider) error {
				_, err := p.CreateComment(ctx, "p1", "lost", nil)
				return err
			},
		},
	}

	for mode, wrap := range modes {
		for _, tt := range tests {
			t.Run(mode+"/"+tt.name, func(t *testing.T) {
				base := memory.New()
				setup := newProvider(t, base, session)
				if tt.prepare != nil {
					tt.prepare(t, setup)
				}
				// список членства создается при первом чтении, до сбоя
				_, err := setup.IsMember(ctx, "book-club")
				require.NoError(t, err)

				p := newProvider(t, wrap(&failingStore{MemoryStorage: base, key: tt.failKey}), session)
				before := snapshotOf(t, p)

				err = tt.mutate(p)
				assert.ErrorIs(t, err, errDiskFull)
				assert.Equal(t, before, snapshotOf(t, p), "Состояние в памяти не должно меняться")

				reloaded := newProvider(t, base, session)
				assert.Equal(t, before, snapshotOf(t, reloaded), "Хранилище не должно меняться")
			})
		}
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	p := newProvider(t, memory.New(), &stubSession{user: alice})

	communities := p.Communities()
	communities[0].Topics[0] = "changed"
	communities[0].MemberCount = 999

	book, _ := p.Community("book-club")
	assert.Equal(t, []string{"Fiction"}, book.Topics)
	assert.Equal(t, 3, book.MemberCount)

	comments := p.PostComments("p1")
	*comments[1].ParentID = "changed"
	assert.Equal(t, "1", *p.Comments()[1].ParentID)
}
