// Package community хранит сообщества, посты, комментарии и членство
// пользователей. Коллекции держатся в памяти целиком и записываются в хранилище
// при каждом изменении: сначала запись, затем замена состояния в памяти.
package community

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/ButyrinIA/community/internal/seed"
	"github.com/ButyrinIA/community/internal/storage"
	"go.uber.org/zap"
)

var (
	// ErrUnauthenticated возвращается при создании контента без сессии
	ErrUnauthenticated = errors.New("user must be logged in")

	ErrCommunityNotFound = errors.New("community not found")
	ErrPostNotFound      = errors.New("post not found")

	// ErrParentNotFound - родительский комментарий отсутствует или относится к другому посту
	ErrParentNotFound = errors.New("parent comment not found")
)

// Session отдает пользователя текущей сессии. Реализуется identity.Provider.
type Session interface {
	CurrentUser() (models.User, bool)
}

type Provider struct {
	mu      sync.Mutex
	store   storage.Storage
	session Session
	logger  *zap.Logger
	now     func() time.Time
	dataset *seed.Dataset

	communities []models.Community
	posts       []models.Post
	comments    []models.Comment
	// членство по идентификатору пользователя, читается лениво
	memberships map[string][]models.Community
}

type Option func(*Provider)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithSeed задает набор данных для первого запуска вместо встроенного
func WithSeed(ds *seed.Dataset) Option {
	return func(p *Provider) { p.dataset = ds }
}

// New загружает коллекции из хранилища. Отсутствующие коллекции заполняются
// начальными данными и сразу сохраняются, повторный запуск читает сохраненное.
func New(ctx context.Context, store storage.Storage, session Session, opts ...Option) (*Provider, error) {
	p := &Provider{
		store:       store,
		session:     session,
		logger:      zap.NewNop(),
		now:         time.Now,
		memberships: make(map[string][]models.Community),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.load(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) load(ctx context.Context) error {
	loader := storage.NewLoader(p.store)
	found, err := loader.LoadJSON(ctx, map[string]any{
		storage.KeyCommunities: &p.communities,
		storage.KeyPosts:       &p.posts,
		storage.KeyComments:    &p.comments,
	})
	if err != nil {
		return fmt.Errorf("failed to load collections: %w", err)
	}

	if found[storage.KeyCommunities] && found[storage.KeyPosts] && found[storage.KeyComments] {
		p.logger.Debug("collections loaded",
			zap.Int("communities", len(p.communities)),
			zap.Int("posts", len(p.posts)),
			zap.Int("comments", len(p.comments)))
		return nil
	}

	ds := p.dataset
	if ds == nil {
		if ds, err = seed.Default(); err != nil {
			return err
		}
	}

	if !found[storage.KeyCommunities] {
		if err := storage.SetJSON(ctx, p.store, storage.KeyCommunities, ds.Communities); err != nil {
			return err
		}
		p.communities = ds.Communities
		p.logger.Info("communities seeded", zap.Int("count", len(ds.Communities)))
	}
	if !found[storage.KeyPosts] {
		if err := storage.SetJSON(ctx, p.store, storage.KeyPosts, ds.Posts); err != nil {
			return err
		}
		p.posts = ds.Posts
		p.logger.Info("posts seeded", zap.Int("count", len(ds.Posts)))
	}
	if !found[storage.KeyComments] {
		if err := storage.SetJSON(ctx, p.store, storage.KeyComments, ds.Comments); err != nil {
			return err
		}
		p.comments = ds.Comments
		p.logger.Info("comments seeded", zap.Int("count", len(ds.Comments)))
	}

	return nil
}
