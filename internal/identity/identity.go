// Package identity управляет сессией текущего пользователя и учетными записями.
//
// Сессия хранится под ключом user без пароля, учетные записи с паролем - под
// ключом users. Каждое изменение сначала сохраняется, затем применяется в памяти,
// поэтому новый Provider над тем же хранилищем восстанавливает последнюю сессию.
package identity

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/ButyrinIA/community/internal/storage"
	"go.uber.org/zap"
)

type Provider struct {
	mu     sync.Mutex
	store  storage.Storage
	hasher Hasher
	logger *zap.Logger
	now    func() time.Time

	user *models.User
}

type Option func(*Provider)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

func WithHasher(hasher Hasher) Option {
	return func(p *Provider) { p.hasher = hasher }
}

// WithClock подменяет источник времени для даты регистрации
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// UserPatch - частичное обновление профиля. Nil-поля не меняются.
// Идентификатор и дата регистрации не редактируются.
type UserPatch struct {
	Username  *string
	Email     *string
	Avatar    *string
	Bio       *string
	Interests []string
}

// New создает Provider и восстанавливает сохраненную сессию
func New(ctx context.Context, store storage.Storage, opts ...Option) (*Provider, error) {
	p := &Provider{
		store:  store,
		hasher: BcryptHasher{},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	var user models.User
	found, err := storage.GetJSON(ctx, store, storage.KeyUser, &user)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	if found {
		p.user = &user
		p.logger.Debug("session restored", zap.String("user_id", user.ID))
	}

	return p, nil
}

// CurrentUser возвращает копию пользователя текущей сессии
func (p *Provider) CurrentUser() (models.User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.user == nil {
		return models.User{}, false
	}
	return cloneUser(*p.user), true
}

func (p *Provider) IsAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.user != nil
}

// Login ищет учетную запись с точным совпадением email и пароля. При неудаче
// возвращает false без ошибки и не создает сессию.
func (p *Provider) Login(ctx context.Context, email, password string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, err := p.loadUsers(ctx)
	if err != nil {
		return false, err
	}

	for _, record := range users {
		if record.Email != email || !p.hasher.Compare(record.Password, password) {
			continue
		}
		if err := p.startSession(ctx, record.User); err != nil {
			return false, err
		}
		p.logger.Info("user logged in", zap.String("user_id", record.ID))
		return true, nil
	}

	p.logger.Debug("login declined", zap.String("email", email))
	return false, nil
}

// Signup создает учетную запись и сразу входит под ней. Возвращает false, если
// email уже занят (сравнение с учетом регистра).
func (p *Provider) Signup(ctx context.Context, username, email, password string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, err := p.loadUsers(ctx)
	if err != nil {
		return false, err
	}

	for _, record := range users {
		if record.Email == email {
			p.logger.Debug("signup declined: email taken", zap.String("email", email))
			return false, nil
		}
	}

	hash, err := p.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	record := models.UserRecord{
		User: models.User{
			ID:        models.NewID("user"),
			Username:  username,
			Email:     email,
			JoinDate:  p.now().UTC(),
			Interests: []string{},
		},
		Password: hash,
	}

	if err := storage.SetJSON(ctx, p.store, storage.KeyUsers, append(users, record)); err != nil {
		return false, err
	}
	if err := p.startSession(ctx, record.User); err != nil {
		return false, err
	}

	p.logger.Info("user signed up", zap.String("user_id", record.ID), zap.String("username", username))
	return true, nil
}

// Logout завершает сессию. Учетная запись остается.
func (p *Provider) Logout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Delete(ctx, storage.KeyUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	if p.user != nil {
		p.logger.Info("user logged out", zap.String("user_id", p.user.ID))
	}
	p.user = nil
	return nil
}

// UpdateUser применяет изменения к сессии и к учетной записи, сохраняя пароль.
// Без сессии ничего не делает.
func (p *Provider) UpdateUser(ctx context.Context, patch UserPatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.user == nil {
		return nil
	}

	updated := cloneUser(*p.user)
	if patch.Username != nil {
		updated.Username = *patch.Username
	}
	if patch.Email != nil {
		updated.Email = *patch.Email
	}
	if patch.Avatar != nil {
		updated.Avatar = *patch.Avatar
	}
	if patch.Bio != nil {
		updated.Bio = *patch.Bio
	}
	if patch.Interests != nil {
		updated.Interests = slices.Clone(patch.Interests)
	}

	if err := storage.SetJSON(ctx, p.store, storage.KeyUser, updated); err != nil {
		return err
	}

	users, err := p.loadUsers(ctx)
	if err != nil {
		return err
	}
	if i := slices.IndexFunc(users, func(r models.UserRecord) bool { return r.ID == updated.ID }); i != -1 {
		users[i] = models.UserRecord{User: updated, Password: users[i].Password}
		if err := storage.SetJSON(ctx, p.store, storage.KeyUsers, users); err != nil {
			return err
		}
	}

	p.user = &updated
	p.logger.Debug("user updated", zap.String("user_id", updated.ID))
	return nil
}

func (p *Provider) startSession(ctx context.Context, user models.User) error {
	view := cloneUser(user)
	if err := storage.SetJSON(ctx, p.store, storage.KeyUser, view); err != nil {
		return err
	}
	p.user = &view
	return nil
}

func (p *Provider) loadUsers(ctx context.Context) ([]models.UserRecord, error) {
	var users []models.UserRecord
	if _, err := storage.GetJSON(ctx, p.store, storage.KeyUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func cloneUser(u models.User) models.User {
	u.Interests = slices.Clone(u.Interests)
	return u
}
