package community

import (
	"context"
	"slices"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/ButyrinIA/community/internal/storage"
	"go.uber.org/zap"
)

// JoinCommunity добавляет снимок сообщества в список пользователя и
// увеличивает счетчик участников. Без сессии или для неизвестного сообщества
// ничего не делает. Повторное вступление не проверяется.
func (p *Provider) JoinCommunity(ctx context.Context, communityID string) error {
	user, ok := p.session.CurrentUser()
	if !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.communityIndex(communityID)
	if i == -1 {
		return nil
	}

	joined, err := p.membership(ctx, user.ID)
	if err != nil {
		return err
	}
	joined = append(slices.Clone(joined), cloneCommunity(p.communities[i]))

	communities := slices.Clone(p.communities)
	communities[i].MemberCount++

	if err := p.saveMembershipAndCommunities(ctx, user.ID, joined, communities); err != nil {
		return err
	}

	p.logger.Info("community joined",
		zap.String("user_id", user.ID),
		zap.String("community_id", communityID),
		zap.Int("member_count", communities[i].MemberCount))
	return nil
}

// LeaveCommunity убирает сообщество из списка пользователя и уменьшает счетчик
// участников, не опуская его ниже нуля. Без сессии ничего не делает.
func (p *Provider) LeaveCommunity(ctx context.Context, communityID string) error {
	user, ok := p.session.CurrentUser()
	if !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	joined, err := p.membership(ctx, user.ID)
	if err != nil {
		return err
	}
	joined = slices.DeleteFunc(slices.Clone(joined), func(c models.Community) bool {
		return c.ID == communityID
	})

	communities := slices.Clone(p.communities)
	if i := p.communityIndex(communityID); i != -1 {
		communities[i].MemberCount = max(0, communities[i].MemberCount-1)
	}

	if err := p.saveMembershipAndCommunities(ctx, user.ID, joined, communities); err != nil {
		return err
	}

	p.logger.Info("community left", zap.String("user_id", user.ID), zap.String("community_id", communityID))
	return nil
}

// IsMember сообщает, состоит ли пользователь сессии в сообществе
func (p *Provider) IsMember(ctx context.Context, communityID string) (bool, error) {
	user, ok := p.session.CurrentUser()
	if !ok {
		return false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	joined, err := p.membership(ctx, user.ID)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(joined, func(c models.Community) bool { return c.ID == communityID }), nil
}

// UserCommunities возвращает снимки сообществ, в которые вступил пользователь
// сессии, в порядке вступления. Без сессии список пуст.
func (p *Provider) UserCommunities(ctx context.Context) ([]models.Community, error) {
	user, ok := p.session.CurrentUser()
	if !ok {
		return []models.Community{}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	joined, err := p.membership(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return cloneCommunities(joined), nil
}

// membership читает список пользователя из кэша или хранилища. Пустой список
// создается и сохраняется при первом обращении.
func (p *Provider) membership(ctx context.Context, userID string) ([]models.Community, error) {
	if joined, ok := p.memberships[userID]; ok {
		return joined, nil
	}

	var joined []models.Community
	found, err := storage.GetJSON(ctx, p.store, storage.MembershipKey(userID), &joined)
	if err != nil {
		return nil, err
	}
	if !found {
		joined = []models.Community{}
		if err := p.saveMembership(ctx, userID, joined); err != nil {
			return nil, err
		}
	}

	p.memberships[userID] = joined
	return joined, nil
}

// saveMembershipAndCommunities записывает список пользователя и счетчики одним
// изменением. Кэш и состояние в памяти меняются только после успешной записи.
func (p *Provider) saveMembershipAndCommunities(ctx context.Context, userID string, joined, communities []models.Community) error {
	err := storage.SetManyJSON(ctx, p.store, map[string]any{
		storage.MembershipKey(userID): joined,
		storage.KeyCommunities:        communities,
	})
	if err != nil {
		return err
	}
	p.memberships[userID] = joined
	p.communities = communities
	return nil
}

func (p *Provider) saveMembership(ctx context.Context, userID string, joined []models.Community) error {
	if err := storage.SetJSON(ctx, p.store, storage.MembershipKey(userID), joined); err != nil {
		return err
	}
	p.memberships[userID] = joined
	return nil
}
