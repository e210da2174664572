package community

import (
	"cmp"
	"slices"
	"strings"

	"github.com/ButyrinIA/community/internal/models"
)

// SortOrder задает порядок ленты постов
type SortOrder int

const (
	// SortNew - сначала новые
	SortNew SortOrder = iota
	// SortTop - сначала с наибольшим рейтингом
	SortTop
)

func (p *Provider) Communities() []models.Community {
	p.mu.Lock()
	defer p.mu.Unlock()

	return cloneCommunities(p.communities)
}

func (p *Provider) Posts() []models.Post {
	p.mu.Lock()
	defer p.mu.Unlock()

	return clonePosts(p.posts)
}

func (p *Provider) Comments() []models.Comment {
	p.mu.Lock()
	defer p.mu.Unlock()

	return cloneComments(p.comments)
}

// Community возвращает сообщество по идентификатору
func (p *Provider) Community(id string) (models.Community, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.communityIndex(id)
	if i == -1 {
		return models.Community{}, false
	}
	return cloneCommunity(p.communities[i]), true
}

// Post возвращает пост по идентификатору
func (p *Provider) Post(id string) (models.Post, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.postIndex(id)
	if i == -1 {
		return models.Post{}, false
	}
	return clonePost(p.posts[i]), true
}

// CommunityPosts возвращает посты сообщества в порядке хранения
func (p *Provider) CommunityPosts(communityID string) []models.Post {
	p.mu.Lock()
	defer p.mu.Unlock()

	return clonePosts(filter(p.posts, func(post models.Post) bool { return post.CommunityID == communityID }))
}

// UserPosts возвращает посты автора
func (p *Provider) UserPosts(userID string) []models.Post {
	p.mu.Lock()
	defer p.mu.Unlock()

	return clonePosts(filter(p.posts, func(post models.Post) bool { return post.UserID == userID }))
}

// PostComments возвращает все комментарии поста плоским списком в порядке хранения
func (p *Provider) PostComments(postID string) []models.Comment {
	p.mu.Lock()
	defer p.mu.Unlock()

	return cloneComments(p.postComments(postID))
}

// ThreadedComments возвращает комментарии поста в виде дерева ответов
func (p *Provider) ThreadedComments(postID string) []*models.CommentNode {
	p.mu.Lock()
	defer p.mu.Unlock()

	return BuildThreads(p.postComments(postID))
}

// SearchCommunities ищет подстроку в названии или описании без учета регистра
func (p *Provider) SearchCommunities(query string) []models.Community {
	p.mu.Lock()
	defer p.mu.Unlock()

	q := strings.ToLower(query)
	return cloneCommunities(filter(p.communities, func(c models.Community) bool {
		return strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Description), q)
	}))
}

// FilterCommunitiesByCategory возвращает сообщества с точно совпадающей категорией
func (p *Provider) FilterCommunitiesByCategory(category string) []models.Community {
	p.mu.Lock()
	defer p.mu.Unlock()

	return cloneCommunities(filter(p.communities, func(c models.Community) bool { return c.Category == category }))
}

// Categories возвращает уникальные категории в порядке первого появления
func (p *Provider) Categories() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	categories := []string{}
	seen := make(map[string]bool)
	for _, c := range p.communities {
		if !seen[c.Category] {
			seen[c.Category] = true
			categories = append(categories, c.Category)
		}
	}
	return categories
}

// FeaturedCommunities возвращает первые n сообществ
func (p *Provider) FeaturedCommunities(n int) []models.Community {
	p.mu.Lock()
	defer p.mu.Unlock()

	n = min(max(n, 0), len(p.communities))
	return cloneCommunities(p.communities[:n])
}

// SortPosts возвращает новый срез, упорядоченный по order. Сортировка
// устойчивая: при равенстве сохраняется исходный порядок.
func SortPosts(posts []models.Post, order SortOrder) []models.Post {
	sorted := slices.Clone(posts)
	switch order {
	case SortTop:
		slices.SortStableFunc(sorted, func(a, b models.Post) int {
			return cmp.Compare(b.NetScore(), a.NetScore())
		})
	default:
		slices.SortStableFunc(sorted, func(a, b models.Post) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	return sorted
}

func (p *Provider) postComments(postID string) []models.Comment {
	return filter(p.comments, func(c models.Comment) bool { return c.PostID == postID })
}

func (p *Provider) communityIndex(id string) int {
	return slices.IndexFunc(p.communities, func(c models.Community) bool { return c.ID == id })
}

func (p *Provider) postIndex(id string) int {
	return slices.IndexFunc(p.posts, func(post models.Post) bool { return post.ID == id })
}

func (p *Provider) commentIndex(id string) int {
	return slices.IndexFunc(p.comments, func(c models.Comment) bool { return c.ID == id })
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := []T{}
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Копии отдаются наружу, чтобы вызывающий код не менял состояние провайдера

func cloneCommunity(c models.Community) models.Community {
	c.Topics = slices.Clone(c.Topics)
	return c
}

func cloneCommunities(items []models.Community) []models.Community {
	out := make([]models.Community, len(items))
	for i, c := range items {
		out[i] = cloneCommunity(c)
	}
	return out
}

func clonePost(p models.Post) models.Post {
	p.Tags = slices.Clone(p.Tags)
	return p
}

func clonePosts(items []models.Post) []models.Post {
	out := make([]models.Post, len(items))
	for i, p := range items {
		out[i] = clonePost(p)
	}
	return out
}

func cloneComment(c models.Comment) models.Comment {
	if c.ParentID != nil {
		parent := *c.ParentID
		c.ParentID = &parent
	}
	return c
}

func cloneComments(items []models.Comment) []models.Comment {
	out := make([]models.Comment, len(items))
	for i, c := range items {
		out[i] = cloneComment(c)
	}
	return out
}
