package community

import (
	"context"
	"slices"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/ButyrinIA/community/internal/storage"
	"go.uber.org/zap"
)

// CreatePost публикует пост от имени пользователя сессии
func (p *Provider) CreatePost(ctx context.Context, communityID, title, content string, tags ...string) (models.Post, error) {
	user, ok := p.session.CurrentUser()
	if !ok {
		return models.Post{}, ErrUnauthenticated
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.communityIndex(communityID) == -1 {
		return models.Post{}, ErrCommunityNotFound
	}

	if tags == nil {
		tags = []string{}
	}
	post := models.Post{
		ID:          models.NewID("post"),
		CommunityID: communityID,
		Title:       title,
		Content:     content,
		UserID:      user.ID,
		Username:    user.Username,
		UserAvatar:  user.Avatar,
		CreatedAt:   p.now().UTC(),
		Tags:        slices.Clone(tags),
	}

	posts := append(slices.Clone(p.posts), post)
	if err := storage.SetJSON(ctx, p.store, storage.KeyPosts, posts); err != nil {
		return models.Post{}, err
	}
	p.posts = posts

	p.logger.Info("post created",
		zap.String("post_id", post.ID),
		zap.String("community_id", communityID),
		zap.String("user_id", user.ID))
	return clonePost(post), nil
}

// CreateComment добавляет комментарий или ответ (parentID != nil) и увеличивает
// счетчик комментариев поста на единицу независимо от глубины вложенности.
func (p *Provider) CreateComment(ctx context.Context, postID, content string, parentID *string) (models.Comment, error) {
	user, ok := p.session.CurrentUser()
	if !ok {
		return models.Comment{}, ErrUnauthenticated
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pi := p.postIndex(postID)
	if pi == -1 {
		return models.Comment{}, ErrPostNotFound
	}

	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		ci := p.commentIndex(*parentID)
		if ci == -1 || p.comments[ci].PostID != postID {
			return models.Comment{}, ErrParentNotFound
		}
		parent := *parentID
		parentID = &parent
	}

	comment := models.Comment{
		ID:         models.NewID("comment"),
		PostID:     postID,
		UserID:     user.ID,
		Username:   user.Username,
		UserAvatar: user.Avatar,
		Content:    content,
		CreatedAt:  p.now().UTC(),
		ParentID:   parentID,
	}

	comments := append(slices.Clone(p.comments), comment)
	posts := slices.Clone(p.posts)
	posts[pi].CommentCount++

	err := storage.SetManyJSON(ctx, p.store, map[string]any{
		storage.KeyComments: comments,
		storage.KeyPosts:    posts,
	})
	if err != nil {
		return models.Comment{}, err
	}
	p.comments = comments
	p.posts = posts

	p.logger.Info("comment created",
		zap.String("comment_id", comment.ID),
		zap.String("post_id", postID),
		zap.Bool("reply", parentID != nil))
	return cloneComment(comment), nil
}

// UpvotePost и остальные методы голосования прибавляют единицу к счетчику.
// Без сессии ничего не делают. Повторные голоса не отслеживаются.
func (p *Provider) UpvotePost(ctx context.Context, postID string) error {
	return p.votePost(ctx, postID, func(post *models.Post) { post.Upvotes++ })
}

func (p *Provider) DownvotePost(ctx context.Context, postID string) error {
	return p.votePost(ctx, postID, func(post *models.Post) { post.Downvotes++ })
}

func (p *Provider) UpvoteComment(ctx context.Context, commentID string) error {
	return p.voteComment(ctx, commentID, func(c *models.Comment) { c.Upvotes++ })
}

func (p *Provider) DownvoteComment(ctx context.Context, commentID string) error {
	return p.voteComment(ctx, commentID, func(c *models.Comment) { c.Downvotes++ })
}

func (p *Provider) votePost(ctx context.Context, postID string, apply func(*models.Post)) error {
	if _, ok := p.session.CurrentUser(); !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.postIndex(postID)
	if i == -1 {
		return nil
	}

	posts := slices.Clone(p.posts)
	apply(&posts[i])
	if err := storage.SetJSON(ctx, p.store, storage.KeyPosts, posts); err != nil {
		return err
	}
	p.posts = posts

	p.logger.Debug("post voted",
		zap.String("post_id", postID),
		zap.Int("upvotes", posts[i].Upvotes),
		zap.Int("downvotes", posts[i].Downvotes))
	return nil
}

func (p *Provider) voteComment(ctx context.Context, commentID string, apply func(*models.Comment)) error {
	if _, ok := p.session.CurrentUser(); !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.commentIndex(commentID)
	if i == -1 {
		return nil
	}

	comments := slices.Clone(p.comments)
	apply(&comments[i])
	if err := storage.SetJSON(ctx, p.store, storage.KeyComments, comments); err != nil {
		return err
	}
	p.comments = comments

	p.logger.Debug("comment voted",
		zap.String("comment_id", commentID),
		zap.Int("upvotes", comments[i].Upvotes),
		zap.Int("downvotes", comments[i].Downvotes))
	return nil
}
