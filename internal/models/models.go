package models

import "time"

// User - публичное представление пользователя в сессии, без пароля
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	JoinDate  time.Time `json:"joinDate"`
	Interests []string  `json:"interests"`
	Bio       string    `json:"bio,omitempty"`
}

// UserRecord - учетная запись в коллекции users, вместе с паролем
type UserRecord struct {
	User
	Password string `json:"password"`
}

type Community struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Category    string    `json:"category" yaml:"category"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	MemberCount int       `json:"memberCount" yaml:"memberCount"`
	Banner      string    `json:"banner,omitempty" yaml:"banner"`
	Icon        string    `json:"icon,omitempty" yaml:"icon"`
	IsActive    bool      `json:"isActive,omitempty" yaml:"isActive"`
	Topics      []string  `json:"topics" yaml:"topics"`
}

type Post struct {
	ID           string    `json:"id" yaml:"id"`
	CommunityID  string    `json:"communityId" yaml:"communityId"`
	Title        string    `json:"title" yaml:"title"`
	Content      string    `json:"content" yaml:"content"`
	UserID       string    `json:"userId" yaml:"userId"`
	Username     string    `json:"username" yaml:"username"`
	UserAvatar   string    `json:"userAvatar,omitempty" yaml:"userAvatar"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
	Upvotes      int       `json:"upvotes" yaml:"upvotes"`
	Downvotes    int       `json:"downvotes" yaml:"downvotes"`
	CommentCount int       `json:"commentCount" yaml:"commentCount"`
	Tags         []string  `json:"tags" yaml:"tags"`
}

// NetScore - разница голосов, может быть отрицательной
func (p Post) NetScore() int {
	return p.Upvotes - p.Downvotes
}

type Comment struct {
	ID         string    `json:"id" yaml:"id"`
	PostID     string    `json:"postId" yaml:"postId"`
	UserID     string    `json:"userId" yaml:"userId"`
	Username   string    `json:"username" yaml:"username"`
	UserAvatar string    `json:"userAvatar,omitempty" yaml:"userAvatar"`
	Content    string    `json:"content" yaml:"content"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
	Upvotes    int       `json:"upvotes" yaml:"upvotes"`
	Downvotes  int       `json:"downvotes" yaml:"downvotes"`
	ParentID   *string   `json:"parentId,omitempty" yaml:"parentId"`
}

func (c Comment) NetScore() int {
	return c.Upvotes - c.Downvotes
}

// CommentNode - комментарий с вложенными ответами. Строится по запросу и не сохраняется.
type CommentNode struct {
	Comment
	Replies []*CommentNode `json:"replies"`
}
