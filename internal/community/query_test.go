package community

import (
	"testing"
	"time"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/ButyrinIA/community/internal/storage/memory"
	"github.com/stretchr/testify/assert"
)

func ids[T any](items []T, id func(T) string) []string {
	out := []string{}
	for _, item := range items {
		out = append(out, id(item))
	}
	return out
}

func communityIDs(items []models.Community) []string {
	return ids(items, func(c models.Community) string { return c.ID })
}

func postIDs(items []models.Post) []string {
	return ids(items, func(p models.Post) string { return p.ID })
}

func TestSearchCommunities(t *testing.T) {
	p := newProvider(t, memory.New(), &stubSession{})

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "по названию", query: "tech", want: []string{"tech"}},
		{name: "по описанию", query: "POETRY", want: []string{"book-club"}},
		{name: "регистр в данных", query: "latest tech", want: []string{"tech"}},
		{name: "несколько совпадений", query: "o", want: []string{"book-club", "quiet", "tech", "poets"}},
		{name: "пустой запрос", query: "", want: []string{"book-club", "quiet", "tech", "poets"}},
		{name: "нет совпадений", query: "gardening", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, communityIDs(p.SearchCommunities(tt.query)))
		})
	}
}

func TestFilterCommunitiesByCategory(t *testing.T) {
	p := newProvider(t, memory.New(), &stubSession{})

	assert.Equal(t, []string{"book-club", "poets"}, communityIDs(p.FilterCommunitiesByCategory("Literature")))
	assert.Empty(t, p.FilterCommunitiesByCategory("literature"), "Категория сравнивается точно")
	assert.NotNil(t, p.FilterCommunitiesByCategory("Sports"))
}

func TestCategories(t *testing.T) {
	p := newProvider(t, memory.New(), &stubSession{})

	assert.Equal(t, []string{"Literature", "Misc", "Technology"}, p.Categories())
}

func TestFeaturedCommunities(t *testing.T) {
	p := newProvider(t, memory.New(), &stubSession{})

	assert.Equal(t, []string{"book-club", "quiet"}, communityIDs(p.FeaturedCommunities(2)))
	assert.Len(t, p.FeaturedCommunities(10), 4)
	assert.Empty(t, p.FeaturedCommunities(-1))
}

func TestPostQueries(t *testing.T) {
	p := newProvider(t, memory.New(), &stubSession{})

	assert.Equal(t, []string{"p1", "p2"}, postIDs(p.CommunityPosts("book-club")))
	assert.Empty(t, p.CommunityPosts("quiet"))
	assert.Equal(t, []string{"p1", "p3"}, postIDs(p.UserPosts("user_alice")))
	assert.Empty(t, p.UserPosts("user_nobody"))

	comments := p.PostComments("p1")
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(comments, func(c models.Comment) string { return c.ID }))
	assert.Empty(t, p.PostComments("p3"))

	_, ok := p.Post("missing")
	assert.False(t, ok)
	_, ok = p.Community("missing")
	assert.False(t, ok)
}

func TestSortPosts(t *testing.T) {
	p := newProvider(t, memory.New(), &stubSession{})
	posts := p.Posts()

	assert.Equal(t, []string{"p2", "p3", "p1"}, postIDs(SortPosts(posts, SortNew)))
	assert.Equal(t, []string{"p2", "p1", "p3"}, postIDs(SortPosts(posts, SortTop)))
	assert.Equal(t, []string{"p1", "p2", "p3"}, postIDs(posts), "Исходный срез не меняется")

	t.Run("устойчивость", func(t *testing.T) {
		at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		tied := []models.Post{
			{ID: "a", CreatedAt: at, Upvotes: 2},
			{ID: "b", CreatedAt: at, Upvotes: 3, Downvotes: 1},
			{ID: "c", CreatedAt: at.Add(time.Hour), Upvotes: 2},
		}

		assert.Equal(t, []string{"c", "a", "b"}, postIDs(SortPosts(tied, SortNew)))
		assert.Equal(t, []string{"a", "b", "c"}, postIDs(SortPosts(tied, SortTop)))
	})
}
