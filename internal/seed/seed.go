// Package seed содержит начальный набор сообществ, постов и комментариев.
package seed

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/ButyrinIA/community/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed dataset.yaml
var defaultDataset []byte

type Dataset struct {
	Communities []models.Community `yaml:"communities"`
	Posts       []models.Post      `yaml:"posts"`
	Comments    []models.Comment   `yaml:"comments"`
}

// Default возвращает встроенный набор данных
func Default() (*Dataset, error) {
	return Parse(defaultDataset)
}

// Load читает набор данных из YAML-файла
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate проверяет ссылки: пост ссылается на сообщество, комментарий на пост,
// ответ на комментарий того же поста. Идентификаторы уникальны.
func (ds *Dataset) Validate() error {
	communities := make(map[string]bool, len(ds.Communities))
	for _, c := range ds.Communities {
		if communities[c.ID] {
			return fmt.Errorf("duplicate community id %q", c.ID)
		}
		communities[c.ID] = true
	}

	posts := make(map[string]bool, len(ds.Posts))
	for _, p := range ds.Posts {
		if posts[p.ID] {
			return fmt.Errorf("duplicate post id %q", p.ID)
		}
		if !communities[p.CommunityID] {
			return fmt.Errorf("post %q references unknown community %q", p.ID, p.CommunityID)
		}
		posts[p.ID] = true
	}

	commentPost := make(map[string]string, len(ds.Comments))
	for _, c := range ds.Comments {
		if _, ok := commentPost[c.ID]; ok {
			return fmt.Errorf("duplicate comment id %q", c.ID)
		}
		if !posts[c.PostID] {
			return fmt.Errorf("comment %q references unknown post %q", c.ID, c.PostID)
		}
		commentPost[c.ID] = c.PostID
	}
	for _, c := range ds.Comments {
		if c.ParentID == nil || *c.ParentID == "" {
			continue
		}
		if postID, ok := commentPost[*c.ParentID]; !ok || postID != c.PostID {
			return fmt.Errorf("comment %q replies to %q outside post %q", c.ID, *c.ParentID, c.PostID)
		}
	}

	return nil
}
