package community

import "github.com/ButyrinIA/community/internal/models"

// BuildThreads собирает плоский список комментариев одного поста в лес ответов.
// Корни - комментарии без родителя. Дети группируются по parentId за один
// проход, порядок соседей совпадает с порядком в исходном списке. Глубина не
// ограничена. Ответы на отсутствующие комментарии в лес не попадают, повторный
// идентификатор учитывается только при первом появлении.
func BuildThreads(comments []models.Comment) []*models.CommentNode {
	children := make(map[string][]models.Comment)
	var roots []models.Comment

	for _, c := range comments {
		if isRoot(c) {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	// каждый идентификатор попадает в лес один раз, иначе повторный id
	// с parentId на самого себя зацикливает обход
	visited := make(map[string]bool, len(comments))

	var build func(c models.Comment) *models.CommentNode
	build = func(c models.Comment) *models.CommentNode {
		visited[c.ID] = true
		replies := children[c.ID]
		node := &models.CommentNode{
			Comment: cloneComment(c),
			Replies: make([]*models.CommentNode, 0, len(replies)),
		}
		for _, r := range replies {
			if !visited[r.ID] {
				node.Replies = append(node.Replies, build(r))
			}
		}
		return node
	}

	forest := make([]*models.CommentNode, 0, len(roots))
	for _, c := range roots {
		if !visited[c.ID] {
			forest = append(forest, build(c))
		}
	}
	return forest
}

func isRoot(c models.Comment) bool {
	return c.ParentID == nil || *c.ParentID == ""
}
