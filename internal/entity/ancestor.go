package entity

import "errors"

var ErrInvalidAncestorEdge = errors.New("ancestor edge must reference exactly one of post or comment")

// AncestorEdge ребро таблицы замыкания: комментарий -> предок (пост или комментарий) на глубине Depth.
// Глубина 0 это ребро на самого себя
type AncestorEdge struct {
	DescendantID      int  `json:"descendant_comment_id" db:"descendant_comment_id"`
	AncestorPostID    *int `json:"ancestor_post_id" db:"ancestor_post_id"`
	AncestorCommentID *int `json:"ancestor_comment_id" db:"ancestor_comment_id"`
	Depth             int  `json:"depth" db:"depth"`
}

func NewSelfEdge(commentID int) *AncestorEdge {
	id := commentID
	return &AncestorEdge{DescendantID: commentID, AncestorCommentID: &id, Depth: 0}
}

func NewPostEdge(commentID, postID, depth int) *AncestorEdge {
	id := postID
	return &AncestorEdge{DescendantID: commentID, AncestorPostID: &id, Depth: depth}
}

func NewCommentEdge(commentID, ancestorID, depth int) *AncestorEdge {
	id := ancestorID
	return &AncestorEdge{DescendantID: commentID, AncestorCommentID: &id, Depth: depth}
}

func (e *AncestorEdge) Validate() error {
	if (e.AncestorPostID == nil) == (e.AncestorCommentID == nil) {
		return ErrInvalidAncestorEdge
	}
	if e.Depth < 0 {
		return errors.New("ancestor edge depth is negative")
	}
	return nil
}

// Reparent копия ребра для потомка, лежащего на уровень ниже
func (e *AncestorEdge) Reparent(descendantID int) *AncestorEdge {
	edge := &AncestorEdge{DescendantID: descendantID, Depth: e.Depth + 1}
	if e.AncestorPostID != nil {
		id := *e.AncestorPostID
		edge.AncestorPostID = &id
	}
	if e.AncestorCommentID != nil {
		id := *e.AncestorCommentID
		edge.AncestorCommentID = &id
	}
	return edge
}

// SplitAncestors делит ребра на идентификаторы комментариев-предков (включая сам комментарий) и постов
func SplitAncestors(edges []*AncestorEdge) (commentIDs []int, postIDs []int) {
	seenComments := make(map[int]struct{})
	seenPosts := make(map[int]struct{})
	for _, edge := range edges {
		if edge.AncestorCommentID != nil {
			if _, ok := seenComments[*edge.AncestorCommentID]; !ok {
				seenComments[*edge.AncestorCommentID] = struct{}{}
				commentIDs = append(commentIDs, *edge.AncestorCommentID)
			}
		}
		if edge.AncestorPostID != nil {
			if _, ok := seenPosts[*edge.AncestorPostID]; !ok {
				seenPosts[*edge.AncestorPostID] = struct{}{}
				postIDs = append(postIDs, *edge.AncestorPostID)
			}
		}
	}
	return commentIDs, postIDs
}

type BackfillResult struct {
	PostID   int `json:"post_id"`
	Comments int `json:"comments"`
	Edges    int `json:"edges"`
}
