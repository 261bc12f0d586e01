package service

import (
	"context"
	"errors"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"forum-backend/internal/usecase"

	"github.com/labstack/gommon/log"
)

// AncestorIndex поддерживает таблицу замыкания comment_ancestors
type AncestorIndex struct {
	store repo.WriteStore
}

func NewAncestorIndex(store repo.WriteStore) *AncestorIndex {
	return &AncestorIndex{
		store: store,
	}
}

// CreateEdges строит ребра для новых комментариев. Ребра родителя берутся из той же пачки
// или из хранилища. Родитель без ребер превращает потомка в комментарий первого уровня поста
func (a *AncestorIndex) CreateEdges(tx repo.WriteTx, comments []*entity.Comment) (int64, error) {
	if len(comments) == 0 {
		return 0, nil
	}

	inBatch := make(map[int]*entity.Comment, len(comments))
	for _, comment := range comments {
		inBatch[comment.ID] = comment
	}

	var externalParents []int
	for _, comment := range comments {
		if comment.ParentID == nil {
			continue
		}
		if _, ok := inBatch[*comment.ParentID]; !ok {
			externalParents = append(externalParents, *comment.ParentID)
		}
	}
	stored := make(map[int][]*entity.AncestorEdge)
	if len(externalParents) > 0 {
		edges, err := tx.GetAncestorEdges(externalParents)
		if err != nil {
			return 0, err
		}
		for _, edge := range edges {
			stored[edge.DescendantID] = append(stored[edge.DescendantID], edge)
		}
	}

	memo := make(map[int][]*entity.AncestorEdge, len(comments))
	visiting := make(map[int]bool)
	var build func(comment *entity.Comment) []*entity.AncestorEdge
	build = func(comment *entity.Comment) []*entity.AncestorEdge {
		if edges, ok := memo[comment.ID]; ok {
			return edges
		}
		visiting[comment.ID] = true
		defer delete(visiting, comment.ID)

		edges := []*entity.AncestorEdge{entity.NewSelfEdge(comment.ID)}
		var parentEdges []*entity.AncestorEdge
		if comment.ParentID != nil {
			if parent, ok := inBatch[*comment.ParentID]; ok {
				if !visiting[parent.ID] {
					parentEdges = build(parent)
				}
			} else {
				parentEdges = stored[*comment.ParentID]
			}
		}
		if len(parentEdges) == 0 {
			if comment.ParentID != nil {
				log.Warnf("У родителя %d комментария %d нет ребер предков, комментарий привязан к посту", *comment.ParentID, comment.ID)
			}
			edges = append(edges, entity.NewPostEdge(comment.ID, comment.PostID, 1))
		} else {
			for _, parentEdge := range parentEdges {
				edges = append(edges, parentEdge.Reparent(comment.ID))
			}
		}
		memo[comment.ID] = edges
		return edges
	}

	var all []*entity.AncestorEdge
	for _, comment := range comments {
		all = append(all, build(comment)...)
	}
	return tx.InsertAncestorEdges(all)
}

// Backfill удаляет ребра всех комментариев поста и строит их заново по ссылкам на родителей
func (a *AncestorIndex) Backfill(ctx context.Context, postID int) (*entity.BackfillResult, error) {
	result := &entity.BackfillResult{PostID: postID}
	err := a.store.InTx(ctx, func(tx repo.WriteTx) error {
		posts, err := tx.GetPosts([]int{postID})
		if err != nil {
			return err
		}
		if _, ok := posts[postID]; !ok {
			return usecase.ErrPostNotFound
		}

		comments, err := tx.GetPostComments(postID)
		if err != nil {
			return err
		}
		ids := make([]int, 0, len(comments))
		for _, comment := range comments {
			ids = append(ids, comment.ID)
		}
		if _, err := tx.DeleteAncestorEdges(ids); err != nil {
			return err
		}
		edges, err := a.CreateEdges(tx, comments)
		if err != nil {
			return err
		}
		result.Comments = len(comments)
		result.Edges = int(edges)
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrPostNotFound) {
			return nil, usecase.ErrPostNotFound
		}
		return nil, err
	}
	log.Infof("Ребра предков поста %d перестроены: комментариев %d, ребер %d", postID, result.Comments, result.Edges)
	return result, nil
}

// ApplyPointDelta прибавляет delta к очкам комментария, всех его комментариев-предков и поста
// двумя массовыми обновлениями
func (a *AncestorIndex) ApplyPointDelta(tx repo.WriteTx, commentID, delta int) (*entity.PointDeltaResult, error) {
	edges, err := tx.GetAncestorEdges([]int{commentID})
	if err != nil {
		return nil, err
	}
	commentIDs, postIDs := entity.SplitAncestors(edges)
	if len(edges) == 0 {
		// комментарий без ребер: обновляем только его и его пост
		comments, err := tx.GetComments([]int{commentID})
		if err != nil {
			return nil, err
		}
		if comment, ok := comments[commentID]; ok {
			commentIDs = []int{comment.ID}
			postIDs = []int{comment.PostID}
		}
	}

	result := &entity.PointDeltaResult{}
	if result.CommentRows, err = tx.AddCommentPoints(commentIDs, delta); err != nil {
		return nil, err
	}
	if result.PostRows, err = tx.AddPostPoints(postIDs, delta); err != nil {
		return nil, err
	}
	return result, nil
}
