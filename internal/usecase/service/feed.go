package service

import (
	"context"
	"fmt"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"forum-backend/internal/usecase"
	"time"
)

type Feed struct {
	readStore repo.ReadStore
	reader    *cachedReader
}

func NewFeed(readStore repo.ReadStore, versions usecase.CacheVersions, cache repo.Cache, cacheTTL time.Duration) usecase.Feed {
	return &Feed{
		readStore: readStore,
		reader:    newCachedReader(versions, cache, cacheTTL),
	}
}

func (f *Feed) GetFeed(ctx context.Context, request *entity.GetFeedRequest) (*entity.Feed, error) {
	request.Normalize()
	params := fmt.Sprintf("new:skip:%d:limit:%d", request.Skip, request.Limit)
	return readCached(ctx, f.reader, FeedFamily, params, func(ctx context.Context) (*entity.Feed, error) {
		posts, err := f.readStore.GetFeed(ctx, request.Skip, request.Limit)
		if err != nil {
			return nil, err
		}
		return &entity.Feed{Posts: posts, Skip: request.Skip, Limit: request.Limit}, nil
	})
}
