package http

import (
	"errors"
	"forum-backend/internal/delivery/http/utils"
	"forum-backend/internal/entity"
	"forum-backend/internal/usecase"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Post struct {
	authManager utils.Auth
	feedUseCase usecase.Feed
	voteUseCase usecase.Vote
	writeQueue  usecase.WriteQueue
}

func NewPost(authManager utils.Auth, feedUseCase usecase.Feed, voteUseCase usecase.Vote, writeQueue usecase.WriteQueue) *Post {
	return &Post{
		authManager: authManager,
		feedUseCase: feedUseCase,
		voteUseCase: voteUseCase,
		writeQueue:  writeQueue,
	}
}

func (p *Post) Configure(server *echo.Group) {
	server.GET("", p.GetFeed)
	server.POST("/:post_id/vote", p.VotePost)
	server.DELETE("/:post_id/vote", p.UnvotePost)
}

func (p *Post) GetFeed(c echo.Context) error {
	request := &entity.GetFeedRequest{}
	if err := utils.ReadQuery(c, request); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный формат запроса",
		})
	}

	feed, err := p.feedUseCase.GetFeed(c.Request().Context(), request)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, feed)
}

func (p *Post) VotePost(c echo.Context) error {
	return p.votePost(c, false)
}

func (p *Post) UnvotePost(c echo.Context) error {
	return p.votePost(c, true)
}

func (p *Post) votePost(c echo.Context, remove bool) error {
	userID, err := p.authManager.CheckAuthFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	postID, err := utils.ReadPathID(c, "post_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный ID поста",
		})
	}

	if p.writeQueue.Enabled() {
		return enqueueWrite(c, p.writeQueue, entity.NewPostVoteEvent(userID, postID, remove))
	}

	result, err := p.voteUseCase.VotePost(c.Request().Context(), &entity.VoteRequest{
		UserID:   userID,
		TargetID: postID,
		Remove:   remove,
	})
	switch {
	case errors.Is(err, usecase.ErrPostNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Пост не найден",
		})
	case errors.Is(err, usecase.ErrUserNotFound):
		return unauthorized(c)
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, result)
}
