package http

import (
	"errors"
	"forum-backend/internal/delivery/http/utils"
	"forum-backend/internal/entity"
	"forum-backend/internal/usecase"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type Comment struct {
	commentUseCase usecase.Comment
	voteUseCase    usecase.Vote
	writeQueue     usecase.WriteQueue
	authManager    utils.Auth
}

func NewComment(commentUseCase usecase.Comment, voteUseCase usecase.Vote, writeQueue usecase.WriteQueue, authManager utils.Auth) *Comment {
	return &Comment{
		commentUseCase: commentUseCase,
		voteUseCase:    voteUseCase,
		writeQueue:     writeQueue,
		authManager:    authManager,
	}
}

// Configure регистрирует маршруты на группе /api
func (c *Comment) Configure(server *echo.Group) {
	server.POST("/posts/:post_id/comments", c.AddComment)
	server.GET("/posts/:post_id/comments", c.GetThread)
	server.GET("/comments/recent", c.GetRecentComments)
	server.PUT("/comments/:comment_id", c.EditComment)
	server.DELETE("/comments/:comment_id", c.DeleteComment)
	server.POST("/comments/:comment_id/vote", c.VoteComment)
	server.DELETE("/comments/:comment_id/vote", c.UnvoteComment)
}

func (c *Comment) AddComment(e echo.Context) error {
	userID, err := c.authManager.CheckAuthFromContext(e)
	if err != nil {
		return unauthorized(e)
	}
	postID, err := utils.ReadPathID(e, "post_id")
	if err != nil {
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный ID поста",
		})
	}

	request := &entity.AddCommentRequest{}
	if err := utils.ReadJSON(e, request); err != nil {
		log.Infof("Ошибка при чтении JSON: %v", err)
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный формат запроса",
		})
	}
	request.UserID = userID
	request.PostID = postID
	if err := request.IsValid(); err != nil {
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный комментарий: " + err.Error(),
		})
	}

	if c.writeQueue.Enabled() {
		return enqueueWrite(e, c.writeQueue, entity.NewCommentAddEvent(userID, postID, request.ParentID, request.Text))
	}

	comment, err := c.commentUseCase.AddComment(e.Request().Context(), request)
	switch {
	case errors.Is(err, usecase.ErrPostNotFound):
		return e.JSON(http.StatusNotFound, echo.Map{
			"error": "Пост не найден",
		})
	case errors.Is(err, usecase.ErrParentNotFound):
		return e.JSON(http.StatusNotFound, echo.Map{
			"error": "Родительский комментарий не найден",
		})
	case errors.Is(err, usecase.ErrUserNotFound):
		return unauthorized(e)
	case err != nil:
		return e.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return e.JSON(http.StatusCreated, comment)
}

func (c *Comment) DeleteComment(e echo.Context) error {
	userID, err := c.authManager.CheckAuthFromContext(e)
	if err != nil {
		return unauthorized(e)
	}
	commentID, err := utils.ReadPathID(e, "comment_id")
	if err != nil {
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный ID комментария",
		})
	}

	if c.writeQueue.Enabled() {
		return enqueueWrite(e, c.writeQueue, entity.NewCommentDeleteEvent(userID, commentID))
	}

	err = c.commentUseCase.DeleteComment(e.Request().Context(), &entity.DeleteCommentRequest{
		UserID:    userID,
		CommentID: commentID,
	})
	switch {
	case errors.Is(err, usecase.ErrCommentNotFound):
		return e.JSON(http.StatusNotFound, echo.Map{
			"error": "Комментарий не найден",
		})
	case errors.Is(err, usecase.ErrUserForbidden):
		return e.JSON(http.StatusForbidden, echo.Map{
			"error": "У вас нет прав на удаление комментария",
		})
	case err != nil:
		return e.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return e.JSON(http.StatusOK, echo.Map{
		"status": "ok",
	})
}

// EditComment синхронный при любом режиме записи
func (c *Comment) EditComment(e echo.Context) error {
	userID, err := c.authManager.CheckAuthFromContext(e)
	if err != nil {
		return unauthorized(e)
	}
	commentID, err := utils.ReadPathID(e, "comment_id")
	if err != nil {
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный ID комментария",
		})
	}

	request := &entity.EditCommentRequest{}
	if err := utils.ReadJSON(e, request); err != nil {
		log.Infof("Ошибка при чтении JSON: %v", err)
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный формат запроса",
		})
	}
	request.UserID = userID
	request.CommentID = commentID
	if err := request.IsValid(); err != nil {
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный комментарий: " + err.Error(),
		})
	}

	comment, err := c.commentUseCase.EditComment(e.Request().Context(), request)
	switch {
	case errors.Is(err, usecase.ErrCommentNotFound):
		return e.JSON(http.StatusNotFound, echo.Map{
			"error": "Комментарий не найден",
		})
	case errors.Is(err, usecase.ErrUserForbidden):
		return e.JSON(http.StatusForbidden, echo.Map{
			"error": "У вас нет прав на изменение комментария",
		})
	case err != nil:
		return e.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return e.JSON(http.StatusOK, comment)
}

func (c *Comment) GetRecentComments(e echo.Context) error {
	request := &entity.GetRecentCommentsRequest{}
	if err := utils.ReadQuery(e, request); err != nil {
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный формат запроса",
		})
	}

	comments, err := c.commentUseCase.GetRecentComments(e.Request().Context(), request)
	if err != nil {
		return e.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return e.JSON(http.StatusOK, comments)
}

func (c *Comment) GetThread(e echo.Context) error {
	postID, err := utils.ReadPathID(e, "post_id")
	if err != nil {
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный ID поста",
		})
	}

	thread, err := c.commentUseCase.GetThread(e.Request().Context(), &entity.GetThreadRequest{PostID: postID})
	switch {
	case errors.Is(err, usecase.ErrPostNotFound):
		return e.JSON(http.StatusNotFound, echo.Map{
			"error": "Пост не найден",
		})
	case err != nil:
		return e.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return e.JSON(http.StatusOK, thread)
}

func (c *Comment) VoteComment(e echo.Context) error {
	return c.voteComment(e, false)
}

func (c *Comment) UnvoteComment(e echo.Context) error {
	return c.voteComment(e, true)
}

func (c *Comment) voteComment(e echo.Context, remove bool) error {
	userID, err := c.authManager.CheckAuthFromContext(e)
	if err != nil {
		return unauthorized(e)
	}
	commentID, err := utils.ReadPathID(e, "comment_id")
	if err != nil {
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный ID комментария",
		})
	}

	if c.writeQueue.Enabled() {
		return enqueueWrite(e, c.writeQueue, entity.NewCommentVoteEvent(userID, commentID, remove))
	}

	result, err := c.voteUseCase.VoteComment(e.Request().Context(), &entity.VoteRequest{
		UserID:   userID,
		TargetID: commentID,
		Remove:   remove,
	})
	switch {
	case errors.Is(err, usecase.ErrCommentNotFound):
		return e.JSON(http.StatusNotFound, echo.Map{
			"error": "Комментарий не найден",
		})
	case errors.Is(err, usecase.ErrUserNotFound):
		return unauthorized(e)
	case err != nil:
		return e.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return e.JSON(http.StatusOK, result)
}
