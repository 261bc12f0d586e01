package http

import (
	"errors"
	"forum-backend/internal/delivery/http/utils"
	"forum-backend/internal/usecase"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Ancestor struct {
	ancestorUseCase usecase.Ancestor
	authManager     utils.Auth
}

func NewAncestor(ancestorUseCase usecase.Ancestor, authManager utils.Auth) *Ancestor {
	return &Ancestor{
		ancestorUseCase: ancestorUseCase,
		authManager:     authManager,
	}
}

func (a *Ancestor) Configure(server *echo.Group) {
	server.POST("/backfill/:post_id", a.Backfill)
}

func (a *Ancestor) Backfill(e echo.Context) error {
	if _, err := a.authManager.CheckAuthFromContext(e); err != nil {
		return unauthorized(e)
	}
	postID, err := utils.ReadPathID(e, "post_id")
	if err != nil {
		return e.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный ID поста",
		})
	}

	result, err := a.ancestorUseCase.Backfill(e.Request().Context(), postID)
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
	return e.JSON(http.StatusOK, result)
}
