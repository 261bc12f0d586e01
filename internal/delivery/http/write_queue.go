package http

import (
	"errors"
	"forum-backend/internal/entity"
	"forum-backend/internal/usecase"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// enqueueWrite ставит событие в очередь записи и отвечает 202 с request_id
func enqueueWrite(e echo.Context, writeQueue usecase.WriteQueue, event *entity.WriteEvent) error {
	requestID, err := writeQueue.Enqueue(e.Request().Context(), event)
	switch {
	case errors.Is(err, usecase.ErrQueueUnavailable):
		return e.JSON(http.StatusServiceUnavailable, echo.Map{
			"error": "Очередь записи недоступна, повторите запрос позже",
		})
	case errors.Is(err, usecase.ErrQueueDisabled):
		return e.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Очередь записи отключена",
		})
	case err != nil:
		log.Errorf("Ошибка постановки события в очередь: %v", err)
		return e.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return e.JSON(http.StatusAccepted, &entity.WriteResult{
		Status:    "queued",
		RequestID: requestID,
	})
}

func unauthorized(e echo.Context) error {
	return e.JSON(http.StatusUnauthorized, echo.Map{
		"error": "Пользователь не авторизован",
	})
}
