package utils

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/labstack/echo/v4"
)

// ReadJSON разбирает тело запроса. Пустое тело не ошибка: поля остаются нулевыми
func ReadJSON(c echo.Context, v any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
