package utils

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

var ErrInvalidPathID = errors.New("invalid path id")

func ReadQuery(c echo.Context, v any) error {
	return (&echo.DefaultBinder{}).BindQueryParams(c, v)
}

// ReadPathID читает положительный целый идентификатор из параметра пути
func ReadPathID(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, ErrInvalidPathID
	}
	return id, nil
}
