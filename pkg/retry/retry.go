package retry

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"
)

const (
	maxRetries        = 6
	retryMultiplier   = 2
	retryInitialDelay = time.Millisecond * 100
	// При maxRetries = 6, retryMultiplier = 2, retryInitialDelay = 100ms паузы между попытками:
	// 100ms, 200ms, 400ms, 800ms, 1600ms, 3200ms, потом завершение
)

// Retry выполняет операцию с экспоненциальной задержкой между попытками.
// Возвращает nil, если операция успешна, или последнюю ошибку, если все попытки завершились неудачей
// либо ctx был отменен
func Retry(ctx context.Context, operation func(ctx context.Context) error) error {
	delay := retryInitialDelay
	for attempt := 0; ; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		log.Errorf("error during retry %d: %v", attempt, err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= retryMultiplier
	}
}
