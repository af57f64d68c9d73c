package middlewares

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"axiapac.com/payroll/infrastructure/communication"
)

// ErrorReporter posts 5xx responses to the notifier's error channel.
func ErrorReporter(notifier communication.Notifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 500 {
			return
		}
		message := fmt.Sprintf("%s %s returned %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
		if len(c.Errors) > 0 {
			message += ": " + c.Errors.Last().Error()
		}

		// the request context is done once the response is written
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := notifier.Error(ctx, message); err != nil {
				logger.Warn("error report failed", slog.String("error", err.Error()))
			}
		}()
	}
}
