package observability

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const ctxLoggerKey = "logger"

// リクエストごとに1行のアクセスログを出す
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			reqLogger := logger.With(
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.String("remote_ip", c.RealIP()),
			)
			c.Set(ctxLoggerKey, reqLogger)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			fields := []zap.Field{
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("bytes_out", c.Response().Size),
			}
			switch {
			case status >= 500:
				reqLogger.Error("request completed", append(fields, zap.Error(err))...)
			case status >= 400:
				reqLogger.Warn("request completed", fields...)
			default:
				reqLogger.Info("request completed", fields...)
			}
			return nil
		}
	}
}

// ハンドラ内で使うロガー。無ければ no-op
func LoggerFrom(c echo.Context) *zap.Logger {
	if l, ok := c.Get(ctxLoggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}
