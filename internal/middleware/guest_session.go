package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const HeaderSessionID = "X-Session-ID"

// ゲストのチェックアウト用セッション。
// 無ければ発行してレスポンスヘッダで返す（クライアントは次回から付けて送る）
func GuestSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(HeaderSessionID))
			if raw == "" {
				raw = uuid.NewString()
			} else if _, err := uuid.Parse(raw); err != nil {
				return c.JSON(http.StatusBadRequest, errorJSON("invalid session id"))
			}

			c.Set(CtxSessionIDKey, raw)
			c.Response().Header().Set(HeaderSessionID, raw)
			return next(c)
		}
	}
}

// 既存セッション必須（参照系）
func RequireGuestSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(HeaderSessionID))
			if _, err := uuid.Parse(raw); err != nil {
				return c.JSON(http.StatusBadRequest, errorJSON("invalid session id"))
			}
			c.Set(CtxSessionIDKey, raw)
			return next(c)
		}
	}
}
