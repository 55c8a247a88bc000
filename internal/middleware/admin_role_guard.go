package middleware

import (
	"net/http"

	"storefront/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// AuthJWT の後ろに置く。ロールが無ければ 401、ADMIN 以外は 403
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxUserRoleKey).(string)
			switch {
			case role == "":
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			case model.Role(role) != model.RoleAdmin:
				return c.JSON(http.StatusForbidden, errorJSON("admin only"))
			}
			return next(c)
		}
	}
}
