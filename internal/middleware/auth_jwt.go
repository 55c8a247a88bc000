package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey    = "user_id"    // int64
	CtxUserRoleKey  = "user_role"  // string
	CtxSessionIDKey = "session_id" // string
)

var errUnauthorized = errors.New("unauthorized")

// bearerAuth用のJWT検証ミドルウェア。トークンの発行は認証サービス側
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	return jwtMiddleware(cfg, false)
}

// ヘッダが無ければゲストとして通す。あるのに不正なら401
func OptionalAuthJWT(cfg config.Config) echo.MiddlewareFunc {
	return jwtMiddleware(cfg, true)
}

func jwtMiddleware(cfg config.Config, optional bool) echo.MiddlewareFunc {
	key := []byte(cfg.JWTSecret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authz := c.Request().Header.Get("Authorization")
			if authz == "" && optional {
				return next(c)
			}
			p, err := verify(key, authz)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			c.Set(CtxUserIDKey, p.userID)
			c.Set(CtxUserRoleKey, p.role)
			return next(c)
		}
	}
}

type principal struct {
	userID int64
	role   string
}

// "Bearer <token>" を検証して sub / role を取り出す。HS256 のみ
func verify(key []byte, authz string) (principal, error) {
	scheme, raw, ok := strings.Cut(authz, " ")
	raw = strings.TrimSpace(raw)
	if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return principal{}, errUnauthorized
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
	if err != nil || !token.Valid {
		return principal{}, errUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return principal{}, errUnauthorized
	}

	userID, err := parseUserID(claims["sub"])
	if err != nil || userID <= 0 {
		return principal{}, errUnauthorized
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return principal{}, errUnauthorized
	}
	return principal{userID: userID, role: role}, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// sub は数値でも文字列でもよい
func parseUserID(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid sub")
	}
}

// ハンドラ用。未ログインなら 0
func UserID(c echo.Context) int64 {
	id, _ := c.Get(CtxUserIDKey).(int64)
	return id
}

func SessionID(c echo.Context) string {
	s, _ := c.Get(CtxSessionIDKey).(string)
	return s
}
