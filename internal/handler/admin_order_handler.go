package handler

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc         *usecase.AdminOrderUsecase
	lifecycle  *usecase.OrderLifecycle
	clock      usecase.Clock
	pendingTTL time.Duration
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase, lifecycle *usecase.OrderLifecycle, clock usecase.Clock, pendingTTL time.Duration) *AdminOrderHandler {
	if clock == nil {
		clock = usecase.SystemClock()
	}
	return &AdminOrderHandler{uc: uc, lifecycle: lifecycle, clock: clock, pendingTTL: pendingTTL}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
	// 発送時のみ。空なら自動採番
	TrackingNumber *string `json:"tracking_number"`
}

type StatusUpdateResponse struct {
	Changed bool `json:"changed"`
}

type ExpireResponse struct {
	Expired int `json:"expired"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/orders", h.list)
	admin.GET("/orders/:id", h.detail)
	admin.PUT("/orders/:id/status", h.updateStatus)
	admin.POST("/orders/:id/cancel", h.cancel)
	admin.POST("/orders/expire", h.expire)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}

	var userID *int64
	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid user_id")
		}
		userID = &id
	}

	var from, to *time.Time
	if v := c.QueryParam("from"); v != "" {
		tm, ok := usecase.ParseDateTimeRFC3339(v)
		if !ok {
			return badRequest(c, "invalid from")
		}
		from = tm
	}
	if v := c.QueryParam("to"); v != "" {
		tm, ok := usecase.ParseDateTimeRFC3339(v)
		if !ok {
			return badRequest(c, "invalid to")
		}
		to = tm
	}

	out, err := h.uc.List(c.Request().Context(), repository.AdminOrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: c.QueryParam("status"),
		UserID: userID,
		From:   from,
		To:     to,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) detail(c echo.Context) error {
	id, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.Detail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	id, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	// 操作した管理者ID（監査ログ用）
	changed, err := h.lifecycle.UpdateStatusAndTracking(
		c.Request().Context(),
		middleware.UserID(c),
		id,
		req.Status,
		req.TrackingNumber,
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, StatusUpdateResponse{Changed: changed})
}

func (h *AdminOrderHandler) cancel(c echo.Context) error {
	id, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	actor := usecase.Actor{UserID: middleware.UserID(c), Admin: true}
	if err := h.lifecycle.Cancel(c.Request().Context(), id, actor); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "cancelled"})
}

// スケジューラを待たずに期限切れ注文を処理する
func (h *AdminOrderHandler) expire(c echo.Context) error {
	n, err := h.lifecycle.ExpirePendingOrders(c.Request().Context(), h.clock.Now().Add(-h.pendingTTL))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ExpireResponse{Expired: n})
}
