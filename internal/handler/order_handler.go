package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc        *usecase.OrderUsecase
	lifecycle *usecase.OrderLifecycle
}

func NewOrderHandler(uc *usecase.OrderUsecase, lifecycle *usecase.OrderLifecycle) *OrderHandler {
	return &OrderHandler{uc: uc, lifecycle: lifecycle}
}

type AdoptResponse struct {
	Adopted int64 `json:"adopted"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))

	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.POST("/:id/cancel", h.cancel)
	// ログイン前のゲスト注文を引き継ぐ
	g.POST("/adopt", h.adopt, middleware.RequireGuestSession())

	guest := e.Group("/guest/orders")
	guest.Use(middleware.RequireGuestSession())

	guest.GET("", h.guestList)
	guest.GET("/:id", h.guestDetail)
	guest.POST("/:id/cancel", h.guestCancel)
}

func (h *OrderHandler) list(c echo.Context) error {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return badRequest(c, "invalid limit")
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), middleware.UserID(c), page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	id, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), middleware.UserID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	id, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.lifecycle.Cancel(c.Request().Context(), id, usecase.Actor{UserID: middleware.UserID(c)}); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "cancelled"})
}

func (h *OrderHandler) adopt(c echo.Context) error {
	n, err := h.uc.AdoptGuestOrders(c.Request().Context(), middleware.SessionID(c), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, AdoptResponse{Adopted: n})
}

func (h *OrderHandler) guestList(c echo.Context) error {
	out, err := h.uc.ListGuestOrders(c.Request().Context(), middleware.SessionID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) guestDetail(c echo.Context) error {
	id, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetGuestOrderDetail(c.Request().Context(), middleware.SessionID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) guestCancel(c echo.Context) error {
	id, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.lifecycle.Cancel(c.Request().Context(), id, usecase.Actor{SessionID: middleware.SessionID(c)}); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "cancelled"})
}
