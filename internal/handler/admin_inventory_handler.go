package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 管理者の在庫編集
type AdminInventoryHandler struct {
	uc *usecase.ProductUsecase
}

func NewAdminInventoryHandler(uc *usecase.ProductUsecase) *AdminInventoryHandler {
	return &AdminInventoryHandler{uc: uc}
}

type InventoryUpdateRequest struct {
	Stock  *int64 `json:"stock"`
	Reason string `json:"reason"`
}

func (h *AdminInventoryHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	admin := e.Group("/admin/inventory")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())

	admin.PUT("/products/:id", h.updateProduct)
	admin.PUT("/variants/:id", h.updateVariant)
}

func bindInventory(c echo.Context) (usecase.AdminUpdateInventoryInput, bool) {
	var req InventoryUpdateRequest
	if err := c.Bind(&req); err != nil || req.Stock == nil {
		return usecase.AdminUpdateInventoryInput{}, false
	}
	return usecase.AdminUpdateInventoryInput{Stock: *req.Stock, Reason: req.Reason}, true
}

func (h *AdminInventoryHandler) updateProduct(c echo.Context) error {
	id, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	in, ok := bindInventory(c)
	if !ok {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.AdminUpdateProductInventory(c.Request().Context(), middleware.UserID(c), id, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminInventoryHandler) updateVariant(c echo.Context) error {
	id, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	in, ok := bindInventory(c)
	if !ok {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.AdminUpdateVariantInventory(c.Request().Context(), middleware.UserID(c), id, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
