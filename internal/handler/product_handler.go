package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 公開API（在庫表示）
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products/:id/availability", h.availability)
}

func (h *ProductHandler) availability(c echo.Context) error {
	id, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	var variantID *int64
	if v := c.QueryParam("variant_id"); v != "" {
		vid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid variant_id")
		}
		variantID = &vid
	}

	out, err := h.uc.Availability(c.Request().Context(), id, variantID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
