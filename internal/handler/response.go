package handler

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/platform/observability"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error"`
	// 在庫不足のときだけ
	Stock *StockShortage `json:"stock,omitempty"`
	// バウチャー不可の理由
	Reason string `json:"reason,omitempty"`
}

type StockShortage struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Name      string `json:"name"`
	Size      string `json:"size,omitempty"`
	Requested int64  `json:"requested"`
	Remaining int64  `json:"remaining"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	ae, ok := usecase.AsAppError(err)
	if !ok {
		//500
		observability.LoggerFrom(c).Error("unhandled error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	res := ErrorResponse{Error: ae.Message}

	var short *usecase.OutOfStockError
	if errors.As(err, &short) {
		res.Stock = &StockShortage{
			ProductID: short.ProductID,
			VariantID: short.VariantID,
			Name:      short.Name,
			Size:      short.Size,
			Requested: short.Requested,
			Remaining: short.Remaining,
		}
	}
	var rej *usecase.VoucherRejection
	if errors.As(err, &rej) {
		res.Reason = string(rej.Reason)
	}

	return c.JSON(ae.Status, res)
}

func parseIDParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// 未指定なら def
func queryInt(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
