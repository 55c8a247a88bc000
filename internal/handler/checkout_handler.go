package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 在庫確保と注文確定。ログインしていなければゲストセッションで扱う
type CheckoutHandler struct {
	holds  *usecase.HoldManager
	orders *usecase.OrderUsecase
}

// DI
func NewCheckoutHandler(holds *usecase.HoldManager, orders *usecase.OrderUsecase) *CheckoutHandler {
	return &CheckoutHandler{holds: holds, orders: orders}
}

type HoldRequest struct {
	// 空かつログイン中なら保存済みカートを使う
	Items []usecase.HoldItem `json:"items"`
}

type PlaceOrderRequest struct {
	Shipping      *model.ShippingSnapshot `json:"shipping"`
	PaymentMethod string                  `json:"payment_method"`
	VoucherCode   string                  `json:"voucher_code"`
	ShippingCost  int64                   `json:"shipping_cost"`
}

type ReleaseResponse struct {
	Released int64 `json:"released"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/checkout")
	g.Use(middleware.OptionalAuthJWT(cfg))
	g.Use(middleware.GuestSession())

	g.POST("/hold", h.hold)
	g.GET("/hold", h.currentHold)
	g.DELETE("/hold", h.releaseHold)
	g.POST("/orders", h.placeOrder)
}

// 会員ならユーザー、そうでなければセッション
func checkoutOwner(c echo.Context) model.Owner {
	if id := middleware.UserID(c); id > 0 {
		return model.UserOwner{ID: id}
	}
	return model.GuestOwner{SessionID: middleware.SessionID(c)}
}

func (h *CheckoutHandler) hold(c echo.Context) error {
	var req HoldRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx := c.Request().Context()
	var (
		out usecase.HoldResult
		err error
	)
	if userID := middleware.UserID(c); userID > 0 && len(req.Items) == 0 {
		out, err = h.holds.HoldCartForCheckout(ctx, userID)
	} else {
		out, err = h.holds.HoldForCheckout(ctx, checkoutOwner(c), req.Items)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) currentHold(c echo.Context) error {
	out, err := h.holds.CurrentHolds(c.Request().Context(), checkoutOwner(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) releaseHold(c echo.Context) error {
	n, err := h.holds.AbandonCheckout(c.Request().Context(), checkoutOwner(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ReleaseResponse{Released: n})
}

func (h *CheckoutHandler) placeOrder(c echo.Context) error {
	var req PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.orders.CreateOrder(c.Request().Context(), usecase.CreateOrderInput{
		Owner:         checkoutOwner(c),
		Shipping:      req.Shipping,
		PaymentMethod: req.PaymentMethod,
		VoucherCode:   req.VoucherCode,
		ShippingCost:  req.ShippingCost,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
