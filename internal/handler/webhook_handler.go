package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

const HeaderWebhookToken = "X-Webhook-Token"

// 決済ゲートウェイの成功通知
type WebhookHandler struct {
	settlement *usecase.PaymentSettlement
	secret     string
}

// secret が空なら検証しない（ローカル用）
func NewWebhookHandler(settlement *usecase.PaymentSettlement, secret string) *WebhookHandler {
	return &WebhookHandler{settlement: settlement, secret: secret}
}

type PaymentNotification struct {
	TransactionRef string `json:"transaction_ref"`
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/payment", h.payment)
}

func (h *WebhookHandler) payment(c echo.Context) error {
	if h.secret != "" {
		got := c.Request().Header.Get(HeaderWebhookToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		}
	}

	var req PaymentNotification
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ref := strings.TrimSpace(req.TransactionRef)
	if ref == "" {
		return badRequest(c, "transaction_ref is required")
	}

	res := h.settlement.ProcessSuccessfulPayment(c.Request().Context(), ref)
	return c.JSON(settlementStatus(res.Outcome), res)
}

// ゲートウェイは 2xx 以外を再送する。再送しても結果が変わらないものは 200 で受け取る
func settlementStatus(o usecase.SettlementOutcome) int {
	if o == usecase.SettlementFailed {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
