package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type OrderUsecase struct {
	tx       repo.TransactionManager
	ledger   *StockLedger
	holds    *HoldManager
	vouchers *VoucherValidator
	clock    Clock
	ids      IDGenerator
	log      *zap.Logger
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	ledger *StockLedger,
	holds *HoldManager,
	vouchers *VoucherValidator,
	clock Clock,
	ids IDGenerator,
	log *zap.Logger,
) *OrderUsecase {
	if clock == nil {
		clock = SystemClock()
	}
	if ids == nil {
		ids = ULIDGenerator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderUsecase{
		tx:       tx,
		ledger:   ledger,
		holds:    holds,
		vouchers: vouchers,
		clock:    clock,
		ids:      ids,
		log:      log.Named("order"),
	}
}

type CreateOrderInput struct {
	Owner model.Owner
	// nil ならログインユーザーの既定住所から作る
	Shipping      *model.ShippingSnapshot
	PaymentMethod string
	VoucherCode   string
	ShippingCost  int64
}

type CreateOrderOutput struct {
	OrderID        int64             `json:"order_id"`
	Status         model.OrderStatus `json:"status"`
	StatusClass    string            `json:"status_class"`
	Subtotal       int64             `json:"subtotal"`
	DiscountAmount int64             `json:"discount_amount"`
	ShippingCost   int64             `json:"shipping_cost"`
	Total          int64             `json:"total"`
	TransactionRef *string           `json:"transaction_ref,omitempty"`
}

// CreateOrder は有効なホールドから注文を作る。途中で失敗したら何も残らない
func (u *OrderUsecase) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderOutput, error) {
	if err := validateOwner(in.Owner); err != nil {
		return CreateOrderOutput{}, err
	}
	method, ok := model.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return CreateOrderOutput{}, validationError("Metode pembayaran tidak valid")
	}
	if in.ShippingCost < 0 {
		return CreateOrderOutput{}, validationError("Ongkos kirim tidak valid")
	}
	voucherCode := NormalizeVoucherCode(in.VoucherCode)

	var out CreateOrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.clock.Now()

		//同じオーナーの注文確定はここで直列化される
		holds, err := r.Holds().LockActiveByOwner(ctx, in.Owner, now)
		if err != nil {
			return err
		}
		if len(holds) == 0 {
			return invalidOperation("Sesi checkout habis, silakan ulangi checkout")
		}

		shipping, err := u.resolveShipping(ctx, r, in.Owner, in.Shipping)
		if err != nil {
			return err
		}

		lines := make([]HoldItem, 0, len(holds))
		for _, h := range holds {
			lines = append(lines, HoldItem{ProductID: h.ProductID, VariantID: h.VariantID, Quantity: h.Quantity})
		}
		labels, err := resolveLabels(ctx, r, lines)
		if err != nil {
			return err
		}

		items := make([]model.OrderItem, 0, len(holds))
		var subtotal int64
		for _, h := range holds {
			lb := labels[h.SKU().Key()]
			items = append(items, model.OrderItem{
				ProductID:           h.ProductID,
				VariantID:           h.VariantID,
				ProductNameSnapshot: lb.name,
				SizeSnapshot:        lb.size,
				UnitPriceSnapshot:   lb.price,
				Quantity:            h.Quantity,
				CreatedAt:           now,
			})
			subtotal += lb.price * h.Quantity
		}

		var voucher *model.Voucher
		var discount int64
		if voucherCode != "" {
			vc, d, err := u.vouchers.Validate(ctx, r, voucherCode, subtotal, now)
			if err != nil {
				return err
			}
			voucher, discount = &vc, d
		}

		status := model.OrderStatusAwaitingPayment
		var ref *string
		if method.IsCOD() {
			status = model.OrderStatusProcessing
		} else {
			s := u.ids.NewTransactionRef()
			ref = &s
		}

		order := model.Order{
			Status:         status,
			Subtotal:       subtotal,
			DiscountAmount: discount,
			ShippingCost:   in.ShippingCost,
			Total:          subtotal - discount + in.ShippingCost,
			PaymentMethod:  method,
			TransactionRef: ref,
			Shipping:       shipping,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		order.UserID, order.GuestSessionID = model.OwnerColumns(in.Owner)
		if voucher != nil {
			order.VoucherCode = &voucher.Code
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return err
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return err
		}
		if err := r.OrderHistory().Create(ctx, model.OrderStatusHistory{
			OrderID:   orderID,
			Status:    status,
			Note:      initialNote(method),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		// CODは決済確認が無いのでここで在庫を確定させる
		if method.IsCOD() {
			if err := u.decrementForCOD(ctx, r, items, labels); err != nil {
				return err
			}
		}

		if voucher != nil {
			ok, err := r.Vouchers().IncrementUse(ctx, voucher.ID)
			if err != nil {
				return err
			}
			if !ok {
				return voucherRejected(VoucherExhausted, "Kuota voucher sudah habis")
			}
		}

		if uo, ok := in.Owner.(model.UserOwner); ok {
			cart, err := r.Carts().FindActiveByUserID(ctx, uo.ID)
			switch {
			case err == nil:
				if err := r.Carts().Clear(ctx, cart.ID); err != nil {
					return err
				}
			case !errors.Is(err, repo.ErrNotFound):
				return err
			}
		}

		if _, err := u.holds.ReleaseHoldsForOwner(ctx, r, in.Owner); err != nil {
			return err
		}

		out = CreateOrderOutput{
			OrderID:        orderID,
			Status:         status,
			StatusClass:    status.Class(),
			Subtotal:       order.Subtotal,
			DiscountAmount: order.DiscountAmount,
			ShippingCost:   order.ShippingCost,
			Total:          order.Total,
			TransactionRef: ref,
		}
		return nil
	})
	if err != nil {
		return CreateOrderOutput{}, repoError(u.log, "create_order", err, "", zap.String("owner", in.Owner.String()))
	}

	u.log.Info("order created",
		zap.Int64("order_id", out.OrderID),
		zap.String("owner", in.Owner.String()),
		zap.String("status", string(out.Status)),
		zap.Int64("total", out.Total),
	)
	return out, nil
}

func initialNote(method model.PaymentMethod) string {
	if method.IsCOD() {
		return "Pesanan dibuat (COD)"
	}
	return "Pesanan dibuat, menunggu pembayaran"
}

func (u *OrderUsecase) decrementForCOD(ctx context.Context, r repo.TxRepos, items []model.OrderItem, labels map[string]skuLabel) error {
	skus := make([]model.SKU, 0, len(items))
	for _, it := range items {
		skus = append(skus, it.SKU())
	}
	onHand, err := u.ledger.LockForUpdate(ctx, r, skus)
	if err != nil {
		return err
	}
	for _, it := range items {
		key := it.SKU().Key()
		if onHand[key] < it.Quantity {
			lb := labels[key]
			return outOfStock(&OutOfStockError{
				ProductID: it.ProductID,
				VariantID: it.VariantID,
				Name:      lb.name,
				Size:      lb.size,
				Requested: it.Quantity,
				Remaining: onHand[key],
			})
		}
		if err := u.ledger.DecrementPermanently(ctx, r, it.SKU(), it.Quantity); err != nil {
			return err
		}
		onHand[key] -= it.Quantity
	}
	return u.ledger.recomputeFamilies(ctx, r, skus)
}

// 配送先は注文時点のコピー
func (u *OrderUsecase) resolveShipping(ctx context.Context, r repo.TxRepos, owner model.Owner, given *model.ShippingSnapshot) (model.ShippingSnapshot, error) {
	if given != nil {
		s := trimSnapshot(*given)
		if !s.Complete() {
			return model.ShippingSnapshot{}, validationError("Data pengiriman belum lengkap")
		}
		return s, nil
	}

	uo, ok := owner.(model.UserOwner)
	if !ok {
		return model.ShippingSnapshot{}, validationError("Data pengiriman belum lengkap")
	}
	user, err := r.Users().FindByID(ctx, uo.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.ShippingSnapshot{}, notFoundError("Pengguna tidak ditemukan")
	}
	if err != nil {
		return model.ShippingSnapshot{}, err
	}
	addr, err := r.Addresses().FindDefaultByUserID(ctx, uo.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.ShippingSnapshot{}, validationError("Alamat pengiriman belum diisi")
	}
	if err != nil {
		return model.ShippingSnapshot{}, err
	}

	s := trimSnapshot(addr.Snapshot(user))
	if !s.Complete() {
		return model.ShippingSnapshot{}, validationError("Data pengiriman belum lengkap")
	}
	return s, nil
}

func trimSnapshot(s model.ShippingSnapshot) model.ShippingSnapshot {
	return model.ShippingSnapshot{
		Name:       strings.TrimSpace(s.Name),
		Phone:      strings.TrimSpace(s.Phone),
		Email:      strings.TrimSpace(s.Email),
		Address:    strings.TrimSpace(s.Address),
		City:       strings.TrimSpace(s.City),
		Province:   strings.TrimSpace(s.Province),
		PostalCode: strings.TrimSpace(s.PostalCode),
	}
}

type OrderItemOutput struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Name      string `json:"name"`
	Size      string `json:"size,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

type OrderHistoryOutput struct {
	Status    model.OrderStatus `json:"status"`
	Note      string            `json:"note"`
	CreatedAt time.Time         `json:"created_at"`
}

type OrderOutput struct {
	ID             int64                  `json:"id"`
	UserID         *int64                 `json:"user_id,omitempty"`
	Status         model.OrderStatus      `json:"status"`
	StatusClass    string                 `json:"status_class"`
	Subtotal       int64                  `json:"subtotal"`
	DiscountAmount int64                  `json:"discount_amount"`
	ShippingCost   int64                  `json:"shipping_cost"`
	Total          int64                  `json:"total"`
	VoucherCode    *string                `json:"voucher_code,omitempty"`
	PaymentMethod  model.PaymentMethod    `json:"payment_method"`
	TransactionRef *string                `json:"transaction_ref,omitempty"`
	TrackingNumber *string                `json:"tracking_number,omitempty"`
	Shipping       model.ShippingSnapshot `json:"shipping"`
	CreatedAt      time.Time              `json:"created_at"`
	Items          []OrderItemOutput      `json:"items"`
	History        []OrderHistoryOutput   `json:"history,omitempty"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page, limit int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, unauthorizedError()
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	out := OrderListOutput{Items: []OrderOutput{}, Page: page, Limit: limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, limit)
		if err != nil {
			return err
		}
		out.Total = total
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return err
			}
			out.Items = append(out.Items, toOrderOutput(o, items, nil))
		}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, repoError(u.log, "list_my_orders", err, "", zap.Int64("user_id", userID))
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, unauthorizedError()
	}
	if orderID <= 0 {
		return OrderOutput{}, validationError("invalid id")
	}
	return u.detail(ctx, orderID, func(o model.Order) bool {
		return o.UserID != nil && *o.UserID == userID
	})
}

func (u *OrderUsecase) GetGuestOrderDetail(ctx context.Context, sessionID string, orderID int64) (OrderOutput, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return OrderOutput{}, validationError("Sesi tidak valid")
	}
	if orderID <= 0 {
		return OrderOutput{}, validationError("invalid id")
	}
	return u.detail(ctx, orderID, func(o model.Order) bool {
		return o.UserID == nil && o.GuestSessionID != nil && *o.GuestSessionID == sessionID
	})
}

// セッションに紐づくゲスト注文（新しい順）
func (u *OrderUsecase) ListGuestOrders(ctx context.Context, sessionID string) ([]OrderOutput, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, validationError("Sesi tidak valid")
	}

	out := []OrderOutput{}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByGuestSession(ctx, sessionID)
		if err != nil {
			return err
		}
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return err
			}
			out = append(out, toOrderOutput(o, items, nil))
		}
		return nil
	})
	if err != nil {
		return nil, repoError(u.log, "list_guest_orders", err, "")
	}
	return out, nil
}

func (u *OrderUsecase) detail(ctx context.Context, orderID int64, visible func(model.Order) bool) (OrderOutput, error) {
	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		//他人の注文は「存在しない扱い」にする
		if !visible(o) {
			return repo.ErrNotFound
		}
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		history, err := r.OrderHistory().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		out = toOrderOutput(o, items, history)
		return nil
	})
	if err != nil {
		return OrderOutput{}, repoError(u.log, "order_detail", err, "Pesanan tidak ditemukan", zap.Int64("order_id", orderID))
	}
	return out, nil
}

// ゲスト注文を会員に付け替え、ゲストのホールドは捨てる
func (u *OrderUsecase) AdoptGuestOrders(ctx context.Context, sessionID string, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, unauthorizedError()
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return 0, validationError("Sesi tidak valid")
	}

	var n int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		n, err = r.Orders().AdoptGuestOrders(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		_, err = u.holds.ReleaseHoldsForOwner(ctx, r, model.GuestOwner{SessionID: sessionID})
		return err
	})
	if err != nil {
		return 0, repoError(u.log, "adopt_guest_orders", err, "", zap.Int64("user_id", userID))
	}
	if n > 0 {
		u.log.Info("guest orders adopted", zap.Int64("user_id", userID), zap.Int64("count", n))
	}
	return n, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem, history []model.OrderStatusHistory) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.ProductNameSnapshot,
			Size:      it.SizeSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
		})
	}

	var outHistory []OrderHistoryOutput
	for _, h := range history {
		outHistory = append(outHistory, OrderHistoryOutput{Status: h.Status, Note: h.Note, CreatedAt: h.CreatedAt})
	}

	return OrderOutput{
		ID:             o.ID,
		UserID:         o.UserID,
		Status:         o.Status,
		StatusClass:    o.Status.Class(),
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		ShippingCost:   o.ShippingCost,
		Total:          o.Total,
		VoucherCode:    o.VoucherCode,
		PaymentMethod:  o.PaymentMethod,
		TransactionRef: o.TransactionRef,
		TrackingNumber: o.TrackingNumber,
		Shipping:       o.Shipping,
		CreatedAt:      o.CreatedAt,
		Items:          outItems,
		History:        outHistory,
	}
}

