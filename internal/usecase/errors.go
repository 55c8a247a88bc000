package usecase

import (
	"errors"
	"fmt"
	"net/http"

	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindOutOfStock       ErrorKind = "out_of_stock"
	KindNotFound         ErrorKind = "not_found"
	KindInvalidOperation ErrorKind = "invalid_operation"
	KindDatabase         ErrorKind = "database"
	KindServiceLogic     ErrorKind = "service_logic"
)

// 利用者に見せるのは Message だけ。Err はログ用
type AppError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

func IsKind(err error, kind ErrorKind) bool {
	ae, ok := AsAppError(err)
	return ok && ae.Kind == kind
}

const msgTryAgain = "Terjadi kesalahan pada sistem, silakan coba lagi"

// 在庫不足。どの商品が何個残っているかを持つ
type OutOfStockError struct {
	ProductID int64
	VariantID *int64
	Name      string
	Size      string
	Requested int64
	Remaining int64
}

func (e *OutOfStockError) Error() string {
	label := e.Name
	if e.Size != "" {
		label = fmt.Sprintf("%s (%s)", e.Name, e.Size)
	}
	return fmt.Sprintf("Stok untuk '%s' tidak mencukupi (tersisa %d)", label, e.Remaining)
}

type VoucherRejectReason string

const (
	VoucherNotFound      VoucherRejectReason = "not_found"
	VoucherInactive      VoucherRejectReason = "inactive"
	VoucherOutsideWindow VoucherRejectReason = "outside_window"
	VoucherBelowMinimum  VoucherRejectReason = "below_minimum"
	VoucherExhausted     VoucherRejectReason = "exhausted"
)

type VoucherRejection struct {
	Reason  VoucherRejectReason
	Message string
}

func (e *VoucherRejection) Error() string {
	return e.Message
}

func validationError(msg string) error {
	return &AppError{Kind: KindValidation, Status: http.StatusBadRequest, Message: msg}
}

func unauthorizedError() error {
	return &AppError{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: "unauthorized"}
}

func notFoundError(msg string) error {
	return &AppError{Kind: KindNotFound, Status: http.StatusNotFound, Message: msg}
}

func invalidOperation(msg string) error {
	return &AppError{Kind: KindInvalidOperation, Status: http.StatusConflict, Message: msg}
}

func outOfStock(e *OutOfStockError) error {
	return &AppError{Kind: KindOutOfStock, Status: http.StatusConflict, Message: e.Error(), Err: e}
}

func voucherRejected(reason VoucherRejectReason, msg string) error {
	return &AppError{
		Kind:    KindValidation,
		Status:  http.StatusUnprocessableEntity,
		Message: msg,
		Err:     &VoucherRejection{Reason: reason, Message: msg},
	}
}

// インフラ障害。詳細はログだけに出す
func databaseError(log *zap.Logger, op string, err error, fields ...zap.Field) error {
	status := http.StatusInternalServerError
	if errors.Is(err, repo.ErrLockTimeout) {
		status = http.StatusServiceUnavailable
	}
	log.Error("database error", append(fields, zap.String("op", op), zap.Error(err))...)
	return &AppError{Kind: KindDatabase, Status: status, Message: msgTryAgain, Err: err}
}

// 起こらないはずの状態
func serviceLogicError(log *zap.Logger, op string, err error, fields ...zap.Field) error {
	log.Error("service logic error", append(fields, zap.String("op", op), zap.Error(err), zap.Stack("stack"))...)
	return &AppError{Kind: KindServiceLogic, Status: http.StatusInternalServerError, Message: msgTryAgain, Err: err}
}

// repository のエラーを AppError に寄せる。AppError はそのまま返す
func repoError(log *zap.Logger, op string, err error, notFoundMsg string, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	if _, ok := AsAppError(err); ok {
		return err
	}
	if notFoundMsg != "" && errors.Is(err, repo.ErrNotFound) {
		return notFoundError(notFoundMsg)
	}
	return databaseError(log, op, err, fields...)
}
