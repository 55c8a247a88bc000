package usecase

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	// 決済照合用（非COD注文のみ）
	NewTransactionRef() string
	// 発送時の追跡番号
	NewTrackingNumber() string
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

type ulidGenerator struct{}

func (ulidGenerator) NewTransactionRef() string { return "TRX-" + ulid.Make().String() }
func (ulidGenerator) NewTrackingNumber() string { return "RESI-" + ulid.Make().String() }

func ULIDGenerator() IDGenerator { return ulidGenerator{} }
