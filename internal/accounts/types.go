package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the row in the accounts table. Balance is mutated only by the
// stream processor's balance worker.
type Account struct {
	AccountID string
	UserID    string
	Balance   decimal.Decimal
	UpdatedAt time.Time
}
