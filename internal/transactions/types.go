package transactions

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses. A transaction is created PENDING by the intake API
// and moved to a terminal status by the stream processor.
const (
	StatusPending   = "PENDING"
	StatusProcessed = "PROCESSED"
	StatusFailed    = "FAILED"
)

// Transaction types. Amounts are stored positive; direction is carried by
// the type, never by the sign.
const (
	TypeDeposit    = "DEPOSIT"
	TypeWithdrawal = "WITHDRAWAL"
	TypeTransfer   = "TRANSFER"
	TypeAdjustment = "ADJUSTMENT"
)

// Transaction is the row stored in the transactions table.
//
// IdempotencyKey is the table's primary key: the uniqueness of that key space
// is the only mechanism preventing a retried request from moving money twice.
// Rows are immutable after insert except for Status, ProcessedAt and
// FailureReason.
type Transaction struct {
	ID             string
	IdempotencyKey string
	AccountID      string
	UserID         string
	Amount         decimal.Decimal
	Type           string
	Status         string
	Description    string
	FailureReason  string
	CreatedAt      time.Time
	ProcessedAt    time.Time

	// IdempotencyExpiration bounds the replay-detection window; after it a
	// replayed key is a new transaction. TTL is when the row itself becomes
	// eligible for the table's background sweep.
	IdempotencyExpiration time.Time
	TTL                   time.Time

	Environment string
	RequestID   string
}
