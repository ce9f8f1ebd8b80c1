package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-idempotent-bankflow/internal/accounts"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/transactions"
)

// Worker applies a single transaction's balance effect to its account.
//
// The balance write and the status write are two independent updates with no
// rollback: a status failure after a successful balance write is surfaced as
// a SystemError so the record reaches the dead-letter queue for manual
// reconciliation.
type Worker struct {
	accounts     *accounts.Store
	transactions *transactions.Store
	logger       *slog.Logger
	nowFunc      func() time.Time
}

// NewWorker wires the balance mutation worker.
func NewWorker(accountStore *accounts.Store, txStore *transactions.Store, logger *slog.Logger) *Worker {
	return &Worker{
		accounts:     accountStore,
		transactions: txStore,
		logger:       logger,
		nowFunc:      time.Now,
	}
}

// Process decodes and settles one INSERT image. The returned error is either
// a *BusinessLogicError (terminal for the record) or a *SystemError
// (retryable); callers classify with errors.As.
func (w *Worker) Process(ctx context.Context, image map[string]events.DynamoDBAttributeValue) error {
	rec, err := DecodeTransactionRecord(image)
	if err != nil {
		return &BusinessLogicError{Reason: ReasonInvalidRecord, Detail: err.Error()}
	}

	w.logger.InfoContext(ctx, "processing transaction",
		"transaction_id", rec.ID, "account_id", rec.AccountID, "type", rec.Type, "amount", rec.Amount.String())

	account, err := w.accounts.Get(ctx, rec.AccountID)
	if err != nil {
		return &SystemError{Detail: "failed to read account", Err: err}
	}
	if account == nil {
		return &BusinessLogicError{
			Reason: ReasonAccountNotFound,
			Detail: fmt.Sprintf("account %s does not exist", rec.AccountID),
		}
	}
	if account.UserID != rec.UserID {
		return &BusinessLogicError{
			Reason: ReasonOwnershipMismatch,
			Detail: fmt.Sprintf("user %s does not own account %s", rec.UserID, rec.AccountID),
		}
	}

	switch rec.Type {
	case transactions.TypeDeposit:
		err = w.accounts.Credit(ctx, rec.AccountID, rec.Amount)
	case transactions.TypeWithdrawal:
		if account.Balance.LessThan(rec.Amount) {
			return &BusinessLogicError{
				Reason: ReasonInsufficientFunds,
				Detail: fmt.Sprintf("insufficient funds: balance %s, withdrawal %s", account.Balance, rec.Amount),
			}
		}
		err = w.accounts.Debit(ctx, rec.AccountID, rec.Amount)
		if errors.Is(err, accounts.ErrConditionFailed) {
			// a concurrent withdrawal drained the balance between our read
			// and the guarded write
			return &BusinessLogicError{
				Reason: ReasonInsufficientFunds,
				Detail: fmt.Sprintf("insufficient funds for withdrawal of %s", rec.Amount),
			}
		}
	default:
		return &BusinessLogicError{
			Reason: ReasonUnsupportedType,
			Detail: fmt.Sprintf("unsupported transaction type: %s", rec.Type),
		}
	}
	if err != nil {
		if errors.Is(err, accounts.ErrConditionFailed) {
			return &BusinessLogicError{
				Reason: ReasonAccountNotFound,
				Detail: fmt.Sprintf("account %s disappeared during processing", rec.AccountID),
			}
		}
		return &SystemError{Detail: "failed to update account balance", Err: err}
	}

	if err := w.transactions.UpdateStatus(ctx, rec.IdempotencyKey, transactions.StatusProcessed, w.nowFunc().UTC(), ""); err != nil {
		// balance already moved; keep ordering and do not roll back
		return &SystemError{Detail: "failed to update transaction status after balance write", Err: err}
	}

	w.logger.InfoContext(ctx, "transaction settled", "transaction_id", rec.ID, "account_id", rec.AccountID)
	return nil
}
