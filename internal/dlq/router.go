// Package dlq classifies stream-processing failures and routes unrecoverable
// records to the dead-letter queue.
package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-idempotent-bankflow/internal/aws"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/processing"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/transactions"
)

// ErrorType attribute values attached to dead-letter messages.
const (
	ErrorTypeBusiness = "BusinessLogicError"
	ErrorTypeSystem   = "SystemError"
	ErrorTypeUnknown  = "UnknownError"
)

// ErrorCategory attribute values.
const (
	CategoryRecoverable   = "RECOVERABLE"
	CategorySystemFailure = "SYSTEM_FAILURE"
)

// message is the dead-letter payload: the raw record plus failure context,
// enough for an operator to replay or reconcile by hand.
type message struct {
	OriginalRecord events.DynamoDBEventRecord `json:"originalRecord"`
	ErrorMessage   string                     `json:"errorMessage"`
	Timestamp      events.SecondsEpochTime    `json:"timestamp"`
	SequenceNumber string                     `json:"sequenceNumber"`
}

// Router resolves failed stream records. Business-rule rejections are
// recorded on the transaction itself when possible; everything else goes to
// the dead-letter queue tagged with an error classification.
type Router struct {
	publisher    *aws.Publisher
	transactions *transactions.Store
	environment  string
	logger       *slog.Logger
	nowFunc      func() time.Time
}

// NewRouter wires the failure router.
func NewRouter(publisher *aws.Publisher, txStore *transactions.Store, environment string, logger *slog.Logger) *Router {
	return &Router{
		publisher:    publisher,
		transactions: txStore,
		environment:  environment,
		logger:       logger,
		nowFunc:      time.Now,
	}
}

// HandleFailure resolves one failed record. Returns false only when the
// record could neither be resolved nor dead-lettered; the caller must then
// fail the batch loudly instead of dropping the record.
func (r *Router) HandleFailure(ctx context.Context, record events.DynamoDBEventRecord, procErr error) bool {
	var bizErr *processing.BusinessLogicError
	if errors.As(procErr, &bizErr) {
		key := processing.ExtractIdempotencyKey(record.Change.NewImage)
		if key == "" {
			r.logger.ErrorContext(ctx, "business logic error without idempotency key", "error", procErr)
			return r.deadLetter(ctx, record,
				fmt.Sprintf("business logic error without idempotency key: %v", procErr),
				ErrorTypeBusiness, "")
		}

		if err := r.transactions.UpdateStatus(ctx, key, transactions.StatusFailed, time.Time{}, bizErr.Error()); err != nil {
			r.logger.ErrorContext(ctx, "failed to mark transaction FAILED", "idempotency_key", key, "error", err)
			return r.deadLetter(ctx, record,
				fmt.Sprintf("failed to update status after business logic error: %v (original error: %v)", err, procErr),
				ErrorTypeBusiness, key)
		}
		r.logger.InfoContext(ctx, "marked transaction FAILED", "idempotency_key", key, "reason", bizErr.Reason)
		return true
	}

	errType := ErrorTypeUnknown
	var sysErr *processing.SystemError
	if errors.As(procErr, &sysErr) {
		errType = ErrorTypeSystem
	}
	return r.deadLetter(ctx, record, procErr.Error(), errType, "")
}

func (r *Router) deadLetter(ctx context.Context, record events.DynamoDBEventRecord, errorMessage, errorType, idempotencyKey string) bool {
	body, err := json.Marshal(message{
		OriginalRecord: record,
		ErrorMessage:   errorMessage,
		Timestamp:      record.Change.ApproximateCreationDateTime,
		SequenceNumber: record.Change.SequenceNumber,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to marshal dead-letter message", "error", err)
		return false
	}

	if err := r.publisher.Send(ctx, string(body), r.messageAttributes(errorType, idempotencyKey)); err != nil {
		r.logger.ErrorContext(ctx, "failed to send record to DLQ",
			"sequence_number", record.Change.SequenceNumber, "error", err)
		return false
	}
	r.logger.InfoContext(ctx, "sent record to DLQ",
		"sequence_number", record.Change.SequenceNumber, "error_type", errorType)
	return true
}

func (r *Router) messageAttributes(errorType, idempotencyKey string) map[string]string {
	attrs := map[string]string{
		"Source":      "ProcessTransactions",
		"Environment": r.environment,
		"Timestamp":   r.nowFunc().UTC().Format(time.RFC3339),
		"ErrorType":   errorType,
	}
	if errorType == ErrorTypeBusiness {
		attrs["ErrorCategory"] = CategoryRecoverable
		attrs["HasIdempotencyKey"] = strconv.FormatBool(idempotencyKey != "")
	} else {
		attrs["ErrorCategory"] = CategorySystemFailure
		attrs["RequiresRetry"] = "true"
	}
	return attrs
}
