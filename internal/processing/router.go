package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
)

// RecordProcessor settles one stream image. Satisfied by *Worker.
type RecordProcessor interface {
	Process(ctx context.Context, image map[string]events.DynamoDBAttributeValue) error
}

// FailureHandler resolves a failed record (status update or dead-letter).
// It reports false only when the record could neither be resolved nor
// dead-lettered.
type FailureHandler interface {
	HandleFailure(ctx context.Context, record events.DynamoDBEventRecord, procErr error) bool
}

// BatchResult aggregates per-record outcomes for one stream batch.
type BatchResult struct {
	Processed             int
	Successful            int
	BusinessLogicFailures int
	SystemFailures        int
	CriticalFailures      int
}

// Router consumes change-data-capture batches from the transactions table
// and dispatches each INSERT to the worker. MODIFY and REMOVE events are
// ignored: the balance effect is applied exactly once, at creation.
type Router struct {
	processor RecordProcessor
	failures  FailureHandler
	logger    *slog.Logger
}

// NewRouter wires the change event router.
func NewRouter(processor RecordProcessor, failures FailureHandler, logger *slog.Logger) *Router {
	return &Router{
		processor: processor,
		failures:  failures,
		logger:    logger,
	}
}

// Route processes one stream batch. It returns a non-nil error only when at
// least one record failed processing AND could not be dead-lettered; that
// fatal error makes the runtime redeliver the whole batch rather than
// silently drop the record. Redelivered inserts are absorbed by the
// transaction status transitions, not re-inserted.
func (r *Router) Route(ctx context.Context, event events.DynamoDBEvent) (BatchResult, error) {
	result := BatchResult{}

	inserts := make([]events.DynamoDBEventRecord, 0, len(event.Records))
	for _, record := range event.Records {
		if record.EventName == "INSERT" {
			inserts = append(inserts, record)
		}
	}
	if len(inserts) == 0 {
		r.logger.InfoContext(ctx, "no INSERT records to process", "records", len(event.Records))
		return result, nil
	}

	r.logger.InfoContext(ctx, "processing transaction records", "inserts", len(inserts))
	result.Processed = len(inserts)

	for _, record := range inserts {
		seq := record.Change.SequenceNumber
		err := r.processor.Process(ctx, record.Change.NewImage)
		if err == nil {
			result.Successful++
			continue
		}

		var bizErr *BusinessLogicError
		if errors.As(err, &bizErr) {
			result.BusinessLogicFailures++
			r.logger.WarnContext(ctx, "business logic error", "sequence_number", seq, "error", err)
		} else {
			result.SystemFailures++
			r.logger.ErrorContext(ctx, "system error", "sequence_number", seq, "error", err)
		}

		if !r.failures.HandleFailure(ctx, record, err) {
			result.CriticalFailures++
			r.logger.ErrorContext(ctx, "record could not be processed or dead-lettered",
				"sequence_number", seq, "error", err)
		}
	}

	r.logger.InfoContext(ctx, "batch processing complete",
		"successful", result.Successful,
		"business_logic_failures", result.BusinessLogicFailures,
		"system_failures", result.SystemFailures,
		"critical_failures", result.CriticalFailures)

	if result.CriticalFailures > 0 {
		return result, fmt.Errorf("critical failure: %d records could not be processed or sent to DLQ", result.CriticalFailures)
	}
	return result, nil
}
