// Package metrics publishes batch-processing outcomes to CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-idempotent-bankflow/internal/aws"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/processing"
)

// Publisher emits custom metrics. Publishing is best-effort: a metrics
// failure is logged and never fails the batch that produced it.
type Publisher struct {
	client      aws.CloudWatchAPI
	namespace   string
	environment string
	logger      *slog.Logger
	nowFunc     func() time.Time
}

// NewPublisher returns a publisher for the given namespace.
func NewPublisher(client aws.CloudWatchAPI, namespace, environment string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:      client,
		namespace:   namespace,
		environment: environment,
		logger:      logger,
		nowFunc:     time.Now,
	}
}

// PublishBatchResult records the outcome counters of one stream batch.
func (p *Publisher) PublishBatchResult(ctx context.Context, result processing.BatchResult) {
	if p == nil || p.client == nil {
		return
	}

	now := p.nowFunc().UTC()
	dimensions := []cwtypes.Dimension{
		{Name: awsString("Environment"), Value: &p.environment},
	}

	counters := []struct {
		name  string
		value int
	}{
		{"ProcessedRecords", result.Processed},
		{"SuccessfulRecords", result.Successful},
		{"BusinessLogicFailures", result.BusinessLogicFailures},
		{"SystemFailures", result.SystemFailures},
		{"CriticalFailures", result.CriticalFailures},
	}

	data := make([]cwtypes.MetricDatum, 0, len(counters))
	for _, c := range counters {
		value := float64(c.value)
		data = append(data, cwtypes.MetricDatum{
			MetricName: awsString(c.name),
			Value:      &value,
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  &now,
			Dimensions: dimensions,
		})
	}

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &p.namespace,
		MetricData: data,
	})
	if err != nil {
		p.logger.WarnContext(ctx, "failed to publish batch metrics", "error", err)
	}
}

func awsString(s string) *string { return &s }
