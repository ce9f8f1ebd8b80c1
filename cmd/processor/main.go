package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/imrishuroy/go-idempotent-bankflow/internal/accounts"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/aws"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/config"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/dlq"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/logger"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/metrics"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/processing"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/transactions"
)

func main() {
	if os.Getenv("RUN_LOCAL") == "true" {
		_ = godotenv.Load()
	}
	cfg := config.Load()
	log := logger.New(cfg.RunLocal)

	clients, err := aws.NewAWSClients(context.Background(), cfg.DynamoDBEndpoint, cfg.SQSEndpoint)
	if err != nil {
		log.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}

	txStore := transactions.NewStore(clients.DynamoDB, cfg.TransactionsTable, cfg.IdempotencyExpiration, cfg.RecordTTL)
	accountStore := accounts.NewStore(clients.DynamoDB, cfg.AccountsTable)

	worker := processing.NewWorker(accountStore, txStore, log)
	failures := dlq.NewRouter(aws.NewPublisher(clients.SQS, cfg.DLQURL), txStore, cfg.EnvironmentName, log)
	router := processing.NewRouter(worker, failures, log)
	metricsPub := metrics.NewPublisher(clients.CloudWatch, cfg.MetricsNamespace, cfg.EnvironmentName, log)

	handler := func(ctx context.Context, event events.DynamoDBEvent) error {
		result, err := router.Route(ctx, event)
		metricsPub.PublishBatchResult(ctx, result)
		return err
	}

	// Local testing helper: replay a stream event from a JSON file instead
	// of wiring a real DynamoDB stream.
	if cfg.RunLocal {
		path := os.Getenv("LOCAL_EVENT_FILE")
		if path == "" {
			log.Error("LOCAL_EVENT_FILE is required when RUN_LOCAL=true")
			os.Exit(1)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Error("failed to read local event file", "path", path, "error", err)
			os.Exit(1)
		}
		var event events.DynamoDBEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Error("failed to parse local event file", "path", path, "error", err)
			os.Exit(1)
		}
		if err := handler(context.Background(), event); err != nil {
			log.Error("local handler error", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler)
}
