package main

import (
	"context"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/imrishuroy/go-idempotent-bankflow/internal/accounts"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/auth"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/aws"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/config"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/handlers"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/logger"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/transactions"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterTransactionRoutes(r, cfg)

	return r
}

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

	var authenticator auth.Authenticator
	if cfg.CognitoUserPoolID == "" && cfg.RunLocal {
		log.Warn("running with static authentication; set COGNITO_USER_POOL_ID for real tokens")
		authenticator = auth.StaticAuthenticator{UserID: cfg.LocalUserID}
	} else {
		authenticator, err = auth.NewCognitoAuthenticator(cfg.AWSRegion, cfg.CognitoUserPoolID, cfg.CognitoClientID, log)
		if err != nil {
			log.Error("failed to init authenticator", "error", err)
			os.Exit(1)
		}
	}

	hcfg := handlers.HandlerConfig{
		Authenticator: authenticator,
		Transactions:  transactions.NewStore(clients.DynamoDB, cfg.TransactionsTable, cfg.IdempotencyExpiration, cfg.RecordTTL),
		Accounts:      accounts.NewStore(clients.DynamoDB, cfg.AccountsTable),
		AllowedTypes:  cfg.AllowedTransactionTypes,
		Environment:   cfg.EnvironmentName,
		Logger:        log,
	}

	r := setupRouter(hcfg)

	if cfg.RunLocal {
		addr := ":8080"
		log.Info("running local server", "addr", addr)
		if err := r.Run(addr); err != nil {
			log.Error("failed to run local server", "error", err)
			os.Exit(1)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
