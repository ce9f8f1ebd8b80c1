package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-idempotent-bankflow/internal/accounts"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/auth"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/idempotency"
	"github.com/imrishuroy/go-idempotent-bankflow/internal/transactions"
)

// HandlerConfig groups dependencies for the transaction intake API.
type HandlerConfig struct {
	Authenticator auth.Authenticator
	Transactions  *transactions.Store
	Accounts      *accounts.Store
	AllowedTypes  []string
	Environment   string
	Logger        *slog.Logger
}

// RegisterTransactionRoutes registers the intake and listing routes.
func RegisterTransactionRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := transactions.NewValidator()

	r.POST("/transactions", createTransaction(cfg, v))
	r.GET("/accounts/:accountId/transactions", listAccountTransactions(cfg))
}

// createTransaction is the intake state machine: authenticate, validate the
// idempotency header, parse and validate the body, then check-or-insert.
// At most one transaction row is created per idempotency key per expiration
// window; the balance effect is applied later by the stream processor.
func createTransaction(cfg HandlerConfig, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		userID, err := cfg.Authenticator.Authenticate(ctx, c.GetHeader("Authorization"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		key, keyErr := idempotency.ValidateKey(c.GetHeader("Idempotency-Key"))
		if keyErr != nil {
			body := gin.H{"error": keyErr.Message, "example": keyErr.Example}
			if keyErr.Suggestion != "" {
				body["suggestion"] = keyErr.Suggestion
			}
			c.JSON(http.StatusBadRequest, body)
			return
		}

		var req transactions.CreateTransactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format in request body"})
			return
		}

		validated, valErr := transactions.ValidateRequest(v, &req, cfg.AllowedTypes)
		if valErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Message, "code": valErr.Code})
			return
		}

		// Replay within the expiration window: same key, same outcome. The
		// original request may have succeeded after the client timed out, so
		// this is a success response, not a conflict.
		existing, err := cfg.Transactions.FindByIdempotencyKey(ctx, key)
		if err != nil {
			writeStoreError(c, cfg.Logger, err)
			return
		}
		if existing != nil {
			c.JSON(http.StatusCreated, replayResponse(existing, key))
			return
		}

		tx := &transactions.Transaction{
			ID:             uuid.NewString(),
			IdempotencyKey: key,
			AccountID:      validated.AccountID,
			UserID:         userID,
			Amount:         validated.Amount,
			Type:           validated.Type,
			Status:         transactions.StatusPending,
			Description:    validated.Description,
			Environment:    cfg.Environment,
			RequestID:      c.GetHeader("X-Request-Id"),
		}

		err = cfg.Transactions.InsertIfAbsent(ctx, tx)
		if errors.Is(err, transactions.ErrAlreadyExists) {
			// lost the race against a concurrent identical request; resolve
			// to that request's transaction
			winner, lookupErr := cfg.Transactions.FindByIdempotencyKey(ctx, key)
			if lookupErr != nil {
				writeStoreError(c, cfg.Logger, lookupErr)
				return
			}
			if winner != nil {
				c.JSON(http.StatusCreated, replayResponse(winner, key))
				return
			}
			// store read lag: the row exists but the lookup cannot see it yet
			c.JSON(http.StatusConflict, gin.H{
				"error":      "Transaction already processed",
				"idempotent": true,
			})
			return
		}
		if err != nil {
			writeStoreError(c, cfg.Logger, err)
			return
		}

		cfg.Logger.InfoContext(ctx, "transaction recorded",
			"transaction_id", tx.ID, "account_id", tx.AccountID, "type", tx.Type)

		c.JSON(http.StatusCreated, gin.H{
			"message":        "Transaction recorded successfully!",
			"transactionId":  tx.ID,
			"status":         tx.Status,
			"timestamp":      tx.CreatedAt.UTC().Format(time.RFC3339),
			"idempotencyKey": key,
		})
	}
}

// listAccountTransactions returns the caller's transactions for one account.
func listAccountTransactions(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		userID, err := cfg.Authenticator.Authenticate(ctx, c.GetHeader("Authorization"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		accountID := c.Param("accountId")
		if _, err := uuid.Parse(accountID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid accountId, accountId must be a valid UUID"})
			return
		}

		account, err := cfg.Accounts.Get(ctx, accountID)
		if err != nil {
			writeStoreError(c, cfg.Logger, err)
			return
		}
		if account == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		if account.UserID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}

		txs, err := cfg.Transactions.ListByAccount(ctx, accountID)
		if err != nil {
			writeStoreError(c, cfg.Logger, err)
			return
		}

		items := make([]gin.H, 0, len(txs))
		for _, tx := range txs {
			item := gin.H{
				"transactionId": tx.ID,
				"accountId":     tx.AccountID,
				"amount":        tx.Amount.String(),
				"type":          tx.Type,
				"status":        tx.Status,
				"createdAt":     tx.CreatedAt.UTC().Format(time.RFC3339),
			}
			if tx.Description != "" {
				item["description"] = tx.Description
			}
			if !tx.ProcessedAt.IsZero() {
				item["processedAt"] = tx.ProcessedAt.UTC().Format(time.RFC3339)
			}
			if tx.FailureReason != "" {
				item["failureReason"] = tx.FailureReason
			}
			items = append(items, item)
		}
		c.JSON(http.StatusOK, gin.H{"accountId": accountID, "transactions": items})
	}
}

func replayResponse(tx *transactions.Transaction, key string) gin.H {
	return gin.H{
		"message":        "Transaction already recorded",
		"transactionId":  tx.ID,
		"status":         tx.Status,
		"timestamp":      tx.CreatedAt.UTC().Format(time.RFC3339),
		"idempotencyKey": key,
		"idempotent":     true,
	}
}

func writeStoreError(c *gin.Context, logger *slog.Logger, err error) {
	if errors.Is(err, transactions.ErrThroughput) {
		logger.WarnContext(c.Request.Context(), "store throughput exceeded", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable due to high load"})
		return
	}
	logger.ErrorContext(c.Request.Context(), "store error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process transaction. Please try again."})
}
