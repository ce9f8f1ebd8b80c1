package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every environment-derived setting the binaries need.
// It is built once at cold start and passed down explicitly; nothing in this
// repository reads the environment after startup.
type Config struct {
	EnvironmentName   string
	TransactionsTable string
	AccountsTable     string
	DLQURL            string

	// Local-stack endpoint overrides; empty means the real AWS endpoint.
	DynamoDBEndpoint string
	SQSEndpoint      string

	CognitoUserPoolID string
	CognitoClientID   string
	AWSRegion         string

	// AllowedTransactionTypes gates the intake API. Types the mutation worker
	// cannot settle stay disabled here.
	AllowedTransactionTypes []string

	// IdempotencyExpiration bounds the at-most-once guarantee window;
	// RecordTTL bounds the life of the stored row itself.
	IdempotencyExpiration time.Duration
	RecordTTL             time.Duration

	MetricsNamespace string
	RunLocal         bool

	// LocalUserID backs the static authenticator when running without a
	// Cognito pool.
	LocalUserID string
}

// Load reads configuration from the environment.
func Load() Config {
	expirationDays := envInt("IDEMPOTENCY_EXPIRATION_DAYS", 7)

	allowed := []string{"DEPOSIT", "WITHDRAWAL"}
	if raw := os.Getenv("ALLOWED_TRANSACTION_TYPES"); raw != "" {
		allowed = nil
		for _, t := range strings.Split(raw, ",") {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				allowed = append(allowed, t)
			}
		}
	}

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "eu-west-2"
	}

	return Config{
		EnvironmentName:         envDefault("ENVIRONMENT_NAME", "dev"),
		TransactionsTable:       os.Getenv("TRANSACTIONS_TABLE_NAME"),
		AccountsTable:           os.Getenv("ACCOUNTS_TABLE_NAME"),
		DLQURL:                  os.Getenv("TRANSACTION_PROCESSING_DLQ_URL"),
		DynamoDBEndpoint:        os.Getenv("DYNAMODB_ENDPOINT"),
		SQSEndpoint:             os.Getenv("SQS_ENDPOINT"),
		CognitoUserPoolID:       os.Getenv("COGNITO_USER_POOL_ID"),
		CognitoClientID:         os.Getenv("COGNITO_CLIENT_ID"),
		AWSRegion:               region,
		AllowedTransactionTypes: allowed,
		IdempotencyExpiration:   time.Duration(expirationDays) * 24 * time.Hour,
		RecordTTL:               365 * 24 * time.Hour,
		MetricsNamespace:        envDefault("METRICS_NAMESPACE", "Banking/Transactions"),
		RunLocal:                os.Getenv("RUN_LOCAL") == "true",
		LocalUserID:             os.Getenv("LOCAL_USER_ID"),
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
