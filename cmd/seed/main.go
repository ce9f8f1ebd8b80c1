// Command seed creates account rows against a local DynamoDB endpoint so the
// intake and processing pipeline can be exercised end to end in development.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/imrishuroy/go-idempotent-bankflow/internal/aws"
)

func main() {
	_ = godotenv.Load()

	table := pflag.String("table", os.Getenv("ACCOUNTS_TABLE_NAME"), "accounts table name")
	endpoint := pflag.String("endpoint", os.Getenv("DYNAMODB_ENDPOINT"), "DynamoDB endpoint override")
	accountID := pflag.String("account-id", "", "account id (default: new UUID)")
	userID := pflag.String("user-id", "", "owning user id (default: new UUID)")
	balance := pflag.String("balance", "0", "opening balance")
	pflag.Parse()

	if *table == "" {
		fmt.Fprintln(os.Stderr, "a table name is required (--table or ACCOUNTS_TABLE_NAME)")
		os.Exit(1)
	}
	opening, err := decimal.NewFromString(*balance)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid balance %q: %v\n", *balance, err)
		os.Exit(1)
	}
	if *accountID == "" {
		*accountID = uuid.NewString()
	}
	if *userID == "" {
		*userID = uuid.NewString()
	}

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx, *endpoint, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init aws clients: %v\n", err)
		os.Exit(1)
	}

	_, err = clients.DynamoDB.PutItem(ctx, &dyn.PutItemInput{
		TableName: table,
		Item: map[string]types.AttributeValue{
			"accountId": &types.AttributeValueMemberS{Value: *accountID},
			"userId":    &types.AttributeValueMemberS{Value: *userID},
			"balance":   &types.AttributeValueMemberN{Value: opening.String()},
			"updatedAt": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create account: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created account %s (user %s) with balance %s\n", *accountID, *userID, opening)
}
