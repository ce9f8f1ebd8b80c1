package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-idempotent-bankflow/internal/aws"
)

// ErrConditionFailed reports that a guarded balance update was refused: the
// account row vanished or, for a debit, the balance guard tripped. Callers
// that checked existence beforehand can read a debit refusal as insufficient
// funds.
var ErrConditionFailed = errors.New("balance update condition failed")

// Store encapsulates operations on the accounts table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new accounts Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches an account by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, accountID string) (*Account, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"accountId": &types.AttributeValueMemberS{Value: accountID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	account := &Account{AccountID: accountID}
	if v, ok := out.Item["userId"].(*types.AttributeValueMemberS); ok {
		account.UserID = v.Value
	}
	if v, ok := out.Item["balance"].(*types.AttributeValueMemberN); ok {
		balance, err := decimal.NewFromString(v.Value)
		if err != nil {
			return nil, fmt.Errorf("parse balance %q: %w", v.Value, err)
		}
		account.Balance = balance
	}
	if v, ok := out.Item["updatedAt"].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
			account.UpdatedAt = t
		}
	}
	return account, nil
}

// Credit atomically adds amount to the account balance. The update is a
// single server-side expression so concurrent mutations of one account
// cannot lose each other's writes.
func (s *Store) Credit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	return s.applyDelta(ctx, accountID, amount, false)
}

// Debit atomically subtracts amount, guarded so the balance never goes
// negative. A guard refusal surfaces as ErrConditionFailed.
func (s *Store) Debit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	return s.applyDelta(ctx, accountID, amount, true)
}

func (s *Store) applyDelta(ctx context.Context, accountID string, amount decimal.Decimal, debit bool) error {
	updateExpr := "SET balance = balance + :amount, updatedAt = :updatedAt"
	condition := "attribute_exists(accountId)"
	if debit {
		updateExpr = "SET balance = balance - :amount, updatedAt = :updatedAt"
		condition = "attribute_exists(accountId) AND balance >= :amount"
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"accountId": &types.AttributeValueMemberS{Value: accountID},
		},
		UpdateExpression:    &updateExpr,
		ConditionExpression: &condition,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":amount":    &types.AttributeValueMemberN{Value: amount.String()},
			":updatedAt": &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConditionFailed
		}
		return fmt.Errorf("update account balance: %w", err)
	}
	return nil
}
