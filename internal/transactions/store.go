package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-idempotent-bankflow/internal/aws"
)

// AccountIndexName is the GSI used to list transactions per account.
const AccountIndexName = "AccountIdIndex"

var (
	// ErrAlreadyExists reports that the conditional insert lost the race: a
	// row with the same idempotency key is already present.
	ErrAlreadyExists = errors.New("transaction with this idempotency key already exists")

	// ErrThroughput marks transient capacity errors callers may retry with backoff.
	ErrThroughput = errors.New("store throughput exceeded")

	// ErrTableMisconfigured marks a missing table, a deployment-level fault.
	ErrTableMisconfigured = errors.New("transaction table misconfigured")
)

// Store encapsulates transaction operations against DynamoDB. The table is
// keyed by idempotencyKey; the key space's uniqueness constraint is what
// makes InsertIfAbsent atomic, no explicit locking is involved.
type Store struct {
	client            aws.DynamoDBAPI
	tableName         string
	idempotencyWindow time.Duration
	recordTTL         time.Duration
	nowFunc           func() time.Time
}

// NewStore returns a configured Store.
func NewStore(client aws.DynamoDBAPI, tableName string, idempotencyWindow, recordTTL time.Duration) *Store {
	return &Store{
		client:            client,
		tableName:         tableName,
		idempotencyWindow: idempotencyWindow,
		recordTTL:         recordTTL,
		nowFunc:           time.Now,
	}
}

// ddbNumber stores a decimal as a DynamoDB number attribute so no float ever
// touches an amount on the wire.
type ddbNumber struct{ decimal.Decimal }

func (n ddbNumber) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: n.String()}, nil
}

func (n *ddbNumber) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	member, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return fmt.Errorf("amount attribute is not a number")
	}
	d, err := decimal.NewFromString(member.Value)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", member.Value, err)
	}
	n.Decimal = d
	return nil
}

// transactionItem is the persisted shape; timestamps are RFC3339 strings,
// expiry markers epoch seconds for the TTL sweep.
type transactionItem struct {
	IdempotencyKey        string    `dynamodbav:"idempotencyKey"` // PK
	ID                    string    `dynamodbav:"id"`
	AccountID             string    `dynamodbav:"accountId"`
	UserID                string    `dynamodbav:"userId"`
	Amount                ddbNumber `dynamodbav:"amount"`
	Type                  string    `dynamodbav:"type"`
	Status                string    `dynamodbav:"status"`
	Description           string    `dynamodbav:"description,omitempty"`
	FailureReason         string    `dynamodbav:"failureReason,omitempty"`
	CreatedAt             string    `dynamodbav:"createdAt"`
	ProcessedAt           string    `dynamodbav:"processedAt,omitempty"`
	IdempotencyExpiration int64     `dynamodbav:"idempotencyExpiration"`
	TTL                   int64     `dynamodbav:"ttl"`
	Environment           string    `dynamodbav:"environment,omitempty"`
	RequestID             string    `dynamodbav:"requestId,omitempty"`
}

func (s *Store) toItem(tx *Transaction) transactionItem {
	item := transactionItem{
		IdempotencyKey:        tx.IdempotencyKey,
		ID:                    tx.ID,
		AccountID:             tx.AccountID,
		UserID:                tx.UserID,
		Amount:                ddbNumber{tx.Amount},
		Type:                  tx.Type,
		Status:                tx.Status,
		Description:           tx.Description,
		FailureReason:         tx.FailureReason,
		CreatedAt:             tx.CreatedAt.UTC().Format(time.RFC3339),
		IdempotencyExpiration: tx.IdempotencyExpiration.Unix(),
		TTL:                   tx.TTL.Unix(),
		Environment:           tx.Environment,
		RequestID:             tx.RequestID,
	}
	if !tx.ProcessedAt.IsZero() {
		item.ProcessedAt = tx.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return item
}

func fromItem(item transactionItem) (*Transaction, error) {
	createdAt, err := time.Parse(time.RFC3339, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse createdAt: %w", err)
	}
	tx := &Transaction{
		IdempotencyKey:        item.IdempotencyKey,
		ID:                    item.ID,
		AccountID:             item.AccountID,
		UserID:                item.UserID,
		Amount:                item.Amount.Decimal,
		Type:                  item.Type,
		Status:                item.Status,
		Description:           item.Description,
		FailureReason:         item.FailureReason,
		CreatedAt:             createdAt,
		IdempotencyExpiration: time.Unix(item.IdempotencyExpiration, 0).UTC(),
		TTL:                   time.Unix(item.TTL, 0).UTC(),
		Environment:           item.Environment,
		RequestID:             item.RequestID,
	}
	if item.ProcessedAt != "" {
		processedAt, err := time.Parse(time.RFC3339, item.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("parse processedAt: %w", err)
		}
		tx.ProcessedAt = processedAt
	}
	return tx, nil
}

// InsertIfAbsent writes the transaction iff no row with the same idempotency
// key exists. Fills CreatedAt and the expiry markers from the store clock.
// Returns ErrAlreadyExists when a concurrent or earlier insert won the key.
func (s *Store) InsertIfAbsent(ctx context.Context, tx *Transaction) error {
	now := s.nowFunc().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.IdempotencyExpiration.IsZero() {
		tx.IdempotencyExpiration = now.Add(s.idempotencyWindow)
	}
	if tx.TTL.IsZero() {
		tx.TTL = now.Add(s.recordTTL)
	}

	item, err := attributevalue.MarshalMap(s.toItem(tx))
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(idempotencyKey)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		return classifyStoreError("put transaction", err)
	}
	return nil
}

// FindByIdempotencyKey does a point lookup by primary key. A row whose
// idempotency expiration is not in the future is reported as not found: the
// table's TTL sweep deletes rows lazily, so logically expired rows can still
// be physically present. The boundary is exclusive; expiration == now is
// already expired.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (*Transaction, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotencyKey": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, classifyStoreError("get transaction", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item transactionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	if item.IdempotencyExpiration <= s.nowFunc().Unix() {
		return nil, nil
	}
	return fromItem(item)
}

// UpdateStatus transitions the transaction to status, optionally recording
// the processing timestamp and a failure reason.
func (s *Store) UpdateStatus(ctx context.Context, key, status string, processedAt time.Time, failureReason string) error {
	updateExpr := "SET #status = :status"
	exprValues := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: status},
	}
	if !processedAt.IsZero() {
		updateExpr += ", processedAt = :processedAt"
		exprValues[":processedAt"] = &types.AttributeValueMemberS{Value: processedAt.UTC().Format(time.RFC3339)}
	}
	if failureReason != "" {
		updateExpr += ", failureReason = :failureReason"
		exprValues[":failureReason"] = &types.AttributeValueMemberS{Value: failureReason}
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotencyKey": &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression:          &updateExpr,
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		return classifyStoreError("update transaction status", err)
	}
	return nil
}

// ListByAccount returns the account's transactions via the account GSI.
func (s *Store) ListByAccount(ctx context.Context, accountID string) ([]Transaction, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(AccountIndexName),
		KeyConditionExpression: awsString("accountId = :accountId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":accountId": &types.AttributeValueMemberS{Value: accountID},
		},
	})
	if err != nil {
		return nil, classifyStoreError("query transactions by account", err)
	}

	txs := make([]Transaction, 0, len(out.Items))
	for _, raw := range out.Items {
		var item transactionItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshal transaction: %w", err)
		}
		tx, err := fromItem(item)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, nil
}

// classifyStoreError separates retryable capacity errors and deployment
// faults from opaque system errors.
func classifyStoreError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ProvisionedThroughputExceededException":
			return fmt.Errorf("%s: %w: %v", op, ErrThroughput, err)
		case "ResourceNotFoundException":
			return fmt.Errorf("%s: %w: %v", op, ErrTableMisconfigured, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func awsString(s string) *string { return &s }
