package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAccountTable simulates the accounts table including the guarded
// balance expressions the store issues.
type mockAccountTable struct {
	items map[string]map[string]types.AttributeValue

	getErr    error
	updateErr error
}

func newMockAccountTable() *mockAccountTable {
	return &mockAccountTable{items: map[string]map[string]types.AttributeValue{}}
}

func (m *mockAccountTable) seed(accountID, userID, balance string) {
	m.items[accountID] = map[string]types.AttributeValue{
		"accountId": &types.AttributeValueMemberS{Value: accountID},
		"userId":    &types.AttributeValueMemberS{Value: userID},
		"balance":   &types.AttributeValueMemberN{Value: balance},
		"updatedAt": &types.AttributeValueMemberS{Value: "2026-08-01T12:00:00Z"},
	}
}

func (m *mockAccountTable) balance(accountID string) decimal.Decimal {
	v := m.items[accountID]["balance"].(*types.AttributeValueMemberN)
	return decimal.RequireFromString(v.Value)
}

func (m *mockAccountTable) GetItem(_ context.Context, in *dyn.GetItemInput, _ ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	key := in.Key["accountId"].(*types.AttributeValueMemberS).Value
	item, ok := m.items[key]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockAccountTable) PutItem(_ context.Context, in *dyn.PutItemInput, _ ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	key := in.Item["accountId"].(*types.AttributeValueMemberS).Value
	m.items[key] = in.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockAccountTable) UpdateItem(_ context.Context, in *dyn.UpdateItemInput, _ ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	key := in.Key["accountId"].(*types.AttributeValueMemberS).Value
	item, exists := m.items[key]

	amount := decimal.RequireFromString(in.ExpressionAttributeValues[":amount"].(*types.AttributeValueMemberN).Value)
	if in.ConditionExpression != nil {
		cond := *in.ConditionExpression
		if strings.Contains(cond, "attribute_exists(accountId)") && !exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
		if strings.Contains(cond, "balance >= :amount") {
			current := decimal.RequireFromString(item["balance"].(*types.AttributeValueMemberN).Value)
			if current.LessThan(amount) {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}

	current := decimal.RequireFromString(item["balance"].(*types.AttributeValueMemberN).Value)
	if strings.Contains(*in.UpdateExpression, "balance - :amount") {
		current = current.Sub(amount)
	} else {
		current = current.Add(amount)
	}
	item["balance"] = &types.AttributeValueMemberN{Value: current.String()}
	item["updatedAt"] = in.ExpressionAttributeValues[":updatedAt"]
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockAccountTable) Query(_ context.Context, _ *dyn.QueryInput, _ ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return &dyn.QueryOutput{}, nil
}

const testAccountID = "3fa85f64-5717-4562-b3fc-2c963f66afa6"

func TestGet(t *testing.T) {
	mock := newMockAccountTable()
	mock.seed(testAccountID, "user-1", "250.75")
	store := NewStore(mock, "accounts")

	account, err := store.Get(context.Background(), testAccountID)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, testAccountID, account.AccountID)
	assert.Equal(t, "user-1", account.UserID)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("250.75")))
	assert.False(t, account.UpdatedAt.IsZero())
}

func TestGet_NotFound(t *testing.T) {
	store := NewStore(newMockAccountTable(), "accounts")

	account, err := store.Get(context.Background(), testAccountID)
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestGet_Error(t *testing.T) {
	mock := newMockAccountTable()
	mock.getErr = errors.New("connection reset")
	store := NewStore(mock, "accounts")

	_, err := store.Get(context.Background(), testAccountID)
	assert.Error(t, err)
}

func TestCredit(t *testing.T) {
	mock := newMockAccountTable()
	mock.seed(testAccountID, "user-1", "100")
	store := NewStore(mock, "accounts")
	store.nowFunc = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }

	err := store.Credit(context.Background(), testAccountID, decimal.RequireFromString("50.25"))
	require.NoError(t, err)
	assert.True(t, mock.balance(testAccountID).Equal(decimal.RequireFromString("150.25")))
}

func TestCredit_MissingAccount(t *testing.T) {
	store := NewStore(newMockAccountTable(), "accounts")

	err := store.Credit(context.Background(), testAccountID, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrConditionFailed)
}

func TestDebit(t *testing.T) {
	mock := newMockAccountTable()
	mock.seed(testAccountID, "user-1", "100")
	store := NewStore(mock, "accounts")

	err := store.Debit(context.Background(), testAccountID, decimal.RequireFromString("40"))
	require.NoError(t, err)
	assert.True(t, mock.balance(testAccountID).Equal(decimal.NewFromInt(60)))
}

func TestDebit_GuardRefusesOverdraft(t *testing.T) {
	mock := newMockAccountTable()
	mock.seed(testAccountID, "user-1", "50")
	store := NewStore(mock, "accounts")

	err := store.Debit(context.Background(), testAccountID, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrConditionFailed)
	// a refused debit must leave the balance untouched
	assert.True(t, mock.balance(testAccountID).Equal(decimal.NewFromInt(50)))
}

func TestDebit_ExactBalanceAllowed(t *testing.T) {
	mock := newMockAccountTable()
	mock.seed(testAccountID, "user-1", "100")
	store := NewStore(mock, "accounts")

	err := store.Debit(context.Background(), testAccountID, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, mock.balance(testAccountID).Equal(decimal.Zero))
}

func TestApplyDelta_SystemError(t *testing.T) {
	mock := newMockAccountTable()
	mock.seed(testAccountID, "user-1", "100")
	mock.updateErr = errors.New("throttled")
	store := NewStore(mock, "accounts")

	err := store.Credit(context.Background(), testAccountID, decimal.NewFromInt(10))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConditionFailed)
}
