package processing

import (
	"context"
	"strings"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// mockDynamoDB backs both the accounts and the transactions table for worker
// tests. Requests are dispatched on the key attribute name.
type mockDynamoDB struct {
	accounts     map[string]map[string]types.AttributeValue
	transactions map[string]map[string]types.AttributeValue

	accountGetErr    error
	accountUpdateErr error
	txUpdateErr      error
}

func newMockDynamoDB() *mockDynamoDB {
	return &mockDynamoDB{
		accounts:     map[string]map[string]types.AttributeValue{},
		transactions: map[string]map[string]types.AttributeValue{},
	}
}

func (m *mockDynamoDB) seedAccount(accountID, userID, balance string) {
	m.accounts[accountID] = map[string]types.AttributeValue{
		"accountId": &types.AttributeValueMemberS{Value: accountID},
		"userId":    &types.AttributeValueMemberS{Value: userID},
		"balance":   &types.AttributeValueMemberN{Value: balance},
	}
}

func (m *mockDynamoDB) accountBalance(accountID string) decimal.Decimal {
	v := m.accounts[accountID]["balance"].(*types.AttributeValueMemberN)
	return decimal.RequireFromString(v.Value)
}

func (m *mockDynamoDB) transactionStatus(key string) string {
	item, ok := m.transactions[key]
	if !ok {
		return ""
	}
	if v, ok := item["status"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func stringKey(key map[string]types.AttributeValue, name string) (string, bool) {
	v, ok := key[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return v.Value, true
}

func (m *mockDynamoDB) GetItem(_ context.Context, in *dyn.GetItemInput, _ ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	if id, ok := stringKey(in.Key, "accountId"); ok {
		if m.accountGetErr != nil {
			return nil, m.accountGetErr
		}
		item, exists := m.accounts[id]
		if !exists {
			return &dyn.GetItemOutput{}, nil
		}
		return &dyn.GetItemOutput{Item: item}, nil
	}
	key, _ := stringKey(in.Key, "idempotencyKey")
	item, exists := m.transactions[key]
	if !exists {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamoDB) PutItem(_ context.Context, in *dyn.PutItemInput, _ ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	if key, ok := stringKey(in.Item, "idempotencyKey"); ok {
		m.transactions[key] = in.Item
	}
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamoDB) UpdateItem(_ context.Context, in *dyn.UpdateItemInput, _ ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	if id, ok := stringKey(in.Key, "accountId"); ok {
		return m.updateAccount(id, in)
	}
	if m.txUpdateErr != nil {
		return nil, m.txUpdateErr
	}
	key, _ := stringKey(in.Key, "idempotencyKey")
	item, ok := m.transactions[key]
	if !ok {
		item = map[string]types.AttributeValue{
			"idempotencyKey": &types.AttributeValueMemberS{Value: key},
		}
		m.transactions[key] = item
	}
	for _, attr := range []string{"status", "processedAt", "failureReason"} {
		if v, ok := in.ExpressionAttributeValues[":"+attr]; ok {
			item[attr] = v
		}
	}
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockDynamoDB) updateAccount(id string, in *dyn.UpdateItemInput) (*dyn.UpdateItemOutput, error) {
	if m.accountUpdateErr != nil {
		return nil, m.accountUpdateErr
	}
	item, exists := m.accounts[id]
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
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockDynamoDB) Query(_ context.Context, _ *dyn.QueryInput, _ ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return &dyn.QueryOutput{}, nil
}
