package transactions

import (
	"context"
	"strings"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamoDB is an in-memory stand-in for the transactions table, keyed by
// idempotencyKey. It honors the conditional insert the store relies on and
// lets tests inject API errors per operation.
type mockDynamoDB struct {
	items map[string]map[string]types.AttributeValue

	putErr    error
	getErr    error
	updateErr error
	queryErr  error

	putCalls    int
	updateCalls int
}

func newMockDynamoDB() *mockDynamoDB {
	return &mockDynamoDB{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(item map[string]types.AttributeValue) string {
	if v, ok := item["idempotencyKey"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (m *mockDynamoDB) PutItem(_ context.Context, in *dyn.PutItemInput, _ ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}
	key := keyOf(in.Item)
	if in.ConditionExpression != nil && strings.Contains(*in.ConditionExpression, "attribute_not_exists") {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[key] = in.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamoDB) GetItem(_ context.Context, in *dyn.GetItemInput, _ ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	item, ok := m.items[keyOf(in.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamoDB) UpdateItem(_ context.Context, in *dyn.UpdateItemInput, _ ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.updateCalls++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	key := keyOf(in.Key)
	item, ok := m.items[key]
	if !ok {
		item = map[string]types.AttributeValue{
			"idempotencyKey": &types.AttributeValueMemberS{Value: key},
		}
		m.items[key] = item
	}
	expr := *in.UpdateExpression
	if strings.Contains(expr, ":status") {
		item["status"] = in.ExpressionAttributeValues[":status"]
	}
	if strings.Contains(expr, ":processedAt") {
		item["processedAt"] = in.ExpressionAttributeValues[":processedAt"]
	}
	if strings.Contains(expr, ":failureReason") {
		item["failureReason"] = in.ExpressionAttributeValues[":failureReason"]
	}
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockDynamoDB) Query(_ context.Context, in *dyn.QueryInput, _ ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	want, _ := in.ExpressionAttributeValues[":accountId"].(*types.AttributeValueMemberS)
	out := &dyn.QueryOutput{}
	for _, item := range m.items {
		if v, ok := item["accountId"].(*types.AttributeValueMemberS); ok && want != nil && v.Value == want.Value {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}
