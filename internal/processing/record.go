package processing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/shopspring/decimal"
)

// TransactionRecord is the strongly-typed projection of a stream record's
// new-row image.
type TransactionRecord struct {
	ID             string
	IdempotencyKey string
	AccountID      string
	UserID         string
	Type           string
	Amount         decimal.Decimal
}

// DecodeTransactionRecord converts the untyped attribute map of a stream
// INSERT image into a TransactionRecord. It fails closed: any missing or
// malformed field is an error, because no redelivery will repair a bad
// record.
func DecodeTransactionRecord(image map[string]events.DynamoDBAttributeValue) (*TransactionRecord, error) {
	required := []string{"accountId", "amount", "type", "userId", "id", "idempotencyKey"}
	var missing []string
	for _, field := range required {
		if _, ok := image[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	rec := &TransactionRecord{}
	var err error
	if rec.AccountID, err = stringAttr(image, "accountId"); err != nil {
		return nil, err
	}
	if rec.UserID, err = stringAttr(image, "userId"); err != nil {
		return nil, err
	}
	if rec.ID, err = stringAttr(image, "id"); err != nil {
		return nil, err
	}
	if rec.IdempotencyKey, err = stringAttr(image, "idempotencyKey"); err != nil {
		return nil, err
	}
	rawType, err := stringAttr(image, "type")
	if err != nil {
		return nil, err
	}
	rec.Type = strings.ToUpper(strings.TrimSpace(rawType))

	amountAttr := image["amount"]
	if amountAttr.DataType() != events.DataTypeNumber {
		return nil, fmt.Errorf("field amount is not a number attribute")
	}
	amount, err := decimal.NewFromString(amountAttr.Number())
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amountAttr.Number(), err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %s", amount)
	}
	rec.Amount = amount

	return rec, nil
}

func stringAttr(image map[string]events.DynamoDBAttributeValue, field string) (string, error) {
	av := image[field]
	if av.DataType() != events.DataTypeString {
		return "", fmt.Errorf("field %s is not a string attribute", field)
	}
	if av.String() == "" {
		return "", fmt.Errorf("field %s is empty", field)
	}
	return av.String(), nil
}

// ExtractIdempotencyKey pulls the idempotency key out of an image without
// full validation; failure routing needs it even for malformed records.
func ExtractIdempotencyKey(image map[string]events.DynamoDBAttributeValue) string {
	av, ok := image["idempotencyKey"]
	if !ok || av.DataType() != events.DataTypeString {
		return ""
	}
	return av.String()
}
