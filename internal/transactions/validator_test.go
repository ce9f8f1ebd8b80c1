package transactions

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allowedTypes = []string{TypeDeposit, TypeWithdrawal}

func strPtr(s string) *string { return &s }

func validRequest() *CreateTransactionRequest {
	return &CreateTransactionRequest{
		AccountID: strPtr("3fa85f64-5717-4562-b3fc-2c963f66afa6"),
		Amount:    json.RawMessage(`100.50`),
		Type:      strPtr("DEPOSIT"),
	}
}

func TestValidateRequest_Valid(t *testing.T) {
	v := NewValidator()

	got, verr := ValidateRequest(v, validRequest(), allowedTypes)

	require.Nil(t, verr)
	assert.Equal(t, "3fa85f64-5717-4562-b3fc-2c963f66afa6", got.AccountID)
	assert.Equal(t, TypeDeposit, got.Type)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("100.50")))
}

func TestValidateRequest_AmountAsString(t *testing.T) {
	v := NewValidator()
	req := validRequest()
	req.Amount = json.RawMessage(`"42.01"`)

	got, verr := ValidateRequest(v, req, allowedTypes)

	require.Nil(t, verr)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("42.01")))
}

func TestValidateRequest_TypeCaseInsensitive(t *testing.T) {
	v := NewValidator()
	req := validRequest()
	req.Type = strPtr("withdrawal")

	got, verr := ValidateRequest(v, req, allowedTypes)

	require.Nil(t, verr)
	assert.Equal(t, TypeWithdrawal, got.Type)
}

func TestValidateRequest_ReportsAllMissingFields(t *testing.T) {
	v := NewValidator()
	req := &CreateTransactionRequest{Type: strPtr("DEPOSIT")}

	_, verr := ValidateRequest(v, req, allowedTypes)

	require.NotNil(t, verr)
	assert.Equal(t, CodeMissingFields, verr.Code)
	// both missing fields must be named, not just the first
	assert.Contains(t, verr.Message, "accountId")
	assert.Contains(t, verr.Message, "amount")
}

func TestValidateRequest_InvalidType(t *testing.T) {
	v := NewValidator()
	req := validRequest()
	req.Type = strPtr("TRANSFER")

	_, verr := ValidateRequest(v, req, allowedTypes)

	require.NotNil(t, verr)
	assert.Equal(t, CodeInvalidType, verr.Code)
	assert.Contains(t, verr.Message, "DEPOSIT")
}

func TestValidateRequest_InvalidAmountFormat(t *testing.T) {
	v := NewValidator()
	for _, raw := range []string{`"abc"`, `true`, `{}`, `"12,50"`} {
		req := validRequest()
		req.Amount = json.RawMessage(raw)

		_, verr := ValidateRequest(v, req, allowedTypes)

		require.NotNil(t, verr, "amount %s", raw)
		assert.Equal(t, CodeInvalidAmountFormat, verr.Code)
	}
}

func TestValidateRequest_NonPositiveAmount(t *testing.T) {
	v := NewValidator()
	for _, raw := range []string{`0`, `-5`, `"-100.50"`, `"0.00"`} {
		req := validRequest()
		req.Amount = json.RawMessage(raw)

		_, verr := ValidateRequest(v, req, allowedTypes)

		require.NotNil(t, verr, "amount %s", raw)
		assert.Equal(t, CodeNonPositiveAmount, verr.Code)
	}
}

func TestValidateRequest_InvalidAccountID(t *testing.T) {
	v := NewValidator()
	req := validRequest()
	req.AccountID = strPtr("account-123")

	_, verr := ValidateRequest(v, req, allowedTypes)

	require.NotNil(t, verr)
	assert.Equal(t, CodeInvalidAccountID, verr.Code)
}

func TestValidateRequest_Description(t *testing.T) {
	v := NewValidator()

	req := validRequest()
	req.Description = json.RawMessage(`"Monthly savings"`)
	got, verr := ValidateRequest(v, req, allowedTypes)
	require.Nil(t, verr)
	assert.Equal(t, "Monthly savings", got.Description)

	req = validRequest()
	req.Description = json.RawMessage(`123`)
	_, verr = ValidateRequest(v, req, allowedTypes)
	require.NotNil(t, verr)
	assert.Equal(t, CodeInvalidDescription, verr.Code)
}

func TestNormalizeType(t *testing.T) {
	got, ok := NormalizeType(" deposit ", allowedTypes)
	require.True(t, ok)
	assert.Equal(t, TypeDeposit, got)

	_, ok = NormalizeType("ADJUSTMENT", allowedTypes)
	assert.False(t, ok)
}
