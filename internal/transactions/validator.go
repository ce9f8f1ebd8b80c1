package transactions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Validation error codes for the intake request contract.
const (
	CodeMissingFields       = "MISSING_FIELDS"
	CodeInvalidType         = "INVALID_TYPE"
	CodeInvalidAmountFormat = "INVALID_AMOUNT_FORMAT"
	CodeNonPositiveAmount   = "NON_POSITIVE_AMOUNT"
	CodeInvalidAccountID    = "INVALID_ACCOUNT_ID"
	CodeInvalidDescription  = "INVALID_DESCRIPTION"
)

// ValidationError is a client-input rejection; it never reaches the store layer.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CreateTransactionRequest is the intake request body. Pointer and raw fields
// keep "absent" distinguishable from "present but malformed" so each case
// maps to its own error code.
type CreateTransactionRequest struct {
	AccountID   *string         `json:"accountId" validate:"required"`
	Amount      json.RawMessage `json:"amount" validate:"required"`
	Type        *string         `json:"type" validate:"required"`
	Description json.RawMessage `json:"description"`
}

// ValidatedTransaction is the normalized payload after validation.
type ValidatedTransaction struct {
	AccountID   string
	Amount      decimal.Decimal
	Type        string
	Description string
}

// NewValidator returns the validator used for intake payloads, reporting
// field names by their json tags.
func NewValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequest checks the business payload against the intake rules and
// returns the normalized transaction data. All missing required fields are
// reported together, not just the first.
func ValidateRequest(v *validatorv10.Validate, req *CreateTransactionRequest, allowedTypes []string) (*ValidatedTransaction, *ValidationError) {
	if err := v.Struct(req); err != nil {
		var missing []string
		if ve, ok := err.(validatorv10.ValidationErrors); ok {
			for _, fe := range ve {
				if fe.Tag() == "required" {
					missing = append(missing, fe.Field())
				}
			}
		}
		if len(missing) == 0 {
			missing = append(missing, "body")
		}
		return nil, &ValidationError{
			Code:    CodeMissingFields,
			Message: fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")),
		}
	}

	txType, ok := NormalizeType(*req.Type, allowedTypes)
	if !ok {
		return nil, &ValidationError{
			Code:    CodeInvalidType,
			Message: fmt.Sprintf("Invalid transaction type. Must be one of: %s", strings.Join(allowedTypes, ", ")),
		}
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, &ValidationError{
			Code:    CodeInvalidAmountFormat,
			Message: "Invalid amount format. Amount must be a number.",
		}
	}
	if !amount.IsPositive() {
		return nil, &ValidationError{
			Code:    CodeNonPositiveAmount,
			Message: "Amount must be a positive number",
		}
	}

	if _, err := uuid.Parse(*req.AccountID); err != nil {
		return nil, &ValidationError{
			Code:    CodeInvalidAccountID,
			Message: "Invalid accountId, accountId must be a valid UUID",
		}
	}

	description := ""
	if len(req.Description) > 0 {
		if err := json.Unmarshal(req.Description, &description); err != nil {
			return nil, &ValidationError{
				Code:    CodeInvalidDescription,
				Message: "Description must be a string",
			}
		}
	}

	return &ValidatedTransaction{
		AccountID:   *req.AccountID,
		Amount:      amount,
		Type:        txType,
		Description: description,
	}, nil
}

// NormalizeType matches raw case-insensitively against allowed and returns
// the canonical upper-case form.
func NormalizeType(raw string, allowed []string) (string, bool) {
	canonical := strings.ToUpper(strings.TrimSpace(raw))
	for _, t := range allowed {
		if canonical == strings.ToUpper(t) {
			return canonical, true
		}
	}
	return "", false
}

// parseAmount accepts a JSON number or a JSON string containing a number.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}
