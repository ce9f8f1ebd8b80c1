package processing

import "fmt"

// Failure reasons recorded on transactions rejected by business rules.
const (
	ReasonInvalidRecord     = "INVALID_RECORD"
	ReasonAccountNotFound   = "ACCOUNT_NOT_FOUND"
	ReasonOwnershipMismatch = "OWNERSHIP_MISMATCH"
	ReasonInsufficientFunds = "INSUFFICIENT_FUNDS"
	ReasonUnsupportedType   = "UNSUPPORTED_TYPE"
)

// BusinessLogicError is a domain-rule rejection. It is terminal for the
// record: no retry can fix it, so the transaction is marked FAILED and the
// batch continues.
type BusinessLogicError struct {
	Reason string
	Detail string
}

func (e *BusinessLogicError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// SystemError is an infrastructure failure a retry might fix. The record is
// dead-lettered for redelivery or manual remediation.
type SystemError struct {
	Detail string
	Err    error
}

func (e *SystemError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *SystemError) Unwrap() error { return e.Err }
