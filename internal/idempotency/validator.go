// Package idempotency validates the client-supplied Idempotency-Key header.
// The key itself is the transaction table's primary key; its uniqueness is
// what turns at-least-once delivery into an at-most-once recorded transaction.
package idempotency

import (
	"strings"

	"github.com/google/uuid"
)

// ErrorKind classifies why a key was rejected.
type ErrorKind string

const (
	ErrMissing ErrorKind = "MISSING"
	ErrLength  ErrorKind = "LENGTH"
	ErrFormat  ErrorKind = "FORMAT"
)

const (
	minKeyLength = 10
	maxKeyLength = 64
)

// KeyError describes a rejected idempotency key. Example always carries a
// freshly generated UUID the caller can echo back as advice.
type KeyError struct {
	Kind       ErrorKind
	Message    string
	Suggestion string
	Example    string
}

func (e *KeyError) Error() string { return e.Message }

// ValidateKey checks the raw header value and returns the normalized key.
// The key must be present, 10-64 characters, and parse as a UUID.
func ValidateKey(headerValue string) (string, *KeyError) {
	key := strings.TrimSpace(headerValue)

	if key == "" {
		return "", &KeyError{
			Kind:       ErrMissing,
			Message:    "Idempotency-Key header is required for transaction creation",
			Suggestion: "Please include an Idempotency-Key header with a UUID v4 value",
			Example:    uuid.NewString(),
		}
	}

	if len(key) < minKeyLength || len(key) > maxKeyLength {
		return "", &KeyError{
			Kind:       ErrLength,
			Message:    "Idempotency-Key must be between 10 and 64 characters",
			Suggestion: "We recommend using a UUID v4 format",
			Example:    uuid.NewString(),
		}
	}

	if _, err := uuid.Parse(key); err != nil {
		return "", &KeyError{
			Kind:    ErrFormat,
			Message: "Idempotency-Key must be a valid UUID",
			Example: uuid.NewString(),
		}
	}

	return key, nil
}
