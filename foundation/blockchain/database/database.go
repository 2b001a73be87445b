// Package database defines the transaction and block data model along with
// the canonical encoding used for hashing and reporting.
package database

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// HashLength is the number of bytes in a block hash or difficulty target.
const HashLength = 32

// EncodingError is returned when a value can't be represented in the
// canonical encoding.
type EncodingError struct {
	Kind string
	Err  error
}

// Error implements the error interface.
func (ee *EncodingError) Error() string {
	return fmt.Sprintf("encoding %s: %s", ee.Kind, ee.Err)
}

// Unwrap provides support for errors.Is and errors.As.
func (ee *EncodingError) Unwrap() error {
	return ee.Err
}

// IsEncodingError checks if an error of type EncodingError exists.
func IsEncodingError(err error) bool {
	var ee *EncodingError
	return errors.As(err, &ee)
}

// =============================================================================

// encode marshals the value as JSON in struct field order without HTML
// escaping and without the trailing newline the json encoder adds.
func encode(kind string, value any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, &EncodingError{Kind: kind, Err: err}
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// checkHash validates the string is exactly HashLength bytes of hex.
func checkHash(field string, s string) error {
	if len(s) != 2*HashLength {
		return fmt.Errorf("%s must be %d hex characters, got %d", field, 2*HashLength, len(s))
	}

	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("%s is not hex: %w", field, err)
	}

	return nil
}
