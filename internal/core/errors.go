package core

import (
	"errors"
	"fmt"
)

// Normalization failures.
var (
	ErrEmptyInput    = errors.New("phone: empty input")
	ErrInvalidLength = errors.New("phone: invalid length")
)

// Row-level failures. These never abort a batch.
var (
	ErrNoValidPhone = errors.New("no valid phone number")
	ErrMalformedRow = errors.New("malformed row")
)

// Batch-level failures surfaced to the uploader.
var (
	ErrNoData          = errors.New("empty file: the file contains no data")
	ErrMissingColumns  = errors.New("missing required columns")
	ErrNoValidContacts = errors.New("no valid contacts found")
)

// Messages shown verbatim for client-correctable failures.
const (
	msgNoData          = "The file contains no data"
	msgNoValidContacts = "No valid contacts found in the file"
)

// InputError is a client-correctable failure. Message is shown verbatim and
// Warnings carries whatever row annotations were gathered before the failure.
type InputError struct {
	Message  string
	Warnings []string
	Err      error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is, or wraps, an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
