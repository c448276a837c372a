package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned when a lookup misses within the acting
	// broker's scope. Surfaced to the caller, never retried.
	ErrRecordNotFound = errors.New("qualification record not found")

	// ErrBrokerNotFound is returned when a broker lookup by ID or code misses
	ErrBrokerNotFound = errors.New("broker not found")

	// ErrUnknownBrokerScope is returned when the acting user resolves to no
	// broker. Fatal for the whole request, not row-local.
	ErrUnknownBrokerScope = errors.New("user is not linked to a broker")
)

// MalformedNumberError reports numeric text that cannot be parsed as a
// decimal after locale normalization. Row-local and recoverable during bulk
// ingestion.
type MalformedNumberError struct {
	Input string
}

func (e *MalformedNumberError) Error() string {
	return fmt.Sprintf("malformed number %q", e.Input)
}

// MissingColumnError reports a required tabular column that is absent or
// blank. Row-local during bulk ingestion, fatal for single-record entry.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q is missing or empty", e.Column)
}
