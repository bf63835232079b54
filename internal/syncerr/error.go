// Package syncerr provides the error type returned by operations talking to
// the GitHub API.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind classifies why a GitHub API operation failed.
type Kind error

var (
	// KindTransport is the kind for failures of the remote call itself:
	// network or TLS errors, non-2xx responses, malformed response envelopes
	// and expired deadlines.
	KindTransport Kind = errors.New("github api request failed")
	// KindGraphQL is the kind for responses that carry GraphQL errors.
	KindGraphQL Kind = errors.New("github api returned graphql errors")
	// KindNoData is the kind for responses that have neither data nor errors.
	KindNoData Kind = errors.New("github api returned no data")
	// KindOrgNotFound is the kind for a null organization in the response.
	KindOrgNotFound Kind = errors.New("organization not found")
	// KindProjectNotFound is the kind for a null project in the response.
	KindProjectNotFound Kind = errors.New("project not found")
	// KindItemsNotFound is the kind for a null project item list in the response.
	KindItemsNotFound Kind = errors.New("project items not found")
)

type APIError struct {
	// Kind is one of the Kind* sentinels of the package.
	Kind Kind
	// Err is the wrapped original error, it is nil when the failure was
	// detected by inspecting an otherwise successful response.
	Err error
}

func New(kind Kind, originalErr error) *APIError {
	return &APIError{
		Kind: kind,
		Err:  originalErr,
	}
}

func NewWithoutCause(kind Kind) *APIError {
	return &APIError{Kind: kind}
}

// Is reports whether target is the kind of the error.
func (e *APIError) Is(target error) bool {
	return target == e.Kind
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}
