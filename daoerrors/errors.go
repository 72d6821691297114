// Package daoerrors defines the errors surfaced by the generic DAO.
//
// Every failure is reported through one of the sentinels below so callers can
// branch with errors.Is. Richer context travels in the typed errors, which
// unwrap to their sentinel.
package daoerrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNullArgument is returned when a required argument (search, search type,
	// entity or id) is missing.
	ErrNullArgument = errors.New("null argument")

	// ErrInvalidArgument is returned for arguments of the wrong shape, such as an
	// id that cannot be converted to the entity's identifier type.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidSearch is returned when a search cannot be translated.
	ErrInvalidSearch = errors.New("invalid search specification")

	// ErrNonUniqueResult is returned by SearchUnique when more than one row matches.
	ErrNonUniqueResult = errors.New("non-unique result")

	// ErrEntityNotFound is returned when a reference resolves against an absent row.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrDispatcherMisuse is returned for untyped operations on a dispatcher that
	// has overrides registered.
	ErrDispatcherMisuse = errors.New("dispatcher misuse")

	// ErrAttachment is returned when a reference or entity is used outside the
	// unit-of-work it belongs to.
	ErrAttachment = errors.New("unit-of-work is closed")

	// ErrNoSession is returned when an operation needs a session and the context
	// carries none.
	ErrNoSession = errors.New("no session in context")
)

// SearchError describes why a search could not be translated.
type SearchError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	if e.Path == "" {
		return ErrInvalidSearch.Error() + ": " + e.Message
	}
	return fmt.Sprintf("%s: %q: %s", ErrInvalidSearch.Error(), e.Path, e.Message)
}

// Unwrap returns ErrInvalidSearch.
func (e *SearchError) Unwrap() error {
	return ErrInvalidSearch
}

// InvalidSearch builds a SearchError for path.
func InvalidSearch(path, format string, args ...any) error {
	return &SearchError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing row behind a reference.
type NotFoundError struct {
	Entity string
	ID     any
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s#%v", ErrEntityNotFound.Error(), e.Entity, e.ID)
}

// Unwrap returns ErrEntityNotFound.
func (e *NotFoundError) Unwrap() error {
	return ErrEntityNotFound
}

// NullArgument wraps ErrNullArgument with the name of the missing argument.
func NullArgument(name string) error {
	return fmt.Errorf("%w: %s", ErrNullArgument, name)
}

// InvalidArgument wraps ErrInvalidArgument with a formatted reason.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
