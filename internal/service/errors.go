package service

import (
	"errors"
	"fmt"
)

// Kind classifies service errors. The set is closed: handlers switch over
// every Kind when choosing a status code.
type Kind int

const (
	// KindStorage is an unexpected persistence failure.
	KindStorage Kind = iota
	// KindValidation is malformed or missing input.
	KindValidation
	// KindNotFound is an unknown beer type id.
	KindNotFound
	// KindConflict is a duplicate beer type name.
	KindConflict
	// KindInvariant is an operation that would make a keg count negative.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvariant:
		return "invariant"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every BeerTypeService operation.
type Error struct {
	Kind    Kind
	Message string
	// Fields maps request field names to problems, for KindValidation.
	Fields map[string]string
	// Err is the underlying cause, if any. Never shown to clients.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Fields == nil && t.Err == nil
}

// Kind sentinels for errors.Is.
var (
	ErrStorage    = &Error{Kind: KindStorage}
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrInvariant  = &Error{Kind: KindInvariant}
)

// Messages shown to clients.
const (
	MsgInvalidInput    = "Invalid input data"
	MsgInvalidID       = "Invalid beer type ID"
	MsgNotFound        = "Beer type not found"
	MsgNameExists      = "Beer type with this name already exists"
	MsgNotEnoughKegs   = "Cannot remove more kegs than available in stock"
	MsgStorageList     = "Failed to fetch beer types"
	MsgStorageCreate   = "Failed to create beer type"
	MsgStorageDelete   = "Failed to delete beer type"
	MsgStorageAdd      = "Failed to add kegs"
	MsgStorageRemove   = "Failed to remove kegs"
	MsgStorageGet      = "Failed to fetch beer type"
	MsgStorageSetCount = "Failed to set keg count"
)

// KindOf returns the Kind of err, or KindStorage for errors that did not
// come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// NewValidationError builds a KindValidation error with per-field messages.
func NewValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: MsgInvalidInput, Fields: fields}
}

func notFound() *Error {
	return &Error{Kind: KindNotFound, Message: MsgNotFound}
}

func storage(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}
