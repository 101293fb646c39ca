package apperr

import (
	"errors"
	"fmt"

	"github.com/fmuoria/recruitment-scoring/internal/models"
)

// Kind classifies engine failures
type Kind string

const (
	KindMetadataIncomplete    Kind = "metadata_incomplete"
	KindValidationFailed      Kind = "validation_failed"
	KindCalculationInvalid    Kind = "calculation_invalid"
	KindPersistenceFailed     Kind = "persistence_failed"
	KindOptionListUnavailable Kind = "option_list_unavailable"
	KindSubmitInFlight        Kind = "submit_in_flight"
)

// Fatal reports whether the kind aborts the current step
func (k Kind) Fatal() bool {
	return k == KindMetadataIncomplete
}

// Sentinels for errors.Is matching by kind.
var (
	ErrMetadataIncomplete    = &Error{Kind: KindMetadataIncomplete}
	ErrValidationFailed      = &Error{Kind: KindValidationFailed}
	ErrCalculationInvalid    = &Error{Kind: KindCalculationInvalid}
	ErrPersistenceFailed     = &Error{Kind: KindPersistenceFailed}
	ErrOptionListUnavailable = &Error{Kind: KindOptionListUnavailable}
	ErrSubmitInFlight        = &Error{Kind: KindSubmitInFlight, Msg: "a submission is already in progress"}
)

// Error is a classified engine error. Field is set for field-level errors.
type Error struct {
	Kind  Kind
	Msg   string
	Field *models.ValueKey
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != nil {
		msg = fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of kind with a formatted message
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of kind around err
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Field builds a field-level error bound to one parameter slot
func Field(kind Kind, key models.ValueKey, format string, args ...interface{}) *Error {
	k := key
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Field: &k}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// FieldOf returns the field key of the first field-level error in err's chain
func FieldOf(err error) (models.ValueKey, bool) {
	var e *Error
	if errors.As(err, &e) && e.Field != nil {
		return *e.Field, true
	}
	return models.ValueKey{}, false
}
