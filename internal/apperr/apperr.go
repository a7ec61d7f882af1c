// Package apperr classifies failures by where they happened so callers can
// decide how to surface them.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuth
	KindQuery
	KindWrite
	KindUpload
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindQuery:
		return "query"
	case KindWrite:
		return "write"
	case KindUpload:
		return "upload"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is matching on kind only.
var (
	ErrAuth       = &Error{Kind: KindAuth}
	ErrQuery      = &Error{Kind: KindQuery}
	ErrWrite      = &Error{Kind: KindWrite}
	ErrUpload     = &Error{Kind: KindUpload}
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
)

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Err == nil {
		return e.Kind == t.Kind
	}
	return e == t
}

func newError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Auth(op string, err error) error       { return newError(KindAuth, op, err) }
func Query(op string, err error) error      { return newError(KindQuery, op, err) }
func Write(op string, err error) error      { return newError(KindWrite, op, err) }
func Upload(op string, err error) error     { return newError(KindUpload, op, err) }
func NotFound(op string, err error) error   { return newError(KindNotFound, op, err) }
func Validation(op string, err error) error { return newError(KindValidation, op, err) }

// Invalid builds a validation error from a message.
func Invalid(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Err: errors.New(msg)}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
