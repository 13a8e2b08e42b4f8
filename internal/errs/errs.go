// Package errs defines the error taxonomy shared by the domain packages and the
// HTTP layer. Domain packages declare sentinel *Error values; handlers map the
// Kind of whatever they receive to a status code in one place.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindAuthorization   Kind = "authorization"
	KindBusinessRule    Kind = "business_rule"
	KindLimit           Kind = "limit"
	KindExternal        Kind = "external"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

// Error is a classified, user-presentable error. Code is stable and meant for
// clients; Message is shown to the user.
type Error struct {
	Kind    Kind              `json:"-"`
	Code    string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Code so copies made by WithMessage/WithDetails still satisfy
// errors.Is against the original sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// WithMessagef is WithMessage with formatting.
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of e carrying per-field details.
func (e *Error) WithDetails(details map[string]string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(code, msg string) *Error    { return New(KindValidation, code, msg) }
func Authorization(code, msg string) *Error { return New(KindAuthorization, code, msg) }
func BusinessRule(code, msg string) *Error  { return New(KindBusinessRule, code, msg) }
func NotFound(code, msg string) *Error      { return New(KindNotFound, code, msg) }
func External(code, msg string) *Error      { return New(KindExternal, code, msg) }

// Common errors used across packages.
var (
	ErrUnauthenticated = New(KindUnauthenticated, "unauthenticated", "authentication required")
	ErrNotAdmin        = Authorization("not_admin", "admin privileges required")
	ErrUserBanned      = Authorization("user_banned", "this account has been suspended")
	ErrInvalidInput    = Validation("invalid_input", "invalid request")
	ErrInternal        = New(KindInternal, "internal_error", "something went wrong, please try again")
)

// From extracts the classified error from err's chain.
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the Kind of err, KindInternal when err is unclassified.
func KindOf(err error) Kind {
	if e, ok := From(err); ok {
		return e.Kind
	}
	return KindInternal
}
