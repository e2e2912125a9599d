package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can render it without string matching.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindSecurity     Kind = "security"
	KindDispatch     Kind = "dispatch"
	KindCacheRefresh Kind = "cache_refresh"
	KindForbidden    Kind = "forbidden"
)

// Reasons reported by the command validator.
const (
	ReasonTooFewArguments        = "too few arguments"
	ReasonUnsupportedCombination = "unsupported combination"
	ReasonInvalidName            = "invalid name"
	ReasonInvalidNamespace       = "invalid namespace"
)

type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WithDetail(kind Kind, message, detail string) *Error {
	return &Error{Kind: kind, Message: message, Detail: detail}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(reason, detail string) *Error {
	return WithDetail(KindValidation, reason, detail)
}

// Security reports a rejected exec command; pattern is the rule that matched.
func Security(reason, pattern string) *Error {
	return WithDetail(KindSecurity, reason, pattern)
}

func Dispatch(message string) *Error {
	return New(KindDispatch, message)
}

func Dispatchf(format string, args ...any) *Error {
	return New(KindDispatch, fmt.Sprintf(format, args...))
}

func CacheRefresh(namespace string, err error) *Error {
	return Wrap(KindCacheRefresh, "refresh "+namespace, err)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func IsKind(err error, kind Kind) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Kind == kind
}

// UserMessage renders err as the text shown to the person who issued the command.
// Unclassified errors are reported generically so internal details stay in the logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	apiErr, ok := As(err)
	if !ok {
		return "Command failed due to an internal error"
	}
	switch apiErr.Kind {
	case KindValidation:
		if apiErr.Detail != "" {
			return fmt.Sprintf("Invalid command: %s (%s)", apiErr.Message, apiErr.Detail)
		}
		return "Invalid command: " + apiErr.Message
	case KindSecurity:
		return "Command blocked: " + apiErr.Message
	case KindForbidden:
		return apiErr.Message
	default:
		if apiErr.Err != nil {
			return fmt.Sprintf("%s: %v", apiErr.Message, apiErr.Err)
		}
		return apiErr.Message
	}
}
