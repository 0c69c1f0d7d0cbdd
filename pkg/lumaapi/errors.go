package lumaapi

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies client failures.
type Kind int

const (
	KindUpstream Kind = iota + 1
	KindUnauthorized
	KindNotFound
	KindRateLimited
	KindNetwork
	KindInvalidResponse
	KindInvalidArguments
)

func (k Kind) String() string {
	switch k {
	case KindUpstream:
		return "upstream"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	case KindInvalidResponse:
		return "invalid_response"
	case KindInvalidArguments:
		return "invalid_arguments"
	default:
		return "unknown"
	}
}

// Error is returned by every Client operation.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Body   string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnauthorized:
		return "Lu.ma API error: Unauthorized: Invalid API key or insufficient permissions"
	case KindNotFound:
		return "Lu.ma API error: Not found: Event or resource does not exist"
	case KindRateLimited:
		return "Lu.ma API error: Rate limited: Too many requests. Wait 1 minute before retrying"
	case KindUpstream:
		return fmt.Sprintf("Lu.ma API error: API error (%d): %s", e.Status, e.Body)
	case KindNetwork:
		return fmt.Sprintf("Network error: %v", e.Err)
	case KindInvalidResponse:
		return "Invalid API response: " + e.Msg
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func statusError(op string, status int, body []byte) *Error {
	e := &Error{Op: op, Status: status, Body: string(body)}
	switch status {
	case 401:
		e.Kind = KindUnauthorized
	case 404:
		e.Kind = KindNotFound
	case 429:
		e.Kind = KindRateLimited
	default:
		e.Kind = KindUpstream
	}
	return e
}

func invalidResponse(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidResponse, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func invalidArguments(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArguments, Op: op, Msg: fmt.Sprintf(format, args...)}
}
