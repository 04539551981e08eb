package httpproto

import (
	"errors"
	"fmt"
)

// Kind classifies a request failure.
type Kind int

const (
	KindServerError Kind = iota
	KindBadRequest
	KindNotFound
	KindRedirect
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindRedirect:
		return "redirect"
	default:
		return "server_error"
	}
}

// HTTPError is an error carrying the response status it maps to.
type HTTPError struct {
	Kind    Kind
	Message string
	// Target is the Location of a redirect.
	Target string
	Err    error
}

func (e *HTTPError) Error() string {
	switch {
	case e.Kind == KindRedirect:
		return "redirection to " + e.Target
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "unspecified error"
	}
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Status returns the wire status code for the error kind.
func (e *HTTPError) Status() int {
	switch e.Kind {
	case KindBadRequest:
		return 400
	case KindNotFound:
		return 404
	case KindRedirect:
		return 307
	default:
		return 500
	}
}

func BadRequest(format string, args ...any) *HTTPError {
	return &HTTPError{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *HTTPError {
	return &HTTPError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Redirect(target string) *HTTPError {
	return &HTTPError{Kind: KindRedirect, Target: target}
}

func ServerError(err error) *HTTPError {
	return &HTTPError{Kind: KindServerError, Err: err}
}

// Wrap attaches kind and message to err.
func Wrap(kind Kind, err error, format string, args ...any) *HTTPError {
	return &HTTPError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// AsHTTPError finds the first *HTTPError in err's chain. Errors without one
// are reported as server errors.
func AsHTTPError(err error) *HTTPError {
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}
	return ServerError(err)
}

// StatusOf returns the status code err maps to.
func StatusOf(err error) int {
	return AsHTTPError(err).Status()
}
