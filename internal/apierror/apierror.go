// Package apierror maps gateway failures onto the wire error envelope
// {"error": {"code", "message", "status"}}.
package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind classifies a failure. Every error that reaches the router is reduced
// to exactly one Kind before it is rendered.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindPayloadTooLarge
	KindInvalidArgument
	KindResourceExhausted
	KindNotFound
	KindMethodNotAllowed
)

type wireStatus struct {
	code   int
	status string
}

var statusTable = map[Kind]wireStatus{
	KindInternal:          {http.StatusInternalServerError, "INTERNAL"},
	KindUnauthenticated:   {http.StatusUnauthorized, "UNAUTHENTICATED"},
	KindPayloadTooLarge:   {http.StatusRequestEntityTooLarge, "FAILED_PRECONDITION"},
	KindInvalidArgument:   {http.StatusBadRequest, "INVALID_ARGUMENT"},
	KindResourceExhausted: {http.StatusTooManyRequests, "RESOURCE_EXHAUSTED"},
	KindNotFound:          {http.StatusNotFound, "NOT_FOUND"},
	KindMethodNotAllowed:  {http.StatusMethodNotAllowed, "UNIMPLEMENTED"},
}

func (k Kind) String() string {
	return k.wire().status
}

// HTTPStatus returns the HTTP status code the kind is rendered with.
func (k Kind) HTTPStatus() int {
	return k.wire().code
}

func (k Kind) wire() wireStatus {
	if ws, ok := statusTable[k]; ok {
		return ws
	}
	return statusTable[KindInternal]
}

// Error is a classified gateway failure. Message is safe to show to callers;
// Cause is kept for logs only and never rendered.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Unauthenticated(message string, cause error) *Error {
	return Wrap(KindUnauthenticated, message, cause)
}

func PayloadTooLarge(message string, cause error) *Error {
	return Wrap(KindPayloadTooLarge, message, cause)
}

func InvalidArgument(message string, cause error) *Error {
	return Wrap(KindInvalidArgument, message, cause)
}

func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether repeating the identical request may succeed.
// Only processing failures qualify; everything else needs a changed request.
func (e *Error) Retryable() bool {
	return e.Kind == KindInternal
}

// From classifies err. Unclassified errors become INTERNAL with a generic
// message so that no internal detail leaks into the response body.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal error", err)
}

// Envelope is the JSON body of every failure response.
type Envelope struct {
	Error Body `json:"error"`
}

type Body struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Encode returns the HTTP status and envelope for err.
func Encode(err error) (int, Envelope) {
	apiErr := From(err)
	if apiErr == nil {
		apiErr = Internal("internal error", nil)
	}
	ws := apiErr.Kind.wire()
	return ws.code, Envelope{Error: Body{
		Code:    ws.code,
		Message: apiErr.Message,
		Status:  ws.status,
	}}
}

// Write renders err as an error envelope.
func Write(w http.ResponseWriter, err error) {
	code, env := Encode(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(env)
}
