package services

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindUserRejected     ErrorKind = "user_rejected"
	KindNetwork          ErrorKind = "network"
	KindServerRejected   ErrorKind = "server_rejected"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindWrongChain       ErrorKind = "wrong_chain"
	KindNotAuthenticated ErrorKind = "not_authenticated"
	KindInvalid          ErrorKind = "invalid"
)

var (
	ErrUserRejected     = errors.New("request rejected by user")
	ErrNetwork          = errors.New("network error")
	ErrServerRejected   = errors.New("rejected by server")
	ErrUnauthorized     = errors.New("session expired")
	ErrWrongChain       = errors.New("wallet is on the wrong chain")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalid          = errors.New("invalid request")
)

var kindSentinels = map[ErrorKind]error{
	KindUserRejected:     ErrUserRejected,
	KindNetwork:          ErrNetwork,
	KindServerRejected:   ErrServerRejected,
	KindUnauthorized:     ErrUnauthorized,
	KindWrongChain:       ErrWrongChain,
	KindNotAuthenticated: ErrNotAuthenticated,
	KindInvalid:          ErrInvalid,
}

// ActionError is the error every gateway operation fails with. Message is
// safe to show to the user; for server rejections it is the server's text.
type ActionError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Is lets errors.Is match an ActionError against the sentinel of its kind.
func (e *ActionError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newActionError(kind ErrorKind, op, message string, err error) *ActionError {
	return &ActionError{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf classifies any error. Unclassified errors count as network errors.
func KindOf(err error) ErrorKind {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindUserRejected
	}
	return KindNetwork
}

// wrapOp tags err with op, keeping an existing classification. A cancelled
// context means the user closed the prompt or aborted the request.
func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}

	var ae *ActionError
	if errors.As(err, &ae) {
		if ae.Op == op {
			return ae
		}
		return newActionError(ae.Kind, op, ae.Message, ae)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return newActionError(KindUserRejected, op, "request was cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newActionError(KindNetwork, op, "request timed out", err)
	default:
		return newActionError(KindNetwork, op, "request failed", err)
	}
}
