package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestActionErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("outer: %w", newActionError(KindServerRejected, "purchase", "item limit reached", nil))

	if !errors.Is(err, ErrServerRejected) {
		t.Error("Expected errors.Is to match ErrServerRejected")
	}
	if errors.Is(err, ErrNetwork) {
		t.Error("Server rejection must not match ErrNetwork")
	}
	if KindOf(err) != KindServerRejected {
		t.Errorf("Expected server_rejected kind, got %s", KindOf(err))
	}
}

func TestWrapOpClassifiesContextErrors(t *testing.T) {
	if KindOf(wrapOp("login", context.Canceled)) != KindUserRejected {
		t.Error("Cancelled context should read as user rejection")
	}
	if KindOf(wrapOp("login", context.DeadlineExceeded)) != KindNetwork {
		t.Error("Deadline should read as network error")
	}
	if KindOf(wrapOp("login", errors.New("boom"))) != KindNetwork {
		t.Error("Unknown errors should read as network error")
	}
}

func TestWrapOpKeepsKind(t *testing.T) {
	inner := newActionError(KindUnauthorized, "get_user", "session expired", nil)
	err := wrapOp("checkin", inner)

	var ae *ActionError
	if !errors.As(err, &ae) {
		t.Fatal("Expected ActionError")
	}
	if ae.Op != "checkin" || ae.Kind != KindUnauthorized {
		t.Errorf("Unexpected wrap: op=%s kind=%s", ae.Op, ae.Kind)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Error("Wrapped error should still match ErrUnauthorized")
	}
}
