package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorMessageIsReasonCode(t *testing.T) {
	if ErrNotWaiting.Error() != "!waiting" {
		t.Fatalf("unexpected message %q", ErrNotWaiting.Error())
	}
	if ErrValue.Error() != "!msg.value" {
		t.Fatalf("unexpected message %q", ErrValue.Error())
	}
}

func TestKindOfWrapped(t *testing.T) {
	wrapped := fmt.Errorf("batch item 2: %w", ErrNotWhitelisted)
	kind, ok := KindOf(wrapped)
	if !ok || kind != KindAuthorization {
		t.Fatalf("expected authorization kind, got %v ok=%v", kind, ok)
	}
	if !stderrors.Is(wrapped, ErrNotWhitelisted) {
		t.Fatalf("expected errors.Is to match sentinel")
	}
	if _, ok := KindOf(stderrors.New("bank: insufficient balance")); ok {
		t.Fatalf("plain errors carry no kind")
	}
}
