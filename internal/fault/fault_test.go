package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfExtractsKindThroughWrapping(t *testing.T) {
	inner := New(KindNotFound, "entries.update", "entry not found")
	wrapped := fmt.Errorf("handler: %w", inner)

	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("expected not_found kind, got %q", KindOf(wrapped))
	}
	if !IsKind(wrapped, KindNotFound) {
		t.Fatalf("IsKind should match through wrapping")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("disk full")) != "" {
		t.Fatalf("plain errors must not carry a kind")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("unique constraint")
	fe := Wrap(KindConflict, "invites.accept", "invite already used", cause)

	if !errors.Is(fe, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if fe.Op() != "invites.accept" {
		t.Fatalf("unexpected op %q", fe.Op())
	}
	if fe.Message() != "invite already used" {
		t.Fatalf("unexpected message %q", fe.Message())
	}
}
