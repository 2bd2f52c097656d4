package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestIsPermanentThroughWrapping(t *testing.T) {
	base := errors.New("bad payload")
	err := fmt.Errorf("handler: %w", Permanent(base))

	if !IsPermanent(err) {
		t.Fatalf("expected permanent")
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
}

func TestIsPermanentPlainError(t *testing.T) {
	if IsPermanent(errors.New("transient")) {
		t.Fatalf("expected not permanent")
	}
}

func TestDefaultFailureClassifier(t *testing.T) {
	ctx := context.Background()

	if got := defaultFailureClassifier(ctx, Envelope{}, errors.New("boom")); got != FailureRetry {
		t.Fatalf("expected retry, got %v", got)
	}
	if got := defaultFailureClassifier(ctx, Envelope{}, Permanent(errors.New("boom"))); got != FailureDead {
		t.Fatalf("expected dead, got %v", got)
	}
}

func TestTruncateError(t *testing.T) {
	if got := truncateError(nil); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}

	long := make([]rune, maxErrorLen+10)
	for i := range long {
		long[i] = 'x'
	}
	got := truncateError(errors.New(string(long)))
	if len([]rune(got)) != maxErrorLen {
		t.Fatalf("expected %d runes, got %d", maxErrorLen, len([]rune(got)))
	}
}
