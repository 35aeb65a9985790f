package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeStoreUnavailable, cause, "upsert stock point")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeStoreUnavailable {
		t.Fatalf("expected store unavailable code, got %s", err.Code())
	}
}

func TestAsUnwrapsThroughFmt(t *testing.T) {
	inner := New(CodeNotFound, "stock item missing")
	outer := fmt.Errorf("fulfillment: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error through wrap chain")
	}
	if typed.Code() != CodeNotFound {
		t.Fatalf("expected not found, got %s", typed.Code())
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NO_SUCH_CODE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal metadata fallback, got %d", meta.HTTPStatus)
	}
}

func TestRetryableCodes(t *testing.T) {
	for _, code := range []Code{CodeStoreUnavailable, CodeCollectionNotReady, CodeFilterRejected, CodeDependency} {
		if !MetadataFor(code).Retryable {
			t.Fatalf("expected %s to be retryable", code)
		}
	}
	if MetadataFor(CodeValidation).Retryable {
		t.Fatal("validation errors must not be retryable")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeCollectionNotReady, "items collection missing"))
	if !IsCode(err, CodeCollectionNotReady) {
		t.Fatal("expected IsCode to match through the chain")
	}
	if IsCode(err, CodeConflict) {
		t.Fatal("unexpected code match")
	}
}
