package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCodeThroughChain(t *testing.T) {
	t.Parallel()

	base := stdErrors.New("rpc down")
	err := fmt.Errorf("outer: %w", External("bridging token", base))

	if got := CodeOf(err); got != CodeExternalOperation {
		t.Fatalf("unexpected code %s", got)
	}
	if !stdErrors.Is(err, base) {
		t.Fatal("expected cause to be reachable")
	}
	if !stdErrors.Is(err, New(CodeExternalOperation, "")) {
		t.Fatal("expected code match through errors.Is")
	}
	if !RetryableError(err) {
		t.Fatal("external failures are retryable by default")
	}
}

func TestValidationCarriesFields(t *testing.T) {
	t.Parallel()

	err := Validation("invalid arguments",
		FieldError{Field: "amount", Message: "is required"},
		FieldError{Field: "to", Message: "does not match pattern"},
	)
	fields := err.Fields()
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	want := "[VALIDATION] invalid arguments (amount: is required; to: does not match pattern)"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}

	fields[0].Field = "mutated"
	if err.Fields()[0].Field != "amount" {
		t.Fatal("Fields must return a copy")
	}
}

func TestAttributesFallback(t *testing.T) {
	t.Parallel()

	attr := AttributesOf(Code("NOT_REGISTERED"))
	if attr != AttributesOf(CodeUnknown) {
		t.Fatalf("expected unknown fallback, got %+v", attr)
	}
	if SeverityOf(stdErrors.New("plain")) != SeverityCritical {
		t.Fatal("plain errors should map to unknown severity")
	}
	if New(CodeConfiguration, "", WithSeverity(SeverityInfo)).Severity() != SeverityInfo {
		t.Fatal("severity override ignored")
	}
}

func TestNilErrorIsSafe(t *testing.T) {
	t.Parallel()

	var e *Error
	if e.Error() != "" || e.Code() != CodeUnknown || e.Retryable() || e.Fields() != nil {
		t.Fatal("nil *Error should be inert")
	}
}
