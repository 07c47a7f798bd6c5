package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

// TestExitCode maps every error family to its exit code.
func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"unknown browser", NewUnknownBrowser("netscape"), 1},
		{"missing browser", NewMissingBrowser(), 1},
		{"wrapped configuration", fmt.Errorf("loading: %w", NewInvalidRule("A.b", "no tags")), 1},
		{"audit", NewAuditUnavailable("sqlite::memory:", nil), 3},
		{"migration", NewMigrationFailed("000001_create_decision_log", nil), 3},
		{"foreign", stderrors.New("boom"), 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.want {
				t.Fatalf("ExitCode = %d, want %d", got, tc.want)
			}
		})
	}
}

// TestAdmissionError_Format proves that errors carry reason, suggestion and cause.
func TestAdmissionError_Format(t *testing.T) {
	cause := stderrors.New("file not found")
	err := NewInvalidManifest("tests.yaml", "cannot read file", cause)

	msg := err.Error()
	for _, want := range []string{"tests.yaml", "Reason: cannot read file", "Suggestion:", "Caused by: file not found"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
}

// TestNewAuditUnavailable_RedactsCredentials proves that passwords never reach
// error messages.
func TestNewAuditUnavailable_RedactsCredentials(t *testing.T) {
	err := NewAuditUnavailable("postgres://admit:s3cret@db:5432/audit", nil)

	if strings.Contains(err.Error(), "s3cret") {
		t.Fatalf("credentials leaked: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "postgres://***@db:5432/audit") {
		t.Fatalf("expected redacted DSN, got %s", err.Error())
	}
}

// TestNewUnknownDriverTag_ListsCatalog proves the suggestion names valid tags.
func TestNewUnknownDriverTag_ListsCatalog(t *testing.T) {
	err := NewUnknownDriverTag("chrome", []string{"ALL", "CHROME"})

	if err.Field != "drivers" || err.Value != "chrome" {
		t.Fatalf("unexpected field/value: %s=%s", err.Field, err.Value)
	}
	if !strings.Contains(err.Suggestion, "ALL, CHROME") {
		t.Fatalf("expected catalog in suggestion, got %q", err.Suggestion)
	}
}
