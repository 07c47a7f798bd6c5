// Package errors provides explicit, human-readable error types for admission.
// All errors carry a Reason and a Suggestion so that a misconfigured run can be
// fixed without reading source.
//
// Configuration errors are fatal: they are raised while the policy engine is
// being constructed and abort the run before any test executes.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// AdmissionError is the base error type for all admission errors.
type AdmissionError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of error for exit code mapping.
type ErrorCode int

const (
	CodeConfiguration ErrorCode = 1
	CodeStorage       ErrorCode = 3
	CodeInternal      ErrorCode = 4
)

func (e *AdmissionError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *AdmissionError) Unwrap() error {
	return e.Cause
}

// ErrConfiguration is returned when the run configuration or the declarative
// test metadata cannot be turned into a policy. It is never retried.
type ErrConfiguration struct {
	AdmissionError
	Field string
	Value string
}

// NewUnknownBrowser creates an error for a browser selector outside the catalog.
func NewUnknownBrowser(browser string) *ErrConfiguration {
	return &ErrConfiguration{
		AdmissionError: AdmissionError{
			Code:       CodeConfiguration,
			Message:    fmt.Sprintf("cannot determine which ignore rules to apply for browser %q", browser),
			Reason:     "browser is not a known driver target",
			Suggestion: "set browser.name to one of chrome, edge, firefox, htmlunit, ie, none, opera, operablink, safari",
		},
		Field: "browser.name",
		Value: browser,
	}
}

// NewUnknownDriverTag creates an error for a rule that references a tag outside the catalog.
func NewUnknownDriverTag(tag string, valid []string) *ErrConfiguration {
	return &ErrConfiguration{
		AdmissionError: AdmissionError{
			Code:       CodeConfiguration,
			Message:    fmt.Sprintf("unknown driver tag: %q", tag),
			Reason:     "driver tags are matched case-sensitively against a closed catalog",
			Suggestion: fmt.Sprintf("use one of: %s", strings.Join(valid, ", ")),
		},
		Field: "drivers",
		Value: tag,
	}
}

// NewInvalidRule creates an error for a malformed ignore rule.
func NewInvalidRule(target, reason string) *ErrConfiguration {
	return &ErrConfiguration{
		AdmissionError: AdmissionError{
			Code:       CodeConfiguration,
			Message:    fmt.Sprintf("invalid ignore rule on %s", target),
			Reason:     reason,
			Suggestion: "every ignore rule must list at least one driver tag, e.g. drivers: [ALL]",
		},
		Field: "ignore",
		Value: target,
	}
}

// NewInvalidManifest creates an error for a test manifest that cannot be used.
func NewInvalidManifest(path, reason string, cause error) *ErrConfiguration {
	return &ErrConfiguration{
		AdmissionError: AdmissionError{
			Code:       CodeConfiguration,
			Message:    fmt.Sprintf("invalid test manifest: %s", path),
			Reason:     reason,
			Suggestion: "check the manifest against the format shown by 'admit plan --help'",
			Cause:      cause,
		},
		Field: "manifest",
		Value: path,
	}
}

// NewInvalidConfig creates an error for configuration that cannot be loaded.
func NewInvalidConfig(reason string, cause error) *ErrConfiguration {
	return &ErrConfiguration{
		AdmissionError: AdmissionError{
			Code:       CodeConfiguration,
			Message:    "invalid configuration",
			Reason:     reason,
			Suggestion: "check admit.yaml and ADMIT_* environment variables",
			Cause:      cause,
		},
	}
}

// ErrMissingInput is returned when a mandatory input is absent. Mandatory
// inputs are never defaulted.
type ErrMissingInput struct {
	AdmissionError
	Field string
}

// NewMissingBrowser creates an error for a run with no browser selected.
func NewMissingBrowser() *ErrMissingInput {
	return &ErrMissingInput{
		AdmissionError: AdmissionError{
			Code:       CodeConfiguration,
			Message:    "browser to use must be set",
			Reason:     "no browser selector was provided",
			Suggestion: "set browser.name in admit.yaml, ADMIT_BROWSER_NAME, or pass --browser",
		},
		Field: "browser.name",
	}
}

// ErrAuditFailed is returned when the decision audit store is unusable.
type ErrAuditFailed struct {
	AdmissionError
}

// NewAuditUnavailable creates an error for an audit database that cannot be reached.
func NewAuditUnavailable(dsn string, cause error) *ErrAuditFailed {
	return &ErrAuditFailed{
		AdmissionError: AdmissionError{
			Code:       CodeStorage,
			Message:    "decision audit store unavailable",
			Reason:     fmt.Sprintf("cannot open %s", redactDSN(dsn)),
			Suggestion: "use a postgres:// or sqlite: DSN, or omit --audit-dsn",
			Cause:      cause,
		},
	}
}

// NewMigrationFailed creates an error for a schema migration that did not apply.
func NewMigrationFailed(name string, cause error) *ErrAuditFailed {
	return &ErrAuditFailed{
		AdmissionError: AdmissionError{
			Code:       CodeStorage,
			Message:    fmt.Sprintf("migration failed: %s", name),
			Reason:     "the audit schema could not be brought up to date",
			Suggestion: "check database permissions and the schema_migrations table",
			Cause:      cause,
		},
	}
}

// ExitCode returns the process exit code for err. Nil maps to 0 and errors
// outside this package to CodeInternal.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cfgErr *ErrConfiguration
	if stderrors.As(err, &cfgErr) {
		return int(cfgErr.Code)
	}
	var missing *ErrMissingInput
	if stderrors.As(err, &missing) {
		return int(missing.Code)
	}
	var audit *ErrAuditFailed
	if stderrors.As(err, &audit) {
		return int(audit.Code)
	}
	return int(CodeInternal)
}

// redactDSN drops credentials from a connection string before it reaches logs.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return dsn
	}
	return scheme + "://***@" + rest[at+1:]
}
