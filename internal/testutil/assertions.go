package testutil

import (
	"net/http"
	"strings"
	"testing"

	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/header"
)

// Custom assertion helpers to reduce boilerplate in tests

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: got error %v, expected none", msg, err)
	}
}

// AssertErrorContains fails the test if err is nil or doesn't contain the expected substring
func AssertErrorContains(t *testing.T, err error, expected string, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected error containing %q, got none", msg, expected)
	}
	if !strings.Contains(err.Error(), expected) {
		t.Fatalf("%s: expected error containing %q, got %q", msg, expected, err.Error())
	}
}

// AssertErrorType fails the test if err is nil or not of the expected type
func AssertErrorType(t *testing.T, err error, expected errors.ErrorType, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected %s error, got none", msg, expected)
	}
	if got := errors.GetType(err); got != expected {
		t.Fatalf("%s: got error type %s, expected %s (%v)", msg, got, expected, err)
	}
}

// AssertStringEqual fails the test if got != expected (string-specific for cleaner output)
func AssertStringEqual(t *testing.T, got, expected string, msg string) {
	t.Helper()
	if got != expected {
		t.Fatalf("%s: got %q, expected %q", msg, got, expected)
	}
}

// AssertStringContains fails the test if str doesn't contain substring
func AssertStringContains(t *testing.T, str, substring string, msg string) {
	t.Helper()
	if !strings.Contains(str, substring) {
		t.Fatalf("%s: expected %q to contain %q", msg, str, substring)
	}
}

// AssertHeaderSet fails the test if the request doesn't have the expected header value
func AssertHeaderSet(t *testing.T, req *http.Request, name, expectedValue string, msg string) {
	t.Helper()
	actualValue := req.Header.Get(name)
	if actualValue != expectedValue {
		t.Fatalf("%s: header %q: got %q, expected %q", msg, name, actualValue, expectedValue)
	}
}

// AssertHeaderNotSet fails the test if the request has the specified header
func AssertHeaderNotSet(t *testing.T, req *http.Request, name string, msg string) {
	t.Helper()
	if req.Header.Get(name) != "" {
		t.Fatalf("%s: expected header %q to not be set, but got %q", msg, name, req.Header.Get(name))
	}
}

// AssertMethodEqual fails the test if the request method doesn't match expected
func AssertMethodEqual(t *testing.T, req *http.Request, expectedMethod string, msg string) {
	t.Helper()
	if req.Method != expectedMethod {
		t.Fatalf("%s: got method %q, expected %q", msg, req.Method, expectedMethod)
	}
}

// AssertMockCalled fails the test if the mock wasn't called the expected number of times
func AssertMockCalled(t *testing.T, actualCalls, expectedCalls int, mockName string) {
	t.Helper()
	if actualCalls != expectedCalls {
		t.Fatalf("Mock %s: expected %d calls, got %d", mockName, expectedCalls, actualCalls)
	}
}

// Helper functions for common test patterns

// SkipIfShort skips the test if running with -short flag (for integration tests)
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("Skipping in short mode: %s", reason)
	}
}

// AssertEntry fails the test if entries has no field/value pair matching
// field case-insensitively with the given value
func AssertEntry(t *testing.T, entries []header.Entry, field, value string, msg string) {
	t.Helper()
	for _, e := range entries {
		if strings.EqualFold(e.Field, field) && e.Value == value {
			return
		}
	}
	t.Fatalf("%s: expected entry %s: %s in %v", msg, field, value, entries)
}

// AssertNoEntry fails the test if any entry has the given field
func AssertNoEntry(t *testing.T, entries []header.Entry, field string, msg string) {
	t.Helper()
	for _, e := range entries {
		if strings.EqualFold(e.Field, field) {
			t.Fatalf("%s: unexpected entry %s: %s", msg, e.Field, e.Value)
		}
	}
}
