package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Ptr returns a pointer to the given value
func Ptr[T any](v T) *T {
	return &v
}

// Dec parses a decimal literal, failing the test on bad input
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err, "invalid decimal literal %q", s)
	return d
}

// Date builds a UTC date at midnight
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DatePtr builds a pointer to a UTC date at midnight
func DatePtr(year int, month time.Month, day int) *time.Time {
	d := Date(year, month, day)
	return &d
}

// DaysFromNow returns a UTC date the given number of days from today.
// Negative values yield past dates.
func DaysFromNow(days int) time.Time {
	now := time.Now().UTC()
	return Date(now.Year(), now.Month(), now.Day()).AddDate(0, 0, days)
}

// DaysFromNowPtr returns a pointer to a date the given number of days from today
func DaysFromNowPtr(days int) *time.Time {
	d := DaysFromNow(days)
	return &d
}

// MakeRequest builds an HTTP test request with the identity headers the
// gateway forwards, and records the handler's response.
func MakeRequest(t *testing.T, handler http.Handler, method, path string, body interface{}, orgID string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if orgID != "" {
		req.Header.Set("X-Org-ID", orgID)
		req.Header.Set("X-User-ID", "11111111-1111-1111-1111-111111111111")
		req.Header.Set("X-User-Name", "Test Operator")
		req.Header.Set("X-User-Email", "operator@test.local")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// DecodeResponse unmarshals the recorded response body into v
func DecodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "failed to decode response body: %s", rec.Body.String())
}

// RequireStatus asserts the recorded response status code
func RequireStatus(t *testing.T, rec *httptest.ResponseRecorder, expected int) {
	t.Helper()
	require.Equal(t, expected, rec.Code, "unexpected status, body: %s", rec.Body.String())
}
