// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// WriteFixture writes data to name under dir, creating intermediate
// directories, and returns the full path.
func WriteFixture(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating fixture dir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

// FrameWithTime fabricates a telemetry frame of the given size with the
// wall clock time encoded at timeOffset. All other bytes are zero.
func FrameWithTime(size, timeOffset int, at time.Time) []byte {
	frame := make([]byte, size)
	frame[timeOffset+0] = byte(at.Year() - 2000)
	frame[timeOffset+1] = byte(at.Month())
	frame[timeOffset+2] = byte(at.Day())
	frame[timeOffset+3] = byte(at.Hour())
	frame[timeOffset+4] = byte(at.Minute())
	frame[timeOffset+5] = byte(at.Second())
	return frame
}
