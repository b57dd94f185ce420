package downloader

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDownloadError_Error(t *testing.T) {
	plain := NewDownloadError(ErrorInvalidURL, "not a track link")
	if !strings.Contains(plain.Error(), "invalid_url") {
		t.Errorf("Expected error type in message, got: %s", plain.Error())
	}

	cause := errors.New("dial tcp: connection refused")
	wrapped := NewDownloadErrorWithCause(ErrorNetworkFailure, "resolve failed", cause)
	if !strings.Contains(wrapped.Error(), "caused by") {
		t.Errorf("Expected cause in message, got: %s", wrapped.Error())
	}
}

func TestDownloadError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewDownloadErrorWithCause(ErrorNetworkFailure, "wrapper", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}

	if NewDownloadError(ErrorUnknown, "no cause").Unwrap() != nil {
		t.Error("Expected nil unwrap without a cause")
	}
}

func TestDownloadError_WithContext(t *testing.T) {
	err := NewDownloadError(ErrorInvalidURL, "bad link").
		WithContext("url", "https://example.com").
		WithContext("attempt", 2)

	if err.Context["url"] != "https://example.com" {
		t.Errorf("Expected url context, got: %v", err.Context["url"])
	}
	if err.Context["attempt"] != 2 {
		t.Errorf("Expected attempt context, got: %v", err.Context["attempt"])
	}
}

func TestDownloadError_IsType(t *testing.T) {
	err := NewDownloadError(ErrorTimeout, "too slow")

	if !err.IsType(ErrorTimeout) {
		t.Error("Expected IsType to match timeout")
	}
	if err.IsType(ErrorInvalidURL) {
		t.Error("Expected IsType to reject other types")
	}
}

func TestIsDownloadError(t *testing.T) {
	base := NewDownloadError(ErrorFileTooLarge, "94 MB")
	wrapped := fmt.Errorf("processing request: %w", base)

	if !IsDownloadError(wrapped) {
		t.Error("Expected wrapped DownloadError to be recognized")
	}
	if !IsDownloadError(wrapped, ErrorFileTooLarge) {
		t.Error("Expected type match through wrapping")
	}
	if IsDownloadError(wrapped, ErrorTimeout) {
		t.Error("Expected type mismatch to return false")
	}
	if IsDownloadError(wrapped, ErrorTimeout, ErrorFileTooLarge) {
		// Any listed type matches
	} else {
		t.Error("Expected multi-type check to match")
	}
	if IsDownloadError(errors.New("plain")) {
		t.Error("Expected plain error to not be a DownloadError")
	}
}

func TestErrorType_StringValues(t *testing.T) {
	testCases := []struct {
		errorType ErrorType
		expected  string
	}{
		{ErrorInvalidURL, "invalid_url"},
		{ErrorNetworkFailure, "network_failure"},
		{ErrorExtractionFailure, "extraction_failure"},
		{ErrorFileSystemError, "filesystem_error"},
		{ErrorFileTooLarge, "file_too_large"},
		{ErrorTimeout, "timeout"},
		{ErrorCancelled, "cancelled"},
		{ErrorUnknown, "unknown"},
		{ErrorType(42), "unknown"},
	}

	for _, tc := range testCases {
		if got := tc.errorType.String(); got != tc.expected {
			t.Errorf("Expected %s, got: %s", tc.expected, got)
		}
	}
}
