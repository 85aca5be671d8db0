package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		want   ErrorType
		status int
	}{
		{"unsupported format", NewUnsupportedFormatError("gif", nil), ErrorTypeUnsupportedFormat, http.StatusUnsupportedMediaType},
		{"too large", NewFileTooLargeError("big", nil), ErrorTypeFileTooLarge, http.StatusRequestEntityTooLarge},
		{"not found", NewFileNotFoundError("missing", nil), ErrorTypeFileNotFound, http.StatusNotFound},
		{"decode", NewDecodeError("bad bytes", nil), ErrorTypeDecode, http.StatusUnprocessableEntity},
		{"color space", NewUnsupportedColorSpaceError("2 channels", nil), ErrorTypeUnsupportedColorSpace, http.StatusUnprocessableEntity},
		{"resolution", NewInsufficientResolutionError("2x2", nil), ErrorTypeInsufficientResolution, http.StatusUnprocessableEntity},
		{"timeout", NewTimeoutError("slow", nil), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"configuration", NewConfigurationError("weights", nil), ErrorTypeConfiguration, http.StatusInternalServerError},
		{"validation", NewValidationError("payload", nil), ErrorTypeValidation, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.want {
				t.Errorf("Expected type %s, got %s", tt.want, tt.err.Type)
			}
			if tt.err.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, tt.err.StatusCode)
			}
		})
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := NewDecodeError("failed to decode image", fmt.Errorf("unexpected EOF"))
	want := "decode_error: failed to decode image (caused by: unexpected EOF)"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestIsTypeThroughWrapping(t *testing.T) {
	base := NewFileTooLargeError("too big", nil)
	wrapped := fmt.Errorf("batch item 3: %w", base)

	if !IsType(wrapped, ErrorTypeFileTooLarge) {
		t.Error("Expected wrapped error to keep its type")
	}
	if GetStatusCode(wrapped) != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", GetStatusCode(wrapped))
	}
}

func TestWrap(t *testing.T) {
	if Wrap(context.DeadlineExceeded).Type != ErrorTypeTimeout {
		t.Error("Expected deadline to map onto analysis_timeout")
	}
	if Wrap(nil) != nil {
		t.Error("Expected nil to stay nil")
	}

	original := NewValidationError("bad", nil)
	if Wrap(original) != original {
		t.Error("Expected AppError to pass through Wrap unchanged")
	}
	if Wrap(fmt.Errorf("boom")).Type != ErrorTypeInternal {
		t.Error("Expected plain errors to wrap as internal")
	}
}

func TestInfo(t *testing.T) {
	info := Info(NewUnsupportedFormatError("extension .gif is not supported", nil))
	if info.Kind != "unsupported_format" {
		t.Errorf("Expected kind unsupported_format, got %s", info.Kind)
	}
	if info.Message != "extension .gif is not supported" {
		t.Errorf("Unexpected message %q", info.Message)
	}

	info = Info(NewDecodeError("failed to decode image", fmt.Errorf("unexpected EOF")))
	if info.Details != "unexpected EOF" {
		t.Errorf("Expected cause in details, got %q", info.Details)
	}

	if Info(nil) != nil {
		t.Error("Expected nil info for nil error")
	}
}
