package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"bad request", genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}, true},
		{"invalid key", genai.APIError{Code: http.StatusForbidden, Status: "PERMISSION_DENIED"}, true},
		{"not found", genai.APIError{Code: http.StatusNotFound, Status: "NOT_FOUND"}, true},
		{"rate limited", genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}, false},
		{"request timeout", genai.APIError{Code: http.StatusRequestTimeout}, false},
		{"server error", genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}, false},
		{"network", errors.New("connection reset by peer"), false},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("send message fail: %w", tt.err)
			got := classifyGeminiError(wrapped)
			assert.Equal(t, tt.permanent, IsPermanent(got))
			assert.ErrorIs(t, got, wrapped)
		})
	}
}
