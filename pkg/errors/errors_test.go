package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", New(ErrorTypeNetwork, "connection reset"), true},
		{"timeout wrapped", fmt.Errorf("attempt: %w", New(ErrorTypeTimeout, "deadline")), true},
		{"server error", &Error{Type: ErrorTypeServerError, Code: 503}, true},
		{"permission", New(ErrorTypePermission, "denied"), false},
		{"invalid url", New(ErrorTypeInvalidURL, "bad"), false},
		{"untyped", fmt.Errorf("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, ErrorTypeRateLimit, ClassifyStatus(http.StatusTooManyRequests))
	assert.Equal(t, ErrorTypeServerError, ClassifyStatus(http.StatusBadGateway))
	assert.Equal(t, ErrorTypePermission, ClassifyStatus(http.StatusForbidden))
	assert.Equal(t, ErrorTypeNotFound, ClassifyStatus(http.StatusNotFound))
	assert.Equal(t, ErrorTypeInvalidURL, ClassifyStatus(http.StatusBadRequest))
	assert.Equal(t, ErrorTypeNetwork, ClassifyStatus(0))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(ErrorTypeStorage, cause, "failed to save")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorTypeStorage, TypeOf(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestUserMessageDistinguishesFailures(t *testing.T) {
	unsupported := UserMessage(New(ErrorTypePlatformNotSupported, "x"))
	feed := UserMessage(New(ErrorTypeFeedPage, "x"))
	retry := UserMessage(New(ErrorTypeNetwork, "x"))

	assert.NotEqual(t, unsupported, feed)
	assert.NotEqual(t, feed, retry)
	assert.Contains(t, retry, "retry")
}
