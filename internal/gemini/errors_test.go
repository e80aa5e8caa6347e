package gemini

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, KindQuota},
		{&genai.APIError{Code: 429}, KindQuota},
		{errors.New("rate limit exceeded"), KindQuota},
		{genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, KindAuth},
		{genai.APIError{Code: 404, Message: "models/foo is not found"}, KindAuth},
		{errors.New("authentication failed"), KindAuth},
		{errors.New("response blocked by safety settings"), KindSafety},
		{errors.New("connection reset by peer"), KindSystem},
		{fmt.Errorf("wrapped: %w", &Error{Kind: KindSafety, Message: "x"}), KindSafety},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}

	assert.Nil(t, Classify(nil))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, p.Delay(1))
	assert.Equal(t, 2*DefaultBaseDelay, p.Delay(2))
	assert.Equal(t, 4*DefaultBaseDelay, p.Delay(3))
}
