package gemini

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Kind is the failure class a surface reacts to.
type Kind string

const (
	KindQuota  Kind = "quota"
	KindAuth   Kind = "auth"
	KindSafety Kind = "safety"
	KindSystem Kind = "system"
)

// Error is a classified generation failure. Message is safe to show to a user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the class of err, or "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// Classify maps any error from the model boundary to a classified *Error.
// Already classified errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	code, status := apiStatus(err)
	msg := strings.ToLower(err.Error())

	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED" ||
		containsAny(msg, "429", "quota", "rate limit", "resource_exhausted", "resource has been exhausted"):
		return &Error{Kind: KindQuota, Message: "the model is rate limited, try again shortly", Err: err}

	case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusNotFound ||
		status == "UNAUTHENTICATED" || status == "PERMISSION_DENIED" || status == "NOT_FOUND" ||
		containsAny(msg, "api key", "api_key", "authentication", "unauthenticated", "permission denied",
			"entity was not found", "not found"):
		return &Error{Kind: KindAuth, Message: "the API key was rejected, select a valid key", Err: err}

	case containsAny(msg, "safety", "blocked", "prohibited"):
		return &Error{Kind: KindSafety, Message: "the request was blocked by safety filters", Err: err}

	default:
		return &Error{Kind: KindSystem, Message: "image generation failed", Err: err}
	}
}

func apiStatus(err error) (int, string) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status
	}
	return 0, ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
