package llm

import (
	"errors"
	"testing"
)

func TestErrorFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{400, false},
		{401, false},
		{403, false},
		{404, false},
		{408, true},
		{413, false},
		{422, false},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
		{418, true}, // unknown defaults to retryable
	}

	for _, tt := range tests {
		err := ErrorFromStatusCode(tt.status, "test error", "anthropic", "", nil, nil)
		if got := IsRetryable(err); got != tt.retryable {
			t.Errorf("status %d: IsRetryable = %v, want %v", tt.status, got, tt.retryable)
		}
	}
}

func TestErrorFromStatusCodeTypes(t *testing.T) {
	if _, ok := ErrorFromStatusCode(400, "m", "p", "", nil, nil).(*InvalidRequestError); !ok {
		t.Error("expected InvalidRequestError for 400")
	}
	if _, ok := ErrorFromStatusCode(401, "m", "p", "", nil, nil).(*AuthenticationError); !ok {
		t.Error("expected AuthenticationError for 401")
	}
	if _, ok := ErrorFromStatusCode(408, "m", "p", "", nil, nil).(*RequestTimeoutError); !ok {
		t.Error("expected RequestTimeoutError for 408")
	}
	if _, ok := ErrorFromStatusCode(413, "m", "p", "", nil, nil).(*ContextLengthError); !ok {
		t.Error("expected ContextLengthError for 413")
	}
	if _, ok := ErrorFromStatusCode(429, "m", "p", "", nil, nil).(*RateLimitError); !ok {
		t.Error("expected RateLimitError for 429")
	}
	if _, ok := ErrorFromStatusCode(503, "m", "p", "", nil, nil).(*ServerError); !ok {
		t.Error("expected ServerError for 503")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"auth error", &AuthenticationError{}, false},
		{"access denied", &AccessDeniedError{}, false},
		{"not found", &NotFoundError{}, false},
		{"invalid request", &InvalidRequestError{}, false},
		{"context length", &ContextLengthError{}, false},
		{"config error", &ConfigurationError{}, false},
		{"abort", &AbortError{}, false},
		{"rate limit", &RateLimitError{ProviderError: ProviderError{Retryable: true}}, true},
		{"server error", &ServerError{ProviderError: ProviderError{Retryable: true}}, true},
		{"network error", &NetworkError{}, true},
		{"timeout error", &RequestTimeoutError{}, true},
		{"unknown error", errors.New("unknown"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsRetryable(tt.err)
			if got != tt.retryable {
				t.Errorf("IsRetryable(%T) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &ClientError{Message: "wrapper", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected ClientError to unwrap to its cause")
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{
		ClientError: ClientError{Message: "overloaded"},
		Provider:    "anthropic",
		StatusCode:  529,
		Retryable:   true,
	}
	want := "[anthropic] overloaded (status=529, retryable=true)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
