package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeExtraction(t *testing.T) {
	base := ProductNotFound(fmt.Errorf("no such product"))
	wrapped := fmt.Errorf("pipeline: %w", base)

	if Code(wrapped) != CodeProductNotFound {
		t.Fatalf("code through wrap = %q", Code(wrapped))
	}
	if Code(errors.New("plain")) != "" {
		t.Fatalf("untyped error should yield empty code")
	}
	if Code(nil) != "" {
		t.Fatalf("nil error should yield empty code")
	}
}

func TestFromLLMRemap(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "explicit 429", err: errors.New("upstream returned 429"), wantCode: CodeRateLimited},
		{name: "quota text", err: errors.New("Quota Exceeded for project"), wantCode: CodeRateLimited},
		{name: "overloaded", err: errors.New("the model is overloaded"), wantCode: CodeRateLimited},
		{name: "ordinary failure", err: errors.New("context length exceeded"), wantCode: CodeLLMError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromLLM(tc.err)
			if got.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", got.Code, tc.wantCode)
			}
			if tc.wantCode == CodeRateLimited && got.Status != http.StatusTooManyRequests {
				t.Fatalf("status = %d", got.Status)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("original error not wrapped")
			}
		})
	}

	if FromLLM(nil) != nil {
		t.Fatalf("nil in, nil out")
	}
}
