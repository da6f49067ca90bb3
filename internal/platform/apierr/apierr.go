package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Codes surfaced to callers. Handlers map these onto HTTP statuses; internal
// call sites match on Code rather than message text.
const (
	CodeRateLimited      = "RATE_LIMITED"
	CodeProductNotFound  = "PRODUCT_NOT_FOUND"
	CodeAnalysisFailed   = "ANALYSIS_FAILED"
	CodeLLMError         = "LLM_ERROR"
	CodeTemplateNotFound = "TEMPLATE_NOT_FOUND"
	CodeTemplateRequired = "TEMPLATE_REQUIRED"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func RateLimited(err error) *Error {
	return New(http.StatusTooManyRequests, CodeRateLimited, err)
}

func ProductNotFound(err error) *Error {
	return New(http.StatusNotFound, CodeProductNotFound, err)
}

func AnalysisFailed(err error) *Error {
	return New(http.StatusBadGateway, CodeAnalysisFailed, err)
}

func LLMError(err error) *Error {
	return New(http.StatusBadGateway, CodeLLMError, err)
}

func TemplateNotFound(err error) *Error {
	return New(http.StatusNotFound, CodeTemplateNotFound, err)
}

func TemplateRequired(err error) *Error {
	return New(http.StatusBadRequest, CodeTemplateRequired, err)
}

// Code extracts the taxonomy code from err, or "" when err is not typed.
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

var rateLimitSignatures = []string{
	"rate limit",
	"rate-limit",
	"ratelimit",
	"too many requests",
	"429",
	"quota exceeded",
	"resource exhausted",
	"overloaded",
}

// FromLLM wraps an LLM-layer failure. Failures whose text matches a
// rate-limit signature are remapped to RATE_LIMITED so callers see one
// consistent retry signal no matter which layer throttled.
func FromLLM(err error) *Error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return RateLimited(fmt.Errorf("generation service is busy, try again shortly: %w", err))
		}
	}
	return LLMError(err)
}
