package embedding

import (
	"context"
	"errors"
	"net"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"pdf-assistant/internal/models"
)

var (
	retryAfterRe = regexp.MustCompile(`(?i)(?:try again in|retry after|retry-after:?)\s*((?:[0-9]+(?:\.[0-9]+)?(?:h|ms|m|s))+|[0-9]+(?:\.[0-9]+)?)\s*(ms|s|sec|seconds?)?`)
	rateLimitRe  = regexp.MustCompile(`(?i)\b(?:status(?:\s*code)?|http)[:\s]*429\b|\b429 too many requests\b|rate limit|too many requests`)
	timeoutRe    = regexp.MustCompile(`(?i)i/o timeout|client\.timeout exceeded|tls handshake timeout|timeout awaiting|deadline exceeded`)
)

// Classify maps a provider error onto the retry taxonomy: transient timeouts,
// rate limits and permanent failures. Context cancellation is returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var (
		transient *models.TransientNetworkError
		limited   *models.RateLimitError
		permanent *models.PermanentAPIError
	)
	if errors.As(err, &transient) || errors.As(err, &limited) || errors.As(err, &permanent) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if status := statusCode(err); status != 0 {
		return classifyStatus(status, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &models.TransientNetworkError{Err: err}
	}

	msg := err.Error()
	switch {
	case rateLimitRe.MatchString(msg):
		return &models.RateLimitError{RetryAfter: ParseRetryAfter(msg), Err: err}
	case timeoutRe.MatchString(msg):
		return &models.TransientNetworkError{Err: err}
	}
	return &models.PermanentAPIError{Err: err}
}

// statusCode finds the HTTP status of a provider error. go-openai exposes
// typed errors; the langchaingo ollama client returns an internal StatusError
// value whose StatusCode field is read by reflection.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if status := statusField(e); status != 0 {
			return status
		}
	}
	return 0
}

func statusField(err error) int {
	v := reflect.ValueOf(err)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return 0
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return 0
	}
	f := v.FieldByName("StatusCode")
	if !f.IsValid() || !f.CanInt() {
		return 0
	}
	return int(f.Int())
}

func classifyStatus(status int, err error) error {
	switch status {
	case http.StatusTooManyRequests:
		return &models.RateLimitError{RetryAfter: ParseRetryAfter(err.Error()), Err: err}
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &models.TransientNetworkError{Err: err}
	default:
		return &models.PermanentAPIError{Err: err}
	}
}

// ParseRetryAfter extracts a server suggested delay such as "try again in 20s"
// or "try again in 1m30s" from an error message. It returns 0 when none is present.
func ParseRetryAfter(msg string) time.Duration {
	m := retryAfterRe.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	if strings.ContainsAny(strings.ToLower(m[1]), "hms") {
		d, err := time.ParseDuration(strings.ToLower(m[1]))
		if err != nil || d <= 0 {
			return 0
		}
		return d
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v <= 0 {
		return 0
	}
	if strings.EqualFold(m[2], "ms") {
		return time.Duration(v * float64(time.Millisecond))
	}
	return time.Duration(v * float64(time.Second))
}
