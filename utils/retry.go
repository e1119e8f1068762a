package utils

import (
	"context"
	"log"
	"math"
	"net/http"
	"time"
)

// RetryConfig controls exponential backoff for outbound API calls.
type RetryConfig struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	d := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiple, float64(attempt)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// RetryableStatus reports whether an HTTP status is worth another attempt.
func RetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// RetryExhaustedError is returned when the last attempt still answered with a
// retryable status.
type RetryExhaustedError struct {
	APIName        string
	MaxAttempts    int
	LastStatusCode int
	LastResponse   []byte
}

func (e *RetryExhaustedError) Error() string {
	return "retry attempts exhausted for " + e.APIName + " API"
}

// Retry runs fn until it succeeds, returns a non-retryable outcome, or the
// attempts run out. fn reports the HTTP status it saw (0 when the request
// never got a response) and any transport error. A transport error or a
// RetryableStatus triggers another attempt.
func Retry(ctx context.Context, cfg RetryConfig, apiName string, fn func(attempt int) (status int, body []byte, err error)) error {
	var (
		lastStatus int
		lastBody   []byte
		lastErr    error
	)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			d := cfg.delay(attempt - 1)
			log.Printf("%s: retry attempt %d/%d after %v", apiName, attempt+1, cfg.MaxRetries+1, d)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
		}

		status, body, err := fn(attempt)
		lastStatus, lastBody, lastErr = status, body, err

		if err == nil && !RetryableStatus(status) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Printf("%s: network error (attempt %d/%d): %v", apiName, attempt+1, cfg.MaxRetries+1, err)
		} else {
			log.Printf("%s: retryable status %d (attempt %d/%d)", apiName, status, attempt+1, cfg.MaxRetries+1)
		}
	}

	if lastErr != nil {
		return lastErr
	}
	return &RetryExhaustedError{
		APIName:        apiName,
		MaxAttempts:    cfg.MaxRetries + 1,
		LastStatusCode: lastStatus,
		LastResponse:   lastBody,
	}
}
