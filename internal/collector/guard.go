package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
	"github.com/ducminhle1904/crypto-decision-engine/internal/safety"
)

// Options are shared by every HTTP backed adapter
type Options struct {
	BaseURL string
	Timeout time.Duration
	Retry   RetryPolicy
	Breaker *safety.CircuitBreaker
}

// guard runs a collaborator call through the breaker and retry policy and
// classifies its failures as data source errors
type guard struct {
	name    string
	retry   RetryPolicy
	breaker *safety.CircuitBreaker
}

func newGuard(name string, opts Options) guard {
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return guard{name: name, retry: retry, breaker: opts.Breaker}
}

func (g guard) run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return g.retry.Do(ctx, func(ctx context.Context) error {
		call := func() error { return fn(ctx) }

		var err error
		if g.breaker != nil {
			err = g.breaker.Call(call)
		} else {
			err = call()
		}
		if err == nil {
			return nil
		}

		dsErr := decerrors.NewDataSourceError(g.name, operation, err)
		var open *safety.ErrCircuitOpen
		var status *httpStatusError
		switch {
		case errors.As(err, &open):
			dsErr.WithRetryable(false)
		case errors.As(err, &status):
			dsErr.WithRetryable(status.retryable())
		}
		return dsErr
	})
}

func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	return client
}

// statusError turns a non-2xx response into an error whose text carries the status code
func statusError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}
	body := resp.String()
	if len(body) > 200 {
		body = body[:200]
	}
	return &httpStatusError{code: resp.StatusCode(), body: body}
}

type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// retryable treats throttling and server failures as transient
func (e *httpStatusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}
