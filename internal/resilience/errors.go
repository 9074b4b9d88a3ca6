// Package resilience retries the transient failures this tool's upstreams
// actually produce. API Ninjas' free tier answers bursts with 429s and the
// occasional 5xx; sec.gov throttles heavy fetchers under its fair-access
// policy. Both clear on their own, so each request gets a short
// backoff-and-retry budget before its ticker is written off.
package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// Transient marks an error safe to retry. Status is the HTTP status that
// produced it, zero when the failure never reached a response. RetryAfter
// carries the server's Retry-After hint when one was sent; the retry loop
// honors it over its own backoff.
type Transient struct {
	Err        error
	Status     int
	RetryAfter time.Duration
}

func (e *Transient) Error() string {
	return e.Err.Error()
}

func (e *Transient) Unwrap() error {
	return e.Err
}

// Mark wraps err as transient.
func Mark(err error, status int) *Transient {
	return &Transient{Err: err, Status: status}
}

// Throttled wraps a rate-limit rejection together with the server's
// Retry-After hint.
func Throttled(err error, retryAfter time.Duration) *Transient {
	return &Transient{Err: err, Status: http.StatusTooManyRequests, RetryAfter: retryAfter}
}

// Errnos the kernel surfaces when an upstream drops the connection
// mid-request.
var transientErrnos = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.EPIPE,
}

// Failure fragments net/http wraps into opaque errors. The list covers
// what polling api-ninjas.com and sec.gov over flaky links produces.
var transientFragments = []string{
	"connection reset by peer",
	"i/o timeout",
	"tls handshake timeout",
	"no such host",
	"server closed idle connection",
}

// IsTransient reports whether err (or anything in its chain) is worth
// retrying: an explicit Transient mark, a network timeout, a dropped
// connection, or a failure message matching a known transient pattern.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *Transient
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, f := range transientFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}

	return false
}

// RetryableStatus reports whether an HTTP status is worth retrying: 429
// covers both upstreams' throttling, 408 a timed-out request, and 5xx
// short of Not Implemented an intermittent server failure.
func RetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
		return true
	}
	return code >= 500 && code != http.StatusNotImplemented
}

// retryAfterHint extracts the server's Retry-After hint from a transient
// error chain. Zero when there is none.
func retryAfterHint(err error) time.Duration {
	var te *Transient
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}
