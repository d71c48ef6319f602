package httpsession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"strinks/internal/clock"
	"strinks/internal/config"
	"strinks/internal/logging"
	"strinks/internal/retry"
	"strinks/internal/services"
)

const defaultTimeout = 10 * time.Second

// Options configures a Session.
type Options struct {
	Timeout         time.Duration
	DefaultInterval time.Duration
	DomainIntervals map[string]time.Duration
	Policy          retry.Policy
	UserAgent       string
	Clock           clock.Clock
	// Transport performs single attempts. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// OptionsFromConfig maps the [http] config section onto session options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:         cfg.RequestTimeout(),
		DefaultInterval: cfg.DefaultInterval(),
		DomainIntervals: cfg.DomainIntervals(),
		Policy: retry.Policy{
			MaxAttempts: cfg.HTTP.MaxAttempts,
			Backoff: retry.Exponential(
				time.Duration(cfg.HTTP.BackoffBaseMillis)*time.Millisecond,
				time.Duration(cfg.HTTP.BackoffMaxSeconds)*time.Second,
			),
			Retryable: services.IsRetryable,
		},
		UserAgent: cfg.HTTP.UserAgent,
	}
}

// Session is a paced, retrying HTTP client shared by every outbound caller.
type Session struct {
	clock           clock.Clock
	defaultInterval time.Duration
	intervals       map[string]time.Duration
	policy          retry.Policy
	userAgent       string
	logger          *slog.Logger
	client          *retryablehttp.Client

	mu      sync.RWMutex
	domains map[string]*domainState
}

// New builds a Session from opts.
func New(opts Options) *Session {
	logger := logging.NewComponentLogger(opts.Logger, "http")
	s := &Session{
		clock:           clock.OrReal(opts.Clock),
		defaultInterval: opts.DefaultInterval,
		intervals:       make(map[string]time.Duration, len(opts.DomainIntervals)),
		policy:          opts.Policy,
		userAgent:       strings.TrimSpace(opts.UserAgent),
		logger:          logger,
		domains:         make(map[string]*domainState),
	}
	for domain, d := range opts.DomainIntervals {
		s.intervals[DomainKey(domain)] = d
	}
	if s.policy.Retryable == nil {
		s.policy.Retryable = services.IsRetryable
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: &pacedTransport{base: base, session: s, timeout: timeout},
	}
	client.Logger = logger
	client.RetryMax = s.policy.Retries()
	client.CheckRetry = s.checkRetry
	client.Backoff = s.backoff
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	s.client = client
	return s
}

// Do sends req with pacing and retries. After the retry budget is spent the
// last response or error is returned unchanged; callers classify it with
// CheckStatus. The caller must close the response body.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if s.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, fmt.Errorf("prepare request: %w", err)
	}
	return s.client.Do(rreq)
}

// Get issues a GET for rawURL with optional headers.
func (s *Session) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return s.Do(req)
}

// ReadBody reads and closes resp.Body, capping it at limit bytes.
func ReadBody(resp *http.Response, limit int64) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

func (s *Session) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		// TLS, scheme and redirect-loop failures are permanent.
		retryable, _ := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		if !retryable {
			return false, nil
		}
		return s.policy.Retryable(services.Wrap(services.ErrTransient, "http", "request", "", err)), nil
	}
	if statusErr := CheckStatus(resp); statusErr != nil {
		return s.policy.Retryable(statusErr), nil
	}
	return false, nil
}

func (s *Session) backoff(_, _ time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests && resp.Header.Get("Retry-After") != "" {
		// The transport already deferred the domain; the next Acquire waits it out.
		return 0
	}
	return s.policy.Delay(attemptNum + 1)
}

// pacedTransport waits for the domain's turn and then applies the per-attempt
// timeout, so time spent queued behind other requests never counts against it.
type pacedTransport struct {
	base    http.RoundTripper
	session *Session
	timeout time.Duration
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	domain := DomainKey(req.URL.Host)
	if err := t.session.Acquire(req.Context(), domain); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		t.session.logger.Debug("request attempt failed",
			logging.String(logging.FieldDomain, domain),
			logging.String("url", req.URL.Redacted()),
			logging.Error(err),
		)
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		now := t.session.clock.Now()
		if wait, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), now); ok {
			t.session.Defer(domain, now.Add(wait))
			logging.WarnWithContext(t.session.logger, "rate limited by remote", "http_rate_limited",
				logging.String(logging.FieldDomain, domain),
				logging.Duration("retry_after", wait),
				logging.String(logging.FieldErrorHint, "lower request rate in [http.domain_intervals]"),
				logging.String(logging.FieldImpact, "requests to this domain are paused"),
			)
		}
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// ParseRetryAfter interprets a Retry-After header given as delay seconds or an HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		wait := at.Sub(now)
		if wait < 0 {
			wait = 0
		}
		return wait, true
	}
	return 0, false
}

// StatusError describes a non-success HTTP status. It unwraps to the service
// marker matching the status so errors.Is classification works.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return "unexpected status " + e.Status
	}
	return "unexpected status " + strconv.Itoa(e.Code)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden:
		return services.ErrAuth
	case e.Code == http.StatusNotFound:
		return services.ErrNotFound
	case e.Code == http.StatusTooManyRequests, e.Code >= 500:
		return services.ErrTransient
	default:
		return services.ErrValidation
	}
}

// CheckStatus returns nil for 2xx/3xx responses and a *StatusError otherwise.
func CheckStatus(resp *http.Response) error {
	if resp == nil {
		return services.Wrap(services.ErrTransient, "http", "response", "no response", nil)
	}
	if resp.StatusCode < 400 {
		return nil
	}
	return &StatusError{Code: resp.StatusCode, Status: resp.Status}
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}
