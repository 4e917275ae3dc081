package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hlscache/internal/fileutil"
	"hlscache/internal/logging"
	"hlscache/internal/services"
)

// HTTP retrieves sources with GET requests below a base URL.
type HTTP struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTP returns a fetcher for baseURL. timeout bounds connecting and the
// wait for response headers, and separately each gap between body reads. A
// body that keeps arriving is never cut off.
func NewHTTP(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTP {
	if logger == nil {
		logger = logging.NewNop()
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTP{
		baseURL: baseURL,
		timeout: timeout,
		client:  newHTTPClient(timeout),
		logger:  logger,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
		transport.DialContext = dialer.DialContext
		transport.TLSHandshakeTimeout = timeout
		transport.ResponseHeaderTimeout = timeout
	}
	return &http.Client{Transport: transport}
}

// Name implements Fetcher.
func (h *HTTP) Name() string { return "http" }

// Locate implements Fetcher. The location is the source URL, which the
// segmenter reads directly.
func (h *HTTP) Locate(key string) (string, bool) {
	target, err := h.sourceURL(key)
	if err != nil {
		return "", false
	}
	return target, true
}

func (h *HTTP) sourceURL(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return url.JoinPath(h.baseURL, strings.Split(cleaned, "/")...)
}

// Fetch streams the source into dest. Any status other than 200 is reported
// as not found.
func (h *HTTP) Fetch(ctx context.Context, key, dest string) error {
	target, err := h.sourceURL(key)
	if err != nil {
		return services.Wrap(services.ErrValidation, "source", "http fetch", "invalid key "+key, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "source", "http fetch", "build request", err)
	}

	h.logger.Debug("requesting source", logging.String("url", target))
	resp, err := h.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return services.Wrap(services.ErrTimeout, "source", "http fetch", fmt.Sprintf("%s after %s", target, h.timeout), err)
		}
		return services.Wrap(services.ErrTransient, "source", "http fetch", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.logger.Info("source request returned no content",
			logging.String("url", target),
			logging.Int("status", resp.StatusCode),
			logging.String(logging.FieldEventType, "source_http_status"),
			logging.String(logging.FieldErrorHint, "confirm the file exists under input.http.base_url"),
		)
		return services.Wrap(services.ErrNotFound, "source", "http fetch", fmt.Sprintf("%s returned %s", target, resp.Status), nil)
	}

	body := newStallGuard(resp.Body, h.timeout, cancel)
	defer body.Stop()
	if _, err := fileutil.WriteAtomic(dest, body, 0o644); err != nil {
		if isTimeout(err) {
			return services.Wrap(services.ErrTimeout, "source", "http fetch", fmt.Sprintf("%s after %s", target, h.timeout), err)
		}
		return services.Wrap(services.ErrTransient, "source", "http fetch", target, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, errStalled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
