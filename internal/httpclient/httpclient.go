package httpclient

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const defaultUserAgent = "camera-angle-studio/1.0"

type Options struct {
	PreferIPv4 bool
	Timeout    time.Duration
	UserAgent  string
	Logger     *slog.Logger
}

// New builds the outbound client shared by the model boundary and the
// Telegram API. A zero Timeout means 180s.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if opts.PreferIPv4 {
				return dialer.DialContext(ctx, "tcp4", addr)
			}
			return dialer.DialContext(ctx, network, addr)
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
		// image generation can sit a long time before the first byte
		ResponseHeaderTimeout: 150 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &roundTripper{
			next:      transport,
			userAgent: userAgent,
			logger:    opts.Logger,
		},
	}
}

type roundTripper struct {
	next      http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", rt.userAgent)
	}

	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	if rt.logger != nil {
		attrs := []any{"method", req.Method, "host", req.URL.Host, "dur_ms", time.Since(start).Milliseconds()}
		if err != nil {
			rt.logger.Debug("outbound request failed", append(attrs, "err", err)...)
		} else {
			rt.logger.Debug("outbound request", append(attrs, "status", resp.StatusCode)...)
		}
	}
	return resp, err
}
