package odoo

import (
	"log/slog"
	"net/http"
	"time"
)

// loggingTransport logs every outgoing request with its duration and status.
type loggingTransport struct {
	base http.RoundTripper
}

func newLoggingTransport(base http.RoundTripper) http.RoundTripper {
	return &loggingTransport{base: base}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.base.RoundTrip(req)

	duration := time.Since(start).Milliseconds()
	if err != nil {
		slog.Warn("Remote request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"duration_ms", duration,
			"error", err,
		)
		return nil, err
	}

	slog.Debug("Remote request completed",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
