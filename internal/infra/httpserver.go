package infra

import (
	"context"
	"net/http"
	"time"
)

const maxHeaderBytes = 1 << 20

// HTTPServer wraps http.Server with the service's timeout policy and a
// graceful shutdown hook for the api entrypoint.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds the server from the configured timeouts. The header
// read timeout is kept below the body read timeout so slow-header clients
// are shed early.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	headerTimeout := 5 * time.Second
	if cfg.HTTPReadTimeout > 0 && cfg.HTTPReadTimeout < headerTimeout {
		headerTimeout = cfg.HTTPReadTimeout
	}
	return &HTTPServer{server: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: headerTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}}
}

// Addr returns the listen address.
func (s *HTTPServer) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
