package httpserver

import (
	"net/http"
	"time"

	"docexchange/internal/platform/config"
)

const writeGrace = 5 * time.Second

// New builds the API server. The write timeout trails the per-request
// handler timeout so a timed-out handler can still send its 503.
func New(cfg config.Server, handler http.Handler) *http.Server {
	write := 60 * time.Second
	if cfg.RequestTimeout > 0 {
		write = cfg.RequestTimeout + writeGrace
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       120 * time.Second,
	}
}
