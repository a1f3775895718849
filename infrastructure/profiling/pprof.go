// Package profiling serves the net/http/pprof endpoints on a separate,
// loopback-only listener.
package profiling

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
)

const (
	defaultPort       = 6060
	readHeaderTimeout = 5 * time.Second
)

// Config enables the pprof listener. Port defaults to 6060.
type Config struct {
	Enabled bool `env:"ENABLE_PROFILING" yaml:"enabled"`
	Port    int  `env:"PPROF_PORT"       yaml:"port"`
}

// Addr is always bound to localhost.
func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort("localhost", strconv.Itoa(port))
}

// Server is a running pprof listener. A nil *Server is valid and does nothing.
type Server struct {
	srv *http.Server
	log infralogger.Logger
}

// Handler returns a mux with the standard /debug/pprof/ routes.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Start launches the listener in the background. It returns nil when
// profiling is disabled.
func Start(cfg Config, log infralogger.Logger) *Server {
	if !cfg.Enabled {
		return nil
	}

	s := &Server{
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: log,
	}

	go func() {
		log.Info("Starting pprof server", infralogger.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("pprof server error", infralogger.Error(err))
		}
	}()
	return s
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
