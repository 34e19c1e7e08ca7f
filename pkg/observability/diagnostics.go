package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	healthStatusOK = "ok"

	readHeaderTimeout = 5 * time.Second
)

// HealthHandler serves liveness checks. It always answers 200 {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		writeHealthJSON(rw, healthStatusOK)
	})
}

func writeHealthJSON(w io.Writer, status string) {
	data, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return
	}

	_, _ = w.Write(data)
}

// DiagnosticsServer exposes /healthz and /metrics over HTTP.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// NewDiagnosticsServer listens on addr. A nil metrics handler leaves /metrics
// unregistered.
func NewDiagnosticsServer(ctx context.Context, addr string, metrics http.Handler, logger *slog.Logger) (*DiagnosticsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", HealthHandler())

	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &DiagnosticsServer{
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout},
		listener: listener,
		logger:   logger,
	}, nil
}

// Addr returns the bound listen address.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Serve blocks until ctx is done or the server fails, then shuts it down.
func (d *DiagnosticsServer) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- d.server.Serve(d.listener)
	}()

	d.logger.InfoContext(ctx, "diagnostics server listening", "addr", d.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("diagnostics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readHeaderTimeout)
	defer cancel()

	if err := d.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
