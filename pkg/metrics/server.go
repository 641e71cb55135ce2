package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/config"
)

// StartServer exposes the registry on its own port, away from search
// traffic. The returned function shuts the server down.
func StartServer(cfg config.MetricsConfig, service string) (shutdown func(context.Context) error) {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "prf-search %s: metrics at %s\n", service, path)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger := slog.Default().With("component", "metrics-server", "service", service)
	go func() {
		logger.Info("metrics server listening", "addr", server.Addr, "path", path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return server.Shutdown
}
