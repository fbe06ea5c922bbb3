package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/caresched/infra/logger"
)

// StartPromServer serves /metrics on addr until ctx is cancelled. A dedicated
// ServeMux keeps it apart from the API router.
func StartPromServer(ctx context.Context, addr string) error {
	log := logger.New("prom-server")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("prom server shutdown: %v", err)
		}
	}()
	log.Infof("serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
