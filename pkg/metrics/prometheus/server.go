package prometheus

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type PrometheusServerConfig struct {
	Port int
}

// PrometheusServer serves the exposition endpoint on its own port, separate
// from the query API.
type PrometheusServer struct {
	config  *PrometheusServerConfig
	handler http.Handler
	logger  *zap.Logger

	server *http.Server
}

func NewPrometheusServer(cfg *PrometheusServerConfig, handler http.Handler, l *zap.Logger) *PrometheusServer {
	return &PrometheusServer{
		config:  cfg,
		handler: handler,
		logger:  l,
	}
}

// Start serves /metrics in the background until a value arrives on the
// shutdown channel.
func (ps *PrometheusServer) Start(shutdown chan bool) error {
	m := http.NewServeMux()
	m.Handle("/metrics", ps.handler)

	ps.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", ps.config.Port),
		Handler: m,
	}

	go func() {
		ps.logger.Sugar().Infow("Starting prometheus server", zap.String("addr", ps.server.Addr))
		if err := ps.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ps.logger.Sugar().Errorw("Prometheus server failed", zap.Error(err))
		}
	}()

	go func() {
		<-shutdown
		if err := ps.server.Close(); err != nil {
			ps.logger.Sugar().Errorw("Failed to close prometheus server", zap.Error(err))
		}
	}()

	return nil
}
