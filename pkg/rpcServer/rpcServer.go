// Package rpcServer exposes the read-only HTTP API over the indexed data,
// plus the Prometheus exposition endpoint.
package rpcServer

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/metrics"
	"github.com/interlay/interbtc-indexer/pkg/metrics/metricsTypes"
	"github.com/interlay/interbtc-indexer/pkg/service/dexDataService"
	"github.com/interlay/interbtc-indexer/pkg/service/loanDataService"
	"github.com/interlay/interbtc-indexer/pkg/service/supplyDataService"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type RpcServer struct {
	Logger       *zap.Logger
	globalConfig *config.Config
	metricsSink  *metrics.MetricsSink

	supplyService *supplyDataService.SupplyDataService
	dexService    *dexDataService.DexDataService
	loanService   *loanDataService.LoanDataService

	// metricsHandler serves the Prometheus exposition format, nil when
	// Prometheus is disabled.
	metricsHandler http.Handler

	server *http.Server
}

func NewRpcServer(
	gCfg *config.Config,
	sds *supplyDataService.SupplyDataService,
	dds *dexDataService.DexDataService,
	lds *loanDataService.LoanDataService,
	ms *metrics.MetricsSink,
	metricsHandler http.Handler,
	l *zap.Logger,
) *RpcServer {
	return &RpcServer{
		Logger:         l,
		globalConfig:   gCfg,
		metricsSink:    ms,
		supplyService:  sds,
		dexService:     dds,
		loanService:    lds,
		metricsHandler: metricsHandler,
	}
}

func (rpc *RpcServer) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(rpc.requestMetricsMiddleware)

	r.HandleFunc("/health", rpc.HandleHealth).Methods("GET")

	r.HandleFunc("/v1/supply", rpc.ListCirculatingSupplies).Methods("GET")
	r.HandleFunc("/v1/supply/{symbol}", rpc.GetCirculatingSupply).Methods("GET")

	r.HandleFunc("/v1/dex/volumes", rpc.ListPoolVolumes).Methods("GET")
	r.HandleFunc("/v1/dex/volumes/{currencyA}/{currencyB}", rpc.GetTradingVolume).Methods("GET")

	r.HandleFunc("/v1/loans/accounts/{accountId}", rpc.GetAccountLoanSummary).Methods("GET")

	if rpc.metricsHandler != nil {
		r.Handle("/metrics", rpc.metricsHandler).Methods("GET")
	}

	return r
}

// Start serves the API until the context is cancelled, then shuts down
// gracefully.
func (rpc *RpcServer) Start(ctx context.Context) error {
	handler := cors.AllowAll().Handler(rpc.NewRouter())

	rpc.server = &http.Server{
		Addr:         ":" + strconv.Itoa(rpc.globalConfig.RpcConfig.HttpPort),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rpc.server.Shutdown(shutdownCtx); err != nil {
			rpc.Logger.Sugar().Errorw("Failed to shut down http server", zap.Error(err))
		}
	}()

	rpc.Logger.Sugar().Infow("Starting http server", zap.String("addr", rpc.server.Addr))
	if err := rpc.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (rpc *RpcServer) requestMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}
		labels := []metricsTypes.MetricsLabel{
			{Name: "method", Value: r.Method},
			{Name: "path", Value: path},
			{Name: "status_code", Value: strconv.Itoa(recorder.status)},
		}
		_ = rpc.metricsSink.Incr(metricsTypes.Metric_Incr_HttpRequest, labels, 1)
		_ = rpc.metricsSink.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Since(start), labels)
	})
}
