package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/internal/logger"
	"github.com/interlay/interbtc-indexer/internal/version"
	"github.com/interlay/interbtc-indexer/pkg/blockfeed"
	"github.com/interlay/interbtc-indexer/pkg/chainState"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/decoder"
	"github.com/interlay/interbtc-indexer/pkg/eventBus"
	"github.com/interlay/interbtc-indexer/pkg/indexer"
	"github.com/interlay/interbtc-indexer/pkg/metrics"
	"github.com/interlay/interbtc-indexer/pkg/metrics/metricsTypes"
	metricsPrometheus "github.com/interlay/interbtc-indexer/pkg/metrics/prometheus"
	"github.com/interlay/interbtc-indexer/pkg/pipeline"
	"github.com/interlay/interbtc-indexer/pkg/postgres"
	"github.com/interlay/interbtc-indexer/pkg/postgres/migrations"
	"github.com/interlay/interbtc-indexer/pkg/rpcServer"
	"github.com/interlay/interbtc-indexer/pkg/service/dexDataService"
	"github.com/interlay/interbtc-indexer/pkg/service/loanDataService"
	"github.com/interlay/interbtc-indexer/pkg/service/supplyDataService"
	"github.com/interlay/interbtc-indexer/pkg/shutdown"
	pgStorage "github.com/interlay/interbtc-indexer/pkg/storage/postgres"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Index the chain and serve the query API",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		l.Sugar().Infow("interbtc-indexer run",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
			zap.String("chain", cfg.Chain.Name.String()),
		)

		if cfg.ArchiveConfig.BaseUrl == "" {
			l.Sugar().Fatalw("Archive base url is required", zap.String("flag", config.ArchiveBaseUrl))
		}

		metricsClients := make([]metricsTypes.IMetricsClient, 0)
		var metricsHandler http.Handler
		if cfg.PrometheusConfig.Enabled {
			promClient, err := metricsPrometheus.NewPrometheusMetricsClient(&metricsPrometheus.PrometheusMetricsConfig{
				Metrics: metricsTypes.MetricTypes,
			}, l)
			if err != nil {
				l.Sugar().Fatalw("Failed to setup prometheus metrics client", zap.Error(err))
			}
			metricsClients = append(metricsClients, promClient)
			metricsHandler = promClient.Handler()
		}

		sink, err := metrics.NewMetricsSink(l, metricsClients)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		eb := eventBus.NewEventBus(l)

		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)

		pg, err := postgres.NewPostgres(pgConfig)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup postgres connection", zap.Error(err))
		}

		grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			l.Sugar().Fatalw("Failed to create gorm instance", zap.Error(err))
		}

		migrator := migrations.NewMigrator(pg.Db, grm, l, cfg)
		if err := migrator.MigrateAll(); err != nil {
			l.Sugar().Fatalw("Failed to migrate database", zap.Error(err))
		}

		csm := stateManager.NewChainStateManager(sink, l, grm)

		if err := chainState.LoadChainStateModels(csm, grm, l, cfg); err != nil {
			l.Sugar().Fatalw("Failed to load chain state models", zap.Error(err))
		}

		feedConfig := blockfeed.DefaultArchiveClientConfig()
		feedConfig.BaseUrl = cfg.ArchiveConfig.BaseUrl
		feed := blockfeed.NewArchiveClient(feedConfig, l)

		dc := decoder.NewDecoder(l, cfg)

		mds := pgStorage.NewPostgresBlockStore(grm, l, cfg)

		p := pipeline.NewPipeline(feed, mds, dc, csm, cfg, sink, eb, l)

		idx := indexer.NewIndexer(&indexer.IndexerConfig{
			GenesisBlockNumber: cfg.IndexerConfig.GenesisBlockNumber,
		}, cfg, mds, p, feed, csm, grm, l)

		sds := supplyDataService.NewSupplyDataService(grm, l, cfg)
		dds := dexDataService.NewDexDataService(grm, l, cfg)
		lds := loanDataService.NewLoanDataService(grm, l, cfg)

		rpc := rpcServer.NewRpcServer(cfg, sds, dds, lds, sink, metricsHandler, l)

		go func() {
			if err := rpc.Start(ctx); err != nil {
				l.Sugar().Fatalw("Failed to start rpc server", zap.Error(err))
			}
		}()

		go idx.Start(ctx)

		promChan := make(chan bool)
		if cfg.PrometheusConfig.Enabled {
			pServer := metricsPrometheus.NewPrometheusServer(&metricsPrometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, metricsHandler, l)
			if err := pServer.Start(promChan); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		l.Sugar().Info("Started indexer")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		go shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			idx.ShutdownChan <- true
			close(promChan)
			cancel()
		}, time.Second*5, l)
		<-done
	},
}

func initRunCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
