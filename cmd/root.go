package cmd

import (
	"os"
	"strings"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "interbtc-indexer",
	Short: "Indexes the interBTC bridge parachain into a queryable PostgreSQL database",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)
	rootCmd.PersistentFlags().StringP(config.Chain, "c", "interlay", "The chain to index (interlay, kintsugi, local)")
	rootCmd.PersistentFlags().StringSlice(config.ChainSystemAccounts, nil, `Treasury/escrow accounts (SS58) excluded from circulating supply`)

	rootCmd.PersistentFlags().String(config.ArchiveBaseUrl, "", `Archive gateway base url, e.g. "http://<hostname>:8080"`)
	rootCmd.PersistentFlags().Uint64(config.IndexerGenesisBlock, 0, `First block to index on a fresh sync`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "interbtc", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "interbtc", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)

	rootCmd.PersistentFlags().Int(config.RpcHttpPort, 7101, `http rpc port`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.PersistentFlags().Uint64(config.IssuePeriodBootstrap, 14400, `Issue period (active blocks) until the first period-change event is indexed`)
	rootCmd.PersistentFlags().Uint64(config.RedeemPeriodBootstrap, 14400, `Redeem period (active blocks) until the first period-change event is indexed`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runVersionCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
