package config

import "strings"

const ENV_PREFIX = "INTERBTC_INDEXER"

// Flag names shared between cmd/ and viper lookups.
const (
	Debug = "debug"
	Chain = "chain"

	ChainSystemAccounts = "chain.system-accounts"

	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db_name"
	DatabaseSchemaName = "database.schema_name"

	ArchiveBaseUrl = "archive.base-url"

	IndexerGenesisBlock = "indexer.genesis-block"

	RpcHttpPort = "rpc.http-port"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	IssuePeriodBootstrap  = "periods.issue-bootstrap"
	RedeemPeriodBootstrap = "periods.redeem-bootstrap"
)

// KebabToSnakeCase converts a flag name to the form viper uses for env lookups.
func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(strings.ReplaceAll(str, "-", "_"), ".", "_")
}
