package config

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Network uint

const (
	Network_Interlay Network = iota
	Network_Kintsugi
	Network_Local
)

func (n Network) String() string {
	switch n {
	case Network_Interlay:
		return "interlay"
	case Network_Kintsugi:
		return "kintsugi"
	case Network_Local:
		return "local"
	}
	return "unknown"
}

// ChainConfig carries the per-network constants the indexer cannot derive
// from the event stream itself.
type ChainConfig struct {
	Name Network

	// Ss58Prefix is the address format prefix used when encoding account ids.
	Ss58Prefix uint16

	// BitcoinNetwork selects version bytes / HRP for Bitcoin address encoding.
	BitcoinNetwork string

	// NativeSymbol is the chain's governance token, WrappedSymbol the bridged
	// BTC token.
	NativeSymbol  string
	WrappedSymbol string

	// GenesisIssuance seeds the first circulating supply bucket for the
	// native token.
	GenesisIssuance decimal.Decimal

	// SystemAccounts are treasury/escrow accounts excluded from circulating
	// supply, in SS58 form.
	SystemAccounts []string

	// BlocksPerBtcBlock is the expected number of parachain blocks per
	// Bitcoin block, used to derive the BTC confirmation period for expiry.
	BlocksPerBtcBlock uint64

	// FirstGeneralizedCurrencySpecVersion is the runtime spec version that
	// introduced the generalized currency encoding.
	FirstGeneralizedCurrencySpecVersion uint32
}

func ParseChainConfig(name string) (ChainConfig, error) {
	switch name {
	case "interlay":
		return ChainConfig{
			Name:                                Network_Interlay,
			Ss58Prefix:                          2032,
			BitcoinNetwork:                      "mainnet",
			NativeSymbol:                        "INTR",
			WrappedSymbol:                       "IBTC",
			GenesisIssuance:                     decimal.New(1_000_000_000, 10),
			BlocksPerBtcBlock:                   50,
			FirstGeneralizedCurrencySpecVersion: 1021,
		}, nil
	case "kintsugi":
		return ChainConfig{
			Name:                                Network_Kintsugi,
			Ss58Prefix:                          2092,
			BitcoinNetwork:                      "mainnet",
			NativeSymbol:                        "KINT",
			WrappedSymbol:                       "KBTC",
			GenesisIssuance:                     decimal.New(10_000_000, 12),
			BlocksPerBtcBlock:                   50,
			FirstGeneralizedCurrencySpecVersion: 1021,
		}, nil
	case "local":
		return ChainConfig{
			Name:                                Network_Local,
			Ss58Prefix:                          42,
			BitcoinNetwork:                      "regtest",
			NativeSymbol:                        "INTR",
			WrappedSymbol:                       "IBTC",
			GenesisIssuance:                     decimal.Zero,
			BlocksPerBtcBlock:                   50,
			FirstGeneralizedCurrencySpecVersion: 1021,
		}, nil
	}
	return ChainConfig{}, fmt.Errorf("unsupported chain %s", name)
}

type DatabaseConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
}

type ArchiveConfig struct {
	BaseUrl string
}

type RpcConfig struct {
	HttpPort int
}

// IndexerConfig controls where a fresh sync starts. The genesis block is the
// first block the indexer processes when the database is empty; heights
// before the bridge launch carry nothing worth indexing.
type IndexerConfig struct {
	GenesisBlockNumber uint64
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

// PeriodsConfig holds the bootstrap values for the issue/redeem periods,
// used only until the first period-change event is indexed. These stand in
// for a direct chain storage read at startup.
type PeriodsConfig struct {
	IssuePeriodBootstrap  uint64
	RedeemPeriodBootstrap uint64
}

type Config struct {
	Debug            bool
	Chain            ChainConfig
	DatabaseConfig   DatabaseConfig
	ArchiveConfig    ArchiveConfig
	IndexerConfig    IndexerConfig
	RpcConfig        RpcConfig
	PrometheusConfig PrometheusConfig
	PeriodsConfig    PeriodsConfig
}

// NewConfig reads all values from viper, which cmd/root.go has already bound
// to flags and environment variables.
func NewConfig() *Config {
	chainName := viper.GetString(KebabToSnakeCase(Chain))
	if chainName == "" {
		chainName = "interlay"
	}
	chain, err := ParseChainConfig(chainName)
	if err != nil {
		panic(err)
	}
	// Treasury and escrow account sets change through governance, so they
	// are deployment configuration rather than per-network constants.
	if accounts := viper.GetStringSlice(KebabToSnakeCase(ChainSystemAccounts)); len(accounts) > 0 {
		chain.SystemAccounts = accounts
	}
	return &Config{
		Debug: viper.GetBool(KebabToSnakeCase(Debug)),
		Chain: chain,
		DatabaseConfig: DatabaseConfig{
			Host:       viper.GetString(KebabToSnakeCase(DatabaseHost)),
			Port:       viper.GetInt(KebabToSnakeCase(DatabasePort)),
			User:       viper.GetString(KebabToSnakeCase(DatabaseUser)),
			Password:   viper.GetString(KebabToSnakeCase(DatabasePassword)),
			DbName:     viper.GetString(KebabToSnakeCase(DatabaseDbName)),
			SchemaName: viper.GetString(KebabToSnakeCase(DatabaseSchemaName)),
		},
		ArchiveConfig: ArchiveConfig{
			BaseUrl: viper.GetString(KebabToSnakeCase(ArchiveBaseUrl)),
		},
		IndexerConfig: IndexerConfig{
			GenesisBlockNumber: viper.GetUint64(KebabToSnakeCase(IndexerGenesisBlock)),
		},
		RpcConfig: RpcConfig{
			HttpPort: viper.GetInt(KebabToSnakeCase(RpcHttpPort)),
		},
		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(KebabToSnakeCase(PrometheusEnabled)),
			Port:    viper.GetInt(KebabToSnakeCase(PrometheusPort)),
		},
		PeriodsConfig: PeriodsConfig{
			IssuePeriodBootstrap:  viper.GetUint64(KebabToSnakeCase(IssuePeriodBootstrap)),
			RedeemPeriodBootstrap: viper.GetUint64(KebabToSnakeCase(RedeemPeriodBootstrap)),
		},
	}
}

// IsSystemAccount reports whether the given SS58 address is one of the
// configured non-circulating accounts.
func (c *Config) IsSystemAccount(address string) bool {
	for _, a := range c.Chain.SystemAccounts {
		if a == address {
			return true
		}
	}
	return false
}
