package _202508251230_cumulativeVolumes

import (
	"database/sql"

	"github.com/interlay/interbtc-indexer/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists cumulative_volumes (
			id varchar not null primary key,
			type varchar not null,
			till_timestamp timestamp(6) not null,
			amount numeric not null
		)`,
		`create index if not exists idx_cumulative_volumes_type_ts on cumulative_volumes (type, till_timestamp desc)`,
		`create table if not exists cumulative_volumes_per_currency_pair (
			id varchar not null primary key,
			type varchar not null,
			till_timestamp timestamp(6) not null,
			amount numeric not null,
			wrapped_currency varchar not null,
			collateral_currency varchar not null
		)`,
		`create index if not exists idx_cumulative_volumes_pair_ts
			on cumulative_volumes_per_currency_pair (type, wrapped_currency, collateral_currency, till_timestamp desc)`,
		`create table if not exists cumulative_dex_trading_volumes_per_pool (
			id varchar not null primary key,
			pool_id varchar not null,
			currency varchar not null,
			till_timestamp timestamp(6) not null,
			amount numeric not null
		)`,
		`create index if not exists idx_dex_volumes_pool_ts
			on cumulative_dex_trading_volumes_per_pool (pool_id, currency, till_timestamp desc)`,
		`create table if not exists cumulative_dex_trading_volumes_per_account (
			id varchar not null primary key,
			account_id varchar not null,
			currency varchar not null,
			till_timestamp timestamp(6) not null,
			amount numeric not null
		)`,
		`create index if not exists idx_dex_volumes_account_ts
			on cumulative_dex_trading_volumes_per_account (account_id, currency, till_timestamp desc)`,
		`create table if not exists cumulative_dex_trade_counts (
			id varchar not null primary key,
			pool_id varchar not null,
			till_timestamp timestamp(6) not null,
			amount numeric not null
		)`,
		`create table if not exists cumulative_circulating_supplies (
			id varchar not null primary key,
			symbol varchar not null,
			till_timestamp timestamp(6) not null,
			total_issuance numeric not null,
			locked numeric not null,
			reserved numeric not null,
			system_accounts numeric not null,
			circulating numeric not null
		)`,
		`create index if not exists idx_circulating_supply_symbol_ts
			on cumulative_circulating_supplies (symbol, till_timestamp desc)`,
	}
	for _, query := range queries {
		if err := grm.Exec(query).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202508251230_cumulativeVolumes"
}
