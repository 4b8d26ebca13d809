package _202508251240_dexAndLoans

import (
	"database/sql"

	"github.com/interlay/interbtc-indexer/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists swaps (
			id varchar not null primary key,
			pool_id varchar not null,
			from_account varchar not null,
			to_account varchar not null,
			from_currency varchar not null,
			to_currency varchar not null,
			from_amount numeric not null,
			to_amount numeric not null,
			absolute bigint not null,
			active bigint not null,
			block_timestamp timestamp(6) not null
		)`,
		`create index if not exists idx_swaps_pool_id on swaps (pool_id, block_timestamp)`,
		`create table if not exists loan_deposits (
			id varchar not null primary key,
			type varchar not null,
			account_id varchar not null,
			symbol varchar not null,
			amount numeric not null,
			absolute bigint not null,
			block_timestamp timestamp(6) not null
		)`,
		`create index if not exists idx_loan_deposits_account on loan_deposits (account_id, symbol)`,
	}
	for _, query := range queries {
		if err := grm.Exec(query).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202508251240_dexAndLoans"
}
