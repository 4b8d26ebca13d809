package _202508251220_bridge

import (
	"database/sql"

	"github.com/interlay/interbtc-indexer/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists vaults (
			id varchar not null primary key,
			account_id varchar not null,
			wrapped_currency varchar not null,
			collateral_currency varchar not null,
			registration_block bigint not null,
			registration_timestamp timestamp(6) not null,
			collateral numeric not null default 0,
			pending_wrapped numeric not null default 0,
			last_activity_absolute bigint
		)`,
		`create index if not exists idx_vaults_account_id on vaults (account_id)`,
		`create table if not exists issues (
			id varchar not null primary key,
			status varchar not null,
			amount_wrapped numeric not null,
			bridge_fee numeric not null,
			griefing_collateral numeric not null,
			vault_id varchar not null,
			user_parachain_address varchar not null,
			vault_backing_address varchar,
			opening_absolute bigint not null,
			opening_active bigint not null,
			opening_timestamp timestamp(6) not null,
			backing_height bigint not null,
			period bigint not null,
			execution_amount_wrapped numeric,
			execution_fee_wrapped numeric,
			execution_absolute bigint,
			execution_timestamp timestamp(6),
			cancellation_absolute bigint,
			cancellation_timestamp timestamp(6),
			refund_amount_paid numeric,
			refund_btc_fee numeric,
			refund_btc_address varchar,
			refund_absolute bigint,
			refund_timestamp timestamp(6)
		)`,
		`create index if not exists idx_issues_status on issues (status)`,
		`create index if not exists idx_issues_vault_id on issues (vault_id)`,
		`create table if not exists redeems (
			id varchar not null primary key,
			status varchar not null,
			amount_wrapped numeric not null,
			bridge_fee numeric not null,
			btc_transfer_fee numeric not null,
			vault_id varchar not null,
			user_parachain_address varchar not null,
			user_backing_address varchar,
			opening_absolute bigint not null,
			opening_active bigint not null,
			opening_timestamp timestamp(6) not null,
			backing_height bigint not null,
			period bigint not null,
			execution_absolute bigint,
			execution_timestamp timestamp(6),
			cancellation_absolute bigint,
			cancellation_timestamp timestamp(6),
			cancellation_slashed_collateral numeric,
			cancellation_reimbursed boolean
		)`,
		`create index if not exists idx_redeems_status on redeems (status)`,
		`create table if not exists issue_periods (
			id varchar not null primary key,
			value bigint not null,
			absolute bigint not null,
			active bigint not null,
			block_timestamp timestamp(6) not null
		)`,
		`create table if not exists redeem_periods (
			id varchar not null primary key,
			value bigint not null,
			absolute bigint not null,
			active bigint not null,
			block_timestamp timestamp(6) not null
		)`,
		`create table if not exists relayed_blocks (
			backing_height bigint not null primary key,
			block_hash varchar not null,
			relayed_at_absolute bigint not null,
			relayed_at_active bigint not null,
			block_timestamp timestamp(6) not null,
			relayer varchar
		)`,
		`create table if not exists token_locks (
			id varchar not null primary key,
			account_id varchar not null,
			currency varchar not null,
			lock_id varchar not null,
			amount numeric not null,
			set_absolute bigint not null,
			set_timestamp timestamp(6) not null,
			removed_absolute bigint,
			removed_timestamp timestamp(6)
		)`,
		`create table if not exists transfers (
			id varchar not null primary key,
			from_account varchar not null,
			to_account varchar not null,
			currency varchar not null,
			amount numeric not null,
			absolute bigint not null,
			active bigint not null,
			block_timestamp timestamp(6) not null
		)`,
	}
	for _, query := range queries {
		if err := grm.Exec(query).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202508251220_bridge"
}
