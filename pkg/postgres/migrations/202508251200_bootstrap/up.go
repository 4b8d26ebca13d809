package _202508251200_bootstrap

import (
	"database/sql"

	"github.com/interlay/interbtc-indexer/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists blocks (
			number bigint not null primary key,
			hash varchar not null,
			parent_hash varchar not null,
			spec_version integer not null,
			block_time timestamp(6) not null
		)`,
		`create table if not exists events (
			event_id varchar not null primary key,
			block_number bigint not null,
			event_index bigint not null,
			name varchar not null,
			payload text not null,
			extrinsic_id varchar,
			CONSTRAINT events_block_number_fkey FOREIGN KEY (block_number) REFERENCES blocks(number) ON DELETE CASCADE
		)`,
		`create index if not exists idx_events_block_number on events (block_number)`,
		`create table if not exists extrinsics (
			extrinsic_id varchar not null primary key,
			block_number bigint not null,
			extrinsic_index bigint not null,
			name varchar not null,
			signer varchar,
			CONSTRAINT extrinsics_block_number_fkey FOREIGN KEY (block_number) REFERENCES blocks(number) ON DELETE CASCADE
		)`,
		`create table if not exists state_roots (
			block_number bigint not null primary key,
			block_hash varchar not null,
			state_root varchar not null,
			created_at timestamp with time zone default current_timestamp
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
	return "202508251200_bootstrap"
}
