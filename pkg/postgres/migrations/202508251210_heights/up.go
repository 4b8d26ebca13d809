package _202508251210_heights

import (
	"database/sql"

	"github.com/interlay/interbtc-indexer/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	query := `
		create table if not exists heights (
			absolute bigint not null primary key,
			active bigint not null,
			block_timestamp timestamp(6) not null
		)
	`
	if err := grm.Exec(query).Error; err != nil {
		return err
	}
	return grm.Exec(`create index if not exists idx_heights_active on heights (active)`).Error
}

func (m *Migration) GetName() string {
	return "202508251210_heights"
}
