package migrations

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/interlay/interbtc-indexer/internal/config"
	_202508251200_bootstrap "github.com/interlay/interbtc-indexer/pkg/postgres/migrations/202508251200_bootstrap"
	_202508251210_heights "github.com/interlay/interbtc-indexer/pkg/postgres/migrations/202508251210_heights"
	_202508251220_bridge "github.com/interlay/interbtc-indexer/pkg/postgres/migrations/202508251220_bridge"
	_202508251230_cumulativeVolumes "github.com/interlay/interbtc-indexer/pkg/postgres/migrations/202508251230_cumulativeVolumes"
	_202508251240_dexAndLoans "github.com/interlay/interbtc-indexer/pkg/postgres/migrations/202508251240_dexAndLoans"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migration is one schema change. Up must be idempotent (create table if not
// exists) since a migration may be retried after a partial failure.
type Migration interface {
	Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error
	GetName() string
}

type Migrator struct {
	Db           *sql.DB
	GDb          *gorm.DB
	Logger       *zap.Logger
	globalConfig *config.Config
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger, cfg *config.Config) *Migrator {
	initMigrationsTable(gDb)
	return &Migrator{
		Db:           db,
		GDb:          gDb,
		Logger:       l,
		globalConfig: cfg,
	}
}

func initMigrationsTable(grm *gorm.DB) {
	query := `
		create table if not exists migrations (
			name varchar not null primary key,
			created_at timestamp with time zone default current_timestamp
		)
	`
	grm.Exec(query)
}

func (m *Migrator) MigrateAll() error {
	migrations := []Migration{
		&_202508251200_bootstrap.Migration{},
		&_202508251210_heights.Migration{},
		&_202508251220_bridge.Migration{},
		&_202508251230_cumulativeVolumes.Migration{},
		&_202508251240_dexAndLoans.Migration{},
	}

	for _, migration := range migrations {
		if err := m.Migrate(migration); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	var count int64
	res := m.GDb.Raw(`select count(*) from migrations where name = ?`, name).Scan(&count)
	if res.Error != nil {
		return res.Error
	}
	if count > 0 {
		return nil
	}

	m.Logger.Sugar().Infow("Running migration", zap.String("name", name))
	if err := migration.Up(m.Db, m.GDb, m.globalConfig); err != nil {
		m.Logger.Sugar().Errorw("Failed to run migration", zap.String("name", name), zap.Error(err))
		return fmt.Errorf("failed to run migration %s: %w", name, err)
	}

	res = m.GDb.Exec(`insert into migrations (name, created_at) values (?, ?)`, name, time.Now())
	if res.Error != nil {
		return res.Error
	}
	return nil
}
