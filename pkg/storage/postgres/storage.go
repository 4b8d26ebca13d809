package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/postgres"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresBlockStore struct {
	Db           *gorm.DB
	Logger       *zap.Logger
	GlobalConfig *config.Config
}

func NewPostgresBlockStore(db *gorm.DB, l *zap.Logger, cfg *config.Config) *PostgresBlockStore {
	return &PostgresBlockStore{
		Db:           db,
		Logger:       l,
		GlobalConfig: cfg,
	}
}

var _ storage.BlockStore = (*PostgresBlockStore)(nil)

func (s *PostgresBlockStore) InsertBlockAtHeight(
	blockNumber uint64,
	hash string,
	parentHash string,
	specVersion uint32,
	blockTime uint64,
) (*storage.Block, error) {
	block := &storage.Block{
		Number:      blockNumber,
		Hash:        hash,
		ParentHash:  parentHash,
		SpecVersion: specVersion,
		BlockTime:   time.Unix(int64(blockTime), 0).UTC(),
	}

	res := s.Db.Model(&storage.Block{}).Clauses(clause.Returning{}).Create(&block)
	if res.Error != nil {
		// A crash between block insert and state commit leaves the block
		// behind; re-processing it is expected, not fatal.
		if postgres.IsDuplicateKeyError(res.Error) {
			s.Logger.Sugar().Warnw("Block already exists, reusing it",
				zap.Uint64("blockNumber", blockNumber),
			)
			return s.GetBlockByNumber(blockNumber)
		}
		return nil, fmt.Errorf("failed to insert block with number '%d': %w", blockNumber, res.Error)
	}
	return block, nil
}

func (s *PostgresBlockStore) InsertBlockEvent(event *storage.Event, ignoreOnConflict bool) (*storage.Event, error) {
	clauses := []clause.Expression{clause.Returning{}}
	if ignoreOnConflict {
		clauses = append(clauses, clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		})
	}
	res := s.Db.Model(&storage.Event{}).Clauses(clauses...).Create(&event)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to insert event '%s': %w", event.EventID, res.Error)
	}
	return event, nil
}

func (s *PostgresBlockStore) InsertBlockExtrinsic(extrinsic *storage.Extrinsic, ignoreOnConflict bool) (*storage.Extrinsic, error) {
	clauses := []clause.Expression{clause.Returning{}}
	if ignoreOnConflict {
		clauses = append(clauses, clause.OnConflict{
			Columns:   []clause.Column{{Name: "extrinsic_id"}},
			DoNothing: true,
		})
	}
	res := s.Db.Model(&storage.Extrinsic{}).Clauses(clauses...).Create(&extrinsic)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to insert extrinsic '%s': %w", extrinsic.ExtrinsicID, res.Error)
	}
	return extrinsic, nil
}

func (s *PostgresBlockStore) GetBlockByNumber(blockNumber uint64) (*storage.Block, error) {
	block := &storage.Block{}
	res := s.Db.Model(&storage.Block{}).Where("number = ?", blockNumber).First(&block)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return block, nil
}

func (s *PostgresBlockStore) GetLatestBlock() (*storage.Block, error) {
	block := &storage.Block{}
	res := s.Db.Model(&storage.Block{}).Order("number desc").First(&block)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return block, nil
}

func (s *PostgresBlockStore) DeleteCorruptedState(startBlock uint64, endBlock uint64) error {
	for _, query := range []string{
		`delete from events where block_number >= @startBlock and block_number <= @endBlock`,
		`delete from extrinsics where block_number >= @startBlock and block_number <= @endBlock`,
		`delete from state_roots where block_number >= @startBlock and block_number <= @endBlock`,
		`delete from blocks where number >= @startBlock and number <= @endBlock`,
	} {
		res := s.Db.Exec(query,
			map[string]interface{}{"startBlock": startBlock, "endBlock": endBlock},
		)
		if res.Error != nil {
			s.Logger.Sugar().Errorw("Failed to delete corrupted state", zap.Error(res.Error))
			return res.Error
		}
	}
	return nil
}
