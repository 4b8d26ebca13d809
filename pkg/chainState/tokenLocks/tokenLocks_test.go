package tokenLocks

import (
	"os"
	"testing"
	"time"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/internal/logger"
	"github.com/interlay/interbtc-indexer/internal/tests"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/currency"
	"github.com/interlay/interbtc-indexer/pkg/decoder"
	"github.com/interlay/interbtc-indexer/pkg/postgres"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup() (
	string,
	*gorm.DB,
	*zap.Logger,
	*config.Config,
	error,
) {
	cfg := config.NewConfig()
	cfg.Debug = os.Getenv(config.Debug) == "true"
	cfg.DatabaseConfig = *tests.GetDbConfigFromEnv()

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	dbname, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, cfg, l)
	if err != nil {
		return dbname, nil, nil, nil, err
	}

	return dbname, grm, l, cfg, nil
}

func Test_TokenLocks(t *testing.T) {
	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}

	csm := stateManager.NewChainStateManager(nil, l, grm)
	model, err := NewTokenLocksModel(csm, grm, l, cfg)
	assert.Nil(t, err)

	intr := currency.NewNativeToken(currency.Token_INTR)
	lockEvent := func(blockNumber uint64, index string) *storage.Event {
		return &storage.Event{EventID: index, BlockNumber: blockNumber, Name: "tokens.LockSet"}
	}

	t.Run("Setting and re-setting a lock updates the same row", func(t *testing.T) {
		blockTime := time.Now().UTC()
		block := &types.BlockContext{Number: 100, Hash: "hash-100", BlockTime: blockTime, Active: 100}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		change, err := model.HandleDecodedEvent(block, lockEvent(100, "0000100-000001-aaaaa"),
			&decoder.LockSet{LockID: "vesting ", Currency: intr, Account: "acc-1", Amount: decimal.NewFromInt(1000)})
		assert.Nil(t, err)
		lock := change.(*types.TokenLock)
		assert.Equal(t, "1000", lock.Amount.String())
		assert.Equal(t, uint64(100), lock.SetAbsolute)

		change, err = model.HandleDecodedEvent(block, lockEvent(100, "0000100-000002-aaaaa"),
			&decoder.LockSet{LockID: "vesting ", Currency: intr, Account: "acc-1", Amount: decimal.NewFromInt(800)})
		assert.Nil(t, err)
		lock = change.(*types.TokenLock)
		assert.Equal(t, "800", lock.Amount.String())

		_, err = csm.CommitFinalState(block)
		assert.Nil(t, err)

		var count int64
		res := grm.Raw(`select count(*) from token_locks`).Scan(&count)
		assert.Nil(t, res.Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Removal keeps the row and marks when the lock disappeared", func(t *testing.T) {
		blockTime := time.Now().UTC()
		block := &types.BlockContext{Number: 110, Hash: "hash-110", BlockTime: blockTime, Active: 110}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000110-000001-aaaaa", BlockNumber: block.Number, Name: "tokens.LockRemoved"},
			&decoder.LockRemoved{LockID: "vesting ", Currency: intr, Account: "acc-1"})
		assert.Nil(t, err)
		lock := change.(*types.TokenLock)
		assert.NotNil(t, lock.RemovedAbsolute)
		assert.Equal(t, uint64(110), *lock.RemovedAbsolute)

		_, err = csm.CommitFinalState(block)
		assert.Nil(t, err)
	})

	t.Run("A re-set after removal opens a fresh lock and keeps the closed one", func(t *testing.T) {
		blockTime := time.Now().UTC()
		block := &types.BlockContext{Number: 120, Hash: "hash-120", BlockTime: blockTime, Active: 120}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		change, err := model.HandleDecodedEvent(block, lockEvent(120, "0000120-000001-aaaaa"),
			&decoder.LockSet{LockID: "vesting ", Currency: intr, Account: "acc-1", Amount: decimal.NewFromInt(300)})
		assert.Nil(t, err)
		lock := change.(*types.TokenLock)
		assert.Equal(t, uint64(120), lock.SetAbsolute)
		assert.Nil(t, lock.RemovedAbsolute)
		assert.Equal(t, "300", lock.Amount.String())

		_, err = csm.CommitFinalState(block)
		assert.Nil(t, err)

		var locks []*types.TokenLock
		res := grm.Raw(`select * from token_locks where account_id = 'acc-1' and lock_id = 'vesting ' order by set_absolute asc`).Scan(&locks)
		assert.Nil(t, res.Error)
		assert.Equal(t, 2, len(locks))
		assert.NotNil(t, locks[0].RemovedAbsolute)
		assert.Equal(t, uint64(110), *locks[0].RemovedAbsolute)
		assert.Equal(t, "800", locks[0].Amount.String())
		assert.Nil(t, locks[1].RemovedAbsolute)
		assert.Equal(t, "300", locks[1].Amount.String())
	})

	t.Run("Removing an unknown lock is skipped", func(t *testing.T) {
		block := &types.BlockContext{Number: 130, Hash: "hash-130", BlockTime: time.Now().UTC(), Active: 130}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000130-000001-aaaaa", BlockNumber: block.Number, Name: "tokens.LockRemoved"},
			&decoder.LockRemoved{LockID: "unknown ", Currency: intr, Account: "acc-1"})
		assert.Nil(t, err)
		assert.Nil(t, change)
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
