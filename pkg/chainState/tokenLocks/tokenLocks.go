// Package tokenLocks records named balance locks per account and currency.
// A lock set with an id already in place replaces the amount; removal keeps
// the row and marks when the lock disappeared. Setting the same lock id
// again after removal opens a new row, so closed locks stay queryable.
package tokenLocks

import (
	"fmt"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/chainState/base"
	"github.com/interlay/interbtc-indexer/pkg/chainState/buffer"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/decoder"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var interestingEvents = map[string]bool{
	"tokens.LockSet":     true,
	"tokens.LockRemoved": true,
}

type TokenLocksModel struct {
	base.BaseChainState
	DB           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	writeBuffer  *buffer.WriteBuffer

	accumulator *base.ChangeAccumulator
}

func NewTokenLocksModel(
	csm *stateManager.ChainStateManager,
	grm *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) (*TokenLocksModel, error) {
	model := &TokenLocksModel{
		BaseChainState: base.BaseChainState{
			Logger: logger,
		},
		DB:           grm,
		logger:       logger,
		globalConfig: globalConfig,
		writeBuffer:  csm.Buffer(),
		accumulator:  base.NewChangeAccumulator(),
	}

	csm.RegisterState(model, 6)
	return model, nil
}

func (t *TokenLocksModel) GetModelName() string {
	return "TokenLocksModel"
}

func (t *TokenLocksModel) IsInterestingEvent(eventName string) bool {
	return interestingEvents[eventName]
}

func (t *TokenLocksModel) SetupStateForBlock(block *types.BlockContext) error {
	t.accumulator.Init(block.Number)
	return nil
}

// lockRowID keys one generation of a lock. The set height suffix keeps
// earlier generations of the same lock id as separate rows.
func lockRowID(account string, currency string, lockID string, setAbsolute uint64) string {
	return fmt.Sprintf("%s_%s_%s_%d", account, currency, lockID, setAbsolute)
}

// getCurrentLock resolves the latest generation of a lock, staged rows
// taking precedence over their persisted versions.
func (t *TokenLocksModel) getCurrentLock(account string, currency string, lockID string) (*types.TokenLock, error) {
	var current *types.TokenLock
	t.writeBuffer.Range("token_locks", func(_ types.SlotID, entity interface{}) bool {
		lock := entity.(*types.TokenLock)
		if lock.AccountID != account || lock.Currency != currency || lock.LockID != lockID {
			return true
		}
		if current == nil || lock.SetAbsolute >= current.SetAbsolute {
			current = lock
		}
		return true
	})

	var persisted types.TokenLock
	res := t.DB.
		Where("account_id = ? and currency = ? and lock_id = ?", account, currency, lockID).
		Order("set_absolute desc").
		Limit(1).
		Find(&persisted)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 && (current == nil || persisted.SetAbsolute > current.SetAbsolute) {
		current = &persisted
	}
	return current, nil
}

func (t *TokenLocksModel) stage(block *types.BlockContext, lock *types.TokenLock) {
	slotID := types.SlotID(lock.ID)
	t.writeBuffer.Stage("token_locks", slotID, lock)
	t.accumulator.Record(block.Number, slotID, []byte(lock.Amount.String()))
}

func (t *TokenLocksModel) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) (interface{}, error) {
	switch record := decoded.(type) {
	case *decoder.LockSet:
		lock, err := t.getCurrentLock(record.Account, record.Currency.String(), record.LockID)
		if err != nil {
			return nil, err
		}
		if lock == nil || lock.RemovedAbsolute != nil {
			// A re-set after removal opens a new generation; the closed
			// row stays behind untouched.
			lock = &types.TokenLock{
				ID:           lockRowID(record.Account, record.Currency.String(), record.LockID, block.Number),
				AccountID:    record.Account,
				Currency:     record.Currency.String(),
				LockID:       record.LockID,
				SetAbsolute:  block.Number,
				SetTimestamp: block.BlockTime,
			}
		}
		lock.Amount = record.Amount
		t.stage(block, lock)
		return lock, nil

	case *decoder.LockRemoved:
		lock, err := t.getCurrentLock(record.Account, record.Currency.String(), record.LockID)
		if err != nil {
			return nil, err
		}
		if lock == nil || lock.RemovedAbsolute != nil {
			t.logger.Sugar().Warnw("Removal of unknown token lock",
				zap.String("account", record.Account),
				zap.String("lockId", record.LockID),
				zap.Uint64("blockNumber", block.Number),
			)
			return nil, nil
		}
		blockNumber := block.Number
		blockTime := block.BlockTime
		lock.RemovedAbsolute = &blockNumber
		lock.RemovedTimestamp = &blockTime
		t.stage(block, lock)
		return lock, nil
	}
	return nil, errors.Errorf("unexpected event %s for token locks model", event.Name)
}

func (t *TokenLocksModel) GenerateStateRoot(blockNumber uint64) ([]byte, error) {
	inputs := t.accumulator.Inputs(blockNumber)
	if len(inputs) == 0 {
		return nil, nil
	}
	tree, err := t.MerkleizeState(blockNumber, inputs)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}

func (t *TokenLocksModel) CleanupProcessedStateForBlock(blockNumber uint64) error {
	t.accumulator.Cleanup(blockNumber)
	return nil
}

func (t *TokenLocksModel) DeleteState(startBlockNumber uint64, endBlockNumber uint64) error {
	return t.BaseChainState.DeleteState("token_locks", startBlockNumber, endBlockNumber, "set_absolute", t.DB)
}
