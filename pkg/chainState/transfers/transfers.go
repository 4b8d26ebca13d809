// Package transfers records token transfers as immutable rows, one per
// transfer event.
package transfers

import (
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

type TransfersModel struct {
	base.BaseChainState
	DB           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	writeBuffer  *buffer.WriteBuffer

	accumulator *base.ChangeAccumulator
}

func NewTransfersModel(
	csm *stateManager.ChainStateManager,
	grm *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) (*TransfersModel, error) {
	model := &TransfersModel{
		BaseChainState: base.BaseChainState{
			Logger: logger,
		},
		DB:           grm,
		logger:       logger,
		globalConfig: globalConfig,
		writeBuffer:  csm.Buffer(),
		accumulator:  base.NewChangeAccumulator(),
	}

	csm.RegisterState(model, 7)
	return model, nil
}

func (t *TransfersModel) GetModelName() string {
	return "TransfersModel"
}

func (t *TransfersModel) IsInterestingEvent(eventName string) bool {
	return eventName == "tokens.Transfer"
}

func (t *TransfersModel) SetupStateForBlock(block *types.BlockContext) error {
	t.accumulator.Init(block.Number)
	return nil
}

func (t *TransfersModel) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) (interface{}, error) {
	record, ok := decoded.(*decoder.Transfer)
	if !ok {
		return nil, errors.Errorf("unexpected event %s for transfers model", event.Name)
	}

	transfer := &types.Transfer{
		ID:             event.EventID,
		FromAccount:    record.From,
		ToAccount:      record.To,
		Currency:       record.Currency.String(),
		Amount:         record.Amount,
		Absolute:       block.Number,
		Active:         block.Active,
		BlockTimestamp: block.BlockTime,
	}

	slotID := types.SlotID(transfer.ID)
	t.writeBuffer.Stage("transfers", slotID, transfer)
	t.accumulator.Record(block.Number, slotID, []byte(transfer.Amount.String()))
	return transfer, nil
}

func (t *TransfersModel) GenerateStateRoot(blockNumber uint64) ([]byte, error) {
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

func (t *TransfersModel) CleanupProcessedStateForBlock(blockNumber uint64) error {
	t.accumulator.Cleanup(blockNumber)
	return nil
}

func (t *TransfersModel) DeleteState(startBlockNumber uint64, endBlockNumber uint64) error {
	return t.BaseChainState.DeleteState("transfers", startBlockNumber, endBlockNumber, "absolute", t.DB)
}
