// Package relayedBlocks projects the Bitcoin headers accepted by the BTC
// relay. The highest relayed backing height drives the BTC leg of the
// request expiry check.
package relayedBlocks

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

// ErrNoRelayedBlocks is returned before any Bitcoin header has been relayed.
var ErrNoRelayedBlocks = errors.New("no relayed blocks indexed yet")

type RelayedBlocksModel struct {
	base.BaseChainState
	DB           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	writeBuffer  *buffer.WriteBuffer

	accumulator *base.ChangeAccumulator
}

func NewRelayedBlocksModel(
	csm *stateManager.ChainStateManager,
	grm *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) (*RelayedBlocksModel, error) {
	model := &RelayedBlocksModel{
		BaseChainState: base.BaseChainState{
			Logger: logger,
		},
		DB:           grm,
		logger:       logger,
		globalConfig: globalConfig,
		writeBuffer:  csm.Buffer(),
		accumulator:  base.NewChangeAccumulator(),
	}

	csm.RegisterState(model, 2)
	return model, nil
}

func (r *RelayedBlocksModel) GetModelName() string {
	return "RelayedBlocksModel"
}

func (r *RelayedBlocksModel) IsInterestingEvent(eventName string) bool {
	return eventName == "btcRelay.StoreMainChainHeader"
}

func (r *RelayedBlocksModel) SetupStateForBlock(block *types.BlockContext) error {
	r.accumulator.Init(block.Number)
	return nil
}

func (r *RelayedBlocksModel) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) (interface{}, error) {
	header, ok := decoded.(*decoder.StoreMainChainHeader)
	if !ok {
		return nil, errors.Errorf("unexpected event %s for relayed blocks model", event.Name)
	}

	row := &types.RelayedBlock{
		BackingHeight:     header.BackingHeight,
		BlockHash:         header.BlockHash,
		RelayedAtAbsolute: block.Number,
		RelayedAtActive:   block.Active,
		BlockTimestamp:    block.BlockTime,
	}
	if header.Relayer != "" {
		row.Relayer = &header.Relayer
	}

	slotID := base.NewSlotID(event.EventID, "")
	r.writeBuffer.Stage("relayed_blocks", slotID, row)
	r.accumulator.Record(block.Number, slotID, []byte(fmt.Sprintf("%d_%s", row.BackingHeight, row.BlockHash)))

	return row, nil
}

// LatestBackingHeight returns the highest Bitcoin height the relay has
// accepted, staged rows included.
func (r *RelayedBlocksModel) LatestBackingHeight() (uint64, error) {
	var latest types.RelayedBlock
	res := r.DB.Order("backing_height desc").Limit(1).Find(&latest)
	if res.Error != nil {
		return 0, res.Error
	}

	highest := latest.BackingHeight
	found := res.RowsAffected > 0

	r.writeBuffer.Range("relayed_blocks", func(_ types.SlotID, entity interface{}) bool {
		row := entity.(*types.RelayedBlock)
		if row.BackingHeight > highest {
			highest = row.BackingHeight
		}
		found = true
		return true
	})

	if !found {
		return 0, ErrNoRelayedBlocks
	}
	return highest, nil
}

func (r *RelayedBlocksModel) GenerateStateRoot(blockNumber uint64) ([]byte, error) {
	inputs := r.accumulator.Inputs(blockNumber)
	if len(inputs) == 0 {
		return nil, nil
	}
	tree, err := r.MerkleizeState(blockNumber, inputs)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}

func (r *RelayedBlocksModel) CleanupProcessedStateForBlock(blockNumber uint64) error {
	r.accumulator.Cleanup(blockNumber)
	return nil
}

func (r *RelayedBlocksModel) DeleteState(startBlockNumber uint64, endBlockNumber uint64) error {
	return r.BaseChainState.DeleteState("relayed_blocks", startBlockNumber, endBlockNumber, "relayed_at_absolute", r.DB)
}
