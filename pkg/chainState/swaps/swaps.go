// Package swaps decomposes DEX trades into per-leg rows and feeds the
// trading volume and trade count series. A trade over path [A, B, C]
// produces two legs, A->B and B->C; intermediate legs settle to the trader,
// the final leg to the recipient.
package swaps

import (
	"fmt"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/chainState/aggregator"
	"github.com/interlay/interbtc-indexer/pkg/chainState/base"
	"github.com/interlay/interbtc-indexer/pkg/chainState/buffer"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/currency"
	"github.com/interlay/interbtc-indexer/pkg/decoder"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SwapsModel struct {
	base.BaseChainState
	DB           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	writeBuffer  *buffer.WriteBuffer
	volumes      *aggregator.Engine

	accumulator *base.ChangeAccumulator
}

func NewSwapsModel(
	csm *stateManager.ChainStateManager,
	grm *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) (*SwapsModel, error) {
	model := &SwapsModel{
		BaseChainState: base.BaseChainState{
			Logger: logger,
		},
		DB:           grm,
		logger:       logger,
		globalConfig: globalConfig,
		writeBuffer:  csm.Buffer(),
		volumes:      aggregator.NewEngine(grm, csm.Buffer(), logger, globalConfig),
		accumulator:  base.NewChangeAccumulator(),
	}

	csm.RegisterState(model, 8)
	return model, nil
}

func (s *SwapsModel) GetModelName() string {
	return "SwapsModel"
}

func (s *SwapsModel) IsInterestingEvent(eventName string) bool {
	return eventName == "dexGeneral.AssetSwap"
}

func (s *SwapsModel) SetupStateForBlock(block *types.BlockContext) error {
	s.accumulator.Init(block.Number)
	return nil
}

func (s *SwapsModel) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) (interface{}, error) {
	record, ok := decoded.(*decoder.AssetSwap)
	if !ok {
		return nil, errors.Errorf("unexpected event %s for swaps model", event.Name)
	}
	if len(record.Path) < 2 || len(record.Amounts) != len(record.Path) {
		return nil, errors.Errorf("malformed swap path in event %s: %d currencies, %d amounts",
			event.EventID, len(record.Path), len(record.Amounts))
	}

	legs := make([]*types.Swap, 0, len(record.Path)-1)
	for i := 0; i < len(record.Path)-1; i++ {
		from := record.Path[i]
		to := record.Path[i+1]
		toAccount := record.Trader
		if i == len(record.Path)-2 {
			toAccount = record.Recipient
		}

		leg := &types.Swap{
			ID:             fmt.Sprintf("%s_leg%d", event.EventID, i),
			PoolID:         currency.InferPoolID(from, to),
			FromAccount:    record.Trader,
			ToAccount:      toAccount,
			FromCurrency:   from.String(),
			ToCurrency:     to.String(),
			FromAmount:     record.Amounts[i],
			ToAmount:       record.Amounts[i+1],
			Absolute:       block.Number,
			Active:         block.Active,
			BlockTimestamp: block.BlockTime,
		}
		legs = append(legs, leg)

		slotID := types.SlotID(leg.ID)
		s.writeBuffer.Stage("swaps", slotID, leg)
		s.accumulator.Record(block.Number, slotID,
			[]byte(fmt.Sprintf("%s_%s_%s", leg.PoolID, leg.FromAmount.String(), leg.ToAmount.String())))

		// Pool volume counts both sides of the leg.
		if err := s.volumes.AddDexVolumePerPool(leg.PoolID, leg.FromCurrency, block.BlockTime, event.EventID, leg.FromAmount); err != nil {
			return nil, err
		}
		if err := s.volumes.AddDexVolumePerPool(leg.PoolID, leg.ToCurrency, block.BlockTime, event.EventID, leg.ToAmount); err != nil {
			return nil, err
		}
		if err := s.volumes.IncrTradeCount(leg.PoolID, block.BlockTime, event.EventID); err != nil {
			return nil, err
		}
	}

	// Account volume counts the trade's endpoints only: what the trader
	// paid in and what the recipient received.
	first := len(record.Path) - 1
	if err := s.volumes.AddDexVolumePerAccount(record.Trader, record.Path[0].String(), block.BlockTime, event.EventID, record.Amounts[0]); err != nil {
		return nil, err
	}
	if err := s.volumes.AddDexVolumePerAccount(record.Recipient, record.Path[first].String(), block.BlockTime, event.EventID, record.Amounts[first]); err != nil {
		return nil, err
	}

	return legs, nil
}

func (s *SwapsModel) GenerateStateRoot(blockNumber uint64) ([]byte, error) {
	inputs := s.accumulator.Inputs(blockNumber)
	if len(inputs) == 0 {
		return nil, nil
	}
	tree, err := s.MerkleizeState(blockNumber, inputs)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}

func (s *SwapsModel) CleanupProcessedStateForBlock(blockNumber uint64) error {
	s.accumulator.Cleanup(blockNumber)
	return nil
}

func (s *SwapsModel) DeleteState(startBlockNumber uint64, endBlockNumber uint64) error {
	if err := s.BaseChainState.DeleteState("swaps", startBlockNumber, endBlockNumber, "absolute", s.DB); err != nil {
		return err
	}
	return s.volumes.DeleteDexState(startBlockNumber)
}
