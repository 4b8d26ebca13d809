// Package supply maintains the circulating supply series per token symbol.
// Locks and reservations move balances out of circulation, transfers
// touching a system account move them in or out of the system bucket, and
// bridge executions mint or burn the wrapped token's total issuance.
package supply

import (
	"fmt"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/chainState/aggregator"
	"github.com/interlay/interbtc-indexer/pkg/chainState/base"
	"github.com/interlay/interbtc-indexer/pkg/chainState/buffer"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/decoder"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var interestingEvents = map[string]bool{
	"tokens.Locked":        true,
	"tokens.Unlocked":      true,
	"tokens.Reserved":      true,
	"tokens.Unreserved":    true,
	"tokens.Transfer":      true,
	"issue.ExecuteIssue":   true,
	"redeem.ExecuteRedeem": true,
}

type SupplyModel struct {
	base.BaseChainState
	DB           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	writeBuffer  *buffer.WriteBuffer
	supplies     *aggregator.Engine

	accumulator *base.ChangeAccumulator
}

func NewSupplyModel(
	csm *stateManager.ChainStateManager,
	grm *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) (*SupplyModel, error) {
	model := &SupplyModel{
		BaseChainState: base.BaseChainState{
			Logger: logger,
		},
		DB:           grm,
		logger:       logger,
		globalConfig: globalConfig,
		writeBuffer:  csm.Buffer(),
		supplies:     aggregator.NewEngine(grm, csm.Buffer(), logger, globalConfig),
		accumulator:  base.NewChangeAccumulator(),
	}

	csm.RegisterState(model, 10)
	return model, nil
}

func (s *SupplyModel) GetModelName() string {
	return "SupplyModel"
}

func (s *SupplyModel) IsInterestingEvent(eventName string) bool {
	return interestingEvents[eventName]
}

func (s *SupplyModel) SetupStateForBlock(block *types.BlockContext) error {
	s.accumulator.Init(block.Number)
	return nil
}

func (s *SupplyModel) update(
	block *types.BlockContext,
	event *storage.Event,
	symbol string,
	component aggregator.SupplyComponent,
	delta decimal.Decimal,
) error {
	if err := s.supplies.UpdateSupply(symbol, block.BlockTime, event.EventID, component, delta); err != nil {
		return err
	}
	s.accumulator.Record(block.Number, base.NewSlotID(event.EventID, symbol),
		[]byte(fmt.Sprintf("%s_%s", component, delta.String())))
	return nil
}

func (s *SupplyModel) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) (interface{}, error) {
	switch record := decoded.(type) {
	case *decoder.BalanceUpdate:
		symbol := record.Currency.String()
		var component aggregator.SupplyComponent
		delta := record.Amount
		switch record.Kind {
		case decoder.BalanceUpdate_Locked:
			component = aggregator.SupplyComponent_Locked
		case decoder.BalanceUpdate_Unlocked:
			component = aggregator.SupplyComponent_Locked
			delta = delta.Neg()
		case decoder.BalanceUpdate_Reserved:
			component = aggregator.SupplyComponent_Reserved
		case decoder.BalanceUpdate_Unreserved:
			component = aggregator.SupplyComponent_Reserved
			delta = delta.Neg()
		default:
			return nil, errors.Errorf("unexpected balance update kind %s in event %s", record.Kind, event.EventID)
		}
		if err := s.update(block, event, symbol, component, delta); err != nil {
			return nil, err
		}
		return nil, nil

	case *decoder.Transfer:
		// Transfers only move the system bucket when exactly one endpoint
		// is a system account; system-to-system and user-to-user transfers
		// leave circulation unchanged.
		fromSystem := s.globalConfig.IsSystemAccount(record.From)
		toSystem := s.globalConfig.IsSystemAccount(record.To)
		if fromSystem == toSystem {
			return nil, nil
		}
		delta := record.Amount
		if fromSystem {
			delta = delta.Neg()
		}
		if err := s.update(block, event, record.Currency.String(), aggregator.SupplyComponent_SystemAccounts, delta); err != nil {
			return nil, err
		}
		return nil, nil

	case *decoder.ExecuteIssue:
		if err := s.update(block, event, s.globalConfig.Chain.WrappedSymbol, aggregator.SupplyComponent_TotalIssuance, record.Amount); err != nil {
			return nil, err
		}
		return nil, nil

	case *decoder.ExecuteRedeem:
		if err := s.update(block, event, s.globalConfig.Chain.WrappedSymbol, aggregator.SupplyComponent_TotalIssuance, record.Amount.Neg()); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return nil, errors.Errorf("unexpected event %s for supply model", event.Name)
}

func (s *SupplyModel) GenerateStateRoot(blockNumber uint64) ([]byte, error) {
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

func (s *SupplyModel) CleanupProcessedStateForBlock(blockNumber uint64) error {
	s.accumulator.Cleanup(blockNumber)
	return nil
}

func (s *SupplyModel) DeleteState(startBlockNumber uint64, endBlockNumber uint64) error {
	// Supply buckets carry no block column; the range is resolved through
	// the raw blocks table, which outlives model state deletes.
	res := s.DB.Exec(
		`delete from cumulative_circulating_supplies
		 where till_timestamp >= (select block_time from blocks where number = ?)`,
		startBlockNumber,
	)
	return res.Error
}
