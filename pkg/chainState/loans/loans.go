// Package loans records lending market deposits and withdrawals as
// immutable rows, one per event.
package loans

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

var interestingEvents = map[string]bool{
	"loans.Deposited": true,
	"loans.Withdrawn": true,
}

type LoansModel struct {
	base.BaseChainState
	DB           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	writeBuffer  *buffer.WriteBuffer

	accumulator *base.ChangeAccumulator
}

func NewLoansModel(
	csm *stateManager.ChainStateManager,
	grm *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) (*LoansModel, error) {
	model := &LoansModel{
		BaseChainState: base.BaseChainState{
			Logger: logger,
		},
		DB:           grm,
		logger:       logger,
		globalConfig: globalConfig,
		writeBuffer:  csm.Buffer(),
		accumulator:  base.NewChangeAccumulator(),
	}

	csm.RegisterState(model, 9)
	return model, nil
}

func (l *LoansModel) GetModelName() string {
	return "LoansModel"
}

func (l *LoansModel) IsInterestingEvent(eventName string) bool {
	return interestingEvents[eventName]
}

func (l *LoansModel) SetupStateForBlock(block *types.BlockContext) error {
	l.accumulator.Init(block.Number)
	return nil
}

func (l *LoansModel) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) (interface{}, error) {
	record, ok := decoded.(*decoder.LoanDeposit)
	if !ok {
		return nil, errors.Errorf("unexpected event %s for loans model", event.Name)
	}

	depositType := types.LoanDepositType_Deposit
	if record.Withdrawal {
		depositType = types.LoanDepositType_Withdrawal
	}

	deposit := &types.LoanDeposit{
		ID:             event.EventID,
		Type:           depositType,
		AccountID:      record.Account,
		Symbol:         record.Currency.String(),
		Amount:         record.Amount,
		Absolute:       block.Number,
		BlockTimestamp: block.BlockTime,
	}

	slotID := types.SlotID(deposit.ID)
	l.writeBuffer.Stage("loan_deposits", slotID, deposit)
	l.accumulator.Record(block.Number, slotID, []byte(deposit.Amount.String()))
	return deposit, nil
}

func (l *LoansModel) GenerateStateRoot(blockNumber uint64) ([]byte, error) {
	inputs := l.accumulator.Inputs(blockNumber)
	if len(inputs) == 0 {
		return nil, nil
	}
	tree, err := l.MerkleizeState(blockNumber, inputs)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}

func (l *LoansModel) CleanupProcessedStateForBlock(blockNumber uint64) error {
	l.accumulator.Cleanup(blockNumber)
	return nil
}

func (l *LoansModel) DeleteState(startBlockNumber uint64, endBlockNumber uint64) error {
	return l.BaseChainState.DeleteState("loan_deposits", startBlockNumber, endBlockNumber, "absolute", l.DB)
}
