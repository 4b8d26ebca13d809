// Package redeems tracks the lifecycle of redeem requests. A cancelled
// redeem records whether the redeemer chose reimbursement or a retry;
// executions feed the cumulative redeemed volume series.
package redeems

import (
	"fmt"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/chainState/aggregator"
	"github.com/interlay/interbtc-indexer/pkg/chainState/base"
	"github.com/interlay/interbtc-indexer/pkg/chainState/buffer"
	"github.com/interlay/interbtc-indexer/pkg/chainState/relayedBlocks"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/chainState/vaults"
	"github.com/interlay/interbtc-indexer/pkg/decoder"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/interlay/interbtc-indexer/pkg/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var interestingEvents = map[string]bool{
	"redeem.RequestRedeem":      true,
	"redeem.ExecuteRedeem":      true,
	"redeem.CancelRedeem":       true,
	"redeem.RedeemPeriodChange": true,
}

type RedeemsModel struct {
	base.BaseChainState
	DB           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	writeBuffer  *buffer.WriteBuffer
	volumes      *aggregator.Engine

	relayedBlocks *relayedBlocks.RelayedBlocksModel
	vaults        *vaults.VaultsModel

	accumulator *base.ChangeAccumulator

	currentPeriod       uint64
	currentPeriodLoaded bool
}

func NewRedeemsModel(
	csm *stateManager.ChainStateManager,
	rbm *relayedBlocks.RelayedBlocksModel,
	vm *vaults.VaultsModel,
	grm *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) (*RedeemsModel, error) {
	model := &RedeemsModel{
		BaseChainState: base.BaseChainState{
			Logger: logger,
		},
		DB:            grm,
		logger:        logger,
		globalConfig:  globalConfig,
		writeBuffer:   csm.Buffer(),
		volumes:       aggregator.NewEngine(grm, csm.Buffer(), logger, globalConfig),
		relayedBlocks: rbm,
		vaults:        vm,
		accumulator:   base.NewChangeAccumulator(),
	}

	csm.RegisterState(model, 5)
	return model, nil
}

func (r *RedeemsModel) GetModelName() string {
	return "RedeemsModel"
}

func (r *RedeemsModel) IsInterestingEvent(eventName string) bool {
	return interestingEvents[eventName]
}

func (r *RedeemsModel) SetupStateForBlock(block *types.BlockContext) error {
	r.accumulator.Init(block.Number)
	return nil
}

// CurrentPeriod returns the redeem period in force, in active blocks.
func (r *RedeemsModel) CurrentPeriod() (uint64, error) {
	if r.currentPeriodLoaded {
		return r.currentPeriod, nil
	}
	var latest types.RedeemPeriod
	res := r.DB.Order("absolute desc").Limit(1).Find(&latest)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.currentPeriod = latest.Value
	} else {
		r.currentPeriod = r.globalConfig.PeriodsConfig.RedeemPeriodBootstrap
	}
	r.currentPeriodLoaded = true
	return r.currentPeriod, nil
}

// GetRedeem resolves a redeem request by id, staged rows first.
func (r *RedeemsModel) GetRedeem(redeemID string) (*types.Redeem, error) {
	if staged, ok := r.writeBuffer.Get("redeems", types.SlotID(redeemID)); ok {
		return staged.(*types.Redeem), nil
	}
	var redeem types.Redeem
	res := r.DB.Where("id = ?", redeemID).Limit(1).Find(&redeem)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &redeem, nil
}

func (r *RedeemsModel) stage(block *types.BlockContext, redeem *types.Redeem) {
	slotID := types.SlotID(redeem.ID)
	r.writeBuffer.Stage("redeems", slotID, redeem)
	r.accumulator.Record(block.Number, slotID,
		[]byte(fmt.Sprintf("%s_%s", redeem.Status, redeem.AmountWrapped.String())))
}

func (r *RedeemsModel) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) (interface{}, error) {
	switch record := decoded.(type) {
	case *decoder.RequestRedeem:
		return r.handleRequestRedeem(block, record)
	case *decoder.ExecuteRedeem:
		return r.handleExecuteRedeem(block, event, record)
	case *decoder.CancelRedeem:
		return r.handleCancelRedeem(block, record)
	case *decoder.PeriodChange:
		return r.handlePeriodChange(block, event, record)
	}
	return nil, errors.Errorf("unexpected event %s for redeems model", event.Name)
}

func (r *RedeemsModel) handleRequestRedeem(block *types.BlockContext, record *decoder.RequestRedeem) (interface{}, error) {
	vault, err := r.vaults.GetVault(record.Vault.String())
	if err != nil {
		return nil, err
	}
	if vault == nil {
		r.logger.Sugar().Warnw("Redeem request against unknown vault",
			zap.String("redeemId", record.RedeemID),
			zap.String("vaultId", record.Vault.String()),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, nil
	}

	period, err := r.CurrentPeriod()
	if err != nil {
		return nil, err
	}

	backingHeight, err := r.relayedBlocks.LatestBackingHeight()
	if err != nil {
		if !errors.Is(err, relayedBlocks.ErrNoRelayedBlocks) {
			return nil, err
		}
		r.logger.Sugar().Warnw("No relayed BTC header yet, opening redeem request at backing height 0",
			zap.String("redeemId", record.RedeemID),
			zap.Uint64("blockNumber", block.Number),
		)
		backingHeight = 0
	}

	redeem := &types.Redeem{
		ID:                   record.RedeemID,
		Status:               types.RequestStatus_Pending,
		AmountWrapped:        record.Amount,
		BridgeFee:            record.Fee,
		BtcTransferFee:       record.TransferFee,
		VaultID:              record.Vault.String(),
		UserParachainAddress: record.Redeemer,
		OpeningAbsolute:      block.Number,
		OpeningActive:        block.Active,
		OpeningTimestamp:     block.BlockTime,
		BackingHeight:        backingHeight,
		Period:               period,
	}
	if record.UserBtcAddress != nil {
		if encoded, ok := record.UserBtcAddress.Encode(r.globalConfig.Chain.BitcoinNetwork); ok {
			redeem.UserBackingAddress = &encoded
		}
	}

	r.stage(block, redeem)
	return redeem, nil
}

func (r *RedeemsModel) handleExecuteRedeem(block *types.BlockContext, event *storage.Event, record *decoder.ExecuteRedeem) (interface{}, error) {
	redeem, err := r.GetRedeem(record.RedeemID)
	if err != nil {
		return nil, err
	}
	if redeem == nil {
		// Tolerated data anomaly, not a fatal indexer error.
		r.logger.Sugar().Warnw("Execution for unknown redeem request",
			zap.String("redeemId", record.RedeemID),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, nil
	}
	if redeem.Status != types.RequestStatus_Pending {
		// Terminal statuses never regress.
		r.logger.Sugar().Warnw("Execution for non-pending redeem request",
			zap.String("redeemId", record.RedeemID),
			zap.String("status", string(redeem.Status)),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, nil
	}

	blockNumber := block.Number
	blockTime := block.BlockTime

	redeem.Status = types.RequestStatus_Completed
	redeem.ExecutionAbsolute = &blockNumber
	redeem.ExecutionTimestamp = &blockTime
	r.stage(block, redeem)

	if err := r.volumes.AddVolume(types.VolumeType_Redeemed, block.BlockTime, event.EventID, redeem.AmountWrapped); err != nil {
		return nil, err
	}
	_, wrapped, collateral, ok := utils.SplitVaultID(redeem.VaultID)
	if ok {
		if err := r.volumes.AddVolumePerCurrencyPair(types.VolumeType_Redeemed, wrapped, collateral, block.BlockTime, event.EventID, redeem.AmountWrapped); err != nil {
			return nil, err
		}
	}

	return redeem, nil
}

func (r *RedeemsModel) handleCancelRedeem(block *types.BlockContext, record *decoder.CancelRedeem) (interface{}, error) {
	redeem, err := r.GetRedeem(record.RedeemID)
	if err != nil {
		return nil, err
	}
	if redeem == nil {
		r.logger.Sugar().Warnw("Cancellation for unknown redeem request",
			zap.String("redeemId", record.RedeemID),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, nil
	}
	if redeem.Status != types.RequestStatus_Pending {
		r.logger.Sugar().Warnw("Cancellation for non-pending redeem request",
			zap.String("redeemId", record.RedeemID),
			zap.String("status", string(redeem.Status)),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, nil
	}

	blockNumber := block.Number
	blockTime := block.BlockTime
	slashed := record.SlashedAmount
	reimbursed := record.Reimbursed

	// The redeemer either gets reimbursed on the parachain or retries the
	// BTC transfer; the cancellation event carries the choice.
	if reimbursed {
		redeem.Status = types.RequestStatus_Reimbursed
	} else {
		redeem.Status = types.RequestStatus_Retried
	}
	redeem.CancellationAbsolute = &blockNumber
	redeem.CancellationTimestamp = &blockTime
	redeem.CancellationSlashedCollateral = &slashed
	redeem.CancellationReimbursed = &reimbursed
	r.stage(block, redeem)
	return redeem, nil
}

func (r *RedeemsModel) handlePeriodChange(block *types.BlockContext, event *storage.Event, record *decoder.PeriodChange) (interface{}, error) {
	if _, err := r.CurrentPeriod(); err != nil {
		return nil, err
	}
	r.currentPeriod = record.Period

	row := &types.RedeemPeriod{
		ID:             event.EventID,
		Value:          record.Period,
		Absolute:       block.Number,
		Active:         block.Active,
		BlockTimestamp: block.BlockTime,
	}
	slotID := types.SlotID(event.EventID)
	r.writeBuffer.Stage("redeem_periods", slotID, row)
	r.accumulator.Record(block.Number, slotID, []byte(fmt.Sprintf("period_%d", record.Period)))
	return row, nil
}

// FinalizeBlock expires pending redeem requests whose period has elapsed on
// both chains, mirroring the issue sweep.
func (r *RedeemsModel) FinalizeBlock(block *types.BlockContext) error {
	latestRelayed, err := r.relayedBlocks.LatestBackingHeight()
	if err != nil {
		if errors.Is(err, relayedBlocks.ErrNoRelayedBlocks) {
			return nil
		}
		return err
	}

	candidates, err := r.pendingRedeems()
	if err != nil {
		return err
	}

	for _, redeem := range candidates {
		if !r.isExpired(redeem, latestRelayed, block.Active) {
			continue
		}
		redeem.Status = types.RequestStatus_Expired
		r.stage(block, redeem)
		r.logger.Sugar().Infow("Redeem request expired",
			zap.String("redeemId", redeem.ID),
			zap.Uint64("blockNumber", block.Number),
		)
	}
	return nil
}

func (r *RedeemsModel) isExpired(redeem *types.Redeem, latestRelayed uint64, latestActive uint64) bool {
	btcPeriod := utils.CeilDiv(redeem.Period, r.globalConfig.Chain.BlocksPerBtcBlock)
	return redeem.BackingHeight+btcPeriod < latestRelayed &&
		redeem.OpeningActive+redeem.Period < latestActive
}

func (r *RedeemsModel) pendingRedeems() ([]*types.Redeem, error) {
	var persisted []*types.Redeem
	res := r.DB.Where("status = ?", types.RequestStatus_Pending).Find(&persisted)
	if res.Error != nil {
		return nil, res.Error
	}

	byID := make(map[string]*types.Redeem, len(persisted))
	order := make([]string, 0, len(persisted))
	for _, redeem := range persisted {
		byID[redeem.ID] = redeem
		order = append(order, redeem.ID)
	}

	r.writeBuffer.Range("redeems", func(_ types.SlotID, entity interface{}) bool {
		redeem := entity.(*types.Redeem)
		if _, ok := byID[redeem.ID]; !ok && redeem.Status == types.RequestStatus_Pending {
			order = append(order, redeem.ID)
		}
		byID[redeem.ID] = redeem
		return true
	})

	pending := make([]*types.Redeem, 0, len(order))
	for _, id := range order {
		if byID[id].Status == types.RequestStatus_Pending {
			pending = append(pending, byID[id])
		}
	}
	return pending, nil
}

func (r *RedeemsModel) GenerateStateRoot(blockNumber uint64) ([]byte, error) {
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

func (r *RedeemsModel) CleanupProcessedStateForBlock(blockNumber uint64) error {
	r.accumulator.Cleanup(blockNumber)
	return nil
}

func (r *RedeemsModel) DeleteState(startBlockNumber uint64, endBlockNumber uint64) error {
	if err := r.BaseChainState.DeleteState("redeems", startBlockNumber, endBlockNumber, "opening_absolute", r.DB); err != nil {
		return err
	}
	if err := r.BaseChainState.DeleteState("redeem_periods", startBlockNumber, endBlockNumber, "absolute", r.DB); err != nil {
		return err
	}
	// Issues own the shared bridge volume purge.
	r.currentPeriodLoaded = false
	return nil
}
