// Package issues tracks the lifecycle of issue requests: opened, executed,
// cancelled, refunded, or expired by the per-block sweep. Executions feed
// the cumulative issued volume series.
package issues

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
	"issue.RequestIssue":      true,
	"issue.ExecuteIssue":      true,
	"issue.CancelIssue":       true,
	"issue.IssuePeriodChange": true,
	"refund.ExecuteRefund":    true,
}

type IssuesModel struct {
	base.BaseChainState
	DB           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	writeBuffer  *buffer.WriteBuffer
	volumes      *aggregator.Engine

	relayedBlocks *relayedBlocks.RelayedBlocksModel
	vaults        *vaults.VaultsModel

	accumulator *base.ChangeAccumulator

	// currentPeriod is the issue period in force, in active blocks. Loaded
	// lazily from the latest persisted period change, bootstrapped from
	// config before any change has been indexed.
	currentPeriod       uint64
	currentPeriodLoaded bool
}

func NewIssuesModel(
	csm *stateManager.ChainStateManager,
	rbm *relayedBlocks.RelayedBlocksModel,
	vm *vaults.VaultsModel,
	grm *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) (*IssuesModel, error) {
	model := &IssuesModel{
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

	csm.RegisterState(model, 4)
	return model, nil
}

func (i *IssuesModel) GetModelName() string {
	return "IssuesModel"
}

func (i *IssuesModel) IsInterestingEvent(eventName string) bool {
	return interestingEvents[eventName]
}

func (i *IssuesModel) SetupStateForBlock(block *types.BlockContext) error {
	i.accumulator.Init(block.Number)
	return nil
}

// CurrentPeriod returns the issue period in force, in active blocks.
func (i *IssuesModel) CurrentPeriod() (uint64, error) {
	if i.currentPeriodLoaded {
		return i.currentPeriod, nil
	}
	var latest types.IssuePeriod
	res := i.DB.Order("absolute desc").Limit(1).Find(&latest)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		i.currentPeriod = latest.Value
	} else {
		i.currentPeriod = i.globalConfig.PeriodsConfig.IssuePeriodBootstrap
	}
	i.currentPeriodLoaded = true
	return i.currentPeriod, nil
}

// GetIssue resolves an issue request by id, staged rows first.
func (i *IssuesModel) GetIssue(issueID string) (*types.Issue, error) {
	if staged, ok := i.writeBuffer.Get("issues", types.SlotID(issueID)); ok {
		return staged.(*types.Issue), nil
	}
	var issue types.Issue
	res := i.DB.Where("id = ?", issueID).Limit(1).Find(&issue)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &issue, nil
}

func (i *IssuesModel) stage(block *types.BlockContext, issue *types.Issue) {
	slotID := types.SlotID(issue.ID)
	i.writeBuffer.Stage("issues", slotID, issue)
	i.accumulator.Record(block.Number, slotID,
		[]byte(fmt.Sprintf("%s_%s", issue.Status, issue.AmountWrapped.String())))
}

func (i *IssuesModel) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) (interface{}, error) {
	switch record := decoded.(type) {
	case *decoder.RequestIssue:
		return i.handleRequestIssue(block, record)
	case *decoder.ExecuteIssue:
		return i.handleExecuteIssue(block, event, record)
	case *decoder.CancelIssue:
		return i.handleCancelIssue(block, record)
	case *decoder.PeriodChange:
		return i.handlePeriodChange(block, event, record)
	case *decoder.ExecuteRefund:
		return i.handleExecuteRefund(block, record)
	}
	return nil, errors.Errorf("unexpected event %s for issues model", event.Name)
}

func (i *IssuesModel) handleRequestIssue(block *types.BlockContext, record *decoder.RequestIssue) (interface{}, error) {
	vault, err := i.vaults.GetVault(record.Vault.String())
	if err != nil {
		return nil, err
	}
	if vault == nil {
		i.logger.Sugar().Warnw("Issue request against unknown vault",
			zap.String("issueId", record.IssueID),
			zap.String("vaultId", record.Vault.String()),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, nil
	}

	period, err := i.CurrentPeriod()
	if err != nil {
		return nil, err
	}

	// The request expires against the Bitcoin height known at opening.
	backingHeight, err := i.relayedBlocks.LatestBackingHeight()
	if err != nil {
		if !errors.Is(err, relayedBlocks.ErrNoRelayedBlocks) {
			return nil, err
		}
		i.logger.Sugar().Warnw("No relayed BTC header yet, opening issue request at backing height 0",
			zap.String("issueId", record.IssueID),
			zap.Uint64("blockNumber", block.Number),
		)
		backingHeight = 0
	}

	issue := &types.Issue{
		ID:                   record.IssueID,
		Status:               types.RequestStatus_Pending,
		AmountWrapped:        record.Amount,
		BridgeFee:            record.Fee,
		GriefingCollateral:   record.GriefingCollateral,
		VaultID:              record.Vault.String(),
		UserParachainAddress: record.Requester,
		OpeningAbsolute:      block.Number,
		OpeningActive:        block.Active,
		OpeningTimestamp:     block.BlockTime,
		BackingHeight:        backingHeight,
		Period:               period,
	}
	if record.VaultBtcAddress != nil {
		if encoded, ok := record.VaultBtcAddress.Encode(i.globalConfig.Chain.BitcoinNetwork); ok {
			issue.VaultBackingAddress = &encoded
		}
	}

	i.stage(block, issue)
	return issue, nil
}

func (i *IssuesModel) handleExecuteIssue(block *types.BlockContext, event *storage.Event, record *decoder.ExecuteIssue) (interface{}, error) {
	issue, err := i.GetIssue(record.IssueID)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		// Tolerated data anomaly, not a fatal indexer error.
		i.logger.Sugar().Warnw("Execution for unknown issue request",
			zap.String("issueId", record.IssueID),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, nil
	}
	if issue.Status != types.RequestStatus_Pending {
		// Terminal statuses never regress.
		i.logger.Sugar().Warnw("Execution for non-pending issue request",
			zap.String("issueId", record.IssueID),
			zap.String("status", string(issue.Status)),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, nil
	}

	blockNumber := block.Number
	blockTime := block.BlockTime
	amount := record.Amount
	fee := record.Fee

	issue.Status = types.RequestStatus_Completed
	issue.ExecutionAmountWrapped = &amount
	issue.ExecutionFeeWrapped = &fee
	issue.ExecutionAbsolute = &blockNumber
	issue.ExecutionTimestamp = &blockTime
	i.stage(block, issue)

	if err := i.volumes.AddVolume(types.VolumeType_Issued, block.BlockTime, event.EventID, amount); err != nil {
		return nil, err
	}
	_, wrapped, collateral, ok := utils.SplitVaultID(issue.VaultID)
	if ok {
		if err := i.volumes.AddVolumePerCurrencyPair(types.VolumeType_Issued, wrapped, collateral, block.BlockTime, event.EventID, amount); err != nil {
			return nil, err
		}
	}

	return issue, nil
}

func (i *IssuesModel) handleCancelIssue(block *types.BlockContext, record *decoder.CancelIssue) (interface{}, error) {
	issue, err := i.GetIssue(record.IssueID)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		i.logger.Sugar().Warnw("Cancellation for unknown issue request",
			zap.String("issueId", record.IssueID),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, nil
	}
	if issue.Status != types.RequestStatus_Pending {
		i.logger.Sugar().Warnw("Cancellation for non-pending issue request",
			zap.String("issueId", record.IssueID),
			zap.String("status", string(issue.Status)),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, nil
	}

	blockNumber := block.Number
	blockTime := block.BlockTime

	issue.Status = types.RequestStatus_Cancelled
	issue.CancellationAbsolute = &blockNumber
	issue.CancellationTimestamp = &blockTime
	i.stage(block, issue)
	return issue, nil
}

func (i *IssuesModel) handlePeriodChange(block *types.BlockContext, event *storage.Event, record *decoder.PeriodChange) (interface{}, error) {
	// Make sure the running value is initialized before overwriting it.
	if _, err := i.CurrentPeriod(); err != nil {
		return nil, err
	}
	i.currentPeriod = record.Period

	row := &types.IssuePeriod{
		ID:             event.EventID,
		Value:          record.Period,
		Absolute:       block.Number,
		Active:         block.Active,
		BlockTimestamp: block.BlockTime,
	}
	slotID := types.SlotID(event.EventID)
	i.writeBuffer.Stage("issue_periods", slotID, row)
	i.accumulator.Record(block.Number, slotID, []byte(fmt.Sprintf("period_%d", record.Period)))
	return row, nil
}

func (i *IssuesModel) handleExecuteRefund(block *types.BlockContext, record *decoder.ExecuteRefund) (interface{}, error) {
	issue, err := i.GetIssue(record.IssueID)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		i.logger.Sugar().Warnw("Refund for unknown issue request",
			zap.String("issueId", record.IssueID),
			zap.String("refundId", record.RefundID),
		)
		return nil, nil
	}

	blockNumber := block.Number
	blockTime := block.BlockTime
	amount := record.Amount
	fee := record.Fee

	// Terminal statuses never regress; only an open request moves to
	// RequestedRefund.
	if issue.Status == types.RequestStatus_Pending {
		issue.Status = types.RequestStatus_RequestedRefund
	}
	issue.RefundAmountPaid = &amount
	issue.RefundBtcFee = &fee
	issue.RefundAbsolute = &blockNumber
	issue.RefundTimestamp = &blockTime
	if record.BtcAddress != nil {
		if encoded, ok := record.BtcAddress.Encode(i.globalConfig.Chain.BitcoinNetwork); ok {
			issue.RefundBtcAddress = &encoded
		}
	}
	i.stage(block, issue)
	return issue, nil
}

// FinalizeBlock expires pending requests whose period has elapsed on both
// chains. The sweep is skipped entirely until the BTC relay has seen at
// least one header, since BTC elapsed time is unknowable before that.
func (i *IssuesModel) FinalizeBlock(block *types.BlockContext) error {
	latestRelayed, err := i.relayedBlocks.LatestBackingHeight()
	if err != nil {
		if errors.Is(err, relayedBlocks.ErrNoRelayedBlocks) {
			return nil
		}
		return err
	}

	candidates, err := i.pendingIssues()
	if err != nil {
		return err
	}

	for _, issue := range candidates {
		if !i.isExpired(issue, latestRelayed, block.Active) {
			continue
		}
		if err := i.vaults.SettleExpiredIssue(block, issue); err != nil {
			return err
		}
		issue.Status = types.RequestStatus_Expired
		i.stage(block, issue)
		i.logger.Sugar().Infow("Issue request expired",
			zap.String("issueId", issue.ID),
			zap.Uint64("blockNumber", block.Number),
		)
	}
	return nil
}

// isExpired requires the period to have elapsed on both chains: enough
// Bitcoin blocks relayed past the opening height, and enough active
// parachain blocks past the opening active height.
func (i *IssuesModel) isExpired(issue *types.Issue, latestRelayed uint64, latestActive uint64) bool {
	btcPeriod := utils.CeilDiv(issue.Period, i.globalConfig.Chain.BlocksPerBtcBlock)
	return issue.BackingHeight+btcPeriod < latestRelayed &&
		issue.OpeningActive+issue.Period < latestActive
}

// pendingIssues returns every open request, buffer-staged rows taking
// precedence over their persisted versions.
func (i *IssuesModel) pendingIssues() ([]*types.Issue, error) {
	var persisted []*types.Issue
	res := i.DB.Where("status = ?", types.RequestStatus_Pending).Find(&persisted)
	if res.Error != nil {
		return nil, res.Error
	}

	byID := make(map[string]*types.Issue, len(persisted))
	order := make([]string, 0, len(persisted))
	for _, issue := range persisted {
		byID[issue.ID] = issue
		order = append(order, issue.ID)
	}

	i.writeBuffer.Range("issues", func(_ types.SlotID, entity interface{}) bool {
		issue := entity.(*types.Issue)
		if _, ok := byID[issue.ID]; !ok && issue.Status == types.RequestStatus_Pending {
			order = append(order, issue.ID)
		}
		byID[issue.ID] = issue
		return true
	})

	pending := make([]*types.Issue, 0, len(order))
	for _, id := range order {
		if byID[id].Status == types.RequestStatus_Pending {
			pending = append(pending, byID[id])
		}
	}
	return pending, nil
}

func (i *IssuesModel) GenerateStateRoot(blockNumber uint64) ([]byte, error) {
	inputs := i.accumulator.Inputs(blockNumber)
	if len(inputs) == 0 {
		return nil, nil
	}
	tree, err := i.MerkleizeState(blockNumber, inputs)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}

func (i *IssuesModel) CleanupProcessedStateForBlock(blockNumber uint64) error {
	i.accumulator.Cleanup(blockNumber)
	return nil
}

func (i *IssuesModel) DeleteState(startBlockNumber uint64, endBlockNumber uint64) error {
	if err := i.BaseChainState.DeleteState("issues", startBlockNumber, endBlockNumber, "opening_absolute", i.DB); err != nil {
		return err
	}
	if err := i.BaseChainState.DeleteState("issue_periods", startBlockNumber, endBlockNumber, "absolute", i.DB); err != nil {
		return err
	}
	if err := i.volumes.DeleteVolumeState(startBlockNumber); err != nil {
		return err
	}
	i.currentPeriodLoaded = false
	return nil
}
