// Package vaults projects vault registrations, collateral movements and
// bridge activity into one row per vault. The pending wrapped amount tracks
// issue requests that have been opened but not yet executed or cancelled.
package vaults

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
	"vaultRegistry.RegisterVault":            true,
	"vaultRegistry.IncreaseLockedCollateral": true,
	"vaultRegistry.DecreaseLockedCollateral": true,
	"issue.RequestIssue":                     true,
	"issue.ExecuteIssue":                     true,
	"issue.CancelIssue":                      true,
	"redeem.RequestRedeem":                   true,
	"redeem.ExecuteRedeem":                   true,
	"redeem.CancelRedeem":                    true,
}

type VaultsModel struct {
	base.BaseChainState
	DB           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	writeBuffer  *buffer.WriteBuffer

	accumulator *base.ChangeAccumulator
}

func NewVaultsModel(
	csm *stateManager.ChainStateManager,
	grm *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) (*VaultsModel, error) {
	model := &VaultsModel{
		BaseChainState: base.BaseChainState{
			Logger: logger,
		},
		DB:           grm,
		logger:       logger,
		globalConfig: globalConfig,
		writeBuffer:  csm.Buffer(),
		accumulator:  base.NewChangeAccumulator(),
	}

	csm.RegisterState(model, 3)
	return model, nil
}

func (v *VaultsModel) GetModelName() string {
	return "VaultsModel"
}

func (v *VaultsModel) IsInterestingEvent(eventName string) bool {
	return interestingEvents[eventName]
}

func (v *VaultsModel) SetupStateForBlock(block *types.BlockContext) error {
	v.accumulator.Init(block.Number)
	return nil
}

// GetVault resolves a vault by id, staged rows first.
func (v *VaultsModel) GetVault(vaultID string) (*types.Vault, error) {
	if staged, ok := v.writeBuffer.Get("vaults", types.SlotID(vaultID)); ok {
		return staged.(*types.Vault), nil
	}
	var vault types.Vault
	res := v.DB.Where("id = ?", vaultID).Limit(1).Find(&vault)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &vault, nil
}

func (v *VaultsModel) getIssue(issueID string) (*types.Issue, error) {
	if staged, ok := v.writeBuffer.Get("issues", types.SlotID(issueID)); ok {
		return staged.(*types.Issue), nil
	}
	var issue types.Issue
	res := v.DB.Where("id = ?", issueID).Limit(1).Find(&issue)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &issue, nil
}

func (v *VaultsModel) stage(block *types.BlockContext, vault *types.Vault) {
	slotID := types.SlotID(vault.ID)
	v.writeBuffer.Stage("vaults", slotID, vault)
	v.accumulator.Record(block.Number, slotID,
		[]byte(fmt.Sprintf("%s_%s", vault.Collateral.String(), vault.PendingWrapped.String())))
}

func (v *VaultsModel) touch(block *types.BlockContext, vault *types.Vault) {
	blockNumber := block.Number
	vault.LastActivityAbsolute = &blockNumber
}

func (v *VaultsModel) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) (interface{}, error) {
	switch record := decoded.(type) {
	case *decoder.RegisterVault:
		vault := &types.Vault{
			ID:                    record.Vault.String(),
			AccountID:             record.Vault.AccountID,
			WrappedCurrency:       record.Vault.Wrapped.String(),
			CollateralCurrency:    record.Vault.Collateral.String(),
			RegistrationBlock:     block.Number,
			RegistrationTimestamp: block.BlockTime,
			Collateral:            record.Collateral,
		}
		v.touch(block, vault)
		v.stage(block, vault)
		return vault, nil

	case *decoder.CollateralChange:
		vault, err := v.GetVault(record.Vault.String())
		if err != nil {
			return nil, err
		}
		if vault == nil {
			v.warnUnknownVault(block, record.Vault.String(), "collateral change")
			return nil, nil
		}
		// The event's running total is authoritative.
		vault.Collateral = record.Total
		v.touch(block, vault)
		v.stage(block, vault)
		return vault, nil

	case *decoder.RequestIssue:
		vault, err := v.GetVault(record.Vault.String())
		if err != nil {
			return nil, err
		}
		if vault == nil {
			v.warnUnknownVault(block, record.Vault.String(), "issue request")
			return nil, nil
		}
		vault.PendingWrapped = vault.PendingWrapped.Add(record.Amount)
		v.touch(block, vault)
		v.stage(block, vault)
		return vault, nil

	case *decoder.ExecuteIssue:
		return v.settleIssue(block, record.IssueID)

	case *decoder.CancelIssue:
		return v.settleIssue(block, record.IssueID)

	case *decoder.RequestRedeem:
		return v.touchVault(block, record.Vault.String())

	case *decoder.ExecuteRedeem:
		return v.touchVault(block, record.Vault.String())

	case *decoder.CancelRedeem:
		return v.touchVault(block, record.Vault.String())
	}
	return nil, errors.Errorf("unexpected event %s for vaults model", event.Name)
}

// settleIssue removes a closed issue request's amount from the vault's
// pending total.
func (v *VaultsModel) settleIssue(block *types.BlockContext, issueID string) (interface{}, error) {
	issue, err := v.getIssue(issueID)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		v.logger.Sugar().Warnw("Issue settlement for unknown issue request",
			zap.String("issueId", issueID),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, nil
	}
	// Only an open request still counts toward pending.
	if issue.Status != types.RequestStatus_Pending {
		return nil, nil
	}
	vault, err := v.GetVault(issue.VaultID)
	if err != nil {
		return nil, err
	}
	if vault == nil {
		v.warnUnknownVault(block, issue.VaultID, "issue settlement")
		return nil, nil
	}
	vault.PendingWrapped = vault.PendingWrapped.Sub(issue.AmountWrapped)
	v.touch(block, vault)
	v.stage(block, vault)
	return vault, nil
}

// SettleExpiredIssue removes an expired issue request's amount from its
// vault's pending total. Called by the expiry sweep with the request's
// pre-expiry state.
func (v *VaultsModel) SettleExpiredIssue(block *types.BlockContext, issue *types.Issue) error {
	vault, err := v.GetVault(issue.VaultID)
	if err != nil {
		return err
	}
	if vault == nil {
		v.warnUnknownVault(block, issue.VaultID, "expired issue")
		return nil
	}
	vault.PendingWrapped = vault.PendingWrapped.Sub(issue.AmountWrapped)
	v.touch(block, vault)
	v.stage(block, vault)
	return nil
}

func (v *VaultsModel) touchVault(block *types.BlockContext, vaultID string) (interface{}, error) {
	vault, err := v.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if vault == nil {
		v.warnUnknownVault(block, vaultID, "activity")
		return nil, nil
	}
	v.touch(block, vault)
	v.stage(block, vault)
	return vault, nil
}

// HandleExtrinsic marks activity for every vault operated by the signer of
// a signed extrinsic. One account may operate several vaults under different
// currency pairs.
func (v *VaultsModel) HandleExtrinsic(block *types.BlockContext, extrinsic *storage.Extrinsic) error {
	if extrinsic.Signer == "" {
		return nil
	}

	var persisted []*types.Vault
	res := v.DB.Where("account_id = ?", extrinsic.Signer).Find(&persisted)
	if res.Error != nil {
		return res.Error
	}

	// Staged rows take precedence over what storage returns.
	byID := make(map[string]*types.Vault, len(persisted))
	order := make([]string, 0, len(persisted))
	for _, vault := range persisted {
		byID[vault.ID] = vault
		order = append(order, vault.ID)
	}
	v.writeBuffer.Range("vaults", func(_ types.SlotID, entity interface{}) bool {
		vault := entity.(*types.Vault)
		if vault.AccountID != extrinsic.Signer {
			return true
		}
		if _, ok := byID[vault.ID]; !ok {
			order = append(order, vault.ID)
		}
		byID[vault.ID] = vault
		return true
	})

	for _, id := range order {
		vault := byID[id]
		v.touch(block, vault)
		v.stage(block, vault)
	}
	return nil
}

// warnUnknownVault logs a reference to a vault that was never registered.
// These are tolerated data anomalies, never fatal.
func (v *VaultsModel) warnUnknownVault(block *types.BlockContext, vaultID string, context string) {
	v.logger.Sugar().Warnw("Reference to unknown vault",
		zap.String("vaultId", vaultID),
		zap.String("context", context),
		zap.Uint64("blockNumber", block.Number),
	)
}

func (v *VaultsModel) GenerateStateRoot(blockNumber uint64) ([]byte, error) {
	inputs := v.accumulator.Inputs(blockNumber)
	if len(inputs) == 0 {
		return nil, nil
	}
	tree, err := v.MerkleizeState(blockNumber, inputs)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}

func (v *VaultsModel) CleanupProcessedStateForBlock(blockNumber uint64) error {
	v.accumulator.Cleanup(blockNumber)
	return nil
}

func (v *VaultsModel) DeleteState(startBlockNumber uint64, endBlockNumber uint64) error {
	return v.BaseChainState.DeleteState("vaults", startBlockNumber, endBlockNumber, "registration_block", v.DB)
}
