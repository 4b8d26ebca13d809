// Package chainState wires every state model into the state manager. Model
// indexes fix the execution order within a block: heights first so the
// active height is resolved before any consumer runs, then the relay,
// vaults before the request lifecycles that mutate their pending totals,
// and the aggregation-only models last.
package chainState

import (
	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/chainState/heights"
	"github.com/interlay/interbtc-indexer/pkg/chainState/issues"
	"github.com/interlay/interbtc-indexer/pkg/chainState/loans"
	"github.com/interlay/interbtc-indexer/pkg/chainState/redeems"
	"github.com/interlay/interbtc-indexer/pkg/chainState/relayedBlocks"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/chainState/supply"
	"github.com/interlay/interbtc-indexer/pkg/chainState/swaps"
	"github.com/interlay/interbtc-indexer/pkg/chainState/tokenLocks"
	"github.com/interlay/interbtc-indexer/pkg/chainState/transfers"
	"github.com/interlay/interbtc-indexer/pkg/chainState/vaults"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func LoadChainStateModels(
	csm *stateManager.ChainStateManager,
	grm *gorm.DB,
	l *zap.Logger,
	cfg *config.Config,
) error {
	l.Sugar().Debugw("Loading chain state models")

	if _, err := heights.NewHeightsModel(csm, grm, l, cfg); err != nil {
		l.Sugar().Errorw("Failed to create HeightsModel", zap.Error(err))
		return err
	}

	relayedBlocksModel, err := relayedBlocks.NewRelayedBlocksModel(csm, grm, l, cfg)
	if err != nil {
		l.Sugar().Errorw("Failed to create RelayedBlocksModel", zap.Error(err))
		return err
	}

	vaultsModel, err := vaults.NewVaultsModel(csm, grm, l, cfg)
	if err != nil {
		l.Sugar().Errorw("Failed to create VaultsModel", zap.Error(err))
		return err
	}

	if _, err := issues.NewIssuesModel(csm, relayedBlocksModel, vaultsModel, grm, l, cfg); err != nil {
		l.Sugar().Errorw("Failed to create IssuesModel", zap.Error(err))
		return err
	}

	if _, err := redeems.NewRedeemsModel(csm, relayedBlocksModel, vaultsModel, grm, l, cfg); err != nil {
		l.Sugar().Errorw("Failed to create RedeemsModel", zap.Error(err))
		return err
	}

	if _, err := tokenLocks.NewTokenLocksModel(csm, grm, l, cfg); err != nil {
		l.Sugar().Errorw("Failed to create TokenLocksModel", zap.Error(err))
		return err
	}

	if _, err := transfers.NewTransfersModel(csm, grm, l, cfg); err != nil {
		l.Sugar().Errorw("Failed to create TransfersModel", zap.Error(err))
		return err
	}

	if _, err := swaps.NewSwapsModel(csm, grm, l, cfg); err != nil {
		l.Sugar().Errorw("Failed to create SwapsModel", zap.Error(err))
		return err
	}

	if _, err := loans.NewLoansModel(csm, grm, l, cfg); err != nil {
		l.Sugar().Errorw("Failed to create LoansModel", zap.Error(err))
		return err
	}

	if _, err := supply.NewSupplyModel(csm, grm, l, cfg); err != nil {
		l.Sugar().Errorw("Failed to create SupplyModel", zap.Error(err))
		return err
	}

	return nil
}
