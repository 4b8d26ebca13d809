// Package supplyDataService serves the circulating supply projections.
package supplyDataService

import (
	"context"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/service/baseDataService"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SupplyDataService struct {
	baseDataService.BaseDataService
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
}

func NewSupplyDataService(
	db *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) *SupplyDataService {
	return &SupplyDataService{
		BaseDataService: baseDataService.BaseDataService{
			DB: db,
		},
		db:           db,
		logger:       logger,
		globalConfig: globalConfig,
	}
}

// GetCirculatingSupply returns the latest supply snapshot for one symbol,
// nil when the symbol has never been observed.
func (sds *SupplyDataService) GetCirculatingSupply(ctx context.Context, symbol string) (*types.CumulativeCirculatingSupply, error) {
	var supply types.CumulativeCirculatingSupply
	res := sds.db.Where("symbol = ?", symbol).Order("till_timestamp desc, id desc").Limit(1).Find(&supply)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &supply, nil
}

// ListCirculatingSupplies returns the latest supply snapshot of every symbol
// that has one.
func (sds *SupplyDataService) ListCirculatingSupplies(ctx context.Context) ([]*types.CumulativeCirculatingSupply, error) {
	query := `
		select distinct on (symbol) *
		from cumulative_circulating_supplies
		order by symbol, till_timestamp desc, id desc
	`
	var supplies []*types.CumulativeCirculatingSupply
	res := sds.db.Raw(query).Scan(&supplies)
	if res.Error != nil {
		return nil, res.Error
	}
	return supplies, nil
}
