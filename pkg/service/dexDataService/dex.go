// Package dexDataService serves the DEX trading volume projections.
package dexDataService

import (
	"context"
	"database/sql"
	"time"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/service/baseDataService"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultVolumeWindow is the trailing range used when the caller does not
// name one.
const DefaultVolumeWindow = 7 * 24 * time.Hour

type DexDataService struct {
	baseDataService.BaseDataService
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
}

func NewDexDataService(
	db *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) *DexDataService {
	return &DexDataService{
		BaseDataService: baseDataService.BaseDataService{
			DB: db,
		},
		db:           db,
		logger:       logger,
		globalConfig: globalConfig,
	}
}

type PairVolume struct {
	FromCurrency string
	ToCurrency   string
	FromVolume   decimal.Decimal
	ToVolume     decimal.Decimal
	TradeCount   uint64
	From         time.Time
	To           time.Time
}

// GetTradingVolume sums the swap legs traded between the two currencies, in
// both directions, over [from, to]. Zero times select the trailing default
// window ending now.
func (dds *DexDataService) GetTradingVolume(ctx context.Context, currencyA string, currencyB string, from time.Time, to time.Time) (*PairVolume, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-DefaultVolumeWindow)
	}

	query := `
		select
			coalesce(sum(case when from_currency = @currencyA then from_amount else to_amount end), 0) as from_volume,
			coalesce(sum(case when from_currency = @currencyA then to_amount else from_amount end), 0) as to_volume,
			count(*) as trade_count
		from swaps
		where ((from_currency = @currencyA and to_currency = @currencyB)
			or (from_currency = @currencyB and to_currency = @currencyA))
			and block_timestamp >= @from
			and block_timestamp <= @to
	`

	type row struct {
		FromVolume decimal.Decimal
		ToVolume   decimal.Decimal
		TradeCount uint64
	}
	var result row
	res := dds.db.Raw(query,
		sql.Named("currencyA", currencyA),
		sql.Named("currencyB", currencyB),
		sql.Named("from", from),
		sql.Named("to", to),
	).Scan(&result)
	if res.Error != nil {
		return nil, res.Error
	}

	return &PairVolume{
		FromCurrency: currencyA,
		ToCurrency:   currencyB,
		FromVolume:   result.FromVolume,
		ToVolume:     result.ToVolume,
		TradeCount:   result.TradeCount,
		From:         from,
		To:           to,
	}, nil
}

type PoolVolume struct {
	PoolID   string
	Currency string
	Amount   decimal.Decimal
}

// ListPoolVolumes returns the latest cumulative volume bucket of every
// pool/currency series.
func (dds *DexDataService) ListPoolVolumes(ctx context.Context) ([]*PoolVolume, error) {
	query := `
		select distinct on (pool_id, currency) pool_id, currency, amount
		from cumulative_dex_trading_volumes_per_pool
		order by pool_id, currency, till_timestamp desc, id desc
	`
	var volumes []*PoolVolume
	res := dds.db.Raw(query).Scan(&volumes)
	if res.Error != nil {
		return nil, res.Error
	}
	return volumes, nil
}
