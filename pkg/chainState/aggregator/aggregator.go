// Package aggregator maintains the append-only cumulative series: bridge
// volumes, DEX trading volumes and trade counts, and circulating supply.
// Every update either extends the series with a new bucket carrying
// prior + delta, or accumulates into the bucket already staged for the same
// originating event. Buckets are never rewritten once committed.
package aggregator

import (
	"fmt"
	"time"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/chainState/buffer"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Engine struct {
	DB           *gorm.DB
	writeBuffer  *buffer.WriteBuffer
	logger       *zap.Logger
	globalConfig *config.Config
}

func NewEngine(grm *gorm.DB, wb *buffer.WriteBuffer, l *zap.Logger, cfg *config.Config) *Engine {
	return &Engine{
		DB:           grm,
		writeBuffer:  wb,
		logger:       l,
		globalConfig: cfg,
	}
}

func bucketID(dimension string, eventID string) string {
	return fmt.Sprintf("%s_%s", dimension, eventID)
}

// latestStaged returns the most recently staged entity in the table for
// which match returns true. Staging order is chronological, so the last
// match is the newest bucket of its series.
func (e *Engine) latestStaged(tableName string, match func(entity interface{}) bool) interface{} {
	var found interface{}
	e.writeBuffer.Range(tableName, func(_ types.SlotID, entity interface{}) bool {
		if match(entity) {
			found = entity
		}
		return true
	})
	return found
}

// AddVolume extends the total cumulative volume series for the given type.
func (e *Engine) AddVolume(volumeType types.VolumeType, tillTimestamp time.Time, eventID string, delta decimal.Decimal) error {
	dimension := string(volumeType)
	id := bucketID(dimension, eventID)

	staged := e.latestStaged("cumulative_volumes", func(entity interface{}) bool {
		return entity.(*types.CumulativeVolume).Type == volumeType
	})
	if staged != nil {
		bucket := staged.(*types.CumulativeVolume)
		if bucket.ID == id {
			bucket.Amount = bucket.Amount.Add(delta)
			return nil
		}
		e.stageVolume(&types.CumulativeVolume{
			ID:            id,
			Type:          volumeType,
			TillTimestamp: tillTimestamp,
			Amount:        bucket.Amount.Add(delta),
		})
		return nil
	}

	prior := decimal.Zero
	var latest types.CumulativeVolume
	res := e.DB.Where("type = ?", volumeType).Order("till_timestamp desc, id desc").Limit(1).Find(&latest)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		prior = latest.Amount
	}

	e.stageVolume(&types.CumulativeVolume{
		ID:            id,
		Type:          volumeType,
		TillTimestamp: tillTimestamp,
		Amount:        prior.Add(delta),
	})
	return nil
}

func (e *Engine) stageVolume(bucket *types.CumulativeVolume) {
	e.writeBuffer.Stage("cumulative_volumes", types.SlotID(bucket.ID), bucket)
}

// AddVolumePerCurrencyPair extends the per-pair cumulative volume series.
func (e *Engine) AddVolumePerCurrencyPair(
	volumeType types.VolumeType,
	wrappedCurrency string,
	collateralCurrency string,
	tillTimestamp time.Time,
	eventID string,
	delta decimal.Decimal,
) error {
	dimension := fmt.Sprintf("%s_%s_%s", volumeType, wrappedCurrency, collateralCurrency)
	id := bucketID(dimension, eventID)

	staged := e.latestStaged("cumulative_volumes_per_currency_pair", func(entity interface{}) bool {
		bucket := entity.(*types.CumulativeVolumePerCurrencyPair)
		return bucket.Type == volumeType &&
			bucket.WrappedCurrency == wrappedCurrency &&
			bucket.CollateralCurrency == collateralCurrency
	})
	if staged != nil {
		bucket := staged.(*types.CumulativeVolumePerCurrencyPair)
		if bucket.ID == id {
			bucket.Amount = bucket.Amount.Add(delta)
			return nil
		}
		e.stagePairVolume(&types.CumulativeVolumePerCurrencyPair{
			ID:                 id,
			Type:               volumeType,
			TillTimestamp:      tillTimestamp,
			Amount:             bucket.Amount.Add(delta),
			WrappedCurrency:    wrappedCurrency,
			CollateralCurrency: collateralCurrency,
		})
		return nil
	}

	prior := decimal.Zero
	var latest types.CumulativeVolumePerCurrencyPair
	res := e.DB.
		Where("type = ? and wrapped_currency = ? and collateral_currency = ?", volumeType, wrappedCurrency, collateralCurrency).
		Order("till_timestamp desc, id desc").Limit(1).Find(&latest)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		prior = latest.Amount
	}

	e.stagePairVolume(&types.CumulativeVolumePerCurrencyPair{
		ID:                 id,
		Type:               volumeType,
		TillTimestamp:      tillTimestamp,
		Amount:             prior.Add(delta),
		WrappedCurrency:    wrappedCurrency,
		CollateralCurrency: collateralCurrency,
	})
	return nil
}

func (e *Engine) stagePairVolume(bucket *types.CumulativeVolumePerCurrencyPair) {
	e.writeBuffer.Stage("cumulative_volumes_per_currency_pair", types.SlotID(bucket.ID), bucket)
}

// AddDexVolumePerPool extends the per-pool trading volume series for one
// currency leg of a trade.
func (e *Engine) AddDexVolumePerPool(poolID string, currency string, tillTimestamp time.Time, eventID string, delta decimal.Decimal) error {
	dimension := fmt.Sprintf("%s_%s", poolID, currency)
	id := bucketID(dimension, eventID)

	staged := e.latestStaged("cumulative_dex_trading_volumes_per_pool", func(entity interface{}) bool {
		bucket := entity.(*types.CumulativeDexTradingVolumePerPool)
		return bucket.PoolID == poolID && bucket.Currency == currency
	})
	if staged != nil {
		bucket := staged.(*types.CumulativeDexTradingVolumePerPool)
		if bucket.ID == id {
			bucket.Amount = bucket.Amount.Add(delta)
			return nil
		}
		e.stagePoolVolume(&types.CumulativeDexTradingVolumePerPool{
			ID:            id,
			PoolID:        poolID,
			Currency:      currency,
			TillTimestamp: tillTimestamp,
			Amount:        bucket.Amount.Add(delta),
		})
		return nil
	}

	prior := decimal.Zero
	var latest types.CumulativeDexTradingVolumePerPool
	res := e.DB.Where("pool_id = ? and currency = ?", poolID, currency).
		Order("till_timestamp desc, id desc").Limit(1).Find(&latest)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		prior = latest.Amount
	}

	e.stagePoolVolume(&types.CumulativeDexTradingVolumePerPool{
		ID:            id,
		PoolID:        poolID,
		Currency:      currency,
		TillTimestamp: tillTimestamp,
		Amount:        prior.Add(delta),
	})
	return nil
}

func (e *Engine) stagePoolVolume(bucket *types.CumulativeDexTradingVolumePerPool) {
	e.writeBuffer.Stage("cumulative_dex_trading_volumes_per_pool", types.SlotID(bucket.ID), bucket)
}

// AddDexVolumePerAccount extends the per-account trading volume series.
func (e *Engine) AddDexVolumePerAccount(accountID string, currency string, tillTimestamp time.Time, eventID string, delta decimal.Decimal) error {
	dimension := fmt.Sprintf("%s_%s", accountID, currency)
	id := bucketID(dimension, eventID)

	staged := e.latestStaged("cumulative_dex_trading_volumes_per_account", func(entity interface{}) bool {
		bucket := entity.(*types.CumulativeDexTradingVolumePerAccount)
		return bucket.AccountID == accountID && bucket.Currency == currency
	})
	if staged != nil {
		bucket := staged.(*types.CumulativeDexTradingVolumePerAccount)
		if bucket.ID == id {
			bucket.Amount = bucket.Amount.Add(delta)
			return nil
		}
		e.stageAccountVolume(&types.CumulativeDexTradingVolumePerAccount{
			ID:            id,
			AccountID:     accountID,
			Currency:      currency,
			TillTimestamp: tillTimestamp,
			Amount:        bucket.Amount.Add(delta),
		})
		return nil
	}

	prior := decimal.Zero
	var latest types.CumulativeDexTradingVolumePerAccount
	res := e.DB.Where("account_id = ? and currency = ?", accountID, currency).
		Order("till_timestamp desc, id desc").Limit(1).Find(&latest)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		prior = latest.Amount
	}

	e.stageAccountVolume(&types.CumulativeDexTradingVolumePerAccount{
		ID:            id,
		AccountID:     accountID,
		Currency:      currency,
		TillTimestamp: tillTimestamp,
		Amount:        prior.Add(delta),
	})
	return nil
}

func (e *Engine) stageAccountVolume(bucket *types.CumulativeDexTradingVolumePerAccount) {
	e.writeBuffer.Stage("cumulative_dex_trading_volumes_per_account", types.SlotID(bucket.ID), bucket)
}

// IncrTradeCount extends the per-pool trade count series by one trade.
func (e *Engine) IncrTradeCount(poolID string, tillTimestamp time.Time, eventID string) error {
	id := bucketID(poolID, eventID)
	one := decimal.NewFromInt(1)

	staged := e.latestStaged("cumulative_dex_trade_counts", func(entity interface{}) bool {
		return entity.(*types.CumulativeDexTradeCount).PoolID == poolID
	})
	if staged != nil {
		bucket := staged.(*types.CumulativeDexTradeCount)
		if bucket.ID == id {
			bucket.Amount = bucket.Amount.Add(one)
			return nil
		}
		e.stageTradeCount(&types.CumulativeDexTradeCount{
			ID:            id,
			PoolID:        poolID,
			TillTimestamp: tillTimestamp,
			Amount:        bucket.Amount.Add(one),
		})
		return nil
	}

	prior := decimal.Zero
	var latest types.CumulativeDexTradeCount
	res := e.DB.Where("pool_id = ?", poolID).Order("till_timestamp desc, id desc").Limit(1).Find(&latest)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		prior = latest.Amount
	}

	e.stageTradeCount(&types.CumulativeDexTradeCount{
		ID:            id,
		PoolID:        poolID,
		TillTimestamp: tillTimestamp,
		Amount:        prior.Add(one),
	})
	return nil
}

func (e *Engine) stageTradeCount(bucket *types.CumulativeDexTradeCount) {
	e.writeBuffer.Stage("cumulative_dex_trade_counts", types.SlotID(bucket.ID), bucket)
}

// SupplyComponent names the component of the circulating supply a signed
// delta applies to.
type SupplyComponent string

const (
	SupplyComponent_TotalIssuance  SupplyComponent = "totalIssuance"
	SupplyComponent_Locked         SupplyComponent = "locked"
	SupplyComponent_Reserved       SupplyComponent = "reserved"
	SupplyComponent_SystemAccounts SupplyComponent = "systemAccounts"
)

// UpdateSupply extends the circulating supply series for one symbol. The
// new bucket copies every component from the prior bucket, applies the
// signed delta to the named component and re-derives the circulating value.
func (e *Engine) UpdateSupply(symbol string, tillTimestamp time.Time, eventID string, component SupplyComponent, delta decimal.Decimal) error {
	id := bucketID(symbol, eventID)

	prior := e.initialSupply(symbol, tillTimestamp)
	inPlace := false

	staged := e.latestStaged("cumulative_circulating_supplies", func(entity interface{}) bool {
		return entity.(*types.CumulativeCirculatingSupply).Symbol == symbol
	})
	if staged != nil {
		prior = staged.(*types.CumulativeCirculatingSupply)
		inPlace = prior.ID == id
	} else {
		var latest types.CumulativeCirculatingSupply
		res := e.DB.Where("symbol = ?", symbol).Order("till_timestamp desc, id desc").Limit(1).Find(&latest)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			prior = &latest
		}
	}

	bucket := prior
	if !inPlace {
		bucket = &types.CumulativeCirculatingSupply{
			ID:             id,
			Symbol:         symbol,
			TillTimestamp:  tillTimestamp,
			TotalIssuance:  prior.TotalIssuance,
			Locked:         prior.Locked,
			Reserved:       prior.Reserved,
			SystemAccounts: prior.SystemAccounts,
		}
	}

	switch component {
	case SupplyComponent_TotalIssuance:
		bucket.TotalIssuance = bucket.TotalIssuance.Add(delta)
	case SupplyComponent_Locked:
		bucket.Locked = bucket.Locked.Add(delta)
	case SupplyComponent_Reserved:
		bucket.Reserved = bucket.Reserved.Add(delta)
	case SupplyComponent_SystemAccounts:
		bucket.SystemAccounts = bucket.SystemAccounts.Add(delta)
	default:
		return fmt.Errorf("unknown supply component %s", component)
	}
	bucket.Circulating = bucket.TotalIssuance.
		Sub(bucket.Locked).
		Sub(bucket.Reserved).
		Sub(bucket.SystemAccounts)

	if !inPlace {
		e.writeBuffer.Stage("cumulative_circulating_supplies", types.SlotID(bucket.ID), bucket)
	}
	return nil
}

// DeleteVolumeState removes bridge volume buckets committed at or after the
// given block. Buckets carry no block column, so the cutoff is resolved
// through the raw blocks table, which outlives model state deletes.
func (e *Engine) DeleteVolumeState(startBlockNumber uint64) error {
	for _, table := range []string{"cumulative_volumes", "cumulative_volumes_per_currency_pair"} {
		res := e.DB.Exec(
			fmt.Sprintf(`delete from %s where till_timestamp >= (select block_time from blocks where number = ?)`, table),
			startBlockNumber,
		)
		if res.Error != nil {
			return res.Error
		}
	}
	return nil
}

// DeleteDexState removes DEX volume and trade count buckets committed at or
// after the given block.
func (e *Engine) DeleteDexState(startBlockNumber uint64) error {
	tables := []string{
		"cumulative_dex_trading_volumes_per_pool",
		"cumulative_dex_trading_volumes_per_account",
		"cumulative_dex_trade_counts",
	}
	for _, table := range tables {
		res := e.DB.Exec(
			fmt.Sprintf(`delete from %s where till_timestamp >= (select block_time from blocks where number = ?)`, table),
			startBlockNumber,
		)
		if res.Error != nil {
			return res.Error
		}
	}
	return nil
}

// initialSupply seeds the first bucket of a symbol's series. The native
// token starts at the genesis issuance, everything else at zero.
func (e *Engine) initialSupply(symbol string, tillTimestamp time.Time) *types.CumulativeCirculatingSupply {
	totalIssuance := decimal.Zero
	if symbol == e.globalConfig.Chain.NativeSymbol {
		totalIssuance = e.globalConfig.Chain.GenesisIssuance
	}
	return &types.CumulativeCirculatingSupply{
		Symbol:        symbol,
		TillTimestamp: tillTimestamp,
		TotalIssuance: totalIssuance,
		Circulating:   totalIssuance,
	}
}
