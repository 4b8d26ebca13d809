package swaps

import (
	"os"
	"testing"
	"time"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/internal/logger"
	"github.com/interlay/interbtc-indexer/internal/tests"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/currency"
	"github.com/interlay/interbtc-indexer/pkg/decoder"
	"github.com/interlay/interbtc-indexer/pkg/postgres"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup() (
	string,
	*gorm.DB,
	*zap.Logger,
	*config.Config,
	error,
) {
	cfg := config.NewConfig()
	cfg.Debug = os.Getenv(config.Debug) == "true"
	cfg.DatabaseConfig = *tests.GetDbConfigFromEnv()

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	dbname, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, cfg, l)
	if err != nil {
		return dbname, nil, nil, nil, err
	}

	return dbname, grm, l, cfg, nil
}

func Test_Swaps(t *testing.T) {
	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}

	csm := stateManager.NewChainStateManager(nil, l, grm)
	model, err := NewSwapsModel(csm, grm, l, cfg)
	assert.Nil(t, err)

	dot := currency.NewNativeToken(currency.Token_DOT)
	intr := currency.NewNativeToken(currency.Token_INTR)
	ibtc := currency.NewNativeToken(currency.Token_IBTC)

	t.Run("A multi-hop trade decomposes into one leg per pool", func(t *testing.T) {
		blockTime := time.Now().UTC()
		block := &types.BlockContext{Number: 500, Hash: "hash-500", BlockTime: blockTime, Active: 480}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000500-000001-aaaaa", BlockNumber: block.Number, Name: "dexGeneral.AssetSwap"},
			&decoder.AssetSwap{
				Trader:    "trader-1",
				Recipient: "recipient-1",
				Path:      []currency.Currency{dot, intr, ibtc},
				Amounts:   []decimal.Decimal{decimal.NewFromInt(1000), decimal.NewFromInt(2000), decimal.NewFromInt(5)},
			})
		assert.Nil(t, err)
		assert.NotNil(t, change)

		legs := change.([]*types.Swap)
		assert.Equal(t, 2, len(legs))

		assert.Equal(t, "(DOT,INTR)", legs[0].PoolID)
		assert.Equal(t, "trader-1", legs[0].FromAccount)
		// The intermediate leg settles to the trader, the final one to the
		// recipient.
		assert.Equal(t, "trader-1", legs[0].ToAccount)
		assert.Equal(t, "recipient-1", legs[1].ToAccount)
		assert.Equal(t, "(IBTC,INTR)", legs[1].PoolID)
		assert.Equal(t, "2000", legs[1].FromAmount.String())
		assert.Equal(t, "5", legs[1].ToAmount.String())

		_, err = csm.CommitFinalState(block)
		assert.Nil(t, err)

		var count int64
		res := grm.Raw(`select count(*) from swaps`).Scan(&count)
		assert.Nil(t, res.Error)
		assert.Equal(t, int64(2), count)

		// Pool volume counts both sides of each leg.
		var poolVolumes []*types.CumulativeDexTradingVolumePerPool
		res = grm.Raw(`select * from cumulative_dex_trading_volumes_per_pool order by pool_id, currency`).Scan(&poolVolumes)
		assert.Nil(t, res.Error)
		assert.Equal(t, 4, len(poolVolumes))
		assert.Equal(t, "(DOT,INTR)", poolVolumes[0].PoolID)
		assert.Equal(t, "DOT", poolVolumes[0].Currency)
		assert.Equal(t, "1000", poolVolumes[0].Amount.String())
		assert.Equal(t, "INTR", poolVolumes[1].Currency)
		assert.Equal(t, "2000", poolVolumes[1].Amount.String())

		// Account volume counts the endpoints only: nothing is recorded for
		// the intermediate INTR hop.
		var accountVolumes []*types.CumulativeDexTradingVolumePerAccount
		res = grm.Raw(`select * from cumulative_dex_trading_volumes_per_account order by account_id`).Scan(&accountVolumes)
		assert.Nil(t, res.Error)
		assert.Equal(t, 2, len(accountVolumes))
		assert.Equal(t, "recipient-1", accountVolumes[0].AccountID)
		assert.Equal(t, "IBTC", accountVolumes[0].Currency)
		assert.Equal(t, "5", accountVolumes[0].Amount.String())
		assert.Equal(t, "trader-1", accountVolumes[1].AccountID)
		assert.Equal(t, "DOT", accountVolumes[1].Currency)
		assert.Equal(t, "1000", accountVolumes[1].Amount.String())

		var tradeCounts []*types.CumulativeDexTradeCount
		res = grm.Raw(`select * from cumulative_dex_trade_counts order by pool_id`).Scan(&tradeCounts)
		assert.Nil(t, res.Error)
		assert.Equal(t, 2, len(tradeCounts))
		assert.Equal(t, "1", tradeCounts[0].Amount.String())
		assert.Equal(t, "1", tradeCounts[1].Amount.String())
	})

	t.Run("A second trade extends the series rather than rewriting it", func(t *testing.T) {
		blockTime := time.Now().UTC().Add(time.Minute)
		block := &types.BlockContext{Number: 501, Hash: "hash-501", BlockTime: blockTime, Active: 481}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		_, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000501-000001-aaaaa", BlockNumber: block.Number, Name: "dexGeneral.AssetSwap"},
			&decoder.AssetSwap{
				Trader:    "trader-1",
				Recipient: "trader-1",
				Path:      []currency.Currency{dot, intr},
				Amounts:   []decimal.Decimal{decimal.NewFromInt(500), decimal.NewFromInt(900)},
			})
		assert.Nil(t, err)

		_, err = csm.CommitFinalState(block)
		assert.Nil(t, err)

		// Two buckets for the pool's DOT series now, the newer carrying the
		// running total.
		var amounts []string
		res := grm.Raw(
			`select amount from cumulative_dex_trading_volumes_per_pool
			 where pool_id = ? and currency = ? order by till_timestamp asc`,
			"(DOT,INTR)", "DOT").Scan(&amounts)
		assert.Nil(t, res.Error)
		assert.Equal(t, []string{"1000", "1500"}, amounts)

		var tradeCount string
		res = grm.Raw(
			`select amount from cumulative_dex_trade_counts
			 where pool_id = ? order by till_timestamp desc, id desc limit 1`,
			"(DOT,INTR)").Scan(&tradeCount)
		assert.Nil(t, res.Error)
		assert.Equal(t, "2", tradeCount)
	})

	t.Run("A malformed path is rejected", func(t *testing.T) {
		block := &types.BlockContext{Number: 502, Hash: "hash-502", BlockTime: time.Now().UTC(), Active: 482}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		_, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000502-000001-aaaaa", BlockNumber: block.Number, Name: "dexGeneral.AssetSwap"},
			&decoder.AssetSwap{
				Trader:    "trader-1",
				Recipient: "trader-1",
				Path:      []currency.Currency{dot, intr},
				Amounts:   []decimal.Decimal{decimal.NewFromInt(500)},
			})
		assert.NotNil(t, err)
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
