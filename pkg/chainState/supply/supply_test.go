package supply

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

const (
	systemAccount      = "wdSystemTreasuryAccountxxxxxxxxxxxxxxxxxxxxxxxxxx"
	otherSystemAccount = "wdSystemVaultRewardsAccountxxxxxxxxxxxxxxxxxxxxxx"
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
	cfg.Chain.SystemAccounts = []string{systemAccount, otherSystemAccount}

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	dbname, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, cfg, l)
	if err != nil {
		return dbname, nil, nil, nil, err
	}

	return dbname, grm, l, cfg, nil
}

func latestSupply(t *testing.T, grm *gorm.DB, symbol string) *types.CumulativeCirculatingSupply {
	var supply types.CumulativeCirculatingSupply
	res := grm.Where("symbol = ?", symbol).Order("till_timestamp desc").Limit(1).Find(&supply)
	assert.Nil(t, res.Error)
	assert.True(t, res.RowsAffected > 0)
	return &supply
}

func Test_Supply(t *testing.T) {
	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}

	csm := stateManager.NewChainStateManager(nil, l, grm)
	model, err := NewSupplyModel(csm, grm, l, cfg)
	assert.Nil(t, err)

	ksm := currency.NewNativeToken(currency.Token_KSM)

	t.Run("Locks and reservations leave issuance but reduce circulation", func(t *testing.T) {
		blockTime := time.Now().UTC()
		block := &types.BlockContext{Number: 100, Hash: "hash-100", BlockTime: blockTime, Active: 100}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		_, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000100-000001-aaaaa", BlockNumber: block.Number, Name: "tokens.Locked"},
			&decoder.BalanceUpdate{Currency: ksm, Account: "acc-1", Amount: decimal.NewFromInt(500), Kind: decoder.BalanceUpdate_Locked})
		assert.Nil(t, err)

		_, err = model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000100-000002-aaaaa", BlockNumber: block.Number, Name: "tokens.Reserved"},
			&decoder.BalanceUpdate{Currency: ksm, Account: "acc-1", Amount: decimal.NewFromInt(200), Kind: decoder.BalanceUpdate_Reserved})
		assert.Nil(t, err)

		_, err = csm.CommitFinalState(block)
		assert.Nil(t, err)

		supply := latestSupply(t, grm, "KSM")
		assert.Equal(t, "500", supply.Locked.String())
		assert.Equal(t, "200", supply.Reserved.String())
		assert.Equal(t, "0", supply.TotalIssuance.String())
		assert.Equal(t, "-700", supply.Circulating.String())
	})

	t.Run("Unlock reverses the lock", func(t *testing.T) {
		blockTime := time.Now().UTC().Add(time.Minute)
		block := &types.BlockContext{Number: 101, Hash: "hash-101", BlockTime: blockTime, Active: 101}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		_, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000101-000001-aaaaa", BlockNumber: block.Number, Name: "tokens.Unlocked"},
			&decoder.BalanceUpdate{Currency: ksm, Account: "acc-1", Amount: decimal.NewFromInt(500), Kind: decoder.BalanceUpdate_Unlocked})
		assert.Nil(t, err)

		_, err = csm.CommitFinalState(block)
		assert.Nil(t, err)

		supply := latestSupply(t, grm, "KSM")
		assert.Equal(t, "0", supply.Locked.String())
		assert.Equal(t, "-200", supply.Circulating.String())
	})

	t.Run("Transfers only count when exactly one endpoint is a system account", func(t *testing.T) {
		blockTime := time.Now().UTC().Add(2 * time.Minute)
		block := &types.BlockContext{Number: 102, Hash: "hash-102", BlockTime: blockTime, Active: 102}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		// User to user: no change.
		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000102-000001-aaaaa", BlockNumber: block.Number, Name: "tokens.Transfer"},
			&decoder.Transfer{Currency: ksm, From: "acc-1", To: "acc-2", Amount: decimal.NewFromInt(100)})
		assert.Nil(t, err)
		assert.Nil(t, change)

		// System to system: no change either.
		change, err = model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000102-000002-aaaaa", BlockNumber: block.Number, Name: "tokens.Transfer"},
			&decoder.Transfer{Currency: ksm, From: systemAccount, To: otherSystemAccount, Amount: decimal.NewFromInt(999)})
		assert.Nil(t, err)
		assert.Nil(t, change)

		// Into the treasury: the system bucket grows.
		_, err = model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000102-000003-aaaaa", BlockNumber: block.Number, Name: "tokens.Transfer"},
			&decoder.Transfer{Currency: ksm, From: "acc-1", To: systemAccount, Amount: decimal.NewFromInt(100)})
		assert.Nil(t, err)

		// Out of the treasury: the system bucket shrinks.
		_, err = model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000102-000004-aaaaa", BlockNumber: block.Number, Name: "tokens.Transfer"},
			&decoder.Transfer{Currency: ksm, From: systemAccount, To: "acc-2", Amount: decimal.NewFromInt(30)})
		assert.Nil(t, err)

		_, err = csm.CommitFinalState(block)
		assert.Nil(t, err)

		supply := latestSupply(t, grm, "KSM")
		assert.Equal(t, "70", supply.SystemAccounts.String())
	})

	t.Run("Bridge executions mint and burn the wrapped token", func(t *testing.T) {
		blockTime := time.Now().UTC().Add(3 * time.Minute)
		block := &types.BlockContext{Number: 103, Hash: "hash-103", BlockTime: blockTime, Active: 103}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		_, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000103-000001-aaaaa", BlockNumber: block.Number, Name: "issue.ExecuteIssue"},
			&decoder.ExecuteIssue{IssueID: "issue-1", Amount: decimal.NewFromInt(9000)})
		assert.Nil(t, err)

		_, err = model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000103-000002-aaaaa", BlockNumber: block.Number, Name: "redeem.ExecuteRedeem"},
			&decoder.ExecuteRedeem{RedeemID: "redeem-1", Amount: decimal.NewFromInt(2000)})
		assert.Nil(t, err)

		_, err = csm.CommitFinalState(block)
		assert.Nil(t, err)

		supply := latestSupply(t, grm, cfg.Chain.WrappedSymbol)
		assert.Equal(t, "7000", supply.TotalIssuance.String())
		assert.Equal(t, "7000", supply.Circulating.String())
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
