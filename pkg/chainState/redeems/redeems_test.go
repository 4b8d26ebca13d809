package redeems

import (
	"os"
	"testing"
	"time"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/internal/logger"
	"github.com/interlay/interbtc-indexer/internal/tests"
	"github.com/interlay/interbtc-indexer/pkg/chainState/relayedBlocks"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/chainState/vaults"
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
	cfg.PeriodsConfig.RedeemPeriodBootstrap = 7200

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	dbname, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, cfg, l)
	if err != nil {
		return dbname, nil, nil, nil, err
	}

	return dbname, grm, l, cfg, nil
}

func testVaultID() decoder.VaultID {
	return decoder.VaultID{
		AccountID:  "wdBh2Q3kQ9GcHqgJ4HxEqvWCbMf5mYdCtfFb9hnTZBJehP6Tr",
		Wrapped:    currency.NewNativeToken(currency.Token_IBTC),
		Collateral: currency.NewNativeToken(currency.Token_DOT),
	}
}

func requestRedeem(t *testing.T, model *RedeemsModel, block *types.BlockContext, redeemID string, eventID string) *types.Redeem {
	change, err := model.HandleDecodedEvent(block,
		&storage.Event{EventID: eventID, BlockNumber: block.Number, Name: "redeem.RequestRedeem"},
		&decoder.RequestRedeem{
			RedeemID:    redeemID,
			Redeemer:    "redeemer-1",
			Amount:      decimal.NewFromInt(3000),
			Fee:         decimal.NewFromInt(15),
			TransferFee: decimal.NewFromInt(5),
			Vault:       testVaultID(),
		})
	assert.Nil(t, err)
	assert.NotNil(t, change)
	return change.(*types.Redeem)
}

func Test_Redeems(t *testing.T) {
	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}

	csm := stateManager.NewChainStateManager(nil, l, grm)
	rbm, err := relayedBlocks.NewRelayedBlocksModel(csm, grm, l, cfg)
	assert.Nil(t, err)
	vm, err := vaults.NewVaultsModel(csm, grm, l, cfg)
	assert.Nil(t, err)
	model, err := NewRedeemsModel(csm, rbm, vm, grm, l, cfg)
	assert.Nil(t, err)

	blockTime := time.Now().UTC()
	block := &types.BlockContext{Number: 300, Hash: "hash-300", BlockTime: blockTime, Active: 280}

	t.Run("Request picks up the bootstrap period", func(t *testing.T) {
		assert.Nil(t, csm.InitProcessingForBlock(block))

		_, err := vm.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000300-000000-aaaaa", BlockNumber: block.Number, Name: "vaultRegistry.RegisterVault"},
			&decoder.RegisterVault{Vault: testVaultID(), Collateral: decimal.NewFromInt(100000)})
		assert.Nil(t, err)

		redeem := requestRedeem(t, model, block, "redeem-1", "0000300-000001-aaaaa")
		assert.Equal(t, types.RequestStatus_Pending, redeem.Status)
		assert.Equal(t, uint64(7200), redeem.Period)
		assert.Equal(t, "5", redeem.BtcTransferFee.String())
		// No header relayed yet; the BTC height at opening is unknown.
		assert.Equal(t, uint64(0), redeem.BackingHeight)
	})

	t.Run("Execution completes the request and extends redeemed volume", func(t *testing.T) {
		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000300-000002-aaaaa", BlockNumber: block.Number, Name: "redeem.ExecuteRedeem"},
			&decoder.ExecuteRedeem{
				RedeemID: "redeem-1",
				Redeemer: "redeemer-1",
				Vault:    testVaultID(),
				Amount:   decimal.NewFromInt(3000),
			})
		assert.Nil(t, err)
		assert.NotNil(t, change)

		redeem := change.(*types.Redeem)
		assert.Equal(t, types.RequestStatus_Completed, redeem.Status)

		stateRoot, err := csm.CommitFinalState(block)
		assert.Nil(t, err)
		assert.NotNil(t, stateRoot)

		var volumes []*types.CumulativeVolume
		res := grm.Raw(`select * from cumulative_volumes where type = ?`, types.VolumeType_Redeemed).Scan(&volumes)
		assert.Nil(t, res.Error)
		assert.Equal(t, 1, len(volumes))
		assert.Equal(t, "3000", volumes[0].Amount.String())
	})

	t.Run("Cancellation outcome follows the reimbursed flag", func(t *testing.T) {
		next := &types.BlockContext{Number: 301, Hash: "hash-301", BlockTime: blockTime, Active: 281}
		assert.Nil(t, csm.InitProcessingForBlock(next))

		requestRedeem(t, model, next, "redeem-2", "0000301-000001-aaaaa")
		requestRedeem(t, model, next, "redeem-3", "0000301-000002-aaaaa")

		change, err := model.HandleDecodedEvent(next,
			&storage.Event{EventID: "0000301-000003-aaaaa", BlockNumber: next.Number, Name: "redeem.CancelRedeem"},
			&decoder.CancelRedeem{
				RedeemID:      "redeem-2",
				Redeemer:      "redeemer-1",
				Vault:         testVaultID(),
				SlashedAmount: decimal.NewFromInt(40),
				Reimbursed:    true,
			})
		assert.Nil(t, err)
		redeem := change.(*types.Redeem)
		assert.Equal(t, types.RequestStatus_Reimbursed, redeem.Status)
		assert.NotNil(t, redeem.CancellationSlashedCollateral)
		assert.Equal(t, "40", redeem.CancellationSlashedCollateral.String())

		change, err = model.HandleDecodedEvent(next,
			&storage.Event{EventID: "0000301-000004-aaaaa", BlockNumber: next.Number, Name: "redeem.CancelRedeem"},
			&decoder.CancelRedeem{
				RedeemID: "redeem-3",
				Redeemer: "redeemer-1",
				Vault:    testVaultID(),
			})
		assert.Nil(t, err)
		redeem = change.(*types.Redeem)
		assert.Equal(t, types.RequestStatus_Retried, redeem.Status)
	})

	t.Run("Cancellation for an unknown request is skipped", func(t *testing.T) {
		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000301-000005-aaaaa", BlockNumber: block.Number, Name: "redeem.CancelRedeem"},
			&decoder.CancelRedeem{RedeemID: "never-requested", Vault: testVaultID()})
		assert.Nil(t, err)
		assert.Nil(t, change)
	})

	t.Run("Request against an unknown vault is skipped", func(t *testing.T) {
		unknown := decoder.VaultID{
			AccountID:  "wdUnregisteredVaultxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
			Wrapped:    currency.NewNativeToken(currency.Token_IBTC),
			Collateral: currency.NewNativeToken(currency.Token_INTR),
		}
		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000301-000006-aaaaa", BlockNumber: block.Number, Name: "redeem.RequestRedeem"},
			&decoder.RequestRedeem{RedeemID: "redeem-orphan", Redeemer: "redeemer-9", Amount: decimal.NewFromInt(10), Vault: unknown})
		assert.Nil(t, err)
		assert.Nil(t, change)

		redeem, err := model.GetRedeem("redeem-orphan")
		assert.Nil(t, err)
		assert.Nil(t, redeem)
	})

	t.Run("Execution after cancellation keeps the terminal status", func(t *testing.T) {
		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000301-000007-aaaaa", BlockNumber: block.Number, Name: "redeem.ExecuteRedeem"},
			&decoder.ExecuteRedeem{RedeemID: "redeem-2", Redeemer: "redeemer-1", Vault: testVaultID(), Amount: decimal.NewFromInt(3000)})
		assert.Nil(t, err)
		assert.Nil(t, change)

		redeem, err := model.GetRedeem("redeem-2")
		assert.Nil(t, err)
		assert.Equal(t, types.RequestStatus_Reimbursed, redeem.Status)
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
