package issues

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
	cfg.PeriodsConfig.IssuePeriodBootstrap = 100

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	dbname, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, cfg, l)
	if err != nil {
		return dbname, nil, nil, nil, err
	}

	return dbname, grm, l, cfg, nil
}

func createBlock(grm *gorm.DB, blockNumber uint64, blockTime time.Time) error {
	block := &storage.Block{
		Number:    blockNumber,
		Hash:      "some hash",
		BlockTime: blockTime,
	}
	res := grm.Model(&storage.Block{}).Create(block)
	return res.Error
}

func testVaultID() decoder.VaultID {
	return decoder.VaultID{
		AccountID:  "wdBh2Q3kQ9GcHqgJ4HxEqvWCbMf5mYdCtfFb9hnTZBJehP6Tr",
		Wrapped:    currency.NewNativeToken(currency.Token_IBTC),
		Collateral: currency.NewNativeToken(currency.Token_DOT),
	}
}

func Test_Issues(t *testing.T) {
	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}

	csm := stateManager.NewChainStateManager(nil, l, grm)
	rbm, err := relayedBlocks.NewRelayedBlocksModel(csm, grm, l, cfg)
	assert.Nil(t, err)
	vm, err := vaults.NewVaultsModel(csm, grm, l, cfg)
	assert.Nil(t, err)
	model, err := NewIssuesModel(csm, rbm, vm, grm, l, cfg)
	assert.Nil(t, err)

	t.Run("Request and execute complete the request", func(t *testing.T) {
		blockTime := time.Now().UTC()
		block := &types.BlockContext{Number: 100, Hash: "hash-100", BlockTime: blockTime, Active: 90}
		if err := createBlock(grm, block.Number, blockTime); err != nil {
			t.Fatal(err)
		}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		// A relayed header first, so the request records the BTC height.
		_, err := rbm.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000100-000000-aaaaa", BlockNumber: block.Number, Name: "btcRelay.StoreMainChainHeader"},
			&decoder.StoreMainChainHeader{BackingHeight: 1000, BlockHash: "btc-1000"})
		assert.Nil(t, err)

		// The vault has to exist before it can take requests.
		_, err = vm.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000100-000001-aaaaa", BlockNumber: block.Number, Name: "vaultRegistry.RegisterVault"},
			&decoder.RegisterVault{Vault: testVaultID(), Collateral: decimal.NewFromInt(100000)})
		assert.Nil(t, err)

		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000100-000002-aaaaa", BlockNumber: block.Number, Name: "issue.RequestIssue"},
			&decoder.RequestIssue{
				IssueID:            "issue-1",
				Requester:          "requester-1",
				Amount:             decimal.NewFromInt(5000),
				Fee:                decimal.NewFromInt(25),
				GriefingCollateral: decimal.NewFromInt(10),
				Vault:              testVaultID(),
			})
		assert.Nil(t, err)
		assert.NotNil(t, change)

		issue := change.(*types.Issue)
		assert.Equal(t, types.RequestStatus_Pending, issue.Status)
		assert.Equal(t, uint64(1000), issue.BackingHeight)
		assert.Equal(t, uint64(100), issue.Period)
		assert.Equal(t, uint64(90), issue.OpeningActive)

		change, err = model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000100-000003-aaaaa", BlockNumber: block.Number, Name: "issue.ExecuteIssue"},
			&decoder.ExecuteIssue{
				IssueID:   "issue-1",
				Requester: "requester-1",
				Amount:    decimal.NewFromInt(5000),
				Fee:       decimal.NewFromInt(25),
			})
		assert.Nil(t, err)
		assert.NotNil(t, change)

		issue = change.(*types.Issue)
		assert.Equal(t, types.RequestStatus_Completed, issue.Status)
		assert.NotNil(t, issue.ExecutionAbsolute)
		assert.Equal(t, uint64(100), *issue.ExecutionAbsolute)

		stateRoot, err := csm.CommitFinalState(block)
		assert.Nil(t, err)
		assert.NotNil(t, stateRoot)

		var committed []*types.Issue
		res := grm.Raw(`select * from issues`).Scan(&committed)
		assert.Nil(t, res.Error)
		assert.Equal(t, 1, len(committed))
		assert.Equal(t, types.RequestStatus_Completed, committed[0].Status)

		var volumes []*types.CumulativeVolume
		res = grm.Raw(`select * from cumulative_volumes where type = ?`, types.VolumeType_Issued).Scan(&volumes)
		assert.Nil(t, res.Error)
		assert.Equal(t, 1, len(volumes))
		assert.Equal(t, "5000", volumes[0].Amount.String())

		var pairVolumes []*types.CumulativeVolumePerCurrencyPair
		res = grm.Raw(`select * from cumulative_volumes_per_currency_pair where type = ?`, types.VolumeType_Issued).Scan(&pairVolumes)
		assert.Nil(t, res.Error)
		assert.Equal(t, 1, len(pairVolumes))
		assert.Equal(t, "IBTC", pairVolumes[0].WrappedCurrency)
		assert.Equal(t, "DOT", pairVolumes[0].CollateralCurrency)
	})

	t.Run("Execution for an unknown request is skipped", func(t *testing.T) {
		blockTime := time.Now().UTC()
		block := &types.BlockContext{Number: 150, Hash: "hash-150", BlockTime: blockTime, Active: 120}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000150-000001-aaaaa", BlockNumber: block.Number, Name: "issue.ExecuteIssue"},
			&decoder.ExecuteIssue{IssueID: "never-requested", Amount: decimal.NewFromInt(1)})
		assert.Nil(t, err)
		assert.Nil(t, change)
	})

	t.Run("Request against an unknown vault is skipped", func(t *testing.T) {
		blockTime := time.Now().UTC()
		block := &types.BlockContext{Number: 160, Hash: "hash-160", BlockTime: blockTime, Active: 130}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		unknown := decoder.VaultID{
			AccountID:  "wdUnregisteredVaultxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
			Wrapped:    currency.NewNativeToken(currency.Token_IBTC),
			Collateral: currency.NewNativeToken(currency.Token_INTR),
		}
		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000160-000001-aaaaa", BlockNumber: block.Number, Name: "issue.RequestIssue"},
			&decoder.RequestIssue{IssueID: "issue-orphan", Requester: "requester-9", Amount: decimal.NewFromInt(10), Vault: unknown})
		assert.Nil(t, err)
		assert.Nil(t, change)

		issue, err := model.GetIssue("issue-orphan")
		assert.Nil(t, err)
		assert.Nil(t, issue)
	})

	t.Run("Expiry requires the period to elapse on both chains", func(t *testing.T) {
		blockTime := time.Now().UTC()
		block := &types.BlockContext{Number: 200, Hash: "hash-200", BlockTime: blockTime, Active: 150}
		if err := createBlock(grm, block.Number, blockTime); err != nil {
			t.Fatal(err)
		}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		_, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000200-000001-aaaaa", BlockNumber: block.Number, Name: "issue.RequestIssue"},
			&decoder.RequestIssue{
				IssueID:   "issue-2",
				Requester: "requester-2",
				Amount:    decimal.NewFromInt(700),
				Vault:     testVaultID(),
			})
		assert.Nil(t, err)

		// Period 100 at 50 parachain blocks per BTC block: the request
		// expires once a header past 1002 is relayed and the active height
		// passes 250.
		assertPending := func() {
			issue, err := model.GetIssue("issue-2")
			assert.Nil(t, err)
			assert.Equal(t, types.RequestStatus_Pending, issue.Status)
		}

		// Only the parachain leg has elapsed.
		assert.Nil(t, model.FinalizeBlock(&types.BlockContext{Number: 201, BlockTime: blockTime, Active: 400}))
		assertPending()

		_, err = rbm.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000200-000002-aaaaa", BlockNumber: block.Number, Name: "btcRelay.StoreMainChainHeader"},
			&decoder.StoreMainChainHeader{BackingHeight: 1003, BlockHash: "btc-1003"})
		assert.Nil(t, err)

		// Only the Bitcoin leg has elapsed.
		assert.Nil(t, model.FinalizeBlock(&types.BlockContext{Number: 201, BlockTime: blockTime, Active: 200}))
		assertPending()

		// Both legs elapsed.
		assert.Nil(t, model.FinalizeBlock(&types.BlockContext{Number: 201, BlockTime: blockTime, Active: 251}))
		issue, err := model.GetIssue("issue-2")
		assert.Nil(t, err)
		assert.Equal(t, types.RequestStatus_Expired, issue.Status)

		// A late execution must not pull the request out of its terminal
		// status.
		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000200-000003-aaaaa", BlockNumber: block.Number, Name: "issue.ExecuteIssue"},
			&decoder.ExecuteIssue{IssueID: "issue-2", Amount: decimal.NewFromInt(700)})
		assert.Nil(t, err)
		assert.Nil(t, change)

		issue, err = model.GetIssue("issue-2")
		assert.Nil(t, err)
		assert.Equal(t, types.RequestStatus_Expired, issue.Status)
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
