package loans

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

func Test_Loans(t *testing.T) {
	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}

	csm := stateManager.NewChainStateManager(nil, l, grm)
	model, err := NewLoansModel(csm, grm, l, cfg)
	assert.Nil(t, err)

	ksm := currency.NewNativeToken(currency.Token_KSM)

	t.Run("Deposits and withdrawals persist with their direction", func(t *testing.T) {
		blockTime := time.Now().UTC()
		block := &types.BlockContext{Number: 700, Hash: "hash-700", BlockTime: blockTime, Active: 650}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		change, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000700-000001-aaaaa", BlockNumber: block.Number, Name: "loans.Deposited"},
			&decoder.LoanDeposit{Account: "acc-1", Currency: ksm, Amount: decimal.NewFromInt(4000)})
		assert.Nil(t, err)
		deposit := change.(*types.LoanDeposit)
		assert.Equal(t, types.LoanDepositType_Deposit, deposit.Type)

		change, err = model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000700-000002-aaaaa", BlockNumber: block.Number, Name: "loans.Withdrawn"},
			&decoder.LoanDeposit{Account: "acc-1", Currency: ksm, Amount: decimal.NewFromInt(1500), Withdrawal: true})
		assert.Nil(t, err)
		deposit = change.(*types.LoanDeposit)
		assert.Equal(t, types.LoanDepositType_Withdrawal, deposit.Type)

		_, err = csm.CommitFinalState(block)
		assert.Nil(t, err)

		var stored []*types.LoanDeposit
		res := grm.Raw(`select * from loan_deposits order by id`).Scan(&stored)
		assert.Nil(t, res.Error)
		assert.Equal(t, 2, len(stored))
		assert.Equal(t, "4000", stored[0].Amount.String())
		assert.Equal(t, "KSM", stored[0].Symbol)
		assert.Equal(t, types.LoanDepositType_Withdrawal, stored[1].Type)
	})

	t.Run("An unexpected payload type is rejected", func(t *testing.T) {
		block := &types.BlockContext{Number: 701, Hash: "hash-701", BlockTime: time.Now().UTC(), Active: 651}
		assert.Nil(t, csm.InitProcessingForBlock(block))

		_, err := model.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000701-000001-aaaaa", BlockNumber: block.Number, Name: "loans.Deposited"},
			&decoder.Transfer{})
		assert.NotNil(t, err)
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
