// Package loanDataService serves the lending market deposit projections.
package loanDataService

import (
	"context"
	"database/sql"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/service/baseDataService"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LoanDataService struct {
	baseDataService.BaseDataService
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
}

func NewLoanDataService(
	db *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) *LoanDataService {
	return &LoanDataService{
		BaseDataService: baseDataService.BaseDataService{
			DB: db,
		},
		db:           db,
		logger:       logger,
		globalConfig: globalConfig,
	}
}

type AccountLoanSummary struct {
	AccountID  string
	Symbol     string
	Deposited  decimal.Decimal
	Withdrawn  decimal.Decimal
	NetDeposit decimal.Decimal
}

// GetAccountLoanSummary sums the deposits and withdrawals of one account,
// optionally filtered by token symbol.
func (lds *LoanDataService) GetAccountLoanSummary(ctx context.Context, accountID string, symbol string) ([]*AccountLoanSummary, error) {
	query := `
		select
			account_id,
			symbol,
			coalesce(sum(case when type = 'DEPOSIT' then amount else 0 end), 0) as deposited,
			coalesce(sum(case when type = 'WITHDRAWAL' then amount else 0 end), 0) as withdrawn,
			coalesce(sum(case when type = 'DEPOSIT' then amount else -amount end), 0) as net_deposit
		from loan_deposits
		where account_id = @accountId
			and (@symbol = '' or symbol = @symbol)
		group by account_id, symbol
		order by symbol
	`

	var summaries []*AccountLoanSummary
	res := lds.db.Raw(query,
		sql.Named("accountId", accountID),
		sql.Named("symbol", symbol),
	).Scan(&summaries)
	if res.Error != nil {
		return nil, res.Error
	}
	return summaries, nil
}
