package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Height maps one absolute block number to the chain's active height at that
// block. Backfilled rows carry the last known active height forward.
type Height struct {
	Absolute       uint64 `gorm:"primaryKey"`
	Active         uint64
	BlockTimestamp time.Time
}

type Vault struct {
	// ID is "<accountId>-<wrappedCurrency>-<collateralCurrency>".
	ID                    string `gorm:"primaryKey"`
	AccountID             string
	WrappedCurrency       string
	CollateralCurrency    string
	RegistrationBlock     uint64
	RegistrationTimestamp time.Time
	Collateral            decimal.Decimal
	// PendingWrapped is the sum of wrapped amounts in open issue requests
	// against this vault.
	PendingWrapped       decimal.Decimal
	LastActivityAbsolute *uint64
}

type RequestStatus string

const (
	RequestStatus_Pending   RequestStatus = "PENDING"
	RequestStatus_Completed RequestStatus = "COMPLETED"
	RequestStatus_Cancelled RequestStatus = "CANCELLED"
	RequestStatus_Expired   RequestStatus = "EXPIRED"
	// Retried and Reimbursed are the cancellation outcomes of a redeem: the
	// redeemer either retries on Bitcoin or is reimbursed on the parachain.
	RequestStatus_Retried    RequestStatus = "RETRIED"
	RequestStatus_Reimbursed RequestStatus = "REIMBURSED"
	// RequestedRefund marks an issue whose overpayment triggered a refund.
	RequestStatus_RequestedRefund RequestStatus = "REQUESTED_REFUND"
)

type Issue struct {
	ID                   string `gorm:"primaryKey"`
	Status               RequestStatus
	AmountWrapped        decimal.Decimal
	BridgeFee            decimal.Decimal
	GriefingCollateral   decimal.Decimal
	VaultID              string
	UserParachainAddress string
	VaultBackingAddress  *string
	OpeningAbsolute      uint64
	OpeningActive        uint64
	OpeningTimestamp     time.Time
	// BackingHeight is the Bitcoin chain height known to the relay when the
	// request was opened; the expiry sweep measures BTC confirmations from it.
	BackingHeight uint64
	Period        uint64

	ExecutionAmountWrapped *decimal.Decimal
	ExecutionFeeWrapped    *decimal.Decimal
	ExecutionAbsolute      *uint64
	ExecutionTimestamp     *time.Time

	CancellationAbsolute  *uint64
	CancellationTimestamp *time.Time

	RefundAmountPaid *decimal.Decimal
	RefundBtcFee     *decimal.Decimal
	RefundBtcAddress *string
	RefundAbsolute   *uint64
	RefundTimestamp  *time.Time
}

type Redeem struct {
	ID                   string `gorm:"primaryKey"`
	Status               RequestStatus
	AmountWrapped        decimal.Decimal
	BridgeFee            decimal.Decimal
	BtcTransferFee       decimal.Decimal
	VaultID              string
	UserParachainAddress string
	UserBackingAddress   *string
	OpeningAbsolute      uint64
	OpeningActive        uint64
	OpeningTimestamp     time.Time
	BackingHeight        uint64
	Period               uint64

	ExecutionAbsolute  *uint64
	ExecutionTimestamp *time.Time

	CancellationAbsolute          *uint64
	CancellationTimestamp         *time.Time
	CancellationSlashedCollateral *decimal.Decimal
	CancellationReimbursed        *bool
}

// IssuePeriod is one historical value of the issue period. The row with the
// highest absolute height is the period in force.
type IssuePeriod struct {
	ID             string `gorm:"primaryKey"`
	Value          uint64
	Absolute       uint64
	Active         uint64
	BlockTimestamp time.Time
}

type RedeemPeriod struct {
	ID             string `gorm:"primaryKey"`
	Value          uint64
	Absolute       uint64
	Active         uint64
	BlockTimestamp time.Time
}

type RelayedBlock struct {
	BackingHeight     uint64 `gorm:"primaryKey"`
	BlockHash         string
	RelayedAtAbsolute uint64
	RelayedAtActive   uint64
	BlockTimestamp    time.Time
	Relayer           *string
}

type TokenLock struct {
	ID               string `gorm:"primaryKey"`
	AccountID        string
	Currency         string
	LockID           string
	Amount           decimal.Decimal
	SetAbsolute      uint64
	SetTimestamp     time.Time
	RemovedAbsolute  *uint64
	RemovedTimestamp *time.Time
}

type Transfer struct {
	ID             string `gorm:"primaryKey"`
	FromAccount    string
	ToAccount      string
	Currency       string
	Amount         decimal.Decimal
	Absolute       uint64
	Active         uint64
	BlockTimestamp time.Time
}

// Swap is one leg of a trade. A multi-hop trade produces one row per
// adjacent currency pair in its path.
type Swap struct {
	ID             string `gorm:"primaryKey"`
	PoolID         string
	FromAccount    string
	ToAccount      string
	FromCurrency   string
	ToCurrency     string
	FromAmount     decimal.Decimal
	ToAmount       decimal.Decimal
	Absolute       uint64
	Active         uint64
	BlockTimestamp time.Time
}

type LoanDepositType string

const (
	LoanDepositType_Deposit    LoanDepositType = "DEPOSIT"
	LoanDepositType_Withdrawal LoanDepositType = "WITHDRAWAL"
)

type LoanDeposit struct {
	ID             string `gorm:"primaryKey"`
	Type           LoanDepositType
	AccountID      string
	Symbol         string
	Amount         decimal.Decimal
	Absolute       uint64
	BlockTimestamp time.Time
}

type VolumeType string

const (
	VolumeType_Issued   VolumeType = "ISSUED"
	VolumeType_Redeemed VolumeType = "REDEEMED"
)

// CumulativeVolume is an append-only running total. Each row extends the
// previous total for the same type up to TillTimestamp.
type CumulativeVolume struct {
	ID            string `gorm:"primaryKey"`
	Type          VolumeType
	TillTimestamp time.Time
	Amount        decimal.Decimal
}

type CumulativeVolumePerCurrencyPair struct {
	ID                 string `gorm:"primaryKey"`
	Type               VolumeType
	TillTimestamp      time.Time
	Amount             decimal.Decimal
	WrappedCurrency    string
	CollateralCurrency string
}

func (CumulativeVolumePerCurrencyPair) TableName() string {
	return "cumulative_volumes_per_currency_pair"
}

type CumulativeDexTradingVolumePerPool struct {
	ID            string `gorm:"primaryKey"`
	PoolID        string
	Currency      string
	TillTimestamp time.Time
	Amount        decimal.Decimal
}

func (CumulativeDexTradingVolumePerPool) TableName() string {
	return "cumulative_dex_trading_volumes_per_pool"
}

type CumulativeDexTradingVolumePerAccount struct {
	ID            string `gorm:"primaryKey"`
	AccountID     string
	Currency      string
	TillTimestamp time.Time
	Amount        decimal.Decimal
}

func (CumulativeDexTradingVolumePerAccount) TableName() string {
	return "cumulative_dex_trading_volumes_per_account"
}

type CumulativeDexTradeCount struct {
	ID            string `gorm:"primaryKey"`
	PoolID        string
	TillTimestamp time.Time
	Amount        decimal.Decimal
}

// CumulativeCirculatingSupply tracks the components of the circulating
// supply for one token symbol. Circulating is always derived as
// TotalIssuance - Locked - Reserved - SystemAccounts.
type CumulativeCirculatingSupply struct {
	ID             string `gorm:"primaryKey"`
	Symbol         string
	TillTimestamp  time.Time
	TotalIssuance  decimal.Decimal
	Locked         decimal.Decimal
	Reserved       decimal.Decimal
	SystemAccounts decimal.Decimal
	Circulating    decimal.Decimal
}
