package decoder

import (
	"encoding/hex"
	"encoding/json"

	"github.com/interlay/interbtc-indexer/pkg/bitcoin"
	"github.com/interlay/interbtc-indexer/pkg/currency"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Typed event records produced by Decode. Amounts are raw chain units.

type UpdateActiveBlock struct {
	Active uint64
}

type RegisterVault struct {
	Vault      VaultID
	Collateral decimal.Decimal
}

// CollateralChange covers both IncreaseLockedCollateral and
// DecreaseLockedCollateral; Increase selects the sign.
type CollateralChange struct {
	Vault    VaultID
	Delta    decimal.Decimal
	Total    decimal.Decimal
	Increase bool
}

type RequestIssue struct {
	IssueID            string
	Requester          string
	Amount             decimal.Decimal
	Fee                decimal.Decimal
	GriefingCollateral decimal.Decimal
	Vault              VaultID
	VaultBtcAddress    *bitcoin.Address
}

type ExecuteIssue struct {
	IssueID   string
	Requester string
	Amount    decimal.Decimal
	Fee       decimal.Decimal
}

type CancelIssue struct {
	IssueID            string
	Requester          string
	GriefingCollateral decimal.Decimal
}

// ExecuteRefund reports an over-payment refund tied to an earlier issue
// request.
type ExecuteRefund struct {
	RefundID   string
	IssueID    string
	Amount     decimal.Decimal
	Fee        decimal.Decimal
	BtcAddress *bitcoin.Address
}

// PeriodChange covers issue.IssuePeriodChange and redeem.RedeemPeriodChange;
// the event name disambiguates at the call site.
type PeriodChange struct {
	Period uint64
}

type RequestRedeem struct {
	RedeemID       string
	Redeemer       string
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	Premium        decimal.Decimal
	TransferFee    decimal.Decimal
	Vault          VaultID
	UserBtcAddress *bitcoin.Address
}

type ExecuteRedeem struct {
	RedeemID string
	Redeemer string
	Vault    VaultID
	Amount   decimal.Decimal
	Fee      decimal.Decimal
}

type CancelRedeem struct {
	RedeemID      string
	Redeemer      string
	Vault         VaultID
	SlashedAmount decimal.Decimal
	Reimbursed    bool
}

type StoreMainChainHeader struct {
	BackingHeight uint64
	BlockHash     string
	Relayer       string
}

type Transfer struct {
	Currency currency.Currency
	From     string
	To       string
	Amount   decimal.Decimal
}

type BalanceUpdateKind string

const (
	BalanceUpdate_Locked     BalanceUpdateKind = "Locked"
	BalanceUpdate_Unlocked   BalanceUpdateKind = "Unlocked"
	BalanceUpdate_Reserved   BalanceUpdateKind = "Reserved"
	BalanceUpdate_Unreserved BalanceUpdateKind = "Unreserved"
)

type BalanceUpdate struct {
	Currency currency.Currency
	Account  string
	Amount   decimal.Decimal
	Kind     BalanceUpdateKind
}

type LockSet struct {
	LockID   string
	Currency currency.Currency
	Account  string
	Amount   decimal.Decimal
}

type LockRemoved struct {
	LockID   string
	Currency currency.Currency
	Account  string
}

type AssetSwap struct {
	Trader    string
	Recipient string
	Path      []currency.Currency
	Amounts   []decimal.Decimal
}

type LoanDeposit struct {
	Account    string
	Currency   currency.Currency
	Amount     decimal.Decimal
	Withdrawal bool
}

// buildLayouts wires every known event name to its ordered layout list,
// newest encoding first. Adding support for a future runtime upgrade is a
// one-entry insertion at the head of the relevant list.
func (d *Decoder) buildLayouts() map[string][]layout {
	return map[string][]layout{
		"security.UpdateActiveBlock": {
			{matches: anyVersion, decode: d.decodeUpdateActiveBlock},
		},
		"vaultRegistry.RegisterVault": {
			{matches: d.isGeneralized, decode: d.decodeRegisterVault(true)},
			{matches: d.isLegacy, decode: d.decodeRegisterVault(false)},
		},
		"vaultRegistry.IncreaseLockedCollateral": {
			{matches: d.isGeneralized, decode: d.decodeCollateralChange(true, true)},
			{matches: d.isLegacy, decode: d.decodeCollateralChange(false, true)},
		},
		"vaultRegistry.DecreaseLockedCollateral": {
			{matches: d.isGeneralized, decode: d.decodeCollateralChange(true, false)},
			{matches: d.isLegacy, decode: d.decodeCollateralChange(false, false)},
		},
		"issue.RequestIssue": {
			{matches: d.isGeneralized, decode: d.decodeRequestIssue(true)},
			{matches: d.isLegacy, decode: d.decodeRequestIssue(false)},
		},
		"issue.ExecuteIssue": {
			{matches: anyVersion, decode: d.decodeExecuteIssue},
		},
		"issue.CancelIssue": {
			{matches: anyVersion, decode: d.decodeCancelIssue},
		},
		"issue.IssuePeriodChange": {
			{matches: anyVersion, decode: decodePeriodChange},
		},
		"refund.ExecuteRefund": {
			{matches: anyVersion, decode: d.decodeExecuteRefund},
		},
		"redeem.RequestRedeem": {
			{matches: d.isGeneralized, decode: d.decodeRequestRedeem(true)},
			{matches: d.isLegacy, decode: d.decodeRequestRedeem(false)},
		},
		"redeem.ExecuteRedeem": {
			{matches: d.isGeneralized, decode: d.decodeExecuteRedeem(true)},
			{matches: d.isLegacy, decode: d.decodeExecuteRedeem(false)},
		},
		"redeem.CancelRedeem": {
			{matches: d.isGeneralized, decode: d.decodeCancelRedeem(true)},
			{matches: d.isLegacy, decode: d.decodeCancelRedeem(false)},
		},
		"redeem.RedeemPeriodChange": {
			{matches: anyVersion, decode: decodePeriodChange},
		},
		"btcRelay.StoreMainChainHeader": {
			{matches: anyVersion, decode: d.decodeStoreMainChainHeader},
		},
		"tokens.Transfer": {
			{matches: d.isGeneralized, decode: d.decodeTransfer(true)},
			{matches: d.isLegacy, decode: d.decodeTransfer(false)},
		},
		"tokens.Locked": {
			{matches: d.isGeneralized, decode: d.decodeBalanceUpdate(true, BalanceUpdate_Locked)},
			{matches: d.isLegacy, decode: d.decodeBalanceUpdate(false, BalanceUpdate_Locked)},
		},
		"tokens.Unlocked": {
			{matches: d.isGeneralized, decode: d.decodeBalanceUpdate(true, BalanceUpdate_Unlocked)},
			{matches: d.isLegacy, decode: d.decodeBalanceUpdate(false, BalanceUpdate_Unlocked)},
		},
		"tokens.Reserved": {
			{matches: d.isGeneralized, decode: d.decodeBalanceUpdate(true, BalanceUpdate_Reserved)},
			{matches: d.isLegacy, decode: d.decodeBalanceUpdate(false, BalanceUpdate_Reserved)},
		},
		"tokens.Unreserved": {
			{matches: d.isGeneralized, decode: d.decodeBalanceUpdate(true, BalanceUpdate_Unreserved)},
			{matches: d.isLegacy, decode: d.decodeBalanceUpdate(false, BalanceUpdate_Unreserved)},
		},
		"tokens.LockSet": {
			{matches: d.isGeneralized, decode: d.decodeLockSet(true)},
			{matches: d.isLegacy, decode: d.decodeLockSet(false)},
		},
		"tokens.LockRemoved": {
			{matches: d.isGeneralized, decode: d.decodeLockRemoved(true)},
			{matches: d.isLegacy, decode: d.decodeLockRemoved(false)},
		},
		// The general DEX and lending markets only exist on generalized
		// runtimes; older spec versions fall through to the warning path.
		"dexGeneral.AssetSwap": {
			{matches: d.isGeneralized, decode: d.decodeAssetSwap},
		},
		"loans.Deposited": {
			{matches: d.isGeneralized, decode: d.decodeLoanDeposit(false)},
		},
		"loans.Withdrawn": {
			{matches: d.isGeneralized, decode: d.decodeLoanDeposit(true)},
		},
	}
}

func (d *Decoder) decodeUpdateActiveBlock(payload []byte) (interface{}, error) {
	var raw struct {
		BlockNumber json.RawMessage `json:"blockNumber"`
	}
	if err := parsePayload(payload, &raw); err != nil {
		return nil, err
	}
	active, err := decodeUint64(raw.BlockNumber)
	if err != nil {
		return nil, err
	}
	return &UpdateActiveBlock{Active: active}, nil
}

func (d *Decoder) decodeRegisterVault(generalized bool) func([]byte) (interface{}, error) {
	return func(payload []byte) (interface{}, error) {
		var raw struct {
			VaultID    json.RawMessage `json:"vaultId"`
			Collateral json.RawMessage `json:"collateral"`
		}
		if err := parsePayload(payload, &raw); err != nil {
			return nil, err
		}
		vault, err := d.decodeVaultID(raw.VaultID, generalized)
		if err != nil {
			return nil, err
		}
		collateral, err := decodeAmount(raw.Collateral)
		if err != nil {
			return nil, err
		}
		return &RegisterVault{Vault: vault, Collateral: collateral}, nil
	}
}

func (d *Decoder) decodeCollateralChange(generalized bool, increase bool) func([]byte) (interface{}, error) {
	return func(payload []byte) (interface{}, error) {
		var raw struct {
			VaultID json.RawMessage `json:"vaultId"`
			Delta   json.RawMessage `json:"delta"`
			Total   json.RawMessage `json:"total"`
		}
		if err := parsePayload(payload, &raw); err != nil {
			return nil, err
		}
		vault, err := d.decodeVaultID(raw.VaultID, generalized)
		if err != nil {
			return nil, err
		}
		delta, err := decodeAmount(raw.Delta)
		if err != nil {
			return nil, err
		}
		total, err := decodeAmount(raw.Total)
		if err != nil {
			return nil, err
		}
		return &CollateralChange{Vault: vault, Delta: delta, Total: total, Increase: increase}, nil
	}
}

func (d *Decoder) decodeRequestIssue(generalized bool) func([]byte) (interface{}, error) {
	return func(payload []byte) (interface{}, error) {
		var raw struct {
			IssueID            json.RawMessage `json:"issueId"`
			Requester          json.RawMessage `json:"requester"`
			Amount             json.RawMessage `json:"amount"`
			Fee                json.RawMessage `json:"fee"`
			GriefingCollateral json.RawMessage `json:"griefingCollateral"`
			VaultID            json.RawMessage `json:"vaultId"`
			VaultBtcAddress    json.RawMessage `json:"vaultAddress"`
		}
		if err := parsePayload(payload, &raw); err != nil {
			return nil, err
		}
		issueID, err := decodeHash(raw.IssueID)
		if err != nil {
			return nil, err
		}
		requester, err := d.decodeAccount(raw.Requester)
		if err != nil {
			return nil, err
		}
		amount, err := decodeAmount(raw.Amount)
		if err != nil {
			return nil, err
		}
		fee, err := decodeAmount(raw.Fee)
		if err != nil {
			return nil, err
		}
		griefing, err := decodeAmount(raw.GriefingCollateral)
		if err != nil {
			return nil, err
		}
		vault, err := d.decodeVaultID(raw.VaultID, generalized)
		if err != nil {
			return nil, err
		}
		var btcAddress *bitcoin.Address
		if len(raw.VaultBtcAddress) > 0 {
			btcAddress, err = decodeBtcAddress(raw.VaultBtcAddress)
			if err != nil {
				return nil, err
			}
		}
		return &RequestIssue{
			IssueID:            issueID,
			Requester:          requester,
			Amount:             amount,
			Fee:                fee,
			GriefingCollateral: griefing,
			Vault:              vault,
			VaultBtcAddress:    btcAddress,
		}, nil
	}
}

func (d *Decoder) decodeExecuteIssue(payload []byte) (interface{}, error) {
	var raw struct {
		IssueID   json.RawMessage `json:"issueId"`
		Requester json.RawMessage `json:"requester"`
		Amount    json.RawMessage `json:"amount"`
		Fee       json.RawMessage `json:"fee"`
	}
	if err := parsePayload(payload, &raw); err != nil {
		return nil, err
	}
	issueID, err := decodeHash(raw.IssueID)
	if err != nil {
		return nil, err
	}
	requester, err := d.decodeAccount(raw.Requester)
	if err != nil {
		return nil, err
	}
	amount, err := decodeAmount(raw.Amount)
	if err != nil {
		return nil, err
	}
	// Fee was only added to the event in later runtimes.
	fee := decimal.Zero
	if len(raw.Fee) > 0 {
		fee, err = decodeAmount(raw.Fee)
		if err != nil {
			return nil, err
		}
	}
	return &ExecuteIssue{IssueID: issueID, Requester: requester, Amount: amount, Fee: fee}, nil
}

func (d *Decoder) decodeCancelIssue(payload []byte) (interface{}, error) {
	var raw struct {
		IssueID            json.RawMessage `json:"issueId"`
		Requester          json.RawMessage `json:"requester"`
		GriefingCollateral json.RawMessage `json:"griefingCollateral"`
	}
	if err := parsePayload(payload, &raw); err != nil {
		return nil, err
	}
	issueID, err := decodeHash(raw.IssueID)
	if err != nil {
		return nil, err
	}
	requester, err := d.decodeAccount(raw.Requester)
	if err != nil {
		return nil, err
	}
	griefing := decimal.Zero
	if len(raw.GriefingCollateral) > 0 {
		griefing, err = decodeAmount(raw.GriefingCollateral)
		if err != nil {
			return nil, err
		}
	}
	return &CancelIssue{IssueID: issueID, Requester: requester, GriefingCollateral: griefing}, nil
}

func (d *Decoder) decodeExecuteRefund(payload []byte) (interface{}, error) {
	var raw struct {
		RefundID   json.RawMessage `json:"refundId"`
		IssueID    json.RawMessage `json:"issueId"`
		Amount     json.RawMessage `json:"amount"`
		Fee        json.RawMessage `json:"fee"`
		BtcAddress json.RawMessage `json:"btcAddress"`
	}
	if err := parsePayload(payload, &raw); err != nil {
		return nil, err
	}
	refundID, err := decodeHash(raw.RefundID)
	if err != nil {
		return nil, err
	}
	issueID, err := decodeHash(raw.IssueID)
	if err != nil {
		return nil, err
	}
	amount, err := decodeAmount(raw.Amount)
	if err != nil {
		return nil, err
	}
	fee := decimal.Zero
	if len(raw.Fee) > 0 {
		fee, err = decodeAmount(raw.Fee)
		if err != nil {
			return nil, err
		}
	}
	var btcAddress *bitcoin.Address
	if len(raw.BtcAddress) > 0 {
		btcAddress, err = decodeBtcAddress(raw.BtcAddress)
		if err != nil {
			return nil, err
		}
	}
	return &ExecuteRefund{RefundID: refundID, IssueID: issueID, Amount: amount, Fee: fee, BtcAddress: btcAddress}, nil
}

func decodePeriodChange(payload []byte) (interface{}, error) {
	var raw struct {
		Period json.RawMessage `json:"period"`
	}
	if err := parsePayload(payload, &raw); err != nil {
		return nil, err
	}
	period, err := decodeUint64(raw.Period)
	if err != nil {
		return nil, err
	}
	return &PeriodChange{Period: period}, nil
}

func (d *Decoder) decodeRequestRedeem(generalized bool) func([]byte) (interface{}, error) {
	return func(payload []byte) (interface{}, error) {
		var raw struct {
			RedeemID       json.RawMessage `json:"redeemId"`
			Redeemer       json.RawMessage `json:"redeemer"`
			Amount         json.RawMessage `json:"amount"`
			Fee            json.RawMessage `json:"fee"`
			Premium        json.RawMessage `json:"premium"`
			TransferFee    json.RawMessage `json:"btcTransferFee"`
			VaultID        json.RawMessage `json:"vaultId"`
			UserBtcAddress json.RawMessage `json:"btcAddress"`
		}
		if err := parsePayload(payload, &raw); err != nil {
			return nil, err
		}
		redeemID, err := decodeHash(raw.RedeemID)
		if err != nil {
			return nil, err
		}
		redeemer, err := d.decodeAccount(raw.Redeemer)
		if err != nil {
			return nil, err
		}
		amount, err := decodeAmount(raw.Amount)
		if err != nil {
			return nil, err
		}
		fee, err := decodeAmount(raw.Fee)
		if err != nil {
			return nil, err
		}
		premium := decimal.Zero
		if len(raw.Premium) > 0 {
			premium, err = decodeAmount(raw.Premium)
			if err != nil {
				return nil, err
			}
		}
		transferFee := decimal.Zero
		if len(raw.TransferFee) > 0 {
			transferFee, err = decodeAmount(raw.TransferFee)
			if err != nil {
				return nil, err
			}
		}
		vault, err := d.decodeVaultID(raw.VaultID, generalized)
		if err != nil {
			return nil, err
		}
		var btcAddress *bitcoin.Address
		if len(raw.UserBtcAddress) > 0 {
			btcAddress, err = decodeBtcAddress(raw.UserBtcAddress)
			if err != nil {
				return nil, err
			}
		}
		return &RequestRedeem{
			RedeemID:       redeemID,
			Redeemer:       redeemer,
			Amount:         amount,
			Fee:            fee,
			Premium:        premium,
			TransferFee:    transferFee,
			Vault:          vault,
			UserBtcAddress: btcAddress,
		}, nil
	}
}

func (d *Decoder) decodeExecuteRedeem(generalized bool) func([]byte) (interface{}, error) {
	return func(payload []byte) (interface{}, error) {
		var raw struct {
			RedeemID json.RawMessage `json:"redeemId"`
			Redeemer json.RawMessage `json:"redeemer"`
			VaultID  json.RawMessage `json:"vaultId"`
			Amount   json.RawMessage `json:"amount"`
			Fee      json.RawMessage `json:"fee"`
		}
		if err := parsePayload(payload, &raw); err != nil {
			return nil, err
		}
		redeemID, err := decodeHash(raw.RedeemID)
		if err != nil {
			return nil, err
		}
		redeemer, err := d.decodeAccount(raw.Redeemer)
		if err != nil {
			return nil, err
		}
		vault, err := d.decodeVaultID(raw.VaultID, generalized)
		if err != nil {
			return nil, err
		}
		// Older runtimes do not include the amount in the event.
		amount := decimal.Zero
		if len(raw.Amount) > 0 {
			amount, err = decodeAmount(raw.Amount)
			if err != nil {
				return nil, err
			}
		}
		fee := decimal.Zero
		if len(raw.Fee) > 0 {
			fee, err = decodeAmount(raw.Fee)
			if err != nil {
				return nil, err
			}
		}
		return &ExecuteRedeem{RedeemID: redeemID, Redeemer: redeemer, Vault: vault, Amount: amount, Fee: fee}, nil
	}
}

func (d *Decoder) decodeCancelRedeem(generalized bool) func([]byte) (interface{}, error) {
	return func(payload []byte) (interface{}, error) {
		var raw struct {
			RedeemID      json.RawMessage `json:"redeemId"`
			Redeemer      json.RawMessage `json:"redeemer"`
			VaultID       json.RawMessage `json:"vaultId"`
			SlashedAmount json.RawMessage `json:"slashedAmount"`
			Status        json.RawMessage `json:"status"`
		}
		if err := parsePayload(payload, &raw); err != nil {
			return nil, err
		}
		redeemID, err := decodeHash(raw.RedeemID)
		if err != nil {
			return nil, err
		}
		redeemer, err := d.decodeAccount(raw.Redeemer)
		if err != nil {
			return nil, err
		}
		vault, err := d.decodeVaultID(raw.VaultID, generalized)
		if err != nil {
			return nil, err
		}
		slashed := decimal.Zero
		if len(raw.SlashedAmount) > 0 {
			slashed, err = decodeAmount(raw.SlashedAmount)
			if err != nil {
				return nil, err
			}
		}
		reimbursed := false
		if len(raw.Status) > 0 {
			var status taggedValue
			if err := parsePayload(raw.Status, &status); err != nil {
				return nil, errors.Wrap(err, "malformed redeem status")
			}
			reimbursed = status.Kind == "Reimbursed"
		}
		return &CancelRedeem{
			RedeemID:      redeemID,
			Redeemer:      redeemer,
			Vault:         vault,
			SlashedAmount: slashed,
			Reimbursed:    reimbursed,
		}, nil
	}
}

func (d *Decoder) decodeStoreMainChainHeader(payload []byte) (interface{}, error) {
	var raw struct {
		BlockHeight json.RawMessage `json:"blockHeight"`
		BlockHash   json.RawMessage `json:"blockHash"`
		RelayerID   json.RawMessage `json:"relayerId"`
	}
	if err := parsePayload(payload, &raw); err != nil {
		return nil, err
	}
	height, err := decodeUint64(raw.BlockHeight)
	if err != nil {
		return nil, err
	}
	hash, err := decodeHash(raw.BlockHash)
	if err != nil {
		return nil, err
	}
	relayer := ""
	if len(raw.RelayerID) > 0 {
		relayer, err = d.decodeAccount(raw.RelayerID)
		if err != nil {
			return nil, err
		}
	}
	return &StoreMainChainHeader{BackingHeight: height, BlockHash: hash, Relayer: relayer}, nil
}

func (d *Decoder) decodeTransfer(generalized bool) func([]byte) (interface{}, error) {
	return func(payload []byte) (interface{}, error) {
		var raw struct {
			CurrencyID json.RawMessage `json:"currencyId"`
			From       json.RawMessage `json:"from"`
			To         json.RawMessage `json:"to"`
			Amount     json.RawMessage `json:"amount"`
		}
		if err := parsePayload(payload, &raw); err != nil {
			return nil, err
		}
		cur, err := d.decodeCurrency(raw.CurrencyID, generalized)
		if err != nil {
			return nil, err
		}
		from, err := d.decodeAccount(raw.From)
		if err != nil {
			return nil, err
		}
		to, err := d.decodeAccount(raw.To)
		if err != nil {
			return nil, err
		}
		amount, err := decodeAmount(raw.Amount)
		if err != nil {
			return nil, err
		}
		return &Transfer{Currency: cur, From: from, To: to, Amount: amount}, nil
	}
}

func (d *Decoder) decodeBalanceUpdate(generalized bool, kind BalanceUpdateKind) func([]byte) (interface{}, error) {
	return func(payload []byte) (interface{}, error) {
		var raw struct {
			CurrencyID json.RawMessage `json:"currencyId"`
			Who        json.RawMessage `json:"who"`
			Amount     json.RawMessage `json:"amount"`
		}
		if err := parsePayload(payload, &raw); err != nil {
			return nil, err
		}
		cur, err := d.decodeCurrency(raw.CurrencyID, generalized)
		if err != nil {
			return nil, err
		}
		who, err := d.decodeAccount(raw.Who)
		if err != nil {
			return nil, err
		}
		amount, err := decodeAmount(raw.Amount)
		if err != nil {
			return nil, err
		}
		return &BalanceUpdate{Currency: cur, Account: who, Amount: amount, Kind: kind}, nil
	}
}

func (d *Decoder) decodeLockSet(generalized bool) func([]byte) (interface{}, error) {
	return func(payload []byte) (interface{}, error) {
		var raw struct {
			LockID     json.RawMessage `json:"lockId"`
			CurrencyID json.RawMessage `json:"currencyId"`
			Who        json.RawMessage `json:"who"`
			Amount     json.RawMessage `json:"amount"`
		}
		if err := parsePayload(payload, &raw); err != nil {
			return nil, err
		}
		lockID, err := decodeLockID(raw.LockID)
		if err != nil {
			return nil, err
		}
		cur, err := d.decodeCurrency(raw.CurrencyID, generalized)
		if err != nil {
			return nil, err
		}
		who, err := d.decodeAccount(raw.Who)
		if err != nil {
			return nil, err
		}
		amount, err := decodeAmount(raw.Amount)
		if err != nil {
			return nil, err
		}
		return &LockSet{LockID: lockID, Currency: cur, Account: who, Amount: amount}, nil
	}
}

func (d *Decoder) decodeLockRemoved(generalized bool) func([]byte) (interface{}, error) {
	return func(payload []byte) (interface{}, error) {
		var raw struct {
			LockID     json.RawMessage `json:"lockId"`
			CurrencyID json.RawMessage `json:"currencyId"`
			Who        json.RawMessage `json:"who"`
		}
		if err := parsePayload(payload, &raw); err != nil {
			return nil, err
		}
		lockID, err := decodeLockID(raw.LockID)
		if err != nil {
			return nil, err
		}
		cur, err := d.decodeCurrency(raw.CurrencyID, generalized)
		if err != nil {
			return nil, err
		}
		who, err := d.decodeAccount(raw.Who)
		if err != nil {
			return nil, err
		}
		return &LockRemoved{LockID: lockID, Currency: cur, Account: who}, nil
	}
}

func (d *Decoder) decodeAssetSwap(payload []byte) (interface{}, error) {
	var raw struct {
		Owner     json.RawMessage   `json:"owner"`
		Recipient json.RawMessage   `json:"recipient"`
		SwapPath  []json.RawMessage `json:"swapPath"`
		Balances  []json.RawMessage `json:"balances"`
	}
	if err := parsePayload(payload, &raw); err != nil {
		return nil, err
	}
	trader, err := d.decodeAccount(raw.Owner)
	if err != nil {
		return nil, err
	}
	recipient, err := d.decodeAccount(raw.Recipient)
	if err != nil {
		return nil, err
	}
	if len(raw.SwapPath) < 2 || len(raw.Balances) != len(raw.SwapPath) {
		return nil, errors.Errorf("malformed swap: %d path entries, %d balances", len(raw.SwapPath), len(raw.Balances))
	}
	path := make([]currency.Currency, 0, len(raw.SwapPath))
	for _, rc := range raw.SwapPath {
		cur, err := decodeGeneralizedCurrency(rc)
		if err != nil {
			return nil, err
		}
		path = append(path, cur)
	}
	amounts := make([]decimal.Decimal, 0, len(raw.Balances))
	for _, rb := range raw.Balances {
		amount, err := decodeAmount(rb)
		if err != nil {
			return nil, err
		}
		amounts = append(amounts, amount)
	}
	return &AssetSwap{Trader: trader, Recipient: recipient, Path: path, Amounts: amounts}, nil
}

func (d *Decoder) decodeLoanDeposit(withdrawal bool) func([]byte) (interface{}, error) {
	return func(payload []byte) (interface{}, error) {
		var raw struct {
			AccountID  json.RawMessage `json:"accountId"`
			CurrencyID json.RawMessage `json:"currencyId"`
			Amount     json.RawMessage `json:"amount"`
		}
		if err := parsePayload(payload, &raw); err != nil {
			return nil, err
		}
		account, err := d.decodeAccount(raw.AccountID)
		if err != nil {
			return nil, err
		}
		cur, err := decodeGeneralizedCurrency(raw.CurrencyID)
		if err != nil {
			return nil, err
		}
		amount, err := decodeAmount(raw.Amount)
		if err != nil {
			return nil, err
		}
		return &LoanDeposit{Account: account, Currency: cur, Amount: amount, Withdrawal: withdrawal}, nil
	}
}

// decodeCurrency selects the encoding path for the event's spec version.
func (d *Decoder) decodeCurrency(raw json.RawMessage, generalized bool) (currency.Currency, error) {
	if generalized {
		return decodeGeneralizedCurrency(raw)
	}
	return decodeLegacyCurrency(raw)
}

// decodeLockID renders the raw lock identifier (8 fixed bytes) as a
// readable string where possible, falling back to hex.
func decodeLockID(raw json.RawMessage) (string, error) {
	b, err := decodeHexBytes(raw)
	if err != nil {
		return "", err
	}
	printable := true
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			printable = false
			break
		}
	}
	if printable {
		return string(b), nil
	}
	return "0x" + hex.EncodeToString(b), nil
}
