package decoder

import (
	"encoding/json"
	"fmt"

	"github.com/interlay/interbtc-indexer/pkg/bitcoin"
	"github.com/interlay/interbtc-indexer/pkg/currency"
	"github.com/pkg/errors"
)

// Two independent currency encodings exist on chain. The legacy scheme is a
// flat token enum; the generalized scheme is a tagged union over five
// variants. They are never conflated: the only sanctioned cross-version
// remap is the legacy INTERBTC symbol, which is the modern native IBTC.

var legacyTokens = map[string]currency.Token{
	"DOT":      currency.Token_DOT,
	"INTERBTC": currency.Token_IBTC,
	"INTR":     currency.Token_INTR,
	"KSM":      currency.Token_KSM,
	"KBTC":     currency.Token_KBTC,
	"KINT":     currency.Token_KINT,
}

func decodeLegacyCurrency(raw json.RawMessage) (currency.Currency, error) {
	var tv taggedValue
	if err := parsePayload(raw, &tv); err != nil {
		return currency.Currency{}, errors.Wrap(err, "malformed legacy currency")
	}
	token, ok := legacyTokens[tv.Kind]
	if !ok {
		return currency.Currency{}, errors.Errorf("unknown legacy token symbol %q", tv.Kind)
	}
	return currency.NewNativeToken(token), nil
}

func decodeGeneralizedCurrency(raw json.RawMessage) (currency.Currency, error) {
	var tv taggedValue
	if err := parsePayload(raw, &tv); err != nil {
		return currency.Currency{}, errors.Wrap(err, "malformed currency")
	}

	switch tv.Kind {
	case "Token":
		var inner taggedValue
		if err := parsePayload(tv.Value, &inner); err != nil {
			return currency.Currency{}, errors.Wrap(err, "malformed token variant")
		}
		token := currency.Token(inner.Kind)
		if !currency.IsKnownToken(token) {
			return currency.Currency{}, errors.Errorf("unknown token symbol %q", inner.Kind)
		}
		return currency.NewNativeToken(token), nil
	case "ForeignAsset":
		id, err := decodeUint64(tv.Value)
		if err != nil {
			return currency.Currency{}, errors.Wrap(err, "malformed foreign asset id")
		}
		return currency.NewForeignAsset(uint32(id)), nil
	case "LendToken":
		id, err := decodeUint64(tv.Value)
		if err != nil {
			return currency.Currency{}, errors.Wrap(err, "malformed lend token id")
		}
		return currency.NewLendToken(uint32(id)), nil
	case "LpToken":
		var pair []json.RawMessage
		if err := parsePayload(tv.Value, &pair); err != nil || len(pair) != 2 {
			return currency.Currency{}, errors.New("malformed lp token pair")
		}
		base, err := decodeGeneralizedCurrency(pair[0])
		if err != nil {
			return currency.Currency{}, err
		}
		quote, err := decodeGeneralizedCurrency(pair[1])
		if err != nil {
			return currency.Currency{}, err
		}
		return currency.NewLpToken(base, quote), nil
	case "StableLpToken":
		id, err := decodeUint64(tv.Value)
		if err != nil {
			return currency.Currency{}, errors.Wrap(err, "malformed stable pool id")
		}
		return currency.NewStableLpToken(uint32(id)), nil
	}
	return currency.Currency{}, errors.Errorf("unknown currency variant %q", tv.Kind)
}

// VaultID identifies a vault by its account and currency pair. The string
// form is the storage key for the vault entity.
type VaultID struct {
	AccountID  string
	Wrapped    currency.Currency
	Collateral currency.Currency
}

func (v VaultID) String() string {
	return fmt.Sprintf("%s-%s-%s", v.AccountID, v.Wrapped.String(), v.Collateral.String())
}

type rawVaultID struct {
	AccountID  json.RawMessage `json:"accountId"`
	Currencies struct {
		Collateral json.RawMessage `json:"collateral"`
		Wrapped    json.RawMessage `json:"wrapped"`
	} `json:"currencies"`
}

// decodeVaultID resolves a vault identity using the same currency encoding
// path as the surrounding event, selected by generalized.
func (d *Decoder) decodeVaultID(raw json.RawMessage, generalized bool) (VaultID, error) {
	var rv rawVaultID
	if err := parsePayload(raw, &rv); err != nil {
		return VaultID{}, errors.Wrap(err, "malformed vault id")
	}

	account, err := d.decodeAccount(rv.AccountID)
	if err != nil {
		return VaultID{}, err
	}

	decodeCurrency := decodeLegacyCurrency
	if generalized {
		decodeCurrency = decodeGeneralizedCurrency
	}

	collateral, err := decodeCurrency(rv.Currencies.Collateral)
	if err != nil {
		return VaultID{}, errors.Wrap(err, "malformed vault collateral currency")
	}
	wrapped, err := decodeCurrency(rv.Currencies.Wrapped)
	if err != nil {
		return VaultID{}, errors.Wrap(err, "malformed vault wrapped currency")
	}

	return VaultID{
		AccountID:  account,
		Wrapped:    wrapped,
		Collateral: collateral,
	}, nil
}

var btcScriptKinds = map[string]bitcoin.ScriptKind{
	"P2PKH":    bitcoin.ScriptP2PKH,
	"P2SH":     bitcoin.ScriptP2SH,
	"P2WPKHv0": bitcoin.ScriptP2WPKHv0,
	"P2WSHv0":  bitcoin.ScriptP2WSHv0,
}

// decodeBtcAddress returns nil for unsupported script kinds; BTC addresses
// are display data, so an undecodable one is not an error.
func decodeBtcAddress(raw json.RawMessage) (*bitcoin.Address, error) {
	var tv taggedValue
	if err := parsePayload(raw, &tv); err != nil {
		return nil, errors.Wrap(err, "malformed btc address")
	}
	kind, ok := btcScriptKinds[tv.Kind]
	if !ok {
		return nil, nil
	}
	hash, err := decodeHexBytes(tv.Value)
	if err != nil {
		return nil, errors.Wrap(err, "malformed btc address payload")
	}
	return &bitcoin.Address{Kind: kind, Hash: hash}, nil
}
