package decoder

import (
	"testing"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/internal/logger"
	"github.com/interlay/interbtc-indexer/pkg/bitcoin"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// Well-known development account (prefix 42).
	alicePubkey  = `"0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"`
	aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
)

func newTestDecoder(t *testing.T) *Decoder {
	chain, err := config.ParseChainConfig("local")
	require.Nil(t, err)
	return NewDecoder(logger.NewNoopLogger(), &config.Config{Chain: chain})
}

func Test_Decoder_VersionDispatch(t *testing.T) {
	d := newTestDecoder(t)

	t.Run("legacy spec versions take the flat token encoding", func(t *testing.T) {
		event := &storage.Event{
			EventID: "0000100-000000-aaaaa",
			Name:    "tokens.Transfer",
			Payload: `{
				"currencyId": {"__kind": "INTERBTC"},
				"from": ` + alicePubkey + `,
				"to": ` + alicePubkey + `,
				"amount": "150000"
			}`,
		}
		decoded, err := d.Decode(event, 1019)
		require.Nil(t, err)

		transfer, ok := decoded.(*Transfer)
		require.True(t, ok)
		assert.Equal(t, "IBTC", transfer.Currency.String())
		assert.Equal(t, aliceAddress, transfer.From)
		assert.Equal(t, "150000", transfer.Amount.String())
	})

	t.Run("generalized spec versions take the tagged union encoding", func(t *testing.T) {
		event := &storage.Event{
			EventID: "0000200-000000-bbbbb",
			Name:    "tokens.Transfer",
			Payload: `{
				"currencyId": {"__kind": "Token", "value": {"__kind": "IBTC"}},
				"from": ` + alicePubkey + `,
				"to": ` + alicePubkey + `,
				"amount": 25000
			}`,
		}
		decoded, err := d.Decode(event, 1021)
		require.Nil(t, err)

		transfer, ok := decoded.(*Transfer)
		require.True(t, ok)
		assert.Equal(t, "IBTC", transfer.Currency.String())
		assert.Equal(t, "25000", transfer.Amount.String())
	})

	t.Run("legacy token symbols are rejected on generalized versions", func(t *testing.T) {
		event := &storage.Event{
			EventID: "0000200-000001-bbbbb",
			Name:    "tokens.Transfer",
			Payload: `{"currencyId": {"__kind": "INTERBTC"}, "from": ` + alicePubkey + `, "to": ` + alicePubkey + `, "amount": 1}`,
		}
		_, err := d.Decode(event, 1021)
		assert.NotNil(t, err)
	})
}

func Test_Decoder_UnknownVersions(t *testing.T) {
	d := newTestDecoder(t)

	t.Run("unregistered event names are recoverable", func(t *testing.T) {
		event := &storage.Event{EventID: "x", Name: "democracy.Proposed", Payload: `{}`}
		_, err := d.Decode(event, 1021)
		assert.True(t, errors.Is(err, ErrUnknownEventVersion))
	})

	t.Run("events without a matching layout are recoverable", func(t *testing.T) {
		// The general DEX does not exist on pre-generalization runtimes.
		event := &storage.Event{EventID: "y", Name: "dexGeneral.AssetSwap", Payload: `{}`}
		_, err := d.Decode(event, 1015)
		assert.True(t, errors.Is(err, ErrUnknownEventVersion))
	})

	t.Run("version stable events decode at any version", func(t *testing.T) {
		event := &storage.Event{
			EventID: "z",
			Name:    "security.UpdateActiveBlock",
			Payload: `{"blockNumber": 12345}`,
		}
		for _, specVersion := range []uint32{1, 1019, 1021, 99999} {
			decoded, err := d.Decode(event, specVersion)
			require.Nil(t, err)
			assert.Equal(t, uint64(12345), decoded.(*UpdateActiveBlock).Active)
		}
	})
}

func Test_Decoder_RequestIssue(t *testing.T) {
	d := newTestDecoder(t)

	event := &storage.Event{
		EventID: "0000300-000002-ccccc",
		Name:    "issue.RequestIssue",
		Payload: `{
			"issueId": "0x11ee3c609e6f9dfb2134c2534a2c93845ef8bb3eaf05d1e4ab8e4b11a852ce3e",
			"requester": ` + alicePubkey + `,
			"amount": "100000000",
			"fee": "150000",
			"griefingCollateral": "5000000000",
			"vaultId": {
				"accountId": ` + alicePubkey + `,
				"currencies": {
					"collateral": {"__kind": "Token", "value": {"__kind": "DOT"}},
					"wrapped": {"__kind": "Token", "value": {"__kind": "IBTC"}}
				}
			},
			"vaultAddress": {"__kind": "P2WPKHv0", "value": "0x751e76e8199196d454941c45d1b3a323f1433bd6"}
		}`,
	}

	decoded, err := d.Decode(event, 1021)
	require.Nil(t, err)

	issue, ok := decoded.(*RequestIssue)
	require.True(t, ok)
	assert.Equal(t, "0x11ee3c609e6f9dfb2134c2534a2c93845ef8bb3eaf05d1e4ab8e4b11a852ce3e", issue.IssueID)
	assert.Equal(t, aliceAddress, issue.Requester)
	assert.Equal(t, "100000000", issue.Amount.String())
	assert.Equal(t, "150000", issue.Fee.String())
	assert.Equal(t, "5000000000", issue.GriefingCollateral.String())
	assert.Equal(t, aliceAddress+"-IBTC-DOT", issue.Vault.String())
	require.NotNil(t, issue.VaultBtcAddress)
	assert.Equal(t, bitcoin.ScriptP2WPKHv0, issue.VaultBtcAddress.Kind)
	assert.Equal(t, 20, len(issue.VaultBtcAddress.Hash))
}

func Test_Decoder_LegacyVaultID(t *testing.T) {
	d := newTestDecoder(t)

	event := &storage.Event{
		EventID: "0000100-000005-ddddd",
		Name:    "vaultRegistry.RegisterVault",
		Payload: `{
			"vaultId": {
				"accountId": ` + alicePubkey + `,
				"currencies": {
					"collateral": {"__kind": "DOT"},
					"wrapped": {"__kind": "INTERBTC"}
				}
			},
			"collateral": "7000000000000"
		}`,
	}

	decoded, err := d.Decode(event, 1019)
	require.Nil(t, err)

	registered, ok := decoded.(*RegisterVault)
	require.True(t, ok)
	// INTERBTC is the legacy spelling of the native wrapped token.
	assert.Equal(t, aliceAddress+"-IBTC-DOT", registered.Vault.String())
	assert.Equal(t, "7000000000000", registered.Collateral.String())
}

func Test_Decoder_AssetSwap(t *testing.T) {
	d := newTestDecoder(t)

	event := &storage.Event{
		EventID: "0000400-000007-eeeee",
		Name:    "dexGeneral.AssetSwap",
		Payload: `{
			"owner": ` + alicePubkey + `,
			"recipient": ` + alicePubkey + `,
			"swapPath": [
				{"__kind": "Token", "value": {"__kind": "DOT"}},
				{"__kind": "Token", "value": {"__kind": "INTR"}},
				{"__kind": "ForeignAsset", "value": 3}
			],
			"balances": ["1000000", "2500000", "40000"]
		}`,
	}

	decoded, err := d.Decode(event, 1022)
	require.Nil(t, err)

	swap, ok := decoded.(*AssetSwap)
	require.True(t, ok)
	require.Equal(t, 3, len(swap.Path))
	assert.Equal(t, "DOT", swap.Path[0].String())
	assert.Equal(t, "INTR", swap.Path[1].String())
	assert.Equal(t, "ForeignAsset(3)", swap.Path[2].String())
	require.Equal(t, 3, len(swap.Amounts))
	assert.Equal(t, "2500000", swap.Amounts[1].String())
}

func Test_Decoder_CancelRedeemStatus(t *testing.T) {
	d := newTestDecoder(t)

	payload := func(status string) string {
		return `{
			"redeemId": "0x22ee3c609e6f9dfb2134c2534a2c93845ef8bb3eaf05d1e4ab8e4b11a852ce3e",
			"redeemer": ` + alicePubkey + `,
			"vaultId": {
				"accountId": ` + alicePubkey + `,
				"currencies": {
					"collateral": {"__kind": "Token", "value": {"__kind": "DOT"}},
					"wrapped": {"__kind": "Token", "value": {"__kind": "IBTC"}}
				}
			},
			"slashedAmount": "123456",
			"status": {"__kind": "` + status + `"}
		}`
	}

	for _, tc := range []struct {
		status     string
		reimbursed bool
	}{
		{"Reimbursed", true},
		{"Retried", false},
	} {
		event := &storage.Event{EventID: "c-" + tc.status, Name: "redeem.CancelRedeem", Payload: payload(tc.status)}
		decoded, err := d.Decode(event, 1021)
		require.Nil(t, err)

		cancelled := decoded.(*CancelRedeem)
		assert.Equal(t, tc.reimbursed, cancelled.Reimbursed)
		assert.Equal(t, "123456", cancelled.SlashedAmount.String())
	}
}
