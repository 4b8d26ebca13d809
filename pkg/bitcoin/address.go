// Package bitcoin renders the on-chain Bitcoin address variants into
// human-readable addresses. Addresses are display data only: encoding
// failures are reported as "no value", never as a fatal error.
package bitcoin

import (
	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
)

type ScriptKind int

const (
	ScriptP2PKH ScriptKind = iota
	ScriptP2SH
	ScriptP2WPKHv0
	ScriptP2WSHv0
)

// Address is the decoded on-chain representation: a script kind plus the
// raw hash payload (20 bytes for P2PKH/P2SH/P2WPKHv0, 32 for P2WSHv0).
type Address struct {
	Kind ScriptKind
	Hash []byte
}

// Encode renders the address for the given network.
func (a Address) Encode(network string) (string, bool) {
	return EncodeAddress(a, network)
}

type networkParams struct {
	p2pkhVersion byte
	p2shVersion  byte
	bech32HRP    string
}

var networks = map[string]networkParams{
	"mainnet": {p2pkhVersion: 0x00, p2shVersion: 0x05, bech32HRP: "bc"},
	"testnet": {p2pkhVersion: 0x6f, p2shVersion: 0xc4, bech32HRP: "tb"},
	"regtest": {p2pkhVersion: 0x6f, p2shVersion: 0xc4, bech32HRP: "bcrt"},
}

// EncodeAddress renders the address for the given network. The second
// return value is false for malformed payloads, unknown script kinds, or
// unknown networks.
func EncodeAddress(addr Address, network string) (string, bool) {
	params, ok := networks[network]
	if !ok {
		return "", false
	}

	switch addr.Kind {
	case ScriptP2PKH:
		if len(addr.Hash) != 20 {
			return "", false
		}
		return base58.CheckEncode(addr.Hash, params.p2pkhVersion), true
	case ScriptP2SH:
		if len(addr.Hash) != 20 {
			return "", false
		}
		return base58.CheckEncode(addr.Hash, params.p2shVersion), true
	case ScriptP2WPKHv0:
		if len(addr.Hash) != 20 {
			return "", false
		}
		return encodeSegwitV0(params.bech32HRP, addr.Hash)
	case ScriptP2WSHv0:
		if len(addr.Hash) != 32 {
			return "", false
		}
		return encodeSegwitV0(params.bech32HRP, addr.Hash)
	}
	return "", false
}

func encodeSegwitV0(hrp string, program []byte) (string, bool) {
	converted, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", false
	}
	encoded, err := bech32.Encode(hrp, append([]byte{0x00}, converted...))
	if err != nil {
		return "", false
	}
	return encoded, true
}
