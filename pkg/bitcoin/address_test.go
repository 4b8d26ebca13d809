package bitcoin

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustHex(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	assert.Nil(t, err)
	return b
}

func Test_EncodeAddress(t *testing.T) {
	pkh := mustHex(t, "751e76e8199196d454941c45d1b3a323f1433bd6")
	wsh := mustHex(t, "1863143c14c5166804bd19203356da136c985678cd4d27a1b8c6329604903262")

	t.Run("p2pkh mainnet", func(t *testing.T) {
		addr, ok := EncodeAddress(Address{Kind: ScriptP2PKH, Hash: pkh}, "mainnet")
		assert.True(t, ok)
		assert.Equal(t, "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", addr)
	})

	t.Run("p2wpkh mainnet", func(t *testing.T) {
		addr, ok := EncodeAddress(Address{Kind: ScriptP2WPKHv0, Hash: pkh}, "mainnet")
		assert.True(t, ok)
		assert.Equal(t, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", addr)
	})

	t.Run("p2wsh testnet", func(t *testing.T) {
		addr, ok := EncodeAddress(Address{Kind: ScriptP2WSHv0, Hash: wsh}, "testnet")
		assert.True(t, ok)
		assert.True(t, strings.HasPrefix(addr, "tb1q"))
	})

	t.Run("malformed hash length", func(t *testing.T) {
		_, ok := EncodeAddress(Address{Kind: ScriptP2PKH, Hash: pkh[:10]}, "mainnet")
		assert.False(t, ok)
		_, ok = EncodeAddress(Address{Kind: ScriptP2WSHv0, Hash: pkh}, "mainnet")
		assert.False(t, ok)
	})

	t.Run("unknown network", func(t *testing.T) {
		_, ok := EncodeAddress(Address{Kind: ScriptP2PKH, Hash: pkh}, "simnet")
		assert.False(t, ok)
	})
}
