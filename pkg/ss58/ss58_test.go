package ss58

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Well-known development key (Alice).
const alicePubkey = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

func Test_Encode(t *testing.T) {
	pubkey, err := hex.DecodeString(alicePubkey)
	assert.Nil(t, err)

	t.Run("Single-byte network prefix", func(t *testing.T) {
		address, err := Encode(pubkey, 42)
		assert.Nil(t, err)
		assert.Equal(t, "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", address)

		address, err = Encode(pubkey, 2)
		assert.Nil(t, err)
		assert.Equal(t, "HNZata7iMYWmk5RvZRTiAsSDhV8366zq2YGb3tLH5Upf74F", address)
	})

	t.Run("Two-byte network prefix", func(t *testing.T) {
		address, err := Encode(pubkey, 2032)
		assert.Nil(t, err)
		assert.True(t, strings.HasPrefix(address, "wd"))
		assert.True(t, len(address) > 40)

		other, err := Encode(pubkey, 2092)
		assert.Nil(t, err)
		assert.NotEqual(t, address, other)
	})

	t.Run("Account ids must be 32 bytes", func(t *testing.T) {
		_, err := Encode(pubkey[:20], 42)
		assert.NotNil(t, err)
	})
}
