// Package ss58 encodes 32-byte account ids into the SS58 address format.
// The network prefix is an input; nothing here decides which chain an
// account belongs to.
package ss58

import (
	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

var checksumPrefix = []byte("SS58PRE")

// Encode renders a 32-byte public key as an SS58 address with the given
// network prefix.
func Encode(pubkey []byte, prefix uint16) (string, error) {
	if len(pubkey) != 32 {
		return "", errors.Errorf("account id must be 32 bytes, got %d", len(pubkey))
	}

	var payload []byte
	if prefix < 64 {
		payload = append(payload, byte(prefix))
	} else {
		// Two-byte prefix encoding per the SS58 registry.
		ident := prefix & 0b0011_1111_1111_1111
		first := byte(ident&0b0000_0000_1111_1100)>>2 | 0b01000000
		second := byte(ident>>8) | byte(ident&0b0000_0000_0000_0011)<<6
		payload = append(payload, first, second)
	}
	payload = append(payload, pubkey...)

	checksum := blake2b.Sum512(append(checksumPrefix, payload...))
	payload = append(payload, checksum[:2]...)

	return base58.Encode(payload), nil
}
