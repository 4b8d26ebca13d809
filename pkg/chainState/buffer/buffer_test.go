package buffer

import (
	"testing"

	"github.com/interlay/interbtc-indexer/internal/logger"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/stretchr/testify/assert"
)

func Test_WriteBuffer(t *testing.T) {
	l := logger.NewNoopLogger()

	t.Run("staged entities are visible before flush", func(t *testing.T) {
		b := NewWriteBuffer(l)

		vault := &types.Vault{ID: "vault-1"}
		b.Stage("vaults", "slot-a", vault)

		got, ok := b.Get("vaults", "slot-a")
		assert.True(t, ok)
		assert.Equal(t, vault, got)

		_, ok = b.Get("vaults", "slot-b")
		assert.False(t, ok)
		_, ok = b.Get("issues", "slot-a")
		assert.False(t, ok)
	})

	t.Run("restaging a slot replaces in place", func(t *testing.T) {
		b := NewWriteBuffer(l)

		b.Stage("vaults", "slot-a", &types.Vault{ID: "vault-1"})
		b.Stage("vaults", "slot-b", &types.Vault{ID: "vault-2"})
		b.Stage("vaults", "slot-a", &types.Vault{ID: "vault-1-updated"})

		assert.Equal(t, 2, b.Len())

		order := make([]string, 0)
		b.Range("vaults", func(slotID types.SlotID, entity interface{}) bool {
			order = append(order, entity.(*types.Vault).ID)
			return true
		})
		assert.Equal(t, []string{"vault-1-updated", "vault-2"}, order)
	})

	t.Run("reset discards everything", func(t *testing.T) {
		b := NewWriteBuffer(l)

		b.Stage("vaults", "slot-a", &types.Vault{ID: "vault-1"})
		b.Stage("issues", "slot-b", &types.Issue{ID: "issue-1"})
		assert.Equal(t, 2, b.Len())

		b.Reset()
		assert.Equal(t, 0, b.Len())
		_, ok := b.Get("vaults", "slot-a")
		assert.False(t, ok)
	})
}
