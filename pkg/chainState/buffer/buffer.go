// Package buffer implements the shared entity write buffer. Models stage
// entities here while a block's events are applied; lookups consult the
// buffer before storage so later events in the same block observe earlier
// changes. The state manager flushes everything in one transaction, so a
// block is either fully committed or not at all.
package buffer

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
)

type WriteBuffer struct {
	logger *zap.Logger

	// tables preserves staging order on both levels: tables flush in the
	// order first touched, entities within a table in the order staged.
	tables *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[types.SlotID, interface{}]]
}

func NewWriteBuffer(l *zap.Logger) *WriteBuffer {
	return &WriteBuffer{
		logger: l,
		tables: orderedmap.New[string, *orderedmap.OrderedMap[types.SlotID, interface{}]](),
	}
}

// Stage records an entity for the given table under its slot id. Staging the
// same slot again replaces the entity, keeping its original position.
func (b *WriteBuffer) Stage(tableName string, slotID types.SlotID, entity interface{}) {
	entities, ok := b.tables.Get(tableName)
	if !ok {
		entities = orderedmap.New[types.SlotID, interface{}]()
		b.tables.Set(tableName, entities)
	}
	entities.Set(slotID, entity)
}

// Get returns the staged entity for the slot, if any.
func (b *WriteBuffer) Get(tableName string, slotID types.SlotID) (interface{}, bool) {
	entities, ok := b.tables.Get(tableName)
	if !ok {
		return nil, false
	}
	return entities.Get(slotID)
}

// Range visits the staged entities of one table in staging order. Returning
// false from the callback stops the iteration.
func (b *WriteBuffer) Range(tableName string, fn func(slotID types.SlotID, entity interface{}) bool) {
	entities, ok := b.tables.Get(tableName)
	if !ok {
		return
	}
	for pair := entities.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Len returns the total number of staged entities across all tables.
func (b *WriteBuffer) Len() int {
	total := 0
	for pair := b.tables.Oldest(); pair != nil; pair = pair.Next() {
		total += pair.Value.Len()
	}
	return total
}

// Flush upserts every staged entity inside the given transaction, in staging
// order. The buffer keeps its contents on failure so the caller can retry or
// discard the whole block.
func (b *WriteBuffer) Flush(tx *gorm.DB) error {
	for tablePair := b.tables.Oldest(); tablePair != nil; tablePair = tablePair.Next() {
		for pair := tablePair.Value.Oldest(); pair != nil; pair = pair.Next() {
			res := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(pair.Value)
			if res.Error != nil {
				b.logger.Sugar().Errorw("Failed to flush staged entity",
					zap.Error(res.Error),
					zap.String("tableName", tablePair.Key),
					zap.String("slotId", string(pair.Key)),
				)
				return res.Error
			}
		}
	}
	return nil
}

// Reset discards all staged entities.
func (b *WriteBuffer) Reset() {
	b.tables = orderedmap.New[string, *orderedmap.OrderedMap[types.SlotID, interface{}]]()
}
