package pipeline

import (
	"github.com/interlay/interbtc-indexer/pkg/eventBus/eventBusTypes"
	"github.com/interlay/interbtc-indexer/pkg/storage"
)

// HandleBlockIndexedHook publishes a block-indexed event after a block has
// been fully committed, letting subscribers react without coupling to the
// pipeline.
func (p *Pipeline) HandleBlockIndexedHook(
	block *storage.Block,
	events []*storage.Event,
	extrinsics []*storage.Extrinsic,
	stateRoot *storage.StateRoot,
	committedState map[string][]interface{},
) {
	p.eventBus.Publish(&eventBusTypes.Event{
		Name: eventBusTypes.Event_BlockIndexed,
		Data: &eventBusTypes.BlockIndexedData{
			Block:          block,
			Events:         events,
			Extrinsics:     extrinsics,
			StateRoot:      stateRoot,
			CommittedState: committedState,
		},
	})
}
