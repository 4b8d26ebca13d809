// Package types defines the interfaces and shared records of the chain state
// layer. Each state model accumulates changes for exactly one projection
// (heights, vaults, bridge requests, volumes) and commits them through the
// shared write buffer once per block.
package types

import (
	"time"

	"github.com/interlay/interbtc-indexer/pkg/storage"
)

// SlotID uniquely identifies one staged entity within a block.
type SlotID string

// BlockContext carries the per-block values every model needs while the
// block's events are being applied.
type BlockContext struct {
	Number      uint64
	Hash        string
	SpecVersion uint32
	BlockTime   time.Time

	// Active is the chain's active block height as of this block. The
	// heights model maintains it; models registered after it read it.
	Active uint64
}

// ChainStateModel is implemented by every state projection. The state manager
/// drives the same sequence for each block: SetupStateForBlock, zero or more
// HandleDecodedEvent calls in event order, the optional finalize pass, then
// GenerateStateRoot and CleanupProcessedStateForBlock around the commit.
type ChainStateModel interface {
	GetModelName() string

	// IsInterestingEvent reports whether the model wants the named event.
	// Several models may claim the same event.
	IsInterestingEvent(eventName string) bool

	SetupStateForBlock(block *BlockContext) error

	// HandleDecodedEvent applies one decoded event, staging entity changes
	// into the shared write buffer immediately so later events in the same
	// block observe them. The returned change is the model's record of what
	// happened, nil when the event required no state change.
	HandleDecodedEvent(block *BlockContext, event *storage.Event, decoded interface{}) (interface{}, error)

	GenerateStateRoot(blockNumber uint64) ([]byte, error)

	CleanupProcessedStateForBlock(blockNumber uint64) error

	// DeleteState removes committed rows in the inclusive block range,
	// used when recovering from a corrupted tip.
	DeleteState(startBlockNumber uint64, endBlockNumber uint64) error
}

// BlockFinalizer is implemented by models that run a per-block pass after
// all events have been applied, such as the request expiry sweep.
type BlockFinalizer interface {
	FinalizeBlock(block *BlockContext) error
}

// ExtrinsicHandler is implemented by models that react to raw extrinsics
// rather than events, such as vault activity attribution.
type ExtrinsicHandler interface {
	HandleExtrinsic(block *BlockContext, extrinsic *storage.Extrinsic) error
}
