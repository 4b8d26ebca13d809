package storage

// BlockStore persists the raw chain feed: blocks, their events, and their
// extrinsics. Entity projections are owned by the chainState models, not by
// this interface.
type BlockStore interface {
	InsertBlockAtHeight(blockNumber uint64, hash string, parentHash string, specVersion uint32, blockTime uint64) (*Block, error)
	InsertBlockEvent(event *Event, ignoreOnConflict bool) (*Event, error)
	InsertBlockExtrinsic(extrinsic *Extrinsic, ignoreOnConflict bool) (*Extrinsic, error)

	GetBlockByNumber(blockNumber uint64) (*Block, error)
	GetLatestBlock() (*Block, error)

	// DeleteCorruptedState removes raw feed rows in [startBlock, endBlock]
	// so an aborted block can be re-run from a clean slate.
	DeleteCorruptedState(startBlock uint64, endBlock uint64) error
}
