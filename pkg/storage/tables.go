package storage

import "time"

// Block is one indexed parachain block. SpecVersion is the runtime spec
// version in force at this block and drives every decode decision for the
// block's events.
type Block struct {
	Number      uint64 `gorm:"type:bigint;primaryKey"`
	Hash        string
	ParentHash  string
	SpecVersion uint32
	BlockTime   time.Time
}

// Event is one chain event in its raw, SCALE-decoded-to-JSON form. Payload
// layout depends on the block's SpecVersion; pkg/decoder owns interpreting it.
type Event struct {
	// EventID is the chain-assigned identifier, e.g. "0003023-000002-a1b2c".
	// It is unique per event and stable across re-indexing.
	EventID     string `gorm:"primaryKey"`
	BlockNumber uint64
	EventIndex  uint64
	// Name is "<pallet>.<Method>", e.g. "issue.RequestIssue".
	Name        string
	Payload     string
	ExtrinsicID string
}

// Extrinsic is one submitted extrinsic; only the signer and call name are
// retained, enough for activity attribution.
type Extrinsic struct {
	ExtrinsicID    string `gorm:"primaryKey"`
	BlockNumber    uint64
	ExtrinsicIndex uint64
	Name           string
	// Signer is the SS58-encoded submitter, empty for unsigned extrinsics.
	Signer string
}

// StateRoot is the merkle root over the entity diffs committed for a block.
type StateRoot struct {
	BlockNumber uint64 `gorm:"type:bigint;primaryKey"`
	BlockHash   string
	StateRoot   string
	CreatedAt   time.Time
}
