// Package blockfeed defines the sequential block feed the pipeline consumes:
// block metadata plus the ordered event and extrinsic lists, exactly as the
// archival chain client delivers them.
package blockfeed

import (
	"context"
	"encoding/json"
)

// BlockHeader is the per-block metadata required for decoding: the runtime
// spec version selects event layouts, the timestamp anchors aggregation
// buckets.
type BlockHeader struct {
	Number      uint64 `json:"number"`
	Hash        string `json:"hash"`
	ParentHash  string `json:"parentHash"`
	SpecVersion uint32 `json:"specVersion"`
	// Timestamp is the wall-clock block time in unix seconds.
	Timestamp uint64 `json:"timestamp"`
}

// RawEvent is one chain event with its payload still in the archive's JSON
// encoding. Interpretation is deferred to pkg/decoder.
type RawEvent struct {
	// EventID is chain-assigned and unique, e.g. "0003023-000002-a1b2c".
	EventID     string          `json:"id"`
	Index       uint64          `json:"index"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	ExtrinsicID string          `json:"extrinsicId,omitempty"`
}

// RawExtrinsic carries only what activity attribution needs.
type RawExtrinsic struct {
	ExtrinsicID string `json:"id"`
	Index       uint64 `json:"index"`
	Name        string `json:"name"`
	// Signer is the SS58-encoded submitter, empty when unsigned.
	Signer string `json:"signer,omitempty"`
}

// FetchedBlock is one block's worth of work for the pipeline. Events and
// Extrinsics are in emission/submission order.
type FetchedBlock struct {
	Block      *BlockHeader   `json:"header"`
	Events     []*RawEvent    `json:"events"`
	Extrinsics []*RawExtrinsic `json:"extrinsics"`
}

// Feed delivers blocks in strictly increasing height order.
type Feed interface {
	FetchBlock(ctx context.Context, blockNumber uint64) (*FetchedBlock, error)
	FetchBlocks(ctx context.Context, startBlock uint64, endBlock uint64) ([]*FetchedBlock, error)
	// GetLatestHeight returns the highest block the archive has available.
	GetLatestHeight(ctx context.Context) (uint64, error)
}
