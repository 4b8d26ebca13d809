package base

import (
	"fmt"
	"sort"

	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BaseChainState bundles the behavior shared by every state model: slot id
// construction, merkleization of staged changes, and range deletion.
type BaseChainState struct {
	Logger *zap.Logger
}

// NewSlotID builds the staging key for one event-scoped entity.
func NewSlotID(eventID string, discriminator string) types.SlotID {
	if discriminator == "" {
		return types.SlotID(eventID)
	}
	return types.SlotID(fmt.Sprintf("%s_%s", eventID, discriminator))
}

// MerkleTreeInput is one leaf of a model's per-block state tree. Inputs must
// be sorted by SlotID before merkleization so roots are deterministic.
type MerkleTreeInput struct {
	SlotID types.SlotID
	Value  []byte
}

// MerkleizeState builds the merkle tree over a model's staged changes for
// one block. The block number is the first leaf so that empty-but-distinct
// blocks still produce distinct roots.
func (b *BaseChainState) MerkleizeState(blockNumber uint64, inputs []*MerkleTreeInput) (*merkletree.MerkleTree, error) {
	data := make([][]byte, 0, len(inputs)+1)
	data = append(data, []byte(fmt.Sprintf("%d", blockNumber)))
	for _, input := range inputs {
		data = append(data, append([]byte(input.SlotID), input.Value...))
	}

	return merkletree.NewTree(
		merkletree.WithData(data),
		merkletree.WithHashType(keccak256.New()),
	)
}

// ChangeAccumulator tracks the merkle leaf value of every slot a model
// touched in a block. It only feeds state root generation; the entities
// themselves live in the shared write buffer.
type ChangeAccumulator struct {
	changes map[uint64]map[types.SlotID][]byte
}

func NewChangeAccumulator() *ChangeAccumulator {
	return &ChangeAccumulator{
		changes: make(map[uint64]map[types.SlotID][]byte),
	}
}

func (a *ChangeAccumulator) Init(blockNumber uint64) {
	a.changes[blockNumber] = make(map[types.SlotID][]byte)
}

// Record notes the latest leaf value for a slot. Recording the same slot
// again replaces the value.
func (a *ChangeAccumulator) Record(blockNumber uint64, slotID types.SlotID, value []byte) {
	if _, ok := a.changes[blockNumber]; !ok {
		a.Init(blockNumber)
	}
	a.changes[blockNumber][slotID] = value
}

func (a *ChangeAccumulator) Cleanup(blockNumber uint64) {
	delete(a.changes, blockNumber)
}

// Inputs returns the block's leaves sorted by slot id for deterministic
// merkleization.
func (a *ChangeAccumulator) Inputs(blockNumber uint64) []*MerkleTreeInput {
	slots, ok := a.changes[blockNumber]
	if !ok {
		return nil
	}
	inputs := make([]*MerkleTreeInput, 0, len(slots))
	for slotID, value := range slots {
		inputs = append(inputs, &MerkleTreeInput{SlotID: slotID, Value: value})
	}
	sort.Slice(inputs, func(i, j int) bool {
		return inputs[i].SlotID < inputs[j].SlotID
	})
	return inputs
}

// DeleteState removes committed rows in the inclusive block range. Used when
// rolling back a corrupted tip before re-indexing.
func (b *BaseChainState) DeleteState(tableName string, startBlockNumber uint64, endBlockNumber uint64, blockColumn string, db *gorm.DB) error {
	if endBlockNumber < startBlockNumber {
		return fmt.Errorf("endBlockNumber %d is less than startBlockNumber %d", endBlockNumber, startBlockNumber)
	}
	query := fmt.Sprintf(`delete from %s where %s >= ? and %s <= ?`, tableName, blockColumn, blockColumn)
	res := db.Exec(query, startBlockNumber, endBlockNumber)
	if res.Error != nil {
		b.Logger.Sugar().Errorw("Failed to delete state",
			zap.Error(res.Error),
			zap.String("tableName", tableName),
			zap.Uint64("startBlockNumber", startBlockNumber),
			zap.Uint64("endBlockNumber", endBlockNumber),
		)
		return res.Error
	}
	return nil
}

// CastCommittedStateToInterface converts a typed record slice to the
// interface slice the state manager exposes.
func CastCommittedStateToInterface[T any](records []T) []interface{} {
	out := make([]interface{}, len(records))
	for i, record := range records {
		out[i] = record
	}
	return out
}
