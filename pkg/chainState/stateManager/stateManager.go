// Package stateManager coordinates the chain state models for each block:
// setup, event dispatch, the finalize pass, and the single-transaction
// commit of everything the models staged in the shared write buffer.
package stateManager

import (
	"fmt"
	"sort"
	"time"

	"github.com/interlay/interbtc-indexer/pkg/chainState/buffer"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/metrics"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/interlay/interbtc-indexer/pkg/utils"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ChainStateManager struct {
	StateModels map[int]types.ChainStateModel
	writeBuffer *buffer.WriteBuffer
	logger      *zap.Logger
	metricsSink *metrics.MetricsSink
	DB          *gorm.DB

	// committedState collects the entities each model produced for the block
	// being processed, keyed by model name.
	committedState map[string][]interface{}
}

func NewChainStateManager(msink *metrics.MetricsSink, logger *zap.Logger, grm *gorm.DB) *ChainStateManager {
	return &ChainStateManager{
		StateModels:    make(map[int]types.ChainStateModel),
		writeBuffer:    buffer.NewWriteBuffer(logger),
		logger:         logger,
		metricsSink:    msink,
		DB:             grm,
		committedState: make(map[string][]interface{}),
	}
}

// RegisterState registers a state model with the manager at the given index.
// Models run in ascending index order for every phase, so models that feed
// others (heights before everything else) take the lower indexes.
func (c *ChainStateManager) RegisterState(model types.ChainStateModel, index int) {
	if m, ok := c.StateModels[index]; ok {
		c.logger.Sugar().Fatalf("Registering model at index %d which is already registered with %s", index, m.GetModelName())
	}
	c.StateModels[index] = model
}

// Buffer exposes the shared write buffer models stage into and read through.
func (c *ChainStateManager) Buffer() *buffer.WriteBuffer {
	return c.writeBuffer
}

func (c *ChainStateManager) GetSortedModelIndexes() []int {
	indexes := make([]int, 0, len(c.StateModels))
	for i := range c.StateModels {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes
}

// InitProcessingForBlock prepares every model's accumulator for the block
// and clears the write buffer.
func (c *ChainStateManager) InitProcessingForBlock(block *types.BlockContext) error {
	c.writeBuffer.Reset()
	c.committedState = make(map[string][]interface{})
	for _, index := range c.GetSortedModelIndexes() {
		if err := c.StateModels[index].SetupStateForBlock(block); err != nil {
			return err
		}
	}
	return nil
}

// HandleDecodedEvent routes one decoded event to every model that claims its
// name, in model order.
func (c *ChainStateManager) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) error {
	for _, index := range c.GetSortedModelIndexes() {
		model := c.StateModels[index]
		if !model.IsInterestingEvent(event.Name) {
			continue
		}
		produced, err := model.HandleDecodedEvent(block, event, decoded)
		if err != nil {
			c.logger.Sugar().Errorw("Failed to handle decoded event",
				zap.Error(err),
				zap.String("model", model.GetModelName()),
				zap.String("eventId", event.EventID),
				zap.String("eventName", event.Name),
			)
			return err
		}
		if produced != nil {
			name := model.GetModelName()
			c.committedState[name] = append(c.committedState[name], produced)
		}
	}
	return nil
}

// CommittedStateForBlock returns the entities produced while handling the
// current block's events, keyed by model name.
func (c *ChainStateManager) CommittedStateForBlock() map[string][]interface{} {
	return c.committedState
}

// HandleExtrinsic routes one stored extrinsic to every model that consumes
// extrinsics directly.
func (c *ChainStateManager) HandleExtrinsic(block *types.BlockContext, extrinsic *storage.Extrinsic) error {
	for _, index := range c.GetSortedModelIndexes() {
		if handler, ok := c.StateModels[index].(types.ExtrinsicHandler); ok {
			if err := handler.HandleExtrinsic(block, extrinsic); err != nil {
				return err
			}
		}
	}
	return nil
}

// FinalizeBlock runs the per-block pass of every model that has one, after
// all of the block's events have been applied.
func (c *ChainStateManager) FinalizeBlock(block *types.BlockContext) error {
	for _, index := range c.GetSortedModelIndexes() {
		if finalizer, ok := c.StateModels[index].(types.BlockFinalizer); ok {
			if err := finalizer.FinalizeBlock(block); err != nil {
				return err
			}
		}
	}
	return nil
}

// CommitFinalState flushes the write buffer and the block's state root in a
// single transaction. On any failure nothing of the block is persisted.
func (c *ChainStateManager) CommitFinalState(block *types.BlockContext) (*storage.StateRoot, error) {
	root, err := c.generateStateRoot(block.Number)
	if err != nil {
		return nil, err
	}

	stateRoot := &storage.StateRoot{
		BlockNumber: block.Number,
		BlockHash:   block.Hash,
		StateRoot:   utils.ConvertBytesToString(root),
		CreatedAt:   time.Now().UTC(),
	}

	err = c.DB.Transaction(func(tx *gorm.DB) error {
		if err := c.writeBuffer.Flush(tx); err != nil {
			return err
		}
		return tx.Create(stateRoot).Error
	})
	if err != nil {
		c.logger.Sugar().Errorw("Failed to commit final state",
			zap.Error(err),
			zap.Uint64("blockNumber", block.Number),
		)
		return nil, err
	}

	c.writeBuffer.Reset()
	return stateRoot, nil
}

// generateStateRoot merkleizes the per-model roots for the block. Models
// that staged nothing contribute no leaf.
func (c *ChainStateManager) generateStateRoot(blockNumber uint64) ([]byte, error) {
	leaves := make([][]byte, 0)
	leaves = append(leaves, []byte(fmt.Sprintf("%d", blockNumber)))

	for _, index := range c.GetSortedModelIndexes() {
		model := c.StateModels[index]
		root, err := model.GenerateStateRoot(blockNumber)
		if err != nil {
			c.logger.Sugar().Errorw("Failed to generate model state root",
				zap.Error(err),
				zap.String("model", model.GetModelName()),
				zap.Uint64("blockNumber", blockNumber),
			)
			return nil, err
		}
		if root == nil {
			continue
		}
		leaves = append(leaves, append([]byte(model.GetModelName()), root...))
	}

	tree, err := merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}

// CleanupProcessedStateForBlock releases every model's per-block
// accumulator.
func (c *ChainStateManager) CleanupProcessedStateForBlock(blockNumber uint64) error {
	for _, index := range c.GetSortedModelIndexes() {
		if err := c.StateModels[index].CleanupProcessedStateForBlock(blockNumber); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCorruptedState removes every model's committed rows plus the state
// roots in the inclusive block range.
func (c *ChainStateManager) DeleteCorruptedState(startBlock uint64, endBlock uint64) error {
	for _, index := range c.GetSortedModelIndexes() {
		if err := c.StateModels[index].DeleteState(startBlock, endBlock); err != nil {
			return err
		}
	}
	res := c.DB.Exec(`delete from state_roots where block_number >= ? and block_number <= ?`, startBlock, endBlock)
	return res.Error
}

// GetStateRoot reads the committed state root for a block.
func (c *ChainStateManager) GetStateRoot(blockNumber uint64) (*storage.StateRoot, error) {
	var stateRoot *storage.StateRoot
	res := c.DB.Model(&storage.StateRoot{}).Where("block_number = ?", blockNumber).First(&stateRoot)
	if res.Error != nil {
		return nil, res.Error
	}
	return stateRoot, nil
}

// GetLatestStateRoot reads the highest committed state root, nil when none
// has been committed yet.
func (c *ChainStateManager) GetLatestStateRoot() (*storage.StateRoot, error) {
	var stateRoot storage.StateRoot
	res := c.DB.Model(&storage.StateRoot{}).Order("block_number desc").Limit(1).Find(&stateRoot)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &stateRoot, nil
}
