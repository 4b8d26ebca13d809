package stateManager

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/internal/logger"
	"github.com/interlay/interbtc-indexer/internal/tests"
	"github.com/interlay/interbtc-indexer/pkg/chainState/base"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/postgres"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup() (
	string,
	*gorm.DB,
	*zap.Logger,
	*config.Config,
	error,
) {
	cfg := config.NewConfig()
	cfg.Debug = os.Getenv(config.Debug) == "true"
	cfg.DatabaseConfig = *tests.GetDbConfigFromEnv()

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	dbname, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, cfg, l)
	if err != nil {
		return dbname, nil, nil, nil, err
	}

	return dbname, grm, l, cfg, nil
}

// heightStagingModel stages one height row per handled event. It is the
// smallest model exercising setup, staging, state roots and deletion.
type heightStagingModel struct {
	base.BaseChainState
	csm         *ChainStateManager
	accumulator *base.ChangeAccumulator
}

func newHeightStagingModel(csm *ChainStateManager, l *zap.Logger) *heightStagingModel {
	model := &heightStagingModel{
		BaseChainState: base.BaseChainState{Logger: l},
		csm:            csm,
		accumulator:    base.NewChangeAccumulator(),
	}
	csm.RegisterState(model, 1)
	return model
}

func (m *heightStagingModel) GetModelName() string { return "heightStagingModel" }

func (m *heightStagingModel) IsInterestingEvent(eventName string) bool {
	return eventName == "security.UpdateActiveBlock"
}

func (m *heightStagingModel) SetupStateForBlock(block *types.BlockContext) error {
	m.accumulator.Init(block.Number)
	return nil
}

func (m *heightStagingModel) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) (interface{}, error) {
	row := &types.Height{
		Absolute:       block.Number,
		Active:         decoded.(uint64),
		BlockTimestamp: block.BlockTime,
	}
	slotID := types.SlotID(event.EventID)
	m.csm.Buffer().Stage("heights", slotID, row)
	m.accumulator.Record(block.Number, slotID, []byte(event.EventID))
	return row, nil
}

func (m *heightStagingModel) GenerateStateRoot(blockNumber uint64) ([]byte, error) {
	inputs := m.accumulator.Inputs(blockNumber)
	if len(inputs) == 0 {
		return nil, nil
	}
	tree, err := m.MerkleizeState(blockNumber, inputs)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}

func (m *heightStagingModel) CleanupProcessedStateForBlock(blockNumber uint64) error {
	m.accumulator.Cleanup(blockNumber)
	return nil
}

func (m *heightStagingModel) DeleteState(startBlockNumber uint64, endBlockNumber uint64) error {
	return m.BaseChainState.DeleteState("heights", startBlockNumber, endBlockNumber, "absolute", m.csm.DB)
}

func Test_StateManager(t *testing.T) {
	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}

	csm := NewChainStateManager(nil, l, grm)
	model := newHeightStagingModel(csm, l)
	assert.NotNil(t, model)

	processBlock := func(number uint64, active uint64) *storage.StateRoot {
		block := &types.BlockContext{Number: number, Hash: "hash", BlockTime: time.Now().UTC(), Active: active}
		assert.Nil(t, csm.InitProcessingForBlock(block))
		assert.Nil(t, csm.HandleDecodedEvent(block,
			&storage.Event{EventID: fmt.Sprintf("%07d-000001-aaaaa", number), BlockNumber: number, Name: "security.UpdateActiveBlock"},
			active))
		assert.Nil(t, csm.FinalizeBlock(block))
		root, err := csm.CommitFinalState(block)
		assert.Nil(t, err)
		assert.Nil(t, csm.CleanupProcessedStateForBlock(number))
		return root
	}

	t.Run("Commit persists the staged rows with a state root", func(t *testing.T) {
		root := processBlock(100, 50)
		assert.NotNil(t, root)
		assert.Equal(t, uint64(100), root.BlockNumber)
		assert.True(t, len(root.StateRoot) > 0)

		var count int64
		res := grm.Raw(`select count(*) from heights`).Scan(&count)
		assert.Nil(t, res.Error)
		assert.Equal(t, int64(1), count)

		stored, err := csm.GetStateRoot(100)
		assert.Nil(t, err)
		assert.Equal(t, root.StateRoot, stored.StateRoot)
	})

	t.Run("Produced entities are collected per model for the block", func(t *testing.T) {
		block := &types.BlockContext{Number: 101, Hash: "hash-101", BlockTime: time.Now().UTC(), Active: 51}
		assert.Nil(t, csm.InitProcessingForBlock(block))
		assert.Nil(t, csm.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000101-000001-aaaaa", BlockNumber: 101, Name: "security.UpdateActiveBlock"},
			uint64(51)))

		committed := csm.CommittedStateForBlock()
		assert.Equal(t, 1, len(committed["heightStagingModel"]))

		_, err := csm.CommitFinalState(block)
		assert.Nil(t, err)
		assert.Nil(t, csm.CleanupProcessedStateForBlock(101))
	})

	t.Run("Events nobody claims are dropped", func(t *testing.T) {
		block := &types.BlockContext{Number: 102, Hash: "hash-102", BlockTime: time.Now().UTC(), Active: 51}
		assert.Nil(t, csm.InitProcessingForBlock(block))
		assert.Nil(t, csm.HandleDecodedEvent(block,
			&storage.Event{EventID: "0000102-000001-aaaaa", BlockNumber: 102, Name: "some.UnknownEvent"},
			nil))
		assert.Equal(t, 0, len(csm.CommittedStateForBlock()))
	})

	t.Run("Latest state root tracks the highest committed block", func(t *testing.T) {
		processBlock(103, 52)

		latest, err := csm.GetLatestStateRoot()
		assert.Nil(t, err)
		assert.Equal(t, uint64(103), latest.BlockNumber)
	})

	t.Run("Deleting corrupted state removes rows and roots in range", func(t *testing.T) {
		assert.Nil(t, csm.DeleteCorruptedState(101, 103))

		var count int64
		res := grm.Raw(`select count(*) from state_roots`).Scan(&count)
		assert.Nil(t, res.Error)
		assert.Equal(t, int64(1), count)

		latest, err := csm.GetLatestStateRoot()
		assert.Nil(t, err)
		assert.Equal(t, uint64(100), latest.BlockNumber)

		res = grm.Raw(`select count(*) from heights`).Scan(&count)
		assert.Nil(t, res.Error)
		assert.Equal(t, int64(1), count)
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
