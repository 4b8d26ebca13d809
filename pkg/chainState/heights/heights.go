// Package heights tracks the relationship between absolute block numbers
// and the chain's active block height. The active height only advances while
// the bridge is operational, so durations expressed in active blocks (such
// as request periods) cannot be derived from absolute heights alone.
package heights

import (
	"fmt"
	"time"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/chainState/base"
	"github.com/interlay/interbtc-indexer/pkg/chainState/buffer"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/decoder"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoHeights is returned by lookups before any height row exists. Callers
// distinguish it from a lookup that merely needs a backfill.
var ErrNoHeights = errors.New("no heights indexed yet")

type HeightsModel struct {
	base.BaseChainState
	DB           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	writeBuffer  *buffer.WriteBuffer

	accumulator *base.ChangeAccumulator

	// currentActive is the running active height, loaded lazily from the
	// latest persisted row.
	currentActive         uint64
	currentActiveLoaded   bool
	lastPersistedAbsolute uint64
}

func NewHeightsModel(
	csm *stateManager.ChainStateManager,
	grm *gorm.DB,
	logger *zap.Logger,
	globalConfig *config.Config,
) (*HeightsModel, error) {
	model := &HeightsModel{
		BaseChainState: base.BaseChainState{
			Logger: logger,
		},
		DB:           grm,
		logger:       logger,
		globalConfig: globalConfig,
		writeBuffer:  csm.Buffer(),
		accumulator:  base.NewChangeAccumulator(),
	}

	csm.RegisterState(model, 1)
	return model, nil
}

func (h *HeightsModel) GetModelName() string {
	return "HeightsModel"
}

func (h *HeightsModel) IsInterestingEvent(eventName string) bool {
	return eventName == "security.UpdateActiveBlock"
}

func (h *HeightsModel) loadCurrentActive() error {
	if h.currentActiveLoaded {
		return nil
	}
	var latest types.Height
	res := h.DB.Order("absolute desc").Limit(1).Find(&latest)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		h.currentActive = latest.Active
		h.lastPersistedAbsolute = latest.Absolute
	}
	h.currentActiveLoaded = true
	return nil
}

func (h *HeightsModel) SetupStateForBlock(block *types.BlockContext) error {
	h.accumulator.Init(block.Number)

	if err := h.loadCurrentActive(); err != nil {
		return err
	}

	// Backfill any gap between the last persisted row and this block so
	// absolute-to-active lookups never fall into a hole. The carried-forward
	// active height is exact: it only changes through events we index.
	if h.lastPersistedAbsolute > 0 && block.Number > h.lastPersistedAbsolute+1 {
		if err := h.Backfill(h.lastPersistedAbsolute+1, block.Number-1, block.BlockTime); err != nil {
			return err
		}
	}

	block.Active = h.currentActive
	return nil
}

// Backfill inserts carried-forward height rows for the inclusive absolute
// range. Inserts ignore conflicts, so repeating a backfill is harmless.
func (h *HeightsModel) Backfill(fromAbsolute uint64, toAbsolute uint64, blockTime time.Time) error {
	rows := make([]*types.Height, 0, toAbsolute-fromAbsolute+1)
	for absolute := fromAbsolute; absolute <= toAbsolute; absolute++ {
		rows = append(rows, &types.Height{
			Absolute:       absolute,
			Active:         h.currentActive,
			BlockTimestamp: blockTime,
		})
	}
	res := h.DB.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 500)
	if res.Error != nil {
		h.logger.Sugar().Errorw("Failed to backfill heights",
			zap.Error(res.Error),
			zap.Uint64("fromAbsolute", fromAbsolute),
			zap.Uint64("toAbsolute", toAbsolute),
		)
		return res.Error
	}
	h.lastPersistedAbsolute = toAbsolute
	return nil
}

func (h *HeightsModel) HandleDecodedEvent(block *types.BlockContext, event *storage.Event, decoded interface{}) (interface{}, error) {
	update, ok := decoded.(*decoder.UpdateActiveBlock)
	if !ok {
		return nil, errors.Errorf("unexpected event %s for heights model", event.Name)
	}
	h.currentActive = update.Active
	block.Active = update.Active
	return update, nil
}

// FinalizeBlock stages this block's height row with the final active value.
func (h *HeightsModel) FinalizeBlock(block *types.BlockContext) error {
	row := &types.Height{
		Absolute:       block.Number,
		Active:         block.Active,
		BlockTimestamp: block.BlockTime,
	}
	slotID := base.NewSlotID(fmt.Sprintf("height_%d", block.Number), "")
	h.writeBuffer.Stage("heights", slotID, row)
	h.accumulator.Record(block.Number, slotID, []byte(row.BlockTimestamp.UTC().Format(time.RFC3339)))
	h.lastPersistedAbsolute = block.Number
	return nil
}

// AbsoluteToActive resolves the active height in force at the given
// absolute height.
func (h *HeightsModel) AbsoluteToActive(absolute uint64) (uint64, error) {
	var row types.Height
	res := h.DB.Where("absolute <= ?", absolute).Order("absolute desc").Limit(1).Find(&row)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNoHeights
	}
	return row.Active, nil
}

// ActiveToAbsolute resolves the first absolute height at which the given
// active height was reached.
func (h *HeightsModel) ActiveToAbsolute(active uint64) (uint64, error) {
	var row types.Height
	res := h.DB.Where("active >= ?", active).Order("absolute asc").Limit(1).Find(&row)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNoHeights
	}
	return row.Absolute, nil
}

// LatestActive returns the current active height.
func (h *HeightsModel) LatestActive() (uint64, error) {
	if err := h.loadCurrentActive(); err != nil {
		return 0, err
	}
	if !h.currentActiveLoaded || (h.currentActive == 0 && h.lastPersistedAbsolute == 0) {
		return 0, ErrNoHeights
	}
	return h.currentActive, nil
}

func (h *HeightsModel) GenerateStateRoot(blockNumber uint64) ([]byte, error) {
	inputs := h.accumulator.Inputs(blockNumber)
	if len(inputs) == 0 {
		return nil, nil
	}
	tree, err := h.MerkleizeState(blockNumber, inputs)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}

func (h *HeightsModel) CleanupProcessedStateForBlock(blockNumber uint64) error {
	h.accumulator.Cleanup(blockNumber)
	return nil
}

func (h *HeightsModel) DeleteState(startBlockNumber uint64, endBlockNumber uint64) error {
	if err := h.BaseChainState.DeleteState("heights", startBlockNumber, endBlockNumber, "absolute", h.DB); err != nil {
		return err
	}
	// Force a reload; the deleted range may include the running values.
	h.currentActiveLoaded = false
	h.lastPersistedAbsolute = 0
	return nil
}
