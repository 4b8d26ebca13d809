package indexer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// blockPollInterval matches the parachain's nominal block time.
const blockPollInterval = 12 * time.Second

// GetLastIndexedBlock returns the highest stored block number, 0 when the
// database is empty.
func (ix *Indexer) GetLastIndexedBlock() (uint64, error) {
	block, err := ix.Storage.GetLatestBlock()
	if err != nil {
		ix.Logger.Sugar().Errorw("Failed to get last indexed block", zap.Error(err))
		return 0, err
	}
	if block == nil {
		return 0, nil
	}
	return block.Number, nil
}

func (ix *Indexer) StartIndexing(ctx context.Context) {
	if err := ix.IndexFromCurrentToTip(ctx); err != nil {
		ix.Logger.Sugar().Fatalw("Failed to index from current to tip", zap.Error(err))
	}

	ix.Logger.Sugar().Info("Catch-up complete, transitioning to listening for new blocks")

	if err := ix.ProcessNewBlocks(ctx); err != nil {
		ix.Logger.Sugar().Fatalw("Failed to process new blocks", zap.Error(err))
	}
}

// ProcessNewBlocks polls the archive for new finalized blocks and runs the
// pipeline for each one in order.
func (ix *Indexer) ProcessNewBlocks(ctx context.Context) error {
	ix.Logger.Sugar().Infow("Processing new blocks")

	for {
		if ix.shouldShutdown.Load() {
			ix.Logger.Sugar().Infow("Shutting down block listener...")
			return nil
		}

		latestIndexedBlock, err := ix.GetLastIndexedBlock()
		if err != nil {
			return errors.Wrap(err, "failed to get last indexed block")
		}

		latestTip, err := ix.Feed.GetLatestHeight(ctx)
		if err != nil {
			ix.Logger.Sugar().Errorw("Failed to get latest archive height", zap.Error(err))
			time.Sleep(blockPollInterval)
			continue
		}

		// The archive serves finalized blocks only, so a tip behind what we
		// have indexed means our state is corrupted, not reorged.
		if latestTip < latestIndexedBlock {
			ix.Logger.Sugar().Warnw("Archive tip is behind latest indexed block",
				zap.Uint64("latestTip", latestTip),
				zap.Uint64("latestIndexedBlock", latestIndexedBlock),
			)
			if err := ix.DeleteCorruptedState(latestTip+1, latestIndexedBlock); err != nil {
				return err
			}
			latestIndexedBlock = latestTip
		}

		if latestTip == latestIndexedBlock {
			time.Sleep(blockPollInterval)
			continue
		}

		blockDiff := latestTip - latestIndexedBlock
		ix.Logger.Sugar().Infow(fmt.Sprintf("%d new blocks detected, processing", blockDiff))

		for i := latestIndexedBlock + 1; i <= latestTip; i++ {
			if ix.shouldShutdown.Load() {
				ix.Logger.Sugar().Infow("Shutting down block listener...")
				return nil
			}
			if err := ix.Pipeline.RunForBlock(ctx, i); err != nil {
				ix.Logger.Sugar().Errorw("Failed to run pipeline for block",
					zap.Uint64("blockNumber", i),
					zap.Error(err),
				)
				return err
			}
		}
		time.Sleep(blockPollInterval)
	}
}

// IndexFromCurrentToTip catches the database up to the archive tip in
// batches. An aborted previous run leaves blocks without state roots; those
// are deleted and re-indexed.
func (ix *Indexer) IndexFromCurrentToTip(ctx context.Context) error {
	lastIndexedBlock, err := ix.GetLastIndexedBlock()
	if err != nil {
		return err
	}

	latestStateRoot, err := ix.StateManager.GetLatestStateRoot()
	if err != nil {
		ix.Logger.Sugar().Errorw("Failed to get latest state root", zap.Error(err))
		return err
	}

	var startBlock uint64
	switch {
	case latestStateRoot == nil:
		ix.Logger.Sugar().Infow("No state roots found, starting from genesis",
			zap.Uint64("genesisBlock", ix.Config.GenesisBlockNumber))
		if lastIndexedBlock > 0 {
			if err := ix.DeleteCorruptedState(ix.Config.GenesisBlockNumber, lastIndexedBlock); err != nil {
				return err
			}
		}
		startBlock = ix.Config.GenesisBlockNumber

	case latestStateRoot.BlockNumber < lastIndexedBlock:
		ix.Logger.Sugar().Infow("Latest state root is behind latest block, deleting corrupted state",
			zap.Uint64("latestStateRoot", latestStateRoot.BlockNumber),
			zap.Uint64("lastIndexedBlock", lastIndexedBlock),
		)
		if err := ix.DeleteCorruptedState(latestStateRoot.BlockNumber+1, lastIndexedBlock); err != nil {
			return err
		}
		startBlock = latestStateRoot.BlockNumber + 1

	case latestStateRoot.BlockNumber > lastIndexedBlock:
		return errors.Errorf("latest state root (%d) is ahead of latest stored block (%d)",
			latestStateRoot.BlockNumber, lastIndexedBlock)

	default:
		startBlock = lastIndexedBlock + 1
	}

	latestTip, err := ix.Feed.GetLatestHeight(ctx)
	if err != nil {
		ix.Logger.Sugar().Errorw("Failed to get latest archive height", zap.Error(err))
		return err
	}
	if latestTip < startBlock {
		ix.Logger.Sugar().Infow("Already at archive tip",
			zap.Uint64("latestTip", latestTip),
			zap.Uint64("startBlock", startBlock),
		)
		return nil
	}

	ix.Logger.Sugar().Infow("Indexing from current to tip",
		zap.Uint64("currentTip", latestTip),
		zap.Uint64("startBlock", startBlock),
		zap.Uint64("difference", latestTip-startBlock),
	)

	currentTip := atomic.Uint64{}
	currentTip.Store(latestTip)

	indexComplete := atomic.Bool{}
	indexComplete.Store(false)
	defer indexComplete.Store(true)

	// Refresh the tip while catch-up runs so newly finalized blocks extend
	// the loop instead of waiting for the polling phase.
	go func() {
		for {
			time.Sleep(time.Second * 30)
			if ix.shouldShutdown.Load() || indexComplete.Load() {
				return
			}
			latest, err := ix.Feed.GetLatestHeight(ctx)
			if err != nil {
				ix.Logger.Sugar().Errorw("Failed to get latest archive height", zap.Error(err))
				continue
			}
			if latest > currentTip.Load() {
				currentTip.Store(latest)
			}
		}
	}()

	currentBlock := startBlock
	progress := NewProgress(currentBlock, &currentTip, ix.Logger)

	for currentBlock <= currentTip.Load() {
		if ix.shouldShutdown.Load() {
			ix.Logger.Sugar().Infow("Shutting down block processor")
			return nil
		}
		tip := currentTip.Load()

		batchEndBlock := currentBlock + 100
		if batchEndBlock > tip {
			batchEndBlock = tip
		}
		if err := ix.Pipeline.RunForBlockBatch(ctx, currentBlock, batchEndBlock); err != nil {
			ix.Logger.Sugar().Errorw("Failed to run pipeline for block batch",
				zap.Error(err),
				zap.Uint64("startBlock", currentBlock),
				zap.Uint64("batchEndBlock", batchEndBlock),
			)
			return err
		}
		progress.UpdateAndPrintProgress(batchEndBlock)

		currentBlock = batchEndBlock + 1
	}

	return nil
}

// DeleteCorruptedState removes everything indexed for the inclusive block
// range: model projections and state roots first, then the raw feed rows
// they were derived from.
func (ix *Indexer) DeleteCorruptedState(startBlock uint64, endBlock uint64) error {
	if err := ix.StateManager.DeleteCorruptedState(startBlock, endBlock); err != nil {
		ix.Logger.Sugar().Errorw("Failed to delete corrupted model state", zap.Error(err))
		return err
	}
	if err := ix.Storage.DeleteCorruptedState(startBlock, endBlock); err != nil {
		ix.Logger.Sugar().Errorw("Failed to delete corrupted raw feed state", zap.Error(err))
		return err
	}
	return nil
}

type Progress struct {
	StartBlock         uint64
	LastBlockProcessed uint64
	CurrentTip         *atomic.Uint64
	StartTime          time.Time
	logger             *zap.Logger
}

func NewProgress(startBlock uint64, currentTip *atomic.Uint64, l *zap.Logger) *Progress {
	return &Progress{
		StartBlock:         startBlock,
		LastBlockProcessed: startBlock,
		CurrentTip:         currentTip,
		StartTime:          time.Now(),
		logger:             l,
	}
}

func (p *Progress) UpdateAndPrintProgress(lastBlockProcessed uint64) {
	p.LastBlockProcessed = lastBlockProcessed

	blocksProcessed := lastBlockProcessed - p.StartBlock
	currentTip := p.CurrentTip.Load()
	totalBlocksToProcess := currentTip - p.StartBlock
	blocksRemaining := currentTip - lastBlockProcessed

	if blocksProcessed == 0 || totalBlocksToProcess == 0 {
		return
	}

	pctComplete := (float64(blocksProcessed) / float64(totalBlocksToProcess)) * 100
	runningAvg := time.Since(p.StartTime).Milliseconds() / int64(blocksProcessed)
	estTimeRemainingHours := float64(runningAvg*int64(blocksRemaining)) / 1000 / 60 / 60

	p.logger.Sugar().Infow("Progress",
		zap.String("percentComplete", fmt.Sprintf("%.2f", pctComplete)),
		zap.Uint64("blocksRemaining", blocksRemaining),
		zap.Float64("estimatedTimeRemaining (hrs)", estTimeRemainingHours),
		zap.Float64("avgBlockProcessTime (ms)", float64(runningAvg)),
		zap.Uint64("currentBlock", lastBlockProcessed),
	)
}
