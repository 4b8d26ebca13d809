// Package pipeline orchestrates block processing: persisting the raw feed,
// decoding events, dispatching them to the chain state models, and committing
// each block's staged entities and state root in one transaction.
package pipeline

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/blockfeed"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/chainState/types"
	"github.com/interlay/interbtc-indexer/pkg/decoder"
	"github.com/interlay/interbtc-indexer/pkg/eventBus/eventBusTypes"
	"github.com/interlay/interbtc-indexer/pkg/metrics"
	"github.com/interlay/interbtc-indexer/pkg/metrics/metricsTypes"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Pipeline struct {
	Feed         blockfeed.Feed
	BlockStore   storage.BlockStore
	Decoder      *decoder.Decoder
	Logger       *zap.Logger
	stateManager *stateManager.ChainStateManager
	globalConfig *config.Config
	metricsSink  *metrics.MetricsSink
	eventBus     eventBusTypes.IEventBus
}

func NewPipeline(
	feed blockfeed.Feed,
	bs storage.BlockStore,
	d *decoder.Decoder,
	csm *stateManager.ChainStateManager,
	gc *config.Config,
	ms *metrics.MetricsSink,
	eb eventBusTypes.IEventBus,
	l *zap.Logger,
) *Pipeline {
	return &Pipeline{
		Feed:         feed,
		BlockStore:   bs,
		Decoder:      d,
		Logger:       l,
		stateManager: csm,
		globalConfig: gc,
		metricsSink:  ms,
		eventBus:     eb,
	}
}

// RunForFetchedBlock processes one already-fetched block end to end. Events
// whose layout is unknown for the block's spec version are skipped with a
// warning; every other failure aborts the block before anything is committed.
func (p *Pipeline) RunForFetchedBlock(ctx context.Context, block *blockfeed.FetchedBlock) error {
	blockNumber := block.Block.Number

	totalRunTime := time.Now()
	hasError := false
	defer func() {
		_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_BlockProcessDuration, time.Since(totalRunTime), []metricsTypes.MetricsLabel{
			{Name: "hasError", Value: strconv.FormatBool(hasError)},
		})
	}()

	indexedBlock, indexedEvents, indexedExtrinsics, err := p.indexRawFeed(block)
	if err != nil {
		p.Logger.Sugar().Errorw("Failed to index raw block feed", zap.Uint64("blockNumber", blockNumber), zap.Error(err))
		hasError = true
		return err
	}

	blockContext := &types.BlockContext{
		Number:      indexedBlock.Number,
		Hash:        indexedBlock.Hash,
		SpecVersion: indexedBlock.SpecVersion,
		BlockTime:   indexedBlock.BlockTime,
	}

	if err := p.stateManager.InitProcessingForBlock(blockContext); err != nil {
		p.Logger.Sugar().Errorw("Failed to init processing for block", zap.Uint64("blockNumber", blockNumber), zap.Error(err))
		hasError = true
		return err
	}

	for _, event := range indexedEvents {
		if !p.Decoder.HasLayoutsFor(event.Name) {
			continue
		}
		decoded, err := p.Decoder.Decode(event, indexedBlock.SpecVersion)
		if err != nil {
			if errors.Is(err, decoder.ErrUnknownEventVersion) {
				p.Logger.Sugar().Warnw("Skipping event with unknown layout version",
					zap.String("eventId", event.EventID),
					zap.String("eventName", event.Name),
					zap.Uint32("specVersion", indexedBlock.SpecVersion),
				)
				_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_EventUnknownVersion, []metricsTypes.MetricsLabel{
					{Name: "event_name", Value: event.Name},
					{Name: "spec_version", Value: strconv.FormatUint(uint64(indexedBlock.SpecVersion), 10)},
				}, 1)
				continue
			}
			p.Logger.Sugar().Errorw("Failed to decode event",
				zap.String("eventId", event.EventID),
				zap.String("eventName", event.Name),
				zap.Error(err),
			)
			hasError = true
			return err
		}
		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_EventDecoded, []metricsTypes.MetricsLabel{
			{Name: "event_name", Value: event.Name},
		}, 1)

		if err := p.stateManager.HandleDecodedEvent(blockContext, event, decoded); err != nil {
			hasError = true
			return err
		}
	}

	for _, extrinsic := range indexedExtrinsics {
		if err := p.stateManager.HandleExtrinsic(blockContext, extrinsic); err != nil {
			p.Logger.Sugar().Errorw("Failed to handle extrinsic",
				zap.String("extrinsicId", extrinsic.ExtrinsicID),
				zap.Error(err),
			)
			hasError = true
			return err
		}
	}

	if err := p.stateManager.FinalizeBlock(blockContext); err != nil {
		p.Logger.Sugar().Errorw("Failed to finalize block", zap.Uint64("blockNumber", blockNumber), zap.Error(err))
		hasError = true
		return err
	}

	commitTime := time.Now()
	stateRoot, err := p.stateManager.CommitFinalState(blockContext)
	if err != nil {
		p.Logger.Sugar().Errorw("Failed to commit final state", zap.Uint64("blockNumber", blockNumber), zap.Error(err))
		hasError = true
		return err
	}
	p.Logger.Sugar().Debugw("Committed final state",
		zap.Uint64("blockNumber", blockNumber),
		zap.Duration("commitTime", time.Since(commitTime)),
		zap.Int64("totalTime", time.Since(totalRunTime).Milliseconds()),
	)

	_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_BlockProcessed, nil, 1)
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_CurrentBlockHeight, float64(blockNumber), nil)
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_ActiveBlockHeight, float64(blockContext.Active), nil)

	go p.HandleBlockIndexedHook(indexedBlock, indexedEvents, indexedExtrinsics, stateRoot, p.stateManager.CommittedStateForBlock())

	// Cleanup does not need to block the next block.
	go func() {
		_ = p.stateManager.CleanupProcessedStateForBlock(blockNumber)
	}()

	return nil
}

// indexRawFeed persists the block header plus its ordered events and
// extrinsics. Re-running a block is tolerated so an aborted commit can be
// retried.
func (p *Pipeline) indexRawFeed(block *blockfeed.FetchedBlock) (*storage.Block, []*storage.Event, []*storage.Extrinsic, error) {
	indexedBlock, err := p.BlockStore.InsertBlockAtHeight(
		block.Block.Number,
		block.Block.Hash,
		block.Block.ParentHash,
		block.Block.SpecVersion,
		block.Block.Timestamp,
	)
	if err != nil {
		return nil, nil, nil, err
	}

	indexedEvents := make([]*storage.Event, 0, len(block.Events))
	for _, raw := range block.Events {
		event, err := p.BlockStore.InsertBlockEvent(&storage.Event{
			EventID:     raw.EventID,
			BlockNumber: block.Block.Number,
			EventIndex:  raw.Index,
			Name:        raw.Name,
			Payload:     string(raw.Payload),
			ExtrinsicID: raw.ExtrinsicID,
		}, true)
		if err != nil {
			return nil, nil, nil, err
		}
		indexedEvents = append(indexedEvents, event)
	}

	indexedExtrinsics := make([]*storage.Extrinsic, 0, len(block.Extrinsics))
	for _, raw := range block.Extrinsics {
		extrinsic, err := p.BlockStore.InsertBlockExtrinsic(&storage.Extrinsic{
			ExtrinsicID:    raw.ExtrinsicID,
			BlockNumber:    block.Block.Number,
			ExtrinsicIndex: raw.Index,
			Name:           raw.Name,
			Signer:         raw.Signer,
		}, true)
		if err != nil {
			return nil, nil, nil, err
		}
		indexedExtrinsics = append(indexedExtrinsics, extrinsic)
	}

	return indexedBlock, indexedEvents, indexedExtrinsics, nil
}

// RunForBlock fetches and processes a single block.
func (p *Pipeline) RunForBlock(ctx context.Context, blockNumber uint64) error {
	p.Logger.Sugar().Debugw("Running pipeline for block", zap.Uint64("blockNumber", blockNumber))

	blockFetchTime := time.Now()
	block, err := p.Feed.FetchBlock(ctx, blockNumber)
	if err != nil {
		p.Logger.Sugar().Errorw("Failed to fetch block", zap.Uint64("blockNumber", blockNumber), zap.Error(err))
		return err
	}
	p.Logger.Sugar().Debugw("Fetched block",
		zap.Uint64("blockNumber", blockNumber),
		zap.Int64("fetchTime", time.Since(blockFetchTime).Milliseconds()),
	)

	return p.RunForFetchedBlock(ctx, block)
}

// RunForBlockBatch fetches and processes [startBlock, endBlock] in ascending
// order, stopping at the first failure.
func (p *Pipeline) RunForBlockBatch(ctx context.Context, startBlock uint64, endBlock uint64) error {
	p.Logger.Sugar().Debugw("Running pipeline for block batch",
		zap.Uint64("startBlock", startBlock),
		zap.Uint64("endBlock", endBlock),
	)

	fetchedBlocks, err := p.Feed.FetchBlocks(ctx, startBlock, endBlock)
	if err != nil {
		p.Logger.Sugar().Errorw("Failed to fetch blocks",
			zap.Uint64("startBlock", startBlock),
			zap.Uint64("endBlock", endBlock),
			zap.Error(err),
		)
		return err
	}

	slices.SortFunc(fetchedBlocks, func(b1, b2 *blockfeed.FetchedBlock) int {
		return int(b1.Block.Number) - int(b2.Block.Number)
	})

	for _, block := range fetchedBlocks {
		if err := p.RunForFetchedBlock(ctx, block); err != nil {
			p.Logger.Sugar().Errorw("Failed to run pipeline for fetched block",
				zap.Uint64("blockNumber", block.Block.Number),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}
