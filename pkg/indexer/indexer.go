// Package indexer runs the long-lived indexing process: catch up from the
// last committed block to the archive tip, then poll for new blocks.
package indexer

import (
	"context"
	"sync/atomic"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/blockfeed"
	"github.com/interlay/interbtc-indexer/pkg/chainState/stateManager"
	"github.com/interlay/interbtc-indexer/pkg/pipeline"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type IndexerConfig struct {
	// GenesisBlockNumber is where indexing starts on an empty database.
	GenesisBlockNumber uint64
}

type Indexer struct {
	Logger       *zap.Logger
	Config       *IndexerConfig
	GlobalConfig *config.Config
	Storage      storage.BlockStore
	Pipeline     *pipeline.Pipeline
	Feed         blockfeed.Feed
	StateManager *stateManager.ChainStateManager

	ShutdownChan   chan bool
	shouldShutdown *atomic.Bool

	db *gorm.DB
}

func NewIndexer(
	cfg *IndexerConfig,
	gCfg *config.Config,
	s storage.BlockStore,
	p *pipeline.Pipeline,
	feed blockfeed.Feed,
	csm *stateManager.ChainStateManager,
	grm *gorm.DB,
	l *zap.Logger,
) *Indexer {
	shouldShutdown := &atomic.Bool{}
	shouldShutdown.Store(false)
	return &Indexer{
		Logger:         l,
		Config:         cfg,
		GlobalConfig:   gCfg,
		Storage:        s,
		Pipeline:       p,
		Feed:           feed,
		StateManager:   csm,
		ShutdownChan:   make(chan bool),
		shouldShutdown: shouldShutdown,
		db:             grm,
	}
}

func (ix *Indexer) Start(ctx context.Context) {
	ix.Logger.Info("Starting indexer")

	go func() {
		for range ix.ShutdownChan {
			ix.Logger.Sugar().Infow("Received shutdown signal")
			ix.shouldShutdown.Store(true)
		}
	}()

	ix.StartIndexing(ctx)
}
