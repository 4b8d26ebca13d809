package blockfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ArchiveClientConfig configures the HTTP client for the archive node
// gateway serving pre-decoded blocks.
type ArchiveClientConfig struct {
	BaseUrl        string
	RequestTimeout time.Duration
	MaxRetries     int
}

func DefaultArchiveClientConfig() *ArchiveClientConfig {
	return &ArchiveClientConfig{
		RequestTimeout: 30 * time.Second,
		MaxRetries:     3,
	}
}

// ArchiveClient fetches blocks from the archive gateway over HTTP. It is the
// only chain-facing component; everything downstream consumes FetchedBlocks.
type ArchiveClient struct {
	config     *ArchiveClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Feed = (*ArchiveClient)(nil)

func NewArchiveClient(cfg *ArchiveClientConfig, l *zap.Logger) *ArchiveClient {
	return &ArchiveClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: l,
	}
}

func (c *ArchiveClient) getJson(ctx context.Context, url string, dest interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Sugar().Debugw("Retrying archive request",
				zap.String("url", url),
				zap.Int("attempt", attempt),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.Wrap(err, "failed to build archive request")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = errors.Errorf("archive returned status %d for %s", resp.StatusCode, url)
			continue
		}

		if err := json.Unmarshal(body, dest); err != nil {
			return errors.Wrap(err, "failed to unmarshal archive response")
		}
		return nil
	}
	return errors.Wrap(lastErr, "archive request failed after retries")
}

func (c *ArchiveClient) FetchBlock(ctx context.Context, blockNumber uint64) (*FetchedBlock, error) {
	blocks, err := c.FetchBlocks(ctx, blockNumber, blockNumber)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, errors.Errorf("archive has no block %d", blockNumber)
	}
	return blocks[0], nil
}

func (c *ArchiveClient) FetchBlocks(ctx context.Context, startBlock uint64, endBlock uint64) ([]*FetchedBlock, error) {
	url := fmt.Sprintf("%s/blocks?from=%d&to=%d", c.config.BaseUrl, startBlock, endBlock)

	blocks := make([]*FetchedBlock, 0)
	if err := c.getJson(ctx, url, &blocks); err != nil {
		c.logger.Sugar().Errorw("Failed to fetch blocks",
			zap.Uint64("startBlock", startBlock),
			zap.Uint64("endBlock", endBlock),
			zap.Error(err),
		)
		return nil, err
	}
	return blocks, nil
}

func (c *ArchiveClient) GetLatestHeight(ctx context.Context) (uint64, error) {
	url := fmt.Sprintf("%s/height", c.config.BaseUrl)

	var response struct {
		Height uint64 `json:"height"`
	}
	if err := c.getJson(ctx, url, &response); err != nil {
		return 0, err
	}
	return response.Height, nil
}
