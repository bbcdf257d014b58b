package scan

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"genie-trader/internal/venue"
)

// Fetcher 并发拉取候选列表中每个标的的行情。
type Fetcher struct {
	concurrency int
	logger      *zap.Logger
}

// NewFetcher 创建行情拉取器，concurrency<=0 时逐个拉取。
func NewFetcher(concurrency int, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Fetcher{
		concurrency: concurrency,
		logger:      logger,
	}
}

// Fetch 返回成功获取的行情，顺序与 Universe 一致。单个标的失败只记录日志并跳过，从不返回错误。
func (f *Fetcher) Fetch(ctx context.Context, adapter venue.Adapter) []venue.Quote {
	universe := adapter.Universe()
	if len(universe) == 0 {
		return nil
	}

	slots := make([]*venue.Quote, len(universe))

	// 任务本身不返回错误，避免一个标的失败取消其余请求
	var group errgroup.Group
	group.SetLimit(f.concurrency)

	for i, symbol := range universe {
		group.Go(func() error {
			q, err := adapter.Quote(ctx, symbol)
			if err != nil {
				f.logger.Warn("行情获取失败，跳过",
					zap.String("venue", string(adapter.Venue())),
					zap.String("symbol", symbol),
					zap.Error(err),
				)
				return nil
			}
			if q.Symbol == "" {
				q.Symbol = symbol
			}
			slots[i] = &q
			return nil
		})
	}
	_ = group.Wait()

	quotes := make([]venue.Quote, 0, len(universe))
	for _, q := range slots {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}

	f.logger.Debug("行情快照获取完成",
		zap.String("venue", string(adapter.Venue())),
		zap.Int("requested", len(universe)),
		zap.Int("received", len(quotes)),
		zap.Time("retrieved_at", time.Now().UTC()),
	)
	return quotes
}
