package venue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ CapitalReporter = (*Simulated)(nil)

// Simulated 在 dry-run 模式下包装真实通道：行情照常获取，委托只记录不提交。
type Simulated struct {
	Adapter
	seq    atomic.Int64
	logger *zap.Logger
}

// NewSimulated 创建模拟下单的通道。
func NewSimulated(next Adapter, logger *zap.Logger) *Simulated {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{
		Adapter: next,
		logger:  logger.With(zap.String("venue", string(next.Venue())), zap.Bool("dry_run", true)),
	}
}

// SubmitOrder 返回模拟成交结果。
func (s *Simulated) SubmitOrder(ctx context.Context, req OrderRequest) (OrderOutcome, error) {
	outcome := OrderOutcome{Request: req}
	if req.Quantity <= 0 {
		outcome.FailureReason = "quantity must be positive"
		return outcome, Rejected(outcome.FailureReason)
	}
	if err := ctx.Err(); err != nil {
		return outcome, Unreachable("submit_order", err)
	}

	outcome.Accepted = true
	outcome.VenueReference = fmt.Sprintf("SIM-%d-%d", time.Now().UnixNano(), s.seq.Add(1))
	s.logger.Warn("dry-run 模式，委托未提交到交易所",
		zap.String("symbol", req.Symbol),
		zap.Int64("quantity", req.Quantity),
		zap.String("reference", outcome.VenueReference),
	)
	return outcome, nil
}

// Capital 透传到被包装的通道。
func (s *Simulated) Capital(ctx context.Context) (decimal.Decimal, error) {
	reporter, ok := s.Adapter.(CapitalReporter)
	if !ok {
		return decimal.Zero, fmt.Errorf("venue: %s 不支持资金查询", s.Venue())
	}
	return reporter.Capital(ctx)
}
