package venue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"genie-trader/internal/config"
	"genie-trader/internal/metrics"
)

// GuardOptions 控制单次调用超时、限速与熔断。
type GuardOptions struct {
	CallTimeout     time.Duration
	RateLimit       float64
	RateBurst       int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// GuardOptionsFromConfig 从配置生成 GuardOptions。
func GuardOptionsFromConfig(cfg config.VenueConfig) GuardOptions {
	return GuardOptions{
		CallTimeout:     cfg.CallTimeout,
		RateLimit:       cfg.RateLimit,
		RateBurst:       cfg.RateBurst,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}
}

// Guard 包装 Adapter：每次调用都有超时，超时与熔断统一归为 ErrVenueUnreachable。
// 不做任何重试。
type Guard struct {
	next    Adapter
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var (
	_ Adapter         = (*Guard)(nil)
	_ CapitalReporter = (*Guard)(nil)
)

// NewGuard 创建带保护的适配器。
func NewGuard(next Adapter, opts GuardOptions, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	venueName := string(next.Venue())
	failures := opts.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        venueName,
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// 无行情与拒单属于业务结果，不应触发熔断
			return err == nil || errors.Is(err, ErrQuoteUnavailable) || errors.Is(err, ErrOrderRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("交易所熔断状态变化",
				zap.String("venue", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.SetBreakerState(name, breakerGauge(to))
		},
	})

	return &Guard{
		next:    next,
		timeout: opts.CallTimeout,
		limiter: limiter,
		breaker: breaker,
		logger:  logger.With(zap.String("venue", venueName)),
	}
}

// Venue 返回被包装通道的类型。
func (g *Guard) Venue() Kind {
	return g.next.Venue()
}

// Universe 返回被包装通道的候选列表。
func (g *Guard) Universe() []string {
	return g.next.Universe()
}

// Eligibility 返回被包装通道的入选规则。
func (g *Guard) Eligibility() Eligibility {
	return g.next.Eligibility()
}

// Quote 在保护下获取行情。
func (g *Guard) Quote(ctx context.Context, symbol string) (Quote, error) {
	return guarded(ctx, g, "quote", func(callCtx context.Context) (Quote, error) {
		return g.next.Quote(callCtx, symbol)
	})
}

// SubmitOrder 在保护下提交委托；超时后即使交易所稍后成交也按失败上报。
func (g *Guard) SubmitOrder(ctx context.Context, req OrderRequest) (OrderOutcome, error) {
	outcome, err := guarded(ctx, g, "submit_order", func(callCtx context.Context) (OrderOutcome, error) {
		return g.next.SubmitOrder(callCtx, req)
	})
	if err != nil && outcome.Request.Symbol == "" {
		outcome = OrderOutcome{Request: req, FailureReason: Reason(err)}
	}
	return outcome, err
}

// Capital 在保护下查询可用资金。
func (g *Guard) Capital(ctx context.Context) (decimal.Decimal, error) {
	reporter, ok := g.next.(CapitalReporter)
	if !ok {
		return decimal.Zero, fmt.Errorf("venue: %s 不支持资金查询", g.next.Venue())
	}
	return guarded(ctx, g, "capital", reporter.Capital)
}

type callResult[T any] struct {
	value T
	err   error
}

func guarded[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	venueName := string(g.next.Venue())

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.breaker.Execute(func() (interface{}, error) {
		if g.limiter != nil {
			if waitErr := g.limiter.Wait(callCtx); waitErr != nil {
				return nil, Unreachable(op, waitErr)
			}
		}

		// SDK 调用大多不感知 context，放到独立 goroutine 中并在超时后放弃等待
		done := make(chan callResult[T], 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					var zero T
					done <- callResult[T]{value: zero, err: fmt.Errorf("%s: panic: %v", op, r)}
				}
			}()
			value, callErr := fn(callCtx)
			done <- callResult[T]{value: value, err: callErr}
		}()

		select {
		case <-callCtx.Done():
			return nil, Unreachable(op, callCtx.Err())
		case res := <-done:
			return res.value, res.err
		}
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = Unreachable(op, err)
	}

	var value T
	if typed, ok := raw.(T); ok {
		value = typed
	}

	result := classify(err)
	metrics.ObserveVenueCall(venueName, op, result, time.Since(start))
	if err != nil {
		g.logger.Debug("交易所调用失败",
			zap.String("op", op),
			zap.String("result", result),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
	}

	return value, err
}

func classify(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrQuoteUnavailable):
		return metrics.ResultUnavailable
	case errors.Is(err, ErrOrderRejected):
		return metrics.ResultRejected
	case errors.Is(err, ErrVenueUnreachable):
		return metrics.ResultUnreachable
	default:
		return metrics.ResultError
	}
}

func breakerGauge(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
