package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"genie-trader/internal/metrics"
	"genie-trader/internal/monitor"
	"genie-trader/internal/risk"
	"genie-trader/internal/scan"
	"genie-trader/internal/trace"
	"genie-trader/internal/venue"
)

// Recorder 接收扫描与调度事件，nil 表示不记录。
type Recorder interface {
	RecordScan(ctx context.Context, result scan.Result)
	RecordDispatch(ctx context.Context, payload monitor.DispatchPayload)
}

var _ Recorder = (*monitor.Service)(nil)

// Options 控制调度参数。
type Options struct {
	// ReportTop 为回复中展示的候选数量。
	ReportTop int
}

// Dispatcher 串联扫描、排序、定量与下单，两个通道共用同一条路径。
type Dispatcher struct {
	adapters map[venue.Kind]venue.Adapter
	fetcher  *scan.Fetcher
	recorder Recorder
	opts     Options
	logger   *zap.Logger
}

// NewDispatcher 创建调度器。
func NewDispatcher(adapters []venue.Adapter, fetcher *scan.Fetcher, recorder Recorder, opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetcher == nil {
		fetcher = scan.NewFetcher(1, logger)
	}
	if opts.ReportTop <= 0 {
		opts.ReportTop = 3
	}
	byKind := make(map[venue.Kind]venue.Adapter, len(adapters))
	for _, a := range adapters {
		byKind[a.Venue()] = a
	}
	return &Dispatcher{
		adapters: byKind,
		fetcher:  fetcher,
		recorder: recorder,
		opts:     opts,
		logger:   logger,
	}
}

// Dispatch 执行一次扫描与调度，总是返回终态结果，不会向外抛出 panic。
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (report Report) {
	ctx, span := trace.StartSpan(ctx, "execution.Dispatch",
		attribute.String("venue", string(req.Venue)),
		attribute.String("mode", string(req.Mode)),
	)
	defer span.End()

	report = Report{Venue: req.Venue, Mode: req.Mode}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("调度过程发生 panic", zap.Any("panic", r), zap.String("venue", string(req.Venue)))
			report = Report{
				Venue:   req.Venue,
				Mode:    req.Mode,
				Outcome: OutcomeScanFailed,
				Reason:  fmt.Sprintf("internal failure: %v", r),
			}
		}
		d.finish(ctx, report)
	}()

	adapter, ok := d.adapters[req.Venue]
	if !ok {
		report.Outcome = OutcomeScanFailed
		report.Reason = fmt.Sprintf("venue %s is not configured", req.Venue)
		return report
	}

	result := d.fetcher.Scan(ctx, adapter)
	if d.recorder != nil {
		d.recorder.RecordScan(ctx, result)
	}

	best, ok := result.Best()
	if !ok {
		report.Outcome = OutcomeNoCandidates
		return report
	}

	report.Top = result.Top(d.opts.ReportTop)
	report.Pick = best
	report.Quantity = risk.Size(req.RiskBudget, best.Price)

	switch {
	case req.Mode != ModeExecute:
		report.Outcome = OutcomeRecommended
	case report.Quantity <= 0:
		report.Outcome = OutcomeBlocked
	default:
		d.submit(ctx, adapter, &report)
	}
	return report
}

func (d *Dispatcher) submit(ctx context.Context, adapter venue.Adapter, report *Report) {
	order := venue.OrderRequest{
		Symbol:        report.Pick.Symbol,
		Quantity:      report.Quantity,
		Side:          venue.SideBuy,
		Venue:         adapter.Venue(),
		ClientOrderID: "genie-" + uuid.NewString(),
	}

	outcome, err := submitSafely(ctx, adapter, order)
	if outcome.Request.Symbol == "" {
		outcome.Request = order
	}
	report.Order = &outcome

	if err != nil || !outcome.Accepted {
		outcome.Accepted = false
		report.Outcome = OutcomeOrderFailed
		report.Reason = failureReason(outcome, err)
		d.logger.Warn("委托提交失败",
			zap.String("venue", string(order.Venue)),
			zap.String("symbol", order.Symbol),
			zap.Int64("quantity", order.Quantity),
			zap.String("client_order_id", order.ClientOrderID),
			zap.Error(err),
		)
		return
	}

	report.Outcome = OutcomeExecuted
	d.logger.Info("委托已成交或已受理",
		zap.String("venue", string(order.Venue)),
		zap.String("symbol", order.Symbol),
		zap.Int64("quantity", order.Quantity),
		zap.String("reference", outcome.VenueReference),
	)
}

// submitSafely 将适配器中的 panic 转换为普通错误。
func submitSafely(ctx context.Context, adapter venue.Adapter, order venue.OrderRequest) (outcome venue.OrderOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = venue.OrderOutcome{Request: order}
			err = fmt.Errorf("execution: 下单 panic: %v", r)
		}
	}()
	return adapter.SubmitOrder(ctx, order)
}

func (d *Dispatcher) finish(ctx context.Context, report Report) {
	metrics.IncDispatch(string(report.Venue), string(report.Outcome))

	d.logger.Info("调度完成",
		zap.String("venue", string(report.Venue)),
		zap.String("mode", string(report.Mode)),
		zap.String("outcome", string(report.Outcome)),
		zap.String("symbol", report.Pick.Symbol),
		zap.Int64("quantity", report.Quantity),
	)

	if d.recorder == nil {
		return
	}
	payload := monitor.DispatchPayload{
		Venue:    string(report.Venue),
		Mode:     string(report.Mode),
		Outcome:  string(report.Outcome),
		Symbol:   report.Pick.Symbol,
		Quantity: report.Quantity,
		Reason:   report.Reason,
	}
	if report.Order != nil {
		payload.Reference = report.Order.VenueReference
	}
	d.recorder.RecordDispatch(ctx, payload)
}
