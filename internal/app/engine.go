package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"genie-trader/internal/ai"
	"genie-trader/internal/conversation"
	"genie-trader/internal/execution"
	"genie-trader/internal/metrics"
	"genie-trader/internal/monitor"
	"genie-trader/internal/trace"
	"genie-trader/internal/venue"
)

// 语言服务答复为空且无调度时的兜底答复
const emptyReply = "🤖 Genie has nothing to add right now."

// languageService 为语言服务的最小接口。
type languageService interface {
	Converse(ctx context.Context, capital decimal.Decimal, text string) (ai.Reply, error)
}

// eventRecorder 记录意图与异常事件。
type eventRecorder interface {
	RecordIntent(ctx context.Context, payload monitor.IntentPayload)
	RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{})
}

var _ eventRecorder = (*monitor.Service)(nil)

// Engine 处理单条消息：查询资金、调用语言服务、更新会话状态、按需调度交易，最终只产生一条答复。
type Engine struct {
	lang     languageService
	capital  venue.CapitalReporter
	machine  *conversation.Machine
	trader   execution.Trader
	recorder eventRecorder
	logger   *zap.Logger
}

// NewEngine 创建消息处理引擎，recorder 可为 nil。
func NewEngine(lang languageService, capital venue.CapitalReporter, machine *conversation.Machine, trader execution.Trader, recorder eventRecorder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		lang:     lang,
		capital:  capital,
		machine:  machine,
		trader:   trader,
		recorder: recorder,
		logger:   logger,
	}
}

// HandleMessage 实现 telegram.Handler。
func (e *Engine) HandleMessage(ctx context.Context, text string) (reply string) {
	ctx, span := trace.StartSpan(ctx, "app.HandleMessage", attribute.Int("text_len", len(text)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("消息处理发生 panic", zap.Any("panic", r))
			metrics.IncMessage("panic")
			reply = fmt.Sprintf("❌ Genie error: internal failure: %v", r)
		}
	}()

	capital, err := e.capital.Capital(ctx)
	if err != nil {
		e.fail(ctx, "capital", "查询可用资金失败", err)
		return fmt.Sprintf("❌ Capital error: %s", venue.Reason(err))
	}
	e.machine.SetCapital(capital)

	answer, err := e.lang.Converse(ctx, capital, text)
	if err != nil {
		e.fail(ctx, "language", "语言服务调用失败", err)
		return fmt.Sprintf("❌ Genie error: %v", err)
	}

	decision := e.machine.Apply(text, conversation.Extraction{
		RiskBudget:   answer.RiskBudget,
		ProfitTarget: answer.ProfitTarget,
	})
	e.recordIntent(ctx, decision)

	parts := []string{answer.Text}
	if decision.Action != conversation.ActionNone {
		parts = append(parts, decision.Notice())
		report := e.trader.Dispatch(ctx, execution.Request{
			Venue:      venueFor(decision.State.AssetClass),
			Mode:       modeFor(decision.Action),
			RiskBudget: decision.State.RiskBudget,
		})
		parts = append(parts, report.Text())
	}

	metrics.IncMessage(string(decision.Action))
	if reply = joinNonEmpty(parts, "\n\n"); reply == "" {
		reply = emptyReply
	}
	return reply
}

func (e *Engine) fail(ctx context.Context, component, msg string, err error) {
	e.logger.Error(msg, zap.String("component", component), zap.Error(err))
	metrics.IncMessage(component + "_error")
	if e.recorder != nil {
		e.recorder.RecordError(ctx, msg, err, map[string]interface{}{"component": component})
	}
}

func (e *Engine) recordIntent(ctx context.Context, decision conversation.Decision) {
	if e.recorder == nil {
		return
	}
	payload := monitor.IntentPayload{
		Phase:      string(decision.State.Phase()),
		AssetClass: string(decision.State.AssetClass),
		AutoTrade:  decision.Intent.AutoTrade,
		Advisory:   decision.Intent.Advisory,
	}
	if decision.State.RiskBudget != nil {
		payload.RiskBudget = decision.State.RiskBudget.String()
	}
	if decision.State.ProfitTarget != nil {
		payload.ProfitTarget = decision.State.ProfitTarget.String()
	}
	e.recorder.RecordIntent(ctx, payload)
}

func venueFor(class conversation.AssetClass) venue.Kind {
	if class == conversation.AssetCrypto {
		return venue.KindCrypto
	}
	return venue.KindEquity
}

func modeFor(action conversation.Action) execution.Mode {
	if action == conversation.ActionExecute {
		return execution.ModeExecute
	}
	return execution.ModeRecommend
}

func joinNonEmpty(parts []string, sep string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
