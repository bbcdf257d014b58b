package execution

import (
	"github.com/shopspring/decimal"

	"genie-trader/internal/venue"
)

// Mode 表示调度方式。
type Mode string

const (
	// ModeExecute 在数量大于 0 时真实下单。
	ModeExecute Mode = "execute"
	// ModeRecommend 只给出建议，从不下单。
	ModeRecommend Mode = "recommend"
)

// Outcome 为一次调度的最终结果，调用方按类型分别处理。
type Outcome string

const (
	OutcomeExecuted     Outcome = "executed"
	OutcomeOrderFailed  Outcome = "order_failed"
	OutcomeRecommended  Outcome = "recommended"
	OutcomeBlocked      Outcome = "blocked"
	OutcomeNoCandidates Outcome = "no_candidates"
	// OutcomeScanFailed 表示扫描阶段出现了意外错误（例如通道未配置或适配器 panic）。
	OutcomeScanFailed Outcome = "scan_failed"
)

// Request 描述一次调度请求。
type Request struct {
	Venue      venue.Kind
	Mode       Mode
	RiskBudget *decimal.Decimal
}

// Report 为调度结果摘要，Text() 生成回复给用户的文本。
type Report struct {
	Venue    venue.Kind
	Mode     Mode
	Outcome  Outcome
	Top      []venue.Candidate
	Pick     venue.Candidate
	Quantity int64
	Order    *venue.OrderOutcome
	Reason   string
}

// Submitted 表示本次调度是否向交易所发出了委托。
func (r Report) Submitted() bool {
	return r.Order != nil
}
