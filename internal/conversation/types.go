package conversation

import (
	"github.com/shopspring/decimal"
)

// AssetClass 为当前交易的资产类别。
type AssetClass string

const (
	AssetStocks AssetClass = "stocks"
	AssetCrypto AssetClass = "crypto"
)

// Phase 为状态机所处阶段，由 State 推导而来。
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRiskSet   Phase = "risk_set"
	PhaseAutoArmed Phase = "auto_armed"
)

// Action 为一条消息触发的调度动作。
type Action string

const (
	ActionNone      Action = "none"
	ActionExecute   Action = "execute"
	ActionRecommend Action = "recommend"
)

// State 为进程内的会话状态，只保存在内存中。
type State struct {
	Capital          decimal.Decimal
	RiskBudget       *decimal.Decimal
	ProfitTarget     *decimal.Decimal
	AssetClass       AssetClass
	AutoTradeEnabled bool
}

// Phase 返回当前阶段。
func (s State) Phase() Phase {
	switch {
	case s.AutoTradeEnabled:
		return PhaseAutoArmed
	case s.RiskBudget != nil:
		return PhaseRiskSet
	default:
		return PhaseIdle
	}
}

// clone 返回不与原状态共享指针的副本。
func (s State) clone() State {
	out := s
	out.RiskBudget = copyDecimal(s.RiskBudget)
	out.ProfitTarget = copyDecimal(s.ProfitTarget)
	return out
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// Intent 为分类器对一条消息的解读。
type Intent struct {
	AutoTrade bool
	Advisory  bool
	Crypto    bool
}

// Extraction 为语言服务从消息中提取的数值。
type Extraction struct {
	RiskBudget   *decimal.Decimal
	ProfitTarget *decimal.Decimal
}

// Decision 为处理一条消息后的结果。
type Decision struct {
	Intent Intent
	Action Action
	// State 为处理后的状态快照。
	State State
}

// Notice 返回调度前发送给用户的提示，无动作时为空。
func (d Decision) Notice() string {
	switch d.Action {
	case ActionExecute:
		return "🎯 Auto-trading enabled. Executing now..."
	case ActionRecommend:
		return "📋 Solo mode: Genie will suggest picks, but not trade."
	default:
		return ""
	}
}
