package conversation

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Machine 持有会话状态，所有读改写都在同一把锁内完成。
type Machine struct {
	mu         sync.Mutex
	state      State
	classifier Classifier
	logger     *zap.Logger
}

// NewMachine 创建状态机，初始资产类别为股票。
func NewMachine(classifier Classifier, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		state:      State{AssetClass: AssetStocks},
		classifier: classifier,
		logger:     logger,
	}
}

// SetCapital 记录最新查询到的可用资金。
func (m *Machine) SetCapital(capital decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Capital = capital
}

// Snapshot 返回当前状态副本。
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Apply 处理一条消息：记录语言服务提取的数值，更新资产类别，并决定调度动作。
//
// 自动交易词优先于建议词；消息中不含加密货币词汇时资产类别重置为股票。
func (m *Machine) Apply(text string, extraction Extraction) Decision {
	intent := m.classifier.Classify(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accept("risk_budget", extraction.RiskBudget) {
		m.state.RiskBudget = copyDecimal(extraction.RiskBudget)
	}
	if m.accept("profit_target", extraction.ProfitTarget) {
		m.state.ProfitTarget = copyDecimal(extraction.ProfitTarget)
	}

	if intent.Crypto {
		m.state.AssetClass = AssetCrypto
	} else {
		m.state.AssetClass = AssetStocks
	}

	action := ActionNone
	switch {
	case intent.AutoTrade:
		m.state.AutoTradeEnabled = true
		action = ActionExecute
	case intent.Advisory:
		action = ActionRecommend
	}

	decision := Decision{
		Intent: intent,
		Action: action,
		State:  m.state.clone(),
	}

	m.logger.Debug("会话状态已更新",
		zap.String("phase", string(decision.State.Phase())),
		zap.String("asset_class", string(decision.State.AssetClass)),
		zap.String("action", string(action)),
	)
	return decision
}

// maxAmount 为可接受的风险预算与盈利目标上限，超出视为无效提取。
var maxAmount = decimal.New(1, 15)

func (m *Machine) accept(field string, v *decimal.Decimal) bool {
	if v == nil || v.IsNegative() {
		return false
	}
	if v.GreaterThan(maxAmount) {
		m.logger.Warn("提取的金额超出上限，已忽略", zap.String("field", field), zap.String("value", v.String()))
		return false
	}
	return true
}
