package monitor

import (
	"time"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventScan     EventType = "scan"
	EventDispatch EventType = "dispatch"
	EventIntent   EventType = "intent"
	EventError    EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// CandidateView 为候选标的的可序列化视图，金额以字符串保存避免精度损失。
type CandidateView struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Volume string `json:"volume"`
}

// ScanPayload 记录一次扫描结果。
type ScanPayload struct {
	Venue      string          `json:"venue"`
	Candidates []CandidateView `json:"candidates"`
}

// DispatchPayload 记录一次调度结果。
type DispatchPayload struct {
	Venue     string `json:"venue"`
	Mode      string `json:"mode"`
	Outcome   string `json:"outcome"`
	Symbol    string `json:"symbol,omitempty"`
	Quantity  int64  `json:"quantity,omitempty"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// IntentPayload 记录状态机对一条消息的解读，不包含消息原文。
type IntentPayload struct {
	Phase        string `json:"phase"`
	AssetClass   string `json:"asset_class"`
	AutoTrade    bool   `json:"auto_trade"`
	Advisory     bool   `json:"advisory"`
	RiskBudget   string `json:"risk_budget,omitempty"`
	ProfitTarget string `json:"profit_target,omitempty"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
