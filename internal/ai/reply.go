package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Reply 为语言服务的答复以及从中提取的数值，未提及的数值为 nil。
type Reply struct {
	Text         string
	RiskBudget   *decimal.Decimal
	ProfitTarget *decimal.Decimal
}

type envelope struct {
	Reply        string           `json:"reply"`
	RiskBudget   *decimal.Decimal `json:"risk_budget"`
	ProfitTarget *decimal.Decimal `json:"profit_target"`
}

// parseReply 优先解析 JSON 信封；模型返回纯文本时原样作为答复，不提取任何数值。
func parseReply(content string) Reply {
	payload, err := extractJSON(content)
	if err != nil {
		return Reply{Text: content}
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Reply{Text: content}
	}

	reply := Reply{
		Text:         strings.TrimSpace(env.Reply),
		RiskBudget:   env.RiskBudget,
		ProfitTarget: env.ProfitTarget,
	}
	if reply.Text == "" {
		// 信封里没有答复文本时，去掉 JSON 部分后的剩余内容作为答复
		reply.Text = strings.TrimSpace(strings.Replace(content, string(payload), "", 1))
	}
	return reply
}

func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("模型输出未找到有效JSON: %s", content)
	}

	return []byte(content[start : end+1]), nil
}
