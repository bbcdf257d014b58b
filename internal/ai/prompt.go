package ai

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/shopspring/decimal"
)

const systemTemplate = `
You are Genie, a friendly trading assistant with access to the user's capital (${{ .Capital }}).
You respond to all messages like a normal chat assistant: casual talk, trading, questions, anything.
If the user mentions a profit target or a risk amount (even casually, like "wanna make 100 and risk 10"), extract it.
Trades are only executed when the user says something like "auto", "automatically" or "go".
Suggest picks if they say "solo" or ask for ideas.

Always answer with exactly one JSON object:
{
  "reply": "...",            // your natural-language answer to the user
  "risk_budget": 10,         // amount the user is willing to risk, or null if not mentioned
  "profit_target": 100       // profit the user is aiming for, or null if not mentioned
}
`

var tmpl = template.Must(template.New("system").Parse(systemTemplate))

// PromptContext 用于渲染系统提示词。
type PromptContext struct {
	Capital string
}

// BuildSystemPrompt 将账户资金渲染进系统提示词。
func BuildSystemPrompt(capital decimal.Decimal) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, PromptContext{Capital: capital.StringFixed(2)}); err != nil {
		return "", fmt.Errorf("渲染提示词失败: %w", err)
	}
	return buf.String(), nil
}
