package execution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"genie-trader/internal/venue"
)

const reportHeader = "🦞 Genie Scan Results:"

// Text 渲染回复文本：标题、最多 N 行候选，最后一行为结果。
func (r Report) Text() string {
	if r.Outcome == OutcomeScanFailed {
		return fmt.Sprintf("❌ Scanner error: %s", r.Reason)
	}

	var b strings.Builder
	b.WriteString(reportHeader)
	b.WriteString("\n")
	for _, c := range r.Top {
		fmt.Fprintf(&b, "%s: $%s | Vol: %s\n", c.Symbol, formatPrice(c.Price), c.Volume.StringFixed(0))
	}
	b.WriteString(r.outcomeLine())
	return b.String()
}

func (r Report) outcomeLine() string {
	unit := r.Venue.Unit()
	switch r.Outcome {
	case OutcomeExecuted:
		return fmt.Sprintf("🚀 Executed trade for %s with %d %s", r.Pick.Symbol, r.Quantity, unit)
	case OutcomeOrderFailed:
		return fmt.Sprintf("❌ Order failed for %s (%d %s): %s", r.Pick.Symbol, r.Quantity, unit, r.Reason)
	case OutcomeRecommended:
		return fmt.Sprintf("🔍 Recommendation only: %s looks best", r.Pick.Symbol)
	case OutcomeBlocked:
		return "⚠️ Risk too low to trade"
	case OutcomeNoCandidates:
		return "🤖 No high-probability picks today."
	default:
		return string(r.Outcome)
	}
}

// formatPrice 保留两位小数；低于 1 的币价保留更多位以免显示为 0.00。
func formatPrice(price decimal.Decimal) string {
	if price.LessThan(decimal.NewFromInt(1)) {
		return price.Truncate(8).String()
	}
	return price.StringFixed(2)
}

// failureReason 将交易所错误转换为面向用户的原因。
func failureReason(outcome venue.OrderOutcome, err error) string {
	switch {
	case errors.Is(err, venue.ErrVenueUnreachable):
		return "venue unreachable, order status unknown"
	case outcome.FailureReason != "":
		return outcome.FailureReason
	case err != nil:
		return venue.Reason(err)
	default:
		return "order not accepted"
	}
}
