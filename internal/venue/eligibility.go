package venue

import (
	"github.com/shopspring/decimal"

	"genie-trader/internal/config"
)

// Eligibility 描述入选阈值，三项均为开区间比较；MaxPrice 为零表示无上限。
type Eligibility struct {
	MinPrice  decimal.Decimal
	MaxPrice  decimal.Decimal
	MinVolume decimal.Decimal
}

// EligibilityFromConfig 将配置转换为判定规则。
func EligibilityFromConfig(cfg config.EligibilityConfig) Eligibility {
	return Eligibility{
		MinPrice:  decimal.NewFromFloat(cfg.MinPrice),
		MaxPrice:  decimal.NewFromFloat(cfg.MaxPrice),
		MinVolume: decimal.NewFromFloat(cfg.MinVolume),
	}
}

// Allows 判断行情是否满足入选条件；价格必须为正。
func (e Eligibility) Allows(q Quote) bool {
	if !q.Price.IsPositive() || q.Volume.IsNegative() {
		return false
	}
	if !q.Price.GreaterThan(e.MinPrice) {
		return false
	}
	if e.MaxPrice.IsPositive() && !q.Price.LessThan(e.MaxPrice) {
		return false
	}
	return q.Volume.GreaterThan(e.MinVolume)
}
