package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// Size 按风险预算计算整数下单数量：floor(budget/price)。
// 预算未设置、非正，价格非正，或结果超出 int64 范围时返回 0。
func Size(budget *decimal.Decimal, price decimal.Decimal) int64 {
	if budget == nil || !budget.IsPositive() || !price.IsPositive() {
		return 0
	}
	quotient, _ := budget.QuoRem(price, 0)
	if !quotient.IsPositive() || quotient.GreaterThan(maxQuantity) {
		return 0
	}
	return quotient.IntPart()
}
