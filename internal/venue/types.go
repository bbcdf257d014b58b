package venue

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind 标识交易通道。
type Kind string

const (
	KindEquity Kind = "equity"
	KindCrypto Kind = "crypto"
)

// ParseKind 解析通道名称，大小写不敏感。
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindEquity, "stocks", "stock":
		return KindEquity, nil
	case KindCrypto:
		return KindCrypto, nil
	default:
		return "", fmt.Errorf("venue: 未知通道 %q", raw)
	}
}

// Unit 返回下单数量的展示单位。
func (k Kind) Unit() string {
	if k == KindCrypto {
		return "units"
	}
	return "shares"
}

// Side 表示下单方向，目前只支持买入。
type Side string

const SideBuy Side = "buy"

// Quote 为单个标的的最新价格与成交量。
type Quote struct {
	Symbol string
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// Candidate 是通过入选规则的标的，构造后不再修改。
type Candidate struct {
	Symbol string
	Price  decimal.Decimal
	Volume decimal.Decimal
	Venue  Kind
}

// OrderRequest 描述一次整数数量的买单。
type OrderRequest struct {
	Symbol        string
	Quantity      int64
	Side          Side
	Venue         Kind
	ClientOrderID string
}

// OrderOutcome 为交易所对委托的答复。
type OrderOutcome struct {
	Request        OrderRequest
	Accepted       bool
	VenueReference string
	FailureReason  string
}

// Adapter 屏蔽不同交易通道的差异。
type Adapter interface {
	Venue() Kind
	// Universe 返回固定的候选标的列表。
	Universe() []string
	Eligibility() Eligibility
	// Quote 在交易所无数据时返回 ErrQuoteUnavailable。
	Quote(ctx context.Context, symbol string) (Quote, error)
	// SubmitOrder 在交易所拒单时返回 Accepted=false 的结果以及 ErrOrderRejected，
	// 网络或超时问题返回 ErrVenueUnreachable。
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderOutcome, error)
}

// CapitalReporter 由能够查询账户可用资金的通道实现。
type CapitalReporter interface {
	Capital(ctx context.Context) (decimal.Decimal, error)
}
