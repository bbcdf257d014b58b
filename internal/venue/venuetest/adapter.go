// Package venuetest 提供内存中的 venue.Adapter，供其他包的测试使用。
package venuetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"genie-trader/internal/venue"
)

// Adapter 是可编排行为的假交易通道。
type Adapter struct {
	Kind    venue.Kind
	Symbols []string
	Rule    venue.Eligibility

	Quotes    map[string]venue.Quote
	QuoteErrs map[string]error
	// QuoteFunc 非空时覆盖 Quotes/QuoteErrs。
	QuoteFunc func(ctx context.Context, symbol string) (venue.Quote, error)
	// SubmitFunc 非空时覆盖默认的成交逻辑。
	SubmitFunc func(ctx context.Context, req venue.OrderRequest) (venue.OrderOutcome, error)

	CapitalValue decimal.Decimal
	CapitalErr   error

	mu         sync.Mutex
	quoteCalls []string
	orders     []venue.OrderRequest
}

var (
	_ venue.Adapter         = (*Adapter)(nil)
	_ venue.CapitalReporter = (*Adapter)(nil)
)

// Venue 返回通道类型。
func (a *Adapter) Venue() venue.Kind { return a.Kind }

// Universe 返回候选列表。
func (a *Adapter) Universe() []string { return a.Symbols }

// Eligibility 返回入选规则。
func (a *Adapter) Eligibility() venue.Eligibility { return a.Rule }

// Quote 返回预置行情。
func (a *Adapter) Quote(ctx context.Context, symbol string) (venue.Quote, error) {
	a.mu.Lock()
	a.quoteCalls = append(a.quoteCalls, symbol)
	a.mu.Unlock()

	if a.QuoteFunc != nil {
		return a.QuoteFunc(ctx, symbol)
	}
	if err, ok := a.QuoteErrs[symbol]; ok {
		return venue.Quote{}, err
	}
	q, ok := a.Quotes[symbol]
	if !ok {
		return venue.Quote{}, venue.Unavailable(symbol, nil)
	}
	return q, nil
}

// SubmitOrder 记录委托，默认全部接受。
func (a *Adapter) SubmitOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderOutcome, error) {
	a.mu.Lock()
	a.orders = append(a.orders, req)
	n := len(a.orders)
	a.mu.Unlock()

	if a.SubmitFunc != nil {
		return a.SubmitFunc(ctx, req)
	}
	return venue.OrderOutcome{
		Request:        req,
		Accepted:       true,
		VenueReference: fmt.Sprintf("FAKE-%d", n),
	}, nil
}

// Capital 返回预置资金。
func (a *Adapter) Capital(context.Context) (decimal.Decimal, error) {
	return a.CapitalValue, a.CapitalErr
}

// Orders 返回已提交的委托副本。
func (a *Adapter) Orders() []venue.OrderRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]venue.OrderRequest, len(a.orders))
	copy(out, a.orders)
	return out
}

// QuoteCalls 返回被请求过行情的标的。
func (a *Adapter) QuoteCalls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.quoteCalls))
	copy(out, a.quoteCalls)
	return out
}

// Q 便于测试中构造行情。
func Q(symbol string, price, volume float64) venue.Quote {
	return venue.Quote{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(price),
		Volume: decimal.NewFromFloat(volume),
	}
}
