package equity

import (
	"context"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"genie-trader/internal/venue"
)

// 行情来源
const (
	QuoteSourceAlpaca = "alpaca"
	QuoteSourceYahoo  = "yahoo"
	QuoteSourceKite   = "kite"
)

// quoteSource 提供单个标的的最新价与成交量。
type quoteSource interface {
	Quote(ctx context.Context, symbol string) (venue.Quote, error)
}

// yahooQuotes 使用 Yahoo Finance 的实时快照，美股代码以美元计价。
type yahooQuotes struct {
	fetch func(symbol string) (*finance.Quote, error)
}

func newYahooQuotes() *yahooQuotes {
	return &yahooQuotes{fetch: quote.Get}
}

func (y *yahooQuotes) Quote(ctx context.Context, symbol string) (venue.Quote, error) {
	if err := ctx.Err(); err != nil {
		return venue.Quote{}, venue.Unreachable("yahoo_quote", err)
	}

	q, err := y.fetch(symbol)
	if err != nil {
		if transient(err) {
			return venue.Quote{}, venue.Unreachable("yahoo_quote", err)
		}
		return venue.Quote{}, venue.Unavailable(symbol, err)
	}
	// 未知代码时 finance-go 返回 nil 而非错误
	if q == nil || q.RegularMarketPrice <= 0 {
		return venue.Quote{}, venue.Unavailable(symbol, nil)
	}

	return venue.Quote{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(q.RegularMarketPrice),
		Volume: decimal.NewFromInt(int64(q.RegularMarketVolume)),
	}, nil
}
