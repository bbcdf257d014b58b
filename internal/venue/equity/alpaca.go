package equity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"genie-trader/internal/config"
	"genie-trader/internal/venue"
)

// alpacaTrading 是 Alpaca 交易客户端中本通道用到的子集。
type alpacaTrading interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	GetAccount() (*alpaca.Account, error)
}

// alpacaMarketData 是 Alpaca 行情客户端中本通道用到的子集。
type alpacaMarketData interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
}

// alpacaBroker 以美元下单，委托为市价 GTC 买单。
type alpacaBroker struct {
	client alpacaTrading
}

func (b *alpacaBroker) name() string { return BrokerAlpaca }

func (b *alpacaBroker) submit(ctx context.Context, req venue.OrderRequest) (venue.OrderOutcome, error) {
	outcome := venue.OrderOutcome{Request: req}
	qty := decimal.NewFromInt(req.Quantity)

	order, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          alpaca.Buy,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.GTC,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		if transient(err) {
			return outcome, venue.Unreachable("place_order", err)
		}
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) {
			outcome.FailureReason = strings.TrimSpace(apiErr.Message)
			if outcome.FailureReason == "" {
				outcome.FailureReason = http.StatusText(apiErr.StatusCode)
			}
			return outcome, venue.Rejected(outcome.FailureReason)
		}
		return outcome, fmt.Errorf("equity: 下单失败: %w", err)
	}
	if order == nil {
		return outcome, fmt.Errorf("equity: 下单返回为空")
	}
	if strings.EqualFold(order.Status, "rejected") {
		outcome.FailureReason = "order rejected by broker"
		return outcome, venue.Rejected(outcome.FailureReason)
	}

	outcome.Accepted = true
	outcome.VenueReference = order.ID
	return outcome, nil
}

func (b *alpacaBroker) capital(ctx context.Context) (decimal.Decimal, error) {
	account, err := b.client.GetAccount()
	if err != nil {
		if transient(err) {
			return decimal.Zero, venue.Unreachable("account", err)
		}
		return decimal.Zero, fmt.Errorf("equity: 查询资金失败: %w", err)
	}
	if account == nil {
		return decimal.Zero, fmt.Errorf("equity: 账户信息为空")
	}
	return account.Cash, nil
}

// alpacaQuotes 使用 Alpaca 快照中的日线收盘价与成交量。
type alpacaQuotes struct {
	client alpacaMarketData
	feed   marketdata.Feed
}

func (q *alpacaQuotes) Quote(ctx context.Context, symbol string) (venue.Quote, error) {
	if err := ctx.Err(); err != nil {
		return venue.Quote{}, venue.Unreachable("alpaca_snapshot", err)
	}

	snap, err := q.client.GetSnapshot(symbol, marketdata.GetSnapshotRequest{Feed: q.feed})
	if err != nil {
		if transient(err) {
			return venue.Quote{}, venue.Unreachable("alpaca_snapshot", err)
		}
		return venue.Quote{}, venue.Unavailable(symbol, err)
	}
	if snap == nil || snap.DailyBar == nil || snap.DailyBar.Close <= 0 {
		return venue.Quote{}, venue.Unavailable(symbol, nil)
	}

	return venue.Quote{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(snap.DailyBar.Close),
		Volume: decimal.NewFromInt(int64(snap.DailyBar.Volume)),
	}, nil
}

// newAlpacaQuoteSource 为 Alpaca 券商选择美元计价的行情来源。
func newAlpacaQuoteSource(cfg config.EquityConfig) (quoteSource, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.QuoteSource)) {
	case "", QuoteSourceAlpaca:
		client := marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
		})
		return &alpacaQuotes{client: client, feed: marketdata.Feed(cfg.DataFeed)}, nil
	case QuoteSourceYahoo:
		return newYahooQuotes(), nil
	default:
		return nil, fmt.Errorf("equity: alpaca 券商不支持行情来源 %q", cfg.QuoteSource)
	}
}
