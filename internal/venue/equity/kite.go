package equity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"genie-trader/internal/config"
	"genie-trader/internal/venue"
)

// Kite 委托 tag 最长 20 个字符。
const maxTagLen = 20

// kiteClient 是 Kite Connect 客户端中本通道用到的子集，便于测试替换。
type kiteClient interface {
	GetQuote(instruments ...string) (kiteconnect.Quote, error)
	PlaceOrder(variety string, orderParams kiteconnect.OrderParams) (kiteconnect.OrderResponse, error)
	GetUserMargins() (kiteconnect.AllMargins, error)
}

// kiteBroker 在 NSE/BSE 以卢比下单，代码须为交易所上市代码（如 INFY）。
type kiteBroker struct {
	client   kiteClient
	exchange string
	product  string
}

func newKiteBroker(client kiteClient, cfg config.EquityConfig) *kiteBroker {
	exchange := strings.ToUpper(strings.TrimSpace(cfg.Exchange))
	if exchange == "" {
		exchange = "NSE"
	}
	product := strings.ToUpper(strings.TrimSpace(cfg.Product))
	if product == "" {
		product = kiteconnect.ProductCNC
	}
	return &kiteBroker{client: client, exchange: exchange, product: product}
}

func (k *kiteBroker) name() string { return BrokerKite }

func (k *kiteBroker) submit(ctx context.Context, req venue.OrderRequest) (venue.OrderOutcome, error) {
	outcome := venue.OrderOutcome{Request: req}
	params := kiteconnect.OrderParams{
		Exchange:        k.exchange,
		Tradingsymbol:   req.Symbol,
		TransactionType: kiteconnect.TransactionTypeBuy,
		Product:         k.product,
		OrderType:       kiteconnect.OrderTypeMarket,
		Validity:        kiteconnect.ValidityDay,
		Quantity:        int(req.Quantity),
		Tag:             orderTag(req.ClientOrderID),
	}

	resp, err := k.client.PlaceOrder(kiteconnect.VarietyRegular, params)
	if err != nil {
		if transient(err) {
			return outcome, venue.Unreachable("place_order", err)
		}
		var kiteErr kiteconnect.Error
		if errors.As(err, &kiteErr) {
			outcome.FailureReason = strings.TrimSpace(kiteErr.Message)
			if outcome.FailureReason == "" {
				outcome.FailureReason = kiteErr.ErrorType
			}
			return outcome, venue.Rejected(outcome.FailureReason)
		}
		return outcome, fmt.Errorf("equity: 下单失败: %w", err)
	}

	outcome.Accepted = true
	outcome.VenueReference = resp.OrderID
	return outcome, nil
}

func (k *kiteBroker) capital(ctx context.Context) (decimal.Decimal, error) {
	margins, err := k.client.GetUserMargins()
	if err != nil {
		if transient(err) {
			return decimal.Zero, venue.Unreachable("user_margins", err)
		}
		return decimal.Zero, fmt.Errorf("equity: 查询资金失败: %w", err)
	}
	return decimal.NewFromFloat(margins.Equity.Net), nil
}

// orderTag 将客户端委托号裁剪为 Kite 允许的 tag。
func orderTag(clientOrderID string) string {
	tag := strings.ReplaceAll(clientOrderID, "-", "")
	if len(tag) > maxTagLen {
		tag = tag[:maxTagLen]
	}
	return tag
}

// kiteQuotes 使用 Kite Connect 的完整行情接口，价格为卢比。
type kiteQuotes struct {
	client   kiteClient
	exchange string
}

func (k *kiteQuotes) Quote(ctx context.Context, symbol string) (venue.Quote, error) {
	if err := ctx.Err(); err != nil {
		return venue.Quote{}, venue.Unreachable("kite_quote", err)
	}

	instrument := fmt.Sprintf("%s:%s", k.exchange, symbol)
	quotes, err := k.client.GetQuote(instrument)
	if err != nil {
		if transient(err) {
			return venue.Quote{}, venue.Unreachable("kite_quote", err)
		}
		return venue.Quote{}, venue.Unavailable(symbol, err)
	}

	item, ok := quotes[instrument]
	if !ok || item.LastPrice <= 0 {
		return venue.Quote{}, venue.Unavailable(symbol, nil)
	}

	return venue.Quote{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(item.LastPrice),
		Volume: decimal.NewFromInt(int64(item.Volume)),
	}, nil
}
