package crypto

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"genie-trader/internal/config"
	"genie-trader/internal/venue"
)

// marketClient 是 ccxt 交易所客户端中本通道用到的子集，便于测试替换。
type marketClient interface {
	FetchTicker(symbol string, options ...ccxt.FetchTickerOptions) (ccxt.Ticker, error)
	CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error)
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
}

// Adapter 通过 ccxt 对接 Binance 现货。
type Adapter struct {
	client     marketClient
	watchlist  []string
	rule       venue.Eligibility
	quoteAsset string
	logger     *zap.Logger
}

var (
	_ venue.Adapter         = (*Adapter)(nil)
	_ venue.CapitalReporter = (*Adapter)(nil)
)

// New 根据配置创建 Binance 现货通道。
func New(cfg config.CryptoConfig, logger *zap.Logger) (*Adapter, error) {
	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "spot",
		},
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewBinance(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return newAdapter(ex, cfg, logger), nil
}

func newAdapter(client marketClient, cfg config.CryptoConfig, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	quoteAsset := strings.ToUpper(strings.TrimSpace(cfg.QuoteAsset))
	if quoteAsset == "" {
		quoteAsset = "USDT"
	}
	watchlist := make([]string, 0, len(cfg.Watchlist))
	for _, symbol := range cfg.Watchlist {
		watchlist = append(watchlist, strings.ToUpper(strings.TrimSpace(symbol)))
	}
	return &Adapter{
		client:     client,
		watchlist:  watchlist,
		rule:       venue.EligibilityFromConfig(cfg.Eligibility),
		quoteAsset: quoteAsset,
		logger:     logger.With(zap.String("venue", string(venue.KindCrypto))),
	}
}

// Venue 返回通道类型。
func (a *Adapter) Venue() venue.Kind {
	return venue.KindCrypto
}

// Universe 返回配置的交易对列表。
func (a *Adapter) Universe() []string {
	out := make([]string, len(a.watchlist))
	copy(out, a.watchlist)
	return out
}

// Eligibility 返回入选规则。
func (a *Adapter) Eligibility() venue.Eligibility {
	return a.rule
}

// Quote 以 24h ticker 的最新价与成交额作为行情。
func (a *Adapter) Quote(ctx context.Context, symbol string) (venue.Quote, error) {
	if err := ctx.Err(); err != nil {
		return venue.Quote{}, venue.Unreachable("fetch_ticker", err)
	}

	ticker, err := a.client.FetchTicker(symbol)
	if err != nil {
		if transient(err) {
			return venue.Quote{}, venue.Unreachable("fetch_ticker", err)
		}
		return venue.Quote{}, venue.Unavailable(symbol, err)
	}

	price := firstPositive(ticker.Last, ticker.Close)
	if price <= 0 {
		return venue.Quote{}, venue.Unavailable(symbol, errors.New("ticker 缺少最新价"))
	}
	volume := firstPositive(ticker.QuoteVolume, ticker.BaseVolume)

	return venue.Quote{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(price),
		Volume: decimal.NewFromFloat(volume),
	}, nil
}

// SubmitOrder 提交市价买单。
func (a *Adapter) SubmitOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderOutcome, error) {
	outcome := venue.OrderOutcome{Request: req}
	if req.Quantity <= 0 {
		outcome.FailureReason = "quantity must be positive"
		return outcome, venue.Rejected(outcome.FailureReason)
	}
	if err := ctx.Err(); err != nil {
		return outcome, venue.Unreachable("create_order", err)
	}

	var opts []ccxt.CreateMarketOrderOptions
	if req.ClientOrderID != "" {
		opts = append(opts, ccxt.WithCreateMarketOrderParams(map[string]interface{}{
			"clientOrderId": req.ClientOrderID,
		}))
	}

	order, err := a.client.CreateMarketOrder(req.Symbol, string(req.Side), float64(req.Quantity), opts...)
	if err != nil {
		if transient(err) {
			return outcome, venue.Unreachable("create_order", err)
		}
		var ccxtErr *ccxt.Error
		if errors.As(err, &ccxtErr) {
			outcome.FailureReason = strings.TrimSpace(ccxtErr.Message)
			if outcome.FailureReason == "" {
				outcome.FailureReason = fmt.Sprintf("%v", ccxtErr.Type)
			}
			return outcome, venue.Rejected(outcome.FailureReason)
		}
		return outcome, fmt.Errorf("crypto: 下单失败: %w", err)
	}

	status := strings.ToLower(deref(order.Status))
	if status == "rejected" || status == "canceled" || status == "expired" {
		outcome.FailureReason = "order " + status
		outcome.VenueReference = deref(order.Id)
		return outcome, venue.Rejected(outcome.FailureReason)
	}

	outcome.Accepted = true
	outcome.VenueReference = deref(order.Id)
	a.logger.Info("加密货币委托已提交",
		zap.String("symbol", req.Symbol),
		zap.Int64("quantity", req.Quantity),
		zap.String("order_id", outcome.VenueReference),
	)
	return outcome, nil
}

// Capital 返回计价资产的可用余额。
func (a *Adapter) Capital(ctx context.Context) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, venue.Unreachable("fetch_balance", err)
	}

	balances, err := a.client.FetchBalance()
	if err != nil {
		if transient(err) {
			return decimal.Zero, venue.Unreachable("fetch_balance", err)
		}
		return decimal.Zero, fmt.Errorf("crypto: 查询余额失败: %w", err)
	}

	if balances.Free != nil {
		if free, ok := balances.Free[a.quoteAsset]; ok && free != nil {
			return decimal.NewFromFloat(*free), nil
		}
	}
	return decimal.Zero, nil
}

// transient 判断错误是否属于网络或交易所不可用，与重试无关。
func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType,
			ccxt.OnMaintenanceErrType:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func firstPositive(values ...*float64) float64 {
	for _, v := range values {
		if v != nil && *v > 0 {
			return *v
		}
	}
	return 0
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
