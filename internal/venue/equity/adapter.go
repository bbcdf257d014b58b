package equity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"go.uber.org/zap"

	"genie-trader/internal/config"
	"genie-trader/internal/venue"
)

// 券商后端
const (
	BrokerAlpaca = "alpaca"
	BrokerKite   = "kite"
)

// broker 负责委托提交与资金查询，错误已归类为 venue 错误。
type broker interface {
	name() string
	submit(ctx context.Context, req venue.OrderRequest) (venue.OrderOutcome, error)
	capital(ctx context.Context) (decimal.Decimal, error)
}

// Adapter 通过可配置的券商下单与查询资金，行情来自可配置的来源。
type Adapter struct {
	broker    broker
	quotes    quoteSource
	watchlist []string
	rule      venue.Eligibility
	logger    *zap.Logger
}

var (
	_ venue.Adapter         = (*Adapter)(nil)
	_ venue.CapitalReporter = (*Adapter)(nil)
)

// New 根据配置创建股票通道。Alpaca 以美元计价，Kite 以卢比计价，行情来源须与券商一致。
func New(cfg config.EquityConfig, logger *zap.Logger) (*Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Broker)) {
	case "", BrokerAlpaca:
		trading := alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		})
		quotes, err := newAlpacaQuoteSource(cfg)
		if err != nil {
			return nil, err
		}
		return newAdapter(&alpacaBroker{client: trading}, quotes, cfg, logger), nil

	case BrokerKite:
		kc := kiteconnect.New(cfg.APIKey)
		if cfg.AccessToken != "" {
			kc.SetAccessToken(cfg.AccessToken)
		}
		source := strings.ToLower(strings.TrimSpace(cfg.QuoteSource))
		if source != "" && source != QuoteSourceKite {
			return nil, fmt.Errorf("equity: kite 券商只支持 kite 行情，当前为 %q", cfg.QuoteSource)
		}
		kb := newKiteBroker(kc, cfg)
		return newAdapter(kb, &kiteQuotes{client: kc, exchange: kb.exchange}, cfg, logger), nil

	default:
		return nil, fmt.Errorf("equity: 未知券商 %q", cfg.Broker)
	}
}

func newAdapter(b broker, quotes quoteSource, cfg config.EquityConfig, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	watchlist := make([]string, 0, len(cfg.Watchlist))
	for _, symbol := range cfg.Watchlist {
		watchlist = append(watchlist, strings.ToUpper(strings.TrimSpace(symbol)))
	}
	return &Adapter{
		broker:    b,
		quotes:    quotes,
		watchlist: watchlist,
		rule:      venue.EligibilityFromConfig(cfg.Eligibility),
		logger:    logger.With(zap.String("venue", string(venue.KindEquity)), zap.String("broker", b.name())),
	}
}

// Venue 返回通道类型。
func (a *Adapter) Venue() venue.Kind {
	return venue.KindEquity
}

// Universe 返回配置的股票代码列表。
func (a *Adapter) Universe() []string {
	out := make([]string, len(a.watchlist))
	copy(out, a.watchlist)
	return out
}

// Eligibility 返回入选规则。
func (a *Adapter) Eligibility() venue.Eligibility {
	return a.rule
}

// Quote 获取最新价与当日成交量。
func (a *Adapter) Quote(ctx context.Context, symbol string) (venue.Quote, error) {
	return a.quotes.Quote(ctx, symbol)
}

// SubmitOrder 以市价提交买单。
func (a *Adapter) SubmitOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderOutcome, error) {
	outcome := venue.OrderOutcome{Request: req}
	if req.Quantity <= 0 {
		outcome.FailureReason = "quantity must be positive"
		return outcome, venue.Rejected(outcome.FailureReason)
	}
	if err := ctx.Err(); err != nil {
		return outcome, venue.Unreachable("place_order", err)
	}

	outcome, err := a.broker.submit(ctx, req)
	if err != nil {
		return outcome, err
	}

	a.logger.Info("股票委托已提交",
		zap.String("symbol", req.Symbol),
		zap.Int64("quantity", req.Quantity),
		zap.String("order_id", outcome.VenueReference),
	)
	return outcome, nil
}

// Capital 返回账户可用资金，币种与券商一致。
func (a *Adapter) Capital(ctx context.Context) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, venue.Unreachable("capital", err)
	}
	return a.broker.capital(ctx)
}

// transient 判断错误是否属于网络层面的不可达。
func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var kiteErr kiteconnect.Error
	if errors.As(err, &kiteErr) {
		return kiteErr.ErrorType == kiteconnect.NetworkError || kiteErr.Code >= 500
	}

	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
