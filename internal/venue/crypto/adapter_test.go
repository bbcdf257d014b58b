package crypto

import (
	"context"
	"errors"
	"testing"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/shopspring/decimal"

	"genie-trader/internal/config"
	"genie-trader/internal/venue"
)

type mockMarketClient struct {
	tickers   map[string]ccxt.Ticker
	tickerErr error
	order     ccxt.Order
	orderErr  error
	balances  ccxt.Balances

	orders []mockOrder
}

type mockOrder struct {
	symbol string
	side   string
	amount float64
	opts   int
}

func (m *mockMarketClient) FetchTicker(symbol string, options ...ccxt.FetchTickerOptions) (ccxt.Ticker, error) {
	if m.tickerErr != nil {
		return ccxt.Ticker{}, m.tickerErr
	}
	t, ok := m.tickers[symbol]
	if !ok {
		return ccxt.Ticker{}, errors.New("binance does not have market symbol " + symbol)
	}
	return t, nil
}

func (m *mockMarketClient) CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error) {
	m.orders = append(m.orders, mockOrder{symbol: symbol, side: side, amount: amount, opts: len(options)})
	return m.order, m.orderErr
}

func (m *mockMarketClient) FetchBalance(params ...interface{}) (ccxt.Balances, error) {
	return m.balances, nil
}

func ptr[T any](v T) *T { return &v }

func testConfig() config.CryptoConfig {
	return config.CryptoConfig{
		Watchlist:   []string{"doge/usdt", "BTC/USDT"},
		Eligibility: config.EligibilityConfig{MinVolume: 100000},
		QuoteAsset:  "usdt",
	}
}

func TestQuote_UsesLastPriceAndQuoteVolume(t *testing.T) {
	client := &mockMarketClient{tickers: map[string]ccxt.Ticker{
		"DOGE/USDT": {Last: ptr(0.125), QuoteVolume: ptr(2500000.0), BaseVolume: ptr(20000000.0)},
	}}
	adapter := newAdapter(client, testConfig(), nil)

	if got := adapter.Universe(); len(got) != 2 || got[0] != "DOGE/USDT" {
		t.Fatalf("expected normalized watchlist, got %v", got)
	}

	q, err := adapter.Quote(context.Background(), "DOGE/USDT")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if !q.Price.Equal(decimal.RequireFromString("0.125")) {
		t.Errorf("unexpected price %s", q.Price)
	}
	if !q.Volume.Equal(decimal.NewFromInt(2500000)) {
		t.Errorf("unexpected volume %s", q.Volume)
	}
}

func TestQuote_MissingDataIsUnavailable(t *testing.T) {
	client := &mockMarketClient{tickers: map[string]ccxt.Ticker{
		"BTC/USDT": {QuoteVolume: ptr(1.0)},
	}}
	adapter := newAdapter(client, testConfig(), nil)

	if _, err := adapter.Quote(context.Background(), "BTC/USDT"); !errors.Is(err, venue.ErrQuoteUnavailable) {
		t.Fatalf("ticker without price should be unavailable, got %v", err)
	}
	if _, err := adapter.Quote(context.Background(), "PEPE/USDT"); !errors.Is(err, venue.ErrQuoteUnavailable) {
		t.Fatalf("unknown market should be unavailable, got %v", err)
	}
}

func TestQuote_NetworkErrorIsUnreachable(t *testing.T) {
	client := &mockMarketClient{tickerErr: &ccxt.Error{Type: ccxt.NetworkErrorErrType, Message: "connection reset"}}
	adapter := newAdapter(client, testConfig(), nil)

	if _, err := adapter.Quote(context.Background(), "DOGE/USDT"); !errors.Is(err, venue.ErrVenueUnreachable) {
		t.Fatalf("expected ErrVenueUnreachable, got %v", err)
	}
}

func TestSubmitOrder_Accepted(t *testing.T) {
	client := &mockMarketClient{order: ccxt.Order{Id: ptr("8842"), Status: ptr("closed")}}
	adapter := newAdapter(client, testConfig(), nil)

	req := venue.OrderRequest{Symbol: "DOGE/USDT", Quantity: 400, Side: venue.SideBuy, Venue: venue.KindCrypto, ClientOrderID: "genie-1"}
	outcome, err := adapter.SubmitOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if !outcome.Accepted || outcome.VenueReference != "8842" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(client.orders) != 1 {
		t.Fatalf("expected one order, got %d", len(client.orders))
	}
	sent := client.orders[0]
	if sent.side != "buy" || sent.amount != 400 || sent.opts != 1 {
		t.Errorf("unexpected order sent %+v", sent)
	}
}

func TestSubmitOrder_RejectedStatus(t *testing.T) {
	client := &mockMarketClient{order: ccxt.Order{Id: ptr("9"), Status: ptr("rejected")}}
	adapter := newAdapter(client, testConfig(), nil)

	outcome, err := adapter.SubmitOrder(context.Background(), venue.OrderRequest{Symbol: "BTC/USDT", Quantity: 1, Side: venue.SideBuy})
	if !errors.Is(err, venue.ErrOrderRejected) {
		t.Fatalf("expected ErrOrderRejected, got %v", err)
	}
	if outcome.Accepted || outcome.FailureReason == "" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestSubmitOrder_TimeoutIsUnreachable(t *testing.T) {
	client := &mockMarketClient{orderErr: &ccxt.Error{Type: ccxt.RequestTimeoutErrType, Message: "timed out"}}
	adapter := newAdapter(client, testConfig(), nil)

	_, err := adapter.SubmitOrder(context.Background(), venue.OrderRequest{Symbol: "BTC/USDT", Quantity: 1, Side: venue.SideBuy})
	if !errors.Is(err, venue.ErrVenueUnreachable) {
		t.Fatalf("expected ErrVenueUnreachable, got %v", err)
	}
}

func TestCapital_ReadsFreeQuoteBalance(t *testing.T) {
	client := &mockMarketClient{balances: ccxt.Balances{Free: map[string]*float64{"USDT": ptr(812.5)}}}
	adapter := newAdapter(client, testConfig(), nil)

	capital, err := adapter.Capital(context.Background())
	if err != nil {
		t.Fatalf("Capital returned error: %v", err)
	}
	if !capital.Equal(decimal.RequireFromString("812.5")) {
		t.Fatalf("unexpected capital %s", capital)
	}
}
