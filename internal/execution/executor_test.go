package execution

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"genie-trader/internal/config"
	"genie-trader/internal/monitor"
	"genie-trader/internal/scan"
	"genie-trader/internal/venue"
	"genie-trader/internal/venue/venuetest"
)

type mockRecorder struct {
	mu         sync.Mutex
	scans      []scan.Result
	dispatches []monitor.DispatchPayload
}

func (m *mockRecorder) RecordScan(ctx context.Context, result scan.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, result)
}

func (m *mockRecorder) RecordDispatch(ctx context.Context, payload monitor.DispatchPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches = append(m.dispatches, payload)
}

func budget(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func equityAdapter() *venuetest.Adapter {
	return &venuetest.Adapter{
		Kind:    venue.KindEquity,
		Symbols: []string{"TSLA", "AMD", "NVDA", "AAPL"},
		Rule:    venue.EligibilityFromConfig(config.EligibilityConfig{MinPrice: 1, MaxPrice: 100, MinVolume: 150000}),
		Quotes: map[string]venue.Quote{
			"TSLA": venuetest.Q("TSLA", 250, 9000000),
			"AMD":  venuetest.Q("AMD", 20, 400000),
			"NVDA": venuetest.Q("NVDA", 45.5, 300000),
			"AAPL": venuetest.Q("AAPL", 99.99, 200000),
		},
	}
}

func newDispatcher(t *testing.T, recorder Recorder, adapters ...venue.Adapter) *Dispatcher {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewDispatcher(adapters, scan.NewFetcher(2, logger), recorder, Options{ReportTop: 3}, logger)
}

func TestDispatch_ExecuteSubmitsTopCandidate(t *testing.T) {
	fake := equityAdapter()
	recorder := &mockRecorder{}
	d := newDispatcher(t, recorder, fake)

	report := d.Dispatch(context.Background(), Request{Venue: venue.KindEquity, Mode: ModeExecute, RiskBudget: budget("100")})
	if report.Outcome != OutcomeExecuted {
		t.Fatalf("expected executed, got %s (%s)", report.Outcome, report.Reason)
	}
	if report.Pick.Symbol != "AMD" || report.Quantity != 5 {
		t.Fatalf("unexpected pick %s x%d", report.Pick.Symbol, report.Quantity)
	}

	orders := fake.Orders()
	if len(orders) != 1 {
		t.Fatalf("expected one order, got %d", len(orders))
	}
	if orders[0].Side != venue.SideBuy || orders[0].Quantity != 5 || !strings.HasPrefix(orders[0].ClientOrderID, "genie-") {
		t.Errorf("unexpected order %+v", orders[0])
	}

	want := "🦞 Genie Scan Results:\n" +
		"AMD: $20.00 | Vol: 400000\n" +
		"NVDA: $45.50 | Vol: 300000\n" +
		"AAPL: $99.99 | Vol: 200000\n" +
		"🚀 Executed trade for AMD with 5 shares"
	if got := report.Text(); got != want {
		t.Fatalf("unexpected report text:\n%s\nwant:\n%s", got, want)
	}

	if len(recorder.scans) != 1 || len(recorder.dispatches) != 1 {
		t.Fatalf("expected scan and dispatch to be recorded, got %d/%d", len(recorder.scans), len(recorder.dispatches))
	}
	if recorder.dispatches[0].Reference != "FAKE-1" {
		t.Errorf("expected venue reference to be recorded, got %+v", recorder.dispatches[0])
	}
}

func TestDispatch_BlockedWhenRiskBelowPrice(t *testing.T) {
	fake := &venuetest.Adapter{
		Kind:    venue.KindCrypto,
		Symbols: []string{"SOL/USDT"},
		Quotes:  map[string]venue.Quote{"SOL/USDT": venuetest.Q("SOL/USDT", 100, 500000)},
	}
	d := newDispatcher(t, nil, fake)

	report := d.Dispatch(context.Background(), Request{Venue: venue.KindCrypto, Mode: ModeExecute, RiskBudget: budget("5")})
	if report.Outcome != OutcomeBlocked {
		t.Fatalf("expected blocked, got %s", report.Outcome)
	}
	if report.Submitted() || len(fake.Orders()) != 0 {
		t.Fatalf("blocked dispatch must not submit")
	}
	if !strings.HasSuffix(report.Text(), "⚠️ Risk too low to trade") {
		t.Fatalf("unexpected text %q", report.Text())
	}
}

func TestDispatch_UnsetRiskIsBlocked(t *testing.T) {
	fake := equityAdapter()
	d := newDispatcher(t, nil, fake)

	report := d.Dispatch(context.Background(), Request{Venue: venue.KindEquity, Mode: ModeExecute})
	if report.Outcome != OutcomeBlocked || len(fake.Orders()) != 0 {
		t.Fatalf("expected blocked without orders, got %s", report.Outcome)
	}
}

func TestDispatch_RecommendNeverSubmits(t *testing.T) {
	fake := equityAdapter()
	d := newDispatcher(t, nil, fake)

	report := d.Dispatch(context.Background(), Request{Venue: venue.KindEquity, Mode: ModeRecommend, RiskBudget: budget("1000")})
	if report.Outcome != OutcomeRecommended {
		t.Fatalf("expected recommended, got %s", report.Outcome)
	}
	if len(fake.Orders()) != 0 {
		t.Fatalf("recommend mode must not submit orders")
	}
	if !strings.HasSuffix(report.Text(), "🔍 Recommendation only: AMD looks best") {
		t.Fatalf("unexpected text %q", report.Text())
	}
}

func TestDispatch_AllQuotesFailReportsNoCandidates(t *testing.T) {
	fake := &venuetest.Adapter{
		Kind:    venue.KindEquity,
		Symbols: []string{"TSLA", "AMD"},
		QuoteFunc: func(ctx context.Context, symbol string) (venue.Quote, error) {
			return venue.Quote{}, venue.Unreachable("quote", errors.New("dial tcp: i/o timeout"))
		},
	}
	d := newDispatcher(t, nil, fake)

	report := d.Dispatch(context.Background(), Request{Venue: venue.KindEquity, Mode: ModeExecute, RiskBudget: budget("1000")})
	if report.Outcome != OutcomeNoCandidates {
		t.Fatalf("expected no candidates, got %s", report.Outcome)
	}
	if len(fake.Orders()) != 0 {
		t.Fatalf("no order may be attempted without candidates")
	}
	if got := report.Text(); got != "🦞 Genie Scan Results:\n🤖 No high-probability picks today." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestDispatch_SubmitTimeoutYieldsSingleFailureLine(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	fake := equityAdapter()
	fake.SubmitFunc = func(ctx context.Context, req venue.OrderRequest) (venue.OrderOutcome, error) {
		<-release
		return venue.OrderOutcome{Request: req, Accepted: true}, nil
	}
	guard := venue.NewGuard(fake, venue.GuardOptions{CallTimeout: 30 * time.Millisecond}, nil)
	d := newDispatcher(t, nil, guard)

	report := d.Dispatch(context.Background(), Request{Venue: venue.KindEquity, Mode: ModeExecute, RiskBudget: budget("100")})
	if report.Outcome != OutcomeOrderFailed {
		t.Fatalf("expected order failure, got %s", report.Outcome)
	}

	text := report.Text()
	if n := strings.Count(text, "❌"); n != 1 {
		t.Fatalf("expected exactly one failure line, got %d in %q", n, text)
	}
	if !strings.Contains(text, "❌ Order failed for AMD (5 shares): venue unreachable") {
		t.Fatalf("unexpected failure line in %q", text)
	}
}

func TestDispatch_RejectionReasonIsReported(t *testing.T) {
	fake := equityAdapter()
	fake.SubmitFunc = func(ctx context.Context, req venue.OrderRequest) (venue.OrderOutcome, error) {
		return venue.OrderOutcome{Request: req, FailureReason: "Insufficient funds"}, venue.Rejected("Insufficient funds")
	}
	d := newDispatcher(t, nil, fake)

	report := d.Dispatch(context.Background(), Request{Venue: venue.KindEquity, Mode: ModeExecute, RiskBudget: budget("100")})
	if report.Outcome != OutcomeOrderFailed || report.Reason != "Insufficient funds" {
		t.Fatalf("unexpected report %s / %q", report.Outcome, report.Reason)
	}
}

func TestDispatch_AdapterPanicIsRecovered(t *testing.T) {
	fake := equityAdapter()
	fake.SubmitFunc = func(ctx context.Context, req venue.OrderRequest) (venue.OrderOutcome, error) {
		panic("nil map")
	}
	d := newDispatcher(t, nil, fake)

	report := d.Dispatch(context.Background(), Request{Venue: venue.KindEquity, Mode: ModeExecute, RiskBudget: budget("100")})
	if report.Outcome != OutcomeOrderFailed {
		t.Fatalf("expected order failure, got %s", report.Outcome)
	}
	if !strings.Contains(report.Reason, "panic") {
		t.Fatalf("expected panic reason, got %q", report.Reason)
	}
}

func TestDispatch_UnknownVenue(t *testing.T) {
	d := newDispatcher(t, nil, equityAdapter())

	report := d.Dispatch(context.Background(), Request{Venue: venue.KindCrypto, Mode: ModeRecommend})
	if report.Outcome != OutcomeScanFailed {
		t.Fatalf("expected scan failure, got %s", report.Outcome)
	}
	if got := report.Text(); got != "❌ Scanner error: venue crypto is not configured" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestReport_CryptoUnitsAndSmallPrices(t *testing.T) {
	report := Report{
		Venue:    venue.KindCrypto,
		Outcome:  OutcomeExecuted,
		Top:      []venue.Candidate{{Symbol: "DOGE/USDT", Price: decimal.RequireFromString("0.12345"), Volume: decimal.NewFromInt(2500000)}},
		Pick:     venue.Candidate{Symbol: "DOGE/USDT"},
		Quantity: 400,
	}
	want := "🦞 Genie Scan Results:\nDOGE/USDT: $0.12345 | Vol: 2500000\n🚀 Executed trade for DOGE/USDT with 400 units"
	if got := report.Text(); got != want {
		t.Fatalf("unexpected text %q", got)
	}
}
