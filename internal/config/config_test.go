package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got := cfg.Equity.Watchlist; len(got) != 4 || got[0] != "TSLA" {
		t.Errorf("unexpected equity watchlist %v", got)
	}
	if cfg.Equity.Eligibility.MaxPrice != 100 || cfg.Equity.Eligibility.MinVolume != 150000 {
		t.Errorf("unexpected equity eligibility %+v", cfg.Equity.Eligibility)
	}
	if cfg.Crypto.Eligibility.MinVolume != 100000 || cfg.Crypto.QuoteAsset != "USDT" {
		t.Errorf("unexpected crypto config %+v", cfg.Crypto)
	}
	if cfg.Equity.Broker != "alpaca" || cfg.Equity.QuoteSource != "alpaca" || cfg.Equity.BaseURL != "https://paper-api.alpaca.markets" {
		t.Errorf("unexpected equity broker defaults %+v", cfg.Equity)
	}
	if cfg.Venue.CallTimeout != 10*time.Second || cfg.OpenAI.Timeout != 30*time.Second {
		t.Errorf("unexpected timeouts venue=%s openai=%s", cfg.Venue.CallTimeout, cfg.OpenAI.Timeout)
	}
	if cfg.Conversation.ReportTop != 3 || len(cfg.Conversation.AdvisoryWords) != 1 {
		t.Errorf("unexpected conversation config %+v", cfg.Conversation)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
app:
  environment: production
equity:
  watchlist: [INFY, TCS]
  broker: kite
  quote_source: kite
venue:
  call_timeout: 3s
`)
	t.Setenv("GENIE_VENUE_SCAN_CONCURRENCY", "8")
	t.Setenv("GENIE_CRYPTO_WATCHLIST", "BTC/USDT,ETH/USDT")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Environment != "production" || cfg.Equity.Broker != "kite" || cfg.Equity.QuoteSource != "kite" {
		t.Errorf("file values not applied: %+v %+v", cfg.App, cfg.Equity)
	}
	if got := cfg.Equity.Watchlist; len(got) != 2 || got[1] != "TCS" {
		t.Errorf("unexpected equity watchlist %v", got)
	}
	if cfg.Venue.CallTimeout != 3*time.Second {
		t.Errorf("unexpected call timeout %s", cfg.Venue.CallTimeout)
	}
	if cfg.Venue.ScanConcurrency != 8 {
		t.Errorf("env override not applied, got %d", cfg.Venue.ScanConcurrency)
	}
	if got := cfg.Crypto.Watchlist; len(got) != 2 || got[0] != "BTC/USDT" {
		t.Errorf("unexpected crypto watchlist %v", got)
	}
}

func TestLoad_LegacySecretNames(t *testing.T) {
	t.Setenv("GENIE_TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GENIE_CRYPTO_API_SECRET", "")
	t.Setenv("BINANCE_SECRET_KEY", "s3cret")
	t.Setenv("GENIE_EQUITY_API_SECRET", "")
	t.Setenv("ALPACA_SECRET_KEY", "alpaca-s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telegram.BotToken != "123:abc" || cfg.Crypto.APISecret != "s3cret" {
		t.Errorf("legacy env names not honoured: token=%q secret=%q", cfg.Telegram.BotToken, cfg.Crypto.APISecret)
	}
	if cfg.Equity.APISecret != "alpaca-s3cret" {
		t.Errorf("ALPACA_SECRET_KEY not honoured, got %q", cfg.Equity.APISecret)
	}
}

func TestLoad_ValidationAggregatesErrors(t *testing.T) {
	path := writeConfig(t, `
equity:
  quote_source: bloomberg
venue:
  scan_concurrency: 0
account:
  capital_venue: forex
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"equity.quote_source", "venue.scan_concurrency", "account.capital_venue"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got %v", want, err)
		}
	}
}

func TestValidate_EquityBrokerCurrencyConsistency(t *testing.T) {
	cases := []struct {
		name    string
		cfg     EquityConfig
		wantErr string
	}{
		{"alpaca with alpaca quotes", EquityConfig{Broker: "alpaca", QuoteSource: "alpaca"}, ""},
		{"alpaca with yahoo quotes", EquityConfig{Broker: "alpaca", QuoteSource: "yahoo"}, ""},
		{"kite with kite quotes", EquityConfig{Broker: "kite", QuoteSource: "kite", Exchange: "NSE"}, ""},
		{"alpaca with rupee quotes", EquityConfig{Broker: "alpaca", QuoteSource: "kite"}, "equity.quote_source"},
		{"kite with dollar quotes", EquityConfig{Broker: "kite", QuoteSource: "yahoo", Exchange: "NSE"}, "equity.quote_source"},
		{"kite without exchange", EquityConfig{Broker: "kite", QuoteSource: "kite"}, "equity.exchange"},
		{"unknown broker", EquityConfig{Broker: "robinhood", QuoteSource: "yahoo"}, "equity.broker"},
	}
	for _, tc := range cases {
		err := validateEquityBroker(tc.cfg)
		switch {
		case tc.wantErr == "" && err != nil:
			t.Errorf("%s: unexpected error %v", tc.name, err)
		case tc.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tc.wantErr)):
			t.Errorf("%s: expected %q in error, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestValidate_EligibilityBounds(t *testing.T) {
	err := validateWatchlist("equity", []string{"AMD", " "}, EligibilityConfig{MinPrice: 10, MaxPrice: 5})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "空标的") || !strings.Contains(err.Error(), "max_price") {
		t.Errorf("unexpected error %v", err)
	}
}
