//go:build integration
// +build integration

package execution

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"genie-trader/internal/config"
	"genie-trader/internal/scan"
	"genie-trader/internal/venue"
	"genie-trader/internal/venue/crypto"
)

func TestDispatcherIntegration_BinanceSandboxRecommend(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("integration test panic: %v", r)
		}
	}()

	configPath := os.Getenv("GENIE_CONFIG")
	if configPath == "" {
		configPath = "../../configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if !cfg.Crypto.UseSandbox {
		t.Skip("crypto.use_sandbox=false，出于安全考虑跳过测试")
	}
	if len(cfg.Crypto.Watchlist) == 0 {
		t.Skip("配置缺少加密货币标的，跳过测试")
	}

	adapter, err := crypto.New(cfg.Crypto, zap.NewNop())
	if err != nil {
		t.Fatalf("初始化加密货币通道失败: %v", err)
	}
	guarded := venue.NewGuard(adapter, venue.GuardOptionsFromConfig(cfg.Venue), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// 仅推荐模式，不会提交任何委托
	d := NewDispatcher([]venue.Adapter{guarded}, scan.NewFetcher(cfg.Venue.ScanConcurrency, zap.NewNop()), nil, Options{ReportTop: 3}, zap.NewNop())
	report := d.Dispatch(ctx, Request{Venue: venue.KindCrypto, Mode: ModeRecommend})

	switch report.Outcome {
	case OutcomeRecommended, OutcomeNoCandidates:
	default:
		t.Fatalf("unexpected outcome %s: %s", report.Outcome, report.Reason)
	}
	if report.Submitted() {
		t.Fatalf("recommend mode must not submit")
	}
	t.Logf("report:\n%s", report.Text())
}
