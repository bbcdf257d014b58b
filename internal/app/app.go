package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"genie-trader/internal/ai"
	"genie-trader/internal/config"
	"genie-trader/internal/conversation"
	"genie-trader/internal/execution"
	"genie-trader/internal/monitor"
	"genie-trader/internal/scan"
	"genie-trader/internal/store"
	"genie-trader/internal/telegram"
	"genie-trader/internal/trace"
	"genie-trader/internal/venue"
	"genie-trader/internal/venue/crypto"
	"genie-trader/internal/venue/equity"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// trading 为交易链路上的组件集合。
type trading struct {
	monitor    *monitor.Service
	venues     map[venue.Kind]*venue.Guard
	dispatcher *execution.Dispatcher
}

func (a *App) buildTrading() (*trading, error) {
	mon, err := monitor.NewService(a.store, a.logger)
	if err != nil {
		return nil, err
	}

	venues, err := buildVenues(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	adapters := make([]venue.Adapter, 0, len(venues))
	for _, kind := range []venue.Kind{venue.KindEquity, venue.KindCrypto} {
		adapters = append(adapters, venues[kind])
	}

	fetcher := scan.NewFetcher(a.cfg.Venue.ScanConcurrency, a.logger)
	dispatcher := execution.NewDispatcher(adapters, fetcher, mon, execution.Options{
		ReportTop: a.cfg.Conversation.ReportTop,
	}, a.logger)

	return &trading{
		monitor:    mon,
		venues:     venues,
		dispatcher: dispatcher,
	}, nil
}

// buildVenues 创建两个交易通道，dry-run 时替换下单逻辑，最外层统一加保护。
func buildVenues(cfg *config.Config, logger *zap.Logger) (map[venue.Kind]*venue.Guard, error) {
	equityAdapter, err := equity.New(cfg.Equity, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化股票通道失败: %w", err)
	}
	cryptoAdapter, err := crypto.New(cfg.Crypto, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化加密货币通道失败: %w", err)
	}

	opts := venue.GuardOptionsFromConfig(cfg.Venue)
	venues := make(map[venue.Kind]*venue.Guard, 2)
	for _, adapter := range []venue.Adapter{equityAdapter, cryptoAdapter} {
		if cfg.App.DryRun {
			adapter = venue.NewSimulated(adapter, logger)
		}
		venues[adapter.Venue()] = venue.NewGuard(adapter, opts, logger)
	}
	return venues, nil
}

// Scan 对指定通道执行一次只推荐不下单的扫描。
func (a *App) Scan(ctx context.Context, kind venue.Kind) (execution.Report, error) {
	t, err := a.buildTrading()
	if err != nil {
		return execution.Report{}, err
	}
	return t.dispatcher.Dispatch(ctx, execution.Request{
		Venue: kind,
		Mode:  execution.ModeRecommend,
	}), nil
}

// Run 启动 Telegram 机器人与 HTTP 服务，阻塞直到 ctx 结束或任一组件失败。
func (a *App) Run(ctx context.Context) error {
	if err := trace.Init(a.cfg.Tracing); err != nil {
		return fmt.Errorf("初始化链路追踪失败: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("关闭链路追踪失败", zap.Error(err))
		}
	}()

	t, err := a.buildTrading()
	if err != nil {
		return err
	}

	capitalKind, err := venue.ParseKind(a.cfg.Account.CapitalVenue)
	if err != nil {
		return err
	}
	if !hasCredentials(a.cfg, capitalKind) {
		a.logger.Warn("资金通道未配置 API Key，资金查询将失败", zap.String("capital_venue", string(capitalKind)))
	}

	lang, err := ai.NewClient(a.cfg.OpenAI, a.logger)
	if err != nil {
		return fmt.Errorf("初始化语言服务失败: %w", err)
	}

	machine := conversation.NewMachine(conversation.NewVocabulary(a.cfg.Conversation), a.logger)
	engine := NewEngine(lang, t.venues[capitalKind], machine, t.dispatcher, t.monitor, a.logger)

	bot, err := telegram.NewBot(a.cfg.Telegram, timedHandler{next: engine, timeout: a.cfg.Server.HandleTimeout}, a.logger)
	if err != nil {
		return err
	}

	var updates updateAcceptor
	if bot.Webhook() {
		updates = bot
	}
	server := NewServer(a.cfg.Server, t.monitor, updates, a.logger)

	a.logger.Info("Genie 已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.Bool("dry_run", a.cfg.App.DryRun),
		zap.String("capital_venue", string(capitalKind)),
		zap.Bool("webhook", bot.Webhook()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}
	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}

func hasCredentials(cfg *config.Config, kind venue.Kind) bool {
	if kind == venue.KindCrypto {
		return cfg.Crypto.APIKey != ""
	}
	return cfg.Equity.APIKey != ""
}

// timedHandler 为单条消息的处理设置总时限。
type timedHandler struct {
	next    telegram.Handler
	timeout time.Duration
}

func (h timedHandler) HandleMessage(ctx context.Context, text string) string {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	return h.next.HandleMessage(ctx, text)
}
