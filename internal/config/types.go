package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Equity       EquityConfig       `mapstructure:"equity"`
	Crypto       CryptoConfig       `mapstructure:"crypto"`
	Venue        VenueConfig        `mapstructure:"venue"`
	Account      AccountConfig      `mapstructure:"account"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Server       ServerConfig       `mapstructure:"server"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
	// DryRun 为 true 时所有下单请求只记录、不提交到交易所。
	DryRun bool `mapstructure:"dry_run"`
}

// TelegramConfig 描述消息通道。
type TelegramConfig struct {
	BotToken       string `mapstructure:"bot_token"`
	WebhookURL     string `mapstructure:"webhook_url"`
	PollingTimeout int    `mapstructure:"polling_timeout"`
	Debug          bool   `mapstructure:"debug"`
}

// OpenAIConfig 描述大模型调用参数。
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EligibilityConfig 描述标的入选阈值，均为开区间，零值表示不设限。
type EligibilityConfig struct {
	MinPrice  float64 `mapstructure:"min_price"`
	MaxPrice  float64 `mapstructure:"max_price"`
	MinVolume float64 `mapstructure:"min_volume"`
}

// EquityConfig 描述股票交易通道。
//
// Broker 为 alpaca 时标的为美股代码、资金与价格均为美元，行情取自 alpaca 或 yahoo；
// 为 kite 时标的为 NSE/BSE 上市代码、资金与价格均为卢比，行情只能取自 kite。
type EquityConfig struct {
	Watchlist   []string          `mapstructure:"watchlist"`
	Eligibility EligibilityConfig `mapstructure:"eligibility"`
	Broker      string            `mapstructure:"broker"`
	// QuoteSource 取值 alpaca、yahoo 或 kite。
	QuoteSource string `mapstructure:"quote_source"`
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	// BaseURL 为 Alpaca 交易接口地址，默认使用模拟盘。
	BaseURL  string `mapstructure:"base_url"`
	DataFeed string `mapstructure:"data_feed"`
	// AccessToken、Exchange、Product 仅用于 kite。
	AccessToken string `mapstructure:"access_token"`
	Exchange    string `mapstructure:"exchange"`
	Product     string `mapstructure:"product"`
}

// CryptoConfig 描述加密货币交易通道。
type CryptoConfig struct {
	Watchlist   []string          `mapstructure:"watchlist"`
	Eligibility EligibilityConfig `mapstructure:"eligibility"`
	APIKey      string            `mapstructure:"api_key"`
	APISecret   string            `mapstructure:"api_secret"`
	UseSandbox  bool              `mapstructure:"use_sandbox"`
	QuoteAsset  string            `mapstructure:"quote_asset"`
}

// VenueConfig 统一控制交易所调用的超时、限速与熔断。
type VenueConfig struct {
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
	ScanConcurrency int           `mapstructure:"scan_concurrency"`
}

// AccountConfig 指定由哪个通道提供可用资金。
type AccountConfig struct {
	CapitalVenue string `mapstructure:"capital_venue"`
}

// ConversationConfig 定义意图词表。
type ConversationConfig struct {
	AutoTradeWords []string `mapstructure:"auto_trade_words"`
	AdvisoryWords  []string `mapstructure:"advisory_words"`
	CryptoWords    []string `mapstructure:"crypto_words"`
	ReportTop      int      `mapstructure:"report_top"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ServerConfig 控制 HTTP 服务（webhook、监控、指标）。
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	HandleTimeout   time.Duration `mapstructure:"handle_timeout"`
}

// TracingConfig 控制链路追踪。
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Telegram.PollingTimeout < 0 {
		err = multierr.Append(err, errors.New("telegram.polling_timeout 不能为负"))
	}
	if c.OpenAI.Model == "" {
		err = multierr.Append(err, errors.New("openai.model 不能为空"))
	}
	if c.OpenAI.Timeout <= 0 {
		err = multierr.Append(err, errors.New("openai.timeout 必须大于0"))
	}
	err = multierr.Append(err, validateWatchlist("equity", c.Equity.Watchlist, c.Equity.Eligibility))
	err = multierr.Append(err, validateWatchlist("crypto", c.Crypto.Watchlist, c.Crypto.Eligibility))
	err = multierr.Append(err, validateEquityBroker(c.Equity))
	if c.Crypto.QuoteAsset == "" {
		err = multierr.Append(err, errors.New("crypto.quote_asset 不能为空"))
	}
	if c.Venue.CallTimeout <= 0 {
		err = multierr.Append(err, errors.New("venue.call_timeout 必须大于0"))
	}
	if c.Venue.RateLimit < 0 {
		err = multierr.Append(err, errors.New("venue.rate_limit 不能为负"))
	}
	if c.Venue.RateLimit > 0 && c.Venue.RateBurst <= 0 {
		err = multierr.Append(err, errors.New("venue.rate_burst 必须大于0"))
	}
	if c.Venue.BreakerFailures == 0 {
		err = multierr.Append(err, errors.New("venue.breaker_failures 必须大于0"))
	}
	if c.Venue.BreakerTimeout <= 0 {
		err = multierr.Append(err, errors.New("venue.breaker_timeout 必须大于0"))
	}
	if c.Venue.ScanConcurrency <= 0 {
		err = multierr.Append(err, errors.New("venue.scan_concurrency 必须大于0"))
	}
	switch strings.ToLower(c.Account.CapitalVenue) {
	case "equity", "crypto":
	default:
		err = multierr.Append(err, fmt.Errorf("account.capital_venue 取值非法: %q", c.Account.CapitalVenue))
	}
	if len(c.Conversation.AutoTradeWords) == 0 {
		err = multierr.Append(err, errors.New("conversation.auto_trade_words 至少包含一个词"))
	}
	if len(c.Conversation.AdvisoryWords) == 0 {
		err = multierr.Append(err, errors.New("conversation.advisory_words 至少包含一个词"))
	}
	if c.Conversation.ReportTop <= 0 {
		err = multierr.Append(err, errors.New("conversation.report_top 必须大于0"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Server.Addr == "" {
		err = multierr.Append(err, errors.New("server.addr 不能为空"))
	}
	if c.Server.HandleTimeout <= 0 {
		err = multierr.Append(err, errors.New("server.handle_timeout 必须大于0"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

// validateEquityBroker 确保行情来源与券商的计价币种一致。
func validateEquityBroker(cfg EquityConfig) error {
	source := strings.ToLower(cfg.QuoteSource)
	switch strings.ToLower(cfg.Broker) {
	case "alpaca":
		if source != "alpaca" && source != "yahoo" {
			return fmt.Errorf("equity.quote_source 取值非法: alpaca 券商只支持 alpaca 或 yahoo，当前为 %q", cfg.QuoteSource)
		}
	case "kite":
		var err error
		if source != "kite" {
			err = multierr.Append(err, fmt.Errorf("equity.quote_source 取值非法: kite 券商只支持 kite，当前为 %q", cfg.QuoteSource))
		}
		if cfg.Exchange == "" {
			err = multierr.Append(err, errors.New("equity.exchange 不能为空"))
		}
		return err
	default:
		return fmt.Errorf("equity.broker 取值非法: %q", cfg.Broker)
	}
	return nil
}

func validateWatchlist(prefix string, watchlist []string, rule EligibilityConfig) error {
	var err error
	if len(watchlist) == 0 {
		err = multierr.Append(err, fmt.Errorf("%s.watchlist 至少包含一个标的", prefix))
	}
	for _, symbol := range watchlist {
		if strings.TrimSpace(symbol) == "" {
			err = multierr.Append(err, fmt.Errorf("%s.watchlist 包含空标的", prefix))
			break
		}
	}
	if rule.MinPrice < 0 || rule.MaxPrice < 0 || rule.MinVolume < 0 {
		err = multierr.Append(err, fmt.Errorf("%s.eligibility 阈值不能为负", prefix))
	}
	if rule.MaxPrice > 0 && rule.MaxPrice <= rule.MinPrice {
		err = multierr.Append(err, fmt.Errorf("%s.eligibility.max_price 必须大于 min_price", prefix))
	}
	return err
}
