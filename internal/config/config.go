package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvFile    = ".env"
	envPrefix         = "genie"
)

// Load 读取配置文件并结合环境变量返回 Config。
// 若工作目录存在 .env 文件，会先加载到进程环境变量中（不覆盖已存在的变量）。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("加载 %s 失败: %w", defaultEnvFile, err)
	}

	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)
	bindSecrets(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件缺失时完全依赖默认值与环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.dry_run", false)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.polling_timeout", 60)
	v.SetDefault("telegram.debug", false)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.timeout", "30s")

	v.SetDefault("equity.watchlist", []string{"TSLA", "AMD", "NVDA", "AAPL"})
	v.SetDefault("equity.eligibility.min_price", 1)
	v.SetDefault("equity.eligibility.max_price", 100)
	v.SetDefault("equity.eligibility.min_volume", 150000)
	v.SetDefault("equity.broker", "alpaca")
	v.SetDefault("equity.quote_source", "alpaca")
	v.SetDefault("equity.api_key", "")
	v.SetDefault("equity.api_secret", "")
	v.SetDefault("equity.base_url", "https://paper-api.alpaca.markets")
	v.SetDefault("equity.data_feed", "iex")
	v.SetDefault("equity.access_token", "")
	v.SetDefault("equity.exchange", "NSE")
	v.SetDefault("equity.product", "CNC")

	v.SetDefault("crypto.watchlist", []string{"DOGE/USDT", "BTC/USDT", "ETH/USDT", "SOL/USDT"})
	v.SetDefault("crypto.eligibility.min_price", 0)
	v.SetDefault("crypto.eligibility.max_price", 0)
	v.SetDefault("crypto.eligibility.min_volume", 100000)
	v.SetDefault("crypto.api_key", "")
	v.SetDefault("crypto.api_secret", "")
	v.SetDefault("crypto.use_sandbox", true)
	v.SetDefault("crypto.quote_asset", "USDT")

	v.SetDefault("venue.call_timeout", "10s")
	v.SetDefault("venue.rate_limit", 5)
	v.SetDefault("venue.rate_burst", 4)
	v.SetDefault("venue.breaker_failures", 5)
	v.SetDefault("venue.breaker_timeout", "30s")
	v.SetDefault("venue.scan_concurrency", 4)

	v.SetDefault("account.capital_venue", "equity")

	v.SetDefault("conversation.auto_trade_words", []string{"auto", "automatically", "go"})
	v.SetDefault("conversation.advisory_words", []string{"solo"})
	v.SetDefault("conversation.crypto_words", []string{
		"crypto", "doge", "dogecoin", "btc", "bitcoin", "eth", "ethereum", "sol", "solana", "coin", "coins",
	})
	v.SetDefault("conversation.report_top", 3)

	v.SetDefault("database.path", "data/genie.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.handle_timeout", "60s")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "genie-trader")
}

// bindSecrets 兼容原有的凭据环境变量命名。
func bindSecrets(v *viper.Viper) {
	_ = v.BindEnv("telegram.bot_token", "GENIE_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("openai.api_key", "GENIE_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("equity.api_key", "GENIE_EQUITY_API_KEY", "ALPACA_API_KEY", "KITE_API_KEY")
	_ = v.BindEnv("equity.api_secret", "GENIE_EQUITY_API_SECRET", "ALPACA_SECRET_KEY")
	_ = v.BindEnv("equity.access_token", "GENIE_EQUITY_ACCESS_TOKEN", "KITE_ACCESS_TOKEN")
	_ = v.BindEnv("crypto.api_key", "GENIE_CRYPTO_API_KEY", "BINANCE_API_KEY")
	_ = v.BindEnv("crypto.api_secret", "GENIE_CRYPTO_API_SECRET", "BINANCE_SECRET_KEY")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
