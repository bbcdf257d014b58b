package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"genie-trader/internal/app"
	"genie-trader/internal/config"
	"genie-trader/internal/log"
	"genie-trader/internal/store"
	"genie-trader/internal/venue"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "genie",
		Short:         "Chat-driven trading assistant for stocks and crypto",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径，默认使用 configs/config.yaml")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scanCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 Telegram 机器人与 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, genie *app.App, logger *zap.Logger) error {
				if err := genie.Run(ctx); err != nil {
					logger.Error("系统运行异常", zap.Error(err))
					return err
				}
				logger.Info("系统已安全退出")
				return nil
			})
		},
	}
}

func scanCmd() *cobra.Command {
	var venueName string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "扫描一次候选标的并打印推荐结果，不下单",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := venue.ParseKind(venueName)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, genie *app.App, logger *zap.Logger) error {
				report, err := genie.Scan(ctx, kind)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.Text())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&venueName, "venue", string(venue.KindEquity), "交易通道：equity 或 crypto")
	return cmd
}

// withApp 加载配置、初始化日志与数据库后执行 fn，退出时释放资源。
func withApp(fn func(ctx context.Context, genie *app.App, logger *zap.Logger) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := log.NewLogger(cfg.Logging, cfg.App.Environment)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		return err
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, app.New(cfg, logger, sqliteStore), logger)
}
