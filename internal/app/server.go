package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"genie-trader/internal/config"
	"genie-trader/internal/monitor"
)

const (
	defaultEventLimit = 200
	maxEventLimit     = 1000
)

// eventLister 查询监控事件。
type eventLister interface {
	ListEvents(ctx context.Context, eventType monitor.EventType, limit int) ([]monitor.Event, error)
}

// updateAcceptor 接收 Telegram 推送的更新。
type updateAcceptor interface {
	Accept(ctx context.Context, update tgbotapi.Update)
}

// Server 提供 webhook、事件查询、健康检查与指标接口。
type Server struct {
	cfg     config.ServerConfig
	events  eventLister
	updates updateAcceptor
	router  *gin.Engine
	logger  *zap.Logger
}

// NewServer 创建 HTTP 服务，updates 为 nil 时不注册 webhook 路由。
func NewServer(cfg config.ServerConfig, events eventLister, updates updateAcceptor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		events:  events,
		updates: updates,
		logger:  logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.events != nil {
		router.GET("/events", s.handleListEvents)
	}
	if s.updates != nil {
		router.POST("/webhook", s.handleWebhook)
	}
	return router
}

// Handler 返回底层 http.Handler。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动监听直至 ctx 结束，随后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("HTTP 服务已启动", zap.String("addr", s.cfg.Addr))

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Error("HTTP 服务异常", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warn("关闭 HTTP 服务失败", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP 服务已停止")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleWebhook(c *gin.Context) {
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		s.logger.Warn("解析 webhook 更新失败", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid update"})
		return
	}
	s.updates.Accept(c.Request.Context(), update)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleListEvents(c *gin.Context) {
	limit := defaultEventLimit
	if qs := c.Query("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > maxEventLimit {
				v = maxEventLimit
			}
			limit = v
		}
	}

	eventType := monitor.EventType("")
	if typ := strings.TrimSpace(c.Query("type")); typ != "" {
		eventType = monitor.EventType(strings.ToLower(typ))
	}

	events, err := s.events.ListEvents(c.Request.Context(), eventType, limit)
	if err != nil {
		s.logger.Warn("查询监控事件失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []monitor.Event{}
	}
	c.JSON(http.StatusOK, events)
}
