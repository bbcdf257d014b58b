package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"genie-trader/internal/config"
)

// Telegram 单条消息的最大长度。
const maxMessageLen = 4096

// 处理器异常时的兜底答复
const fallbackReply = "❌ Genie error: internal failure"

// Handler 处理一条文本消息并返回唯一的一条答复。
type Handler interface {
	HandleMessage(ctx context.Context, text string) string
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot 负责收取 Telegram 消息并把答复发回原会话。
type Bot struct {
	api     *tgbotapi.BotAPI
	sender  sender
	handler Handler
	cfg     config.TelegramConfig
	logger  *zap.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewBot 创建并授权 Telegram 机器人。
func NewBot(cfg config.TelegramConfig, handler Handler, logger *zap.Logger) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram: bot_token 不能为空")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: 创建 bot 失败: %w", err)
	}
	api.Debug = cfg.Debug

	bot := newBot(api, handler, cfg, logger)
	bot.api = api
	bot.logger.Info("Telegram 机器人已授权", zap.String("username", api.Self.UserName))
	return bot, nil
}

func newBot(s sender, handler Handler, cfg config.TelegramConfig, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		sender:  s,
		handler: handler,
		cfg:     cfg,
		logger:  logger,
	}
}

// Webhook 表示机器人是否以 webhook 方式接收消息。
func (b *Bot) Webhook() bool {
	return b.cfg.WebhookURL != ""
}

// Run 在 polling 模式下持续拉取消息；webhook 模式下注册地址后等待退出，消息由 HTTP 服务转交 Accept。
func (b *Bot) Run(ctx context.Context) error {
	if b.api == nil {
		return errors.New("telegram: bot 未初始化")
	}
	defer b.Stop()

	if b.Webhook() {
		return b.runWebhook(ctx)
	}
	return b.runPolling(ctx)
}

func (b *Bot) runPolling(ctx context.Context) error {
	b.logger.Info("Telegram 机器人以 polling 模式启动")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollingTimeout

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram 机器人正在停止")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.Accept(ctx, update)
		}
	}
}

func (b *Bot) runWebhook(ctx context.Context) error {
	webhook, err := tgbotapi.NewWebhook(b.cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("telegram: 创建 webhook 失败: %w", err)
	}
	if _, err = b.api.Request(webhook); err != nil {
		return fmt.Errorf("telegram: 注册 webhook 失败: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("telegram: 查询 webhook 失败: %w", err)
	}
	if info.LastErrorDate != 0 {
		b.logger.Warn("Telegram webhook 存在错误",
			zap.Int("error_date", info.LastErrorDate),
			zap.String("error_message", info.LastErrorMessage),
		)
	}

	b.logger.Info("Telegram 机器人以 webhook 模式启动", zap.String("webhook_url", b.cfg.WebhookURL))
	<-ctx.Done()
	return nil
}

// Accept 异步处理一条更新，非文本或缺少会话的消息直接忽略；Stop 之后到达的更新被丢弃。
func (b *Bot) Accept(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.Chat == nil || strings.TrimSpace(message.Text) == "" {
		return
	}
	chatID, text := message.Chat.ID, message.Text

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		b.logger.Warn("机器人已停止，丢弃消息", zap.Int64("chat_id", chatID))
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("处理 Telegram 消息发生 panic", zap.Int64("chat_id", chatID), zap.Any("panic", r))
			}
		}()
		b.process(context.WithoutCancel(ctx), chatID, text)
	}()
}

// Stop 拒绝后续更新并等待处理中的消息完成。
func (b *Bot) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bot) process(ctx context.Context, chatID int64, text string) {
	reply := b.handle(ctx, chatID, text)
	if reply == "" {
		return
	}
	if err := b.Send(chatID, reply); err != nil {
		b.logger.Error("发送 Telegram 消息失败", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// handle 调用处理器，处理器 panic 时以兜底答复代替。
func (b *Bot) handle(ctx context.Context, chatID int64, text string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("消息处理器发生 panic", zap.Int64("chat_id", chatID), zap.Any("panic", r))
			reply = fallbackReply
		}
	}()
	return b.handler.HandleMessage(ctx, text)
}

// Send 向指定会话发送文本，超长时截断。
func (b *Bot) Send(chatID int64, text string) error {
	if len(text) > maxMessageLen {
		text = truncate(text, maxMessageLen)
	}
	if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram: 发送消息失败: %w", err)
	}
	return nil
}

// truncate 按字节上限截断且不破坏 UTF-8 字符。
func truncate(text string, limit int) string {
	cut := 0
	for i := range text {
		if i > limit {
			break
		}
		cut = i
	}
	return text[:cut]
}
