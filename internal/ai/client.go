package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"genie-trader/internal/config"
)

// ErrLanguageService 表示语言服务调用失败或返回内容不可用。
var ErrLanguageService = errors.New("language service failure")

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client 封装 OpenAI 调用逻辑。
type Client struct {
	cfg    config.OpenAIConfig
	logger *zap.Logger
	sdk    chatCompleter
}

// NewClient 使用给定配置创建 AI 客户端。
func NewClient(cfg config.OpenAIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}
	config.HTTPClient = httpClient
	client := openai.NewClientWithConfig(config)

	return newClient(cfg, client, logger), nil
}

func newClient(cfg config.OpenAIConfig, sdk chatCompleter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		sdk:    sdk,
	}
}

// Converse 将用户消息连同账户资金发给模型，返回答复与提取的风险预算、盈利目标。
func (c *Client) Converse(ctx context.Context, capital decimal.Decimal, text string) (Reply, error) {
	if c.cfg.Model == "" {
		return Reply{}, fmt.Errorf("%w: openai model 不能为空", ErrLanguageService)
	}

	system, err := BuildSystemPrompt(capital)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrLanguageService, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	response, err := c.sdk.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
	})
	if err != nil {
		c.logger.Error("调用OpenAI失败", zap.Error(err))
		return Reply{}, fmt.Errorf("%w: %v", ErrLanguageService, err)
	}

	if len(response.Choices) == 0 {
		return Reply{}, fmt.Errorf("%w: OpenAI 返回结果为空", ErrLanguageService)
	}

	rawContent := strings.TrimSpace(response.Choices[0].Message.Content)
	if rawContent == "" {
		return Reply{}, fmt.Errorf("%w: OpenAI 返回内容为空", ErrLanguageService)
	}

	reply := parseReply(rawContent)
	c.logger.Debug("AI 答复生成成功",
		zap.Bool("risk_budget_set", reply.RiskBudget != nil),
		zap.Bool("profit_target_set", reply.ProfitTarget != nil),
		zap.Int("reply_len", len(reply.Text)),
	)
	return reply, nil
}
