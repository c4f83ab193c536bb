package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"odds-engine/pkg/models"
)

// FeedPrice 外部行情源的一条参考价
type FeedPrice struct {
	OutcomeType models.OutcomeType `json:"outcome_type"`
	Price       decimal.Decimal    `json:"price"`
}

// feedResponse 行情 API 响应
type feedResponse struct {
	EventID string      `json:"event_id"`
	Prices  []FeedPrice `json:"prices"`
}

// FeedClient 外部行情源客户端。按赛事拉取第三方参考价，
// 由低频任务套用到本地赔率（走完整校验管线）。
type FeedClient struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

// NewFeedClient 创建行情源客户端
func NewFeedClient(baseURL, apiToken string) *FeedClient {
	return &FeedClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Source 行情来源标识，写入变更记录的 detail
func (c *FeedClient) Source() string {
	return c.baseURL
}

// FetchPrices 拉取赛事的参考价
func (c *FeedClient) FetchPrices(ctx context.Context, eventID string) ([]FeedPrice, error) {
	url := fmt.Sprintf("%s/events/%s/prices", c.baseURL, eventID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-access-token", c.apiToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call feed API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// 行情源没有这场比赛的数据，不算错误
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("feed API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed response: %w", err)
	}

	var parsed feedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse feed response: %w", err)
	}

	// 过滤掉不支持的结果类型
	prices := parsed.Prices[:0]
	for _, p := range parsed.Prices {
		if models.IsValidOutcome(p.OutcomeType) && p.Price.IsPositive() {
			prices = append(prices, p)
		}
	}
	return prices, nil
}
