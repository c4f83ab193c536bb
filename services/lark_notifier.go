package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"odds-engine/logger"
	"odds-engine/pkg/models"
)

// LarkNotifier 飞书机器人通知器。
// 赔率变化超过策略阈值、或发现数据不变式被破坏时推送。
// 尽力而为：发送失败只记日志，不影响已提交的变更。
type LarkNotifier struct {
	webhookURL string
	client     *http.Client
	enabled    bool
}

// NewLarkNotifier 创建飞书通知器
func NewLarkNotifier(webhookURL string) *LarkNotifier {
	enabled := webhookURL != ""
	if enabled {
		logger.Printf("[LarkNotifier] Initialized with webhook")
	} else {
		logger.Printf("[LarkNotifier] Disabled (no webhook URL)")
	}

	return &LarkNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		enabled:    enabled,
	}
}

// LarkMessage 飞书消息结构
type LarkMessage struct {
	MsgType string      `json:"msg_type"`
	Content interface{} `json:"content"`
}

// LarkTextContent 文本消息内容
type LarkTextContent struct {
	Text string `json:"text"`
}

// NotifyOddsChange 赔率大幅变化通知
func (n *LarkNotifier) NotifyOddsChange(record *models.ChangeRecord) error {
	direction := "📈"
	if record.ChangePercent.IsNegative() {
		direction = "📉"
	}
	text := fmt.Sprintf("%s Odds change %s/%s: %s -> %s (%s%%)\nreason: %s\nwagers: %d, total: %s",
		direction, record.EventID, record.OutcomeType,
		record.PreviousPrice.StringFixed(2), record.NewPrice.StringFixed(2),
		record.ChangePercent.StringFixed(2), record.Reason,
		record.WagerCountSnapshot, record.TotalAmountSnapshot.StringFixed(2))
	return n.SendText(text)
}

// NotifyInvariantViolation 数据不变式告警。
// 这类告警意味着上游数据已损坏，需要人工介入。
func (n *LarkNotifier) NotifyInvariantViolation(eventID string, outcome models.OutcomeType, detail string) error {
	text := fmt.Sprintf("🚨 Odds data invariant violation!\nevent: %s\noutcome: %s\ndetail: %s",
		eventID, outcome, detail)
	return n.SendText(text)
}

// NotifyServiceStart 服务启动通知
func (n *LarkNotifier) NotifyServiceStart(environment string) error {
	return n.SendText(fmt.Sprintf("🚀 Odds engine started (env: %s)", environment))
}

// SendText 发送文本消息
func (n *LarkNotifier) SendText(text string) error {
	if !n.enabled {
		return nil
	}

	message := LarkMessage{
		MsgType: "text",
		Content: LarkTextContent{
			Text: text,
		},
	}

	return n.send(message)
}

func (n *LarkNotifier) send(message LarkMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal lark message: %w", err)
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to send lark message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lark webhook returned status %d", resp.StatusCode)
	}
	return nil
}
