package services

import (
	"encoding/json"

	"odds-engine/pkg/models"
)

// Topic 定义
const (
	// TopicOddsChanges 已提交的赔率变更事件
	TopicOddsChanges = "odds.changes"
)

// BrokerMessage 定义了在 Broker 中传输的消息结构
type BrokerMessage struct {
	Topic string
	Key   string // EventID
	Value []byte // JSON 消息体
}

// MessageBroker 定义了进程内消息分发的抽象接口。
// 重算引擎提交成功后在这里发布变更事件，WebSocket 推送和
// 通知器作为消费者订阅，互不感知。
type MessageBroker interface {
	// Produce 发送消息到指定的 Topic
	Produce(msg BrokerMessage) error
	// Consume 订阅指定的 Topic，返回一个消息通道
	Consume(topic string) (<-chan BrokerMessage, error)
	// Close 关闭 Broker
	Close() error
}

// encodeChangeEvent 把变更记录编码成事件消息体
func encodeChangeEvent(record *models.ChangeRecord) ([]byte, error) {
	return json.Marshal(record)
}

// DecodeChangeEvent 解析变更事件消息体
func DecodeChangeEvent(payload []byte) (*models.ChangeRecord, error) {
	var record models.ChangeRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
