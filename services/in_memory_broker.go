package services

import (
	"sync"

	"odds-engine/logger"
)

// InMemoryBroker 是 MessageBroker 接口的内存实现。
// 与消息队列不同，这里的语义是广播：每个订阅者都收到全量消息。
type InMemoryBroker struct {
	consumers map[string][]chan BrokerMessage
	mu        sync.RWMutex
	closed    bool
}

// NewInMemoryBroker 创建 InMemoryBroker 实例
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		consumers: make(map[string][]chan BrokerMessage),
	}
}

// Produce 实现 MessageBroker 接口。
// 消费者通道满时丢弃该消费者的这条消息（推送是尽力而为的，
// 审计数据在变更日志里，不依赖这条链路）。
func (b *InMemoryBroker) Produce(msg BrokerMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	consumerChans := b.consumers[msg.Topic]
	if len(consumerChans) == 0 {
		return nil
	}

	for _, ch := range consumerChans {
		select {
		case ch <- msg:
		default:
			logger.Warnf("[InMemoryBroker] Consumer channel full on topic %s, message dropped", msg.Topic)
		}
	}

	return nil
}

// Consume 实现 MessageBroker 接口
func (b *InMemoryBroker) Consume(topic string) (<-chan BrokerMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	consumerChan := make(chan BrokerMessage, 256)
	b.consumers[topic] = append(b.consumers[topic], consumerChan)

	logger.Printf("[InMemoryBroker] Consumer subscribed to topic %s (total: %d)",
		topic, len(b.consumers[topic]))

	return consumerChan, nil
}

// Close 实现 MessageBroker 接口
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, chans := range b.consumers {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.consumers = make(map[string][]chan BrokerMessage)

	logger.Println("[InMemoryBroker] Closed all channels")
	return nil
}
