package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"

	"odds-engine/logger"
	"odds-engine/pkg/models"
)

// WagerMessage 投注系统发布的成交消息。
// 消息到达时投注已在上游成交，金额已校验，以平台基准货币计。
type WagerMessage struct {
	WagerID     uuid.UUID          `json:"wager_id"`
	EventID     string             `json:"event_id"`
	OutcomeType models.OutcomeType `json:"outcome_type"`
	Amount      decimal.Decimal    `json:"amount"`
	PlacedAt    time.Time          `json:"placed_at"`
}

// WagerConsumer AMQP 投注消息消费者。
// 每条消息登记投注量并触发重算；投注是既成事实，
// 处理失败一律确认消息并记日志，绝不让消息堆积阻塞投注链路。
type WagerConsumer struct {
	url    string
	queue  string
	intake *WagerIntake

	conn    *amqp.Connection
	channel *amqp.Channel
	done    chan struct{}
}

// NewWagerConsumer 创建投注消息消费者
func NewWagerConsumer(url, queue string, intake *WagerIntake) *WagerConsumer {
	return &WagerConsumer{
		url:    url,
		queue:  queue,
		intake: intake,
		done:   make(chan struct{}),
	}
}

// Start 连接并开始消费，断线后指数退避自动重连
func (c *WagerConsumer) Start() error {
	msgs, err := c.connectAndConsume()
	if err != nil {
		return fmt.Errorf("initial connection failed: %w", err)
	}

	go c.consumeLoop(msgs)
	go c.monitorConnection()

	return nil
}

// Stop 停止消费
func (c *WagerConsumer) Stop() {
	close(c.done)
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	logger.Println("[WagerConsumer] 🛑 Stopped")
}

func (c *WagerConsumer) connectAndConsume() (<-chan amqp.Delivery, error) {
	logger.Printf("[WagerConsumer] Connecting to AMQP...")

	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat: 60 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
	}
	c.conn = conn

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	c.channel = channel

	if err := channel.Qos(100, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	queue, err := channel.QueueDeclare(
		c.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	msgs, err := channel.Consume(
		queue.Name,
		"",    // consumer
		false, // auto-ack（手动确认，确保统计不丢消息）
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume: %w", err)
	}

	logger.Printf("[WagerConsumer] ✅ Consuming from queue %s", queue.Name)
	return msgs, nil
}

func (c *WagerConsumer) consumeLoop(msgs <-chan amqp.Delivery) {
	for {
		select {
		case delivery, ok := <-msgs:
			if !ok {
				logger.Warnf("[WagerConsumer] Delivery channel closed")
				return
			}
			c.handleDelivery(delivery)
		case <-c.done:
			return
		}
	}
}

func (c *WagerConsumer) handleDelivery(delivery amqp.Delivery) {
	// 无论处理结果如何都确认：投注在上游已成交，
	// 一条坏消息不值得阻塞整条队列
	defer delivery.Ack(false)

	var msg WagerMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		logger.Errorf("[WagerConsumer] Malformed wager message: %v", err)
		return
	}
	if msg.EventID == "" || !models.IsValidOutcome(msg.OutcomeType) {
		logger.Errorf("[WagerConsumer] Invalid wager message: event=%q outcome=%q",
			msg.EventID, msg.OutcomeType)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := c.intake.Register(ctx, msg.EventID, msg.OutcomeType, msg.Amount); err != nil {
		logger.Errorf("[WagerConsumer] Failed to register wager %s: %v", msg.WagerID, err)
	}
}

// monitorConnection 监控连接状态并自动重连（指数退避，封顶 60 秒）
func (c *WagerConsumer) monitorConnection() {
	delay := time.Second
	const maxDelay = 60 * time.Second

	for {
		closeChan := make(chan *amqp.Error, 1)
		c.conn.NotifyClose(closeChan)

		select {
		case <-c.done:
			return
		case amqpErr := <-closeChan:
			if amqpErr != nil {
				logger.Errorf("[WagerConsumer] Connection lost: %v", amqpErr)
			}
		}

		for {
			select {
			case <-c.done:
				return
			case <-time.After(delay):
			}

			logger.Printf("[WagerConsumer] 🔄 Reconnecting (delay was %v)...", delay)
			msgs, err := c.connectAndConsume()
			if err == nil {
				delay = time.Second
				go c.consumeLoop(msgs)
				break
			}
			logger.Errorf("[WagerConsumer] Reconnect failed: %v", err)
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}
	}
}
