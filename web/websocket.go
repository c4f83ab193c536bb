package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"odds-engine/logger"
	"odds-engine/services"
)

// WSMessage WebSocket推送消息结构
type WSMessage struct {
	Type    string      `json:"type"`
	EventID string      `json:"event_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Client WebSocket客户端
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// 赛事ID过滤器。readPump 改写、Hub 广播时读取，mu 保护
	mu       sync.RWMutex
	eventIDs map[string]bool
}

// Hub WebSocket Hub，把赔率变更事件推送给订阅的客户端
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *WSMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub 创建新的Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *WSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run 运行Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Printf("[WS] Client registered. Total clients: %d", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logger.Printf("[WS] Client unregistered. Total clients: %d", len(h.clients))

		case message := <-h.broadcast:
			payload := h.marshalMessage(message)
			h.mu.RLock()
			for client := range h.clients {
				if !client.shouldReceive(message) {
					continue
				}
				select {
				case client.send <- payload:
				default:
					// 发送缓冲满的慢客户端直接丢弃本条
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ConsumeChanges 订阅 Broker 上的赔率变更事件并转发给客户端。
// 在独立 goroutine 中运行，Broker 关闭时退出。
func (h *Hub) ConsumeChanges(broker services.MessageBroker) {
	msgs, err := broker.Consume(services.TopicOddsChanges)
	if err != nil {
		logger.Errorf("[WS] Failed to subscribe to change events: %v", err)
		return
	}

	for msg := range msgs {
		record, err := services.DecodeChangeEvent(msg.Value)
		if err != nil {
			logger.Errorf("[WS] Failed to decode change event: %v", err)
			continue
		}
		h.broadcast <- &WSMessage{
			Type:    "odds_change",
			EventID: record.EventID,
			Data:    record,
		}
	}
}

// marshalMessage 序列化消息
func (h *Hub) marshalMessage(message *WSMessage) []byte {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Errorf("[WS] Failed to marshal message: %v", err)
		return []byte("{}")
	}
	return data
}

// shouldReceive 检查客户端是否应该接收消息
func (c *Client) shouldReceive(message *WSMessage) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// 没有设置过滤器时接收所有消息
	if len(c.eventIDs) == 0 {
		return true
	}
	if message.EventID == "" {
		return false
	}
	return c.eventIDs[message.EventID]
}

// setFilter 整体替换过滤器
func (c *Client) setFilter(eventIDs []string) {
	filter := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		filter[id] = true
	}
	c.mu.Lock()
	c.eventIDs = filter
	c.mu.Unlock()
}

// readPump 读取客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("[WS] WebSocket error: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump 向客户端写入消息
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()

	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// handleMessage 处理客户端发送的订阅指令
func (c *Client) handleMessage(message []byte) {
	var msg struct {
		Type     string   `json:"type"`
		EventIDs []string `json:"event_ids"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Errorf("[WS] Failed to unmarshal client message: %v", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.setFilter(msg.EventIDs)
		logger.Printf("[WS] Client subscribed to events: %v", msg.EventIDs)

	case "unsubscribe":
		c.setFilter(nil)
		logger.Println("[WS] Client unsubscribed")
	}
}

// handleWebSocket 升级连接并注册客户端
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("[WS] Upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:      s.wsHub,
		conn:     conn,
		send:     make(chan []byte, 64),
		eventIDs: make(map[string]bool),
	}
	s.wsHub.register <- client

	go client.writePump()
	go client.readPump()
}
