package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket配置
const (
	// 写超时
	writeWait = 10 * time.Second

	// 读取pong超时
	pongWait = 60 * time.Second

	// ping发送周期（必须小于pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 最大消息大小
	maxMessageSize = 64 * 1024 // 64KB
)

// Client WebSocket客户端连接
// 携带令牌的连接绑定GameID和PlayerSlot，匿名观战连接两者为零值。
type Client struct {
	ID         string
	GameID     string // 身份绑定的对局，空串表示未绑定
	PlayerSlot int    // 身份绑定的槽位，-1表示未绑定
	Hub        *Hub
	Conn       *websocket.Conn
	Send       chan []byte

	subscriptions map[string]bool
	subMu         sync.Mutex
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn, gameID string, playerSlot int) *Client {
	return &Client{
		ID:            uuid.New().String(),
		GameID:        gameID,
		PlayerSlot:    playerSlot,
		Hub:           hub,
		Conn:          conn,
		Send:          make(chan []byte, 256),
		subscriptions: make(map[string]bool),
	}
}

// addSubscription 记录订阅
func (c *Client) addSubscription(gameID string) {
	c.subMu.Lock()
	c.subscriptions[gameID] = true
	c.subMu.Unlock()
}

// removeSubscription 移除订阅
func (c *Client) removeSubscription(gameID string) {
	c.subMu.Lock()
	delete(c.subscriptions, gameID)
	c.subMu.Unlock()
}

// subscribedGames 返回当前订阅的对局ID
func (c *Client) subscribedGames() []string {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	games := make([]string, 0, len(c.subscriptions))
	for gameID := range c.subscriptions {
		games = append(games, gameID)
	}
	return games
}

// ReadPump 读取消息
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 批量发送队列中的消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理上行消息
func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.Hub.logger.Warn("解析WebSocket消息失败",
			zap.String("client_id", c.ID),
			zap.Error(err))
		c.sendError("消息格式错误")
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.reply(MessageTypePong, "")

	case MessageTypeSubscribe:
		if msg.GameID == "" {
			c.sendError("订阅必须指定gameId")
			return
		}
		c.Hub.subscribe(c, msg.GameID)
		c.reply(MessageTypeSubscribed, msg.GameID)

	case MessageTypeUnsubscribe:
		if msg.GameID == "" {
			// 不带gameId时解除当前全部订阅
			for _, gameID := range c.subscribedGames() {
				c.Hub.unsubscribe(c, gameID)
				c.reply(MessageTypeUnsubscribed, gameID)
			}
			return
		}
		c.Hub.unsubscribe(c, msg.GameID)
		c.reply(MessageTypeUnsubscribed, msg.GameID)

	default:
		c.Hub.logger.Warn("收到不支持的消息类型",
			zap.String("client_id", c.ID),
			zap.String("type", msg.Type))
		c.sendError("不支持的消息类型: " + msg.Type)
	}
}

// reply 发送下行确认消息
func (c *Client) reply(msgType, gameID string) {
	msg := &Message{
		Type:      msgType,
		GameID:    gameID,
		Timestamp: time.Now().Unix(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.Send <- raw:
	default:
	}
}

// sendError 发送错误消息
func (c *Client) sendError(message string) {
	data, _ := json.Marshal(map[string]string{"error": message})
	msg := &Message{
		Type:      MessageTypeError,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.Send <- raw:
	default:
	}
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.Hub.unregister <- c
}
