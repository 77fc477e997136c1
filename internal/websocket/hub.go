package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message WebSocket消息信封
type Message struct {
	Type      string          `json:"type"`
	GameID    string          `json:"gameId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// 客户端上行消息类型
const (
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
)

// 服务端下行消息类型
const (
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribed = "unsubscribed"
	MessageTypePong         = "pong"
	MessageTypeGameUpdate   = "gameUpdate"
	MessageTypeGameStarted  = "gameStarted"
	MessageTypePlayerJoined = "playerJoined"
	MessageTypeGameEnded    = "gameEnded"
	MessageTypeError        = "error"
)

// DisconnectHook 客户端掉线回调，gameID为其订阅的对局
// 回调在Hub协程中执行，必须快速返回。
type DisconnectHook func(gameID string, playerSlot int)

// Hub WebSocket连接管理中心，按对局分组做消息扇出
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 对局ID到订阅客户端的映射
	gameClients map[string]map[string]*Client
	gameMu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	disconnectHook DisconnectHook

	logger *zap.Logger
}

// NewHub 创建Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		gameClients: make(map[string]map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		logger:      logger,
	}
}

// SetDisconnectHook 设置掉线回调，必须在Run之前调用
func (h *Hub) SetDisconnectHook(hook DisconnectHook) {
	h.disconnectHook = hook
}

// Run 运行Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.Int("player_slot", client.PlayerSlot))
}

// unregisterClient 注销客户端并解除全部订阅
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	h.clientsMu.Unlock()

	// 先摘出订阅索引再关闭通道：扇出在gameMu读锁内发送，
	// 这里拿到写锁即保证没有进行中的扇出仍持有该客户端。
	subscribed := client.subscribedGames()
	h.gameMu.Lock()
	for _, gameID := range subscribed {
		if clients, ok := h.gameClients[gameID]; ok {
			delete(clients, client.ID)
			if len(clients) == 0 {
				delete(h.gameClients, gameID)
			}
		}
	}
	h.gameMu.Unlock()

	close(client.Send)

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.Int("player_slot", client.PlayerSlot))

	// 身份绑定的连接掉线时通知上层
	if h.disconnectHook != nil && client.GameID != "" && client.PlayerSlot >= 0 {
		h.disconnectHook(client.GameID, client.PlayerSlot)
	}
}

// subscribe 订阅对局
func (h *Hub) subscribe(client *Client, gameID string) {
	h.gameMu.Lock()
	if h.gameClients[gameID] == nil {
		h.gameClients[gameID] = make(map[string]*Client)
	}
	h.gameClients[gameID][client.ID] = client
	h.gameMu.Unlock()

	client.addSubscription(gameID)

	h.logger.Debug("客户端订阅对局",
		zap.String("client_id", client.ID),
		zap.String("game_id", gameID))
}

// unsubscribe 取消订阅
func (h *Hub) unsubscribe(client *Client, gameID string) {
	h.gameMu.Lock()
	if clients, ok := h.gameClients[gameID]; ok {
		delete(clients, client.ID)
		if len(clients) == 0 {
			delete(h.gameClients, gameID)
		}
	}
	h.gameMu.Unlock()

	client.removeSubscription(gameID)
}

// NotifyGame 向某对局的全部订阅者推送消息，返回实际送达数
// 没有订阅者不算错误，返回0。单个客户端发送失败只记日志不中断。
func (h *Hub) NotifyGame(gameID string, msgType string, payload interface{}) int {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("序列化推送内容失败",
			zap.String("game_id", gameID),
			zap.Error(err))
		return 0
	}

	msg := &Message{
		Type:      msgType,
		GameID:    gameID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("序列化推送消息失败",
			zap.String("game_id", gameID),
			zap.Error(err))
		return 0
	}

	// 持读锁完成整个扇出，与注销时的关闭互斥
	h.gameMu.RLock()
	sent := 0
	for _, client := range h.gameClients[gameID] {
		select {
		case client.Send <- raw:
			sent++
		default:
			// 发送缓冲区满，放弃本条不阻塞扇出
			h.logger.Warn("客户端发送缓冲区满，丢弃推送",
				zap.String("client_id", client.ID),
				zap.String("game_id", gameID))
		}
	}
	h.gameMu.RUnlock()

	if sent > 0 {
		h.logger.Debug("对局消息已推送",
			zap.String("game_id", gameID),
			zap.String("type", msgType),
			zap.Int("sent", sent))
	}
	return sent
}

// SubscriberCount 返回某对局的订阅者数量
func (h *Hub) SubscriberCount(gameID string) int {
	h.gameMu.RLock()
	defer h.gameMu.RUnlock()
	return len(h.gameClients[gameID])
}

// GetOnlineCount 返回在线连接数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Register 注册客户端（公开方法）
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端（公开方法）
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
