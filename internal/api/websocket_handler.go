package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/conquest-server/internal/utils"
	"github.com/wfunc/conquest-server/internal/websocket"
)

// WebSocketHandler WebSocket升级处理器
type WebSocketHandler struct {
	hub        *websocket.Hub
	jwtManager *utils.JWTManager
	upgrader   gorillaws.Upgrader
	log        *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *websocket.Hub, jwtManager *utils.JWTManager, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hub,
		jwtManager: jwtManager,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 对局服务直接面向游戏客户端，不限制来源
				return true
			},
		},
		log: log,
	}
}

// Serve 升级连接并启动读写泵
// GET /ws?token=...
// 令牌可选：带令牌的连接绑定玩家身份，掉线时触发认输流程；
// 不带令牌的连接只能观战订阅。
func (h *WebSocketHandler) Serve(c *gin.Context) {
	gameID := ""
	playerSlot := -1
	if token := c.Query("token"); token != "" {
		claims, err := h.jwtManager.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "玩家令牌无效"})
			return
		}
		gameID = claims.GameID
		playerSlot = claims.PlayerSlot
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("WebSocket升级失败", zap.Error(err))
		return
	}

	client := websocket.NewClient(h.hub, conn, gameID, playerSlot)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
