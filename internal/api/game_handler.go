package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wfunc/conquest-server/internal/errors"
	"github.com/wfunc/conquest-server/internal/game"
	"github.com/wfunc/conquest-server/internal/middleware"
	"github.com/wfunc/conquest-server/internal/service"
	"github.com/wfunc/conquest-server/internal/websocket"
)

// GameHandler 对局接口处理器
type GameHandler struct {
	gameService *service.GameService
	hub         *websocket.Hub
}

// NewGameHandler 创建对局处理器
func NewGameHandler(gameService *service.GameService, hub *websocket.Hub) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		hub:         hub,
	}
}

// CreateGame 创建对局
// POST /api/v1/games
func (h *GameHandler) CreateGame(c *gin.Context) {
	var req service.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "解析请求失败"))
		return
	}

	view, credential, err := h.gameService.CreateGame(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"game":       view,
		"credential": credential,
		"timestamp":  time.Now().Unix(),
	})
}

// ListGames 列出对局
// GET /api/v1/games?status=PENDING&page=1&page_size=20
func (h *GameHandler) ListGames(c *gin.Context) {
	var query struct {
		Status   string `form:"status"`
		Page     int    `form:"page"`
		PageSize int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "解析查询参数失败"))
		return
	}

	views, pagination, err := h.gameService.ListGames(c.Request.Context(), query.Status, query.Page, query.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"games":      views,
		"pagination": pagination,
		"timestamp":  time.Now().Unix(),
	})
}

// GetGame 查询对局
// GET /api/v1/games/:id
func (h *GameHandler) GetGame(c *gin.Context) {
	view, err := h.gameService.GetGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"game":      view,
		"timestamp": time.Now().Unix(),
	})
}

// JoinGame 加入对局
// POST /api/v1/games/:id/join
func (h *GameHandler) JoinGame(c *gin.Context) {
	var req service.JoinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "解析请求失败"))
		return
	}

	view, credential, err := h.gameService.JoinGame(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"game":       view,
		"credential": credential,
		"timestamp":  time.Now().Unix(),
	})
}

// StartGame 创建者提前开局
// POST /api/v1/games/:id/start
func (h *GameHandler) StartGame(c *gin.Context) {
	view, err := h.gameService.StartGame(c.Request.Context(), c.Param("id"), c.GetInt(middleware.ContextKeyPlayerSlot))
	if err != nil {
		respondError(c, err)
		return
	}

	respondGame(c, view)
}

// moveRequest 调兵请求
type moveRequest struct {
	SourceID int `json:"source_id"`
	DestID   int `json:"dest_id"`
	Count    int `json:"count" binding:"required"`
}

// Move 调兵/进攻
// POST /api/v1/games/:id/move
func (h *GameHandler) Move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "解析请求失败"))
		return
	}

	cmd := &game.MoveCommand{
		Player:   c.GetInt(middleware.ContextKeyPlayerSlot),
		SourceID: req.SourceID,
		DestID:   req.DestID,
		Count:    req.Count,
	}
	view, err := h.gameService.SubmitCommand(c.Request.Context(), c.Param("id"), cmd)
	if err != nil {
		respondError(c, err)
		return
	}

	respondGame(c, view)
}

// buildRequest 建造请求
type buildRequest struct {
	RegionID int    `json:"region_id"`
	Kind     string `json:"kind" binding:"required"`
}

// Build 建造/升级神殿
// POST /api/v1/games/:id/build
func (h *GameHandler) Build(c *gin.Context) {
	var req buildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "解析请求失败"))
		return
	}

	cmd := &game.BuildCommand{
		Player:   c.GetInt(middleware.ContextKeyPlayerSlot),
		RegionID: req.RegionID,
		Kind:     req.Kind,
	}
	view, err := h.gameService.SubmitCommand(c.Request.Context(), c.Param("id"), cmd)
	if err != nil {
		respondError(c, err)
		return
	}

	respondGame(c, view)
}

// EndTurn 结束回合
// POST /api/v1/games/:id/end-turn
func (h *GameHandler) EndTurn(c *gin.Context) {
	cmd := &game.EndTurnCommand{Player: c.GetInt(middleware.ContextKeyPlayerSlot)}
	view, err := h.gameService.SubmitCommand(c.Request.Context(), c.Param("id"), cmd)
	if err != nil {
		respondError(c, err)
		return
	}

	respondGame(c, view)
}

// Resign 认输
// POST /api/v1/games/:id/resign
func (h *GameHandler) Resign(c *gin.Context) {
	view, err := h.gameService.Resign(c.Request.Context(), c.Param("id"), c.GetInt(middleware.ContextKeyPlayerSlot))
	if err != nil {
		respondError(c, err)
		return
	}

	respondGame(c, view)
}

// notifyRequest 消息注入请求
type notifyRequest struct {
	GameID  string      `json:"gameId" binding:"required"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Notify 向对局订阅者注入消息
// POST /api/v1/notify
// 没有订阅者不算失败，sentCount为0。
func (h *GameHandler) Notify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "解析请求失败"))
		return
	}

	msgType := req.Type
	if msgType == "" {
		msgType = websocket.MessageTypeGameUpdate
	}

	sent := h.hub.NotifyGame(req.GameID, msgType, req.Payload)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sentCount": sent,
		"gameId":    req.GameID,
		"timestamp": time.Now().Unix(),
	})
}

// respondGame 返回对局视图
func respondGame(c *gin.Context, view *service.GameView) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"game":      view,
		"timestamp": time.Now().Unix(),
	})
}

// respondError 统一错误响应
func respondError(c *gin.Context, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrUnknown)
	}
	c.JSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(appErr))
}
