package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/conquest-server/internal/middleware"
	"github.com/wfunc/conquest-server/internal/service"
	"github.com/wfunc/conquest-server/internal/utils"
	"github.com/wfunc/conquest-server/internal/websocket"
)

// Router API路由器
type Router struct {
	engine      *gin.Engine
	db          *gorm.DB
	gameHandler *GameHandler
	wsHandler   *WebSocketHandler
	jwtManager  *utils.JWTManager
	log         *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, gameService *service.GameService, hub *websocket.Hub, jwtManager *utils.JWTManager, log *zap.Logger) *Router {
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	router := &Router{
		engine:      engine,
		db:          db,
		gameHandler: NewGameHandler(gameService, hub),
		wsHandler:   NewWebSocketHandler(hub, jwtManager, log),
		jwtManager:  jwtManager,
		log:         log,
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		games := v1.Group("/games")
		{
			// 大厅接口，不需要令牌
			games.POST("", r.gameHandler.CreateGame)
			games.GET("", r.gameHandler.ListGames)
			games.GET("/:id", r.gameHandler.GetGame)
			games.POST("/:id/join", r.gameHandler.JoinGame)

			// 对局内操作，需要玩家令牌
			authed := games.Group("")
			authed.Use(middleware.PlayerAuth(r.jwtManager))
			{
				authed.POST("/:id/start", r.gameHandler.StartGame)
				authed.POST("/:id/move", r.gameHandler.Move)
				authed.POST("/:id/build", r.gameHandler.Build)
				authed.POST("/:id/end-turn", r.gameHandler.EndTurn)
				authed.POST("/:id/resign", r.gameHandler.Resign)
			}
		}

		// 对局消息注入，供内部组件和运维使用
		v1.POST("/notify", r.gameHandler.Notify)
	}

	// WebSocket升级
	r.engine.GET("/ws", r.wsHandler.Serve)

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
