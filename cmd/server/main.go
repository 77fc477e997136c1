package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfunc/conquest-server/internal/api"
	"github.com/wfunc/conquest-server/internal/config"
	"github.com/wfunc/conquest-server/internal/database"
	"github.com/wfunc/conquest-server/internal/errors"
	"github.com/wfunc/conquest-server/internal/logger"
	"github.com/wfunc/conquest-server/internal/repository"
	"github.com/wfunc/conquest-server/internal/service"
	"github.com/wfunc/conquest-server/internal/utils"
	"github.com/wfunc/conquest-server/internal/websocket"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	hub         *websocket.Hub
	gameService *service.GameService
	httpServer  *http.Server
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
	}
}

// Start 初始化组件并启动服务
func (s *Server) Start() error {
	s.logger.Info("正在启动对局服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode))

	if s.cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 数据库
	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	if s.cfg.Database.AutoMigrate {
		s.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}
	db := database.GetDB()

	// WebSocket Hub
	s.hub = websocket.NewHub(logger.WithModule("websocket"))

	// 业务层
	repo := repository.NewGameRecordRepository(db)
	jwtManager := utils.NewJWTManager(
		s.cfg.Security.JWT.Secret,
		time.Duration(s.cfg.Security.JWT.ExpireHours)*time.Hour,
	)
	s.gameService = service.NewGameService(repo, s.hub, jwtManager, &s.cfg.Game)

	// 掉线处理：连接层只上报，处置逻辑在业务层
	s.hub.SetDisconnectHook(func(gameID string, playerSlot int) {
		go s.gameService.HandleDisconnect(gameID, playerSlot)
	})
	go s.hub.Run()

	// 活跃索引是缓存，启动时从存档重建
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.gameService.RebuildActiveIndex(ctx); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseQuery, "重建活跃索引失败")
	}

	// HTTP路由
	router := api.NewRouter(db, s.gameService, s.hub, jwtManager, s.logger)
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router.GetEngine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP服务器异常退出", zap.Error(err))
		}
	}()

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.cfg = newCfg
		s.logger.Info("配置已重新加载")
	})

	s.logger.Info("服务器启动成功", zap.String("http", addr))
	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP服务器关闭超时", zap.Error(err))
		}
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}

	return nil
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("对局服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
