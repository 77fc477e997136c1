package database

import (
	"fmt"

	"github.com/wfunc/conquest-server/internal/logger"
	"github.com/wfunc/conquest-server/internal/models"
	"go.uber.org/zap"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 获取迁移锁，避免多个进程同时迁移
	dbPath := getDBPath()
	if dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	migrationModels := []interface{}{
		&models.GameRecord{},
		&models.ActiveGame{},
	}

	logger.Info("开始数据库迁移...")

	for _, model := range migrationModels {
		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		logger.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	logger.Info("数据库迁移完成")
	return nil
}

// getDBPath 从连接字符串获取数据库文件路径
func getDBPath() string {
	if DB == nil {
		return ""
	}

	switch DB.Dialector.Name() {
	case "sqlite", "sqlite3":
		if sqlDB, err := DB.DB(); err == nil {
			row := sqlDB.QueryRow("PRAGMA database_list")
			var seq int
			var name, file string
			if err := row.Scan(&seq, &name, &file); err == nil && file != "" {
				return file
			}
		}
		return ""
	default:
		return ""
	}
}
