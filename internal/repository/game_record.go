package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/wfunc/conquest-server/internal/errors"
	"github.com/wfunc/conquest-server/internal/models"
)

// GameRecordRepository 对局存档仓储接口
// 写入采用乐观并发控制：以last_update_at为版本号做条件更新。
type GameRecordRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.GameRecord) error
	FindByID(ctx context.Context, id string) (*models.GameRecord, error)
	SaveWithVersion(ctx context.Context, record *models.GameRecord, expected time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, status string, pagination *Pagination) ([]*models.GameRecord, error)

	// 活跃对局索引
	AddActive(ctx context.Context, gameID string) error
	RemoveActive(ctx context.Context, gameID string) error
	ListActive(ctx context.Context) ([]string, error)
	RebuildActiveIndex(ctx context.Context) error
}

// gameRecordRepo 对局存档仓储实现
type gameRecordRepo struct {
	*BaseRepo
}

// NewGameRecordRepository 创建对局存档仓储
func NewGameRecordRepository(db *gorm.DB) GameRecordRepository {
	return &gameRecordRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建对局存档
func (r *gameRecordRepo) Create(ctx context.Context, record *models.GameRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.LastUpdateAt.IsZero() {
		record.LastUpdateAt = now
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseWrite, "创建对局存档失败")
	}
	return nil
}

// FindByID 根据ID查找对局存档
func (r *gameRecordRepo) FindByID(ctx context.Context, id string) (*models.GameRecord, error) {
	var record models.GameRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrNotFound, "对局不存在: %s", id)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询对局存档失败")
	}
	return &record, nil
}

// SaveWithVersion 条件更新：只有版本未被他人动过才写入
// expected为读取时的last_update_at，不匹配返回ErrVersionConflict。
// 新版本号单调递增，即使时钟倒退也不会回退。
func (r *gameRecordRepo) SaveWithVersion(ctx context.Context, record *models.GameRecord, expected time.Time) error {
	next := time.Now().UTC()
	if !next.After(expected) {
		next = expected.Add(time.Millisecond)
	}

	result := r.db.WithContext(ctx).
		Model(&models.GameRecord{}).
		Where("id = ? AND last_update_at = ?", record.ID, expected).
		Updates(map[string]interface{}{
			"status":         record.Status,
			"players":        record.Players,
			"state":          record.State,
			"pending_config": record.PendingConfig,
			"join_code":      record.JoinCode,
			"last_update_at": next,
		})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, apperrors.ErrDatabaseWrite, "更新对局存档失败")
	}
	if result.RowsAffected == 0 {
		// 版本不匹配或记录已删除
		return apperrors.Newf(apperrors.ErrVersionConflict, "对局%s已被其他请求修改", record.ID)
	}

	record.LastUpdateAt = next
	return nil
}

// Delete 删除对局存档
func (r *gameRecordRepo) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.GameRecord{}).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseWrite, "删除对局存档失败")
	}
	return nil
}

// List 按状态分页列出对局
func (r *gameRecordRepo) List(ctx context.Context, status string, pagination *Pagination) ([]*models.GameRecord, error) {
	var records []*models.GameRecord
	query := r.db.WithContext(ctx).Model(&models.GameRecord{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询对局列表失败")
	}
	return records, nil
}

// AddActive 把对局加入活跃索引，重复加入不报错
func (r *gameRecordRepo) AddActive(ctx context.Context, gameID string) error {
	entry := &models.ActiveGame{GameID: gameID, UpdatedAt: time.Now().UTC()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry).Error
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseWrite, "写入活跃索引失败")
	}
	return nil
}

// RemoveActive 把对局移出活跃索引
func (r *gameRecordRepo) RemoveActive(ctx context.Context, gameID string) error {
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Delete(&models.ActiveGame{}).Error
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseWrite, "删除活跃索引失败")
	}
	return nil
}

// ListActive 返回活跃对局ID列表
func (r *gameRecordRepo) ListActive(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.ActiveGame{}).
		Order("game_id").
		Pluck("game_id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询活跃索引失败")
	}
	return ids, nil
}

// RebuildActiveIndex 全表扫描重建活跃索引
// 索引只是缓存，丢失或损坏后可随时从存档重建。
func (r *gameRecordRepo) RebuildActiveIndex(ctx context.Context) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.ActiveGame{}).Error; err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseWrite, "清空活跃索引失败")
		}

		var ids []string
		err := tx.Model(&models.GameRecord{}).
			Where("status IN ?", []string{models.GameStatusPending, models.GameStatusActive}).
			Pluck("id", &ids).Error
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "扫描对局存档失败")
		}

		now := time.Now().UTC()
		for _, id := range ids {
			entry := &models.ActiveGame{GameID: id, UpdatedAt: now}
			if err := tx.Create(entry).Error; err != nil {
				return apperrors.Wrap(err, apperrors.ErrDatabaseWrite, "重建活跃索引失败")
			}
		}
		return nil
	})
}
