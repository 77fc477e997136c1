package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	apperrors "github.com/wfunc/conquest-server/internal/errors"
	"github.com/wfunc/conquest-server/internal/models"
)

type GameRecordRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo GameRecordRepository
	ctx  context.Context
}

func (s *GameRecordRepositoryTestSuite) SetupTest() {
	s.db = SetupTestDB()
	s.repo = NewGameRecordRepository(s.db)
	s.ctx = context.Background()
}

func (s *GameRecordRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(s.db)
}

func (s *GameRecordRepositoryTestSuite) newRecord() *models.GameRecord {
	return &models.GameRecord{
		ID:     uuid.New().String(),
		Status: models.GameStatusPending,
		Players: models.PlayerList{
			{Slot: 0, Name: "Alice", Kind: "human", IsCreator: true},
		},
		PendingConfig: models.JSONMap{"max_players": 4},
	}
}

func (s *GameRecordRepositoryTestSuite) TestCreateAndFind() {
	record := s.newRecord()
	s.NoError(s.repo.Create(s.ctx, record))
	s.False(record.LastUpdateAt.IsZero(), "创建时写入版本号")

	found, err := s.repo.FindByID(s.ctx, record.ID)
	s.NoError(err)
	s.Equal(record.ID, found.ID)
	s.Equal(models.GameStatusPending, found.Status)
	s.Len(found.Players, 1)
	s.Equal("Alice", found.Players[0].Name)
}

func (s *GameRecordRepositoryTestSuite) TestFindMissing() {
	_, err := s.repo.FindByID(s.ctx, "no-such-game")
	s.True(apperrors.Is(err, apperrors.ErrNotFound))
}

func (s *GameRecordRepositoryTestSuite) TestSaveWithVersion() {
	record := s.newRecord()
	s.NoError(s.repo.Create(s.ctx, record))

	expected := record.LastUpdateAt
	record.Status = models.GameStatusActive
	record.State = `{"turn":1}`

	s.NoError(s.repo.SaveWithVersion(s.ctx, record, expected))
	s.True(record.LastUpdateAt.After(expected), "版本号单调前进")

	found, err := s.repo.FindByID(s.ctx, record.ID)
	s.NoError(err)
	s.Equal(models.GameStatusActive, found.Status)
	s.Equal(`{"turn":1}`, found.State)
}

func (s *GameRecordRepositoryTestSuite) TestSaveWithStaleVersionConflicts() {
	record := s.newRecord()
	s.NoError(s.repo.Create(s.ctx, record))
	stale := record.LastUpdateAt

	// 第一个写入者成功
	record.Status = models.GameStatusActive
	s.NoError(s.repo.SaveWithVersion(s.ctx, record, stale))

	// 携带旧版本号的写入者必须失败
	other := &models.GameRecord{
		ID:     record.ID,
		Status: models.GameStatusCompleted,
	}
	err := s.repo.SaveWithVersion(s.ctx, other, stale)
	s.True(apperrors.Is(err, apperrors.ErrVersionConflict))
	s.True(apperrors.IsRetryable(err), "版本冲突应标记为可重试")

	// 落库的是第一个写入者的数据
	found, findErr := s.repo.FindByID(s.ctx, record.ID)
	s.NoError(findErr)
	s.Equal(models.GameStatusActive, found.Status)
}

func (s *GameRecordRepositoryTestSuite) TestSaveMissingRecordConflicts() {
	ghost := &models.GameRecord{ID: "no-such-game", Status: models.GameStatusActive}
	err := s.repo.SaveWithVersion(s.ctx, ghost, time.Now())
	s.True(apperrors.Is(err, apperrors.ErrVersionConflict))
}

func (s *GameRecordRepositoryTestSuite) TestVersionMonotonicEvenWithClockSkew() {
	record := s.newRecord()
	s.NoError(s.repo.Create(s.ctx, record))

	// 版本号在未来（模拟时钟回拨后的场景）
	future := time.Now().Add(time.Hour).UTC()
	s.db.Model(&models.GameRecord{}).
		Where("id = ?", record.ID).
		Update("last_update_at", future)

	found, err := s.repo.FindByID(s.ctx, record.ID)
	s.NoError(err)

	s.NoError(s.repo.SaveWithVersion(s.ctx, found, found.LastUpdateAt))
	s.True(found.LastUpdateAt.After(future), "新版本号必须晚于旧值")
}

func (s *GameRecordRepositoryTestSuite) TestList() {
	for i := 0; i < 3; i++ {
		record := s.newRecord()
		if i == 0 {
			record.Status = models.GameStatusCompleted
		}
		s.NoError(s.repo.Create(s.ctx, record))
	}

	pagination := NewPagination(1, 10)
	records, err := s.repo.List(s.ctx, models.GameStatusPending, pagination)
	s.NoError(err)
	s.Len(records, 2)
	s.Equal(int64(2), pagination.Total)

	all, err := s.repo.List(s.ctx, "", NewPagination(1, 10))
	s.NoError(err)
	s.Len(all, 3)
}

func (s *GameRecordRepositoryTestSuite) TestActiveIndex() {
	s.NoError(s.repo.AddActive(s.ctx, "game-a"))
	s.NoError(s.repo.AddActive(s.ctx, "game-b"))
	// 重复加入不报错
	s.NoError(s.repo.AddActive(s.ctx, "game-a"))

	ids, err := s.repo.ListActive(s.ctx)
	s.NoError(err)
	s.Equal([]string{"game-a", "game-b"}, ids)

	s.NoError(s.repo.RemoveActive(s.ctx, "game-a"))
	ids, err = s.repo.ListActive(s.ctx)
	s.NoError(err)
	s.Equal([]string{"game-b"}, ids)
}

func (s *GameRecordRepositoryTestSuite) TestRebuildActiveIndex() {
	pending := s.newRecord()
	s.NoError(s.repo.Create(s.ctx, pending))

	active := s.newRecord()
	active.Status = models.GameStatusActive
	s.NoError(s.repo.Create(s.ctx, active))

	done := s.newRecord()
	done.Status = models.GameStatusCompleted
	s.NoError(s.repo.Create(s.ctx, done))

	// 索引里塞入脏数据
	s.NoError(s.repo.AddActive(s.ctx, "stale-entry"))
	s.NoError(s.repo.AddActive(s.ctx, done.ID))

	s.NoError(s.repo.RebuildActiveIndex(s.ctx))

	ids, err := s.repo.ListActive(s.ctx)
	s.NoError(err)
	s.Len(ids, 2)
	s.Contains(ids, pending.ID)
	s.Contains(ids, active.ID)
	s.NotContains(ids, done.ID)
	s.NotContains(ids, "stale-entry")
}

func TestGameRecordRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(GameRecordRepositoryTestSuite))
}
