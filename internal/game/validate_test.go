package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/wfunc/conquest-server/internal/errors"
)

func TestValidateMoveAccepts(t *testing.T) {
	s := newTestState(1)

	// 派出3个，留守1个，刚好合法
	err := ValidateMove(s, 0, 0, 1, 3)
	assert.NoError(t, err)
}

func TestValidateMoveRejections(t *testing.T) {
	s := newTestState(1)

	tests := []struct {
		name     string
		player   int
		source   int
		dest     int
		count    int
		wantCode apperrors.ErrorCode
	}{
		{"来源不属于玩家", 0, 2, 1, 1, apperrors.ErrNotOwned},
		{"中立来源", 0, 1, 2, 1, apperrors.ErrNotOwned},
		{"目标不相邻", 0, 0, 4, 1, apperrors.ErrNotAdjacent},
		{"目标不相邻自身", 0, 0, 2, 1, apperrors.ErrNotAdjacent},
		{"数量为零", 0, 0, 1, 0, apperrors.ErrInvalidParam},
		{"数量为负", 0, 0, 1, -2, apperrors.ErrInvalidParam},
		{"兵力不足", 0, 0, 1, 9, apperrors.ErrInsufficientUnits},
		{"不留守", 0, 0, 1, 4, apperrors.ErrWouldEmptySource},
		{"来源地区不存在", 0, 99, 1, 1, apperrors.ErrNotFound},
		{"目标地区不存在", 0, 0, 99, 1, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMove(s, tt.player, tt.source, tt.dest, tt.count)
			assert.True(t, apperrors.Is(err, tt.wantCode),
				"期望错误码%d，得到: %v", tt.wantCode, err)
		})
	}
}

func TestValidateMoveGameOver(t *testing.T) {
	s := newTestState(1)
	winner := 0
	s.EndResult = &EndResult{WinnerSlot: &winner}

	err := ValidateMove(s, 0, 0, 1, 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrGameOver))
}

func TestValidateBuild(t *testing.T) {
	s := newTestState(1)
	s.Faith[0] = 100

	assert.NoError(t, ValidateBuild(s, 0, 0, UpgradeIncome))

	// 无神殿地块
	s.Owners[3] = 0
	err := ValidateBuild(s, 0, 3, UpgradeIncome)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoTempleSite))

	// 别人的地区
	err = ValidateBuild(s, 0, 2, UpgradeIncome)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotOwned))

	// 未知升级种类
	err = ValidateBuild(s, 0, 0, "teleport")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))

	// 信仰不足
	s.Faith[0] = 0
	err = ValidateBuild(s, 0, 0, UpgradeIncome)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientFaith))
}

func TestValidateBuildMaxLevel(t *testing.T) {
	s := newTestState(1)
	s.Faith[0] = 1000
	max, _ := UpgradeMaxLevel(UpgradeIncome)
	s.Temples[0] = &Temple{RegionID: 0, UpgradeKind: UpgradeIncome, Level: max}

	err := ValidateBuild(s, 0, 0, UpgradeIncome)
	assert.True(t, apperrors.Is(err, apperrors.ErrUpgradeMaxLevel))

	// 换一种升级则从0级重建，合法
	assert.NoError(t, ValidateBuild(s, 0, 0, UpgradeDefense))
}
