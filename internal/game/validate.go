package game

import (
	apperrors "github.com/wfunc/conquest-server/internal/errors"
)

// ValidateMove 校验一次调兵/进攻命令的合法性，不修改状态
// 校验顺序固定：游戏结束 → 地区存在 → 归属 → 相邻 → 数量 → 留守。
func ValidateMove(s *GameState, playerSlot, sourceID, destID, count int) error {
	if s.EndResult != nil {
		return apperrors.New(apperrors.ErrGameOver)
	}

	if s.RegionByID(sourceID) == nil {
		return apperrors.Newf(apperrors.ErrNotFound, "来源地区不存在: %d", sourceID)
	}
	if s.RegionByID(destID) == nil {
		return apperrors.Newf(apperrors.ErrNotFound, "目标地区不存在: %d", destID)
	}

	owner, ok := s.OwnerOf(sourceID)
	if !ok || owner != playerSlot {
		return apperrors.Newf(apperrors.ErrNotOwned, "地区%d不属于玩家%d", sourceID, playerSlot)
	}

	if !s.IsAdjacent(sourceID, destID) {
		return apperrors.Newf(apperrors.ErrNotAdjacent, "地区%d与地区%d不相邻", sourceID, destID)
	}

	if count <= 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam, "调兵数量必须为正数: %d", count)
	}

	garrison := s.GarrisonCount(sourceID)
	if count > garrison {
		return apperrors.Newf(apperrors.ErrInsufficientUnits, "地区%d只有%d个单位，无法派出%d个", sourceID, garrison, count)
	}

	// 来源地区必须留守至少一个单位
	if count >= garrison {
		return apperrors.Newf(apperrors.ErrWouldEmptySource, "地区%d派出%d个单位后将无人留守", sourceID, count)
	}

	return nil
}

// ValidateBuild 校验建造/升级神殿命令
func ValidateBuild(s *GameState, playerSlot, regionID int, kind string) error {
	if s.EndResult != nil {
		return apperrors.New(apperrors.ErrGameOver)
	}

	region := s.RegionByID(regionID)
	if region == nil {
		return apperrors.Newf(apperrors.ErrNotFound, "地区不存在: %d", regionID)
	}

	owner, ok := s.OwnerOf(regionID)
	if !ok || owner != playerSlot {
		return apperrors.Newf(apperrors.ErrNotOwned, "地区%d不属于玩家%d", regionID, playerSlot)
	}

	if !region.HasTemple {
		return apperrors.Newf(apperrors.ErrNoTempleSite, "地区%d没有神殿", regionID)
	}

	if _, ok := UpgradeMaxLevel(kind); !ok {
		return apperrors.Newf(apperrors.ErrInvalidParam, "未知的升级种类: %s", kind)
	}

	targetLevel := buildTargetLevel(s, regionID, kind)
	max, _ := UpgradeMaxLevel(kind)
	if targetLevel > max {
		return apperrors.Newf(apperrors.ErrUpgradeMaxLevel, "%s升级已达最高等级%d", kind, max)
	}

	cost, ok := UpgradeCost(kind, targetLevel)
	if !ok {
		return apperrors.Newf(apperrors.ErrUpgradeMaxLevel, "%s升级已达最高等级", kind)
	}
	if s.Faith[playerSlot] < cost {
		return apperrors.Newf(apperrors.ErrInsufficientFaith, "需要%d信仰，当前只有%d", cost, s.Faith[playerSlot])
	}

	return nil
}

// buildTargetLevel 计算建造后达到的等级
// 同种升级继续升一级，不同种（或空神殿）从0级重建。
func buildTargetLevel(s *GameState, regionID int, kind string) int {
	temple := s.Temples[regionID]
	if temple == nil || temple.UpgradeKind != kind {
		return 0
	}
	return temple.Level + 1
}
