package worldgen

import (
	"fmt"

	apperrors "github.com/wfunc/conquest-server/internal/errors"
	"github.com/wfunc/conquest-server/internal/game"
)

// 地图生成参数
const (
	RegionsPerPlayer = 4 // 每名玩家摊到的地区数
	HomeGarrison     = 4 // 出生地初始驻军
	TempleRatio      = 3 // 每几个地区安排一个神殿地块

	MinNeutralGarrison = 1
	MaxNeutralGarrison = 3
)

// regionNames 地区命名池，不够用时回退编号命名
var regionNames = []string{
	"Aurora", "Borealis", "Cascade", "Drift", "Ember", "Fathom",
	"Gale", "Harbor", "Ironwood", "Juniper", "Keystone", "Lumen",
	"Meridian", "Nocturne", "Obsidian", "Pinnacle", "Quarry", "Rimward",
	"Solace", "Tundra", "Umbra", "Vantage", "Wildspire", "Zenith",
}

// Generate 生成一张确定性的地区图并完成初始布局
// 同一个随机源产生同一张地图。图保证连通：先串成环，再随机加弦。
func Generate(s *game.GameState, rng *game.Rand) error {
	if len(s.Players) < 2 {
		return apperrors.Newf(apperrors.ErrInvalidParam, "至少需要2名玩家，当前%d名", len(s.Players))
	}

	regionCount := len(s.Players) * RegionsPerPlayer
	regions := make([]game.Region, regionCount)
	for i := range regions {
		name := fmt.Sprintf("Region-%d", i)
		if i < len(regionNames) {
			name = regionNames[i]
		}
		regions[i] = game.Region{
			ID:        i,
			Name:      name,
			HasTemple: i%TempleRatio == 0,
		}
	}

	// 环保证连通
	for i := range regions {
		next := (i + 1) % regionCount
		link(regions, i, next)
	}

	// 随机加弦增加路线选择
	extraEdges := regionCount / 2
	for i := 0; i < extraEdges; i++ {
		a := rng.Intn(regionCount)
		b := rng.Intn(regionCount)
		if a == b || linked(regions, a, b) {
			continue
		}
		link(regions, a, b)
	}

	s.Regions = regions
	s.Owners = make(map[int]int)
	s.Garrisons = make(map[int][]game.Soldier, regionCount)
	s.Temples = make(map[int]*game.Temple)
	s.Faith = make(map[int]int, len(s.Players))

	// 出生地均匀分布在环上
	spacing := regionCount / len(s.Players)
	for i, p := range s.Players {
		homeID := i * spacing
		s.Owners[homeID] = p.Slot
		s.Garrisons[homeID] = s.MintSoldiers(HomeGarrison)
		s.Regions[homeID].HasTemple = true
		s.Faith[p.Slot] = 0
	}

	// 其余地区为中立守军
	for _, r := range s.Regions {
		if _, owned := s.Owners[r.ID]; owned {
			continue
		}
		count := MinNeutralGarrison + rng.Intn(MaxNeutralGarrison-MinNeutralGarrison+1)
		s.Garrisons[r.ID] = s.MintSoldiers(count)
	}

	s.Turn = 1
	s.CurrentPlayerSlot = s.Players[0].Slot
	s.MovesRemaining = s.MovesPerTurn(s.Players[0].Slot)
	return nil
}

// link 双向连接两个地区
func link(regions []game.Region, a, b int) {
	regions[a].Neighbors = append(regions[a].Neighbors, b)
	regions[b].Neighbors = append(regions[b].Neighbors, a)
}

// linked 判断两个地区是否已连接
func linked(regions []game.Region, a, b int) bool {
	for _, n := range regions[a].Neighbors {
		if n == b {
			return true
		}
	}
	return false
}
