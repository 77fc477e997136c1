package game

// 测试用的固定小地图：
//
//	0 - 1 - 2
//	|       |
//	3 ------ 4
//
// 玩家0据守地区0，玩家1据守地区2，其余中立。
func newTestState(seed int64) *GameState {
	s := &GameState{
		GameID:    "test-game",
		Turn:      1,
		TurnLimit: 10,
		Players: []Player{
			{Slot: 0, Name: "Alice", Kind: PlayerKindHuman},
			{Slot: 1, Name: "Bob", Kind: PlayerKindHuman},
		},
		Regions: []Region{
			{ID: 0, Name: "North", Neighbors: []int{1, 3}, HasTemple: true},
			{ID: 1, Name: "Ridge", Neighbors: []int{0, 2}},
			{ID: 2, Name: "East", Neighbors: []int{1, 4}, HasTemple: true},
			{ID: 3, Name: "West", Neighbors: []int{0, 4}},
			{ID: 4, Name: "South", Neighbors: []int{2, 3}, HasTemple: true},
		},
		Owners:    map[int]int{0: 0, 2: 1},
		Garrisons: map[int][]Soldier{},
		Temples:   map[int]*Temple{},
		Faith:     map[int]int{0: 0, 1: 0},
		Rng:       NewRand(seed),
	}

	s.Garrisons[0] = s.MintSoldiers(4)
	s.Garrisons[2] = s.MintSoldiers(4)
	s.Garrisons[1] = s.MintSoldiers(2)
	s.Garrisons[3] = s.MintSoldiers(1)
	s.Garrisons[4] = s.MintSoldiers(2)

	s.CurrentPlayerSlot = 0
	s.MovesRemaining = s.MovesPerTurn(0)
	return s
}

// totalUnits 全图单位总数
func totalUnits(s *GameState) int {
	total := 0
	for _, garrison := range s.Garrisons {
		total += len(garrison)
	}
	return total
}
