package game

import "sort"

// rollDice 投掷n个骰子并降序排列，bonus加到最高的一枚上
func rollDice(rng *Rand, n, bonus int) []int {
	dice := make([]int, n)
	for i := range dice {
		dice[i] = rng.RollDie(DieSides)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(dice)))
	if len(dice) > 0 && bonus > 0 {
		dice[0] += bonus
	}
	return dice
}

// scoreRound 逐对比较双方骰子，返回攻守双方各损失几个单位
// 骰子均为降序，平局算守方获胜。
func scoreRound(attackerDice, defenderDice []int) (attackerLosses, defenderLosses int) {
	pairs := len(attackerDice)
	if len(defenderDice) < pairs {
		pairs = len(defenderDice)
	}
	for i := 0; i < pairs; i++ {
		if attackerDice[i] > defenderDice[i] {
			defenderLosses++
		} else {
			attackerLosses++
		}
	}
	return attackerLosses, defenderLosses
}

// resolveBattle 解算一场攻城战，直接修改传入状态
// 攻方部队已从来源地区拨出；循环掷骰直到一方打光。
// 攻方获胜则转移归属并由幸存者驻守，失败则兵力折损不占领。
func resolveBattle(s *GameState, attackerSlot, sourceID, destID int, attackers []Soldier) BattleEvent {
	defenders := s.Garrisons[destID]

	event := BattleEvent{
		SourceID:     sourceID,
		DestID:       destID,
		AttackerSlot: attackerSlot,
	}
	if defenderSlot, ok := s.OwnerOf(destID); ok {
		slot := defenderSlot
		event.DefenderSlot = &slot
	}

	attackBonus := s.TempleLevelOf(attackerSlot, UpgradeAttack)
	defendBonus := 0
	if event.DefenderSlot != nil {
		defendBonus = s.TempleLevelOf(*event.DefenderSlot, UpgradeDefense)
	}

	for len(attackers) > 0 && len(defenders) > 0 {
		attackerCount := len(attackers)
		if attackerCount > MaxAttackerDice {
			attackerCount = MaxAttackerDice
		}
		defenderCount := len(defenders)
		if defenderCount > MaxDefenderDice {
			defenderCount = MaxDefenderDice
		}

		attackerDice := rollDice(s.Rng, attackerCount, attackBonus)
		defenderDice := rollDice(s.Rng, defenderCount, defendBonus)

		attackerLosses, defenderLosses := scoreRound(attackerDice, defenderDice)
		attackers = attackers[:len(attackers)-attackerLosses]
		defenders = defenders[:len(defenders)-defenderLosses]

		event.Rounds = append(event.Rounds, BattleRound{
			AttackerDice:   attackerDice,
			DefenderDice:   defenderDice,
			AttackerLosses: attackerLosses,
			DefenderLosses: defenderLosses,
		})
		event.AttackerLosses += attackerLosses
		event.DefenderLosses += defenderLosses
	}

	if len(defenders) == 0 && len(attackers) > 0 {
		// 攻方获胜，幸存者进驻
		event.Conquered = true
		oldOwner := event.DefenderSlot
		s.Owners[destID] = attackerSlot
		s.Garrisons[destID] = attackers
		s.Events.Conquests = append(s.Events.Conquests, ConquestEvent{
			RegionID: destID,
			OldOwner: oldOwner,
			NewOwner: attackerSlot,
		})
	} else {
		// 攻方失败，守方幸存者留守
		s.Garrisons[destID] = defenders
	}

	s.Events.Battles = append(s.Events.Battles, event)
	return event
}

// attackGroup 同一解算波次中攻向同一地区的一支部队
type attackGroup struct {
	Slot     int
	SourceID int
	Soldiers []Soldier
}

// resolveContested 解算多方部队争夺同一地区
// 各支部队按兵力从弱到强依次与当前守军交战，征服者成为新的守军，
// 后续部队继续进攻，直到归属尘埃落定或进攻方全部耗尽。
// 轮到某支部队时若该地区已归属同一玩家，则并入驻军不再交战。
func resolveContested(s *GameState, destID int, groups []attackGroup) []BattleEvent {
	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Soldiers) < len(groups[j].Soldiers)
	})

	events := make([]BattleEvent, 0, len(groups))
	for _, g := range groups {
		if owner, ok := s.OwnerOf(destID); ok && owner == g.Slot {
			s.Garrisons[destID] = append(s.Garrisons[destID], g.Soldiers...)
			continue
		}
		events = append(events, resolveBattle(s, g.Slot, g.SourceID, destID, g.Soldiers))
	}
	return events
}

// checkEliminations 淘汰没有任何地区的玩家，并判定是否产生胜者
func checkEliminations(s *GameState) {
	for i := range s.Players {
		p := &s.Players[i]
		if p.Eliminated {
			continue
		}
		if len(s.RegionsOwnedBy(p.Slot)) == 0 {
			p.Eliminated = true
			s.Events.Eliminations = append(s.Events.Eliminations, EliminationEvent{
				PlayerSlot: p.Slot,
				Turn:       s.Turn,
			})
		}
	}
	checkVictory(s)
}

// checkVictory 只剩一名玩家时结束游戏
func checkVictory(s *GameState) {
	if s.EndResult != nil {
		return
	}
	active := s.ActivePlayers()
	switch len(active) {
	case 0:
		s.EndResult = &EndResult{Draw: true}
	case 1:
		winner := active[0]
		s.EndResult = &EndResult{WinnerSlot: &winner}
	}
}

// scoreFinal 回合上限到达后的终局比分判定
// 依次比较地区数、总兵力、信仰值，仍平则判和局。
func scoreFinal(s *GameState) {
	if s.EndResult != nil {
		return
	}

	active := s.ActivePlayers()
	if len(active) == 0 {
		s.EndResult = &EndResult{Draw: true}
		return
	}

	type score struct {
		slot    int
		regions int
		units   int
		faith   int
	}
	scores := make([]score, 0, len(active))
	for _, slot := range active {
		scores = append(scores, score{
			slot:    slot,
			regions: len(s.RegionsOwnedBy(slot)),
			units:   s.UnitCountOf(slot),
			faith:   s.Faith[slot],
		})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].regions != scores[j].regions {
			return scores[i].regions > scores[j].regions
		}
		if scores[i].units != scores[j].units {
			return scores[i].units > scores[j].units
		}
		if scores[i].faith != scores[j].faith {
			return scores[i].faith > scores[j].faith
		}
		return scores[i].slot < scores[j].slot
	})

	if len(scores) > 1 &&
		scores[0].regions == scores[1].regions &&
		scores[0].units == scores[1].units &&
		scores[0].faith == scores[1].faith {
		s.EndResult = &EndResult{Draw: true}
		return
	}

	winner := scores[0].slot
	s.EndResult = &EndResult{WinnerSlot: &winner}
}
