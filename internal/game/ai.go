package game

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wfunc/conquest-server/internal/logger"
)

// AIPersonality AI玩家的行为参数
type AIPersonality struct {
	Aggression        float64  `json:"aggression"`         // 0..1，越高越倾向进攻
	UpgradePreference []string `json:"upgrade_preference"` // 建造时的升级偏好顺序
}

// DefaultPersonalities 创建AI时循环取用的预设性格
var DefaultPersonalities = []AIPersonality{
	{Aggression: 0.8, UpgradePreference: []string{UpgradeAttack, UpgradeExtraMove, UpgradeIncome, UpgradeDefense}},
	{Aggression: 0.5, UpgradePreference: []string{UpgradeIncome, UpgradeAttack, UpgradeDefense, UpgradeExtraMove}},
	{Aggression: 0.25, UpgradePreference: []string{UpgradeDefense, UpgradeIncome, UpgradeExtraMove, UpgradeAttack}},
}

// CommandHook 每条AI命令执行后的回调，由调用方负责持久化和广播
// 返回错误会中止本次AI推进。
type CommandHook func(cmd Command, next *GameState) error

// maxAICommands 单次推进的命令数上限，防止异常状态下死循环
const maxAICommands = 256

// RunAITurns 连续推进AI玩家的回合，直到轮到人类或游戏结束
// 每条命令通过hook交付，状态在命令间始终取hook后的最新值。
func RunAITurns(proc *Processor, s *GameState, hook CommandHook) (*GameState, error) {
	log := logger.WithModule("ai")

	for issued := 0; issued < maxAICommands; issued++ {
		if s.EndResult != nil {
			return s, nil
		}
		p := s.PlayerBySlot(s.CurrentPlayerSlot)
		if p == nil || p.Kind != PlayerKindAI || p.Eliminated {
			return s, nil
		}

		cmd := nextAICommand(s, p)
		next, err := proc.Execute(s, cmd)
		if err != nil {
			// AI命令不应被规则拒绝，出现时结束回合自保
			log.Warn("AI命令被拒绝，强制结束回合",
				zap.String("game_id", s.GameID),
				zap.Int("player", p.Slot),
				zap.String("command", cmd.Name()),
				zap.Error(err))
			next, err = proc.Execute(s, &EndTurnCommand{Player: p.Slot})
			if err != nil {
				return s, err
			}
		}

		if hook != nil {
			if err := hook(cmd, next); err != nil {
				return s, err
			}
		}
		s = next
	}

	log.Error("AI推进达到命令数上限", zap.String("game_id", s.GameID))
	return s, nil
}

// nextAICommand 为AI玩家选出下一条命令
// 优先级：行动次数用完→结束回合；有划算的进攻/调兵→执行；
// 信仰充足且有神殿→建造；否则结束回合。
func nextAICommand(s *GameState, p *Player) Command {
	if s.MovesRemaining <= 0 {
		return &EndTurnCommand{Player: p.Slot}
	}

	personality := p.Personality
	if personality == nil {
		personality = &DefaultPersonalities[1]
	}

	// 平手候选用状态内的随机数决斗，克隆一份避免改动传入状态
	rng := s.Rng.Clone()
	if cmd := pickAttack(s, p, personality, rng); cmd != nil {
		return cmd
	}
	if cmd := pickBuild(s, p, personality, rng); cmd != nil {
		return cmd
	}
	if cmd := pickReinforce(s, p); cmd != nil {
		return cmd
	}
	return &EndTurnCommand{Player: p.Slot}
}

// attackOption 候选进攻路线
type attackOption struct {
	sourceID int
	destID   int
	count    int
	ratio    float64 // 攻守兵力比
}

// pickAttack 挑选兵力优势最大的进攻路线，兵力比并列时掷骰定夺
// 激进度决定接受的最低兵力比：激进AI敢打均势仗，保守AI只打优势仗。
func pickAttack(s *GameState, p *Player, personality *AIPersonality, rng *Rand) Command {
	var options []attackOption
	for _, sourceID := range s.RegionsOwnedBy(p.Slot) {
		garrison := s.GarrisonCount(sourceID)
		if garrison < 2 {
			continue
		}
		region := s.RegionByID(sourceID)
		for _, destID := range region.Neighbors {
			owner, occupied := s.OwnerOf(destID)
			if occupied && owner == p.Slot {
				continue
			}
			attackers := garrison - 1
			defenders := s.GarrisonCount(destID)
			ratio := float64(attackers)
			if defenders > 0 {
				ratio = float64(attackers) / float64(defenders)
			}
			options = append(options, attackOption{
				sourceID: sourceID,
				destID:   destID,
				count:    attackers,
				ratio:    ratio,
			})
		}
	}
	if len(options) == 0 {
		return nil
	}

	sort.Slice(options, func(i, j int) bool {
		if options[i].ratio != options[j].ratio {
			return options[i].ratio > options[j].ratio
		}
		if options[i].sourceID != options[j].sourceID {
			return options[i].sourceID < options[j].sourceID
		}
		return options[i].destID < options[j].destID
	})

	tied := 1
	for tied < len(options) && options[tied].ratio == options[0].ratio {
		tied++
	}
	best := options[rng.Intn(tied)]
	minRatio := 2.5 - 1.5*personality.Aggression
	if best.ratio < minRatio {
		return nil
	}
	return &MoveCommand{
		Player:   p.Slot,
		SourceID: best.sourceID,
		DestID:   best.destID,
		Count:    best.count,
	}
}

// pickBuild 按性格偏好挑一个可负担的升级，多处可建时掷骰选址
func pickBuild(s *GameState, p *Player, personality *AIPersonality, rng *Rand) Command {
	prefs := personality.UpgradePreference
	if len(prefs) == 0 {
		prefs = UpgradeKinds
	}

	sites := make([]int, 0)
	for _, regionID := range s.RegionsOwnedBy(p.Slot) {
		if region := s.RegionByID(regionID); region != nil && region.HasTemple {
			sites = append(sites, regionID)
		}
	}
	if len(sites) == 0 {
		return nil
	}
	sort.Ints(sites)

	for _, kind := range prefs {
		valid := make([]int, 0, len(sites))
		for _, regionID := range sites {
			if err := ValidateBuild(s, p.Slot, regionID, kind); err == nil {
				valid = append(valid, regionID)
			}
		}
		if len(valid) > 0 {
			return &BuildCommand{Player: p.Slot, RegionID: valid[rng.Intn(len(valid))], Kind: kind}
		}
	}
	return nil
}

// pickReinforce 无仗可打时把后方兵力调往接敌前线
func pickReinforce(s *GameState, p *Player) Command {
	owned := s.RegionsOwnedBy(p.Slot)

	frontier := make(map[int]bool)
	for _, regionID := range owned {
		region := s.RegionByID(regionID)
		for _, n := range region.Neighbors {
			if owner, ok := s.OwnerOf(n); !ok || owner != p.Slot {
				frontier[regionID] = true
				break
			}
		}
	}

	var best *MoveCommand
	bestCount := 1
	for _, sourceID := range owned {
		if frontier[sourceID] {
			continue
		}
		garrison := s.GarrisonCount(sourceID)
		if garrison <= bestCount {
			continue
		}
		region := s.RegionByID(sourceID)
		for _, destID := range region.Neighbors {
			if owner, ok := s.OwnerOf(destID); ok && owner == p.Slot && frontier[destID] {
				best = &MoveCommand{
					Player:   p.Slot,
					SourceID: sourceID,
					DestID:   destID,
					Count:    garrison - 1,
				}
				bestCount = garrison
				break
			}
		}
	}
	if best == nil {
		return nil
	}
	return best
}
