package game

import (
	"encoding/json"

	"go.uber.org/zap"

	apperrors "github.com/wfunc/conquest-server/internal/errors"
	"github.com/wfunc/conquest-server/internal/logger"
)

// 命令类型标识
const (
	CommandMove    = "move"
	CommandBuild   = "build"
	CommandEndTurn = "endTurn"
	CommandResign  = "resign"
)

// Command 改变游戏状态的唯一途径
// Apply在克隆后的状态上执行，出错时原状态不受影响。
type Command interface {
	Name() string
	PlayerSlot() int
	Apply(s *GameState) error
}

// MoveCommand 调兵命令，目标为敌方/中立地区时触发战斗
type MoveCommand struct {
	Player   int `json:"player"`
	SourceID int `json:"source_id"`
	DestID   int `json:"dest_id"`
	Count    int `json:"count"`
}

func (c *MoveCommand) Name() string    { return CommandMove }
func (c *MoveCommand) PlayerSlot() int { return c.Player }

func (c *MoveCommand) Apply(s *GameState) error {
	if err := checkTurn(s, c.Player); err != nil {
		return err
	}
	if s.MovesRemaining <= 0 {
		return apperrors.New(apperrors.ErrNoMovesRemaining)
	}
	if err := ValidateMove(s, c.Player, c.SourceID, c.DestID, c.Count); err != nil {
		return err
	}

	// 拨出部队，留守单位保持原顺序
	garrison := s.Garrisons[c.SourceID]
	moving := make([]Soldier, c.Count)
	copy(moving, garrison[len(garrison)-c.Count:])
	s.Garrisons[c.SourceID] = garrison[:len(garrison)-c.Count]

	destOwner, occupied := s.OwnerOf(c.DestID)
	if occupied && destOwner == c.Player {
		// 己方地区，和平调动
		s.Garrisons[c.DestID] = append(s.Garrisons[c.DestID], moving...)
		s.Events.Reinforcements = append(s.Events.Reinforcements, ReinforcementEvent{
			SourceID:   c.SourceID,
			DestID:     c.DestID,
			PlayerSlot: c.Player,
			Count:      c.Count,
		})
	} else if !occupied && s.GarrisonCount(c.DestID) == 0 {
		// 无人中立地区，直接占领
		s.Owners[c.DestID] = c.Player
		s.Garrisons[c.DestID] = moving
		s.Events.Conquests = append(s.Events.Conquests, ConquestEvent{
			RegionID: c.DestID,
			NewOwner: c.Player,
		})
	} else {
		resolveContested(s, c.DestID, []attackGroup{
			{Slot: c.Player, SourceID: c.SourceID, Soldiers: moving},
		})
	}

	s.MovesRemaining--
	checkEliminations(s)
	return nil
}

// BuildCommand 建造或升级神殿
type BuildCommand struct {
	Player   int    `json:"player"`
	RegionID int    `json:"region_id"`
	Kind     string `json:"kind"`
}

func (c *BuildCommand) Name() string    { return CommandBuild }
func (c *BuildCommand) PlayerSlot() int { return c.Player }

func (c *BuildCommand) Apply(s *GameState) error {
	if err := checkTurn(s, c.Player); err != nil {
		return err
	}
	if s.MovesRemaining <= 0 {
		return apperrors.New(apperrors.ErrNoMovesRemaining)
	}
	if err := ValidateBuild(s, c.Player, c.RegionID, c.Kind); err != nil {
		return err
	}

	targetLevel := buildTargetLevel(s, c.RegionID, c.Kind)
	cost, _ := UpgradeCost(c.Kind, targetLevel)
	s.Faith[c.Player] -= cost
	s.Temples[c.RegionID] = &Temple{
		RegionID:    c.RegionID,
		UpgradeKind: c.Kind,
		Level:       targetLevel,
	}

	s.MovesRemaining--
	return nil
}

// EndTurnCommand 结束当前玩家回合
type EndTurnCommand struct {
	Player int `json:"player"`
}

func (c *EndTurnCommand) Name() string    { return CommandEndTurn }
func (c *EndTurnCommand) PlayerSlot() int { return c.Player }

func (c *EndTurnCommand) Apply(s *GameState) error {
	if err := checkTurn(s, c.Player); err != nil {
		return err
	}

	// 回合结束结算信仰收入
	income := BaseFaithIncome + s.TempleLevelOf(c.Player, UpgradeIncome)
	s.Faith[c.Player] += income

	advanceTurn(s)
	return nil
}

// ResignCommand 玩家认输
type ResignCommand struct {
	Player int `json:"player"`
}

func (c *ResignCommand) Name() string    { return CommandResign }
func (c *ResignCommand) PlayerSlot() int { return c.Player }

func (c *ResignCommand) Apply(s *GameState) error {
	if s.EndResult != nil {
		return apperrors.New(apperrors.ErrGameOver)
	}
	p := s.PlayerBySlot(c.Player)
	if p == nil {
		return apperrors.Newf(apperrors.ErrNotFound, "玩家不存在: %d", c.Player)
	}
	if p.Eliminated {
		return apperrors.New(apperrors.ErrPlayerEliminated)
	}

	p.Eliminated = true
	p.Resigned = true
	s.Events.Eliminations = append(s.Events.Eliminations, EliminationEvent{
		PlayerSlot: c.Player,
		Turn:       s.Turn,
		Resigned:   true,
	})

	checkVictory(s)
	if s.EndResult == nil && s.CurrentPlayerSlot == c.Player {
		advanceTurn(s)
	}
	return nil
}

// checkTurn 公共的回合前置校验
func checkTurn(s *GameState, playerSlot int) error {
	if s.EndResult != nil {
		return apperrors.New(apperrors.ErrGameOver)
	}
	p := s.PlayerBySlot(playerSlot)
	if p == nil {
		return apperrors.Newf(apperrors.ErrNotFound, "玩家不存在: %d", playerSlot)
	}
	if p.Eliminated {
		return apperrors.New(apperrors.ErrPlayerEliminated)
	}
	if s.CurrentPlayerSlot != playerSlot {
		return apperrors.Newf(apperrors.ErrNotYourTurn, "当前回合属于玩家%d", s.CurrentPlayerSlot)
	}
	return nil
}

// advanceTurn 推进到下一个未淘汰玩家，回绕时回合数加一
// 到达回合上限后按比分结算终局。
func advanceTurn(s *GameState) {
	if s.EndResult != nil {
		return
	}

	current := -1
	for i, p := range s.Players {
		if p.Slot == s.CurrentPlayerSlot {
			current = i
			break
		}
	}
	if current < 0 {
		return
	}

	for step := 1; step <= len(s.Players); step++ {
		next := (current + step) % len(s.Players)
		if s.Players[next].Eliminated {
			continue
		}
		if next <= current {
			// 回绕到新回合
			s.Turn++
			if s.TurnLimit > 0 && s.Turn > s.TurnLimit {
				scoreFinal(s)
				return
			}
		}
		s.CurrentPlayerSlot = s.Players[next].Slot
		s.MovesRemaining = s.MovesPerTurn(s.Players[next].Slot)
		return
	}

	// 没有可行动的玩家
	checkVictory(s)
}

// Processor 命令处理器，克隆状态保证全有或全无
type Processor struct {
	log *zap.Logger
}

// NewProcessor 创建命令处理器
func NewProcessor() *Processor {
	return &Processor{log: logger.WithModule("game")}
}

// Execute 在克隆状态上应用命令，成功返回新状态，失败返回原状态不变
func (p *Processor) Execute(s *GameState, cmd Command) (*GameState, error) {
	next := s.Clone()
	if err := cmd.Apply(next); err != nil {
		p.log.Debug("命令被拒绝",
			zap.String("game_id", s.GameID),
			zap.String("command", cmd.Name()),
			zap.Int("player", cmd.PlayerSlot()),
			zap.Error(err))
		return s, err
	}

	p.log.Info("命令已应用",
		zap.String("game_id", s.GameID),
		zap.String("command", cmd.Name()),
		zap.Int("player", cmd.PlayerSlot()),
		zap.Int("turn", next.Turn),
		zap.Int("moves_remaining", next.MovesRemaining))
	return next, nil
}

// DecodeCommand 从客户端提交还原命令
func DecodeCommand(name string, playerSlot int, payload json.RawMessage) (Command, error) {
	var cmd Command
	switch name {
	case CommandMove:
		cmd = &MoveCommand{}
	case CommandBuild:
		cmd = &BuildCommand{}
	case CommandEndTurn:
		cmd = &EndTurnCommand{}
	case CommandResign:
		cmd = &ResignCommand{}
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "未知的命令类型: %s", name)
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, cmd); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrMessageFormat, "解析命令失败")
		}
	}

	switch c := cmd.(type) {
	case *MoveCommand:
		c.Player = playerSlot
	case *BuildCommand:
		c.Player = playerSlot
	case *EndTurnCommand:
		c.Player = playerSlot
	case *ResignCommand:
		c.Player = playerSlot
	}

	return cmd, nil
}
