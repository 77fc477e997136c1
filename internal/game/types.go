package game

// 战斗规则常量
const (
	MaxAttackerDice = 3 // 攻方单次投掷骰子上限
	MaxDefenderDice = 2 // 守方单次投掷骰子上限
	DieSides        = 6 // 骰子面数

	BaseMovesPerTurn = 3 // 每回合基础行动次数
	BaseFaithIncome  = 2 // 每回合基础信仰收入
)

// 玩家类型
const (
	PlayerKindHuman = "human"
	PlayerKindAI    = "ai"
)

// 神殿升级种类
const (
	UpgradeIncome    = "income"     // 增加每回合信仰收入
	UpgradeDefense   = "defense"    // 守方最高骰子加值
	UpgradeAttack    = "attack"     // 攻方最高骰子加值
	UpgradeExtraMove = "extra_move" // 增加每回合行动次数
)

// upgradeMaxLevel 每种升级的最高等级
var upgradeMaxLevel = map[string]int{
	UpgradeIncome:    3,
	UpgradeDefense:   2,
	UpgradeAttack:    2,
	UpgradeExtraMove: 2,
}

// upgradeCost 建造/升级费用，按目标等级索引
var upgradeCost = map[string][]int{
	UpgradeIncome:    {8, 12, 16, 20},
	UpgradeDefense:   {10, 15, 20},
	UpgradeAttack:    {10, 15, 20},
	UpgradeExtraMove: {12, 18, 24},
}

// UpgradeKinds 所有升级种类（稳定顺序，AI偏好用）
var UpgradeKinds = []string{UpgradeIncome, UpgradeDefense, UpgradeAttack, UpgradeExtraMove}

// UpgradeMaxLevel 返回某种升级的最高等级
func UpgradeMaxLevel(kind string) (int, bool) {
	max, ok := upgradeMaxLevel[kind]
	return max, ok
}

// UpgradeCost 返回建到目标等级的费用
func UpgradeCost(kind string, level int) (int, bool) {
	costs, ok := upgradeCost[kind]
	if !ok || level < 0 || level >= len(costs) {
		return 0, false
	}
	return costs[level], true
}

// Region 地区（领土图中的节点），图结构不可变
type Region struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Neighbors []int  `json:"neighbors"`
	HasTemple bool   `json:"has_temple"` // 是否为神殿地块（可建造升级）
}

// Player 对局中的玩家
type Player struct {
	Slot        int            `json:"slot"`
	Name        string         `json:"name"`
	Kind        string         `json:"kind"` // human, ai
	Personality *AIPersonality `json:"personality,omitempty"`
	Eliminated  bool           `json:"eliminated"`
	Resigned    bool           `json:"resigned"`
}

// Soldier 单个作战单位，唯一ID用于跨战斗追踪
type Soldier struct {
	ID int64 `json:"id"`
}

// Temple 地区上的神殿及其升级
type Temple struct {
	RegionID    int    `json:"region_id"`
	UpgradeKind string `json:"upgrade_kind"` // 空串表示尚未安装升级
	Level       int    `json:"level"`
}

// EndResult 对局结果
type EndResult struct {
	WinnerSlot *int `json:"winner_slot,omitempty"`
	Draw       bool `json:"draw,omitempty"`
}

// BattleRound 一轮骰子比拼
type BattleRound struct {
	AttackerDice   []int `json:"attacker_dice"` // 降序
	DefenderDice   []int `json:"defender_dice"` // 降序
	AttackerLosses int   `json:"attacker_losses"`
	DefenderLosses int   `json:"defender_losses"`
}

// BattleEvent 一场战斗的完整记录，客户端凭此回放
type BattleEvent struct {
	SourceID       int           `json:"source_id"`
	DestID         int           `json:"dest_id"`
	AttackerSlot   int           `json:"attacker_slot"`
	DefenderSlot   *int          `json:"defender_slot,omitempty"` // nil表示中立守军
	Rounds         []BattleRound `json:"rounds"`
	AttackerLosses int           `json:"attacker_losses"`
	DefenderLosses int           `json:"defender_losses"`
	Conquered      bool          `json:"conquered"`
}

// ReinforcementEvent 和平调兵记录
type ReinforcementEvent struct {
	SourceID   int `json:"source_id"`
	DestID     int `json:"dest_id"`
	PlayerSlot int `json:"player_slot"`
	Count      int `json:"count"`
}

// ConquestEvent 占领记录
type ConquestEvent struct {
	RegionID int  `json:"region_id"`
	OldOwner *int `json:"old_owner,omitempty"`
	NewOwner int  `json:"new_owner"`
}

// EliminationEvent 玩家淘汰记录
type EliminationEvent struct {
	PlayerSlot int  `json:"player_slot"`
	Turn       int  `json:"turn"`
	Resigned   bool `json:"resigned,omitempty"`
}

// Events 自上次推送以来累积的事件，推送给客户端后清空
type Events struct {
	Battles        []BattleEvent        `json:"battles,omitempty"`
	Reinforcements []ReinforcementEvent `json:"reinforcements,omitempty"`
	Conquests      []ConquestEvent      `json:"conquests,omitempty"`
	Eliminations   []EliminationEvent   `json:"eliminations,omitempty"`
}

// GameState 一局游戏的完整可序列化状态
// 只能通过命令应用产生新状态，禁止直接修改。
type GameState struct {
	GameID            string            `json:"game_id"`
	Turn              int               `json:"turn"`
	TurnLimit         int               `json:"turn_limit"`
	CurrentPlayerSlot int               `json:"current_player_slot"`
	MovesRemaining    int               `json:"moves_remaining"`
	Players           []Player          `json:"players"`
	Regions           []Region          `json:"regions"`
	Owners            map[int]int       `json:"owners"`    // 地区ID→玩家槽位，缺省为中立
	Garrisons         map[int][]Soldier `json:"garrisons"` // 地区ID→驻军
	Temples           map[int]*Temple   `json:"temples"`
	Faith             map[int]int       `json:"faith"` // 玩家槽位→信仰值
	NextSoldierID     int64             `json:"next_soldier_id"`
	Rng               *Rand             `json:"rng"`
	Events            Events            `json:"events"`
	EndResult         *EndResult        `json:"end_result,omitempty"`
}

// RegionByID 查找地区
func (s *GameState) RegionByID(id int) *Region {
	for i := range s.Regions {
		if s.Regions[i].ID == id {
			return &s.Regions[i]
		}
	}
	return nil
}

// PlayerBySlot 查找玩家
func (s *GameState) PlayerBySlot(slot int) *Player {
	for i := range s.Players {
		if s.Players[i].Slot == slot {
			return &s.Players[i]
		}
	}
	return nil
}

// OwnerOf 返回地区归属，第二个返回值为false表示中立
func (s *GameState) OwnerOf(regionID int) (int, bool) {
	owner, ok := s.Owners[regionID]
	return owner, ok
}

// GarrisonCount 返回地区驻军数量
func (s *GameState) GarrisonCount(regionID int) int {
	return len(s.Garrisons[regionID])
}

// IsAdjacent 判断两个地区是否相邻
func (s *GameState) IsAdjacent(a, b int) bool {
	region := s.RegionByID(a)
	if region == nil {
		return false
	}
	for _, n := range region.Neighbors {
		if n == b {
			return true
		}
	}
	return false
}

// RegionsOwnedBy 返回玩家拥有的地区ID列表
func (s *GameState) RegionsOwnedBy(slot int) []int {
	var owned []int
	for _, r := range s.Regions {
		if owner, ok := s.Owners[r.ID]; ok && owner == slot {
			owned = append(owned, r.ID)
		}
	}
	return owned
}

// UnitCountOf 返回玩家总兵力
func (s *GameState) UnitCountOf(slot int) int {
	total := 0
	for regionID, garrison := range s.Garrisons {
		if owner, ok := s.Owners[regionID]; ok && owner == slot {
			total += len(garrison)
		}
	}
	return total
}

// TempleLevelOf 返回玩家某种升级的等级总和
func (s *GameState) TempleLevelOf(slot int, kind string) int {
	total := 0
	for regionID, temple := range s.Temples {
		if temple == nil || temple.UpgradeKind != kind {
			continue
		}
		if owner, ok := s.Owners[regionID]; ok && owner == slot {
			// 等级0的升级也算1级效果
			total += temple.Level + 1
		}
	}
	return total
}

// MovesPerTurn 返回玩家每回合行动次数（基础+额外行动升级）
func (s *GameState) MovesPerTurn(slot int) int {
	return BaseMovesPerTurn + s.TempleLevelOf(slot, UpgradeExtraMove)
}

// MintSoldiers 铸造n个新单位
func (s *GameState) MintSoldiers(n int) []Soldier {
	soldiers := make([]Soldier, 0, n)
	for i := 0; i < n; i++ {
		s.NextSoldierID++
		soldiers = append(soldiers, Soldier{ID: s.NextSoldierID})
	}
	return soldiers
}

// TakeEvents 取走并清空累积事件（交付即清空）
func (s *GameState) TakeEvents() Events {
	events := s.Events
	s.Events = Events{}
	return events
}

// ActivePlayers 返回未被淘汰的玩家槽位
func (s *GameState) ActivePlayers() []int {
	var slots []int
	for _, p := range s.Players {
		if !p.Eliminated {
			slots = append(slots, p.Slot)
		}
	}
	return slots
}

// Clone 深拷贝状态，命令应用前调用以保证全有或全无
func (s *GameState) Clone() *GameState {
	next := *s

	next.Players = make([]Player, len(s.Players))
	copy(next.Players, s.Players)
	for i := range next.Players {
		if next.Players[i].Personality != nil {
			p := *next.Players[i].Personality
			prefs := make([]string, len(p.UpgradePreference))
			copy(prefs, p.UpgradePreference)
			p.UpgradePreference = prefs
			next.Players[i].Personality = &p
		}
	}

	// 地区图不可变，切片头复制即可
	next.Regions = s.Regions

	next.Owners = make(map[int]int, len(s.Owners))
	for k, v := range s.Owners {
		next.Owners[k] = v
	}

	next.Garrisons = make(map[int][]Soldier, len(s.Garrisons))
	for k, v := range s.Garrisons {
		garrison := make([]Soldier, len(v))
		copy(garrison, v)
		next.Garrisons[k] = garrison
	}

	next.Temples = make(map[int]*Temple, len(s.Temples))
	for k, v := range s.Temples {
		if v != nil {
			temple := *v
			next.Temples[k] = &temple
		}
	}

	next.Faith = make(map[int]int, len(s.Faith))
	for k, v := range s.Faith {
		next.Faith[k] = v
	}

	if s.Rng != nil {
		next.Rng = s.Rng.Clone()
	}

	next.Events = cloneEvents(s.Events)

	if s.EndResult != nil {
		result := *s.EndResult
		if s.EndResult.WinnerSlot != nil {
			winner := *s.EndResult.WinnerSlot
			result.WinnerSlot = &winner
		}
		next.EndResult = &result
	}

	return &next
}

// cloneEvents 深拷贝事件列表
func cloneEvents(e Events) Events {
	out := Events{}
	if len(e.Battles) > 0 {
		out.Battles = make([]BattleEvent, len(e.Battles))
		copy(out.Battles, e.Battles)
		for i := range out.Battles {
			rounds := make([]BattleRound, len(out.Battles[i].Rounds))
			copy(rounds, out.Battles[i].Rounds)
			out.Battles[i].Rounds = rounds
		}
	}
	if len(e.Reinforcements) > 0 {
		out.Reinforcements = make([]ReinforcementEvent, len(e.Reinforcements))
		copy(out.Reinforcements, e.Reinforcements)
	}
	if len(e.Conquests) > 0 {
		out.Conquests = make([]ConquestEvent, len(e.Conquests))
		copy(out.Conquests, e.Conquests)
	}
	if len(e.Eliminations) > 0 {
		out.Eliminations = make([]EliminationEvent, len(e.Eliminations))
		copy(out.Eliminations, e.Eliminations)
	}
	return out
}
