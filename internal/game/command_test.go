package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wfunc/conquest-server/internal/errors"
)

func TestMoveCommandPeacefulTransfer(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)
	s.Owners[1] = 0
	before := totalUnits(s)

	cmd := &MoveCommand{Player: 0, SourceID: 0, DestID: 1, Count: 2}
	next, err := proc.Execute(s, cmd)
	require.NoError(t, err)

	// 原状态不受影响
	assert.Equal(t, 4, s.GarrisonCount(0))

	assert.Equal(t, 2, next.GarrisonCount(0))
	assert.Equal(t, 4, next.GarrisonCount(1))
	assert.Equal(t, before, totalUnits(next), "和平调动不改变总兵力")
	assert.Equal(t, s.MovesRemaining-1, next.MovesRemaining)
	require.Len(t, next.Events.Reinforcements, 1)
	assert.Empty(t, next.Events.Battles)
}

func TestMoveCommandEmptyNeutralCapture(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)
	s.Garrisons[3] = nil

	cmd := &MoveCommand{Player: 0, SourceID: 0, DestID: 3, Count: 2}
	next, err := proc.Execute(s, cmd)
	require.NoError(t, err)

	assert.Equal(t, 0, next.Owners[3], "无人地区直接占领")
	assert.Equal(t, 2, next.GarrisonCount(3))
	assert.Empty(t, next.Events.Battles, "无人地区不触发战斗")
	require.Len(t, next.Events.Conquests, 1)
}

func TestMoveCommandAttackTriggersBattle(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)

	cmd := &MoveCommand{Player: 0, SourceID: 0, DestID: 1, Count: 3}
	next, err := proc.Execute(s, cmd)
	require.NoError(t, err)

	require.Len(t, next.Events.Battles, 1)
	assert.Equal(t, 1, next.GarrisonCount(0), "留守单位保持不动")
}

func TestMoveCommandAllOrNothing(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)

	cmd := &MoveCommand{Player: 0, SourceID: 0, DestID: 1, Count: 4} // 不留守，非法
	next, err := proc.Execute(s, cmd)
	assert.True(t, apperrors.Is(err, apperrors.ErrWouldEmptySource))
	assert.Same(t, s, next, "失败时返回原状态")
	assert.Equal(t, 4, s.GarrisonCount(0))
	assert.Equal(t, s.MovesRemaining, next.MovesRemaining)
}

func TestMoveCommandWrongTurn(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)

	cmd := &MoveCommand{Player: 1, SourceID: 2, DestID: 1, Count: 2}
	_, err := proc.Execute(s, cmd)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotYourTurn))
}

func TestMoveCommandNoMovesRemaining(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)
	s.MovesRemaining = 0

	cmd := &MoveCommand{Player: 0, SourceID: 0, DestID: 1, Count: 1}
	_, err := proc.Execute(s, cmd)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoMovesRemaining))
}

func TestBuildCommandLevels(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)
	s.Faith[0] = 100

	// 第一次建造，0级
	next, err := proc.Execute(s, &BuildCommand{Player: 0, RegionID: 0, Kind: UpgradeIncome})
	require.NoError(t, err)
	temple := next.Temples[0]
	require.NotNil(t, temple)
	assert.Equal(t, UpgradeIncome, temple.UpgradeKind)
	assert.Equal(t, 0, temple.Level)
	cost0, _ := UpgradeCost(UpgradeIncome, 0)
	assert.Equal(t, 100-cost0, next.Faith[0])

	// 同种升级升到1级
	next.MovesRemaining = 3
	next2, err := proc.Execute(next, &BuildCommand{Player: 0, RegionID: 0, Kind: UpgradeIncome})
	require.NoError(t, err)
	assert.Equal(t, 1, next2.Temples[0].Level)

	// 换种类从0级重建
	next2.MovesRemaining = 3
	next3, err := proc.Execute(next2, &BuildCommand{Player: 0, RegionID: 0, Kind: UpgradeDefense})
	require.NoError(t, err)
	assert.Equal(t, UpgradeDefense, next3.Temples[0].UpgradeKind)
	assert.Equal(t, 0, next3.Temples[0].Level)
}

func TestEndTurnAdvancesAndAccruesIncome(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)

	next, err := proc.Execute(s, &EndTurnCommand{Player: 0})
	require.NoError(t, err)

	assert.Equal(t, BaseFaithIncome, next.Faith[0], "回合结束结算基础收入")
	assert.Equal(t, 1, next.CurrentPlayerSlot)
	assert.Equal(t, 1, next.Turn, "未回绕不进新回合")
	assert.Equal(t, next.MovesPerTurn(1), next.MovesRemaining)

	// 玩家1结束回合后回绕，回合数加一
	next2, err := proc.Execute(next, &EndTurnCommand{Player: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, next2.CurrentPlayerSlot)
	assert.Equal(t, 2, next2.Turn)
}

func TestEndTurnIncomeTemples(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)
	s.Temples[0] = &Temple{RegionID: 0, UpgradeKind: UpgradeIncome, Level: 1}

	next, err := proc.Execute(s, &EndTurnCommand{Player: 0})
	require.NoError(t, err)
	// 1级收入神殿提供2点加成
	assert.Equal(t, BaseFaithIncome+2, next.Faith[0])
}

func TestEndTurnSkipsEliminated(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)
	s.Players = append(s.Players, Player{Slot: 2, Name: "Carol", Kind: PlayerKindHuman})
	s.Players[1].Eliminated = true
	s.Owners[4] = 2

	next, err := proc.Execute(s, &EndTurnCommand{Player: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, next.CurrentPlayerSlot, "跳过被淘汰的玩家")
}

func TestEndTurnReachesTurnLimit(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)
	s.Turn = s.TurnLimit
	// 玩家0兵力占优
	s.Garrisons[0] = append(s.Garrisons[0], s.MintSoldiers(5)...)

	next, err := proc.Execute(s, &EndTurnCommand{Player: 0})
	require.NoError(t, err)
	next2, err := proc.Execute(next, &EndTurnCommand{Player: 1})
	require.NoError(t, err)

	require.NotNil(t, next2.EndResult)
	require.NotNil(t, next2.EndResult.WinnerSlot)
	assert.Equal(t, 0, *next2.EndResult.WinnerSlot)
}

func TestResignCommand(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)

	next, err := proc.Execute(s, &ResignCommand{Player: 1})
	require.NoError(t, err)

	p1 := next.PlayerBySlot(1)
	assert.True(t, p1.Eliminated)
	assert.True(t, p1.Resigned)
	require.NotNil(t, next.EndResult)
	require.NotNil(t, next.EndResult.WinnerSlot)
	assert.Equal(t, 0, *next.EndResult.WinnerSlot)

	// 终局后不再接受命令
	_, err = proc.Execute(next, &EndTurnCommand{Player: 0})
	assert.True(t, apperrors.Is(err, apperrors.ErrGameOver))
}

func TestResignCurrentPlayerAdvancesTurn(t *testing.T) {
	proc := NewProcessor()
	s := newTestState(1)
	s.Players = append(s.Players, Player{Slot: 2, Name: "Carol", Kind: PlayerKindHuman})
	s.Owners[4] = 2
	s.Garrisons[4] = s.MintSoldiers(2)

	next, err := proc.Execute(s, &ResignCommand{Player: 0})
	require.NoError(t, err)
	assert.Nil(t, next.EndResult, "还剩两名玩家")
	assert.Equal(t, 1, next.CurrentPlayerSlot, "当前玩家认输后立即换人")
}

func TestCommandSerializationReplay(t *testing.T) {
	proc := NewProcessor()
	original := &MoveCommand{Player: 0, SourceID: 0, DestID: 1, Count: 3}

	payload, err := json.Marshal(original)
	require.NoError(t, err)
	decoded, err := DecodeCommand(CommandMove, 0, payload)
	require.NoError(t, err)

	// 序列化还原后的命令在同一状态上产生同一结果
	a, err := proc.Execute(newTestState(55), original)
	require.NoError(t, err)
	b, err := proc.Execute(newTestState(55), decoded)
	require.NoError(t, err)

	assert.Equal(t, a.Owners, b.Owners)
	assert.Equal(t, a.Garrisons, b.Garrisons)
	assert.Equal(t, a.Rng, b.Rng)
}

func TestDecodeCommandOverridesPlayer(t *testing.T) {
	// 提交者不能冒充别的槽位
	payload := []byte(`{"player":1,"source_id":0,"dest_id":1,"count":2}`)
	cmd, err := DecodeCommand(CommandMove, 0, payload)
	require.NoError(t, err)
	assert.Equal(t, 0, cmd.PlayerSlot())
}

func TestDecodeCommandUnknownType(t *testing.T) {
	_, err := DecodeCommand("teleport", 0, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}

func TestStateCloneIsolation(t *testing.T) {
	s := newTestState(1)
	clone := s.Clone()

	clone.Owners[3] = 1
	clone.Garrisons[0] = clone.Garrisons[0][:1]
	clone.Faith[0] = 99
	clone.Rng.Intn(10)

	_, ok := s.Owners[3]
	assert.False(t, ok)
	assert.Equal(t, 4, s.GarrisonCount(0))
	assert.Equal(t, 0, s.Faith[0])
	assert.Equal(t, NewRand(1), s.Rng, "克隆消耗随机数不影响原状态")
}

func TestStateJSONRoundTrip(t *testing.T) {
	s := newTestState(42)
	s.Temples[0] = &Temple{RegionID: 0, UpgradeKind: UpgradeAttack, Level: 1}

	encoded, err := EncodeState(s)
	require.NoError(t, err)
	restored, err := DecodeState(encoded)
	require.NoError(t, err)

	assert.Equal(t, s.Owners, restored.Owners)
	assert.Equal(t, s.Garrisons, restored.Garrisons)
	assert.Equal(t, s.Temples, restored.Temples)
	assert.Equal(t, s.Rng, restored.Rng)
	assert.Equal(t, s.NextSoldierID, restored.NextSoldierID)
}
