package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wfunc/conquest-server/internal/config"
	apperrors "github.com/wfunc/conquest-server/internal/errors"
	"github.com/wfunc/conquest-server/internal/game"
	"github.com/wfunc/conquest-server/internal/game/worldgen"
	"github.com/wfunc/conquest-server/internal/logger"
	"github.com/wfunc/conquest-server/internal/models"
	"github.com/wfunc/conquest-server/internal/repository"
	"github.com/wfunc/conquest-server/internal/utils"
)

// Notifier 对局消息推送接口，由WebSocket Hub实现
type Notifier interface {
	NotifyGame(gameID string, msgType string, payload interface{}) int
}

// 推送消息类型，与WebSocket下行协议一致
const (
	NotifyGameUpdate   = "gameUpdate"
	NotifyGameStarted  = "gameStarted"
	NotifyPlayerJoined = "playerJoined"
	NotifyGameEnded    = "gameEnded"
)

// CreateGameRequest 创建对局请求
type CreateGameRequest struct {
	CreatorName string `json:"creator_name" binding:"required"`
	MaxPlayers  int    `json:"max_players"`
	AIPlayers   int    `json:"ai_players"`
	TurnLimit   int    `json:"turn_limit"`
	JoinCode    string `json:"join_code"` // 非空则为私人对局
	Seed        int64  `json:"seed"`      // 0表示随机
}

// JoinGameRequest 加入对局请求
type JoinGameRequest struct {
	PlayerName string `json:"player_name" binding:"required"`
	JoinCode   string `json:"join_code"`
}

// PlayerCredential 玩家身份凭证，加入对局后签发
type PlayerCredential struct {
	GameID     string `json:"game_id"`
	PlayerSlot int    `json:"player_slot"`
	Token      string `json:"token"`
}

// GameView 对局视图，对外返回的聚合结构
type GameView struct {
	ID           string             `json:"id"`
	Status       string             `json:"status"`
	Players      models.PlayerList  `json:"players"`
	State        *game.GameState    `json:"state,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	LastUpdateAt time.Time          `json:"last_update_at"`
}

// GameUpdatePayload 命令应用后的推送内容
type GameUpdatePayload struct {
	State   *game.GameState `json:"state"`
	Events  game.Events     `json:"events"`
	Command string          `json:"command,omitempty"`
}

// GameService 对局业务层
// 所有写路径走乐观并发控制，冲突时整条命令流程重试。
type GameService struct {
	repo     repository.GameRecordRepository
	notifier Notifier
	jwt      *utils.JWTManager
	proc     *game.Processor
	cfg      *config.GameConfig
	log      *zap.Logger
}

// NewGameService 创建对局服务
func NewGameService(repo repository.GameRecordRepository, notifier Notifier, jwt *utils.JWTManager, cfg *config.GameConfig) *GameService {
	return &GameService{
		repo:     repo,
		notifier: notifier,
		jwt:      jwt,
		proc:     game.NewProcessor(),
		cfg:      cfg,
		log:      logger.WithModule("service"),
	}
}

// CreateGame 创建对局，创建者占用0号槽位
func (s *GameService) CreateGame(ctx context.Context, req *CreateGameRequest) (*GameView, *PlayerCredential, error) {
	maxPlayers := req.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = s.cfg.MaxPlayers
	}
	if maxPlayers < 2 || maxPlayers > s.cfg.MaxPlayers {
		return nil, nil, apperrors.Newf(apperrors.ErrInvalidParam, "玩家人数必须在2到%d之间", s.cfg.MaxPlayers)
	}
	if req.AIPlayers < 0 || req.AIPlayers >= maxPlayers {
		return nil, nil, apperrors.Newf(apperrors.ErrInvalidParam, "AI数量必须在0到%d之间", maxPlayers-1)
	}

	turnLimit := req.TurnLimit
	if turnLimit <= 0 {
		turnLimit = s.cfg.DefaultTurnLimit
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	record := &models.GameRecord{
		ID:     uuid.New().String(),
		Status: models.GameStatusPending,
		Players: models.PlayerList{
			{Slot: 0, Name: req.CreatorName, Kind: game.PlayerKindHuman, IsCreator: true},
		},
		PendingConfig: models.JSONMap{
			"max_players": maxPlayers,
			"ai_players":  req.AIPlayers,
			"turn_limit":  turnLimit,
			// 种子以字符串存取，避免JSON数字float64化丢失低位
			"seed": strconv.FormatInt(seed, 10),
		},
	}

	if req.JoinCode != "" {
		hash, err := utils.HashJoinCode(req.JoinCode)
		if err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.ErrUnknown, "加入码散列失败")
		}
		record.JoinCode = hash
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, nil, err
	}
	if err := s.repo.AddActive(ctx, record.ID); err != nil {
		return nil, nil, err
	}

	token, err := s.jwt.GeneratePlayerToken(record.ID, 0, req.CreatorName)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrUnknown, "签发玩家令牌失败")
	}

	s.log.Info("对局已创建",
		zap.String("game_id", record.ID),
		zap.String("creator", req.CreatorName),
		zap.Int("max_players", maxPlayers))

	view, err := s.toView(record)
	if err != nil {
		return nil, nil, err
	}
	return view, &PlayerCredential{GameID: record.ID, PlayerSlot: 0, Token: token}, nil
}

// JoinGame 加入等待中的对局，人满自动开局
func (s *GameService) JoinGame(ctx context.Context, gameID string, req *JoinGameRequest) (*GameView, *PlayerCredential, error) {
	var credential *PlayerCredential
	var record *models.GameRecord

	err := s.withRetry(ctx, gameID, func(rec *models.GameRecord) error {
		if rec.Status != models.GameStatusPending {
			return apperrors.New(apperrors.ErrGameAlreadyActive)
		}
		if rec.JoinCode != "" && !utils.CheckJoinCode(req.JoinCode, rec.JoinCode) {
			return apperrors.New(apperrors.ErrBadJoinCode)
		}

		maxPlayers := intFromConfig(rec.PendingConfig, "max_players", s.cfg.MaxPlayers)
		aiPlayers := intFromConfig(rec.PendingConfig, "ai_players", 0)
		humanSeats := maxPlayers - aiPlayers
		humans := 0
		for _, p := range rec.Players {
			if p.Kind == game.PlayerKindHuman {
				humans++
			}
		}
		if humans >= humanSeats {
			return apperrors.New(apperrors.ErrGameFull)
		}

		slot := nextFreeSlot(rec.Players)
		rec.Players = append(rec.Players, models.PlayerInfo{
			Slot: slot,
			Name: req.PlayerName,
			Kind: game.PlayerKindHuman,
		})

		token, err := s.jwt.GeneratePlayerToken(gameID, slot, req.PlayerName)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrUnknown, "签发玩家令牌失败")
		}
		credential = &PlayerCredential{GameID: gameID, PlayerSlot: slot, Token: token}

		// 人类坐满后立即开局
		if humans+1 >= humanSeats {
			if err := s.materialize(rec); err != nil {
				return err
			}
		}

		record = rec
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.notifier.NotifyGame(gameID, NotifyPlayerJoined, map[string]interface{}{
		"player_slot": credential.PlayerSlot,
		"player_name": req.PlayerName,
	})
	if record.Status == models.GameStatusActive {
		s.broadcastStart(record)
		record = s.runPendingAI(ctx, gameID, record)
	}

	view, err := s.toView(record)
	if err != nil {
		return nil, nil, err
	}
	return view, credential, nil
}

// StartGame 创建者提前开局，空位补AI
func (s *GameService) StartGame(ctx context.Context, gameID string, playerSlot int) (*GameView, error) {
	var record *models.GameRecord

	err := s.withRetry(ctx, gameID, func(rec *models.GameRecord) error {
		if rec.Status != models.GameStatusPending {
			return apperrors.New(apperrors.ErrGameAlreadyActive)
		}

		creator := -1
		for _, p := range rec.Players {
			if p.IsCreator {
				creator = p.Slot
				break
			}
		}
		if creator != playerSlot {
			return apperrors.New(apperrors.ErrUnauthorized, "只有创建者可以开局")
		}
		if len(rec.Players) < 2 {
			// 一个人也能玩，对手全部补AI
			if intFromConfig(rec.PendingConfig, "max_players", s.cfg.MaxPlayers) < 2 {
				return apperrors.New(apperrors.ErrInvalidParam, "至少需要2名玩家")
			}
		}

		if err := s.materialize(rec); err != nil {
			return err
		}
		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcastStart(record)
	record = s.runPendingAI(ctx, gameID, record)
	return s.toView(record)
}

// materialize 把等待中的对局固化为开局状态
// 空位补AI玩家，生成地图，状态切到ACTIVE。
func (s *GameService) materialize(rec *models.GameRecord) error {
	maxPlayers := intFromConfig(rec.PendingConfig, "max_players", s.cfg.MaxPlayers)
	turnLimit := intFromConfig(rec.PendingConfig, "turn_limit", s.cfg.DefaultTurnLimit)
	seed := int64FromConfig(rec.PendingConfig, "seed", time.Now().UnixNano())

	for len(rec.Players) < maxPlayers {
		slot := nextFreeSlot(rec.Players)
		rec.Players = append(rec.Players, models.PlayerInfo{
			Slot: slot,
			Name: aiName(slot),
			Kind: game.PlayerKindAI,
		})
	}

	players := make([]game.Player, 0, len(rec.Players))
	aiIndex := 0
	for _, p := range rec.Players {
		player := game.Player{Slot: p.Slot, Name: p.Name, Kind: p.Kind}
		if p.Kind == game.PlayerKindAI {
			personality := game.DefaultPersonalities[aiIndex%len(game.DefaultPersonalities)]
			player.Personality = &personality
			aiIndex++
		}
		players = append(players, player)
	}

	state := &game.GameState{
		GameID:    rec.ID,
		TurnLimit: turnLimit,
		Players:   players,
		Rng:       game.NewRand(seed),
	}
	if err := worldgen.Generate(state, state.Rng); err != nil {
		return err
	}

	encoded, err := game.EncodeState(state)
	if err != nil {
		return err
	}
	rec.State = encoded
	rec.Status = models.GameStatusActive

	s.log.Info("对局开始",
		zap.String("game_id", rec.ID),
		zap.Int("players", len(players)),
		zap.Int("turn_limit", turnLimit))
	return nil
}

// GetGame 查询对局
// 顺带做被动推进：轮到AI时趁机跑AI回合，版本冲突静默放弃，
// 说明有别的请求已经在推进了。
func (s *GameService) GetGame(ctx context.Context, gameID string) (*GameView, error) {
	record, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if record.Status == models.GameStatusActive {
		record = s.runPendingAI(ctx, gameID, record)
	}

	return s.toView(record)
}

// ListGames 按状态分页列出对局
func (s *GameService) ListGames(ctx context.Context, status string, page, pageSize int) ([]*GameView, *repository.Pagination, error) {
	pagination := repository.NewPagination(page, pageSize)
	records, err := s.repo.List(ctx, status, pagination)
	if err != nil {
		return nil, nil, err
	}

	views := make([]*GameView, 0, len(records))
	for _, rec := range records {
		// 列表视图不携带完整状态
		views = append(views, &GameView{
			ID:           rec.ID,
			Status:       rec.Status,
			Players:      rec.Players,
			CreatedAt:    rec.CreatedAt,
			LastUpdateAt: rec.LastUpdateAt,
		})
	}
	return views, pagination, nil
}

// ListActiveGames 返回活跃对局ID
func (s *GameService) ListActiveGames(ctx context.Context) ([]string, error) {
	return s.repo.ListActive(ctx)
}

// SubmitCommand 提交玩家命令，成功后推送更新并接续AI回合
func (s *GameService) SubmitCommand(ctx context.Context, gameID string, cmd game.Command) (*GameView, error) {
	var record *models.GameRecord
	var payload *GameUpdatePayload

	err := s.withRetry(ctx, gameID, func(rec *models.GameRecord) error {
		if rec.Status == models.GameStatusPending {
			return apperrors.New(apperrors.ErrGameNotStarted)
		}
		state, err := game.DecodeState(rec.State)
		if err != nil {
			return err
		}
		if rec.Status == models.GameStatusCompleted || state.EndResult != nil {
			return apperrors.New(apperrors.ErrGameOver)
		}

		next, err := s.proc.Execute(state, cmd)
		if err != nil {
			return err
		}

		events := next.TakeEvents()
		encoded, err := game.EncodeState(next)
		if err != nil {
			return err
		}
		rec.State = encoded
		if next.EndResult != nil {
			rec.Status = models.GameStatusCompleted
		}

		payload = &GameUpdatePayload{State: next, Events: events, Command: cmd.Name()}
		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyGame(gameID, NotifyGameUpdate, payload)
	if record.Status == models.GameStatusCompleted {
		s.finishGame(ctx, gameID, payload.State)
	} else {
		record = s.runPendingAI(ctx, gameID, record)
	}

	return s.toView(record)
}

// Resign 玩家认输
func (s *GameService) Resign(ctx context.Context, gameID string, playerSlot int) (*GameView, error) {
	return s.SubmitCommand(ctx, gameID, &game.ResignCommand{Player: playerSlot})
}

// HandleDisconnect WebSocket掉线处理：等待中的对局移除玩家，进行中的对局判定认输
// 推进失败只记日志，掉线不应把连接层拖垮。
func (s *GameService) HandleDisconnect(gameID string, playerSlot int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	record, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		s.log.Warn("掉线处理查询对局失败",
			zap.String("game_id", gameID),
			zap.Error(err))
		return
	}

	switch record.Status {
	case models.GameStatusPending:
		err = s.withRetry(ctx, gameID, func(rec *models.GameRecord) error {
			for i, p := range rec.Players {
				if p.Slot == playerSlot && !p.IsCreator {
					rec.Players = append(rec.Players[:i], rec.Players[i+1:]...)
					break
				}
			}
			return nil
		})
	case models.GameStatusActive:
		_, err = s.Resign(ctx, gameID, playerSlot)
	default:
		return
	}

	if err != nil {
		s.log.Warn("掉线处理失败",
			zap.String("game_id", gameID),
			zap.Int("player_slot", playerSlot),
			zap.Error(err))
	}
}

// RebuildActiveIndex 启动时重建活跃对局索引
func (s *GameService) RebuildActiveIndex(ctx context.Context) error {
	if err := s.repo.RebuildActiveIndex(ctx); err != nil {
		return err
	}
	ids, err := s.repo.ListActive(ctx)
	if err != nil {
		return err
	}
	s.log.Info("活跃对局索引已重建", zap.Int("count", len(ids)))
	return nil
}

// runPendingAI 轮到AI时推进AI回合
// 每条AI命令单独持久化并广播；版本冲突说明有并发推进者，静默退出。
func (s *GameService) runPendingAI(ctx context.Context, gameID string, record *models.GameRecord) *models.GameRecord {
	state, err := game.DecodeState(record.State)
	if err != nil {
		s.log.Error("解码对局状态失败", zap.String("game_id", gameID), zap.Error(err))
		return record
	}

	current := state.PlayerBySlot(state.CurrentPlayerSlot)
	if state.EndResult != nil || current == nil || current.Kind != game.PlayerKindAI {
		return record
	}

	hook := func(cmd game.Command, next *game.GameState) error {
		events := next.TakeEvents()
		encoded, err := game.EncodeState(next)
		if err != nil {
			return err
		}
		record.State = encoded
		if next.EndResult != nil {
			record.Status = models.GameStatusCompleted
		}
		if err := s.repo.SaveWithVersion(ctx, record, record.LastUpdateAt); err != nil {
			return err
		}

		s.notifier.NotifyGame(gameID, NotifyGameUpdate, &GameUpdatePayload{
			State:   next,
			Events:  events,
			Command: cmd.Name(),
		})

		// 给客户端留出播放动画的间隔
		if s.cfg.AITurnDelay > 0 {
			select {
			case <-ctx.Done():
				return apperrors.Wrap(ctx.Err(), apperrors.ErrTimeout)
			case <-time.After(s.cfg.AITurnDelay):
			}
		}
		return nil
	}

	final, err := game.RunAITurns(s.proc, state, hook)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrVersionConflict) {
			s.log.Debug("AI推进遇到并发修改，放弃本次推进",
				zap.String("game_id", gameID))
		} else {
			s.log.Error("AI推进失败",
				zap.String("game_id", gameID),
				zap.Error(err))
		}
		return record
	}

	if final.EndResult != nil {
		s.finishGame(ctx, gameID, final)
	}
	return record
}

// finishGame 终局收尾：移出活跃索引并广播结果
func (s *GameService) finishGame(ctx context.Context, gameID string, state *game.GameState) {
	if err := s.repo.RemoveActive(ctx, gameID); err != nil {
		s.log.Warn("移出活跃索引失败",
			zap.String("game_id", gameID),
			zap.Error(err))
	}

	s.notifier.NotifyGame(gameID, NotifyGameEnded, state.EndResult)
	logger.LogGameEvent("game_ended", gameID, map[string]interface{}{
		"turn": state.Turn,
	})
}

// broadcastStart 广播开局消息
func (s *GameService) broadcastStart(record *models.GameRecord) {
	state, err := game.DecodeState(record.State)
	if err != nil {
		s.log.Error("解码开局状态失败", zap.String("game_id", record.ID), zap.Error(err))
		return
	}
	s.notifier.NotifyGame(record.ID, NotifyGameStarted, &GameUpdatePayload{State: state})
}

// withRetry 读取-修改-条件写入，版本冲突时重新读取重试
// 每轮回调拿到的都是最新读取的记录。
func (s *GameService) withRetry(ctx context.Context, gameID string, fn func(rec *models.GameRecord) error) error {
	attempts := s.cfg.SaveRetries
	if attempts <= 0 {
		attempts = 1
	}
	backoff := s.cfg.RetryBackoff

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return apperrors.Wrap(ctx.Err(), apperrors.ErrTimeout)
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		record, err := s.repo.FindByID(ctx, gameID)
		if err != nil {
			return err
		}

		expected := record.LastUpdateAt
		if err := fn(record); err != nil {
			return err
		}

		err = s.repo.SaveWithVersion(ctx, record, expected)
		if err == nil {
			return nil
		}
		if !apperrors.Is(err, apperrors.ErrVersionConflict) {
			return err
		}
		lastErr = err
		s.log.Debug("版本冲突，重试",
			zap.String("game_id", gameID),
			zap.Int("attempt", i+1))
	}
	return lastErr
}

// toView 组装对局视图
func (s *GameService) toView(record *models.GameRecord) (*GameView, error) {
	view := &GameView{
		ID:           record.ID,
		Status:       record.Status,
		Players:      record.Players,
		CreatedAt:    record.CreatedAt,
		LastUpdateAt: record.LastUpdateAt,
	}
	if record.State != "" {
		state, err := game.DecodeState(record.State)
		if err != nil {
			return nil, err
		}
		view.State = state
	}
	return view, nil
}

// nextFreeSlot 返回花名册中最小的空闲槽位
// 等待期玩家可能从花名册中途退出，槽位号不一定连续。
func nextFreeSlot(players models.PlayerList) int {
	taken := make(map[int]bool, len(players))
	for _, p := range players {
		taken[p.Slot] = true
	}
	slot := 0
	for taken[slot] {
		slot++
	}
	return slot
}

// intFromConfig 从JSON配置里取整数，JSON数字解码为float64
func intFromConfig(m models.JSONMap, key string, fallback int) int {
	if m == nil {
		return fallback
	}
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// int64FromConfig 从JSON配置里取int64
// 大数值（如时间戳种子）以字符串存储，float64精度不够。
func int64FromConfig(m models.JSONMap, key string, fallback int64) int64 {
	if m == nil {
		return fallback
	}
	switch v := m[key].(type) {
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		return fallback
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return fallback
	}
}

// aiName AI玩家命名
func aiName(slot int) string {
	names := []string{"General Vex", "Warlord Kain", "Commander Sol", "Overseer Nyx", "Marshal Thorne", "Castellan Rook"}
	return names[slot%len(names)]
}
