package game

import (
	"encoding/json"

	apperrors "github.com/wfunc/conquest-server/internal/errors"
)

// EncodeState 序列化状态用于持久化
func EncodeState(s *GameState) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrSerialization, "序列化游戏状态失败")
	}
	return string(data), nil
}

// DecodeState 从持久化形式还原状态
func DecodeState(raw string) (*GameState, error) {
	var s GameState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrSerialization, "反序列化游戏状态失败")
	}
	if s.Owners == nil {
		s.Owners = make(map[int]int)
	}
	if s.Garrisons == nil {
		s.Garrisons = make(map[int][]Soldier)
	}
	if s.Temples == nil {
		s.Temples = make(map[int]*Temple)
	}
	if s.Faith == nil {
		s.Faith = make(map[int]int)
	}
	return &s, nil
}
