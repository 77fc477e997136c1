package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// 游戏生命周期状态
const (
	GameStatusPending   = "PENDING"   // 等待玩家加入
	GameStatusActive    = "ACTIVE"    // 对局进行中
	GameStatusCompleted = "COMPLETED" // 对局已结束
)

// GameRecord 游戏持久化记录（每局一条）
// LastUpdateAt 同时作为乐观锁令牌：写入时必须携带读取到的值，
// 不一致则判定为版本冲突。
type GameRecord struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Status        string     `gorm:"size:20;index;not null;default:'PENDING'" json:"status"`
	Players       PlayerList `gorm:"type:json" json:"players"`
	State         string     `gorm:"type:text" json:"state,omitempty"`          // 序列化的GameState，ACTIVE后才有值
	PendingConfig JSONMap    `gorm:"type:json" json:"pending_config,omitempty"` // PENDING期间的槽位分配与对局设置
	JoinCode      string     `gorm:"size:100" json:"-"`                         // 私人对局加入码（bcrypt散列）
	CreatedAt     time.Time  `json:"created_at"`
	LastUpdateAt  time.Time  `gorm:"index" json:"last_update_at"`
}

// TableName 指定表名
func (GameRecord) TableName() string {
	return "game_records"
}

// PlayerInfo 对局玩家名单条目
type PlayerInfo struct {
	Slot      int    `json:"slot"`
	Name      string `json:"name"`
	Kind      string `json:"kind"` // human, ai
	IsCreator bool   `json:"is_creator,omitempty"`
}

// PlayerList 玩家名单JSON字段
type PlayerList []PlayerInfo

// Value 实现driver.Valuer接口
func (l PlayerList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan 实现sql.Scanner接口
func (l *PlayerList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("不支持的JSON字段类型")
	}

	return json.Unmarshal(data, l)
}

// ActiveGame 活跃对局索引（大厅列表用的二级索引）
// 可以随时通过全表扫描重建，允许短暂漂移。
type ActiveGame struct {
	GameID    string    `gorm:"primaryKey;size:36" json:"game_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ActiveGame) TableName() string {
	return "active_games"
}
