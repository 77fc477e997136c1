package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown      ErrorCode = 1000
	ErrInvalidParam ErrorCode = 1001
	ErrNotFound     ErrorCode = 1002
	ErrTimeout      ErrorCode = 1003
	ErrUnauthorized ErrorCode = 1004

	// 规则校验错误 (2000-2999)
	ErrNotOwned          ErrorCode = 2000
	ErrNotAdjacent       ErrorCode = 2001
	ErrInsufficientUnits ErrorCode = 2002
	ErrWouldEmptySource  ErrorCode = 2003
	ErrInsufficientFaith ErrorCode = 2004
	ErrNoTempleSite      ErrorCode = 2005
	ErrUpgradeMaxLevel   ErrorCode = 2006
	ErrGameOver          ErrorCode = 2007
	ErrNoMovesRemaining  ErrorCode = 2008

	// 回合控制错误 (3000-3999)
	ErrNotYourTurn       ErrorCode = 3000
	ErrPlayerEliminated  ErrorCode = 3001
	ErrGameNotStarted    ErrorCode = 3002
	ErrGameAlreadyActive ErrorCode = 3003
	ErrGameFull          ErrorCode = 3004
	ErrBadJoinCode       ErrorCode = 3005

	// 通信错误 (4000-4999)
	ErrWebSocketSend   ErrorCode = 4000
	ErrWebSocketClosed ErrorCode = 4001
	ErrMessageFormat   ErrorCode = 4002
	ErrBroadcast       ErrorCode = 4003

	// 存储错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseWrite   ErrorCode = 5002
	ErrVersionConflict ErrorCode = 5003
	ErrSerialization   ErrorCode = 5004
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	ErrUnknown:      "未知错误",
	ErrInvalidParam: "无效的参数",
	ErrNotFound:     "资源未找到",
	ErrTimeout:      "操作超时",
	ErrUnauthorized: "未授权",

	ErrNotOwned:          "来源地区不属于该玩家",
	ErrNotAdjacent:       "目标地区不相邻",
	ErrInsufficientUnits: "兵力不足",
	ErrWouldEmptySource:  "来源地区必须至少保留一个单位",
	ErrInsufficientFaith: "信仰值不足",
	ErrNoTempleSite:      "该地区没有神殿",
	ErrUpgradeMaxLevel:   "升级已达最高等级",
	ErrGameOver:          "游戏已结束",
	ErrNoMovesRemaining:  "本回合行动次数已用完",

	ErrNotYourTurn:       "还没轮到该玩家",
	ErrPlayerEliminated:  "玩家已被淘汰",
	ErrGameNotStarted:    "游戏尚未开始",
	ErrGameAlreadyActive: "游戏已经开始",
	ErrGameFull:          "游戏人数已满",
	ErrBadJoinCode:       "加入码错误",

	ErrWebSocketSend:   "WebSocket发送失败",
	ErrWebSocketClosed: "WebSocket连接已关闭",
	ErrMessageFormat:   "消息格式错误",
	ErrBroadcast:       "广播消息失败",

	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDatabaseWrite:   "数据库写入失败",
	ErrVersionConflict: "版本冲突，记录已被其他请求修改",
	ErrSerialization:   "序列化失败",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode `json:"code"`    // 错误码
	Message string    `json:"message"` // 错误消息
	Details string    `json:"details"` // 详细信息
	Cause   error     `json:"-"`       // 原始错误
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrNotFound:
		return 404
	case e.Code == ErrUnauthorized || e.Code == ErrBadJoinCode:
		return 401
	case e.Code == ErrVersionConflict:
		return 409
	case e.Code >= 2000 && e.Code <= 3999:
		return 400 // 规则/回合校验失败
	case e.Code == ErrInvalidParam || e.Code == ErrMessageFormat:
		return 400
	case e.Code >= 5000 && e.Code <= 5999:
		return 500
	default:
		return 500
	}
}

// IsRetryable 判断错误是否可重试
// 只有版本冲突和临时性存储故障值得在原请求内重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch GetCode(err) {
	case ErrVersionConflict, ErrTimeout, ErrDatabaseConnect:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		Timestamp: time.Now().Unix(),
	}
}
