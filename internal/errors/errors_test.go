package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	// 带详情的错误
	err = New(ErrNotFound, "对局不存在")
	suite.Equal(ErrNotFound, err.Code)
	suite.Equal("资源未找到", err.Message)
	suite.Equal("对局不存在", err.Details)

	// 多个详情
	err = New(ErrDatabaseConnect, "连接失败", "主机: localhost")
	suite.Equal("连接失败; 主机: localhost", err.Details)

	// 未知错误码回退到通用消息
	err = New(ErrorCode(99999))
	suite.Equal("未知错误", err.Message)
}

// 测试格式化错误创建
func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInsufficientUnits, "地区%d只有%d个单位", 3, 1)
	suite.Equal(ErrInsufficientUnits, err.Code)
	suite.Equal("地区3只有1个单位", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	original := errors.New("原始错误")
	wrapped := Wrap(original, ErrDatabaseQuery)
	suite.NotNil(wrapped)
	suite.Equal(ErrDatabaseQuery, wrapped.Code)
	suite.Equal(original, wrapped.Unwrap())
	suite.Equal("原始错误", wrapped.Details)

	// 包装nil返回nil
	suite.Nil(Wrap(nil, ErrUnknown))

	// 包装AppError保留原始错误码
	inner := New(ErrVersionConflict)
	rewrapped := Wrap(inner, ErrDatabaseWrite)
	suite.Equal(ErrVersionConflict, rewrapped.Code)
}

// 测试错误判断
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrNotYourTurn)
	suite.True(Is(err, ErrNotYourTurn))
	suite.False(Is(err, ErrGameOver))
	suite.False(Is(nil, ErrNotYourTurn))
	suite.False(Is(errors.New("普通错误"), ErrUnknown))
}

// 测试错误码提取
func (suite *ErrorsTestSuite) TestGetCode() {
	suite.Equal(ErrorCode(0), GetCode(nil))
	suite.Equal(ErrGameFull, GetCode(New(ErrGameFull)))
	suite.Equal(ErrUnknown, GetCode(errors.New("普通错误")))
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrNotFound, 404},
		{ErrUnauthorized, 401},
		{ErrBadJoinCode, 401},
		{ErrVersionConflict, 409},
		{ErrNotOwned, 400},
		{ErrNotAdjacent, 400},
		{ErrWouldEmptySource, 400},
		{ErrNotYourTurn, 400},
		{ErrGameFull, 400},
		{ErrInvalidParam, 400},
		{ErrMessageFormat, 400},
		{ErrDatabaseWrite, 500},
		{ErrSerialization, 500},
		{ErrUnknown, 500},
	}
	for _, tt := range tests {
		suite.Equal(tt.want, New(tt.code).HTTPStatus(), "错误码%d", tt.code)
	}
}

// 测试可重试判定
func (suite *ErrorsTestSuite) TestIsRetryable() {
	suite.True(IsRetryable(New(ErrVersionConflict)))
	suite.True(IsRetryable(New(ErrTimeout)))
	suite.True(IsRetryable(New(ErrDatabaseConnect)))

	suite.False(IsRetryable(nil))
	suite.False(IsRetryable(New(ErrNotYourTurn)))
	suite.False(IsRetryable(New(ErrWouldEmptySource)))
	suite.False(IsRetryable(New(ErrDatabaseWrite)))
}

// 测试错误消息格式
func (suite *ErrorsTestSuite) TestErrorString() {
	suite.Equal("[2007] 游戏已结束", New(ErrGameOver).Error())
	suite.Equal("[1002] 资源未找到: 对局x", New(ErrNotFound, "对局x").Error())
}

// 测试错误响应结构
func (suite *ErrorsTestSuite) TestNewErrorResponse() {
	resp := NewErrorResponse(New(ErrGameFull))
	suite.False(resp.Success)
	suite.Equal(ErrGameFull, resp.Error.Code)
	suite.NotZero(resp.Timestamp)
}

func TestErrorsTestSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
