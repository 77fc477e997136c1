package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wfunc/conquest-server/internal/errors"
	"github.com/wfunc/conquest-server/internal/utils"
)

// 上下文键
const (
	ContextKeyGameID     = "game_id"
	ContextKeyPlayerSlot = "player_slot"
	ContextKeyPlayerName = "player_name"
)

// PlayerAuth 玩家令牌鉴权中间件
// 校验Bearer令牌并把对局ID与槽位注入上下文，命令接口以此识别提交者。
func PlayerAuth(jwtManager *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			appErr := apperrors.New(apperrors.ErrUnauthorized, "缺少玩家令牌")
			c.AbortWithStatusJSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(appErr))
			return
		}

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			appErr := apperrors.Wrap(err, apperrors.ErrUnauthorized, "玩家令牌无效")
			c.AbortWithStatusJSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(appErr))
			return
		}

		// 令牌只对签发时的对局有效
		if gameID := c.Param("id"); gameID != "" && gameID != claims.GameID {
			appErr := apperrors.New(apperrors.ErrUnauthorized, "令牌与对局不匹配")
			c.AbortWithStatusJSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(appErr))
			return
		}

		c.Set(ContextKeyGameID, claims.GameID)
		c.Set(ContextKeyPlayerSlot, claims.PlayerSlot)
		c.Set(ContextKeyPlayerName, claims.PlayerName)
		c.Next()
	}
}

// extractToken 从请求中提取令牌
// 优先Authorization头，WebSocket升级请求允许query参数携带。
func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}
