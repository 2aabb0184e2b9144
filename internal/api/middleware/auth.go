package middleware

import (
	"errors"
	"net/http"
	"strings"

	jwtutil "github.com/576576/hadesstar-bot/pkg/jwt"
	"github.com/gin-gonic/gin"
)

// PlayerIDKey 인증된 플레이어 ID 의 gin 컨텍스트 키
const PlayerIDKey = "playerId"

var errMissingToken = errors.New("authorization required")

// Auth 채팅 브리지가 발급한 플레이어 토큰 검증
func Auth(jwtManager *jwtutil.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		claims, err := jwtManager.Verify(token)
		switch {
		case errors.Is(err, jwtutil.ErrExpiredToken):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(PlayerIDKey, claims.PlayerID)
		c.Next()
	}
}

// extractToken "Bearer <token>" 헤더. 브라우저 WebSocket 은 헤더를 못 붙이므로 /ws 는 ?token= 도 받는다.
func extractToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if websocketUpgrade(c) {
			if token := c.Query("token"); token != "" {
				return token, nil
			}
		}
		return "", errMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

func websocketUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}
