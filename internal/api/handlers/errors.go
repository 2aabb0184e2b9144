package handlers

import (
	"errors"
	"net/http"

	"github.com/576576/hadesstar-bot/internal/api/middleware"
	"github.com/576576/hadesstar-bot/internal/service"
	"github.com/576576/hadesstar-bot/pkg/logger"
	"github.com/gin-gonic/gin"
)

// respondError 서비스 에러를 HTTP 응답으로 변환
func respondError(c *gin.Context, err error) {
	var (
		notEligible   *service.NotEligibleError
		alreadyQueued *service.AlreadyQueuedError
	)

	switch {
	case errors.As(err, &notEligible):
		c.JSON(http.StatusForbidden, gin.H{
			"error":       notEligible.Error(),
			"eligibility": notEligible,
		})
	case errors.As(err, &alreadyQueued):
		c.JSON(http.StatusConflict, gin.H{
			"error": alreadyQueued.Error(),
			"key":   alreadyQueued.Key,
		})
	case errors.Is(err, service.ErrNotQueued),
		errors.Is(err, service.ErrRunNotFound),
		errors.Is(err, service.ErrPlayerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRunAlreadyScored):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrForbiddenCrossPlayerAccess):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidScore):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		// 저장소 장애의 세부 내용은 로그에만 남긴다
		logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "operation failed, try again",
		})
	}
}

// callerID 인증 미들웨어가 넣은 플레이어 ID
func callerID(c *gin.Context) string {
	return c.GetString(middleware.PlayerIDKey)
}
