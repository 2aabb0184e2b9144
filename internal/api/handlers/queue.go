package handlers

import (
	"net/http"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/internal/service"
	"github.com/gin-gonic/gin"
)

type QueueHandler struct {
	crew     *service.CrewService
	resolver *models.QueueKeyResolver
}

func NewQueueHandler(crew *service.CrewService, resolver *models.QueueKeyResolver) *QueueHandler {
	return &QueueHandler{
		crew:     crew,
		resolver: resolver,
	}
}

// JoinRequest 채팅 토큰 ("D9", "HK", "S")
type JoinRequest struct {
	Token string `json:"token" binding:"required"`
}

// Join 대기열 참가. 해석되지 않는 토큰은 204 로 조용히 무시한다.
func (h *QueueHandler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	key := h.resolver.Resolve(req.Token)
	if key == nil {
		c.Status(http.StatusNoContent)
		return
	}

	result, err := h.crew.Join(c.Request.Context(), callerID(c), *key)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Quit 현재 대기열에서 나가기
func (h *QueueHandler) Quit(c *gin.Context) {
	result, err := h.crew.Quit(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// List 한 대기열의 현황. 레벨 없는 토큰은 모든 레벨을 보여준다.
func (h *QueueHandler) List(c *gin.Context) {
	key := h.resolver.Resolve(c.Param("token"))
	if key == nil {
		c.Status(http.StatusNoContent)
		return
	}

	if key.HasLevel() {
		occ, err := h.crew.List(c.Request.Context(), *key)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"queues": []models.Occupancy{*occ},
		})
		return
	}

	queues := make([]models.Occupancy, 0, models.LevelCount)
	for level := models.MinLevel; level <= models.MaxLevel; level++ {
		occ, err := h.crew.List(c.Request.Context(), key.WithLevel(level))
		if err != nil {
			respondError(c, err)
			return
		}
		if occ.Count() > 0 {
			queues = append(queues, *occ)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"queues": queues,
	})
}

// Snapshot 사람이 있는 모든 대기열
func (h *QueueHandler) Snapshot(c *gin.Context) {
	queues, err := h.crew.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queues": queues,
		"total":  len(queues),
	})
}

// Reset 모든 대기열 비우기 (관리자)
func (h *QueueHandler) Reset(c *gin.Context) {
	if err := h.crew.ResetQueues(c.Request.Context(), callerID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "all queues cleared",
	})
}
