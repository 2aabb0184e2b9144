package handlers

import (
	"net/http"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/internal/service"
	"github.com/gin-gonic/gin"
)

type PlayerHandler struct {
	players *service.PlayerService
}

func NewPlayerHandler(players *service.PlayerService) *PlayerHandler {
	return &PlayerHandler{
		players: players,
	}
}

// GetPlayer 프로필 조회
func (h *PlayerHandler) GetPlayer(c *gin.Context) {
	profile, err := h.players.Get(c.Request.Context(), c.Param("playerId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"player": profile,
	})
}

// UpsertPlayer 프로필 등록/갱신 (관리자)
func (h *PlayerHandler) UpsertPlayer(c *gin.Context) {
	var req models.UpsertPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	profile, err := h.players.Upsert(c.Request.Context(), callerID(c), c.Param("playerId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"player": profile,
	})
}
