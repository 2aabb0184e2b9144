package handlers

import (
	"net/http"
	"strconv"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/internal/service"
	"github.com/gin-gonic/gin"
)

const defaultLeaderboardLimit = 10

type LedgerHandler struct {
	ledger *service.EventLedger
}

func NewLedgerHandler(ledger *service.EventLedger) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
	}
}

// SubmitScore 런 점수 제출. runId 가 없으면 최근 미채점 솔로 런.
func (h *LedgerHandler) SubmitScore(c *gin.Context) {
	var req models.ScoreSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	update, err := h.ledger.SubmitScore(c.Request.Context(), callerID(c), req.RunID, req.Score)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, update)
}

// GetRun 런 조회
func (h *LedgerHandler) GetRun(c *gin.Context) {
	runID, err := strconv.ParseInt(c.Param("runId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid run id",
		})
		return
	}

	run, err := h.ledger.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run": run,
	})
}

// Rank 플레이어 누적 기록
func (h *LedgerHandler) Rank(c *gin.Context) {
	entry, err := h.ledger.RankOf(c.Request.Context(), c.Param("playerId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rank": entry,
	})
}

// Leaderboard ?limit=N 상위 N 명, ?minScore=S 이면 S 이상 전체
func (h *LedgerHandler) Leaderboard(c *gin.Context) {
	var (
		entries []models.RankEntry
		err     error
	)

	if raw, ok := c.GetQuery("minScore"); ok {
		minScore, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid minScore",
			})
			return
		}
		entries, err = h.ledger.LeaderboardAbove(c.Request.Context(), minScore)
	} else {
		limit, perr := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLeaderboardLimit)))
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid limit",
			})
			return
		}
		entries, err = h.ledger.Top(c.Request.Context(), limit)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard": entries,
		"total":       len(entries),
	})
}

// Reset 시즌 초기화 (슈퍼 관리자)
func (h *LedgerHandler) Reset(c *gin.Context) {
	if err := h.ledger.Reset(c.Request.Context(), callerID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "ledger reset",
	})
}
