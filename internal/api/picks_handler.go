package api

import (
	"net/http"
	"strconv"
	"time"

	"PickSync/internal/model"
	"PickSync/internal/repository"
	"PickSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PickHandler 预测台账接口：生成、查询、锁定、录入结果、业绩统计
type PickHandler struct {
	picks  *service.PickService
	cache  *service.CacheService
	logger *logrus.Logger
}

func NewPickHandler(picks *service.PickService, cache *service.CacheService, logger *logrus.Logger) *PickHandler {
	return &PickHandler{
		picks:  picks,
		cache:  cache,
		logger: logger,
	}
}

// GenerateHandler 为指定比赛日生成并保存预测
// @Summary 生成当日预测
// @Param date query string false "比赛日（YYYY-MM-DD，默认今天）"
// @Success 200 {object} service.GenerateSummary
// @Failure 503 {object} map[string]string
// @Router /api/picks/generate [post]
func (h *PickHandler) GenerateHandler(c *gin.Context) {
	now := time.Now().In(h.cache.Location())

	date := c.DefaultQuery("date", now.Format(service.DateLayout))
	if _, err := time.Parse(service.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date 需为 YYYY-MM-DD 格式"})
		return
	}

	summary, err := h.picks.GeneratePicks(c.Request.Context(), date, now)
	if err != nil {
		h.logger.Errorf("生成%s预测失败: %v", date, err)
		c.JSON(httpStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListHandler 查询某比赛日的预测列表
// GET /api/picks?date=2025-01-15&best_only=true
func (h *PickHandler) ListHandler(c *gin.Context) {
	now := time.Now().In(h.cache.Location())

	date := c.DefaultQuery("date", now.Format(service.DateLayout))
	if _, err := time.Parse(service.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date 需为 YYYY-MM-DD 格式"})
		return
	}
	bestOnly, _ := strconv.ParseBool(c.DefaultQuery("best_only", "false"))

	picks, err := h.picks.ListPicks(c.Request.Context(), date, bestOnly)
	if err != nil {
		h.logger.WithError(err).Error("查询预测列表失败")
		c.JSON(httpStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":  date,
		"count": len(picks),
		"picks": picks,
	})
}

// LockHandler 锁定所有已开赛的预测
// POST /api/picks/lock
func (h *PickHandler) LockHandler(c *gin.Context) {
	now := time.Now().In(h.cache.Location())

	locked, err := h.picks.LockStartedGames(c.Request.Context(), now)
	if err != nil {
		h.logger.WithError(err).Error("锁定预测失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"locked": locked})
}

// outcomeRequest 人工录入结果的请求体
type outcomeRequest struct {
	HomeScore *int   `json:"home_score" binding:"required"`
	AwayScore *int   `json:"away_score" binding:"required"`
	Result    string `json:"result" binding:"required"`
}

// OutcomeHandler 按预测UUID人工录入比赛结果，重复录入同值不生效
// POST /api/picks/:pick_uuid/outcome
func (h *PickHandler) OutcomeHandler(c *gin.Context) {
	pickUUID := c.Param("pick_uuid")

	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体无效: " + err.Error()})
		return
	}
	switch req.Result {
	case model.ResultWon, model.ResultLost, model.ResultPush:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "result 仅支持 won/lost/push"})
		return
	}

	now := time.Now().In(h.cache.Location())
	updated, err := h.picks.RecordOutcome(c.Request.Context(), pickUUID, *req.HomeScore, *req.AwayScore, req.Result, now)
	if err != nil {
		h.logger.Errorf("录入预测%s结果失败: %v", pickUUID, err)
		c.JSON(httpStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pick_uuid": pickUUID,
		"updated":   updated,
	})
}

// PerformanceHandler 查询时间窗内的业绩统计
// GET /api/performance?start_date=2025-01-01&end_date=2025-01-31&bet_type=spread&best_only=true
func (h *PickHandler) PerformanceHandler(c *gin.Context) {
	now := time.Now().In(h.cache.Location())

	endDate := c.DefaultQuery("end_date", now.Format(service.DateLayout))
	startDate := c.DefaultQuery("start_date", now.AddDate(0, 0, -30).Format(service.DateLayout))
	for _, d := range []string{startDate, endDate} {
		if _, err := time.Parse(service.DateLayout, d); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "日期需为 YYYY-MM-DD 格式"})
			return
		}
	}

	betType := c.Query("bet_type")
	switch betType {
	case "", model.BetTypeSpread, model.BetTypeTotal, model.BetTypeMoneyline:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "bet_type 仅支持 spread/total/moneyline"})
		return
	}
	bestOnly, _ := strconv.ParseBool(c.DefaultQuery("best_only", "false"))

	summary, err := h.picks.PerformanceSummary(c.Request.Context(), startDate, endDate, repository.PickFilter{
		BetType:  betType,
		BestOnly: bestOnly,
	})
	if err != nil {
		h.logger.WithError(err).Error("查询业绩统计失败")
		c.JSON(httpStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}
