package api

import (
	"net/http"
	"time"

	"PickSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ResultHandler 结果对账接口
type ResultHandler struct {
	results *service.ResultSyncService
	cache   *service.CacheService
	logger  *logrus.Logger
}

func NewResultHandler(results *service.ResultSyncService, cache *service.CacheService, logger *logrus.Logger) *ResultHandler {
	return &ResultHandler{
		results: results,
		cache:   cache,
		logger:  logger,
	}
}

// SyncHandler 对指定比赛日执行先锁定后判定的结果对账
// POST /api/results/sync?date=2025-01-14
func (h *ResultHandler) SyncHandler(c *gin.Context) {
	now := time.Now().In(h.cache.Location())

	date := c.DefaultQuery("date", now.Format(service.DateLayout))
	if _, err := time.Parse(service.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date 需为 YYYY-MM-DD 格式"})
		return
	}

	summary, err := h.results.SyncResults(c.Request.Context(), date, now)
	if err != nil {
		h.logger.Errorf("同步%s结果失败: %v", date, err)
		c.JSON(httpStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}
