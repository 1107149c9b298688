package api

import (
	"net/http"
	"strconv"
	"time"

	"PickSync/internal/config"
	"PickSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CacheHandler 缓存网关的运维接口：手动刷新与状态查询
type CacheHandler struct {
	cache  *service.CacheService
	cfg    *config.Config
	logger *logrus.Logger
}

func NewCacheHandler(cache *service.CacheService, cfg *config.Config, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

// RefreshHandler 手动触发某比赛日起若干天的缓存刷新
// POST /api/cache/refresh?date=2025-01-15&days=3
func (h *CacheHandler) RefreshHandler(c *gin.Context) {
	now := time.Now().In(h.cache.Location())

	date := c.DefaultQuery("date", now.Format(service.DateLayout))
	if _, err := time.Parse(service.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date 需为 YYYY-MM-DD 格式"})
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(h.cfg.Sync.RefreshDays)))
	if err != nil || days < 1 || days > 31 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days 需为 1~31 的整数"})
		return
	}

	summary, err := h.cache.RefreshDate(c.Request.Context(), date, days, now)
	if err != nil {
		h.logger.Errorf("手动刷新%s缓存失败: %v", date, err)
		c.JSON(httpStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// StatusHandler 查询各数据族最近一次刷新时间
// GET /api/cache/status
func (h *CacheHandler) StatusHandler(c *gin.Context) {
	markers, err := h.cache.Markers(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("查询缓存状态失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(markers),
		"markers": markers,
	})
}
