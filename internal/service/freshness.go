package service

import (
	"time"

	"PickSync/internal/config"
)

// CacheKind 缓存数据族
type CacheKind string

const (
	CacheKindTeams       CacheKind = "teams"        // 球队主数据
	CacheKindTeamStats   CacheKind = "team_stats"   // 赛季统计快照
	CacheKindGames       CacheKind = "games"        // 赛程列表
	CacheKindRecentGames CacheKind = "recent_games" // 近期完赛结果
)

// FreshnessPolicy 新鲜度判定。纯函数，不读时钟不做 IO，时间全部由调用方注入。
// 窗口为 0 的数据族视为"存在即新鲜"（目前只有球队主数据）。
type FreshnessPolicy struct {
	maxAge map[CacheKind]time.Duration
}

func NewFreshnessPolicy(cfg *config.CacheConfig) *FreshnessPolicy {
	return &FreshnessPolicy{
		maxAge: map[CacheKind]time.Duration{
			CacheKindTeams:       0,
			CacheKindTeamStats:   time.Duration(cfg.TeamStatsTTLHours) * time.Hour,
			CacheKindGames:       time.Duration(cfg.GamesTTLHours) * time.Hour,
			CacheKindRecentGames: time.Duration(cfg.RecentGamesTTLHours) * time.Hour,
		},
	}
}

// IsStale 判定某数据族在 now 时刻是否过期。
// lastRefresh 零值表示从未刷新过，直接判过期；恰好等于窗口边界视为新鲜。
func (p *FreshnessPolicy) IsStale(kind CacheKind, lastRefresh, now time.Time) bool {
	if lastRefresh.IsZero() {
		return true
	}
	maxAge, ok := p.maxAge[kind]
	if !ok {
		// 未登记的数据族按最保守处理
		return true
	}
	if maxAge == 0 {
		return false
	}
	return now.Sub(lastRefresh) > maxAge
}

// MaxAge 返回数据族的新鲜度窗口，0 表示存在即新鲜
func (p *FreshnessPolicy) MaxAge(kind CacheKind) time.Duration {
	return p.maxAge[kind]
}
