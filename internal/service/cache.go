package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PickSync/internal/config"
	"PickSync/internal/interfaces"
	"PickSync/internal/metrics"
	"PickSync/internal/model"
	"PickSync/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CacheService 缓存网关：读操作统一走"查本地→判新鲜→必要时拉上游回填"。
// 上游失败时只要库里还有旧数据就降级返回（stale=true），冷缓存才报错。
// 所有方法的时间都由调用方注入 now，内部不读时钟。
type CacheService struct {
	logger  *logrus.Logger
	cfg     *config.Config
	loc     *time.Location
	policy  *FreshnessPolicy
	source  interfaces.DataSourceAdapter // 可为 nil（未配置 API Key 时只读降级）
	teams   repository.TeamRepository
	stats   repository.TeamStatsRepository
	games   repository.GameRepository
	markers repository.CacheMetadataRepository
}

// RefreshSummary 一次整日刷新的分步结果，单步失败不中断
type RefreshSummary struct {
	Teams        int      `json:"teams"`
	StatsRows    int      `json:"stats_rows"`
	GamesDays    int      `json:"games_days"`
	GamesRows    int      `json:"games_rows"`
	StaleRemoved int64    `json:"stale_removed"`
	Errors       []string `json:"errors,omitempty"`
}

func NewCacheService(db *gorm.DB, source interfaces.DataSourceAdapter, logger *logrus.Logger, cfg *config.Config) *CacheService {
	loc, err := time.LoadLocation(cfg.Sync.Timezone)
	if err != nil {
		logger.WithError(err).Warnf("时区 %s 加载失败，回退 UTC", cfg.Sync.Timezone)
		loc = time.UTC
	}
	return &CacheService{
		logger:  logger,
		cfg:     cfg,
		loc:     loc,
		policy:  NewFreshnessPolicy(&cfg.Cache),
		source:  source,
		teams:   repository.NewTeamRepository(db),
		stats:   repository.NewTeamStatsRepository(db),
		games:   repository.NewGameRepository(db),
		markers: repository.NewCacheMetadataRepository(db),
	}
}

// Location 返回业务时区（"今天"按此时区计算）
func (s *CacheService) Location() *time.Location {
	return s.loc
}

// Markers 返回全部刷新标记（运维状态接口用）
func (s *CacheService) Markers(ctx context.Context) ([]*model.CacheMetadata, error) {
	return s.markers.ListMarkers(ctx)
}

// GetTeams 球队主数据：存在即新鲜，只有冷缓存才拉上游
func (s *CacheService) GetTeams(ctx context.Context, now time.Time) ([]*model.Team, error) {
	teams, err := s.teams.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	if len(teams) > 0 {
		metrics.RecordCacheResult(string(CacheKindTeams), "hit")
		return teams, nil
	}

	rows, err := s.fetchTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("球队数据冷缓存且无法拉取: %w", err)
	}
	for _, t := range rows {
		t.LastUpdated = now
	}
	if err := s.teams.UpsertTeams(ctx, rows); err != nil {
		return nil, fmt.Errorf("球队数据入库失败: %w", err)
	}
	s.touchMarker(ctx, string(CacheKindTeams), now, fmt.Sprintf("%d teams", len(rows)))
	metrics.RecordCacheResult(string(CacheKindTeams), "miss")
	return s.teams.ListTeams(ctx)
}

// GetTeamStats 单队赛季统计。过期时拉上游整赛季回填；
// 上游失败但库里有旧快照时降级返回，stale=true。
func (s *CacheService) GetTeamStats(ctx context.Context, teamID uint64, season int, now time.Time) (*model.TeamSeasonStat, bool, error) {
	row, err := s.stats.GetStats(ctx, teamID, season)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}
	if row != nil && !s.policy.IsStale(CacheKindTeamStats, row.LastUpdated, now) {
		metrics.RecordCacheResult(string(CacheKindTeamStats), "hit")
		return row, false, nil
	}

	if err := s.refreshSeasonStats(ctx, season, now); err != nil {
		if row != nil {
			s.logger.WithError(err).Warnf("赛季统计刷新失败，降级返回旧快照 team=%d season=%d", teamID, season)
			metrics.RecordCacheResult(string(CacheKindTeamStats), "stale_serve")
			return row, true, nil
		}
		return nil, false, fmt.Errorf("赛季统计冷缓存且无法拉取: %w", err)
	}
	metrics.RecordCacheResult(string(CacheKindTeamStats), "miss")

	fresh, err := s.stats.GetStats(ctx, teamID, season)
	if err != nil {
		// 刷新成功但上游没有这支队：NotFound 原样抛出
		return nil, false, err
	}
	return fresh, false, nil
}

// GetTeamStatsBatch 批量取多队快照。只要有一支队过期就拉一次上游（整赛季一次调用），
// 上游失败时降级用库内已有快照拼结果，缺失的队不在返回 map 里。
func (s *CacheService) GetTeamStatsBatch(ctx context.Context, teamIDs []uint64, season int, now time.Time) (map[uint64]*model.TeamSeasonStat, error) {
	existing, err := s.stats.GetStatsBatch(ctx, teamIDs, season)
	if err != nil {
		return nil, err
	}

	needsRefresh := false
	for _, id := range teamIDs {
		row, ok := existing[id]
		if !ok || s.policy.IsStale(CacheKindTeamStats, row.LastUpdated, now) {
			needsRefresh = true
			break
		}
	}
	if !needsRefresh {
		metrics.RecordCacheResult(string(CacheKindTeamStats), "hit")
		return existing, nil
	}

	if err := s.refreshSeasonStats(ctx, season, now); err != nil {
		s.logger.WithError(err).Warnf("赛季统计批量刷新失败，降级用库内快照 season=%d", season)
		metrics.RecordCacheResult(string(CacheKindTeamStats), "stale_serve")
		return existing, nil
	}
	metrics.RecordCacheResult(string(CacheKindTeamStats), "miss")
	return s.stats.GetStatsBatch(ctx, teamIDs, season)
}

// GetGamesByDate 某日赛程。新鲜度按整日标记 games_{date} 判定；
// 标记存在但过期且上游失败时，降级返回库内旧赛程。
func (s *CacheService) GetGamesByDate(ctx context.Context, date string, now time.Time) ([]*model.Game, bool, error) {
	from, to, err := DayWindow(date, s.loc)
	if err != nil {
		return nil, false, err
	}
	key := gamesMarkerKey(date)
	marker, err := s.markers.GetMarker(ctx, key)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	if marker != nil && !s.policy.IsStale(CacheKindGames, marker.LastRefresh, now) {
		metrics.RecordCacheResult(string(CacheKindGames), "hit")
		games, err := s.games.ListGamesBetween(ctx, from, to)
		return games, false, err
	}

	rows, err := s.fetchGames(ctx, SeasonForDate(from), from, to)
	if err != nil {
		if marker != nil {
			s.logger.WithError(err).Warnf("赛程刷新失败，降级返回库内数据 date=%s", date)
			metrics.RecordCacheResult(string(CacheKindGames), "stale_serve")
			games, listErr := s.games.ListGamesBetween(ctx, from, to)
			return games, true, listErr
		}
		return nil, false, fmt.Errorf("赛程冷缓存且无法拉取 date=%s: %w", date, err)
	}
	for _, g := range rows {
		g.LastUpdated = now
	}
	if err := s.games.UpsertGames(ctx, rows); err != nil {
		return nil, false, fmt.Errorf("赛程入库失败: %w", err)
	}
	s.touchMarker(ctx, key, now, fmt.Sprintf("%d games", len(rows)))
	metrics.RecordCacheResult(string(CacheKindGames), "miss")

	games, err := s.games.ListGamesBetween(ctx, from, to)
	return games, false, err
}

// GetRecentGames 某队近期完赛结果（倒序前 limit 场）。
// 新鲜度按 recent_games_{teamID}_{season} 标记判定，窗口最短（战绩变化最快）。
func (s *CacheService) GetRecentGames(ctx context.Context, teamID uint64, season, limit int, now time.Time) ([]*model.Game, bool, error) {
	if limit <= 0 {
		limit = s.cfg.Picks.RecentGamesLimit
	}
	key := recentMarkerKey(teamID, season)
	marker, err := s.markers.GetMarker(ctx, key)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	if marker != nil && !s.policy.IsStale(CacheKindRecentGames, marker.LastRefresh, now) {
		metrics.RecordCacheResult(string(CacheKindRecentGames), "hit")
		games, err := s.games.ListTeamGames(ctx, teamID, season, true, limit)
		return games, false, err
	}

	rows, err := s.fetchTeamGames(ctx, season, teamID)
	if err != nil {
		if marker != nil {
			s.logger.WithError(err).Warnf("近期战绩刷新失败，降级返回库内数据 team=%d", teamID)
			metrics.RecordCacheResult(string(CacheKindRecentGames), "stale_serve")
			games, listErr := s.games.ListTeamGames(ctx, teamID, season, true, limit)
			return games, true, listErr
		}
		return nil, false, fmt.Errorf("近期战绩冷缓存且无法拉取 team=%d: %w", teamID, err)
	}
	for _, g := range rows {
		g.LastUpdated = now
	}
	if err := s.games.UpsertGames(ctx, rows); err != nil {
		return nil, false, fmt.Errorf("近期战绩入库失败: %w", err)
	}
	s.touchMarker(ctx, key, now, fmt.Sprintf("%d games", len(rows)))
	metrics.RecordCacheResult(string(CacheKindRecentGames), "miss")

	games, err := s.games.ListTeamGames(ctx, teamID, season, true, limit)
	return games, false, err
}

// RefreshGamesForDate 强制刷新某日赛程，不看新鲜度窗口（结果对账前拉最终比分用）。
// 上游失败时降级返回库内现有数据，stale=true。
func (s *CacheService) RefreshGamesForDate(ctx context.Context, date string, now time.Time) ([]*model.Game, bool, error) {
	from, to, err := DayWindow(date, s.loc)
	if err != nil {
		return nil, false, err
	}
	rows, err := s.fetchGames(ctx, SeasonForDate(from), from, to)
	if err != nil {
		s.logger.WithError(err).Warnf("强制刷新赛程失败，使用库内数据 date=%s", date)
		metrics.RecordCacheResult(string(CacheKindGames), "stale_serve")
		games, listErr := s.games.ListGamesBetween(ctx, from, to)
		return games, true, listErr
	}
	for _, g := range rows {
		g.LastUpdated = now
	}
	if err := s.games.UpsertGames(ctx, rows); err != nil {
		return nil, false, fmt.Errorf("赛程入库失败: %w", err)
	}
	s.touchMarker(ctx, gamesMarkerKey(date), now, fmt.Sprintf("%d games", len(rows)))
	metrics.RecordCacheResult(string(CacheKindGames), "miss")
	games, err := s.games.ListGamesBetween(ctx, from, to)
	return games, false, err
}

// RefreshDate 整日刷新：球队→赛季统计→date 起 days 天的赛程→清理过期未完赛比赛。
// 单步失败记入 Errors 继续往下走，只有日期非法或数据源未启用才直接报错。
func (s *CacheService) RefreshDate(ctx context.Context, date string, days int, now time.Time) (*RefreshSummary, error) {
	base, _, err := DayWindow(date, s.loc)
	if err != nil {
		return nil, err
	}
	if s.source == nil {
		return nil, ErrSourceDisabled
	}
	if days <= 0 {
		days = s.cfg.Sync.RefreshDays
	}
	season := SeasonForDate(base)
	summary := &RefreshSummary{}

	// 1. 球队主数据
	if rows, err := s.fetchTeams(ctx); err != nil {
		s.logger.WithError(err).Warn("刷新球队主数据失败")
		summary.Errors = append(summary.Errors, fmt.Sprintf("teams: %v", err))
	} else {
		for _, t := range rows {
			t.LastUpdated = now
		}
		if err := s.teams.UpsertTeams(ctx, rows); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("teams upsert: %v", err))
		} else {
			summary.Teams = len(rows)
			s.touchMarker(ctx, string(CacheKindTeams), now, fmt.Sprintf("%d teams", len(rows)))
		}
	}

	// 2. 整赛季统计
	if n, err := s.refreshSeasonStatsCount(ctx, season, now); err != nil {
		s.logger.WithError(err).Warnf("刷新赛季统计失败 season=%d", season)
		summary.Errors = append(summary.Errors, fmt.Sprintf("stats: %v", err))
	} else {
		summary.StatsRows = n
	}

	// 3. 按天刷新赛程，标记与 GetGamesByDate 同 key
	for i := 0; i < days; i++ {
		day := base.AddDate(0, 0, i)
		dayStr := day.Format(DateLayout)
		rows, err := s.fetchGames(ctx, SeasonForDate(day), day, day.AddDate(0, 0, 1))
		if err != nil {
			s.logger.WithError(err).Warnf("刷新赛程失败 date=%s", dayStr)
			summary.Errors = append(summary.Errors, fmt.Sprintf("games %s: %v", dayStr, err))
			continue
		}
		for _, g := range rows {
			g.LastUpdated = now
		}
		if err := s.games.UpsertGames(ctx, rows); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("games %s upsert: %v", dayStr, err))
			continue
		}
		s.touchMarker(ctx, gamesMarkerKey(dayStr), now, fmt.Sprintf("%d games", len(rows)))
		summary.GamesDays++
		summary.GamesRows += len(rows)
	}

	// 4. 清理：长期没刷新过的未完赛比赛（已完赛的留作历史战绩）
	cutoff := now.AddDate(0, 0, -s.cfg.Cache.RetentionDays)
	if removed, err := s.games.DeleteStaleGames(ctx, cutoff); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("cleanup: %v", err))
	} else {
		summary.StaleRemoved = removed
	}

	s.logger.Infof("缓存刷新完成：球队 %d、统计 %d 行、赛程 %d/%d 天共 %d 场、清理 %d 场、失败 %d 步",
		summary.Teams, summary.StatsRows, summary.GamesDays, days, summary.GamesRows,
		summary.StaleRemoved, len(summary.Errors))
	return summary, nil
}

// refreshSeasonStats 拉整赛季统计并回填（上游按赛季整体返回，没有单队接口）
func (s *CacheService) refreshSeasonStats(ctx context.Context, season int, now time.Time) error {
	_, err := s.refreshSeasonStatsCount(ctx, season, now)
	return err
}

func (s *CacheService) refreshSeasonStatsCount(ctx context.Context, season int, now time.Time) (int, error) {
	if s.source == nil {
		return 0, ErrSourceDisabled
	}
	rows, err := s.source.FetchSeasonStats(ctx, season)
	if err != nil {
		metrics.RecordUpstreamRequest(s.source.GetName(), "error")
		return 0, fmt.Errorf("%w: 拉取赛季统计失败: %v", ErrUpstreamUnavailable, err)
	}
	metrics.RecordUpstreamRequest(s.source.GetName(), "ok")
	for _, r := range rows {
		r.LastUpdated = now
	}
	if err := s.stats.UpsertStats(ctx, rows); err != nil {
		return 0, fmt.Errorf("赛季统计入库失败: %w", err)
	}
	s.touchMarker(ctx, statsMarkerKey(season), now, fmt.Sprintf("%d rows", len(rows)))
	return len(rows), nil
}

func (s *CacheService) fetchTeams(ctx context.Context) ([]*model.Team, error) {
	if s.source == nil {
		return nil, ErrSourceDisabled
	}
	rows, err := s.source.FetchTeams(ctx)
	if err != nil {
		metrics.RecordUpstreamRequest(s.source.GetName(), "error")
		return nil, fmt.Errorf("%w: 拉取球队失败: %v", ErrUpstreamUnavailable, err)
	}
	metrics.RecordUpstreamRequest(s.source.GetName(), "ok")
	return rows, nil
}

func (s *CacheService) fetchGames(ctx context.Context, season int, from, to time.Time) ([]*model.Game, error) {
	if s.source == nil {
		return nil, ErrSourceDisabled
	}
	rows, err := s.source.FetchGamesByDateRange(ctx, season, from, to)
	if err != nil {
		metrics.RecordUpstreamRequest(s.source.GetName(), "error")
		return nil, fmt.Errorf("%w: 拉取赛程失败: %v", ErrUpstreamUnavailable, err)
	}
	metrics.RecordUpstreamRequest(s.source.GetName(), "ok")
	return rows, nil
}

func (s *CacheService) fetchTeamGames(ctx context.Context, season int, teamID uint64) ([]*model.Game, error) {
	if s.source == nil {
		return nil, ErrSourceDisabled
	}
	rows, err := s.source.FetchTeamGames(ctx, season, teamID)
	if err != nil {
		metrics.RecordUpstreamRequest(s.source.GetName(), "error")
		return nil, fmt.Errorf("%w: 拉取球队比赛失败: %v", ErrUpstreamUnavailable, err)
	}
	metrics.RecordUpstreamRequest(s.source.GetName(), "ok")
	return rows, nil
}

// FetchGameLines 盘口报价透传（实时数据不进缓存）
func (s *CacheService) FetchGameLines(ctx context.Context, season int, date string) ([]*model.GameLine, error) {
	if s.source == nil {
		return nil, ErrSourceDisabled
	}
	lines, err := s.source.FetchGameLines(ctx, season, date)
	if err != nil {
		metrics.RecordUpstreamRequest(s.source.GetName(), "error")
		return nil, fmt.Errorf("%w: 拉取盘口失败: %v", ErrUpstreamUnavailable, err)
	}
	metrics.RecordUpstreamRequest(s.source.GetName(), "ok")
	return lines, nil
}

// touchMarker 刷新标记写失败只告警，不影响主流程（正确性不依赖标记单行）
func (s *CacheService) touchMarker(ctx context.Context, key string, now time.Time, detail string) {
	if err := s.markers.UpsertMarker(ctx, key, now, detail); err != nil {
		s.logger.WithError(err).Warnf("写入刷新标记失败 key=%s", key)
	}
}

func gamesMarkerKey(date string) string {
	return fmt.Sprintf("games_%s", date)
}

func statsMarkerKey(season int) string {
	return fmt.Sprintf("team_stats_%d", season)
}

func recentMarkerKey(teamID uint64, season int) string {
	return fmt.Sprintf("recent_games_%d_%d", teamID, season)
}
