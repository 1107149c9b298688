package service

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"PickSync/internal/config"
	"PickSync/internal/interfaces"
	"PickSync/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 内存 sqlite。必须限成单连接：连接池里每个连接
// 都会拿到一份独立的 :memory: 库，多连接下表会"消失"。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Team{},
		&model.TeamSeasonStat{},
		&model.Game{},
		&model.ModelPick{},
		&model.CacheMetadata{},
	))
	return db
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestConfig() *config.Config {
	return &config.Config{
		Cache: config.CacheConfig{
			PrimarySource:       "cbbd",
			TeamStatsTTLHours:   12,
			GamesTTLHours:       24,
			RecentGamesTTLHours: 6,
			RetentionDays:       30,
		},
		Picks: config.PicksConfig{
			HomeCourtAdvantage: 3.5,
			RecentGamesLimit:   10,
			DefaultOdds:        -110,
			MaxOdds:            -125,
			BestBetCount:       5,
			MinConfidence:      0.35,
		},
		Sync: config.SyncConfig{
			Timezone:    "UTC",
			RefreshDays: 2,
		},
	}
}

// newTestServices 全套服务装配，src 传 nil 表示只读降级模式
func newTestServices(t *testing.T, src interfaces.DataSourceAdapter) (*gorm.DB, *CacheService, *PickService, *ResultSyncService) {
	t.Helper()
	db := newTestDB(t)
	logger := newTestLogger()
	cfg := newTestConfig()
	cache := NewCacheService(db, src, logger, cfg)
	picks := NewPickService(db, cache, logger, cfg)
	results := NewResultSyncService(db, cache, picks, logger, cfg)
	return db, cache, picks, results
}

// statRow 构造一条带 metrics JSON 的赛季统计快照
func statRow(teamID uint64, season int, team string, off, def, pace float64, games int) *model.TeamSeasonStat {
	metrics, _ := json.Marshal(model.StatLine{
		OffensiveRating: off,
		DefensiveRating: def,
		NetRating:       off - def,
		Pace:            pace,
		GamesPlayed:     games,
	})
	return &model.TeamSeasonStat{
		TeamID:      teamID,
		Season:      season,
		Team:        team,
		GamesPlayed: games,
		Metrics:     datatypes.JSON(metrics),
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// fakeSource 可编程上游：按方法计数，设置对应 err 后该数据族全部失败。
// 每次调用都返回新构造的行，和真实适配器一致（不会把入过库的行再递回去）。
type fakeSource struct {
	teams []*model.Team
	stats []*model.TeamSeasonStat
	games []*model.Game
	lines []*model.GameLine

	errTeams error
	errStats error
	errGames error
	errLines error

	teamCalls     int
	statsCalls    int
	gameCalls     int
	teamGameCalls int
	lineCalls     int
}

func (f *fakeSource) failAll(err error) {
	f.errTeams, f.errStats, f.errGames, f.errLines = err, err, err, err
}

func (f *fakeSource) GetName() string { return "cbbd" }

func (f *fakeSource) FetchTeams(_ context.Context) ([]*model.Team, error) {
	f.teamCalls++
	if f.errTeams != nil {
		return nil, f.errTeams
	}
	out := make([]*model.Team, len(f.teams))
	for i, t := range f.teams {
		c := *t
		out[i] = &c
	}
	return out, nil
}

func (f *fakeSource) FetchSeasonStats(_ context.Context, season int) ([]*model.TeamSeasonStat, error) {
	f.statsCalls++
	if f.errStats != nil {
		return nil, f.errStats
	}
	var out []*model.TeamSeasonStat
	for _, s := range f.stats {
		if s.Season != season {
			continue
		}
		c := *s
		c.ID = 0 // 回传行不带库内主键
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeSource) FetchGamesByDateRange(_ context.Context, _ int, from, to time.Time) ([]*model.Game, error) {
	f.gameCalls++
	if f.errGames != nil {
		return nil, f.errGames
	}
	var out []*model.Game
	for _, g := range f.games {
		if !g.StartTime.Before(from) && g.StartTime.Before(to) {
			c := *g
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeSource) FetchTeamGames(_ context.Context, season int, teamID uint64) ([]*model.Game, error) {
	f.teamGameCalls++
	if f.errGames != nil {
		return nil, f.errGames
	}
	var out []*model.Game
	for _, g := range f.games {
		if g.Season != season || (g.HomeTeamID != teamID && g.AwayTeamID != teamID) {
			continue
		}
		c := *g
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeSource) FetchGameLines(_ context.Context, _ int, _ string) ([]*model.GameLine, error) {
	f.lineCalls++
	if f.errLines != nil {
		return nil, f.errLines
	}
	return f.lines, nil
}
