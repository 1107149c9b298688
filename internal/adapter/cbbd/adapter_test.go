package cbbd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PickSync/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.SourceConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Timeout:    5,
		RetryCount: 1,
	}
	a := NewCBBDAdapter(cfg, logger)
	require.NotNil(t, a)
	return a.(*Adapter)
}

func TestNewCBBDAdapter_RequiresAPIKey(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	assert.Nil(t, NewCBBDAdapter(&config.SourceConfig{BaseURL: "http://localhost"}, logger))
}

func TestFetchTeams(t *testing.T) {
	var gotPath, gotAuth, gotAccept string
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id": 55, "school": "Duke", "mascot": "Blue Devils", "abbreviation": "DUKE", "conference": "ACC"},
			{"id": 66, "school": "North Carolina", "conference": "ACC"},
			{"id": 0, "school": "Ghost"},
			{"id": 77, "school": ""}
		]`)
	}))

	teams, err := a.FetchTeams(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "cbbd", a.GetName())
	assert.Equal(t, "/teams", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "application/json", gotAccept)

	// 非法 id 与空校名的行被过滤
	require.Len(t, teams, 2)
	assert.Equal(t, uint64(55), teams[0].ID)
	assert.Equal(t, "Duke", teams[0].School)
	assert.Equal(t, "Blue Devils", teams[0].Mascot)
	assert.Equal(t, "ACC", teams[0].Conference)
	assert.Equal(t, uint64(66), teams[1].ID)
}

func TestFetchSeasonStats(t *testing.T) {
	var gotSeason string
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats/team/season", r.URL.Path)
		gotSeason = r.URL.Query().Get("season")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{
				"season": 2026, "teamId": 55, "team": "Duke", "conference": "ACC",
				"games": 20, "pace": 70,
				"offense": {"rating": 110, "effectiveFieldGoalPct": 0.55, "turnoverRatio": 0.16, "offensiveReboundPct": 0.32, "freeThrowRate": 0.30},
				"defense": {"rating": 95}
			},
			{"season": 2026, "teamId": 0, "team": "Ghost"}
		]`)
	}))

	rows, err := a.FetchSeasonStats(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, "2026", gotSeason)

	require.Len(t, rows, 1) // 无效 teamId 被过滤
	assert.Equal(t, uint64(55), rows[0].TeamID)
	assert.Equal(t, 2026, rows[0].Season)
	assert.Equal(t, "Duke", rows[0].Team)
	assert.Equal(t, 20, rows[0].GamesPlayed)

	line, ok := rows[0].StatLine()
	require.True(t, ok)
	assert.InDelta(t, 110, line.OffensiveRating, 1e-9)
	assert.InDelta(t, 95, line.DefensiveRating, 1e-9)
	assert.InDelta(t, 15, line.NetRating, 1e-9)
	assert.InDelta(t, 70, line.Pace, 1e-9)
	assert.InDelta(t, 0.55, line.EffectiveFGPct, 1e-9)
	assert.Equal(t, 20, line.GamesPlayed)
}

func TestFetchGamesByDateRange(t *testing.T) {
	from := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	var gotQuery string
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/games", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{
				"id": 9001, "season": 2026, "startDate": "2026-01-15T19:00:00.000Z",
				"homeTeamId": 55, "homeTeam": "Duke", "awayTeamId": 66, "awayTeam": "North Carolina",
				"status": "scheduled", "neutralSite": false
			},
			{
				"id": 9003, "season": 2026, "startDate": "2026-01-15T18:00:00.000Z",
				"homeTeamId": 77, "homeTeam": "Kansas", "awayTeamId": 88, "awayTeam": "Baylor",
				"homePoints": 70, "awayPoints": 65, "status": "Final"
			},
			{"id": 9004, "season": 2026, "startDate": "not-a-time"},
			{"id": 0, "season": 2026, "startDate": "2026-01-15T20:00:00.000Z"}
		]`)
	}))

	games, err := a.FetchGamesByDateRange(context.Background(), 2026, from, to)
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "season=2026")
	assert.Contains(t, gotQuery, "startDateRange=2026-01-15T00%3A00%3A00Z")
	assert.Contains(t, gotQuery, "endDateRange=2026-01-16T00%3A00%3A00Z")

	// 坏时间与无效 id 的行被跳过
	require.Len(t, games, 2)
	assert.Equal(t, uint64(9001), games[0].ID)
	assert.Equal(t, "2026-01-15T19:00:00Z", games[0].StartTime.Format(time.RFC3339))
	assert.False(t, games[0].Completed)
	assert.Nil(t, games[0].HomeScore)

	// 状态 final（大小写不敏感）即终态
	assert.Equal(t, uint64(9003), games[1].ID)
	assert.True(t, games[1].Completed)
	require.NotNil(t, games[1].HomeScore)
	assert.Equal(t, 70, *games[1].HomeScore)
	assert.Equal(t, 65, *games[1].AwayScore)
}

func TestFetchGamesByDateRange_ScoresWithoutStatusMeanCompleted(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{
				"id": 9001, "season": 2026, "startDate": "2026-01-15T19:00:00Z",
				"homeTeamId": 55, "homeTeam": "Duke", "awayTeamId": 66, "awayTeam": "North Carolina",
				"homePoints": 70, "awayPoints": 65, "status": ""
			}
		]`)
	}))

	games, err := a.FetchGamesByDateRange(context.Background(), 2026,
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.True(t, games[0].Completed) // 双方比分已回填就算完赛
}

func TestFetchTeamGames_ResolvesTeamNameLazily(t *testing.T) {
	teamsCalls := 0
	var gotTeamParam string
	mux := http.NewServeMux()
	mux.HandleFunc("/teams", func(w http.ResponseWriter, r *http.Request) {
		teamsCalls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id": 55, "school": "Duke"}]`)
	})
	mux.HandleFunc("/games", func(w http.ResponseWriter, r *http.Request) {
		gotTeamParam = r.URL.Query().Get("team")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{
				"id": 9001, "season": 2026, "startDate": "2026-01-10T19:00:00Z",
				"homeTeamId": 55, "homeTeam": "Duke", "awayTeamId": 66, "awayTeam": "North Carolina",
				"homePoints": 80, "awayPoints": 70, "status": "final"
			}
		]`)
	})
	a := newTestAdapter(t, mux)
	ctx := context.Background()

	// 上游 /games 只认校名，首次调用先拉球队列表回填映射
	games, err := a.FetchTeamGames(ctx, 2026, 55)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "Duke", gotTeamParam)
	assert.Equal(t, 1, teamsCalls)

	// 第二次直接命中映射
	_, err = a.FetchTeamGames(ctx, 2026, 55)
	require.NoError(t, err)
	assert.Equal(t, 1, teamsCalls)

	// 没收录的球队：补拉一次仍未命中则报错
	_, err = a.FetchTeamGames(ctx, 2026, 99)
	assert.Error(t, err)
	assert.Equal(t, 2, teamsCalls)
}

func TestFetchGameLines(t *testing.T) {
	var gotQuery string
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lines", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{
				"gameId": 9001, "homeTeam": "Duke", "awayTeam": "North Carolina",
				"lines": [
					{"provider": "Bovada", "spread": -4.5, "overUnder": 140.5},
					{"provider": "consensus", "spread": -5.5, "overUnder": 145.5}
				]
			},
			{"gameId": 9002, "lines": [{"provider": "Bovada"}]},
			{"gameId": 9003, "lines": [{"provider": "DraftKings", "spread": -2.0}]}
		]`)
	}))

	lines, err := a.FetchGameLines(context.Background(), 2026, "2026-01-15")
	require.NoError(t, err)

	// 比赛日按美东整天换算成 UTC 窗口
	assert.Contains(t, gotQuery, "startDateRange=2026-01-15T05%3A00%3A00Z")
	assert.Contains(t, gotQuery, "endDateRange=2026-01-16T05%3A00%3A00Z")

	require.Len(t, lines, 2) // 全空报价的 9002 被跳过
	assert.Equal(t, uint64(9001), lines[0].GameID)
	assert.Equal(t, "consensus", lines[0].Provider) // consensus 优先于先出现的庄家
	require.NotNil(t, lines[0].Spread)
	assert.InDelta(t, -5.5, *lines[0].Spread, 1e-9)
	assert.InDelta(t, 145.5, *lines[0].OverUnder, 1e-9)

	assert.Equal(t, uint64(9003), lines[1].GameID)
	assert.Equal(t, "DraftKings", lines[1].Provider)
	assert.Nil(t, lines[1].OverUnder)
}

func TestFetchGameLines_InvalidDate(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("坏日期不应该发请求")
	}))

	_, err := a.FetchGameLines(context.Background(), 2026, "01/15/2026")
	assert.Error(t, err)
}

func TestGetJSON_Non200SurfacesStatusAndBody(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "unauthorized")
	}))

	_, err := a.FetchTeams(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestGetJSON_RetriesServerError(t *testing.T) {
	attempts := 0
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id": 55, "school": "Duke"}]`)
	}))

	teams, err := a.FetchTeams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	require.Len(t, teams, 1)
}
