package cbbd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"PickSync/internal/config"
	"PickSync/internal/interfaces"
	"PickSync/internal/model"
	"PickSync/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	// DefaultBaseURL CBBD 官方 API 地址
	DefaultBaseURL = "https://api.collegebasketballdata.com"
	// SourceName 注册到工厂注册表的数据源名
	SourceName = "cbbd"
)

// estZone 上游比赛日按美东整天划分，全年固定按 EST(UTC-5) 换算
var estZone = time.FixedZone("EST", -5*60*60)

type Adapter struct {
	cfg        *config.SourceConfig
	baseURL    string
	httpClient *httpclient.Client
	logger     *logrus.Logger

	// 球队ID→校名映射，/games 按球队过滤时只认校名
	mu        sync.Mutex
	teamNames map[uint64]string
}

// NewCBBDAdapter 创建 CBBD 数据源适配器
// 上游要求 Bearer 认证，未配置 API key 时返回 nil
func NewCBBDAdapter(cfg *config.SourceConfig, logger *logrus.Logger) interfaces.DataSourceAdapter {
	if cfg.APIKey == "" {
		logger.Warn("CBBD API key 未配置，数据源不可用")
		return nil
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: httpclient.New(cfg, logger),
		logger:     logger,
		teamNames:  make(map[uint64]string),
	}
}

// GetName ========== 实现DataSourceAdapter接口 ==========
func (a *Adapter) GetName() string {
	return SourceName
}

func (a *Adapter) FetchTeams(ctx context.Context) ([]*model.Team, error) {
	// 1. 调用CBBD API获取全部球队
	var raw []model.CBBDTeam
	if err := a.getJSON(ctx, "/teams", nil, &raw); err != nil {
		return nil, fmt.Errorf("获取CBBD球队列表失败: %w", err)
	}

	// 2. 转换为数据库模型，同时回填ID→校名映射
	teams := make([]*model.Team, 0, len(raw))
	a.mu.Lock()
	for _, t := range raw {
		if t.ID <= 0 || t.School == "" {
			continue
		}
		teams = append(teams, &model.Team{
			ID:           uint64(t.ID),
			School:       t.School,
			Mascot:       t.Mascot,
			Abbreviation: t.Abbreviation,
			Conference:   t.Conference,
		})
		a.teamNames[uint64(t.ID)] = t.School
	}
	a.mu.Unlock()

	a.logger.Infof("成功获取CBBD球队共%d条", len(teams))
	return teams, nil
}

func (a *Adapter) FetchSeasonStats(ctx context.Context, season int) ([]*model.TeamSeasonStat, error) {
	// 1. 调用CBBD API获取整个赛季全部球队的统计
	params := url.Values{}
	params.Set("season", strconv.Itoa(season))

	var raw []model.CBBDTeamSeasonStats
	if err := a.getJSON(ctx, "/stats/team/season", params, &raw); err != nil {
		return nil, fmt.Errorf("获取CBBD赛季统计失败: %w", err)
	}

	// 2. 进攻/防守端指标摊平成 metrics JSON
	var stats []*model.TeamSeasonStat
	for _, s := range raw {
		if s.TeamID <= 0 {
			continue
		}
		metrics, err := json.Marshal(model.StatLine{
			OffensiveRating: s.Offense.Rating,
			DefensiveRating: s.Defense.Rating,
			NetRating:       s.Offense.Rating - s.Defense.Rating,
			Pace:            s.Pace,
			EffectiveFGPct:  s.Offense.EffectiveFGPct,
			TurnoverPct:     s.Offense.TurnoverPct,
			ReboundPct:      s.Offense.OffensiveReboundPct,
			FreeThrowRate:   s.Offense.FreeThrowRate,
			GamesPlayed:     s.Games,
		})
		if err != nil {
			a.logger.Warnf("序列化%s赛季指标失败: %v，跳过", s.Team, err)
			continue
		}
		stats = append(stats, &model.TeamSeasonStat{
			TeamID:      uint64(s.TeamID),
			Season:      s.Season,
			Team:        s.Team,
			GamesPlayed: s.Games,
			Metrics:     datatypes.JSON(metrics),
		})
	}

	a.logger.Infof("成功获取CBBD赛季统计共%d条", len(stats))
	return stats, nil
}

func (a *Adapter) FetchGamesByDateRange(ctx context.Context, season int, from, to time.Time) ([]*model.Game, error) {
	params := url.Values{}
	params.Set("season", strconv.Itoa(season))
	params.Set("startDateRange", from.UTC().Format(time.RFC3339))
	params.Set("endDateRange", to.UTC().Format(time.RFC3339))

	var raw []model.CBBDGame
	if err := a.getJSON(ctx, "/games", params, &raw); err != nil {
		return nil, fmt.Errorf("获取CBBD比赛列表失败: %w", err)
	}

	games := a.convertGames(raw)
	a.logger.Infof("成功获取CBBD比赛共%d条", len(games))
	return games, nil
}

func (a *Adapter) FetchTeamGames(ctx context.Context, season int, teamID uint64) ([]*model.Game, error) {
	// 1. 上游 /games 按球队过滤只接受校名，先解析球队ID对应的校名
	name, err := a.teamNameByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	// 2. 按校名拉取该队整个赛季的比赛
	params := url.Values{}
	params.Set("season", strconv.Itoa(season))
	params.Set("team", name)

	var raw []model.CBBDGame
	if err := a.getJSON(ctx, "/games", params, &raw); err != nil {
		return nil, fmt.Errorf("获取CBBD球队比赛失败: %w", err)
	}
	return a.convertGames(raw), nil
}

func (a *Adapter) FetchGameLines(ctx context.Context, season int, date string) ([]*model.GameLine, error) {
	// 1. 比赛日按美东整天换算为 UTC 查询窗口
	day, err := time.ParseInLocation("2006-01-02", date, estZone)
	if err != nil {
		return nil, fmt.Errorf("日期格式无效: %s", date)
	}
	params := url.Values{}
	params.Set("season", strconv.Itoa(season))
	params.Set("startDateRange", day.UTC().Format(time.RFC3339))
	params.Set("endDateRange", day.Add(24*time.Hour).UTC().Format(time.RFC3339))

	var raw []model.CBBDGameLine
	if err := a.getJSON(ctx, "/lines", params, &raw); err != nil {
		return nil, fmt.Errorf("获取CBBD盘口失败: %w", err)
	}

	// 2. 每场只保留一条可用报价
	var lines []*model.GameLine
	for _, gl := range raw {
		item, ok := pickLineItem(gl.Lines)
		if !ok {
			continue
		}
		lines = append(lines, &model.GameLine{
			GameID:        uint64(gl.GameID),
			Provider:      item.Provider,
			Spread:        item.Spread,
			OverUnder:     item.OverUnder,
			HomeMoneyline: item.HomeMoneyline,
			AwayMoneyline: item.AwayMoneyline,
		})
	}

	a.logger.Infof("成功获取CBBD盘口共%d条", len(lines))
	return lines, nil
}

// teamNameByID 从映射解析校名，未命中时拉一次球队列表回填
func (a *Adapter) teamNameByID(ctx context.Context, teamID uint64) (string, error) {
	a.mu.Lock()
	name, ok := a.teamNames[teamID]
	a.mu.Unlock()
	if ok {
		return name, nil
	}

	if _, err := a.FetchTeams(ctx); err != nil {
		return "", err
	}

	a.mu.Lock()
	name, ok = a.teamNames[teamID]
	a.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("CBBD未收录球队ID %d", teamID)
	}
	return name, nil
}

// convertGames 上游比赛转数据库模型，last_updated 由缓存网关入库时统一盖章
func (a *Adapter) convertGames(raw []model.CBBDGame) []*model.Game {
	games := make([]*model.Game, 0, len(raw))
	for _, g := range raw {
		if g.ID <= 0 {
			continue
		}
		startTime, err := time.Parse(time.RFC3339, g.StartDate)
		if err != nil {
			a.logger.Warnf("解析比赛%d开始时间失败: %v，跳过", g.ID, err)
			continue
		}
		rawJSON, err := json.Marshal(g)
		if err != nil {
			a.logger.Warnf("序列化比赛%d原始数据失败: %v", g.ID, err)
			rawJSON = nil
		}
		games = append(games, &model.Game{
			ID:          uint64(g.ID),
			Season:      g.Season,
			StartTime:   startTime.UTC(),
			HomeTeamID:  uint64(g.HomeTeamID),
			AwayTeamID:  uint64(g.AwayTeamID),
			HomeTeam:    g.HomeTeam,
			AwayTeam:    g.AwayTeam,
			HomeScore:   g.HomePoints,
			AwayScore:   g.AwayPoints,
			Completed:   gameCompleted(g),
			NeutralSite: g.NeutralSite,
			Raw:         datatypes.JSON(rawJSON),
		})
	}
	return games
}

// gameCompleted 终态判定：状态为final，或双方比分均已回填
func gameCompleted(g model.CBBDGame) bool {
	if strings.EqualFold(g.Status, "final") {
		return true
	}
	return g.HomePoints != nil && g.AwayPoints != nil
}

// pickLineItem 选一条可用报价：优先consensus庄家，其次首个带让分或大小分的
func pickLineItem(items []model.CBBDLineItem) (model.CBBDLineItem, bool) {
	var fallback model.CBBDLineItem
	found := false
	for _, it := range items {
		if it.Spread == nil && it.OverUnder == nil {
			continue
		}
		if strings.EqualFold(it.Provider, "consensus") {
			return it, true
		}
		if !found {
			fallback = it
			found = true
		}
	}
	return fallback, found
}

// getJSON 发起带Bearer认证的GET请求并解析JSON响应
func (a *Adapter) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := a.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.DoWithRetry(req)
	if err != nil {
		return err
	}
	// 确保响应体关闭，并处理关闭时的错误
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.Errorf("关闭CBBD响应体失败: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("CBBD返回状态码 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析CBBD响应失败: %w", err)
	}
	return nil
}
