package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"PickSync/internal/config"
	"PickSync/internal/metrics"
	"PickSync/internal/model"
	"PickSync/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SaveStatus 单条决策写入的结果
type SaveStatus string

const (
	StatusCreated       SaveStatus = "created"        // 新建
	StatusUpdated       SaveStatus = "updated"        // 覆盖未锁定的旧预测
	StatusSkippedLocked SaveStatus = "skipped_locked" // 已锁定，未写入
)

// BatchResult 批量写入汇总
type BatchResult struct {
	Saved   int `json:"saved"`   // created + updated
	Skipped int `json:"skipped"` // 碰到已锁定
	Errored int `json:"errored"`
}

// GenerateSummary 一次生成流程的汇总
type GenerateSummary struct {
	Date       string `json:"date"`
	Games      int    `json:"games"`
	Candidates int    `json:"candidates"`
	Saved      int    `json:"saved"`
	Skipped    int    `json:"skipped"`
	Errored    int    `json:"errored"`
	Locked     int64  `json:"locked"`
	BestBets   int    `json:"best_bets"`
}

// SubSummary 业绩统计的分组小计
type SubSummary struct {
	Total   int     `json:"total"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Pushes  int     `json:"pushes"`
	WinRate float64 `json:"win_rate"`
}

// Summary 业绩统计。胜率与 ROI 只按已分胜负（won/lost）计算，push 退款不进分母。
type Summary struct {
	Total         int                    `json:"total"`
	Wins          int                    `json:"wins"`
	Losses        int                    `json:"losses"`
	Pushes        int                    `json:"pushes"`
	Pending       int                    `json:"pending"`
	WinRate       float64                `json:"win_rate"`
	ROI           float64                `json:"roi"`          // 按 -110 计价，百分比
	ProfitUnits   float64                `json:"profit_units"` // 以 1 注为单位的净收益
	AvgConfidence float64                `json:"avg_confidence"`
	BestBets      SubSummary             `json:"best_bets"`
	ByType        map[string]*SubSummary `json:"by_type"`
}

// pickDetail 决策过程留痕，存 extra JSON
type pickDetail struct {
	HomeProjected float64 `json:"home_projected"`
	AwayProjected float64 `json:"away_projected"`
	Edge          float64 `json:"edge"`
	GamePace      float64 `json:"game_pace,omitempty"`
	Provider      string  `json:"provider,omitempty"`
	Reasoning     string  `json:"reasoning"`
}

// PickService 决策台账：写入受锁约束，锁定后预测字段只读；
// 结果补录不受锁限制。生成流程把缓存网关、预测器、评分器串起来。
type PickService struct {
	logger    *logrus.Logger
	cfg       *config.Config
	repo      repository.PickRepository
	cache     *CacheService
	predictor *Predictor
	scorer    *BetScorer
}

func NewPickService(db *gorm.DB, cache *CacheService, logger *logrus.Logger, cfg *config.Config) *PickService {
	return &PickService{
		logger:    logger,
		cfg:       cfg,
		repo:      repository.NewPickRepository(db),
		cache:     cache,
		predictor: NewPredictor(&cfg.Picks),
		scorer:    NewBetScorer(&cfg.Picks),
	}
}

// SavePick 写入单条决策。(pick_date, game_id, bet_type) 已存在且未锁定时覆盖预测字段；
// 已锁定返回 skipped_locked 且不落任何写。并发插入撞唯一键时转走更新路径。
func (s *PickService) SavePick(ctx context.Context, candidate *model.ModelPick, now time.Time) (SaveStatus, error) {
	existing, err := s.repo.GetPick(ctx, candidate.PickDate, candidate.GameID, candidate.BetType)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	if existing == nil {
		candidate.PickUUID = uuid.NewString()
		candidate.IsLocked = false
		candidate.CreatedAt = now
		candidate.UpdatedAt = now
		createErr := s.repo.CreatePick(ctx, candidate)
		if createErr == nil {
			metrics.RecordPickSave(string(StatusCreated))
			return StatusCreated, nil
		}
		if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
			metrics.RecordPickSave("error")
			return "", fmt.Errorf("创建决策失败: %w", createErr)
		}
		// 撞唯一键说明并发写入抢先，按已存在处理
		existing, err = s.repo.GetPick(ctx, candidate.PickDate, candidate.GameID, candidate.BetType)
		if err != nil {
			return "", err
		}
	}

	if existing.IsLocked {
		metrics.RecordPickSave(string(StatusSkippedLocked))
		return StatusSkippedLocked, nil
	}
	updated, err := s.repo.UpdatePredictionIfUnlocked(ctx, existing.ID, candidate, now)
	if err != nil {
		metrics.RecordPickSave("error")
		return "", fmt.Errorf("更新决策失败: %w", err)
	}
	if !updated {
		// 查到未锁但更新前一刻被锁的竞态，同样算 skipped
		metrics.RecordPickSave(string(StatusSkippedLocked))
		return StatusSkippedLocked, nil
	}
	metrics.RecordPickSave(string(StatusUpdated))
	return StatusUpdated, nil
}

// SavePicksBatch 逐条写入，单条失败不中断，只计数
func (s *PickService) SavePicksBatch(ctx context.Context, candidates []*model.ModelPick, now time.Time) BatchResult {
	var result BatchResult
	for _, candidate := range candidates {
		status, err := s.SavePick(ctx, candidate, now)
		if err != nil {
			s.logger.WithError(err).Warnf("写入决策失败 date=%s game=%d type=%s",
				candidate.PickDate, candidate.GameID, candidate.BetType)
			result.Errored++
			continue
		}
		if status == StatusSkippedLocked {
			result.Skipped++
		} else {
			result.Saved++
		}
	}
	return result
}

// LockStartedGames 锁定开赛时间已到的决策，幂等，返回本次新锁定行数
func (s *PickService) LockStartedGames(ctx context.Context, now time.Time) (int64, error) {
	locked, err := s.repo.LockStarted(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("锁定决策失败: %w", err)
	}
	metrics.RecordPicksLocked(locked)
	if locked > 0 {
		s.logger.Infof("锁定 %d 条已开赛决策", locked)
	}
	return locked, nil
}

// MarkBestBets 重算当日 best bet 旗标：过滤资格→按综合分排序→取前 K。
// 同一排名重复执行结果不变。返回本次标记数量。
func (s *PickService) MarkBestBets(ctx context.Context, date string, now time.Time) (int, error) {
	picks, err := s.repo.ListPicksByDate(ctx, date, false)
	if err != nil {
		return 0, err
	}

	var eligible []*model.ModelPick
	for _, p := range picks {
		// 已锁定（开赛）的不再进当日推荐
		if p.IsLocked || !s.scorer.Eligible(p) {
			continue
		}
		// 大让分受注方波动太大，不进 best bet
		if p.BetType == model.BetTypeSpread && p.Line >= 20 {
			continue
		}
		eligible = append(eligible, p)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].BetScore > eligible[j].BetScore
	})
	if len(eligible) > s.scorer.TopCount() {
		eligible = eligible[:s.scorer.TopCount()]
	}

	ids := make([]uint64, 0, len(eligible))
	for _, p := range eligible {
		ids = append(ids, p.ID)
	}
	if err := s.repo.MarkBestBets(ctx, date, ids, now); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// RecordOutcome 按 UUID 补录结果。不存在返回 repository.ErrNotFound；
// 与已有结果完全相同时幂等跳过（返回 false, nil）；锁定与否不影响补录。
func (s *PickService) RecordOutcome(ctx context.Context, pickUUID string, homeScore, awayScore int, result string, now time.Time) (bool, error) {
	pick, err := s.repo.GetPickByUUID(ctx, pickUUID)
	if err != nil {
		return false, err
	}
	return s.applyOutcome(ctx, pick, homeScore, awayScore, result, now)
}

func (s *PickService) applyOutcome(ctx context.Context, pick *model.ModelPick, homeScore, awayScore int, result string, now time.Time) (bool, error) {
	if result != model.ResultWon && result != model.ResultLost && result != model.ResultPush {
		return false, fmt.Errorf("非法结果值: %s", result)
	}
	if pick.Result != nil && *pick.Result == result &&
		pick.HomeScore != nil && *pick.HomeScore == homeScore &&
		pick.AwayScore != nil && *pick.AwayScore == awayScore {
		return false, nil
	}
	if err := s.repo.UpdateOutcome(ctx, pick.ID, homeScore, awayScore, result, now); err != nil {
		return false, err
	}
	metrics.RecordResultGraded(result)
	return true, nil
}

// ListPicks 查询某日决策，bestOnly 时只返回 best bet（按排名排序交给调用方用 rank 字段）
func (s *PickService) ListPicks(ctx context.Context, date string, bestOnly bool) ([]*model.ModelPick, error) {
	return s.repo.ListPicksByDate(ctx, date, bestOnly)
}

// PerformanceSummary 统计 [from, to] 的业绩。胜率与 ROI 按已分胜负计算，
// push 退款既不算赢也不算输；-110 计价下单注赢收 0.909。
func (s *PickService) PerformanceSummary(ctx context.Context, fromDate, toDate string, filter repository.PickFilter) (*Summary, error) {
	if _, err := time.Parse(DateLayout, fromDate); err != nil {
		return nil, fmt.Errorf("起始日期无效: %w", err)
	}
	if _, err := time.Parse(DateLayout, toDate); err != nil {
		return nil, fmt.Errorf("结束日期无效: %w", err)
	}
	picks, err := s.repo.ListForSummary(ctx, fromDate, toDate, filter)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		ByType: map[string]*SubSummary{},
	}
	var confidenceSum float64
	for _, p := range picks {
		summary.Total++
		confidenceSum += p.Confidence

		sub, ok := summary.ByType[p.BetType]
		if !ok {
			sub = &SubSummary{}
			summary.ByType[p.BetType] = sub
		}
		sub.Total++
		if p.IsBestBet {
			summary.BestBets.Total++
		}

		if !p.Resolved() {
			summary.Pending++
			continue
		}
		switch *p.Result {
		case model.ResultWon:
			summary.Wins++
			sub.Wins++
			if p.IsBestBet {
				summary.BestBets.Wins++
			}
		case model.ResultLost:
			summary.Losses++
			sub.Losses++
			if p.IsBestBet {
				summary.BestBets.Losses++
			}
		case model.ResultPush:
			summary.Pushes++
			sub.Pushes++
			if p.IsBestBet {
				summary.BestBets.Pushes++
			}
		}
	}

	finishSub := func(sub *SubSummary) {
		if decided := sub.Wins + sub.Losses; decided > 0 {
			sub.WinRate = roundTo(float64(sub.Wins)/float64(decided), 4)
		}
	}
	finishSub(&summary.BestBets)
	for _, sub := range summary.ByType {
		finishSub(sub)
	}

	if decided := summary.Wins + summary.Losses; decided > 0 {
		summary.WinRate = roundTo(float64(summary.Wins)/float64(decided), 4)
		summary.ProfitUnits = roundTo(float64(summary.Wins)*0.909-float64(summary.Losses), 3)
		summary.ROI = roundTo(summary.ProfitUnits/float64(decided)*100, 2)
	}
	if summary.Total > 0 {
		summary.AvgConfidence = roundTo(confidenceSum/float64(summary.Total), 3)
	}
	return summary, nil
}

// GeneratePicks 生成某日决策：赛程→统计快照→预测→盘口对比→先锁已开赛→批量写入→补锁→重算 best bet。
// 先锁后写：已开赛比赛的既有决策必须先冻结再评估写入，开赛后的重算不允许顶掉赛前预测。
// 没有盘口报价的比赛不出对应决策。
func (s *PickService) GeneratePicks(ctx context.Context, date string, now time.Time) (*GenerateSummary, error) {
	games, _, err := s.cache.GetGamesByDate(ctx, date, now)
	if err != nil {
		return nil, err
	}
	summary := &GenerateSummary{Date: date, Games: len(games)}
	if len(games) == 0 {
		return summary, nil
	}

	day, _, err := DayWindow(date, s.cache.Location())
	if err != nil {
		return nil, err
	}
	season := SeasonForDate(day)

	teamIDs := make([]uint64, 0, len(games)*2)
	seen := make(map[uint64]struct{}, len(games)*2)
	for _, g := range games {
		for _, id := range []uint64{g.HomeTeamID, g.AwayTeamID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				teamIDs = append(teamIDs, id)
			}
		}
	}
	statsMap, err := s.cache.GetTeamStatsBatch(ctx, teamIDs, season, now)
	if err != nil {
		return nil, fmt.Errorf("获取统计快照失败: %w", err)
	}

	// 盘口实时拉取，失败降级为"不出对比盘口的决策"
	linesByGame := map[uint64]*model.GameLine{}
	if lines, err := s.cache.FetchGameLines(ctx, season, date); err != nil {
		s.logger.WithError(err).Warnf("盘口报价不可用 date=%s，跳过无盘口比赛", date)
	} else {
		for _, l := range lines {
			linesByGame[l.GameID] = l
		}
	}

	var candidates []*model.ModelPick
	for _, game := range games {
		homeSnap, ok := s.teamSnapshot(ctx, game.HomeTeamID, season, statsMap, now)
		if !ok {
			s.logger.Debugf("缺少主队统计，跳过 game=%d team=%d", game.ID, game.HomeTeamID)
			continue
		}
		awaySnap, ok := s.teamSnapshot(ctx, game.AwayTeamID, season, statsMap, now)
		if !ok {
			s.logger.Debugf("缺少客队统计，跳过 game=%d team=%d", game.ID, game.AwayTeamID)
			continue
		}

		proj := s.predictor.Project(homeSnap, awaySnap, game.NeutralSite, game.StartTime)
		line := linesByGame[game.ID]
		if p := s.buildSpreadPick(game, proj, line, date); p != nil {
			candidates = append(candidates, p)
		}
		if p := s.buildTotalPick(game, proj, line, date); p != nil {
			candidates = append(candidates, p)
		}
		if s.cfg.Picks.EnableMoneyline {
			if p := s.buildMoneylinePick(game, proj, line, date); p != nil {
				candidates = append(candidates, p)
			}
		}
	}
	summary.Candidates = len(candidates)

	// 先锁后写：已开赛的既有决策先冻结，锁定失败直接中止
	locked, err := s.LockStartedGames(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("生成前锁定失败: %w", err)
	}
	summary.Locked = locked

	batch := s.SavePicksBatch(ctx, candidates, now)
	summary.Saved = batch.Saved
	summary.Skipped = batch.Skipped
	summary.Errored = batch.Errored

	// 写入期间恰好开赛的场次补一轮锁
	if locked, err := s.LockStartedGames(ctx, now); err != nil {
		s.logger.WithError(err).Warn("生成后锁定失败")
	} else {
		summary.Locked += locked
	}
	if marked, err := s.MarkBestBets(ctx, date, now); err != nil {
		s.logger.WithError(err).Warnf("重算 best bet 失败 date=%s", date)
	} else {
		summary.BestBets = marked
	}

	s.logger.Infof("决策生成完成 date=%s：比赛 %d、候选 %d、写入 %d、跳过 %d、失败 %d、锁定 %d、best bet %d",
		date, summary.Games, summary.Candidates, summary.Saved, summary.Skipped,
		summary.Errored, summary.Locked, summary.BestBets)
	return summary, nil
}

func (s *PickService) teamSnapshot(ctx context.Context, teamID uint64, season int, statsMap map[uint64]*model.TeamSeasonStat, now time.Time) (TeamSnapshot, bool) {
	row, ok := statsMap[teamID]
	if !ok {
		return TeamSnapshot{}, false
	}
	line, ok := row.StatLine()
	if !ok {
		return TeamSnapshot{}, false
	}
	if line.GamesPlayed == 0 {
		line.GamesPlayed = row.GamesPlayed
	}
	recent, _, err := s.cache.GetRecentGames(ctx, teamID, season, s.cfg.Picks.RecentGamesLimit, now)
	if err != nil {
		// 近期战绩只是修正项，拿不到就按无数据处理
		s.logger.WithError(err).Debugf("近期战绩不可用 team=%d", teamID)
		recent = nil
	}
	return TeamSnapshot{TeamID: teamID, Stats: line, Recent: recent}, true
}

// buildSpreadPick 让分决策。coverMargin = 预测分差 + 主队盘口（负数为主队让分），
// 正值押主队、负值押客队，绝对值就是模型相对市场的边际。
func (s *PickService) buildSpreadPick(game *model.Game, proj Projection, line *model.GameLine, date string) *model.ModelPick {
	if line == nil || line.Spread == nil {
		return nil
	}
	homeLine := *line.Spread
	coverMargin := proj.Spread + homeLine

	var pickTeam string
	var pickLine, edge float64
	if coverMargin > 0 {
		pickTeam = game.HomeTeam
		pickLine = homeLine
		edge = coverMargin
	} else {
		pickTeam = game.AwayTeam
		pickLine = -homeLine
		edge = -coverMargin
	}

	winProb := SpreadEdgeValue(edge)
	confidence := AdjustConfidenceForEdge(proj.SpreadConfidence, edge, model.BetTypeSpread)
	odds := s.cfg.Picks.DefaultOdds

	var reasoning string
	switch {
	case proj.Spread > 0:
		reasoning = fmt.Sprintf("Model predicts %s by %.1f", game.HomeTeam, proj.Spread)
	case proj.Spread < 0:
		reasoning = fmt.Sprintf("Model predicts %s by %.1f", game.AwayTeam, -proj.Spread)
	default:
		reasoning = "Model predicts even game"
	}
	detail, _ := json.Marshal(pickDetail{
		HomeProjected: proj.HomePoints,
		AwayProjected: proj.AwayPoints,
		Edge:          roundTo(edge, 1),
		GamePace:      proj.GamePace,
		Provider:      line.Provider,
		Reasoning:     reasoning,
	})

	return &model.ModelPick{
		PickDate:       date,
		GameID:         game.ID,
		BetType:        model.BetTypeSpread,
		Pick:           fmt.Sprintf("%s %+.1f", pickTeam, pickLine),
		Line:           pickLine,
		Odds:           odds,
		PredictedValue: proj.Spread,
		WinProbability: winProb,
		Confidence:     confidence,
		BetScore:       s.scorer.Score(winProb, confidence, odds),
		Extra:          datatypes.JSON(detail),
	}
}

// buildTotalPick 大小分决策。预测总分高于盘口押大，否则押小。
func (s *PickService) buildTotalPick(game *model.Game, proj Projection, line *model.GameLine, date string) *model.ModelPick {
	if line == nil || line.OverUnder == nil {
		return nil
	}
	totalLine := *line.OverUnder

	var side string
	var edge float64
	if proj.Total > totalLine {
		side = model.SideOver
		edge = proj.Total - totalLine
	} else {
		side = model.SideUnder
		edge = totalLine - proj.Total
	}

	winProb := TotalEdgeValue(edge)
	confidence := AdjustConfidenceForEdge(proj.TotalConfidence, edge, model.BetTypeTotal)
	odds := s.cfg.Picks.DefaultOdds

	reasoning := fmt.Sprintf("Model predicts %.1f (%s %.1f by %.1f)", proj.Total, side, totalLine, edge)
	detail, _ := json.Marshal(pickDetail{
		HomeProjected: proj.HomePoints,
		AwayProjected: proj.AwayPoints,
		Edge:          roundTo(edge, 1),
		GamePace:      proj.GamePace,
		Provider:      line.Provider,
		Reasoning:     reasoning,
	})

	return &model.ModelPick{
		PickDate:       date,
		GameID:         game.ID,
		BetType:        model.BetTypeTotal,
		Pick:           fmt.Sprintf("%s %.1f", side, totalLine),
		Line:           totalLine,
		Odds:           odds,
		PredictedValue: proj.Total,
		WinProbability: winProb,
		Confidence:     confidence,
		BetScore:       s.scorer.Score(winProb, confidence, odds),
		Extra:          datatypes.JSON(detail),
	}
}

// buildMoneylinePick 独赢决策，enable_moneyline 打开才出（默认关闭）。
// 押模型看好的一侧，赔率取该侧独赢报价，胜率按被选一侧预测净胜分经 CalculateWinProbability 折算。
func (s *PickService) buildMoneylinePick(game *model.Game, proj Projection, line *model.GameLine, date string) *model.ModelPick {
	if line == nil {
		return nil
	}

	var pickTeam string
	var margin float64
	var quote *int
	switch {
	case proj.Spread > 0:
		pickTeam = game.HomeTeam
		margin = proj.Spread
		quote = line.HomeMoneyline
	case proj.Spread < 0:
		pickTeam = game.AwayTeam
		margin = -proj.Spread
		quote = line.AwayMoneyline
	default:
		// 五五开没有可押的一侧
		return nil
	}
	if quote == nil {
		return nil
	}

	winProb := CalculateWinProbability(margin, proj.SpreadConfidence)
	confidence := proj.SpreadConfidence
	odds := *quote

	reasoning := fmt.Sprintf("Model predicts %s by %.1f", pickTeam, margin)
	detail, _ := json.Marshal(pickDetail{
		HomeProjected: proj.HomePoints,
		AwayProjected: proj.AwayPoints,
		Edge:          roundTo(margin, 1),
		GamePace:      proj.GamePace,
		Provider:      line.Provider,
		Reasoning:     reasoning,
	})

	return &model.ModelPick{
		PickDate:       date,
		GameID:         game.ID,
		BetType:        model.BetTypeMoneyline,
		Pick:           pickTeam,
		Line:           0,
		Odds:           odds,
		PredictedValue: margin,
		WinProbability: winProb,
		Confidence:     confidence,
		BetScore:       s.scorer.Score(winProb, confidence, odds),
		Extra:          datatypes.JSON(detail),
	}
}
