package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"PickSync/internal/config"
	"PickSync/internal/model"
	"PickSync/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SyncSummary 一次结果对账的汇总
type SyncSummary struct {
	Date    string `json:"date"`
	Locked  int64  `json:"locked"`
	Graded  int    `json:"graded"`
	Pushes  int    `json:"pushes"`
	Pending int    `json:"pending"`
	Errored int    `json:"errored"`
}

// ResultSyncService 结果对账：先锁定再判定，保证写进台账的预测在判定前已冻结。
// 判定规则：让分看被选一侧净胜分加让分，大于 0 赢、等于 0 走盘（push）；
// 大小分看实际总分与盘口线的高低，打正走盘；独赢看被选一侧是否赢球。
type ResultSyncService struct {
	logger   *logrus.Logger
	cfg      *config.Config
	cache    *CacheService
	picks    *PickService
	pickRepo repository.PickRepository
}

func NewResultSyncService(db *gorm.DB, cache *CacheService, picks *PickService, logger *logrus.Logger, cfg *config.Config) *ResultSyncService {
	return &ResultSyncService{
		logger:   logger,
		cfg:      cfg,
		cache:    cache,
		picks:    picks,
		pickRepo: repository.NewPickRepository(db),
	}
}

// SyncResults 对账某日决策。锁定失败直接中止（未冻结的预测不允许进判定）；
// 比分刷新失败降级用库内数据；单条判定失败只计数不中断。
func (s *ResultSyncService) SyncResults(ctx context.Context, date string, now time.Time) (*SyncSummary, error) {
	summary := &SyncSummary{Date: date}

	// 1. 先锁定：已开赛的决策全部冻结
	locked, err := s.picks.LockStartedGames(ctx, now)
	if err != nil {
		return nil, err
	}
	summary.Locked = locked

	// 2. 刷新当日比分（强制，不看新鲜度窗口），失败降级用库内数据
	games, stale, err := s.cache.RefreshGamesForDate(ctx, date, now)
	if err != nil {
		return nil, fmt.Errorf("读取当日比赛失败 date=%s: %w", date, err)
	}
	if stale {
		s.logger.Warnf("比分刷新降级，使用库内旧数据判定 date=%s", date)
	}
	gamesByID := make(map[uint64]*model.Game, len(games))
	for _, g := range games {
		gamesByID[g.ID] = g
	}

	// 3. 逐条判定已锁定且无结果的决策
	pending, err := s.pickRepo.ListPendingResults(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("读取待判定决策失败: %w", err)
	}
	for _, pick := range pending {
		game, ok := gamesByID[pick.GameID]
		if !ok || !game.Completed || game.HomeScore == nil || game.AwayScore == nil {
			summary.Pending++
			continue
		}
		result, err := gradePick(pick, game)
		if err != nil {
			s.logger.WithError(err).Warnf("判定失败 pick=%d game=%d", pick.ID, pick.GameID)
			summary.Errored++
			continue
		}
		if _, err := s.picks.applyOutcome(ctx, pick, *game.HomeScore, *game.AwayScore, result, now); err != nil {
			s.logger.WithError(err).Warnf("结果写入失败 pick=%d", pick.ID)
			summary.Errored++
			continue
		}
		summary.Graded++
		if result == model.ResultPush {
			summary.Pushes++
		}
	}

	s.logger.Infof("结果对账完成 date=%s：锁定 %d、判定 %d（走盘 %d）、未完赛 %d、失败 %d",
		date, summary.Locked, summary.Graded, summary.Pushes, summary.Pending, summary.Errored)
	return summary, nil
}

// gradePick 按盘口类型判定单条决策
func gradePick(pick *model.ModelPick, game *model.Game) (string, error) {
	home := *game.HomeScore
	away := *game.AwayScore
	switch pick.BetType {
	case model.BetTypeSpread:
		return gradeSpread(pick, game, home, away)
	case model.BetTypeTotal:
		return gradeTotal(pick, home, away), nil
	case model.BetTypeMoneyline:
		return gradeMoneyline(pick, game, home, away)
	default:
		return "", fmt.Errorf("未知盘口类型: %s", pick.BetType)
	}
}

// gradeSpread 让分判定：被选一侧净胜分 + 让分 > 0 为赢，恰好为 0 走盘。
// 例：押主队 -5.5，主队赢 5 分时 5 + (-5.5) < 0，输；押 -5 赢 5 分则走盘。
func gradeSpread(pick *model.ModelPick, game *model.Game, home, away int) (string, error) {
	var margin float64
	switch team := pickedTeam(pick.Pick); team {
	case game.HomeTeam:
		margin = float64(home - away)
	case game.AwayTeam:
		margin = float64(away - home)
	default:
		return "", fmt.Errorf("决策队名与比赛不符: %q", team)
	}
	cover := margin + pick.Line
	switch {
	case cover > 0:
		return model.ResultWon, nil
	case cover == 0:
		return model.ResultPush, nil
	default:
		return model.ResultLost, nil
	}
}

// gradeTotal 大小分判定：实际总分恰好打到盘口线走盘
func gradeTotal(pick *model.ModelPick, home, away int) string {
	actual := float64(home + away)
	if actual == pick.Line {
		return model.ResultPush
	}
	overWon := actual > pick.Line
	if strings.HasPrefix(pick.Pick, model.SideOver) == overWon {
		return model.ResultWon
	}
	return model.ResultLost
}

// gradeMoneyline 独赢判定（常规下无平局，保留走盘分支兜底）
func gradeMoneyline(pick *model.ModelPick, game *model.Game, home, away int) (string, error) {
	var picked, opponent int
	switch pick.Pick {
	case game.HomeTeam:
		picked, opponent = home, away
	case game.AwayTeam:
		picked, opponent = away, home
	default:
		return "", fmt.Errorf("决策队名与比赛不符: %q", pick.Pick)
	}
	switch {
	case picked > opponent:
		return model.ResultWon, nil
	case picked == opponent:
		return model.ResultPush, nil
	default:
		return model.ResultLost, nil
	}
}

// pickedTeam 从让分决策文本里取队名（去掉结尾的让分数字，如 "Duke -5.5" → "Duke"）
func pickedTeam(pick string) string {
	idx := strings.LastIndex(pick, " ")
	if idx <= 0 {
		return pick
	}
	return pick[:idx]
}
