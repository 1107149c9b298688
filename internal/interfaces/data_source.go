package interfaces

import (
	"context"
	"time"

	"PickSync/internal/config"
	"PickSync/internal/model"

	"github.com/sirupsen/logrus"
)

// DataSourceAdapter 上游数据源适配器，每个数据族一个方法。
// 返回的行不带 last_updated，由缓存网关在入库前统一盖时间戳。
type DataSourceAdapter interface {
	GetName() string
	FetchTeams(ctx context.Context) ([]*model.Team, error)
	// FetchSeasonStats 拉取整个赛季全部球队的统计（上游按赛季整体返回，天然批量）
	FetchSeasonStats(ctx context.Context, season int) ([]*model.TeamSeasonStat, error)
	// FetchGamesByDateRange 拉取 [from, to) 窗口内的比赛（含已完赛比分）
	FetchGamesByDateRange(ctx context.Context, season int, from, to time.Time) ([]*model.Game, error)
	FetchTeamGames(ctx context.Context, season int, teamID uint64) ([]*model.Game, error)
	// FetchGameLines 拉取某日盘口报价，盘口随时变动，不入缓存
	FetchGameLines(ctx context.Context, season int, date string) ([]*model.GameLine, error)
}

// Factory 数据源适配器工厂函数签名
// 入参：数据源配置、日志实例
type Factory func(cfg *config.SourceConfig, logger *logrus.Logger) DataSourceAdapter
