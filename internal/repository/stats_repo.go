package repository

import (
	"context"

	"PickSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TeamStatsRepository 球队赛季统计快照仓储
type TeamStatsRepository interface {
	UpsertStats(ctx context.Context, stats []*model.TeamSeasonStat) error
	GetStats(ctx context.Context, teamID uint64, season int) (*model.TeamSeasonStat, error)
	// GetStatsBatch 一次取多队快照，返回 team_id -> 快照，缺失的队不在 map 里
	GetStatsBatch(ctx context.Context, teamIDs []uint64, season int) (map[uint64]*model.TeamSeasonStat, error)
}

type teamStatsRepository struct {
	db *gorm.DB
}

func NewTeamStatsRepository(db *gorm.DB) TeamStatsRepository {
	return &teamStatsRepository{db: db}
}

// UpsertStats 按 (team_id, season) 批量 upsert，整份指标覆盖旧值
func (r *teamStatsRepository) UpsertStats(ctx context.Context, stats []*model.TeamSeasonStat) error {
	if len(stats) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}, {Name: "season"}},
		DoUpdates: clause.AssignmentColumns([]string{"team", "games_played", "metrics", "last_updated"}),
	}).Create(stats).Error
}

func (r *teamStatsRepository) GetStats(ctx context.Context, teamID uint64, season int) (*model.TeamSeasonStat, error) {
	var stat model.TeamSeasonStat
	if err := r.db.WithContext(ctx).Where("team_id = ? AND season = ?", teamID, season).First(&stat).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &stat, nil
}

func (r *teamStatsRepository) GetStatsBatch(ctx context.Context, teamIDs []uint64, season int) (map[uint64]*model.TeamSeasonStat, error) {
	result := make(map[uint64]*model.TeamSeasonStat, len(teamIDs))
	if len(teamIDs) == 0 {
		return result, nil
	}
	var rows []*model.TeamSeasonStat
	if err := r.db.WithContext(ctx).Where("team_id IN ? AND season = ?", teamIDs, season).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.TeamID] = row
	}
	return result, nil
}
