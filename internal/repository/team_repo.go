package repository

import (
	"context"

	"PickSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TeamRepository 球队主数据仓储
type TeamRepository interface {
	UpsertTeams(ctx context.Context, teams []*model.Team) error
	GetTeam(ctx context.Context, id uint64) (*model.Team, error)
	ListTeams(ctx context.Context) ([]*model.Team, error)
	CountTeams(ctx context.Context) (int64, error)
}

type teamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

// UpsertTeams 按 id 批量 upsert，名称/联盟等字段以上游为准整体覆盖
func (r *teamRepository) UpsertTeams(ctx context.Context, teams []*model.Team) error {
	if len(teams) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"school", "mascot", "abbreviation", "conference", "last_updated"}),
	}).Create(teams).Error
}

func (r *teamRepository) GetTeam(ctx context.Context, id uint64) (*model.Team, error) {
	var team model.Team
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&team).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &team, nil
}

func (r *teamRepository) ListTeams(ctx context.Context) ([]*model.Team, error) {
	var teams []*model.Team
	if err := r.db.WithContext(ctx).Order("school ASC").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *teamRepository) CountTeams(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Team{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
