package repository

import (
	"context"
	"time"

	"PickSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GameRepository 比赛仓储（赛程与比分）
type GameRepository interface {
	UpsertGames(ctx context.Context, games []*model.Game) error
	GetGame(ctx context.Context, id uint64) (*model.Game, error)
	GetGamesByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.Game, error)
	// ListGamesBetween 按开赛时间窗口取比赛，[from, to)
	ListGamesBetween(ctx context.Context, from, to time.Time) ([]*model.Game, error)
	// ListTeamGames 取某队某赛季的比赛，按开赛时间倒序；onlyCompleted 时只取已完赛
	ListTeamGames(ctx context.Context, teamID uint64, season int, onlyCompleted bool, limit int) ([]*model.Game, error)
	// DeleteStaleGames 清理 cutoff 之前就没再刷新过的未完赛比赛，返回删除行数。
	// 已完赛比赛留作历史战绩，不清理。
	DeleteStaleGames(ctx context.Context, cutoff time.Time) (int64, error)
}

type gameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

// UpsertGames 按 id 批量 upsert；比分、完赛标记以上游最新为准
func (r *gameRepository) UpsertGames(ctx context.Context, games []*model.Game) error {
	if len(games) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"season", "start_time", "home_team_id", "away_team_id", "home_team", "away_team",
			"home_score", "away_score", "completed", "neutral_site", "raw", "last_updated",
		}),
	}).Create(games).Error
}

func (r *gameRepository) GetGame(ctx context.Context, id uint64) (*model.Game, error) {
	var game model.Game
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&game).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &game, nil
}

func (r *gameRepository) GetGamesByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.Game, error) {
	result := make(map[uint64]*model.Game, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []*model.Game
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ID] = row
	}
	return result, nil
}

func (r *gameRepository) ListGamesBetween(ctx context.Context, from, to time.Time) ([]*model.Game, error) {
	var games []*model.Game
	if err := r.db.WithContext(ctx).
		Where("start_time >= ? AND start_time < ?", from, to).
		Order("start_time ASC").Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

func (r *gameRepository) ListTeamGames(ctx context.Context, teamID uint64, season int, onlyCompleted bool, limit int) ([]*model.Game, error) {
	db := r.db.WithContext(ctx).
		Where("season = ? AND (home_team_id = ? OR away_team_id = ?)", season, teamID, teamID)
	if onlyCompleted {
		db = db.Where("completed = ?", true)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	var games []*model.Game
	if err := db.Order("start_time DESC").Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

func (r *gameRepository) DeleteStaleGames(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("completed = ? AND last_updated < ?", false, cutoff).
		Delete(&model.Game{})
	return res.RowsAffected, res.Error
}
