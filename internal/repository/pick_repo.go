package repository

import (
	"context"
	"fmt"
	"time"

	"PickSync/internal/model"

	"gorm.io/gorm"
)

// PickRepository 决策台账仓储。唯一性由 uq_pick_date_game_type 约束在库层保证，
// 锁语义由 is_locked 条件更新保证，应用层不做额外加锁。
type PickRepository interface {
	CreatePick(ctx context.Context, pick *model.ModelPick) error
	GetPick(ctx context.Context, date string, gameID uint64, betType string) (*model.ModelPick, error)
	GetPickByID(ctx context.Context, id uint64) (*model.ModelPick, error)
	GetPickByUUID(ctx context.Context, pickUUID string) (*model.ModelPick, error)
	// UpdatePredictionIfUnlocked 仅当 is_locked=false 时覆盖预测字段，返回是否实际写入。
	// 返回 false 表示行已锁定（包括查到未锁但更新前一刻被锁的竞态），调用方按 skipped 处理。
	UpdatePredictionIfUnlocked(ctx context.Context, id uint64, candidate *model.ModelPick, now time.Time) (bool, error)
	// LockStarted 将开赛时间已到的未锁定决策批量置锁，返回本次新锁定的行数。幂等。
	LockStarted(ctx context.Context, now time.Time) (int64, error)
	// MarkBestBets 单事务内先清空当日旗标再按序写入 1..K，重复调用同一排名结果不变。
	MarkBestBets(ctx context.Context, date string, orderedIDs []uint64, now time.Time) error
	UpdateOutcome(ctx context.Context, id uint64, homeScore, awayScore int, result string, now time.Time) error
	ListPicksByDate(ctx context.Context, date string, bestOnly bool) ([]*model.ModelPick, error)
	// ListPendingResults 已锁定且尚无结果的决策（待结果同步补录）
	ListPendingResults(ctx context.Context, date string) ([]*model.ModelPick, error)
	ListForSummary(ctx context.Context, fromDate, toDate string, filter PickFilter) ([]*model.ModelPick, error)
}

// PickFilter 业绩统计筛选
type PickFilter struct {
	BetType  string // 空=全部
	BestOnly bool   // 仅统计 best bet
}

type pickRepository struct {
	db *gorm.DB
}

func NewPickRepository(db *gorm.DB) PickRepository {
	return &pickRepository{db: db}
}

func (r *pickRepository) CreatePick(ctx context.Context, pick *model.ModelPick) error {
	return r.db.WithContext(ctx).Create(pick).Error
}

func (r *pickRepository) GetPick(ctx context.Context, date string, gameID uint64, betType string) (*model.ModelPick, error) {
	var pick model.ModelPick
	if err := r.db.WithContext(ctx).
		Where("pick_date = ? AND game_id = ? AND bet_type = ?", date, gameID, betType).
		First(&pick).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &pick, nil
}

func (r *pickRepository) GetPickByID(ctx context.Context, id uint64) (*model.ModelPick, error) {
	var pick model.ModelPick
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&pick).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &pick, nil
}

func (r *pickRepository) GetPickByUUID(ctx context.Context, pickUUID string) (*model.ModelPick, error) {
	var pick model.ModelPick
	if err := r.db.WithContext(ctx).Where("pick_uuid = ?", pickUUID).First(&pick).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &pick, nil
}

func (r *pickRepository) UpdatePredictionIfUnlocked(ctx context.Context, id uint64, candidate *model.ModelPick, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.ModelPick{}).
		Where("id = ? AND is_locked = ?", id, false).
		Updates(map[string]interface{}{
			"pick":            candidate.Pick,
			"line":            candidate.Line,
			"odds":            candidate.Odds,
			"predicted_value": candidate.PredictedValue,
			"win_probability": candidate.WinProbability,
			"confidence":      candidate.Confidence,
			"bet_score":       candidate.BetScore,
			"extra":           candidate.Extra,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *pickRepository) LockStarted(ctx context.Context, now time.Time) (int64, error) {
	startedGames := r.db.Model(&model.Game{}).Select("id").Where("start_time <= ?", now)
	res := r.db.WithContext(ctx).Model(&model.ModelPick{}).
		Where("is_locked = ? AND game_id IN (?)", false, startedGames).
		Updates(map[string]interface{}{"is_locked": true, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (r *pickRepository) MarkBestBets(ctx context.Context, date string, orderedIDs []uint64, now time.Time) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
		}
	}()

	// 1. 清空当日旧旗标（不在新 top-K 里的自然被清掉）
	if err := tx.Model(&model.ModelPick{}).
		Where("pick_date = ? AND is_best_bet = ?", date, true).
		Updates(map[string]interface{}{"is_best_bet": false, "best_bet_rank": nil, "updated_at": now}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("清空 best bet 旗标失败: %w", err)
	}

	// 2. 按排名依次写入 1..K
	for i, id := range orderedIDs {
		rank := i + 1
		if err := tx.Model(&model.ModelPick{}).
			Where("id = ? AND pick_date = ?", id, date).
			Updates(map[string]interface{}{"is_best_bet": true, "best_bet_rank": rank, "updated_at": now}).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("写入 best bet 排名失败 id=%d rank=%d: %w", id, rank, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

func (r *pickRepository) UpdateOutcome(ctx context.Context, id uint64, homeScore, awayScore int, result string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.ModelPick{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"home_score": homeScore,
			"away_score": awayScore,
			"result":     result,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pickRepository) ListPicksByDate(ctx context.Context, date string, bestOnly bool) ([]*model.ModelPick, error) {
	db := r.db.WithContext(ctx).Where("pick_date = ?", date)
	// best bet 按定榜名次展示，定榜后分数被重存也不换位；全量列表按当前分数排
	order := "bet_score DESC"
	if bestOnly {
		db = db.Where("is_best_bet = ?", true)
		order = "best_bet_rank ASC"
	}
	var picks []*model.ModelPick
	if err := db.Order(order).Find(&picks).Error; err != nil {
		return nil, err
	}
	return picks, nil
}

func (r *pickRepository) ListPendingResults(ctx context.Context, date string) ([]*model.ModelPick, error) {
	var picks []*model.ModelPick
	if err := r.db.WithContext(ctx).
		Where("pick_date = ? AND is_locked = ? AND result IS NULL", date, true).
		Find(&picks).Error; err != nil {
		return nil, err
	}
	return picks, nil
}

func (r *pickRepository) ListForSummary(ctx context.Context, fromDate, toDate string, filter PickFilter) ([]*model.ModelPick, error) {
	db := r.db.WithContext(ctx).Where("pick_date >= ? AND pick_date <= ?", fromDate, toDate)
	if filter.BetType != "" {
		db = db.Where("bet_type = ?", filter.BetType)
	}
	if filter.BestOnly {
		db = db.Where("is_best_bet = ?", true)
	}
	var picks []*model.ModelPick
	if err := db.Order("pick_date ASC, bet_score DESC").Find(&picks).Error; err != nil {
		return nil, err
	}
	return picks, nil
}
