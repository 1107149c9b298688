package model

import (
	"time"

	"gorm.io/datatypes"
)

// ModelPick 对应 model_picks 表，记录模型对单场比赛、单一盘口的一次投注决策。
// (pick_date, game_id, bet_type) 唯一：同一天同一场同一盘口至多一条，重跑只会覆盖未锁定的预测字段。
// 比赛开赛后 is_locked 置真，之后预测字段不可再写；结果字段（home_score/away_score/result）
// 不受锁限制，由结果同步在赛后补录。
type ModelPick struct {
	ID             uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	PickUUID       string         `gorm:"column:pick_uuid;type:varchar(64);uniqueIndex;not null"`
	PickDate       string         `gorm:"column:pick_date;type:varchar(10);not null;uniqueIndex:uq_pick_date_game_type"` // YYYY-MM-DD
	GameID         uint64         `gorm:"column:game_id;type:bigint;not null;uniqueIndex:uq_pick_date_game_type"`
	BetType        string         `gorm:"column:bet_type;type:varchar(16);not null;uniqueIndex:uq_pick_date_game_type;check:bet_type IN ('spread','total','moneyline')"`
	Pick           string         `gorm:"column:pick;type:varchar(128);not null"` // 例如 "Duke -5.5" / "Over 145.5"
	Line           float64        `gorm:"column:line;type:numeric(6,1);default:0"`
	Odds           int            `gorm:"column:odds;type:int;default:-110"` // 美式赔率
	PredictedValue float64        `gorm:"column:predicted_value;type:numeric(8,2);default:0"` // 预测分差或总分
	WinProbability float64        `gorm:"column:win_probability;type:numeric(6,4);default:0;check:win_probability >= 0 AND win_probability <= 1"`
	Confidence     float64        `gorm:"column:confidence;type:numeric(6,4);default:0;check:confidence >= 0 AND confidence <= 1"`
	BetScore       float64        `gorm:"column:bet_score;type:numeric(8,4);default:0"` // 综合排序分
	HomeScore      *int           `gorm:"column:home_score;type:int"`
	AwayScore      *int           `gorm:"column:away_score;type:int"`
	Result         *string        `gorm:"column:result;type:varchar(8);check:result IN ('won','lost','push')"`
	IsLocked       bool           `gorm:"column:is_locked;type:boolean;default:false"`
	IsBestBet      bool           `gorm:"column:is_best_bet;type:boolean;default:false"`
	BestBetRank    *int           `gorm:"column:best_bet_rank;type:int"` // 1..K，仅 is_best_bet 时非空
	Extra          datatypes.JSON `gorm:"column:extra;type:jsonb"`       // 预测过程留痕（预测比分、edge 等）
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP"`
}

func (ModelPick) TableName() string { return "model_picks" }

// Resolved 是否已补录结果
func (p *ModelPick) Resolved() bool { return p.Result != nil }

// GameLine 单场比赛的盘口报价（上游实时拉取，不落库）
type GameLine struct {
	GameID        uint64
	Provider      string
	Spread        *float64 // 主队让分，负数表示主队让
	OverUnder     *float64
	HomeMoneyline *int
	AwayMoneyline *int
}
