package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Team 球队主数据，id 直接使用上游 ID（不自增）
type Team struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement:false"`
	School       string    `gorm:"column:school;type:varchar(128);not null"`
	Mascot       string    `gorm:"column:mascot;type:varchar(64)"`
	Abbreviation string    `gorm:"column:abbreviation;type:varchar(16)"`
	Conference   string    `gorm:"column:conference;type:varchar(64);index"`
	LastUpdated  time.Time `gorm:"column:last_updated;type:timestamp;not null"`
}

// TeamSeasonStat 球队赛季统计快照，metrics 保存上游原始指标（开放结构，避免频繁迁移）
// (team_id, season) 唯一，刷新时整行 upsert
type TeamSeasonStat struct {
	ID          uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	TeamID      uint64         `gorm:"column:team_id;type:bigint;not null;uniqueIndex:uq_team_season"`
	Season      int            `gorm:"column:season;type:int;not null;uniqueIndex:uq_team_season"`
	Team        string         `gorm:"column:team;type:varchar(128)"` // 冗余队名，便于排查
	GamesPlayed int            `gorm:"column:games_played;type:int;default:0"`
	Metrics     datatypes.JSON `gorm:"column:metrics;type:jsonb;not null"`
	LastUpdated time.Time      `gorm:"column:last_updated;type:timestamp;not null"`
}

// Game 比赛（赛程与结果共用一张表），id 使用上游 ID
// 比分在比赛结束前为 NULL，completed=true 后由结果同步填充
type Game struct {
	ID          uint64         `gorm:"column:id;primaryKey;autoIncrement:false"`
	Season      int            `gorm:"column:season;type:int;not null;index"`
	StartTime   time.Time      `gorm:"column:start_time;type:timestamp;not null;index"`
	HomeTeamID  uint64         `gorm:"column:home_team_id;type:bigint;not null;index"`
	AwayTeamID  uint64         `gorm:"column:away_team_id;type:bigint;not null;index"`
	HomeTeam    string         `gorm:"column:home_team;type:varchar(128)"`
	AwayTeam    string         `gorm:"column:away_team;type:varchar(128)"`
	HomeScore   *int           `gorm:"column:home_score;type:int"`
	AwayScore   *int           `gorm:"column:away_score;type:int"`
	Completed   bool           `gorm:"column:completed;type:boolean;default:false"`
	NeutralSite bool           `gorm:"column:neutral_site;type:boolean;default:false"`
	Raw         datatypes.JSON `gorm:"column:raw;type:jsonb"` // 上游原始 payload
	LastUpdated time.Time      `gorm:"column:last_updated;type:timestamp;not null"`
}

// CacheMetadata 按数据族记录最近一次刷新时间
// 列表型数据（某日赛程、球队近况）靠它判新鲜度：空列表与从未拉取，行级时间戳无法区分
type CacheMetadata struct {
	CacheKey    string    `gorm:"column:cache_key;primaryKey;type:varchar(64)"`
	LastRefresh time.Time `gorm:"column:last_refresh;type:timestamp;not null"`
	Detail      string    `gorm:"column:detail;type:varchar(256)"`
}

func (Team) TableName() string           { return "teams" }
func (TeamSeasonStat) TableName() string { return "team_season_stats" }
func (Game) TableName() string           { return "games" }
func (CacheMetadata) TableName() string  { return "cache_metadata" }

// StatLine 预测模型实际读取的指标子集（metrics JSON 的类型化视图）
// 未识别的上游字段原样留在 JSON 里，不做建模
type StatLine struct {
	OffensiveRating float64 `json:"offensive_rating"` // 每百回合得分
	DefensiveRating float64 `json:"defensive_rating"` // 每百回合失分
	NetRating       float64 `json:"net_rating"`
	Pace            float64 `json:"pace"` // 每40分钟回合数
	EffectiveFGPct  float64 `json:"effective_fg_pct"`
	TurnoverPct     float64 `json:"turnover_pct"`
	ReboundPct      float64 `json:"offensive_rebound_pct"`
	FreeThrowRate   float64 `json:"free_throw_rate"`
	GamesPlayed     int     `json:"games_played"`
}

// StatLine 从 metrics JSON 解出类型化视图，解不出时返回零值视图与 false
func (s *TeamSeasonStat) StatLine() (StatLine, bool) {
	var line StatLine
	if len(s.Metrics) == 0 {
		return line, false
	}
	if err := json.Unmarshal(s.Metrics, &line); err != nil {
		return line, false
	}
	return line, true
}
