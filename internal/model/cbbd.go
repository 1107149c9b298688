package model

// ========== CBBD 官方 API 响应结构（api.collegebasketballdata.com） ==========

// CBBDTeam GET /teams 单条球队
type CBBDTeam struct {
	ID           int64  `json:"id"`           // 上游球队ID
	School       string `json:"school"`       // 学校名（展示用主名称）
	Mascot       string `json:"mascot"`       // 队名/吉祥物
	Abbreviation string `json:"abbreviation"` // 缩写
	Conference   string `json:"conference"`   // 所属联盟
}

// CBBDTeamSeasonStats GET /stats/team/season 单条球队赛季统计
type CBBDTeamSeasonStats struct {
	Season     int           `json:"season"`
	TeamID     int64         `json:"teamId"`
	Team       string        `json:"team"`
	Conference string        `json:"conference"`
	Games      int           `json:"games"`
	Pace       float64       `json:"pace"` // 每40分钟回合数
	Offense    CBBDUnitStats `json:"offense"`
	Defense    CBBDUnitStats `json:"defense"`
}

// CBBDUnitStats 进攻或防守端的效率指标（四要素）
type CBBDUnitStats struct {
	Rating              float64 `json:"rating"` // 每百回合得分/失分
	EffectiveFGPct      float64 `json:"effectiveFieldGoalPct"`
	TurnoverPct         float64 `json:"turnoverRatio"`
	OffensiveReboundPct float64 `json:"offensiveReboundPct"`
	FreeThrowRate       float64 `json:"freeThrowRate"`
}

// CBBDGame GET /games 单条比赛
type CBBDGame struct {
	ID             int64  `json:"id"`
	Season         int    `json:"season"`
	StartDate      string `json:"startDate"` // RFC3339 字符串
	HomeTeamID     int64  `json:"homeTeamId"`
	HomeTeam       string `json:"homeTeam"`
	AwayTeamID     int64  `json:"awayTeamId"`
	AwayTeam       string `json:"awayTeam"`
	HomePoints     *int   `json:"homePoints"` // 未结束为 null
	AwayPoints     *int   `json:"awayPoints"`
	Status         string `json:"status"` // scheduled/in_progress/final
	NeutralSite    bool   `json:"neutralSite"`
	ConferenceGame bool   `json:"conferenceGame"`
}

// CBBDGameLine GET /lines 单场盘口（取主流庄家一条）
type CBBDGameLine struct {
	GameID    int64          `json:"gameId"`
	HomeTeam  string         `json:"homeTeam"`
	AwayTeam  string         `json:"awayTeam"`
	StartDate string         `json:"startDate"`
	Lines     []CBBDLineItem `json:"lines"`
}

// CBBDLineItem 单个庄家的盘口报价
type CBBDLineItem struct {
	Provider      string   `json:"provider"`
	Spread        *float64 `json:"spread"` // 主队让分（负数=主队让）
	OverUnder     *float64 `json:"overUnder"`
	HomeMoneyline *int     `json:"homeMoneyline"`
	AwayMoneyline *int     `json:"awayMoneyline"`
}
