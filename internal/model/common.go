package model

// SourceType 数据源类型枚举
type SourceType string

const (
	SourceCBBD SourceType = "cbbd" // College Basketball Data API
)

// 投注类型（model_picks.bet_type 的合法取值）
const (
	BetTypeSpread    = "spread"    // 让分
	BetTypeTotal     = "total"     // 大小分
	BetTypeMoneyline = "moneyline" // 独赢
)

// 判定结果（model_picks.result 的合法取值，NULL 表示未出结果）
const (
	ResultWon  = "won"
	ResultLost = "lost"
	ResultPush = "push" // 正好打到盘口线，退款
)

// 大小分方向
const (
	SideOver  = "Over"
	SideUnder = "Under"
)
