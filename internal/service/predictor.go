package service

import (
	"math"
	"time"

	"PickSync/internal/config"
	"PickSync/internal/model"
)

// 效率与回合数的合理区间，超出视为脏数据回退到默认值
const (
	leagueAvgRating = 100.0 // 联盟平均每百回合得分
	leagueAvgTotal  = 142.0 // 联盟平均单场总分
	defaultRating   = 100.0
	minRating       = 60.0
	maxRating       = 180.0
	defaultPace     = 70.0
	minPace         = 55.0
	maxPace         = 85.0
)

// TeamSnapshot 单支球队的预测输入：赛季统计 + 近期完赛比赛（倒序）
type TeamSnapshot struct {
	TeamID uint64
	Stats  model.StatLine
	Recent []*model.Game
}

// FormMetrics 近期状态指标
type FormMetrics struct {
	AvgMargin   float64 // 平均净胜分（输为负）
	Consistency float64 // 数据可信度 [0.25, 0.85]，样本量/方差/波动三因素加权
}

// Projection 单场比赛的预测输出
type Projection struct {
	HomePoints       float64
	AwayPoints       float64
	Spread           float64 // 预测分差，正值表示主队赢
	Total            float64
	SpreadConfidence float64
	TotalConfidence  float64
	GamePace         float64
}

// Predictor 比分预测器。基于每百回合效率的投射打分法：
// 先算比赛回合数，再用进攻效率对冲对手防守效率得到两队期望得分，
// 让分与总分都从同一对投射比分导出，保证口径一致。
// 纯计算，不做 IO，数据由缓存网关提供。
type Predictor struct {
	homeCourtAdvantage float64 // 主场优势（效率分/每百回合）
}

func NewPredictor(cfg *config.PicksConfig) *Predictor {
	return &Predictor{homeCourtAdvantage: cfg.HomeCourtAdvantage}
}

// Project 预测一场比赛。startTime 用于赛季初总分修正，neutralSite 为真时不加主场优势。
func (p *Predictor) Project(home, away TeamSnapshot, neutralSite bool, startTime time.Time) Projection {
	// 1. 比赛回合数：主队节奏权重略高
	homePace := validatePace(home.Stats.Pace)
	awayPace := validatePace(away.Stats.Pace)
	gamePace := homePace*0.55 + awayPace*0.45

	// 2. 效率回归：赛季初样本少时向联盟平均收缩，强弱分明的对阵少收缩
	weight := regressionWeight(home, away)
	homeOff := regress(validateRating(home.Stats.OffensiveRating), weight)
	homeDef := regress(validateRating(home.Stats.DefensiveRating), weight)
	awayOff := regress(validateRating(away.Stats.OffensiveRating), weight)
	awayDef := regress(validateRating(away.Stats.DefensiveRating), weight)

	// 3. 期望效率：己方进攻叠加对手防守相对联盟平均的偏移
	// 对手防守好于平均（防守效率低）会压低己方得分，反之抬高
	homeEff := homeOff + (awayDef - leagueAvgRating)
	awayEff := awayOff + (homeDef - leagueAvgRating)
	if !neutralSite {
		homeEff += p.homeCourtAdvantage
	}

	// 4. 近期状态小幅修正（上限 ±5 分）
	homeForm := analyzeRecentForm(home.Recent, home.TeamID)
	awayForm := analyzeRecentForm(away.Recent, away.TeamID)
	formAdj := clamp((homeForm.AvgMargin-awayForm.AvgMargin)*0.10, -5, 5)

	// 5. 投射比分与衍生盘口
	homeProjected := homeEff * gamePace / 100
	awayProjected := awayEff * gamePace / 100

	spread := clamp(homeProjected-awayProjected+formAdj, -50, 50)

	total := homeProjected + awayProjected
	// 赛季初整体得分偏低：11 月及 12 月上半月下调
	switch {
	case startTime.Month() == time.November:
		total *= 0.95
	case startTime.Month() == time.December && startTime.Day() <= 14:
		total *= 0.97
	}
	total = clamp(total, 110, 200)

	sampleGames := len(home.Recent) + len(away.Recent)
	return Projection{
		HomePoints:       roundTo(homeProjected, 1),
		AwayPoints:       roundTo(awayProjected, 1),
		Spread:           roundTo(spread, 1),
		Total:            roundTo(total, 1),
		SpreadConfidence: spreadConfidence(homeForm, awayForm, spread, sampleGames),
		TotalConfidence:  totalConfidence(homeForm, awayForm, total, homePace, awayPace, sampleGames),
		GamePace:         roundTo(gamePace, 1),
	}
}

// regressionWeight 对实测效率的信任权重 [0.75, 0.99]。
// 场次越多越信任；净效率差距大的对阵（强弱分明）提前信任。
func regressionWeight(home, away TeamSnapshot) float64 {
	homeGames := float64(home.Stats.GamesPlayed)
	if homeGames == 0 {
		homeGames = float64(len(home.Recent))
	}
	awayGames := float64(away.Stats.GamesPlayed)
	if awayGames == 0 {
		awayGames = float64(len(away.Recent))
	}
	avgGames := (homeGames + awayGames) / 2

	var base float64
	switch {
	case avgGames <= 5:
		base = 0.75 + avgGames/5*0.10
	case avgGames <= 10:
		base = 0.85 + (avgGames-5)/5*0.07
	case avgGames <= 20:
		base = 0.92 + (avgGames-10)/10*0.05
	default:
		base = 0.97 + math.Min((avgGames-20)/20, 1)*0.02
	}

	// 进攻/防守单边差距权重 0.7，避免只看净效率漏掉单边碾压
	netGap := math.Abs(home.Stats.NetRating - away.Stats.NetRating)
	offGap := math.Abs(home.Stats.OffensiveRating-away.Stats.OffensiveRating) * 0.7
	defGap := math.Abs(home.Stats.DefensiveRating-away.Stats.DefensiveRating) * 0.7
	maxGap := math.Max(netGap, math.Max(offGap, defGap))

	var boost float64
	switch {
	case maxGap > 30:
		boost = 0.10
	case maxGap > 20:
		boost = 0.07
	case maxGap > 15:
		boost = 0.04
	}

	return math.Min(0.99, base+boost)
}

// analyzeRecentForm 从近期完赛比赛提取状态指标。
// 没有可用比分时返回中性状态（低可信度 0.3）。
func analyzeRecentForm(recent []*model.Game, teamID uint64) FormMetrics {
	var margins []float64
	for _, g := range recent {
		if g.HomeScore == nil || g.AwayScore == nil {
			continue
		}
		margin := float64(*g.HomeScore - *g.AwayScore)
		if g.AwayTeamID == teamID {
			margin = -margin
		}
		margins = append(margins, margin)
	}
	if len(margins) == 0 {
		return FormMetrics{AvgMargin: 0, Consistency: 0.3}
	}

	n := len(margins)
	avgMargin := mean(margins)

	// 样本量因子：场次少时压低可信度
	var sampleFactor float64
	switch {
	case n <= 2:
		sampleFactor = 0.3
	case n <= 5:
		sampleFactor = 0.4 + float64(n-2)*0.05
	case n <= 10:
		sampleFactor = 0.55 + float64(n-5)*0.04
	default:
		sampleFactor = math.Min(0.75+float64(n-10)*0.02, 0.90)
	}

	// 方差因子：净胜分波动越小越稳定（NCAAB 常见标准差 10~20 分）
	varianceFactor := 0.4
	if n > 1 {
		std := stddev(margins, avgMargin)
		switch {
		case std < 8:
			varianceFactor = 0.75 - std/20
		case std < 12:
			varianceFactor = 0.6 + (12-std)/40
		case std < 18:
			varianceFactor = 0.45 + (18-std)/60
		default:
			varianceFactor = math.Max(0.3, 0.45-(std-18)/100)
		}
	}

	// 波动因子：大胜大负交替的队伍不可信
	qualityFactor := 0.5
	if n >= 3 {
		swing := maxOf(margins) - minOf(margins)
		if swing > 40 {
			qualityFactor = math.Max(0.3, 1-(swing-40)/100)
		} else {
			qualityFactor = 0.8
		}
	}

	consistency := sampleFactor*0.5 + varianceFactor*0.3 + qualityFactor*0.2
	return FormMetrics{
		AvgMargin:   avgMargin,
		Consistency: roundTo(clamp(consistency, 0.25, 0.85), 3),
	}
}

func spreadConfidence(homeForm, awayForm FormMetrics, spread float64, sampleGames int) float64 {
	conf := math.Max(0.40, (homeForm.Consistency+awayForm.Consistency)/2)
	if sampleGames < 4 {
		conf *= 0.90
	} else if sampleGames < 8 {
		conf *= 0.95
	}
	// 极端分差波动更大
	switch abs := math.Abs(spread); {
	case abs > 30:
		conf *= 0.85
	case abs > 20:
		conf *= 0.92
	case abs > 15:
		conf *= 0.96
	}
	return roundTo(math.Min(conf, 0.85), 3)
}

func totalConfidence(homeForm, awayForm FormMetrics, total, homePace, awayPace float64, sampleGames int) float64 {
	conf := math.Max(0.35, (homeForm.Consistency+awayForm.Consistency)/2)
	if sampleGames < 4 {
		conf *= 0.88
	} else if sampleGames < 8 {
		conf *= 0.94
	}
	// 偏离联盟平均总分越远越难打准
	switch dev := math.Abs(total - leagueAvgTotal); {
	case dev > 30:
		conf *= 0.80
	case dev > 20:
		conf *= 0.88
	case dev > 15:
		conf *= 0.94
	}
	// 两队节奏差距大时比赛节奏难判
	if math.Abs(homePace-awayPace) > 15 {
		conf *= 0.90
	}
	// 总分本身就比让分难预测
	conf *= 0.92
	return roundTo(clamp(conf, 0.35, 0.75), 3)
}

// CalculateWinProbability 预测分差转独赢胜率：logistic 曲线再按置信度向 0.5 收缩
func CalculateWinProbability(predictedSpread, confidence float64) float64 {
	base := 1 / (1 + math.Exp(-predictedSpread/7))
	return roundTo(0.5+(base-0.5)*confidence, 3)
}

func validateRating(rating float64) float64 {
	if rating <= 0 || rating < minRating || rating > maxRating {
		return defaultRating
	}
	return rating
}

func validatePace(pace float64) float64 {
	if pace <= 0 || pace < minPace || pace > maxPace {
		return defaultPace
	}
	return pace
}

func regress(rating, weight float64) float64 {
	return rating*weight + leagueAvgRating*(1-weight)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, avg float64) float64 {
	var sum float64
	for _, v := range values {
		sum += (v - avg) * (v - avg)
	}
	return math.Sqrt(sum / float64(len(values)))
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
