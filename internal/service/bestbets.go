package service

import (
	"math"

	"PickSync/internal/config"
	"PickSync/internal/model"
)

// AmericanToProbability 美式赔率转隐含概率
func AmericanToProbability(odds int) float64 {
	if odds < 0 {
		return float64(-odds) / float64(-odds+100)
	}
	return 100 / float64(odds+100)
}

// AmericanToDecimal 美式赔率转欧赔
func AmericanToDecimal(odds int) float64 {
	if odds < 0 {
		return 1 + 100/float64(-odds)
	}
	return 1 + float64(odds)/100
}

// SpreadEdgeValue 让分边际转价值评分 [0.50, 0.70]。
// 这不是真实胜率：让分盘本身设计成五五开，这里量化的是模型与市场的分歧强度，
// 市场也不傻，30 分的分歧也只给到 0.70。edge 为被选一侧的正向边际，
// 不足半分视为无边际。
func SpreadEdgeValue(edge float64) float64 {
	if edge < 0.5 {
		return 0.50
	}
	var v float64
	switch {
	case edge <= 5:
		v = 0.50 + edge*0.015
	case edge <= 10:
		v = 0.575 + (edge-5)*0.012
	case edge <= 20:
		v = 0.635 + (edge-10)*0.006
	default:
		v = 0.695 + math.Min((edge-20)*0.001, 0.005)
	}
	return clamp(v, 0.50, 0.70)
}

// TotalEdgeValue 大小分边际转价值评分 [0.50, 0.65]。
// 总分比让分更难预测，曲线比 SpreadEdgeValue 更保守、上限更低。
func TotalEdgeValue(edge float64) float64 {
	if edge < 0.5 {
		return 0.50
	}
	var v float64
	switch {
	case edge <= 6:
		v = 0.50 + edge*0.012
	case edge <= 12:
		v = 0.572 + (edge-6)*0.008
	case edge <= 20:
		v = 0.620 + (edge-12)*0.003
	default:
		v = 0.644 + math.Min((edge-20)*0.0005, 0.006)
	}
	return clamp(v, 0.50, 0.65)
}

// AdjustConfidenceForEdge 按边际大小修正置信度 [0.25, 0.88]。
// 特别大的边际往往意味着模型给出了极端预测，反而要降置信度；
// 中等边际小幅加成。大小分的修正整体更保守。
func AdjustConfidenceForEdge(base, edge float64, betType string) float64 {
	abs := math.Abs(edge)
	var m float64
	if betType == model.BetTypeSpread {
		switch {
		case abs < 2:
			m = 0.95
		case abs < 5:
			m = 1.0
		case abs < 10:
			m = 1.05
		case abs < 15:
			m = 1.0
		case abs < 20:
			m = 0.92
		default:
			m = 0.85
		}
	} else {
		switch {
		case abs < 3:
			m = 0.92
		case abs < 7:
			m = 1.0
		case abs < 12:
			m = 1.03
		case abs < 18:
			m = 0.94
		default:
			m = 0.87
		}
	}
	return roundTo(clamp(base*m, 0.25, 0.88), 3)
}

// BetScorer best bet 筛选与排序
type BetScorer struct {
	maxOdds       int     // 赔率下限（如 -125，比它更差的负赔不选）
	minConfidence float64 // 最低置信度
	topCount      int     // 每日 best bet 数量 K
}

func NewBetScorer(cfg *config.PicksConfig) *BetScorer {
	return &BetScorer{
		maxOdds:       cfg.MaxOdds,
		minConfidence: cfg.MinConfidence,
		topCount:      cfg.BestBetCount,
	}
}

// Score 综合排序分：胜率权重 0.6、置信度权重 0.4，
// 再按隐含概率对重负赔小幅折价（占用本金多），保留 4 位小数。
func (s *BetScorer) Score(winProb, confidence float64, odds int) float64 {
	implied := AmericanToProbability(odds)
	oddsFactor := 1 - (implied-0.5)*0.2
	return roundTo((winProb*0.6+confidence*0.4)*oddsFactor, 4)
}

// MeetsOddsCriteria 赔率是否达标。正赔一律达标；
// 负赔越接近 0 越好，-110 好于 -125，-150 不达标。
func (s *BetScorer) MeetsOddsCriteria(odds int) bool {
	if odds >= 0 {
		return true
	}
	return odds >= s.maxOdds
}

// Eligible 是否有资格进入 best bet 候选
func (s *BetScorer) Eligible(p *model.ModelPick) bool {
	return p.Confidence >= s.minConfidence && s.MeetsOddsCriteria(p.Odds) && p.BetScore > 0
}

// TopCount 每日 best bet 数量
func (s *BetScorer) TopCount() int {
	return s.topCount
}
