package service

import (
	"fmt"
	"time"
)

// DateLayout 业务日期格式（所有 date 入参统一 YYYY-MM-DD）
const DateLayout = "2006-01-02"

// SeasonForDate 计算日期所属赛季。NCAAB 赛季跨年，按结束年份命名：
// 7 月起的日期归入下一年赛季（2025-11-08 属于 2026 赛季）。
func SeasonForDate(t time.Time) int {
	if t.Month() >= time.July {
		return t.Year() + 1
	}
	return t.Year()
}

// DayWindow 把 YYYY-MM-DD 解析成本地时区的 [当日零点, 次日零点) 窗口
func DayWindow(date string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("日期格式无效（应为 YYYY-MM-DD）: %w", err)
	}
	return day, day.AddDate(0, 0, 1), nil
}
