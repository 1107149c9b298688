package repository

import (
	"context"
	"testing"
	"time"

	"PickSync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 内存 sqlite。必须限成单连接：连接池里每个连接都会拿到一份独立的 :memory: 库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.Team{},
		&model.TeamSeasonStat{},
		&model.Game{},
		&model.ModelPick{},
		&model.CacheMetadata{},
	))
	return db
}

func newPick(date string, gameID uint64, betType, uuid string) *model.ModelPick {
	return &model.ModelPick{
		PickUUID: uuid,
		PickDate: date,
		GameID:   gameID,
		BetType:  betType,
		Pick:     "Duke -5.5",
		Line:     -5.5,
		Odds:     -110,
	}
}

func intPtr(v int) *int { return &v }

func TestCreatePick_UniquePerDateGameType(t *testing.T) {
	db := newTestDB(t)
	repo := NewPickRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreatePick(ctx, newPick("2026-01-15", 9001, model.BetTypeSpread, "u1")))

	// 同 (日期, 比赛, 盘口类型) 再插翻译成 gorm.ErrDuplicatedKey
	err := repo.CreatePick(ctx, newPick("2026-01-15", 9001, model.BetTypeSpread, "u2"))
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// 换盘口类型或换日期都不冲突
	require.NoError(t, repo.CreatePick(ctx, newPick("2026-01-15", 9001, model.BetTypeTotal, "u3")))
	require.NoError(t, repo.CreatePick(ctx, newPick("2026-01-16", 9001, model.BetTypeSpread, "u4")))
}

func TestGetPick_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewPickRepository(db)
	ctx := context.Background()

	_, err := repo.GetPick(ctx, "2026-01-15", 9001, model.BetTypeSpread)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetPickByID(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetPickByUUID(ctx, "no-such-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePredictionIfUnlocked(t *testing.T) {
	db := newTestDB(t)
	repo := NewPickRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreatePick(ctx, newPick("2026-01-15", 9001, model.BetTypeSpread, "u1")))
	row, err := repo.GetPick(ctx, "2026-01-15", 9001, model.BetTypeSpread)
	require.NoError(t, err)

	candidate := newPick("2026-01-15", 9001, model.BetTypeSpread, "ignored")
	candidate.Pick = "Duke -7.0"
	candidate.Line = -7
	candidate.Confidence = 0.7
	candidate.BetScore = 0.61

	ok, err := repo.UpdatePredictionIfUnlocked(ctx, row.ID, candidate, now)
	require.NoError(t, err)
	assert.True(t, ok)

	updated, err := repo.GetPickByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, "Duke -7.0", updated.Pick)
	assert.InDelta(t, -7.0, updated.Line, 1e-9)
	assert.InDelta(t, 0.7, updated.Confidence, 1e-9)
	assert.Equal(t, "u1", updated.PickUUID) // UUID 不在覆盖字段里

	// 锁定后条件更新不生效
	require.NoError(t, db.Model(&model.ModelPick{}).Where("id = ?", row.ID).Update("is_locked", true).Error)
	ok, err = repo.UpdatePredictionIfUnlocked(ctx, row.ID, newPick("2026-01-15", 9001, model.BetTypeSpread, "x"), now)
	require.NoError(t, err)
	assert.False(t, ok)

	final, err := repo.GetPickByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, "Duke -7.0", final.Pick)
}

func TestLockStarted(t *testing.T) {
	db := newTestDB(t)
	repo := NewPickRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&model.Game{
		ID: 9001, Season: 2026, StartTime: now.Add(-time.Hour),
		HomeTeamID: 55, AwayTeamID: 66, LastUpdated: now,
	}).Error)
	require.NoError(t, db.Create(&model.Game{
		ID: 9002, Season: 2026, StartTime: now.Add(time.Hour),
		HomeTeamID: 77, AwayTeamID: 88, LastUpdated: now,
	}).Error)

	require.NoError(t, repo.CreatePick(ctx, newPick("2026-01-15", 9001, model.BetTypeSpread, "u1")))
	require.NoError(t, repo.CreatePick(ctx, newPick("2026-01-15", 9002, model.BetTypeSpread, "u2")))
	// 库里没有对应比赛的决策不锁
	require.NoError(t, repo.CreatePick(ctx, newPick("2026-01-15", 9099, model.BetTypeSpread, "u3")))

	n, err := repo.LockStarted(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	started, err := repo.GetPickByUUID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, started.IsLocked)
	future, err := repo.GetPickByUUID(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, future.IsLocked)
	orphan, err := repo.GetPickByUUID(ctx, "u3")
	require.NoError(t, err)
	assert.False(t, orphan.IsLocked)

	// 幂等
	n, err = repo.LockStarted(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	// 时间推进后第二场也到点
	n, err = repo.LockStarted(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdateOutcome(t *testing.T) {
	db := newTestDB(t)
	repo := NewPickRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 1, 16, 4, 0, 0, 0, time.UTC)

	assert.ErrorIs(t, repo.UpdateOutcome(ctx, 12345, 70, 65, model.ResultWon, now), ErrNotFound)

	require.NoError(t, repo.CreatePick(ctx, newPick("2026-01-15", 9001, model.BetTypeSpread, "u1")))
	row, err := repo.GetPickByUUID(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateOutcome(ctx, row.ID, 70, 65, model.ResultLost, now))

	graded, err := repo.GetPickByID(ctx, row.ID)
	require.NoError(t, err)
	require.NotNil(t, graded.Result)
	assert.Equal(t, model.ResultLost, *graded.Result)
	assert.Equal(t, 70, *graded.HomeScore)
	assert.Equal(t, 65, *graded.AwayScore)
	assert.True(t, graded.Resolved())
}

func TestMarkBestBets_ClearThenRank(t *testing.T) {
	db := newTestDB(t)
	repo := NewPickRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	date := "2026-01-15"

	for i, uuid := range []string{"a", "b", "c"} {
		p := newPick(date, uint64(9001+i), model.BetTypeSpread, uuid)
		p.BetScore = float64(i+1) * 0.1
		require.NoError(t, repo.CreatePick(ctx, p))
	}
	// 其他日期已有旗标，不受影响
	other := newPick("2026-01-14", 8001, model.BetTypeSpread, "d")
	other.IsBestBet = true
	other.BestBetRank = intPtr(1)
	require.NoError(t, repo.CreatePick(ctx, other))

	a, _ := repo.GetPickByUUID(ctx, "a")
	b, _ := repo.GetPickByUUID(ctx, "b")

	// 传入顺序即排名
	require.NoError(t, repo.MarkBestBets(ctx, date, []uint64{b.ID, a.ID}, now))

	b, err := repo.GetPickByUUID(ctx, "b")
	require.NoError(t, err)
	assert.True(t, b.IsBestBet)
	require.NotNil(t, b.BestBetRank)
	assert.Equal(t, 1, *b.BestBetRank)
	a, err = repo.GetPickByUUID(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, a.BestBetRank)
	assert.Equal(t, 2, *a.BestBetRank)
	c, err := repo.GetPickByUUID(ctx, "c")
	require.NoError(t, err)
	assert.False(t, c.IsBestBet)

	// 重排：旧旗标先清掉
	require.NoError(t, repo.MarkBestBets(ctx, date, []uint64{a.ID}, now))
	a, _ = repo.GetPickByUUID(ctx, "a")
	require.NotNil(t, a.BestBetRank)
	assert.Equal(t, 1, *a.BestBetRank)
	b, _ = repo.GetPickByUUID(ctx, "b")
	assert.False(t, b.IsBestBet)
	assert.Nil(t, b.BestBetRank)

	// 不属于当日的 id 被忽略
	d, _ := repo.GetPickByUUID(ctx, "d")
	require.NoError(t, repo.MarkBestBets(ctx, date, []uint64{a.ID, d.ID}, now))
	d, _ = repo.GetPickByUUID(ctx, "d")
	require.NotNil(t, d.BestBetRank)
	assert.Equal(t, 1, *d.BestBetRank) // 2026-01-14 的旗标原样

	// 空列表等于全部清空
	require.NoError(t, repo.MarkBestBets(ctx, date, nil, now))
	a, _ = repo.GetPickByUUID(ctx, "a")
	assert.False(t, a.IsBestBet)
	d, _ = repo.GetPickByUUID(ctx, "d")
	assert.True(t, d.IsBestBet)
}

func TestListPicksByDate_OrderAndBestFilter(t *testing.T) {
	db := newTestDB(t)
	repo := NewPickRepository(db)
	ctx := context.Background()
	date := "2026-01-15"

	scores := map[string]float64{"a": 0.3, "b": 0.9, "c": 0.6}
	for i, uuid := range []string{"a", "b", "c"} {
		p := newPick(date, uint64(9001+i), model.BetTypeSpread, uuid)
		p.BetScore = scores[uuid]
		require.NoError(t, repo.CreatePick(ctx, p))
	}
	b, _ := repo.GetPickByUUID(ctx, "b")
	require.NoError(t, repo.MarkBestBets(ctx, date, []uint64{b.ID}, time.Now().UTC()))

	all, err := repo.ListPicksByDate(ctx, date, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].PickUUID) // 综合分降序
	assert.Equal(t, "c", all[1].PickUUID)
	assert.Equal(t, "a", all[2].PickUUID)

	best, err := repo.ListPicksByDate(ctx, date, true)
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, "b", best[0].PickUUID)

	// best bet 视图按定榜名次排，定榜后分数被重存也不换位
	c, _ := repo.GetPickByUUID(ctx, "c")
	require.NoError(t, repo.MarkBestBets(ctx, date, []uint64{b.ID, c.ID}, time.Now().UTC()))
	require.NoError(t, db.Model(&model.ModelPick{}).Where("id = ?", b.ID).Update("bet_score", 0.1).Error)

	best, err = repo.ListPicksByDate(ctx, date, true)
	require.NoError(t, err)
	require.Len(t, best, 2)
	assert.Equal(t, "b", best[0].PickUUID) // 名次 1 在前，分数已不是最高
	assert.Equal(t, "c", best[1].PickUUID)
}

func TestListPendingResults_LockedWithoutResultOnly(t *testing.T) {
	db := newTestDB(t)
	repo := NewPickRepository(db)
	ctx := context.Background()
	date := "2026-01-15"

	locked := newPick(date, 9001, model.BetTypeSpread, "pending")
	locked.IsLocked = true
	require.NoError(t, repo.CreatePick(ctx, locked))

	gradedResult := model.ResultWon
	graded := newPick(date, 9002, model.BetTypeSpread, "graded")
	graded.IsLocked = true
	graded.Result = &gradedResult
	graded.HomeScore = intPtr(70)
	graded.AwayScore = intPtr(65)
	require.NoError(t, repo.CreatePick(ctx, graded))

	// 未锁定的不进判定
	require.NoError(t, repo.CreatePick(ctx, newPick(date, 9003, model.BetTypeSpread, "unlocked")))

	otherDay := newPick("2026-01-14", 9004, model.BetTypeSpread, "other-day")
	otherDay.IsLocked = true
	require.NoError(t, repo.CreatePick(ctx, otherDay))

	pending, err := repo.ListPendingResults(ctx, date)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "pending", pending[0].PickUUID)
}

func TestListForSummary_RangeAndFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewPickRepository(db)
	ctx := context.Background()

	rows := []struct {
		date    string
		gameID  uint64
		betType string
		uuid    string
		best    bool
	}{
		{"2026-01-10", 1, model.BetTypeSpread, "p1", true},
		{"2026-01-12", 2, model.BetTypeTotal, "p2", false},
		{"2026-01-15", 3, model.BetTypeSpread, "p3", false},
	}
	for _, r := range rows {
		p := newPick(r.date, r.gameID, r.betType, r.uuid)
		p.IsBestBet = r.best
		require.NoError(t, repo.CreatePick(ctx, p))
	}

	// 闭区间，两端都算
	got, err := repo.ListForSummary(ctx, "2026-01-10", "2026-01-12", PickFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].PickUUID) // 日期升序
	assert.Equal(t, "p2", got[1].PickUUID)

	got, err = repo.ListForSummary(ctx, "2026-01-10", "2026-01-15", PickFilter{BetType: model.BetTypeSpread})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = repo.ListForSummary(ctx, "2026-01-10", "2026-01-15", PickFilter{BestOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].PickUUID)
}
