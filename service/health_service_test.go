package service

import (
	"testing"
	"time"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// healthFixture 组装一套完整的健康度依赖
type healthFixture struct {
	db         *gorm.DB
	connSvc    *ConnectionService
	msgSvc     *MessageService
	checkInSvc *CheckInService
	planSvc    *StudyPlanService
	healthSvc  *HealthService
	a, b       *model.StudyProfile
	connection *model.Connection
}

func newHealthFixture(t *testing.T) *healthFixture {
	t.Helper()

	db := newTestDB(t)
	profileSvc := NewProfileService(db)
	connSvc := NewConnectionService(db, profileSvc)
	msgSvc := NewMessageService(db)
	checkInSvc := NewCheckInService(db)
	planSvc := NewStudyPlanService(db)
	healthSvc := NewHealthService(db)

	healthSvc.SetMessageStats(msgSvc)
	healthSvc.SetCheckInStats(checkInSvc)
	healthSvc.SetPlanProgress(planSvc)
	checkInSvc.SetStreakUpdater(healthSvc)

	a := createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	b := createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	connection := createAcceptedConnection(t, db, connSvc, a, b)

	return &healthFixture{
		db: db, connSvc: connSvc, msgSvc: msgSvc, checkInSvc: checkInSvc,
		planSvc: planSvc, healthSvc: healthSvc, a: a, b: b, connection: connection,
	}
}

// insertMessageAt 直接落一条指定时间的消息（绕过服务层的时间戳）
func (f *healthFixture) insertMessageAt(t *testing.T, senderID uuid.UUID, at time.Time) {
	t.Helper()
	message := &model.StudyMessage{
		ConnectionID: f.connection.ID,
		SenderID:     senderID,
		Content:      "hello",
		CreatedAt:    at,
	}
	require.NoError(t, f.db.Create(message).Error)
}

func TestCalculateHealth_LazyCreateDefaults(t *testing.T) {
	f := newHealthFixture(t)

	health, err := f.healthSvc.GetHealth(f.connection.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, health.OverallScore)
	assert.Equal(t, model.HealthGood, health.HealthStatus)
	assert.Equal(t, 50, health.Metrics.CompletionBalance.Score)
	assert.Equal(t, 50, health.Metrics.ResponseTime.Score)
}

func TestCalculateHealth_ZeroActivity(t *testing.T) {
	f := newHealthFixture(t)

	health, err := f.healthSvc.CalculateHealth(f.connection.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, health.Metrics.InteractionFrequency.Score)
	assert.Equal(t, 0, health.Metrics.Engagement.Score)
	// 没有计划时均衡分保留默认值（粘滞策略）
	assert.Equal(t, 50, health.Metrics.CompletionBalance.Score)
	// 0.25*0 + 0.25*50 + 0.30*0 + 0.10*50 + 0.10*50 = 22.5 → 23
	assert.Equal(t, 23, health.OverallScore)
	assert.Equal(t, model.HealthAtRisk, health.HealthStatus)
	// 从未有消息：不活跃天数保持为空
	assert.Nil(t, health.Activity.ConsecutiveInactiveDays)
}

func TestCalculateHealth_MessageScores(t *testing.T) {
	f := newHealthFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.msgSvc.SendMessage(f.connection.ID, f.a.UserID, "let's study")
		require.NoError(t, err)
	}

	health, err := f.healthSvc.CalculateHealth(f.connection.ID)
	require.NoError(t, err)

	assert.Equal(t, 30, health.Metrics.InteractionFrequency.Score) // 3 × 10
	assert.Equal(t, 15, health.Metrics.Engagement.Score)           // 3 × 5
	assert.Equal(t, 3, health.Metrics.Engagement.MessageCount)
	require.NotNil(t, health.Activity.ConsecutiveInactiveDays)
	assert.Equal(t, 0, *health.Activity.ConsecutiveInactiveDays)
}

func TestCalculateHealth_InteractionFrequencyCapped(t *testing.T) {
	f := newHealthFixture(t)

	for i := 0; i < 12; i++ {
		_, err := f.msgSvc.SendMessage(f.connection.ID, f.a.UserID, "ping")
		require.NoError(t, err)
	}

	health, err := f.healthSvc.CalculateHealth(f.connection.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, health.Metrics.InteractionFrequency.Score)
}

func TestCalculateHealth_CompletionBalanceIsSticky(t *testing.T) {
	f := newHealthFixture(t)

	plan, err := f.planSvc.CreatePlan(f.connection.ID, f.a.UserID, "week 1", []string{"ch1", "ch2", "ch3", "ch4"})
	require.NoError(t, err)

	// A 完成全部，B 完成 1 项：|100-25| = 75 → 均衡分 25
	for _, item := range plan.Items {
		_, err := f.planSvc.ToggleItem(plan.ID, item.ID, f.a.UserID, true)
		require.NoError(t, err)
	}
	_, err = f.planSvc.ToggleItem(plan.ID, plan.Items[0].ID, f.b.UserID, true)
	require.NoError(t, err)

	health, err := f.healthSvc.CalculateHealth(f.connection.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, health.Metrics.CompletionBalance.Score)

	// 归档计划后重算：均衡分保留历史值，不重置
	require.NoError(t, f.db.Model(&model.StudyPlan{}).
		Where("id = ?", plan.ID).
		Update("status", model.PlanArchived).Error)

	health, err = f.healthSvc.CalculateHealth(f.connection.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, health.Metrics.CompletionBalance.Score)
}

func TestCalculateHealth_UnbalancedProgressAlert(t *testing.T) {
	f := newHealthFixture(t)

	plan, err := f.planSvc.CreatePlan(f.connection.ID, f.a.UserID, "week 1", []string{"ch1", "ch2"})
	require.NoError(t, err)
	for _, item := range plan.Items {
		_, err := f.planSvc.ToggleItem(plan.ID, item.ID, f.a.UserID, true)
		require.NoError(t, err)
	}

	// |100-0| = 100 → 均衡分 0 → UNBALANCED_PROGRESS 告警
	health, err := f.healthSvc.CalculateHealth(f.connection.ID)
	require.NoError(t, err)
	require.Len(t, health.Alerts, 1)
	assert.Equal(t, model.AlertUnbalancedProgress, health.Alerts[0].Type)
	assert.Equal(t, model.SeverityInfo, health.Alerts[0].Severity)
}

func TestCalculateHealth_LowActivityAlertDeduplicated(t *testing.T) {
	f := newHealthFixture(t)

	f.insertMessageAt(t, f.a.UserID, time.Now().UTC().AddDate(0, 0, -10))

	health, err := f.healthSvc.CalculateHealth(f.connection.ID)
	require.NoError(t, err)
	require.NotNil(t, health.Activity.ConsecutiveInactiveDays)
	assert.Equal(t, 10, *health.Activity.ConsecutiveInactiveDays)

	countLowActivity := func(alerts []model.HealthAlert) int {
		n := 0
		for _, alert := range alerts {
			if alert.Type == model.AlertLowActivity {
				n++
			}
		}
		return n
	}
	require.Equal(t, 1, countLowActivity(health.Alerts))
	alertID := health.Alerts[0].ID

	// 未确认期间重算不重复告警
	health, err = f.healthSvc.CalculateHealth(f.connection.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, countLowActivity(health.Alerts))

	// 确认后重算会再次触发
	require.NoError(t, f.healthSvc.AcknowledgeAlert(f.connection.ID, alertID))
	health, err = f.healthSvc.CalculateHealth(f.connection.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, countLowActivity(health.Alerts))
}

func TestCalculateHealth_SuggestionsAreReplaced(t *testing.T) {
	f := newHealthFixture(t)

	health, err := f.healthSvc.CalculateHealth(f.connection.ID)
	require.NoError(t, err)

	actions := func(suggestions []model.HealthSuggestion) map[string]bool {
		set := map[string]bool{}
		for _, suggestion := range suggestions {
			set[suggestion.Action] = true
		}
		return set
	}

	// 零活动：催消息 + 催打卡
	set := actions(health.Suggestions)
	assert.True(t, set["increase-messages"])
	assert.True(t, set["schedule-checkin"])
	assert.False(t, set["sync-progress"])

	// 消息充足后重算：列表整体替换，不再催消息
	for i := 0; i < 5; i++ {
		_, err := f.msgSvc.SendMessage(f.connection.ID, f.a.UserID, "studying hard")
		require.NoError(t, err)
	}
	health, err = f.healthSvc.CalculateHealth(f.connection.ID)
	require.NoError(t, err)
	set = actions(health.Suggestions)
	assert.False(t, set["increase-messages"])
	assert.True(t, set["schedule-checkin"])
}

func TestAddFeedback_OneLiveEntryPerUserPer30Days(t *testing.T) {
	f := newHealthFixture(t)

	_, err := f.healthSvc.AddFeedback(f.connection.ID, f.a.UserID, "GOOD", "going well", false)
	require.NoError(t, err)
	health, err := f.healthSvc.AddFeedback(f.connection.ID, f.a.UserID, "FAIR", "slowed down", false)
	require.NoError(t, err)

	require.Len(t, health.Feedback, 1, "same user within 30 days keeps only the latest entry")
	assert.Equal(t, "FAIR", health.Feedback[0].Status)

	// 另一个用户的反馈互不挤占
	health, err = f.healthSvc.AddFeedback(f.connection.ID, f.b.UserID, "GOOD", "", false)
	require.NoError(t, err)
	assert.Len(t, health.Feedback, 2)
}

func TestAddFeedback_RematchAlertDeduplicated(t *testing.T) {
	f := newHealthFixture(t)

	health, err := f.healthSvc.AddFeedback(f.connection.ID, f.a.UserID, "AT_RISK", "", true)
	require.NoError(t, err)
	require.Len(t, health.Alerts, 1)
	assert.Equal(t, model.AlertRematchSuggested, health.Alerts[0].Type)

	health, err = f.healthSvc.AddFeedback(f.connection.ID, f.b.UserID, "AT_RISK", "", true)
	require.NoError(t, err)
	assert.Len(t, health.Alerts, 1, "unacknowledged rematch alert must not duplicate")
}

func TestAcknowledgeAlert_Unknown(t *testing.T) {
	f := newHealthFixture(t)

	err := f.healthSvc.AcknowledgeAlert(f.connection.ID, uuid.New())
	requireKind(t, err, utils.ErrNotFound)
}

func TestGetAtRiskConnections_AscendingByScore(t *testing.T) {
	f := newHealthFixture(t)

	// 直接构造不同分数的健康记录
	records := []model.ConnectionHealth{
		{ConnectionID: uuid.New(), OverallScore: 35, HealthStatus: model.HealthAtRisk},
		{ConnectionID: uuid.New(), OverallScore: 10, HealthStatus: model.HealthInactive},
		{ConnectionID: uuid.New(), OverallScore: 85, HealthStatus: model.HealthHealthy},
	}
	for i := range records {
		require.NoError(t, f.db.Create(&records[i]).Error)
	}

	atRisk, err := f.healthSvc.GetAtRiskConnections()
	require.NoError(t, err)
	require.Len(t, atRisk, 2)
	assert.Equal(t, 10, atRisk[0].OverallScore)
	assert.Equal(t, 35, atRisk[1].OverallScore)
}

func TestRecordCheckIn_StreakProgression(t *testing.T) {
	f := newHealthFixture(t)

	day1 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day4 := day1.AddDate(0, 0, 3)

	require.NoError(t, f.healthSvc.RecordCheckIn(f.connection.ID, f.a.UserID, day1))
	health, err := f.healthSvc.GetHealth(f.connection.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, health.Streaks.Current)
	assert.Equal(t, 1, health.Activity.TotalActiveDays)

	// 连续第二天
	require.NoError(t, f.healthSvc.RecordCheckIn(f.connection.ID, f.a.UserID, day2))
	health, err = f.healthSvc.GetHealth(f.connection.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, health.Streaks.Current)
	assert.Equal(t, 2, health.Streaks.Longest)

	// 中断一天后重置
	require.NoError(t, f.healthSvc.RecordCheckIn(f.connection.ID, f.a.UserID, day4))
	health, err = f.healthSvc.GetHealth(f.connection.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, health.Streaks.Current)
	assert.Equal(t, 2, health.Streaks.Longest, "longest is a high-water mark")
	assert.Equal(t, 3, health.Activity.TotalActiveDays)
}

func TestRecordCheckIn_WeekCountResetsOnNewISOWeek(t *testing.T) {
	f := newHealthFixture(t)

	// 2026-03-07 周六 / 03-08 周日 / 03-09 下一个 ISO 周的周一
	saturday := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	sunday := saturday.AddDate(0, 0, 1)
	monday := saturday.AddDate(0, 0, 2)

	require.NoError(t, f.healthSvc.RecordCheckIn(f.connection.ID, f.a.UserID, saturday))
	require.NoError(t, f.healthSvc.RecordCheckIn(f.connection.ID, f.a.UserID, sunday))
	health, err := f.healthSvc.GetHealth(f.connection.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, health.Streaks.WeekCheckIns)

	require.NoError(t, f.healthSvc.RecordCheckIn(f.connection.ID, f.a.UserID, monday))
	health, err = f.healthSvc.GetHealth(f.connection.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, health.Streaks.WeekCheckIns, "week counter resets across the ISO week boundary")
	assert.Equal(t, 3, health.Streaks.Current, "daily streak keeps running across weeks")
}

func TestRecordCheckIn_WeeklyGoalMilestone(t *testing.T) {
	f := newHealthFixture(t)
	milestoneSvc := NewMilestoneService(f.db, DefaultBadgeCatalog())
	f.healthSvc.SetMilestoneAwarder(milestoneSvc)

	// 周一起步，连打 4 天还差一次
	monday := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for day := 0; day < 4; day++ {
		require.NoError(t, f.healthSvc.RecordCheckIn(f.connection.ID, f.a.UserID, monday.AddDate(0, 0, day)))
	}
	assert.False(t, heldTypes(t, f.db, f.a.UserID)[MilestoneWeeklyGoalMet])

	// 第 5 次达到周目标
	require.NoError(t, f.healthSvc.RecordCheckIn(f.connection.ID, f.a.UserID, monday.AddDate(0, 0, 4)))
	assert.True(t, heldTypes(t, f.db, f.a.UserID)[MilestoneWeeklyGoalMet])

	// 继续打卡不会重复授予
	require.NoError(t, f.healthSvc.RecordCheckIn(f.connection.ID, f.a.UserID, monday.AddDate(0, 0, 5)))
	var count int64
	require.NoError(t, f.db.Model(&model.Milestone{}).
		Where("user_id = ? AND type = ?", f.a.UserID, MilestoneWeeklyGoalMet).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordCheckIn_AwardsStreakMilestones(t *testing.T) {
	f := newHealthFixture(t)
	milestoneSvc := NewMilestoneService(f.db, DefaultBadgeCatalog())
	f.healthSvc.SetMilestoneAwarder(milestoneSvc)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		require.NoError(t, f.healthSvc.RecordCheckIn(f.connection.ID, f.a.UserID, start.AddDate(0, 0, day)))
	}

	assert.True(t, heldTypes(t, f.db, f.a.UserID)[MilestoneStreak3])
	assert.False(t, heldTypes(t, f.db, f.a.UserID)[MilestoneStreak7])
}
