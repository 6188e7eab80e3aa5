package service

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 综合健康分的权重；responseTime / goalAlignment 暂不重算，沿用历史值
const (
	weightInteraction = 0.25
	weightBalance     = 0.25
	weightEngagement  = 0.30
	weightResponse    = 0.10
	weightAlignment   = 0.10
)

// MessageStats 消息统计接口（由 MessageService 实现）
type MessageStats interface {
	CountSince(connectionID uuid.UUID, since time.Time) (int64, error)
	LastMessageAt(connectionID uuid.UUID) (*time.Time, error)
}

// CheckInStats 打卡统计接口（由 CheckInService 实现）
type CheckInStats interface {
	CountSubmittedSince(connectionID uuid.UUID, since time.Time) (int64, error)
}

// PlanProgress 学习计划进度接口（由 StudyPlanService 实现）
type PlanProgress interface {
	ActivePlanProgress(connectionID, userA, userB uuid.UUID) (pctA, pctB float64, total int, ok bool, err error)
}

// HealthService 搭档关系健康度引擎
// 重算由外部触发（API 调用或定时任务），缺失活动数据时降级为默认/历史值，从不报错
type HealthService struct {
	db           *gorm.DB
	messages     MessageStats
	checkIns     CheckInStats
	plans        PlanProgress
	milestoneSvc MilestoneAwarder
	notifier     NotificationSink
}

func NewHealthService(db *gorm.DB) *HealthService {
	return &HealthService{db: db}
}

// SetMessageStats 设置消息统计源（用于依赖注入）
func (s *HealthService) SetMessageStats(stats MessageStats) {
	s.messages = stats
}

// SetCheckInStats 设置打卡统计源
func (s *HealthService) SetCheckInStats(stats CheckInStats) {
	s.checkIns = stats
}

// SetPlanProgress 设置计划进度源
func (s *HealthService) SetPlanProgress(progress PlanProgress) {
	s.plans = progress
}

// SetMilestoneAwarder 设置成就授予器
func (s *HealthService) SetMilestoneAwarder(awarder MilestoneAwarder) {
	s.milestoneSvc = awarder
}

// SetNotificationSink 设置通知发送器
func (s *HealthService) SetNotificationSink(sink NotificationSink) {
	s.notifier = sink
}

// CalculateHealth 重算一条关系的健康度，返回更新后的记录
func (s *HealthService) CalculateHealth(connectionID uuid.UUID) (*model.ConnectionHealth, error) {
	var connection model.Connection
	err := s.db.Where("id = ?", connectionID).First(&connection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("connection not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}

	health, err := s.getOrCreate(connectionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	// 互动频率：近 7 天消息数 × 10，封顶 100
	msgs7d := s.countMessages(connectionID, now.AddDate(0, 0, -7))
	health.Metrics.InteractionFrequency.Score = capScore(int(msgs7d) * 10)
	health.Metrics.InteractionFrequency.MessageCount = int(msgs7d)

	// 参与度：近 30 天消息 ×5 + 已提交打卡 ×15，封顶 100
	msgs30d := s.countMessages(connectionID, now.AddDate(0, 0, -30))
	checkIns30d := s.countCheckIns(connectionID, now.AddDate(0, 0, -30))
	health.Metrics.Engagement.Score = capScore(int(msgs30d)*5 + int(checkIns30d)*15)
	health.Metrics.Engagement.MessageCount = int(msgs30d)
	health.Metrics.Engagement.CheckInCount = int(checkIns30d)

	// 进度均衡：只有存在带清单项的 ACTIVE 计划时才重算，否则保留历史值
	if s.plans != nil {
		pctA, pctB, total, ok, err := s.plans.ActivePlanProgress(connectionID, connection.RequesterID, connection.ReceiverID)
		if err != nil {
			log.Printf("[WARN] failed to read plan progress: %v", err)
		} else if ok {
			diff := math.Abs(pctA - pctB)
			health.Metrics.CompletionBalance.Score = int(math.Round(100 - diff))
			health.Metrics.CompletionBalance.ItemsTotal = total
		}
	}

	// 不活跃天数：按最近一条消息推算；从未有消息时保持为空
	if lastMsg := s.lastMessageAt(connectionID); lastMsg != nil {
		health.Activity.LastMessageAt = lastMsg
		inactiveDays := int(now.Sub(*lastMsg).Hours() / 24)
		health.Activity.ConsecutiveInactiveDays = &inactiveDays
	}

	// 加权综合分
	overall := weightInteraction*float64(health.Metrics.InteractionFrequency.Score) +
		weightBalance*float64(health.Metrics.CompletionBalance.Score) +
		weightEngagement*float64(health.Metrics.Engagement.Score) +
		weightResponse*float64(health.Metrics.ResponseTime.Score) +
		weightAlignment*float64(health.Metrics.GoalAlignment.Score)
	health.OverallScore = int(math.Round(overall))
	health.HealthStatus = model.StatusForScore(health.OverallScore)

	s.generateSuggestions(health, int(checkIns30d))
	s.raiseAlerts(&connection, health)

	if err := s.db.Save(health).Error; err != nil {
		return nil, fmt.Errorf("failed to save health record: %w", err)
	}

	s.checkHealthMilestones(&connection, health)
	return health, nil
}

// GetHealth 查询健康记录（不存在时懒创建，不重算）
func (s *HealthService) GetHealth(connectionID uuid.UUID) (*model.ConnectionHealth, error) {
	return s.getOrCreate(connectionID)
}

// AddFeedback 添加反馈：同一用户 30 天内只保留最新一条
func (s *HealthService) AddFeedback(connectionID, fromUser uuid.UUID, status, note string, suggestRematch bool) (*model.ConnectionHealth, error) {
	health, err := s.getOrCreate(connectionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -30)

	// 保留其他用户的反馈和 30 天之前的旧反馈
	kept := health.Feedback[:0]
	for _, feedback := range health.Feedback {
		if feedback.FromUser != fromUser || feedback.Timestamp.Before(cutoff) {
			kept = append(kept, feedback)
		}
	}
	health.Feedback = append(kept, model.HealthFeedback{
		FromUser:       fromUser,
		Status:         status,
		Note:           note,
		SuggestRematch: suggestRematch,
		Timestamp:      now,
	})

	if suggestRematch {
		s.addAlert(health, model.AlertRematchSuggested, "A partner suggested finding a new match", model.SeverityWarning)
	}

	if err := s.db.Save(health).Error; err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	if s.milestoneSvc != nil {
		if _, err := s.milestoneSvc.AwardMilestone(fromUser, MilestoneFirstFeedback, nil); err != nil {
			log.Printf("[WARN] failed to award feedback milestone: %v", err)
		}
	}
	return health, nil
}

// AcknowledgeAlert 确认告警
func (s *HealthService) AcknowledgeAlert(connectionID, alertID uuid.UUID) error {
	health, err := s.getOrCreate(connectionID)
	if err != nil {
		return err
	}

	for i := range health.Alerts {
		if health.Alerts[i].ID == alertID {
			health.Alerts[i].Acknowledged = true
			if err := s.db.Save(health).Error; err != nil {
				return fmt.Errorf("failed to acknowledge alert: %w", err)
			}
			return nil
		}
	}
	return utils.NotFoundError("alert not found")
}

// GetAtRiskConnections 监控查询：AT_RISK / INACTIVE 的健康记录，按分数升序
func (s *HealthService) GetAtRiskConnections() ([]model.ConnectionHealth, error) {
	var records []model.ConnectionHealth
	err := s.db.Where("health_status IN ?", []string{model.HealthAtRisk, model.HealthInactive}).
		Order("overall_score ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query at-risk connections: %w", err)
	}
	return records, nil
}

// RecordCheckIn 打卡后推进连续天数统计（实现 StreakUpdater）
func (s *HealthService) RecordCheckIn(connectionID, userID uuid.UUID, at time.Time) error {
	health, err := s.getOrCreate(connectionID)
	if err != nil {
		return err
	}

	today := model.DateKey(at)
	yesterday := model.DateKey(at.AddDate(0, 0, -1))

	// 跨 ISO 周时重置本周计数
	weekKey := isoWeekKey(at)
	if health.Streaks.WeekKey != weekKey {
		health.Streaks.WeekKey = weekKey
		health.Streaks.WeekCheckIns = 0
	}
	health.Streaks.WeekCheckIns++

	gapDays := 0
	if health.Activity.LastActiveDate != today {
		if health.Activity.LastActiveDate != "" {
			if last, err := time.Parse("2006-01-02", health.Activity.LastActiveDate); err == nil {
				gapDays = int(at.UTC().Truncate(24*time.Hour).Sub(last).Hours() / 24)
			}
		}
		switch health.Activity.LastActiveDate {
		case yesterday:
			health.Streaks.Current++
		default:
			health.Streaks.Current = 1
		}
		if health.Streaks.Current > health.Streaks.Longest {
			health.Streaks.Longest = health.Streaks.Current
		}
		health.Activity.TotalActiveDays++
		health.Activity.LastActiveDate = today
	}
	health.Activity.LastCheckInAt = &at

	if err := s.db.Save(health).Error; err != nil {
		return fmt.Errorf("failed to save streak update: %w", err)
	}

	if s.milestoneSvc != nil {
		if err := s.milestoneSvc.CheckStreakMilestones(userID, health.Streaks.Current); err != nil {
			log.Printf("[WARN] failed to check streak milestones: %v", err)
		}
		if health.Streaks.WeekCheckIns >= health.Streaks.WeeklyGoal {
			if _, err := s.milestoneSvc.AwardMilestone(userID, MilestoneWeeklyGoalMet, &connectionID); err != nil {
				log.Printf("[WARN] failed to award weekly goal milestone: %v", err)
			}
		}
		// 中断超过 3 天后重新回归
		if gapDays > 3 {
			if _, err := s.milestoneSvc.AwardMilestone(userID, MilestoneComeback, &connectionID); err != nil {
				log.Printf("[WARN] failed to award comeback milestone: %v", err)
			}
		}
	}
	return nil
}

// getOrCreate 懒创建健康记录：综合分 50、状态 GOOD、各子指标 50
func (s *HealthService) getOrCreate(connectionID uuid.UUID) (*model.ConnectionHealth, error) {
	var health model.ConnectionHealth
	err := s.db.Where("connection_id = ?", connectionID).First(&health).Error
	if err == nil {
		return &health, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query health record: %w", err)
	}

	health = model.ConnectionHealth{
		ConnectionID: connectionID,
		OverallScore: 50,
		HealthStatus: model.HealthGood,
		Metrics: model.HealthMetrics{
			InteractionFrequency: model.HealthMetric{Score: 50},
			CompletionBalance:    model.HealthMetric{Score: 50},
			Engagement:           model.HealthMetric{Score: 50},
			ResponseTime:         model.HealthMetric{Score: 50},
			GoalAlignment:        model.HealthMetric{Score: 50},
		},
		Streaks: model.HealthStreaks{WeeklyGoal: 5},
	}
	if err := s.db.Create(&health).Error; err != nil {
		return nil, fmt.Errorf("failed to create health record: %w", err)
	}
	return &health, nil
}

// generateSuggestions 基于当前快照整体替换建议列表
func (s *HealthService) generateSuggestions(health *model.ConnectionHealth, checkIns30d int) {
	suggestions := make([]model.HealthSuggestion, 0, 4)

	if health.Metrics.InteractionFrequency.Score < 40 {
		suggestions = append(suggestions, model.HealthSuggestion{
			Action:   "increase-messages",
			Message:  "Message your partner more often to keep momentum",
			Priority: 4,
		})
	}
	if health.Metrics.CompletionBalance.Score < 50 {
		suggestions = append(suggestions, model.HealthSuggestion{
			Action:   "sync-progress",
			Message:  "Your progress is drifting apart, sync up on the study plan",
			Priority: 3,
		})
	}
	if checkIns30d < 2 {
		suggestions = append(suggestions, model.HealthSuggestion{
			Action:   "schedule-checkin",
			Message:  "Schedule a regular check-in with your partner",
			Priority: 4,
		})
	}
	if health.Activity.ConsecutiveInactiveDays != nil && *health.Activity.ConsecutiveInactiveDays > 3 {
		suggestions = append(suggestions, model.HealthSuggestion{
			Action:   "update-plan",
			Message:  "Refresh your study plan to restart activity",
			Priority: 3,
		})
	}

	health.Suggestions = suggestions
}

// raiseAlerts 按当前指标触发告警，新增的 WARNING 告警同步通知双方
func (s *HealthService) raiseAlerts(connection *model.Connection, health *model.ConnectionHealth) {
	if health.Activity.ConsecutiveInactiveDays != nil && *health.Activity.ConsecutiveInactiveDays > 7 {
		message := fmt.Sprintf("No messages for %d days", *health.Activity.ConsecutiveInactiveDays)
		if s.addAlert(health, model.AlertLowActivity, message, model.SeverityWarning) && s.notifier != nil {
			vars := map[string]string{"message": message}
			metadata := map[string]interface{}{"connection_id": connection.ID}
			s.notifier.Notify(connection.RequesterID, model.NotifyHealthAlert, vars, metadata)
			s.notifier.Notify(connection.ReceiverID, model.NotifyHealthAlert, vars, metadata)
		}
	}
	if health.Metrics.CompletionBalance.Score < 30 {
		s.addAlert(health, model.AlertUnbalancedProgress,
			"One partner is far ahead on the study plan",
			model.SeverityInfo)
	}
}

// addAlert 追加告警；同类型存在未确认告警时为 no-op，返回是否有新增
func (s *HealthService) addAlert(health *model.ConnectionHealth, alertType, message, severity string) bool {
	for _, alert := range health.Alerts {
		if alert.Type == alertType && !alert.Acknowledged {
			return false
		}
	}
	health.Alerts = append(health.Alerts, model.HealthAlert{
		ID:        uuid.New(),
		Type:      alertType,
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	})
	return true
}

// checkHealthMilestones 健康类成就：综合分 ≥90 或进度完全均衡
func (s *HealthService) checkHealthMilestones(connection *model.Connection, health *model.ConnectionHealth) {
	if s.milestoneSvc == nil {
		return
	}
	for _, userID := range []uuid.UUID{connection.RequesterID, connection.ReceiverID} {
		if health.OverallScore >= 90 {
			if _, err := s.milestoneSvc.AwardMilestone(userID, MilestoneHealthChamp, &connection.ID); err != nil {
				log.Printf("[WARN] failed to award health milestone: %v", err)
			}
		}
		if health.Metrics.CompletionBalance.Score == 100 && health.Metrics.CompletionBalance.ItemsTotal > 0 {
			if _, err := s.milestoneSvc.AwardMilestone(userID, MilestonePerfectBal, &connection.ID); err != nil {
				log.Printf("[WARN] failed to award balance milestone: %v", err)
			}
		}
	}
}

func (s *HealthService) countMessages(connectionID uuid.UUID, since time.Time) int64 {
	if s.messages == nil {
		return 0
	}
	count, err := s.messages.CountSince(connectionID, since)
	if err != nil {
		log.Printf("[WARN] failed to count messages: %v", err)
		return 0
	}
	return count
}

func (s *HealthService) countCheckIns(connectionID uuid.UUID, since time.Time) int64 {
	if s.checkIns == nil {
		return 0
	}
	count, err := s.checkIns.CountSubmittedSince(connectionID, since)
	if err != nil {
		log.Printf("[WARN] failed to count check-ins: %v", err)
		return 0
	}
	return count
}

func (s *HealthService) lastMessageAt(connectionID uuid.UUID) *time.Time {
	if s.messages == nil {
		return nil
	}
	last, err := s.messages.LastMessageAt(connectionID)
	if err != nil {
		log.Printf("[WARN] failed to read last message time: %v", err)
		return nil
	}
	return last
}

func capScore(score int) int {
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// isoWeekKey ISO 周标识，例如 2026-W05
func isoWeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
