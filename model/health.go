package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 健康状态（由综合分数按固定分界线得出）
const (
	HealthHealthy  = "HEALTHY"
	HealthGood     = "GOOD"
	HealthFair     = "FAIR"
	HealthAtRisk   = "AT_RISK"
	HealthInactive = "INACTIVE"
)

// 告警类型
const (
	AlertLowActivity        = "LOW_ACTIVITY"
	AlertUnbalancedProgress = "UNBALANCED_PROGRESS"
	AlertRematchSuggested   = "REMATCH_SUGGESTED"
)

// 告警级别
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
)

// HealthMetric 单项健康指标（0-100 分 + 支撑计数）
type HealthMetric struct {
	Score         int `json:"score"`
	MessageCount  int `json:"message_count,omitempty"`
	CheckInCount  int `json:"check_in_count,omitempty"`
	ItemsComplete int `json:"items_complete,omitempty"`
	ItemsTotal    int `json:"items_total,omitempty"`
}

// HealthMetrics 五项子指标
// responseTime/goalAlignment 目前不参与重算，保留历史值
type HealthMetrics struct {
	InteractionFrequency HealthMetric `json:"interaction_frequency"`
	CompletionBalance    HealthMetric `json:"completion_balance"`
	Engagement           HealthMetric `json:"engagement"`
	ResponseTime         HealthMetric `json:"response_time"`
	GoalAlignment        HealthMetric `json:"goal_alignment"`
}

// HealthActivity 活跃度快照
type HealthActivity struct {
	LastMessageAt           *time.Time `json:"last_message_at,omitempty"`
	LastCheckInAt           *time.Time `json:"last_check_in_at,omitempty"`
	ConsecutiveInactiveDays *int       `json:"consecutive_inactive_days,omitempty"` // 从未有消息时为空
	TotalActiveDays         int        `json:"total_active_days"`
	LastActiveDate          string     `json:"last_active_date,omitempty"` // YYYY-MM-DD（UTC）
}

// HealthStreaks 连续打卡统计
type HealthStreaks struct {
	Current      int    `json:"current"`
	Longest      int    `json:"longest"`
	WeeklyGoal   int    `json:"weekly_goal"`
	WeekCheckIns int    `json:"week_check_ins"`
	WeekKey      string `json:"week_key,omitempty"` // ISO 周标识，跨周时归零
}

// HealthFeedback 用户对搭档关系的反馈（每用户 30 天内最多一条生效）
type HealthFeedback struct {
	FromUser       uuid.UUID `json:"from_user"`
	Status         string    `json:"status"`
	Note           string    `json:"note,omitempty"`
	SuggestRematch bool      `json:"suggest_rematch"`
	Timestamp      time.Time `json:"timestamp"`
}

// HealthAlert 健康告警（同类型未确认时去重）
type HealthAlert struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	Message      string    `json:"message"`
	Severity     string    `json:"severity"`
	Acknowledged bool      `json:"acknowledged"`
	Timestamp    time.Time `json:"timestamp"`
}

// HealthSuggestion 改进建议（每次重算整体替换）
type HealthSuggestion struct {
	Action   string `json:"action"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// ConnectionHealth 搭档关系健康度（每条关系一条，懒创建，只更新不删除）
type ConnectionHealth struct {
	ID           uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	ConnectionID uuid.UUID          `json:"connection_id" gorm:"type:uuid;not null;uniqueIndex"`
	OverallScore int                `json:"overall_score" gorm:"default:50;index"`
	HealthStatus string             `json:"health_status" gorm:"type:varchar(20);default:'GOOD';index"`
	Metrics      HealthMetrics      `json:"metrics" gorm:"serializer:json"`
	Activity     HealthActivity     `json:"activity" gorm:"serializer:json"`
	Streaks      HealthStreaks      `json:"streaks" gorm:"serializer:json"`
	Feedback     []HealthFeedback   `json:"feedback" gorm:"serializer:json"`
	Alerts       []HealthAlert      `json:"alerts" gorm:"serializer:json"`
	Suggestions  []HealthSuggestion `json:"suggestions" gorm:"serializer:json"`
	CreatedAt    time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ConnectionHealth) TableName() string {
	return "connection_health"
}

func (h *ConnectionHealth) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// StatusForScore 分数到健康状态的固定分界线
func StatusForScore(score int) string {
	switch {
	case score >= 80:
		return HealthHealthy
	case score >= 60:
		return HealthGood
	case score >= 40:
		return HealthFair
	case score >= 20:
		return HealthAtRisk
	default:
		return HealthInactive
	}
}
