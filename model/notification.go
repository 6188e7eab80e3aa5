package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 通知类型
const (
	NotifyConnectionRequest  = "CONNECTION_REQUEST"
	NotifyConnectionAccepted = "CONNECTION_ACCEPTED"
	NotifyMilestoneEarned    = "MILESTONE_EARNED"
	NotifyHealthAlert        = "HEALTH_ALERT"
)

// Notification 通知表（落库 + 可选 Redis 频道广播，消费方自行拉取）
type Notification struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	NotificationType string          `json:"notification_type" gorm:"type:varchar(40);not null"`
	Title            string          `json:"title" gorm:"type:varchar(120);not null"`
	Content          *string         `json:"content,omitempty" gorm:"type:text"`
	Metadata         json.RawMessage `json:"metadata,omitempty" gorm:"type:jsonb"`
	IsRead           bool            `json:"is_read" gorm:"default:false;index"`
	Priority         int             `json:"priority" gorm:"default:0"`
	CreatedAt        time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
