package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StudyMessage 搭档间消息（用于活跃度统计与历史记录，实时投递不在本服务范围内）
type StudyMessage struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ConnectionID uuid.UUID `json:"connection_id" gorm:"type:uuid;not null;index:idx_message_conn_time"`
	SenderID     uuid.UUID `json:"sender_id" gorm:"type:uuid;not null;index"`
	Content      string    `json:"content" gorm:"type:text;not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_message_conn_time"`
}

func (StudyMessage) TableName() string {
	return "study_messages"
}

func (m *StudyMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
