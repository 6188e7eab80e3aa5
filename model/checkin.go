package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 打卡状态
const (
	CheckInSubmitted = "SUBMITTED"
	CheckInMissed    = "MISSED"
)

// CheckIn 每日打卡记录
// (connection, user, check_date) 唯一索引保证每人每天最多打卡一次
type CheckIn struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ConnectionID uuid.UUID `json:"connection_id" gorm:"type:uuid;not null;index;index:idx_checkin_daily,unique"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index;index:idx_checkin_daily,unique"`
	CheckDate    string    `json:"check_date" gorm:"type:varchar(10);not null;index:idx_checkin_daily,unique"` // YYYY-MM-DD（UTC）
	Status       string    `json:"status" gorm:"type:varchar(20);not null;default:'SUBMITTED'"`
	Note         *string   `json:"note,omitempty" gorm:"type:varchar(300)"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (CheckIn) TableName() string {
	return "check_ins"
}

func (c *CheckIn) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// DateKey 时间转日期键（UTC）
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
