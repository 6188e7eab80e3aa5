package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 徽章等级
const (
	TierBronze   = "BRONZE"
	TierSilver   = "SILVER"
	TierGold     = "GOLD"
	TierPlatinum = "PLATINUM"
	TierDiamond  = "DIAMOND"
)

// Milestone 成就记录（每个 (用户, 关系, 类型) 最多一条，除可见性外不可变）
// ConnectionID 为空时以 uuid.Nil 参与唯一索引，保证“无关系”维度也幂等
type Milestone struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index;index:idx_milestone_unique,unique"`
	ConnectionID uuid.UUID `json:"connection_id,omitempty" gorm:"type:uuid;index:idx_milestone_unique,unique"`
	Type         string    `json:"type" gorm:"type:varchar(40);not null;index:idx_milestone_unique,unique"`
	BadgeName    string    `json:"badge_name" gorm:"type:varchar(60)"`
	BadgeIcon    string    `json:"badge_icon" gorm:"type:varchar(20)"`
	BadgeTier    string    `json:"badge_tier" gorm:"type:varchar(20)"`
	BadgeColor   string    `json:"badge_color" gorm:"type:varchar(20)"`
	Points       int       `json:"points"`
	IsVisible    bool      `json:"is_visible" gorm:"default:true"`
	EarnedAt     time.Time `json:"earned_at" gorm:"autoCreateTime"`
}

func (Milestone) TableName() string {
	return "milestones"
}

func (m *Milestone) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TierColor 徽章等级对应的展示颜色
func TierColor(tier string) string {
	switch tier {
	case TierBronze:
		return "#CD7F32"
	case TierSilver:
		return "#C0C0C0"
	case TierGold:
		return "#FFD700"
	case TierPlatinum:
		return "#E5E4E2"
	case TierDiamond:
		return "#B9F2FF"
	default:
		return "#CD7F32"
	}
}
