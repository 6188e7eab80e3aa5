package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 学习计划状态
const (
	PlanActive    = "ACTIVE"
	PlanCompleted = "COMPLETED"
	PlanArchived  = "ARCHIVED"
)

// PlanItem 学习计划清单项，CompletedBy 记录双方各自的完成情况（key 为用户 ID）
type PlanItem struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	CompletedBy map[string]bool `json:"completed_by"`
}

// StudyPlan 搭档共同学习计划
type StudyPlan struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ConnectionID uuid.UUID  `json:"connection_id" gorm:"type:uuid;not null;index"`
	Title        string     `json:"title" gorm:"type:varchar(100)"`
	Status       string     `json:"status" gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	Items        []PlanItem `json:"items" gorm:"serializer:json"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (StudyPlan) TableName() string {
	return "study_plans"
}

func (p *StudyPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CompletionPercent 某一方的清单完成百分比（无清单项时返回 0）
func (p *StudyPlan) CompletionPercent(userID uuid.UUID) float64 {
	if len(p.Items) == 0 {
		return 0
	}
	done := 0
	for _, item := range p.Items {
		if item.CompletedBy[userID.String()] {
			done++
		}
	}
	return float64(done) / float64(len(p.Items)) * 100
}
