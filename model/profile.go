package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 学习目标
const (
	GoalDSA          = "DSA"
	GoalWebDev       = "WEB_DEV"
	GoalSystemDesign = "SYSTEM_DESIGN"
	GoalDevOps       = "DEVOPS"
	GoalDataScience  = "DATA_SCIENCE"
	GoalLanguage     = "LANGUAGE"
	GoalExamPrep     = "EXAM_PREP"
	GoalOther        = "OTHER"
)

// 学习水平
const (
	LevelBeginner     = "BEGINNER"
	LevelIntermediate = "INTERMEDIATE"
	LevelAdvanced     = "ADVANCED"
)

// 学习时间安排
const (
	AvailabilityDaily    = "DAILY"
	AvailabilityWeekends = "WEEKENDS"
	AvailabilityFlexible = "FLEXIBLE"
)

// 学习方式
const (
	ModeOnline     = "ONLINE"
	ModeDiscussion = "DISCUSSION"
	ModeBoth       = "BOTH"
)

// 请求隐私设置
const (
	AllowEveryone    = "EVERYONE"
	AllowSimilarGoal = "SIMILAR_GOAL"
	AllowNone        = "NONE"
)

// StudyProfile 用户学习档案（匹配偏好 + 搭档容量）
type StudyProfile struct {
	ID                  uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID              uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`
	DisplayName         string    `json:"display_name" gorm:"type:varchar(50)"`
	PrimaryGoal         string    `json:"primary_goal" gorm:"type:varchar(20)"`
	StudyLevel          string    `json:"study_level" gorm:"type:varchar(20)"` // BEGINNER | INTERMEDIATE | ADVANCED
	AvailabilityType    string    `json:"availability_type" gorm:"type:varchar(20)"`
	HoursPerDay         int       `json:"hours_per_day"`
	PreferredMode       string    `json:"preferred_mode" gorm:"type:varchar(20)"`
	MaxPartners         int       `json:"max_partners" gorm:"default:3"`
	ActivePartnersCount int       `json:"active_partners_count" gorm:"default:0"`
	AllowRequests       string    `json:"allow_requests" gorm:"type:varchar(20);default:'EVERYONE'"`
	IsComplete          bool      `json:"is_complete" gorm:"default:false;index"`
	CreatedAt           time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (StudyProfile) TableName() string {
	return "study_profiles"
}

func (p *StudyProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// LevelRank 学习水平的序号（用于计算水平差距）
func LevelRank(level string) int {
	switch level {
	case LevelBeginner:
		return 0
	case LevelIntermediate:
		return 1
	case LevelAdvanced:
		return 2
	default:
		return 0
	}
}
