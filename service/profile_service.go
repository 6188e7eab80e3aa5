package service

import (
	"errors"
	"fmt"
	"log"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileService 用户学习档案服务（匹配偏好 + 搭档容量计数）
type ProfileService struct {
	db           *gorm.DB
	milestoneSvc MilestoneAwarder
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

// SetMilestoneAwarder 设置成就授予器（用于依赖注入）
func (s *ProfileService) SetMilestoneAwarder(awarder MilestoneAwarder) {
	s.milestoneSvc = awarder
}

// GetByUserID 按用户 ID 查询档案
func (s *ProfileService) GetByUserID(userID uuid.UUID) (*model.StudyProfile, error) {
	var profile model.StudyProfile
	err := s.db.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return &profile, nil
}

// ProfileInput 档案创建/更新入参
type ProfileInput struct {
	DisplayName      string `json:"display_name"`
	PrimaryGoal      string `json:"primary_goal"`
	StudyLevel       string `json:"study_level"`
	AvailabilityType string `json:"availability_type"`
	HoursPerDay      int    `json:"hours_per_day"`
	PreferredMode    string `json:"preferred_mode"`
	MaxPartners      int    `json:"max_partners"`
	AllowRequests    string `json:"allow_requests"`
}

// UpsertProfile 创建或更新档案，同时重算完整性标记
func (s *ProfileService) UpsertProfile(userID uuid.UUID, input ProfileInput) (*model.StudyProfile, error) {
	if input.MaxPartners < 0 || input.HoursPerDay < 0 {
		return nil, utils.ValidationError("max_partners and hours_per_day must not be negative")
	}

	var profile model.StudyProfile
	err := s.db.Where("user_id = ?", userID).First(&profile).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	profile.UserID = userID
	profile.DisplayName = input.DisplayName
	profile.PrimaryGoal = input.PrimaryGoal
	profile.StudyLevel = input.StudyLevel
	profile.AvailabilityType = input.AvailabilityType
	profile.HoursPerDay = input.HoursPerDay
	profile.PreferredMode = input.PreferredMode
	if input.MaxPartners > 0 {
		profile.MaxPartners = input.MaxPartners
	}
	if input.AllowRequests != "" {
		profile.AllowRequests = input.AllowRequests
	}
	profile.IsComplete = profile.PrimaryGoal != "" &&
		profile.StudyLevel != "" &&
		profile.AvailabilityType != "" &&
		profile.PreferredMode != ""

	if err := s.db.Save(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	if profile.IsComplete && s.milestoneSvc != nil {
		if _, err := s.milestoneSvc.AwardMilestone(userID, MilestoneProfileDone, nil); err != nil {
			log.Printf("[WARN] failed to award profile milestone: %v", err)
		}
		// 前 100 个完整档案
		var completed int64
		if err := s.db.Model(&model.StudyProfile{}).Where("is_complete = ?", true).Count(&completed).Error; err == nil && completed <= 100 {
			if _, err := s.milestoneSvc.AwardMilestone(userID, MilestoneEarlyAdopter, nil); err != nil {
				log.Printf("[WARN] failed to award early adopter milestone: %v", err)
			}
		}
	}
	return &profile, nil
}

// CandidateFilters 候选人筛选条件（空值 / "ALL" 表示不限制）
type CandidateFilters struct {
	StudyLevel       string
	AvailabilityType string
	PreferredMode    string
}

// FindCandidates 查询匹配候选人：档案完整、目标相同、隐私未设为 NONE
// mode 筛选时额外放行 BOTH
func (s *ProfileService) FindCandidates(goal string, filters CandidateFilters) ([]model.StudyProfile, error) {
	query := s.db.Where("is_complete = ?", true).
		Where("primary_goal = ?", goal).
		Where("allow_requests <> ?", model.AllowNone)

	if filters.StudyLevel != "" && filters.StudyLevel != "ALL" {
		query = query.Where("study_level = ?", filters.StudyLevel)
	}
	if filters.AvailabilityType != "" && filters.AvailabilityType != "ALL" {
		query = query.Where("availability_type = ?", filters.AvailabilityType)
	}
	if filters.PreferredMode != "" && filters.PreferredMode != "ALL" {
		query = query.Where("preferred_mode IN ?", []string{filters.PreferredMode, model.ModeBoth})
	}

	var candidates []model.StudyProfile
	if err := query.Order("user_id").Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	return candidates, nil
}

// IncrementActivePartners 原子递增搭档计数（tx 为空时用默认连接）
func (s *ProfileService) IncrementActivePartners(tx *gorm.DB, userID uuid.UUID) error {
	if tx == nil {
		tx = s.db
	}
	err := tx.Model(&model.StudyProfile{}).
		Where("user_id = ?", userID).
		UpdateColumn("active_partners_count", gorm.Expr("active_partners_count + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment partner count: %w", err)
	}
	return nil
}

// DecrementActivePartners 原子递减搭档计数，下限 0
func (s *ProfileService) DecrementActivePartners(tx *gorm.DB, userID uuid.UUID) error {
	if tx == nil {
		tx = s.db
	}
	err := tx.Model(&model.StudyProfile{}).
		Where("user_id = ? AND active_partners_count > 0", userID).
		UpdateColumn("active_partners_count", gorm.Expr("active_partners_count - 1")).Error
	if err != nil {
		return fmt.Errorf("failed to decrement partner count: %w", err)
	}
	return nil
}
