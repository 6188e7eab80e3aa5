package service

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StudyPlanService 学习计划服务，同时为 HealthService 提供双方完成度
type StudyPlanService struct {
	db           *gorm.DB
	milestoneSvc MilestoneAwarder
}

func NewStudyPlanService(db *gorm.DB) *StudyPlanService {
	return &StudyPlanService{db: db}
}

// SetMilestoneAwarder 设置成就授予器（用于依赖注入）
func (s *StudyPlanService) SetMilestoneAwarder(awarder MilestoneAwarder) {
	s.milestoneSvc = awarder
}

// CreatePlan 为关系创建学习计划（已有 ACTIVE 计划时归档旧计划）
func (s *StudyPlanService) CreatePlan(connectionID, actorID uuid.UUID, title string, itemTitles []string) (*model.StudyPlan, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, utils.ValidationError("plan title must not be empty")
	}

	var connection model.Connection
	err := s.db.Where("id = ?", connectionID).First(&connection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("connection not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	if !connection.Involves(actorID) {
		return nil, utils.StateError("not a party of this connection")
	}
	if connection.Status != model.ConnectionAccepted {
		return nil, utils.StateError("study plans are only allowed on accepted connections")
	}

	items := make([]model.PlanItem, 0, len(itemTitles))
	for _, itemTitle := range itemTitles {
		itemTitle = strings.TrimSpace(itemTitle)
		if itemTitle == "" {
			continue
		}
		items = append(items, model.PlanItem{
			ID:          uuid.New(),
			Title:       itemTitle,
			CompletedBy: map[string]bool{},
		})
	}

	err = s.db.Model(&model.StudyPlan{}).
		Where("connection_id = ? AND status = ?", connectionID, model.PlanActive).
		Update("status", model.PlanArchived).Error
	if err != nil {
		return nil, fmt.Errorf("failed to archive previous plan: %w", err)
	}

	plan := &model.StudyPlan{
		ConnectionID: connectionID,
		Title:        title,
		Status:       model.PlanActive,
		Items:        items,
	}
	if err := s.db.Create(plan).Error; err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	return plan, nil
}

// ToggleItem 切换某一方对清单项的完成标记
func (s *StudyPlanService) ToggleItem(planID, itemID, userID uuid.UUID, done bool) (*model.StudyPlan, error) {
	var plan model.StudyPlan
	err := s.db.Where("id = ?", planID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("study plan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query plan: %w", err)
	}

	var connection model.Connection
	if err := s.db.Where("id = ?", plan.ConnectionID).First(&connection).Error; err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	if !connection.Involves(userID) {
		return nil, utils.StateError("not a party of this connection")
	}

	found := false
	for i := range plan.Items {
		if plan.Items[i].ID == itemID {
			if plan.Items[i].CompletedBy == nil {
				plan.Items[i].CompletedBy = map[string]bool{}
			}
			plan.Items[i].CompletedBy[userID.String()] = done
			found = true
			break
		}
	}
	if !found {
		return nil, utils.NotFoundError("plan item not found")
	}

	if err := s.db.Save(&plan).Error; err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	// 勾选完成时结算学习主题成就
	if done && s.milestoneSvc != nil {
		topics, err := s.completedTopicCount(userID)
		if err != nil {
			log.Printf("[WARN] failed to count completed topics: %v", err)
		} else if err := s.milestoneSvc.CheckTopicMilestones(userID, topics); err != nil {
			log.Printf("[WARN] failed to check topic milestones: %v", err)
		}
	}
	return &plan, nil
}

// completedTopicCount 用户在所有计划中勾选完成的清单项总数
func (s *StudyPlanService) completedTopicCount(userID uuid.UUID) (int, error) {
	var plans []model.StudyPlan
	if err := s.db.Find(&plans).Error; err != nil {
		return 0, fmt.Errorf("failed to query plans: %w", err)
	}
	key := userID.String()
	total := 0
	for _, plan := range plans {
		for _, item := range plan.Items {
			if item.CompletedBy[key] {
				total++
			}
		}
	}
	return total, nil
}

// ActivePlanProgress 当前 ACTIVE 且有清单项的计划中双方的完成百分比
// 没有符合条件的计划时 ok 为 false（HealthService 据此保留历史均衡分）
func (s *StudyPlanService) ActivePlanProgress(connectionID, userA, userB uuid.UUID) (pctA, pctB float64, total int, ok bool, err error) {
	var plan model.StudyPlan
	queryErr := s.db.Where("connection_id = ? AND status = ?", connectionID, model.PlanActive).
		Order("created_at DESC").
		First(&plan).Error
	if errors.Is(queryErr, gorm.ErrRecordNotFound) {
		return 0, 0, 0, false, nil
	}
	if queryErr != nil {
		return 0, 0, 0, false, fmt.Errorf("failed to query active plan: %w", queryErr)
	}
	if len(plan.Items) == 0 {
		return 0, 0, 0, false, nil
	}
	return plan.CompletionPercent(userA), plan.CompletionPercent(userB), len(plan.Items), true, nil
}
