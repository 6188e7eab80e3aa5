package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 打卡数量成就阈值（升序）
var checkInThresholds = []struct {
	Count int64
	Type  string
}{
	{1, MilestoneFirstCheckIn},
	{10, MilestoneCheckIns10},
	{50, MilestoneCheckIns50},
	{100, MilestoneCheckIns100},
}

// StreakUpdater 打卡后推进连续天数统计的接口（由 HealthService 实现）
type StreakUpdater interface {
	RecordCheckIn(connectionID, userID uuid.UUID, at time.Time) error
}

// CheckInService 每日打卡服务，同时为 HealthService 提供打卡统计
type CheckInService struct {
	db           *gorm.DB
	milestoneSvc MilestoneAwarder
	streakSvc    StreakUpdater
}

func NewCheckInService(db *gorm.DB) *CheckInService {
	return &CheckInService{db: db}
}

// SetMilestoneAwarder 设置成就授予器（用于依赖注入）
func (s *CheckInService) SetMilestoneAwarder(awarder MilestoneAwarder) {
	s.milestoneSvc = awarder
}

// SetStreakUpdater 设置连续打卡推进器
func (s *CheckInService) SetStreakUpdater(updater StreakUpdater) {
	s.streakSvc = updater
}

// SubmitCheckIn 提交当日打卡：每人每天一次（唯一索引兜底），仅限 ACCEPTED 关系
func (s *CheckInService) SubmitCheckIn(connectionID, userID uuid.UUID, note *string) (*model.CheckIn, error) {
	var connection model.Connection
	err := s.db.Where("id = ?", connectionID).First(&connection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("connection not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	if !connection.Involves(userID) {
		return nil, utils.StateError("not a party of this connection")
	}
	if connection.Status != model.ConnectionAccepted {
		return nil, utils.StateError("check-ins are only allowed on accepted connections")
	}

	now := time.Now().UTC()
	today := model.DateKey(now)

	var existing int64
	err = s.db.Model(&model.CheckIn{}).
		Where("connection_id = ? AND user_id = ? AND check_date = ?", connectionID, userID, today).
		Count(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check existing check-in: %w", err)
	}
	if existing > 0 {
		return nil, utils.ConflictError("already checked in today")
	}

	checkIn := &model.CheckIn{
		ConnectionID: connectionID,
		UserID:       userID,
		CheckDate:    today,
		Status:       model.CheckInSubmitted,
		Note:         note,
	}
	if err := s.db.Create(checkIn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.ConflictError("already checked in today")
		}
		return nil, fmt.Errorf("failed to create check-in: %w", err)
	}

	// 推进连续打卡并结算相关成就；失败只记日志，不影响打卡本身
	if s.streakSvc != nil {
		if err := s.streakSvc.RecordCheckIn(connectionID, userID, now); err != nil {
			log.Printf("[WARN] failed to update streak: %v", err)
		}
	}
	s.checkCheckInMilestones(userID)

	return checkIn, nil
}

// CountSubmittedSince 统计某条关系自 since 以来已提交的打卡数（HealthService 使用）
func (s *CheckInService) CountSubmittedSince(connectionID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&model.CheckIn{}).
		Where("connection_id = ? AND status = ? AND created_at >= ?", connectionID, model.CheckInSubmitted, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count check-ins: %w", err)
	}
	return count, nil
}

func (s *CheckInService) checkCheckInMilestones(userID uuid.UUID) {
	if s.milestoneSvc == nil {
		return
	}
	var total int64
	err := s.db.Model(&model.CheckIn{}).
		Where("user_id = ? AND status = ?", userID, model.CheckInSubmitted).
		Count(&total).Error
	if err != nil {
		return
	}
	for _, threshold := range checkInThresholds {
		if total < threshold.Count {
			break
		}
		if _, err := s.milestoneSvc.AwardMilestone(userID, threshold.Type, nil); err != nil {
			log.Printf("[WARN] failed to award %s: %v", threshold.Type, err)
		}
	}
}
