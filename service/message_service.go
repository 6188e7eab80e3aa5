package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 消息数量成就阈值（升序）
var messageThresholds = []struct {
	Count int64
	Type  string
}{
	{1, MilestoneFirstMessage},
	{100, MilestoneMessages100},
	{500, MilestoneMessages500},
	{1000, MilestoneMessages1000},
}

// MessageService 搭档消息服务，同时为 HealthService 提供消息统计
type MessageService struct {
	db           *gorm.DB
	milestoneSvc MilestoneAwarder
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// SetMilestoneAwarder 设置成就授予器（用于依赖注入）
func (s *MessageService) SetMilestoneAwarder(awarder MilestoneAwarder) {
	s.milestoneSvc = awarder
}

// SendMessage 发送消息：仅限 ACCEPTED 关系的双方；更新关系的互动时间和消息计数
func (s *MessageService) SendMessage(connectionID, senderID uuid.UUID, content string) (*model.StudyMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, utils.ValidationError("message content must not be empty")
	}

	var connection model.Connection
	err := s.db.Where("id = ?", connectionID).First(&connection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("connection not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	if !connection.Involves(senderID) {
		return nil, utils.StateError("not a party of this connection")
	}
	if connection.Status != model.ConnectionAccepted {
		return nil, utils.StateError("messages are only allowed on accepted connections")
	}

	message := &model.StudyMessage{
		ConnectionID: connectionID,
		SenderID:     senderID,
		Content:      content,
	}
	if err := s.db.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	// 维护关系上的活跃元数据
	err = s.db.Model(&connection).Updates(map[string]interface{}{
		"last_interaction": time.Now().UTC(),
		"message_count":    gorm.Expr("message_count + 1"),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update connection activity: %w", err)
	}

	s.checkMessageMilestones(senderID)
	return message, nil
}

// GetMessages 按时间倒序分页获取消息
func (s *MessageService) GetMessages(connectionID, actorID uuid.UUID, limit, offset int) ([]model.StudyMessage, error) {
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

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var messages []model.StudyMessage
	err = s.db.Where("connection_id = ?", connectionID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return messages, nil
}

// CountSince 统计某条关系自 since 以来的消息数（HealthService 使用）
func (s *MessageService) CountSince(connectionID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&model.StudyMessage{}).
		Where("connection_id = ? AND created_at >= ?", connectionID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// LastMessageAt 某条关系最近一条消息的时间，从未有消息时返回 nil
func (s *MessageService) LastMessageAt(connectionID uuid.UUID) (*time.Time, error) {
	var message model.StudyMessage
	err := s.db.Where("connection_id = ?", connectionID).
		Order("created_at DESC").
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last message: %w", err)
	}
	return &message.CreatedAt, nil
}

func (s *MessageService) checkMessageMilestones(senderID uuid.UUID) {
	if s.milestoneSvc == nil {
		return
	}
	var total int64
	if err := s.db.Model(&model.StudyMessage{}).Where("sender_id = ?", senderID).Count(&total).Error; err != nil {
		return
	}
	for _, threshold := range messageThresholds {
		if total < threshold.Count {
			break
		}
		if _, err := s.milestoneSvc.AwardMilestone(senderID, threshold.Type, nil); err != nil {
			log.Printf("[WARN] failed to award %s: %v", threshold.Type, err)
		}
	}
}
