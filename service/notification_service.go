package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"studybuddy/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// notificationTemplate 固定的站内通知文案模板（{{var}} 占位）
type notificationTemplate struct {
	Title    string
	Content  string
	Priority int
}

var notificationTemplates = map[string]notificationTemplate{
	model.NotifyConnectionRequest: {
		Title:    "New partner request",
		Content:  "{{name}} wants to be your study partner",
		Priority: 1,
	},
	model.NotifyConnectionAccepted: {
		Title:    "Request accepted",
		Content:  "{{name}} accepted your partner request",
		Priority: 1,
	},
	model.NotifyMilestoneEarned: {
		Title:    "Badge earned",
		Content:  "You earned the {{badge}} badge",
		Priority: 0,
	},
	model.NotifyHealthAlert: {
		Title:    "Partnership needs attention",
		Content:  "{{message}}",
		Priority: 2,
	},
}

// NotificationService 通知服务：落库 + 可选 Redis 频道广播
// 整体 fire-and-forget：任何失败只记日志，不影响调用方主流程
type NotificationService struct {
	db  *gorm.DB
	rdb *redis.Client // 可为空
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// NewNotificationServiceWithRedis 带 Redis 广播的通知服务
func NewNotificationServiceWithRedis(db *gorm.DB, rdb *redis.Client) *NotificationService {
	return &NotificationService{db: db, rdb: rdb}
}

// Notify 渲染模板并创建通知（实现 NotificationSink）
func (s *NotificationService) Notify(userID uuid.UUID, notifType string, vars map[string]string, metadata map[string]interface{}) {
	template, ok := notificationTemplates[notifType]
	if !ok {
		log.Printf("[WARN] no template for notification type %s", notifType)
		return
	}

	content := renderTemplate(template.Content, vars)
	notification := &model.Notification{
		UserID:           userID,
		NotificationType: notifType,
		Title:            renderTemplate(template.Title, vars),
		Content:          &content,
		Priority:         template.Priority,
	}

	if metadata != nil {
		metadataBytes, err := json.Marshal(metadata)
		if err != nil {
			log.Printf("[WARN] invalid notification metadata: %v", err)
		} else {
			notification.Metadata = metadataBytes
		}
	}

	if err := s.db.Create(notification).Error; err != nil {
		log.Printf("[WARN] failed to create notification: %v", err)
		return
	}

	s.publish(userID, notification)
}

// GetNotifications 用户通知列表
func (s *NotificationService) GetNotifications(userID uuid.UUID, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := s.db.Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	var notifications []model.Notification
	err := query.Order("created_at DESC").Limit(limit).Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	return notifications, nil
}

// MarkAllAsRead 全部标记为已读
func (s *NotificationService) MarkAllAsRead(userID uuid.UUID) error {
	err := s.db.Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// publish 广播到用户的 Redis 频道（消费方自行订阅，失败不重试）
func (s *NotificationService) publish(userID uuid.UUID, notification *model.Notification) {
	if s.rdb == nil {
		return
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		return
	}
	channel := "notifications:" + userID.String()
	if err := s.rdb.Publish(context.Background(), channel, payload).Err(); err != nil {
		log.Printf("[WARN] failed to publish notification: %v", err)
	}
}

func renderTemplate(template string, vars map[string]string) string {
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}
