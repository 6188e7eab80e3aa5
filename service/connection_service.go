package service

import (
	"errors"
	"fmt"
	"time"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationSink 通知发送接口（fire-and-forget，失败不影响主流程）
type NotificationSink interface {
	Notify(userID uuid.UUID, notifType string, vars map[string]string, metadata map[string]interface{})
}

// MilestoneAwarder 成就授予接口
type MilestoneAwarder interface {
	AwardMilestone(userID uuid.UUID, milestoneType string, connectionID *uuid.UUID) (*model.Milestone, error)
	CheckStreakMilestones(userID uuid.UUID, streak int) error
	CheckTopicMilestones(userID uuid.UUID, count int) error
	CheckConnectionMilestones(userID uuid.UUID, acceptedCount int64)
}

// 状态迁移表：当前状态 → 允许的目标状态
// BLOCKED 为终态；拉黑可以从任何非 BLOCKED 状态发起；
// ACCEPTED 的“删除”是物理删除而非状态
var connectionTransitions = map[string]map[string]bool{
	model.ConnectionPending: {
		model.ConnectionAccepted: true,
		model.ConnectionRejected: true,
		model.ConnectionBlocked:  true,
	},
	model.ConnectionAccepted: {
		model.ConnectionBlocked: true,
	},
	model.ConnectionRejected: {
		model.ConnectionBlocked: true,
	},
	model.ConnectionBlocked: {},
}

func canTransition(from, to string) bool {
	return connectionTransitions[from][to]
}

// ConnectionService 搭档关系生命周期服务
type ConnectionService struct {
	db           *gorm.DB
	profileSvc   *ProfileService
	notifier     NotificationSink
	milestoneSvc MilestoneAwarder
}

func NewConnectionService(db *gorm.DB, profileSvc *ProfileService) *ConnectionService {
	return &ConnectionService{db: db, profileSvc: profileSvc}
}

// SetNotificationSink 设置通知发送器（用于依赖注入）
func (s *ConnectionService) SetNotificationSink(sink NotificationSink) {
	s.notifier = sink
}

// SetMilestoneAwarder 设置成就授予器
func (s *ConnectionService) SetMilestoneAwarder(awarder MilestoneAwarder) {
	s.milestoneSvc = awarder
}

// Create 发起搭档请求，冻结当前匹配分数，状态 PENDING
func (s *ConnectionService) Create(requesterID, receiverID uuid.UUID, message *string) (*model.Connection, error) {
	if requesterID == receiverID {
		return nil, utils.ConflictError("cannot connect with yourself")
	}
	if message != nil && len(*message) > 300 {
		return nil, utils.ValidationError("request message too long (max 300 characters)")
	}

	// 同一对用户（无论方向）只允许一条记录
	if existing, err := s.findByPair(requesterID, receiverID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, utils.ConflictError("a connection already exists between these users")
	}

	requester, err := s.profileSvc.GetByUserID(requesterID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.profileSvc.GetByUserID(receiverID)
	if err != nil {
		return nil, err
	}
	if !requester.IsComplete || !receiver.IsComplete {
		return nil, utils.ValidationError("both profiles must be complete")
	}

	// 接收方隐私设置
	switch receiver.AllowRequests {
	case model.AllowNone:
		return nil, utils.PrivacyError("this user is not accepting partner requests")
	case model.AllowSimilarGoal:
		if receiver.PrimaryGoal != requester.PrimaryGoal {
			return nil, utils.PrivacyError("this user only accepts requests from users with a similar goal")
		}
	}

	// 请求方容量
	if requester.ActivePartnersCount >= requester.MaxPartners {
		return nil, utils.CapacityError("you have reached your partner limit (%d)", requester.MaxPartners)
	}

	result := ScoreProfiles(requester, receiver)
	connection := &model.Connection{
		RequesterID:    requesterID,
		ReceiverID:     receiverID,
		Status:         model.ConnectionPending,
		MatchScore:     result.Score,
		MatchReasons:   result.Reasons,
		RequestMessage: message,
	}
	if err := s.db.Create(connection).Error; err != nil {
		// 并发下另一个方向的请求可能先落库，撞唯一索引同样视同已存在
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.ConflictError("a connection already exists between these users")
		}
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Notify(receiverID, model.NotifyConnectionRequest,
			map[string]string{"name": requester.DisplayName},
			map[string]interface{}{"connection_id": connection.ID})
	}

	return connection, nil
}

// Accept 接收方接受请求：重查容量、双方计数 +1、记录连接时间
// 计数与状态变更放在同一事务内，避免并发下的容量竞争
func (s *ConnectionService) Accept(connectionID, actorID uuid.UUID) (*model.Connection, error) {
	connection, err := s.getByID(connectionID)
	if err != nil {
		return nil, err
	}
	if connection.ReceiverID != actorID {
		return nil, utils.StateError("only the receiver can accept a connection request")
	}
	if !canTransition(connection.Status, model.ConnectionAccepted) {
		return nil, utils.StateError("connection is not pending")
	}

	receiver, err := s.profileSvc.GetByUserID(connection.ReceiverID)
	if err != nil {
		return nil, err
	}
	if receiver.ActivePartnersCount >= receiver.MaxPartners {
		return nil, utils.CapacityError("you have reached your partner limit (%d)", receiver.MaxPartners)
	}

	now := time.Now().UTC()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":           model.ConnectionAccepted,
			"connected_at":     now,
			"last_interaction": now,
		}
		if err := tx.Model(connection).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		if err := s.profileSvc.IncrementActivePartners(tx, connection.RequesterID); err != nil {
			return err
		}
		return s.profileSvc.IncrementActivePartners(tx, connection.ReceiverID)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(connection.RequesterID, model.NotifyConnectionAccepted,
			map[string]string{"name": receiver.DisplayName},
			map[string]interface{}{"connection_id": connection.ID})
	}
	s.awardConnectionMilestones(connection.RequesterID, connection.ReceiverID)

	return connection, nil
}

// Reject 接收方拒绝请求（终态，不动计数）
func (s *ConnectionService) Reject(connectionID, actorID uuid.UUID, reason *string) (*model.Connection, error) {
	connection, err := s.getByID(connectionID)
	if err != nil {
		return nil, err
	}
	if connection.ReceiverID != actorID {
		return nil, utils.StateError("only the receiver can reject a connection request")
	}
	if !canTransition(connection.Status, model.ConnectionRejected) {
		return nil, utils.StateError("connection is not pending")
	}

	updates := map[string]interface{}{"status": model.ConnectionRejected}
	if reason != nil {
		updates["action_reason"] = *reason
	}
	if err := s.db.Model(connection).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to reject connection: %w", err)
	}
	return connection, nil
}

// Block 拉黑：已有记录则原地改为 BLOCKED（此前为 ACCEPTED 时双方计数 -1）；
// 没有记录时直接创建 BLOCKED，跳过 PENDING 及其校验
func (s *ConnectionService) Block(actorID, targetID uuid.UUID, reason *string) (*model.Connection, error) {
	if actorID == targetID {
		return nil, utils.ConflictError("cannot block yourself")
	}

	existing, err := s.findByPair(actorID, targetID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		connection := &model.Connection{
			RequesterID:  actorID,
			ReceiverID:   targetID,
			Status:       model.ConnectionBlocked,
			ActionReason: reason,
		}
		if err := s.db.Create(connection).Error; err != nil {
			return nil, fmt.Errorf("failed to create block record: %w", err)
		}
		return connection, nil
	}

	if !existing.Involves(actorID) {
		return nil, utils.StateError("not a party of this connection")
	}
	if existing.Status == model.ConnectionBlocked {
		return existing, nil
	}
	if !canTransition(existing.Status, model.ConnectionBlocked) {
		return nil, utils.StateError("cannot block this connection")
	}
	wasAccepted := existing.Status == model.ConnectionAccepted

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": model.ConnectionBlocked}
		if reason != nil {
			updates["action_reason"] = *reason
		}
		if err := tx.Model(existing).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to block connection: %w", err)
		}
		if wasAccepted {
			if err := s.profileSvc.DecrementActivePartners(tx, existing.RequesterID); err != nil {
				return err
			}
			return s.profileSvc.DecrementActivePartners(tx, existing.ReceiverID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// Remove 解除搭档关系：仅 ACCEPTED 可删，双方计数 -1，记录物理删除
// 健康记录与成就不级联删除，历史保留
func (s *ConnectionService) Remove(connectionID, actorID uuid.UUID) error {
	connection, err := s.getByID(connectionID)
	if err != nil {
		return err
	}
	if !connection.Involves(actorID) {
		return utils.StateError("not a party of this connection")
	}
	if connection.Status != model.ConnectionAccepted {
		return utils.StateError("only accepted connections can be removed")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(connection).Error; err != nil {
			return fmt.Errorf("failed to remove connection: %w", err)
		}
		if err := s.profileSvc.DecrementActivePartners(tx, connection.RequesterID); err != nil {
			return err
		}
		return s.profileSvc.DecrementActivePartners(tx, connection.ReceiverID)
	})
}

// IsBlocked 两用户间是否存在拉黑关系
func (s *ConnectionService) IsBlocked(u1, u2 uuid.UUID) (bool, error) {
	return s.pairHasStatus(u1, u2, model.ConnectionBlocked)
}

// AreConnected 两用户间是否为已接受的搭档
func (s *ConnectionService) AreConnected(u1, u2 uuid.UUID) (bool, error) {
	return s.pairHasStatus(u1, u2, model.ConnectionAccepted)
}

// ListConnections 查询用户的关系列表，可按状态过滤
func (s *ConnectionService) ListConnections(userID uuid.UUID, status string) ([]model.Connection, error) {
	query := s.db.Where("requester_id = ? OR receiver_id = ?", userID, userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var connections []model.Connection
	if err := query.Order("created_at DESC").Find(&connections).Error; err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	return connections, nil
}

// GetByID 查询单条关系（要求调用者为关系一方）
func (s *ConnectionService) GetByID(connectionID, actorID uuid.UUID) (*model.Connection, error) {
	connection, err := s.getByID(connectionID)
	if err != nil {
		return nil, err
	}
	if !connection.Involves(actorID) {
		return nil, utils.StateError("not a party of this connection")
	}
	return connection, nil
}

func (s *ConnectionService) getByID(connectionID uuid.UUID) (*model.Connection, error) {
	var connection model.Connection
	err := s.db.Where("id = ?", connectionID).First(&connection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("connection not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	return &connection, nil
}

func (s *ConnectionService) findByPair(u1, u2 uuid.UUID) (*model.Connection, error) {
	lo, hi := model.NormalizePair(u1, u2)
	var connection model.Connection
	err := s.db.Where("user_lo = ? AND user_hi = ?", lo, hi).First(&connection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection pair: %w", err)
	}
	return &connection, nil
}

func (s *ConnectionService) pairHasStatus(u1, u2 uuid.UUID, status string) (bool, error) {
	lo, hi := model.NormalizePair(u1, u2)
	var count int64
	err := s.db.Model(&model.Connection{}).
		Where("user_lo = ? AND user_hi = ? AND status = ?", lo, hi, status).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check connection status: %w", err)
	}
	return count > 0, nil
}

// awardConnectionMilestones 接受请求后结算双方的搭档数量成就
func (s *ConnectionService) awardConnectionMilestones(userA, userB uuid.UUID) {
	if s.milestoneSvc == nil {
		return
	}
	for _, userID := range []uuid.UUID{userA, userB} {
		var count int64
		err := s.db.Model(&model.Connection{}).
			Where("(requester_id = ? OR receiver_id = ?) AND status = ?", userID, userID, model.ConnectionAccepted).
			Count(&count).Error
		if err != nil {
			continue
		}
		s.milestoneSvc.CheckConnectionMilestones(userID, count)
	}
}
