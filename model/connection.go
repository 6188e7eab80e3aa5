package model

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 搭档关系状态
const (
	ConnectionPending  = "PENDING"
	ConnectionAccepted = "ACCEPTED"
	ConnectionRejected = "REJECTED"
	ConnectionBlocked  = "BLOCKED"
)

// Connection 搭档关系表
// UserLo/UserHi 为无序对的规范化列（小的在前），唯一索引保证同一对用户最多一条记录
type Connection struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	RequesterID     uuid.UUID  `json:"requester_id" gorm:"type:uuid;not null;index"`
	ReceiverID      uuid.UUID  `json:"receiver_id" gorm:"type:uuid;not null;index"`
	UserLo          uuid.UUID  `json:"-" gorm:"type:uuid;not null;index:idx_connection_pair,unique"`
	UserHi          uuid.UUID  `json:"-" gorm:"type:uuid;not null;index:idx_connection_pair,unique"`
	Status          string     `json:"status" gorm:"type:varchar(20);not null;index"` // PENDING | ACCEPTED | REJECTED | BLOCKED
	MatchScore      int        `json:"match_score"`
	MatchReasons    []string   `json:"match_reasons" gorm:"serializer:json"`
	RequestMessage  *string    `json:"request_message,omitempty" gorm:"type:varchar(300)"`
	ActionReason    *string    `json:"action_reason,omitempty" gorm:"type:varchar(300)"`
	ConnectedAt     *time.Time `json:"connected_at,omitempty"`
	LastInteraction *time.Time `json:"last_interaction,omitempty"`
	MessageCount    int        `json:"message_count" gorm:"default:0"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Connection) TableName() string {
	return "connections"
}

func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.UserLo, c.UserHi = NormalizePair(c.RequesterID, c.ReceiverID)
	return nil
}

// Involves 判断用户是否是这条关系的一方
func (c *Connection) Involves(userID uuid.UUID) bool {
	return c.RequesterID == userID || c.ReceiverID == userID
}

// OtherParty 返回关系中的另一方
func (c *Connection) OtherParty(userID uuid.UUID) uuid.UUID {
	if c.RequesterID == userID {
		return c.ReceiverID
	}
	return c.RequesterID
}

// NormalizePair 规范化无序用户对（按字节序排列）
func NormalizePair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}
