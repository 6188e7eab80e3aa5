package service

import (
	"errors"
	"fmt"
	"testing"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, utils.Migrate(db))
	return db
}

// createProfile 创建一个完整档案
func createProfile(t *testing.T, db *gorm.DB, goal, level, availability, mode string) *model.StudyProfile {
	t.Helper()

	profile := &model.StudyProfile{
		UserID:           uuid.New(),
		DisplayName:      "user-" + uuid.NewString()[:8],
		PrimaryGoal:      goal,
		StudyLevel:       level,
		AvailabilityType: availability,
		HoursPerDay:      2,
		PreferredMode:    mode,
		MaxPartners:      3,
		AllowRequests:    model.AllowEveryone,
		IsComplete:       true,
	}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

// createAcceptedConnection 走完整生命周期建一条 ACCEPTED 关系
func createAcceptedConnection(t *testing.T, db *gorm.DB, connSvc *ConnectionService, a, b *model.StudyProfile) *model.Connection {
	t.Helper()

	connection, err := connSvc.Create(a.UserID, b.UserID, nil)
	require.NoError(t, err)
	connection, err = connSvc.Accept(connection.ID, b.UserID)
	require.NoError(t, err)
	return connection
}

// requireKind 断言错误属于指定业务分类
func requireKind(t *testing.T, err error, kind utils.ErrorKind) {
	t.Helper()

	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, kind, appErr.Kind, "unexpected error kind: %s", appErr.Message)
}

// reloadProfile 重新读取档案（用于断言计数变化）
func reloadProfile(t *testing.T, db *gorm.DB, userID uuid.UUID) *model.StudyProfile {
	t.Helper()

	var profile model.StudyProfile
	require.NoError(t, db.Where("user_id = ?", userID).First(&profile).Error)
	return &profile
}
