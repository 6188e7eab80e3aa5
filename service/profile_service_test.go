package service

import (
	"testing"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertProfile_ComputesCompleteness(t *testing.T) {
	db := newTestDB(t)
	profileSvc := NewProfileService(db)
	userID := uuid.New()

	profile, err := profileSvc.UpsertProfile(userID, ProfileInput{
		DisplayName: "Ada",
		PrimaryGoal: model.GoalDSA,
	})
	require.NoError(t, err)
	assert.False(t, profile.IsComplete)

	profile, err = profileSvc.UpsertProfile(userID, ProfileInput{
		DisplayName:      "Ada",
		PrimaryGoal:      model.GoalDSA,
		StudyLevel:       model.LevelBeginner,
		AvailabilityType: model.AvailabilityDaily,
		PreferredMode:    model.ModeOnline,
	})
	require.NoError(t, err)
	assert.True(t, profile.IsComplete)
}

func TestUpsertProfile_RejectsNegativeValues(t *testing.T) {
	db := newTestDB(t)
	profileSvc := NewProfileService(db)

	_, err := profileSvc.UpsertProfile(uuid.New(), ProfileInput{MaxPartners: -1})
	requireKind(t, err, utils.ErrValidation)

	_, err = profileSvc.UpsertProfile(uuid.New(), ProfileInput{HoursPerDay: -2})
	requireKind(t, err, utils.ErrValidation)
}

func TestUpsertProfile_AwardsCompletionMilestones(t *testing.T) {
	db := newTestDB(t)
	profileSvc := NewProfileService(db)
	profileSvc.SetMilestoneAwarder(NewMilestoneService(db, DefaultBadgeCatalog()))
	userID := uuid.New()

	// 不完整档案不给成就
	_, err := profileSvc.UpsertProfile(userID, ProfileInput{PrimaryGoal: model.GoalDSA})
	require.NoError(t, err)
	assert.Empty(t, heldTypes(t, db, userID))

	_, err = profileSvc.UpsertProfile(userID, ProfileInput{
		PrimaryGoal:      model.GoalDSA,
		StudyLevel:       model.LevelBeginner,
		AvailabilityType: model.AvailabilityDaily,
		PreferredMode:    model.ModeOnline,
	})
	require.NoError(t, err)

	held := heldTypes(t, db, userID)
	assert.True(t, held[MilestoneProfileDone])
	assert.True(t, held[MilestoneEarlyAdopter])
}
