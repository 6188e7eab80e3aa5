package service

import (
	"testing"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoringProfile(goal, level, availability, mode string) *model.StudyProfile {
	return &model.StudyProfile{
		UserID:           uuid.New(),
		PrimaryGoal:      goal,
		StudyLevel:       level,
		AvailabilityType: availability,
		PreferredMode:    mode,
		IsComplete:       true,
	}
}

func TestScoreProfiles_DifferentGoalScoresZero(t *testing.T) {
	a := scoringProfile(model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	b := scoringProfile(model.GoalWebDev, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)

	result := ScoreProfiles(a, b)
	assert.Equal(t, 0, result.Score)
	assert.Len(t, result.Reasons, 1, "goal gate should short-circuit the remaining dimensions")
}

func TestScoreProfiles_PerfectMatchScores100(t *testing.T) {
	a := scoringProfile(model.GoalDSA, model.LevelIntermediate, model.AvailabilityDaily, model.ModeBoth)
	b := scoringProfile(model.GoalDSA, model.LevelIntermediate, model.AvailabilityDaily, model.ModeBoth)

	result := ScoreProfiles(a, b)
	assert.Equal(t, 100, result.Score)
	assert.Len(t, result.Reasons, 4)
}

func TestScoreProfiles_Symmetric(t *testing.T) {
	pairs := [][2]*model.StudyProfile{
		{
			scoringProfile(model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline),
			scoringProfile(model.GoalDSA, model.LevelAdvanced, model.AvailabilityFlexible, model.ModeBoth),
		},
		{
			scoringProfile(model.GoalWebDev, model.LevelIntermediate, model.AvailabilityWeekends, model.ModeDiscussion),
			scoringProfile(model.GoalWebDev, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline),
		},
		{
			scoringProfile(model.GoalExamPrep, model.LevelAdvanced, model.AvailabilityDaily, model.ModeBoth),
			scoringProfile(model.GoalDataScience, model.LevelBeginner, model.AvailabilityWeekends, model.ModeOnline),
		},
	}

	for _, pair := range pairs {
		assert.Equal(t, ScoreProfiles(pair[0], pair[1]).Score, ScoreProfiles(pair[1], pair[0]).Score)
	}
}

func TestScoreProfiles_WorkedExample(t *testing.T) {
	// 40（目标相同）+ 15（水平差 1）+ 20（时间一致）+ 10（一方 BOTH）= 85
	requester := scoringProfile(model.GoalDSA, model.LevelIntermediate, model.AvailabilityDaily, model.ModeBoth)
	candidate := scoringProfile(model.GoalDSA, model.LevelAdvanced, model.AvailabilityDaily, model.ModeOnline)

	result := ScoreProfiles(requester, candidate)
	assert.Equal(t, 85, result.Score)
}

func TestScoreProfiles_FlexibleAvailability(t *testing.T) {
	a := scoringProfile(model.GoalDSA, model.LevelBeginner, model.AvailabilityFlexible, model.ModeOnline)
	b := scoringProfile(model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)

	// 40 + 25 + 12 + 15 = 92
	assert.Equal(t, 92, ScoreProfiles(a, b).Score)
}

func TestFindMatches_RequiresCompleteProfile(t *testing.T) {
	db := newTestDB(t)
	profileSvc := NewProfileService(db)
	matchSvc := NewMatchService(db, profileSvc, 50)

	requester := createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	require.NoError(t, db.Model(requester).Update("is_complete", false).Error)

	_, err := matchSvc.FindMatches(requester.UserID, CandidateFilters{}, 1, 10)
	requireKind(t, err, utils.ErrValidation)
}

func TestFindMatches_ExcludesRelatedUsers(t *testing.T) {
	db := newTestDB(t)
	profileSvc := NewProfileService(db)
	matchSvc := NewMatchService(db, profileSvc, 50)
	connSvc := NewConnectionService(db, profileSvc)

	requester := createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	pending := createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	blocked := createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	free := createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)

	_, err := connSvc.Create(requester.UserID, pending.UserID, nil)
	require.NoError(t, err)
	_, err = connSvc.Block(requester.UserID, blocked.UserID, nil)
	require.NoError(t, err)

	page, err := matchSvc.FindMatches(requester.UserID, CandidateFilters{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Matches, 1)
	assert.Equal(t, free.UserID, page.Matches[0].Profile.UserID)
}

func TestFindMatches_ExcludesPrivacyNoneAndOtherGoals(t *testing.T) {
	db := newTestDB(t)
	profileSvc := NewProfileService(db)
	matchSvc := NewMatchService(db, profileSvc, 50)

	requester := createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	hidden := createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	require.NoError(t, db.Model(hidden).Update("allow_requests", model.AllowNone).Error)
	createProfile(t, db, model.GoalWebDev, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	visible := createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)

	page, err := matchSvc.FindMatches(requester.UserID, CandidateFilters{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Matches, 1)
	assert.Equal(t, visible.UserID, page.Matches[0].Profile.UserID)
}

func TestFindMatches_ModeFilterAdmitsBoth(t *testing.T) {
	db := newTestDB(t)
	profileSvc := NewProfileService(db)
	matchSvc := NewMatchService(db, profileSvc, 50)

	requester := createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeOnline)
	createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeBoth)
	createProfile(t, db, model.GoalDSA, model.LevelBeginner, model.AvailabilityDaily, model.ModeDiscussion)

	page, err := matchSvc.FindMatches(requester.UserID, CandidateFilters{PreferredMode: model.ModeOnline}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Matches, 2, "ONLINE filter should admit ONLINE and BOTH")
}

func TestFindMatches_PaginationCoversRankingExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	profileSvc := NewProfileService(db)
	matchSvc := NewMatchService(db, profileSvc, 50)

	requester := createProfile(t, db, model.GoalDSA, model.LevelIntermediate, model.AvailabilityDaily, model.ModeBoth)
	levels := []string{model.LevelBeginner, model.LevelIntermediate, model.LevelAdvanced}
	for i := 0; i < 7; i++ {
		createProfile(t, db, model.GoalDSA, levels[i%3], model.AvailabilityDaily, model.ModeOnline)
	}

	seen := map[uuid.UUID]bool{}
	lastScore := 101
	totalPages := 0
	for page := 1; ; page++ {
		result, err := matchSvc.FindMatches(requester.UserID, CandidateFilters{}, page, 3)
		require.NoError(t, err)
		if totalPages == 0 {
			totalPages = result.Pagination.Pages
			assert.Equal(t, int64(7), result.Pagination.Total)
			assert.Equal(t, 3, totalPages)
		}
		for _, match := range result.Matches {
			assert.False(t, seen[match.Profile.UserID], "candidate returned twice")
			seen[match.Profile.UserID] = true
			assert.LessOrEqual(t, match.Score, lastScore, "ranking must be descending across pages")
			lastScore = match.Score
		}
		if page >= totalPages {
			break
		}
	}
	assert.Len(t, seen, 7)
}
