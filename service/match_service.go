package service

import (
	"fmt"
	"sort"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 匹配分值表：目标 40 + 水平 25 + 时间安排 20 + 学习方式 15 = 100
const (
	scoreGoal = 40

	scoreLevelExact = 25
	scoreLevelNear  = 15
	scoreLevelFar   = 5

	scoreAvailabilityExact    = 20
	scoreAvailabilityFlexible = 12
	scoreAvailabilityOther    = 5

	scoreModeExact = 15
	scoreModeBoth  = 10
	scoreModeOther = 3
)

// MatchResult 兼容性评分结果
type MatchResult struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// ScoreProfiles 计算两个档案的兼容性分数（纯函数，无副作用）
// 学习目标不同为硬性门槛：直接 0 分，不再评估其余维度
func ScoreProfiles(a, b *model.StudyProfile) MatchResult {
	if a.PrimaryGoal != b.PrimaryGoal {
		return MatchResult{
			Score:   0,
			Reasons: []string{"Different primary goals"},
		}
	}

	score := scoreGoal
	reasons := []string{fmt.Sprintf("Same goal: %s", a.PrimaryGoal)}

	// 学习水平：差距 0 → 25，1 → 15，≥2 → 5
	levelGap := model.LevelRank(a.StudyLevel) - model.LevelRank(b.StudyLevel)
	if levelGap < 0 {
		levelGap = -levelGap
	}
	switch levelGap {
	case 0:
		score += scoreLevelExact
		reasons = append(reasons, "Same study level")
	case 1:
		score += scoreLevelNear
		reasons = append(reasons, "Similar study level")
	default:
		score += scoreLevelFar
		reasons = append(reasons, "Different study level")
	}

	// 时间安排：完全一致 → 20；任一方 FLEXIBLE → 12；其余 → 5
	switch {
	case a.AvailabilityType == b.AvailabilityType:
		score += scoreAvailabilityExact
		reasons = append(reasons, "Matching availability")
	case a.AvailabilityType == model.AvailabilityFlexible || b.AvailabilityType == model.AvailabilityFlexible:
		score += scoreAvailabilityFlexible
		reasons = append(reasons, "Flexible availability")
	default:
		score += scoreAvailabilityOther
		reasons = append(reasons, "Different availability")
	}

	// 学习方式：完全一致 → 15；任一方 BOTH → 10；其余 → 3
	switch {
	case a.PreferredMode == b.PreferredMode:
		score += scoreModeExact
		reasons = append(reasons, "Same study mode")
	case a.PreferredMode == model.ModeBoth || b.PreferredMode == model.ModeBoth:
		score += scoreModeBoth
		reasons = append(reasons, "Compatible study mode")
	default:
		score += scoreModeOther
		reasons = append(reasons, "Different study mode")
	}

	return MatchResult{Score: score, Reasons: reasons}
}

// MatchService 搭档匹配服务
type MatchService struct {
	db         *gorm.DB
	profileSvc *ProfileService
	limitMax   int // 单页上限
}

func NewMatchService(db *gorm.DB, profileSvc *ProfileService, limitMax int) *MatchService {
	if limitMax <= 0 {
		limitMax = 50
	}
	return &MatchService{db: db, profileSvc: profileSvc, limitMax: limitMax}
}

// MatchCandidate 匹配结果中的候选人
type MatchCandidate struct {
	Profile model.StudyProfile `json:"profile"`
	Score   int                `json:"score"`
	Reasons []string           `json:"reasons"`
}

// Pagination 分页信息
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// MatchPage 一页匹配结果
type MatchPage struct {
	Matches    []MatchCandidate `json:"matches"`
	Pagination Pagination       `json:"pagination"`
}

// FindMatches 为请求者查找并排序候选搭档
// 排除与请求者已存在任何状态关系的用户；按分数稳定降序后分页
func (s *MatchService) FindMatches(requesterID uuid.UUID, filters CandidateFilters, page, limit int) (*MatchPage, error) {
	requester, err := s.profileSvc.GetByUserID(requesterID)
	if err != nil {
		return nil, err
	}
	if !requester.IsComplete {
		return nil, utils.ValidationError("complete your profile before finding matches")
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > s.limitMax {
		limit = s.limitMax
	}

	candidates, err := s.profileSvc.FindCandidates(requester.PrimaryGoal, filters)
	if err != nil {
		return nil, err
	}

	related, err := s.relatedUserIDs(requesterID)
	if err != nil {
		return nil, err
	}

	scored := make([]MatchCandidate, 0, len(candidates))
	for i := range candidates {
		candidate := candidates[i]
		if candidate.UserID == requesterID || related[candidate.UserID] {
			continue
		}
		result := ScoreProfiles(requester, &candidate)
		scored = append(scored, MatchCandidate{
			Profile: candidate,
			Score:   result.Score,
			Reasons: result.Reasons,
		})
	}

	// 稳定排序：同分时保持候选查询的原始顺序
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	total := int64(len(scored))
	pages := int((total + int64(limit) - 1) / int64(limit))
	start := (page - 1) * limit
	if start > len(scored) {
		start = len(scored)
	}
	end := start + limit
	if end > len(scored) {
		end = len(scored)
	}

	return &MatchPage{
		Matches: scored[start:end],
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}

// relatedUserIDs 与请求者存在任何状态关系的用户集合（双向）
func (s *MatchService) relatedUserIDs(userID uuid.UUID) (map[uuid.UUID]bool, error) {
	var connections []model.Connection
	err := s.db.Where("requester_id = ? OR receiver_id = ?", userID, userID).
		Find(&connections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query existing connections: %w", err)
	}

	related := make(map[uuid.UUID]bool, len(connections))
	for _, conn := range connections {
		related[conn.OtherParty(userID)] = true
	}
	return related, nil
}
