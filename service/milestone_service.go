package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"studybuddy/model"
	"studybuddy/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 成就类型（封闭目录，调用方不能擅自扩展）
const (
	MilestoneFirstConnection = "FIRST_CONNECTION"
	MilestoneConnections5    = "CONNECTIONS_5"
	MilestoneConnections10   = "CONNECTIONS_10"
	MilestoneConnections25   = "CONNECTIONS_25"

	MilestoneStreak3   = "STREAK_3"
	MilestoneStreak7   = "STREAK_7"
	MilestoneStreak14  = "STREAK_14"
	MilestoneStreak30  = "STREAK_30"
	MilestoneStreak60  = "STREAK_60"
	MilestoneStreak100 = "STREAK_100"

	MilestoneTopic1  = "TOPIC_1"
	MilestoneTopic5  = "TOPIC_5"
	MilestoneTopic10 = "TOPIC_10"
	MilestoneTopic25 = "TOPIC_25"
	MilestoneTopic50 = "TOPIC_50"

	MilestoneFirstMessage  = "FIRST_MESSAGE"
	MilestoneMessages100   = "MESSAGES_100"
	MilestoneMessages500   = "MESSAGES_500"
	MilestoneMessages1000  = "MESSAGES_1000"
	MilestoneFirstCheckIn  = "FIRST_CHECK_IN"
	MilestoneCheckIns10    = "CHECK_INS_10"
	MilestoneCheckIns50    = "CHECK_INS_50"
	MilestoneCheckIns100   = "CHECK_INS_100"
	MilestoneHealthChamp   = "HEALTH_CHAMPION"
	MilestonePerfectBal    = "PERFECT_BALANCE"
	MilestoneComeback      = "COMEBACK"
	MilestoneFirstFeedback = "FIRST_FEEDBACK"
	MilestoneWeeklyGoalMet = "WEEKLY_GOAL_MET"
	MilestoneProfileDone   = "PROFILE_COMPLETE"
	MilestoneEarlyAdopter  = "EARLY_ADOPTER"
)

// BadgeSpec 目录中的徽章定义
type BadgeSpec struct {
	Name   string
	Icon   string
	Tier   string
	Points int
}

// BadgeCatalog 成就目录（不可变静态表，构造时注入）
type BadgeCatalog map[string]BadgeSpec

// DefaultBadgeCatalog 默认成就目录
func DefaultBadgeCatalog() BadgeCatalog {
	return BadgeCatalog{
		MilestoneFirstConnection: {Name: "First Partner", Icon: "🤝", Tier: model.TierBronze, Points: 10},
		MilestoneConnections5:    {Name: "Social Learner", Icon: "👥", Tier: model.TierSilver, Points: 25},
		MilestoneConnections10:   {Name: "Study Network", Icon: "🌐", Tier: model.TierGold, Points: 50},
		MilestoneConnections25:   {Name: "Community Pillar", Icon: "🏛️", Tier: model.TierPlatinum, Points: 100},

		MilestoneStreak3:   {Name: "3-Day Streak", Icon: "🔥", Tier: model.TierBronze, Points: 15},
		MilestoneStreak7:   {Name: "Week Warrior", Icon: "⚔️", Tier: model.TierSilver, Points: 30},
		MilestoneStreak14:  {Name: "Fortnight Focus", Icon: "🎯", Tier: model.TierSilver, Points: 50},
		MilestoneStreak30:  {Name: "Monthly Master", Icon: "📅", Tier: model.TierGold, Points: 100},
		MilestoneStreak60:  {Name: "Habit Builder", Icon: "🏗️", Tier: model.TierPlatinum, Points: 200},
		MilestoneStreak100: {Name: "Century Scholar", Icon: "💯", Tier: model.TierDiamond, Points: 500},

		MilestoneTopic1:  {Name: "First Topic", Icon: "📖", Tier: model.TierBronze, Points: 5},
		MilestoneTopic5:  {Name: "Topic Explorer", Icon: "🧭", Tier: model.TierBronze, Points: 20},
		MilestoneTopic10: {Name: "Knowledge Seeker", Icon: "🔍", Tier: model.TierSilver, Points: 40},
		MilestoneTopic25: {Name: "Subject Expert", Icon: "🎓", Tier: model.TierGold, Points: 80},
		MilestoneTopic50: {Name: "Polymath", Icon: "🧠", Tier: model.TierDiamond, Points: 200},

		MilestoneFirstMessage: {Name: "Ice Breaker", Icon: "💬", Tier: model.TierBronze, Points: 5},
		MilestoneMessages100:  {Name: "Conversationalist", Icon: "🗣️", Tier: model.TierSilver, Points: 25},
		MilestoneMessages500:  {Name: "Communicator", Icon: "📢", Tier: model.TierGold, Points: 60},
		MilestoneMessages1000: {Name: "Chatterbox", Icon: "📣", Tier: model.TierPlatinum, Points: 120},

		MilestoneFirstCheckIn: {Name: "First Check-in", Icon: "✅", Tier: model.TierBronze, Points: 10},
		MilestoneCheckIns10:   {Name: "Consistent", Icon: "📋", Tier: model.TierSilver, Points: 30},
		MilestoneCheckIns50:   {Name: "Dedicated", Icon: "🏅", Tier: model.TierGold, Points: 75},
		MilestoneCheckIns100:  {Name: "Unstoppable", Icon: "🚀", Tier: model.TierPlatinum, Points: 150},

		MilestoneHealthChamp:   {Name: "Health Champion", Icon: "💪", Tier: model.TierGold, Points: 50},
		MilestonePerfectBal:    {Name: "Perfect Balance", Icon: "⚖️", Tier: model.TierGold, Points: 50},
		MilestoneComeback:      {Name: "Comeback", Icon: "🔄", Tier: model.TierSilver, Points: 30},
		MilestoneFirstFeedback: {Name: "Honest Voice", Icon: "📝", Tier: model.TierBronze, Points: 10},
		MilestoneWeeklyGoalMet: {Name: "Weekly Goal", Icon: "🏆", Tier: model.TierSilver, Points: 25},
		MilestoneProfileDone:   {Name: "All Set", Icon: "🪪", Tier: model.TierBronze, Points: 5},
		MilestoneEarlyAdopter:  {Name: "Early Adopter", Icon: "🌱", Tier: model.TierGold, Points: 50},
	}
}

// 连续打卡 / 主题数量的成就阈值（升序）
var streakThresholds = []struct {
	Days int
	Type string
}{
	{3, MilestoneStreak3},
	{7, MilestoneStreak7},
	{14, MilestoneStreak14},
	{30, MilestoneStreak30},
	{60, MilestoneStreak60},
	{100, MilestoneStreak100},
}

var topicThresholds = []struct {
	Count int
	Type  string
}{
	{1, MilestoneTopic1},
	{5, MilestoneTopic5},
	{10, MilestoneTopic10},
	{25, MilestoneTopic25},
	{50, MilestoneTopic50},
}

var connectionThresholds = []struct {
	Count int64
	Type  string
}{
	{1, MilestoneFirstConnection},
	{5, MilestoneConnections5},
	{10, MilestoneConnections10},
	{25, MilestoneConnections25},
}

const leaderboardCacheKey = "leaderboard:points"

// MilestoneService 成就服务
type MilestoneService struct {
	db       *gorm.DB
	rdb      *redis.Client // 可为空，空时直接查库
	catalog  BadgeCatalog
	cacheTTL time.Duration
	notifier NotificationSink
}

func NewMilestoneService(db *gorm.DB, catalog BadgeCatalog) *MilestoneService {
	return &MilestoneService{db: db, catalog: catalog, cacheTTL: 5 * time.Minute}
}

// NewMilestoneServiceWithRedis 带排行榜缓存的成就服务
func NewMilestoneServiceWithRedis(db *gorm.DB, rdb *redis.Client, catalog BadgeCatalog, cacheTTL time.Duration) *MilestoneService {
	return &MilestoneService{db: db, rdb: rdb, catalog: catalog, cacheTTL: cacheTTL}
}

// SetNotificationSink 设置通知发送器（用于依赖注入）
func (s *MilestoneService) SetNotificationSink(sink NotificationSink) {
	s.notifier = sink
}

// AwardMilestone 授予成就：已持有时静默返回 nil（幂等），未知类型为硬错误
func (s *MilestoneService) AwardMilestone(userID uuid.UUID, milestoneType string, connectionID *uuid.UUID) (*model.Milestone, error) {
	spec, ok := s.catalog[milestoneType]
	if !ok {
		return nil, utils.UnknownTypeError("unknown milestone type: %s", milestoneType)
	}

	// uuid.Nil 占位“无关联关系”维度，让唯一索引覆盖两种情况
	connID := uuid.Nil
	if connectionID != nil {
		connID = *connectionID
	}

	var count int64
	err := s.db.Model(&model.Milestone{}).
		Where("user_id = ? AND connection_id = ? AND type = ?", userID, connID, milestoneType).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check milestone: %w", err)
	}
	if count > 0 {
		return nil, nil
	}

	milestone := &model.Milestone{
		UserID:       userID,
		ConnectionID: connID,
		Type:         milestoneType,
		BadgeName:    spec.Name,
		BadgeIcon:    spec.Icon,
		BadgeTier:    spec.Tier,
		BadgeColor:   model.TierColor(spec.Tier),
		Points:       spec.Points,
		IsVisible:    true,
	}
	if err := s.db.Create(milestone).Error; err != nil {
		// 并发下撞唯一索引视同已持有
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create milestone: %w", err)
	}

	s.invalidateLeaderboard()

	if s.notifier != nil {
		s.notifier.Notify(userID, model.NotifyMilestoneEarned,
			map[string]string{"badge": spec.Name},
			map[string]interface{}{"milestone_id": milestone.ID, "points": spec.Points})
	}

	return milestone, nil
}

// CheckStreakMilestones 按升序阈值结算连续打卡成就，可重复调用
func (s *MilestoneService) CheckStreakMilestones(userID uuid.UUID, streak int) error {
	for _, threshold := range streakThresholds {
		if streak < threshold.Days {
			break
		}
		if _, err := s.AwardMilestone(userID, threshold.Type, nil); err != nil {
			return err
		}
	}
	return nil
}

// CheckTopicMilestones 按升序阈值结算学习主题成就
func (s *MilestoneService) CheckTopicMilestones(userID uuid.UUID, count int) error {
	for _, threshold := range topicThresholds {
		if count < threshold.Count {
			break
		}
		if _, err := s.AwardMilestone(userID, threshold.Type, nil); err != nil {
			return err
		}
	}
	return nil
}

// CheckConnectionMilestones 按搭档数量结算成就（供 ConnectionService 回调）
func (s *MilestoneService) CheckConnectionMilestones(userID uuid.UUID, acceptedCount int64) {
	for _, threshold := range connectionThresholds {
		if acceptedCount < threshold.Count {
			break
		}
		if _, err := s.AwardMilestone(userID, threshold.Type, nil); err != nil {
			log.Printf("[WARN] failed to award %s: %v", threshold.Type, err)
		}
	}
}

// GetTotalPoints 用户成就总积分
func (s *MilestoneService) GetTotalPoints(userID uuid.UUID) (int, error) {
	var total int64
	err := s.db.Model(&model.Milestone{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return int(total), nil
}

// ListMilestones 用户持有的成就（visibleOnly 时只返回可见的）
func (s *MilestoneService) ListMilestones(userID uuid.UUID, visibleOnly bool) ([]model.Milestone, error) {
	query := s.db.Where("user_id = ?", userID)
	if visibleOnly {
		query = query.Where("is_visible = ?", true)
	}
	var milestones []model.Milestone
	if err := query.Order("earned_at DESC").Find(&milestones).Error; err != nil {
		return nil, fmt.Errorf("failed to query milestones: %w", err)
	}
	return milestones, nil
}

// SetVisibility 成就记录唯一可变的字段
func (s *MilestoneService) SetVisibility(userID, milestoneID uuid.UUID, visible bool) error {
	result := s.db.Model(&model.Milestone{}).
		Where("id = ? AND user_id = ?", milestoneID, userID).
		Update("is_visible", visible)
	if result.Error != nil {
		return fmt.Errorf("failed to update visibility: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NotFoundError("milestone not found")
	}
	return nil
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Points      int       `json:"points"`
	Badges      int       `json:"badges"`
	Rank        int       `json:"rank"`
}

// Leaderboard 排行榜响应
type Leaderboard struct {
	Entries  []LeaderboardEntry `json:"entries"`
	MyRank   int                `json:"my_rank"` // 全局名次（从 1 开始），无成就时为 0
	MyPoints int                `json:"my_points"`
}

// GetLeaderboard 积分排行榜 Top-N + 当前用户的全局名次
// Top-N 优先走 Redis ZSet 缓存，未命中时查库并回填；
// 名次用独立的计数查询得出，不依赖 Top-N 窗口
func (s *MilestoneService) GetLeaderboard(topN int, currentUser uuid.UUID) (*Leaderboard, error) {
	if topN <= 0 {
		topN = 10
	}

	entries := s.cachedTopEntries(topN)
	if entries == nil {
		var err error
		entries, err = s.queryTopEntries(topN)
		if err != nil {
			return nil, err
		}
	}

	myPoints, err := s.GetTotalPoints(currentUser)
	if err != nil {
		return nil, err
	}

	myRank := 0
	if myPoints > 0 {
		// 全局名次 = 比我积分高的用户数 + 1
		var higher int64
		err = s.db.Raw(
			"SELECT COUNT(*) FROM (SELECT user_id FROM milestones GROUP BY user_id HAVING SUM(points) > ?) ranked",
			myPoints,
		).Scan(&higher).Error
		if err != nil {
			return nil, fmt.Errorf("failed to compute rank: %w", err)
		}
		myRank = int(higher) + 1
	}

	return &Leaderboard{Entries: entries, MyRank: myRank, MyPoints: myPoints}, nil
}

// queryTopEntries 按积分聚合查库取 Top-N，并回填缓存
func (s *MilestoneService) queryTopEntries(topN int) ([]LeaderboardEntry, error) {
	type row struct {
		UserID uuid.UUID
		Points int
		Badges int
	}
	var rows []row
	err := s.db.Model(&model.Milestone{}).
		Select("user_id, SUM(points) AS points, COUNT(*) AS badges").
		Group("user_id").
		Order("points DESC").
		Limit(topN).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		entry := LeaderboardEntry{
			UserID: r.UserID,
			Points: r.Points,
			Badges: r.Badges,
			Rank:   i + 1,
		}
		s.fillIdentity(&entry)
		entries = append(entries, entry)
		s.cacheScore(r.UserID, r.Points)
	}
	return entries, nil
}

// cachedTopEntries 从 Redis ZSet 读 Top-N；缓存缺失或内容异常时返回 nil 走库
func (s *MilestoneService) cachedTopEntries(topN int) []LeaderboardEntry {
	if s.rdb == nil {
		return nil
	}
	zs, err := s.rdb.ZRevRangeWithScores(context.Background(), leaderboardCacheKey, 0, int64(topN)-1).Result()
	if err != nil || len(zs) == 0 {
		return nil
	}
	return s.entriesFromCache(zs)
}

// entriesFromCache ZSet 成员转排行榜条目，徽章数和昵称补查库
func (s *MilestoneService) entriesFromCache(zs []redis.Z) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			return nil
		}
		userID, err := uuid.Parse(member)
		if err != nil {
			return nil
		}
		entry := LeaderboardEntry{
			UserID: userID,
			Points: int(z.Score),
			Rank:   i + 1,
		}
		var badges int64
		if err := s.db.Model(&model.Milestone{}).Where("user_id = ?", userID).Count(&badges).Error; err == nil {
			entry.Badges = int(badges)
		}
		s.fillIdentity(&entry)
		entries = append(entries, entry)
	}
	return entries
}

func (s *MilestoneService) fillIdentity(entry *LeaderboardEntry) {
	var profile model.StudyProfile
	if err := s.db.Where("user_id = ?", entry.UserID).First(&profile).Error; err == nil {
		entry.DisplayName = profile.DisplayName
	}
}

// cacheScore 把积分写入 Redis ZSet（尽力而为）
func (s *MilestoneService) cacheScore(userID uuid.UUID, points int) {
	if s.rdb == nil {
		return
	}
	ctx := context.Background()
	if err := s.rdb.ZAdd(ctx, leaderboardCacheKey, redis.Z{
		Score:  float64(points),
		Member: userID.String(),
	}).Err(); err != nil {
		log.Printf("[WARN] leaderboard cache write failed: %v", err)
		return
	}
	s.rdb.Expire(ctx, leaderboardCacheKey, s.cacheTTL)
}

func (s *MilestoneService) invalidateLeaderboard() {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(context.Background(), leaderboardCacheKey).Err(); err != nil {
		log.Printf("[WARN] leaderboard cache invalidation failed: %v", err)
	}
}
