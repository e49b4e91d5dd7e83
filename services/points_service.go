package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"topminton/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TBWeights define relative TB Points values per activity (tunable via
// config/env later)
type TBWeights struct {
	MatchPlayedTB int64
	MatchWonTB    int64
	PartyJoinedTB int64
	AssessmentTB  int64
	CheckInTB     int64
}

var DefaultTBWeights = TBWeights{
	MatchPlayedTB: 10,
	MatchWonTB:    25,
	PartyJoinedTB: 20,
	AssessmentTB:  50,
	CheckInTB:     15,
}

// LevelConfig: TB needed for *next* level (level 1 → 2 needs BaseTBPerLevel * 1^1.2)
const BaseTBPerLevel = 100

// tbForNextLevel returns TB required to reach level+1 from currentLevel
func tbForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	return int64(float64(BaseTBPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// levelForTotalTB walks the level curve for a lifetime-earned total.
func levelForTotalTB(total int64) int {
	level := 1
	remaining := total
	for {
		need := tbForNextLevel(level)
		if remaining < need {
			return level
		}
		remaining -= need
		level++
	}
}

var ErrInsufficientBalance = errors.New("insufficient TB Points balance")

// PointsService owns the TB Points ledger, player progression, quests,
// and achievements. Balance is always SUM over the ledger; the cached
// value on PlayerProfile is display-only.
type PointsService struct {
	DB      *gorm.DB
	Weights TBWeights
	Notify  *NotificationService
}

func NewPointsService(db *gorm.DB, notify *NotificationService) *PointsService {
	return &PointsService{DB: db, Weights: DefaultTBWeights, Notify: notify}
}

// SeedDefaults upserts the static achievement triggers and default
// quests. Called once at startup.
func (s *PointsService) SeedDefaults() error {
	for _, trigger := range models.AchievementTriggers {
		t := trigger
		t.ID = uuid.NewString()
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "rarity", "threshold", "reward_tb"}),
		}).Create(&t).Error; err != nil {
			return fmt.Errorf("failed to seed achievement %s: %w", trigger.Code, err)
		}
	}

	defaults := []models.Quest{
		{Code: "DAILY_PLAY_3", Title: "Triple Rally", Description: "Play 3 matches today", Period: models.QuestPeriodDaily, Counter: "total_matches", Target: 3, RewardTB: 60, IsActive: true},
		{Code: "DAILY_WIN_1", Title: "Daily Smash", Description: "Win a match today", Period: models.QuestPeriodDaily, Counter: "total_wins", Target: 1, RewardTB: 40, IsActive: true},
		{Code: "WEEKLY_PARTY_2", Title: "Weekend Warrior", Description: "Join 2 parties this week", Period: models.QuestPeriodWeekly, Counter: "total_parties", Target: 2, RewardTB: 150, IsActive: true},
	}
	for _, q := range defaults {
		q.ID = uuid.NewString()
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "description", "period", "counter", "target", "reward_tb", "is_active"}),
		}).Create(&q).Error; err != nil {
			return fmt.Errorf("failed to seed quest %s: %w", q.Code, err)
		}
	}
	return nil
}

// EnsureProgressRecord ensures a PlayerProgress row exists (idempotent)
func (s *PointsService) EnsureProgressRecord(externalUserID string) (*models.PlayerProgress, error) {
	var prog models.PlayerProgress
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prog = models.PlayerProgress{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			Level:          1,
		}
		if err := s.DB.Create(&prog).Error; err != nil {
			return nil, err
		}
		return &prog, nil
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

// Balance sums the ledger for one user.
func (s *PointsService) Balance(externalUserID string) (int64, error) {
	var balance int64
	err := s.DB.Model(&models.PointsEntry{}).
		Where("external_user_id = ?", externalUserID).
		Select("COALESCE(SUM(amount), 0)").Scan(&balance).Error
	return balance, err
}

// Award writes one earn entry, recomputes level, and refreshes the
// display cache.
func (s *PointsService) Award(externalUserID string, amount int64, reason, referenceID string) error {
	if amount <= 0 {
		return nil
	}
	entry := models.PointsEntry{
		ExternalUserID: externalUserID,
		Kind:           models.PointsKindEarn,
		Amount:         amount,
		Reason:         reason,
		ReferenceID:    referenceID,
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		return err
	}

	prog, err := s.EnsureProgressRecord(externalUserID)
	if err != nil {
		return err
	}
	prog.TotalTB += amount
	newLevel := levelForTotalTB(prog.TotalTB)
	leveledUp := newLevel > prog.Level
	if leveledUp {
		now := time.Now()
		prog.Level = newLevel
		prog.LastLevelUpAt = &now
	}
	if err := s.DB.Save(prog).Error; err != nil {
		return err
	}
	s.refreshBalanceCache(externalUserID)

	if leveledUp && s.Notify != nil {
		s.Notify.Push(externalUserID, models.NotifKindSystem,
			"Level up!", fmt.Sprintf("You reached level %d 🏸", newLevel), "")
	}
	return nil
}

// Spend writes one negative ledger entry after checking the balance in
// the same transaction, so two concurrent spends cannot both pass.
func (s *PointsService) Spend(externalUserID string, amount int64, reason, referenceID string) error {
	if amount <= 0 {
		return errors.New("spend amount must be positive")
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Serialize spends per user; an aggregate can't take a row lock.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", externalUserID).Error; err != nil {
			return err
		}
		var balance int64
		if err := tx.Model(&models.PointsEntry{}).
			Where("external_user_id = ?", externalUserID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&balance).Error; err != nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientBalance
		}
		return tx.Create(&models.PointsEntry{
			ExternalUserID: externalUserID,
			Kind:           models.PointsKindSpend,
			Amount:         -amount,
			Reason:         reason,
			ReferenceID:    referenceID,
		}).Error
	})
	if err != nil {
		return err
	}
	s.refreshBalanceCache(externalUserID)
	return nil
}

func (s *PointsService) refreshBalanceCache(externalUserID string) {
	balance, err := s.Balance(externalUserID)
	if err != nil {
		log.Printf("⚠️ Failed to compute balance for %s: %v", externalUserID, err)
		return
	}
	s.DB.Model(&models.PlayerProfile{}).
		Where("external_user_id = ?", externalUserID).
		Update("tb_points_cached", balance)
}

// RecordMatchOutcome applies a finished pairing to every participant's
// progression: everyone played, winners also won.
func (s *PointsService) RecordMatchOutcome(participants []string, winners []string, pairingID string) error {
	winnerSet := make(map[string]bool, len(winners))
	for _, id := range winners {
		winnerSet[id] = true
	}

	for _, uid := range participants {
		prog, err := s.EnsureProgressRecord(uid)
		if err != nil {
			return err
		}
		prog.TotalMatches++
		amount := s.Weights.MatchPlayedTB
		if winnerSet[uid] {
			prog.TotalWins++
			amount += s.Weights.MatchWonTB
		}
		if err := s.DB.Save(prog).Error; err != nil {
			return err
		}
		reason := models.PointsReasonMatchPlayed
		if winnerSet[uid] {
			reason = models.PointsReasonMatchWon
		}
		if err := s.Award(uid, amount, reason, pairingID); err != nil {
			return err
		}

		s.bumpQuests(uid, "total_matches", 1)
		if winnerSet[uid] {
			s.bumpQuests(uid, "total_wins", 1)
		}
		if err := s.AutoAwardAchievements(uid); err != nil {
			log.Printf("⚠️ Achievement check failed for %s: %v", uid, err)
		}
	}
	return nil
}

// RecordPartyJoin awards the join bonus and bumps party counters.
func (s *PointsService) RecordPartyJoin(externalUserID, partyID string) error {
	prog, err := s.EnsureProgressRecord(externalUserID)
	if err != nil {
		return err
	}
	prog.TotalParties++
	if err := s.DB.Save(prog).Error; err != nil {
		return err
	}
	if err := s.Award(externalUserID, s.Weights.PartyJoinedTB, models.PointsReasonPartyJoined, partyID); err != nil {
		return err
	}
	s.bumpQuests(externalUserID, "total_parties", 1)
	return s.AutoAwardAchievements(externalUserID)
}

// RecordAssessment awards the assessment bonus.
func (s *PointsService) RecordAssessment(externalUserID, attemptID string) error {
	prog, err := s.EnsureProgressRecord(externalUserID)
	if err != nil {
		return err
	}
	prog.TotalAssessments++
	if err := s.DB.Save(prog).Error; err != nil {
		return err
	}
	if err := s.Award(externalUserID, s.Weights.AssessmentTB, models.PointsReasonAssessmentDone, attemptID); err != nil {
		return err
	}
	return s.AutoAwardAchievements(externalUserID)
}

// bumpQuests advances quest progress rows watching the given counter.
func (s *PointsService) bumpQuests(externalUserID, counter string, delta int64) {
	var quests []models.Quest
	if err := s.DB.Where("counter = ? AND is_active = true", counter).Find(&quests).Error; err != nil {
		log.Printf("⚠️ Failed to load quests for counter %s: %v", counter, err)
		return
	}
	for _, q := range quests {
		var qp models.QuestProgress
		err := s.DB.Where("external_user_id = ? AND quest_id = ?", externalUserID, q.ID).First(&qp).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			qp = models.QuestProgress{
				ExternalUserID: externalUserID,
				QuestID:        q.ID,
				PeriodStart:    periodStart(q.Period, time.Now()),
			}
		} else if err != nil {
			log.Printf("⚠️ Failed to load quest progress: %v", err)
			continue
		}
		qp.Progress += delta
		if err := s.DB.Save(&qp).Error; err != nil {
			log.Printf("⚠️ Failed to save quest progress: %v", err)
			continue
		}
		if qp.Progress >= q.Target && !qp.Claimed && s.Notify != nil {
			s.Notify.Push(externalUserID, models.NotifKindQuestComplete,
				"Quest complete", q.Title+" — claim your "+fmt.Sprint(q.RewardTB)+" TB!", q.ID)
		}
	}
}

func periodStart(period string, now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if period == models.QuestPeriodWeekly {
		weekday := int(day.Weekday())
		if weekday == 0 {
			weekday = 7 // weeks start Monday
		}
		return day.AddDate(0, 0, -(weekday - 1))
	}
	return day
}

// AutoAwardAchievements checks all triggers for a user after a
// progress update
func (s *PointsService) AutoAwardAchievements(externalUserID string) error {
	var prog models.PlayerProgress
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error; err != nil {
		return err
	}

	var types []models.AchievementType
	if err := s.DB.Find(&types).Error; err != nil {
		return err
	}

	for _, t := range types {
		if !s.meetsThreshold(&prog, t.Threshold) {
			continue
		}
		var count int64
		s.DB.Model(&models.PlayerAchievement{}).
			Where("external_user_id = ? AND achievement_type_id = ?", externalUserID, t.ID).
			Count(&count)
		if count > 0 {
			continue
		}
		award := models.PlayerAchievement{
			ExternalUserID:    externalUserID,
			AchievementTypeID: t.ID,
		}
		if err := s.DB.Create(&award).Error; err != nil {
			return err
		}
		log.Printf("🎖️ Achievement awarded: %s → %s", t.Name, externalUserID)
		if t.RewardTB > 0 {
			if err := s.Award(externalUserID, t.RewardTB, models.PointsReasonAchievement, t.ID); err != nil {
				return err
			}
		}
		if s.Notify != nil {
			s.Notify.Push(externalUserID, models.NotifKindAchievement,
				"Achievement unlocked", t.Name, t.ID)
		}
	}
	return nil
}

func (s *PointsService) meetsThreshold(prog *models.PlayerProgress, req map[string]int64) bool {
	for key, required := range req {
		switch key {
		case "total_matches":
			if prog.TotalMatches < required {
				return false
			}
		case "total_wins":
			if prog.TotalWins < required {
				return false
			}
		case "total_parties":
			if prog.TotalParties < required {
				return false
			}
		case "total_assessments":
			if prog.TotalAssessments < required {
				return false
			}
		case "level":
			if int64(prog.Level) < required {
				return false
			}
		}
	}
	return true
}

// --- HTTP handlers ---

// GetProgress returns the user's progression summary plus live balance.
func (s *PointsService) GetProgress(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	prog, err := s.EnsureProgressRecord(userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load progress", "cause": err.Error()})
	}
	balance, err := s.Balance(userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to compute balance"})
	}

	return c.JSON(fiber.Map{
		"progress":      prog,
		"tb_balance":    balance,
		"next_level_tb": tbForNextLevel(prog.Level),
	})
}

// GetLedger returns recent ledger entries and the current balance.
func (s *PointsService) GetLedger(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []models.PointsEntry
	if err := s.DB.Where("external_user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	balance, _ := s.Balance(userID)

	return c.JSON(fiber.Map{"entries": entries, "balance": balance})
}

// CheckIn awards the daily check-in bonus, once per calendar day.
func (s *PointsService) CheckIn(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	prog, err := s.EnsureProgressRecord(userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load progress"})
	}

	now := time.Now()
	if prog.LastCheckInAt != nil {
		last := *prog.LastCheckInAt
		if last.Year() == now.Year() && last.YearDay() == now.YearDay() {
			return c.Status(409).JSON(fiber.Map{"error": "already checked in today"})
		}
	}

	prog.TotalCheckIns++
	prog.LastCheckInAt = &now
	if err := s.DB.Save(prog).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if err := s.Award(userID, s.Weights.CheckInTB, models.PointsReasonDailyCheckIn, ""); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to award check-in bonus"})
	}

	return c.JSON(fiber.Map{
		"message":   "checked in",
		"awarded":   s.Weights.CheckInTB,
		"check_ins": prog.TotalCheckIns,
	})
}

// SpendPoints deducts TB from the caller's balance, e.g. for venue
// perks redeemed off-platform.
func (s *PointsService) SpendPoints(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Amount      int64  `json:"amount"`
		Reason      string `json:"reason"`
		ReferenceID string `json:"reference_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "amount must be positive"})
	}
	if req.Reason == "" {
		req.Reason = "redemption"
	}

	if err := s.Spend(userID, req.Amount, req.Reason, req.ReferenceID); err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return c.Status(409).JSON(fiber.Map{"error": "insufficient TB Points balance"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to spend points"})
	}

	balance, _ := s.Balance(userID)
	return c.JSON(fiber.Map{"message": "points spent", "spent": req.Amount, "balance": balance})
}

// ListQuests returns active quests with the user's progress.
func (s *PointsService) ListQuests(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var quests []models.Quest
	if err := s.DB.Where("is_active = true").Order("period, code").Find(&quests).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	type questView struct {
		models.Quest
		Progress int64 `json:"progress"`
		Claimed  bool  `json:"claimed"`
	}
	views := make([]questView, 0, len(quests))
	for _, q := range quests {
		var qp models.QuestProgress
		view := questView{Quest: q}
		if err := s.DB.Where("external_user_id = ? AND quest_id = ?", userID, q.ID).
			First(&qp).Error; err == nil {
			view.Progress = qp.Progress
			view.Claimed = qp.Claimed
		}
		views = append(views, view)
	}
	return c.JSON(fiber.Map{"quests": views})
}

// ClaimQuest pays out a completed, unclaimed quest.
func (s *PointsService) ClaimQuest(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	questID := c.Params("id")

	var quest models.Quest
	if err := s.DB.First(&quest, "id = ?", questID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "quest not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	var qp models.QuestProgress
	if err := s.DB.Where("external_user_id = ? AND quest_id = ?", userID, questID).
		First(&qp).Error; err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "no progress on this quest"})
	}
	if qp.Claimed {
		return c.Status(409).JSON(fiber.Map{"error": "quest already claimed this period"})
	}
	if qp.Progress < quest.Target {
		return c.Status(400).JSON(fiber.Map{"error": "quest not yet complete"})
	}

	now := time.Now()
	qp.Claimed = true
	qp.ClaimedAt = &now
	if err := s.DB.Save(&qp).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if err := s.Award(userID, quest.RewardTB, models.PointsReasonQuestReward, quest.ID); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to award quest reward"})
	}

	return c.JSON(fiber.Map{
		"message":  "quest claimed",
		"quest_id": quest.ID,
		"awarded":  quest.RewardTB,
	})
}

// ListAchievements returns the catalog with the user's earned set.
func (s *PointsService) ListAchievements(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var types []models.AchievementType
	if err := s.DB.Order("created_at ASC").Find(&types).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	var earned []models.PlayerAchievement
	if err := s.DB.Where("external_user_id = ?", userID).Find(&earned).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	earnedSet := make(map[string]time.Time, len(earned))
	for _, e := range earned {
		earnedSet[e.AchievementTypeID] = e.AwardedAt
	}

	type achievementView struct {
		models.AchievementType
		Earned   bool       `json:"earned"`
		EarnedAt *time.Time `json:"earned_at,omitempty"`
	}
	views := make([]achievementView, 0, len(types))
	for _, t := range types {
		view := achievementView{AchievementType: t}
		if at, ok := earnedSet[t.ID]; ok {
			view.Earned = true
			view.EarnedAt = &at
		}
		views = append(views, view)
	}
	return c.JSON(fiber.Map{"achievements": views})
}
