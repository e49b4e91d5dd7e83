package services

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"topminton/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type PlayerService struct {
	DB *gorm.DB
}

func NewPlayerService(db *gorm.DB) *PlayerService {
	return &PlayerService{DB: db}
}

// SearchPlayers searches the local PlayerProfile table.
func (s *PlayerService) SearchPlayers(c *fiber.Ctx) error {
	query := c.Query("q", "")
	tier := c.Query("tier", "")
	limitStr := c.Query("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	db := s.DB.Model(&models.PlayerProfile{}).
		Where("is_banned = ?", false).Limit(limit)
	if query != "" {
		searchTerm := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		db = db.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", searchTerm, searchTerm)
	}
	if tier != "" {
		if models.TierRank(tier) < 0 {
			return c.Status(400).JSON(fiber.Map{"error": "invalid tier"})
		}
		db = db.Where("skill_tier = ?", tier)
	}

	var players []models.PlayerProfile
	if err := db.Find(&players).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "search failed", "details": err.Error()})
	}

	// Minimal response shape; ExternalUserID is the identifier clients use.
	type PlayerSummary struct {
		ExternalUserID    string  `json:"external_user_id"`
		Username          string  `json:"username"`
		SkillTier         string  `json:"skill_tier"`
		TBPoints          int64   `json:"tb_points"`
		ProfilePictureURL *string `json:"profile_picture_url,omitempty"`
	}
	res := make([]PlayerSummary, len(players))
	for i, p := range players {
		res[i] = PlayerSummary{
			ExternalUserID:    p.ExternalUserID,
			Username:          p.Username,
			SkillTier:         p.SkillTier,
			TBPoints:          p.TBPointsCached,
			ProfilePictureURL: p.ProfilePictureURL,
		}
	}
	return c.JSON(res)
}

// GetPlayer returns one player's public profile.
func (s *PlayerService) GetPlayer(c *fiber.Ctx) error {
	externalID := c.Params("id")

	var player models.PlayerProfile
	err := s.DB.Where("external_user_id = ?", externalID).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "player not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	player.Email = "" // not public
	return c.JSON(player)
}

// GetMyProfile returns the caller's own profile and bumps last_seen.
func (s *PlayerService) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var player models.PlayerProfile
	err := s.DB.Where("external_user_id = ?", userID).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "profile not synced yet"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	now := time.Now()
	s.DB.Model(&player).Update("last_seen", &now)
	return c.JSON(player)
}

// UpdateMyProfile edits the locally-owned fields. Identity fields come
// from the Profile Service via the sync worker and are not editable here.
func (s *PlayerService) UpdateMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Bio       *string `json:"bio"`
		SkillTier *string `json:"skill_tier"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	updates := map[string]interface{}{}
	if req.Bio != nil {
		updates["bio"] = req.Bio
	}
	if req.SkillTier != nil {
		if models.TierRank(*req.SkillTier) < 0 {
			return c.Status(400).JSON(fiber.Map{"error": "invalid skill_tier"})
		}
		updates["skill_tier"] = *req.SkillTier
	}
	if len(updates) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "nothing to update"})
	}

	res := s.DB.Model(&models.PlayerProfile{}).
		Where("external_user_id = ?", userID).Updates(updates)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to update profile"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "profile not synced yet"})
	}
	return c.JSON(fiber.Map{"message": "profile updated"})
}
