package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"topminton/models"
	"topminton/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type PartyService struct {
	DB     *gorm.DB
	Points *PointsService
	Notify *NotificationService
	Chat   *ChatService
}

func NewPartyService(db *gorm.DB, points *PointsService, notify *NotificationService, chat *ChatService) *PartyService {
	return &PartyService{DB: db, Points: points, Notify: notify, Chat: chat}
}

// CreateParty creates a draft party from a multipart form. The cover
// photo, if present, goes to R2.
func (s *PartyService) CreateParty(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	name := c.FormValue("name")
	description := c.FormValue("description")
	venue := c.FormValue("venue")
	courtCountStr := c.FormValue("court_count")
	maxMembersStr := c.FormValue("max_members")
	feeStr := c.FormValue("fee")
	minTier := c.FormValue("min_tier")
	maxTier := c.FormValue("max_tier")
	startTimeStr := c.FormValue("start_time")
	endTimeStr := c.FormValue("end_time")
	publishScheduleStr := c.FormValue("publish_schedule")

	if name == "" || startTimeStr == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name and start_time are required"})
	}

	courtCount := 1
	if courtCountStr != "" {
		if n, err := strconv.Atoi(courtCountStr); err == nil && n > 0 {
			courtCount = n
		} else {
			return c.Status(400).JSON(fiber.Map{"error": "court_count must be a positive integer"})
		}
	}

	maxMembers := 0
	if maxMembersStr != "" {
		if n, err := strconv.Atoi(maxMembersStr); err == nil && n >= 0 {
			maxMembers = n
		} else {
			return c.Status(400).JSON(fiber.Map{"error": "max_members must be a non-negative integer"})
		}
	}

	fee := 0.0
	if feeStr != "" {
		if f, err := strconv.ParseFloat(feeStr, 64); err == nil && f >= 0 {
			fee = f
		} else {
			return c.Status(400).JSON(fiber.Map{"error": "fee must be a non-negative number"})
		}
	}

	if minTier == "" {
		minTier = models.TierBeginner
	}
	if maxTier == "" {
		maxTier = models.TierElite
	}
	if models.TierRank(minTier) < 0 || models.TierRank(maxTier) < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "invalid skill tier"})
	}
	if models.TierRank(minTier) > models.TierRank(maxTier) {
		return c.Status(400).JSON(fiber.Map{"error": "min_tier must not exceed max_tier"})
	}

	startTime, err := time.Parse(time.RFC3339, startTimeStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid start_time (use RFC3339)"})
	}
	var endTime time.Time
	if endTimeStr != "" {
		endTime, err = time.Parse(time.RFC3339, endTimeStr)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid end_time (use RFC3339)"})
		}
	}

	var publishSchedule *time.Time
	if publishScheduleStr != "" {
		scheduled, err := time.Parse(time.RFC3339, publishScheduleStr)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid publish_schedule (use RFC3339)"})
		}
		publishSchedule = &scheduled
	}

	partyID := uuid.NewString()
	party := models.Party{
		ID:              partyID,
		OrganizerID:     userID,
		Name:            name,
		Slug:            slug.Make(name) + "-" + partyID[:8],
		Description:     description,
		Venue:           venue,
		CourtCount:      courtCount,
		MaxMembers:      maxMembers,
		Fee:             fee,
		MinTier:         minTier,
		MaxTier:         maxTier,
		Status:          models.PartyStatusDraft,
		StartTime:       startTime,
		EndTime:         endTime,
		PublishSchedule: publishSchedule,
	}
	if publishSchedule != nil {
		party.Status = models.PartyStatusScheduled
	}

	if cover, err := c.FormFile("cover_photo"); err == nil && cover != nil {
		key := fmt.Sprintf("parties/%s/cover-%s", partyID, cover.Filename)
		url, upErr := utils.StoreUpload(cover, key)
		if upErr != nil {
			log.Printf("⚠️ Cover upload failed for party %s: %v", partyID, upErr)
		} else {
			party.CoverPhotoURL = url
		}
	}

	if err := s.DB.Create(&party).Error; err != nil {
		log.Printf("DB Error creating party: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create party"})
	}

	// Organizer joins their own roster, and the party chat spins up.
	if err := s.addMember(&party, userID); err != nil {
		log.Printf("⚠️ Failed to add organizer to roster: %v", err)
	}
	if s.Chat != nil {
		if _, err := s.Chat.EnsurePartyConversation(partyID, userID); err != nil {
			log.Printf("⚠️ Failed to create party conversation: %v", err)
		}
	}

	return c.Status(201).JSON(party)
}

// GetPublishedParties lists parties visible to players.
func (s *PartyService) GetPublishedParties(c *fiber.Ctx) error {
	venue := c.Query("venue", "")
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	db := s.DB.Where("status = ?", models.PartyStatusPublished).
		Order("start_time ASC").Limit(limit)
	if venue != "" {
		db = db.Where("LOWER(venue) LIKE ?", "%"+strings.ToLower(venue)+"%")
	}

	var parties []models.Party
	if err := db.Find(&parties).Error; err != nil {
		log.Printf("DB Error listing parties: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	for i := range parties {
		s.fillCounts(&parties[i])
	}
	return c.JSON(fiber.Map{"parties": parties, "count": len(parties)})
}

// GetParty returns one party by id or slug, with members and photos.
func (s *PartyService) GetParty(c *fiber.Ctx) error {
	key := c.Params("id")

	var party models.Party
	err := s.DB.Preload("Photos").
		Preload("Members", "status = ?", models.MemberStatusActive).
		Where("id = ? OR slug = ?", key, key).
		First(&party).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "party not found"})
		}
		log.Printf("DB Error fetching party %s: %v", key, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	s.fillCounts(&party)
	return c.JSON(party)
}

// UpdateParty lets the organizer edit a party that hasn't finished.
func (s *PartyService) UpdateParty(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	partyID := c.Params("id")

	party, errResp := s.loadOwnParty(c, partyID, userID)
	if party == nil {
		return errResp
	}
	if party.Status == models.PartyStatusFinished || party.Status == models.PartyStatusCancelled {
		return c.Status(400).JSON(fiber.Map{"error": "party can no longer be edited"})
	}

	var req struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Venue       *string  `json:"venue"`
		CourtCount  *int     `json:"court_count"`
		MaxMembers  *int     `json:"max_members"`
		Fee         *float64 `json:"fee"`
		MinTier     *string  `json:"min_tier"`
		MaxTier     *string  `json:"max_tier"`
		StartTime   *string  `json:"start_time"`
		EndTime     *string  `json:"end_time"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	if req.Name != nil && *req.Name != "" {
		party.Name = *req.Name
	}
	if req.Description != nil {
		party.Description = *req.Description
	}
	if req.Venue != nil {
		party.Venue = *req.Venue
	}
	if req.CourtCount != nil && *req.CourtCount > 0 {
		party.CourtCount = *req.CourtCount
	}
	if req.MaxMembers != nil && *req.MaxMembers >= 0 {
		party.MaxMembers = *req.MaxMembers
	}
	if req.Fee != nil && *req.Fee >= 0 {
		party.Fee = *req.Fee
	}
	if req.MinTier != nil {
		if models.TierRank(*req.MinTier) < 0 {
			return c.Status(400).JSON(fiber.Map{"error": "invalid min_tier"})
		}
		party.MinTier = *req.MinTier
	}
	if req.MaxTier != nil {
		if models.TierRank(*req.MaxTier) < 0 {
			return c.Status(400).JSON(fiber.Map{"error": "invalid max_tier"})
		}
		party.MaxTier = *req.MaxTier
	}
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid start_time (use RFC3339)"})
		}
		party.StartTime = t
	}
	if req.EndTime != nil {
		t, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid end_time (use RFC3339)"})
		}
		party.EndTime = t
	}

	if err := s.DB.Save(party).Error; err != nil {
		log.Printf("DB Error updating party %s: %v", partyID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to update party"})
	}
	return c.JSON(party)
}

// CancelParty cancels a party and tells the roster.
func (s *PartyService) CancelParty(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	partyID := c.Params("id")

	party, errResp := s.loadOwnParty(c, partyID, userID)
	if party == nil {
		return errResp
	}

	party.Status = models.PartyStatusCancelled
	if err := s.DB.Save(party).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to cancel party"})
	}

	if s.Notify != nil {
		var members []models.PartyMember
		s.DB.Where("party_id = ? AND status = ?", partyID, models.MemberStatusActive).Find(&members)
		for _, m := range members {
			if m.ExternalUserID == userID {
				continue
			}
			s.Notify.Push(m.ExternalUserID, models.NotifKindSystem,
				"Party cancelled", party.Name+" has been cancelled by the organizer.", partyID)
		}
	}
	return c.JSON(fiber.Map{"message": "party cancelled", "id": partyID})
}

// PublishNow makes a party visible immediately.
func (s *PartyService) PublishNow(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	partyID := c.Params("id")

	party, errResp := s.loadOwnParty(c, partyID, userID)
	if party == nil {
		return errResp
	}
	if party.Status == models.PartyStatusPublished {
		return c.Status(400).JSON(fiber.Map{"error": "party is already published"})
	}

	now := time.Now()
	party.Status = models.PartyStatusPublished
	party.PublishedAt = &now
	party.PublishSchedule = nil
	if err := s.DB.Save(party).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to publish party"})
	}
	return c.JSON(fiber.Map{"message": "party published", "published_at": now})
}

// SchedulePublish sets a future publish time; the scheduler flips it.
func (s *PartyService) SchedulePublish(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	partyID := c.Params("id")

	var req struct {
		PublishAt string `json:"publish_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	at, err := time.Parse(time.RFC3339, req.PublishAt)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid publish_at (use RFC3339)"})
	}
	if at.Before(time.Now()) {
		return c.Status(400).JSON(fiber.Map{"error": "publish_at must be in the future"})
	}

	party, errResp := s.loadOwnParty(c, partyID, userID)
	if party == nil {
		return errResp
	}
	if party.Status == models.PartyStatusPublished {
		return c.Status(400).JSON(fiber.Map{"error": "party is already published"})
	}

	party.Status = models.PartyStatusScheduled
	party.PublishSchedule = &at
	if err := s.DB.Save(party).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to schedule publish"})
	}
	return c.JSON(fiber.Map{"message": "publish scheduled", "publish_at": at})
}

// CancelScheduledPublish reverts a scheduled party to draft.
func (s *PartyService) CancelScheduledPublish(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	partyID := c.Params("id")

	party, errResp := s.loadOwnParty(c, partyID, userID)
	if party == nil {
		return errResp
	}
	if party.Status != models.PartyStatusScheduled {
		return c.Status(400).JSON(fiber.Map{"error": "party has no scheduled publish"})
	}

	party.Status = models.PartyStatusDraft
	party.PublishSchedule = nil
	if err := s.DB.Save(party).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to cancel scheduled publish"})
	}
	return c.JSON(fiber.Map{"message": "scheduled publish cancelled"})
}

// JoinParty puts the caller on the roster of a published party.
func (s *PartyService) JoinParty(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	partyID := c.Params("id")

	var party models.Party
	if err := s.DB.First(&party, "id = ?", partyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "party not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if party.Status != models.PartyStatusPublished {
		return c.Status(400).JSON(fiber.Map{"error": "party is not open for joining"})
	}

	var existing models.PartyMember
	err := s.DB.Where("party_id = ? AND external_user_id = ? AND status = ?",
		partyID, userID, models.MemberStatusActive).First(&existing).Error
	if err == nil {
		return c.Status(409).JSON(fiber.Map{"error": "already a member of this party"})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	if party.MaxMembers > 0 {
		var count int64
		s.DB.Model(&models.PartyMember{}).
			Where("party_id = ? AND status = ?", partyID, models.MemberStatusActive).
			Count(&count)
		if count >= int64(party.MaxMembers) {
			return c.Status(409).JSON(fiber.Map{"error": "party is full"})
		}
	}

	if err := s.addMember(&party, userID); err != nil {
		log.Printf("DB Error adding member to party %s: %v", partyID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to join party"})
	}

	if s.Points != nil {
		if err := s.Points.RecordPartyJoin(userID, partyID); err != nil {
			log.Printf("⚠️ Failed to record party join for %s: %v", userID, err)
		}
	}
	if s.Chat != nil {
		if _, err := s.Chat.EnsurePartyConversation(partyID, userID); err != nil {
			log.Printf("⚠️ Failed to join party conversation: %v", err)
		}
	}
	if s.Notify != nil && party.OrganizerID != userID {
		s.Notify.Push(party.OrganizerID, models.NotifKindSystem,
			"New member", "Someone joined "+party.Name+".", partyID)
	}

	return c.Status(201).JSON(fiber.Map{"message": "joined party", "party_id": partyID})
}

// addMember snapshots the player's profile onto the roster row.
func (s *PartyService) addMember(party *models.Party, userID string) error {
	member := models.PartyMember{
		ID:             uuid.NewString(),
		PartyID:        party.ID,
		ExternalUserID: userID,
		DisplayName:    userID,
		SkillTier:      models.TierBeginner,
		Status:         models.MemberStatusActive,
	}
	var profile models.PlayerProfile
	if err := s.DB.Where("external_user_id = ?", userID).First(&profile).Error; err == nil {
		member.DisplayName = profile.Username
		member.AvatarURL = profile.ProfilePictureURL
		member.SkillTier = profile.SkillTier
	}
	return s.DB.Create(&member).Error
}

// LeaveParty removes the caller from the roster. Existing pairings are
// untouched — rosters only matter at generation time.
func (s *PartyService) LeaveParty(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	partyID := c.Params("id")

	now := time.Now()
	res := s.DB.Model(&models.PartyMember{}).
		Where("party_id = ? AND external_user_id = ? AND status = ?",
			partyID, userID, models.MemberStatusActive).
		Updates(map[string]interface{}{"status": models.MemberStatusLeft, "left_at": &now})
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "not a member of this party"})
	}
	return c.JSON(fiber.Map{"message": "left party"})
}

// RemoveMember lets the organizer kick a member.
func (s *PartyService) RemoveMember(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	partyID := c.Params("id")
	memberUserID := c.Params("user_id")

	party, errResp := s.loadOwnParty(c, partyID, userID)
	if party == nil {
		return errResp
	}
	if memberUserID == party.OrganizerID {
		return c.Status(400).JSON(fiber.Map{"error": "organizer cannot be removed"})
	}

	now := time.Now()
	res := s.DB.Model(&models.PartyMember{}).
		Where("party_id = ? AND external_user_id = ? AND status = ?",
			partyID, memberUserID, models.MemberStatusActive).
		Updates(map[string]interface{}{"status": models.MemberStatusRemoved, "left_at": &now})
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "member not found"})
	}

	if s.Notify != nil {
		s.Notify.Push(memberUserID, models.NotifKindSystem,
			"Removed from party", "You were removed from "+party.Name+".", partyID)
	}
	return c.JSON(fiber.Map{"message": "member removed"})
}

// GetMembers lists a party's active roster.
func (s *PartyService) GetMembers(c *fiber.Ctx) error {
	partyID := c.Params("id")

	var members []models.PartyMember
	if err := s.DB.Where("party_id = ? AND status = ?", partyID, models.MemberStatusActive).
		Order("joined_at ASC").Find(&members).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"members": members, "count": len(members)})
}

// UploadPartyPhoto appends a gallery photo, stored on R2.
func (s *PartyService) UploadPartyPhoto(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	partyID := c.Params("id")

	party, errResp := s.loadOwnParty(c, partyID, userID)
	if party == nil {
		return errResp
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "photo file is required"})
	}

	photoID := uuid.NewString()
	key := fmt.Sprintf("parties/%s/photos/%s-%s", partyID, photoID[:8], file.Filename)
	url, err := utils.StoreUpload(file, key)
	if err != nil {
		log.Printf("❌ Photo upload failed for party %s: %v", partyID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to upload photo"})
	}

	var maxOrder int
	s.DB.Model(&models.PartyPhoto{}).Where("party_id = ?", partyID).
		Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder)

	photo := models.PartyPhoto{
		ID:        photoID,
		PartyID:   partyID,
		URL:       url,
		SortOrder: maxOrder + 1,
	}
	if err := s.DB.Create(&photo).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to save photo"})
	}
	return c.Status(201).JSON(photo)
}

func (s *PartyService) fillCounts(party *models.Party) {
	var count int64
	s.DB.Model(&models.PartyMember{}).
		Where("party_id = ? AND status = ?", party.ID, models.MemberStatusActive).
		Count(&count)
	party.MemberCount = count
	if party.MaxMembers > 0 {
		party.AvailableSlots = int64(party.MaxMembers) - count
		if party.AvailableSlots < 0 {
			party.AvailableSlots = 0
		}
	}
}

// loadOwnParty fetches a party and checks organizer ownership. On
// failure it returns (nil, responseError) with the response already
// written.
func (s *PartyService) loadOwnParty(c *fiber.Ctx, partyID, userID string) (*models.Party, error) {
	var party models.Party
	if err := s.DB.First(&party, "id = ?", partyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(404).JSON(fiber.Map{"error": "party not found"})
		}
		log.Printf("DB Error fetching party %s: %v", partyID, err)
		return nil, c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if party.OrganizerID != userID {
		return nil, c.Status(403).JSON(fiber.Map{"error": "only the organizer can do this"})
	}
	return &party, nil
}
