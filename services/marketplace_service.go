package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"topminton/models"
	"topminton/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

var listingConditions = []string{"new", "like_new", "used", "worn"}

var categoryTitler = cases.Title(language.English)

type MarketplaceService struct {
	DB     *gorm.DB
	Notify *NotificationService
}

func NewMarketplaceService(db *gorm.DB, notify *NotificationService) *MarketplaceService {
	return &MarketplaceService{DB: db, Notify: notify}
}

// ListCategories returns the accepted categories with display labels.
func (s *MarketplaceService) ListCategories(c *fiber.Ctx) error {
	out := make([]fiber.Map, 0, len(models.ListingCategories))
	for _, cat := range models.ListingCategories {
		out = append(out, fiber.Map{"value": cat, "label": categoryLabel(cat)})
	}
	return c.JSON(fiber.Map{"categories": out})
}

// CreateListing creates a draft listing from a multipart form, with up
// to five photos uploaded to R2.
func (s *MarketplaceService) CreateListing(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	title := c.FormValue("title")
	description := c.FormValue("description")
	category := strings.ToLower(c.FormValue("category"))
	condition := c.FormValue("condition")
	priceStr := c.FormValue("price")

	if title == "" || category == "" {
		return c.Status(400).JSON(fiber.Map{"error": "title and category are required"})
	}
	if !contains(models.ListingCategories, category) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid category", "accepted": models.ListingCategories})
	}
	if condition != "" && !contains(listingConditions, condition) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid condition", "accepted": listingConditions})
	}

	price := 0.0
	if priceStr != "" {
		if _, err := fmt.Sscanf(priceStr, "%f", &price); err != nil || price < 0 {
			return c.Status(400).JSON(fiber.Map{"error": "price must be a non-negative number"})
		}
	}

	listingID := uuid.NewString()
	listing := models.Listing{
		ID:          listingID,
		SellerID:    userID,
		Title:       title,
		Slug:        slug.Make(title) + "-" + listingID[:8],
		Description: description,
		Category:    category,
		Price:       price,
		Condition:   condition,
		Status:      models.ListingStatusDraft,
	}

	if err := s.DB.Create(&listing).Error; err != nil {
		log.Printf("DB Error creating listing: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create listing"})
	}

	if form, err := c.MultipartForm(); err == nil {
		files := form.File["photos"]
		if len(files) > 5 {
			files = files[:5]
		}
		for i, file := range files {
			key := fmt.Sprintf("listings/%s/%d-%s", listingID, i, file.Filename)
			url, upErr := utils.StoreUpload(file, key)
			if upErr != nil {
				log.Printf("⚠️ Listing photo upload failed: %v", upErr)
				continue
			}
			photo := models.ListingPhoto{
				ID:        uuid.NewString(),
				ListingID: listingID,
				URL:       url,
				SortOrder: i,
			}
			if err := s.DB.Create(&photo).Error; err != nil {
				log.Printf("⚠️ Failed to save listing photo: %v", err)
			}
		}
	}

	listing.CategoryLabel = categoryLabel(listing.Category)
	return c.Status(201).JSON(listing)
}

// BrowseListings lists published listings with optional filters.
func (s *MarketplaceService) BrowseListings(c *fiber.Ctx) error {
	category := strings.ToLower(c.Query("category", ""))
	search := c.Query("q", "")
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	db := s.DB.Preload("Photos").
		Where("status = ?", models.ListingStatusPublished).
		Order("created_at DESC").Limit(limit).Offset(offset)
	if category != "" {
		db = db.Where("category = ?", category)
	}
	if search != "" {
		db = db.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var listings []models.Listing
	if err := db.Find(&listings).Error; err != nil {
		log.Printf("DB Error browsing listings: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	for i := range listings {
		listings[i].CategoryLabel = categoryLabel(listings[i].Category)
	}
	return c.JSON(fiber.Map{"listings": listings, "count": len(listings)})
}

// GetListing returns one listing by id or slug.
func (s *MarketplaceService) GetListing(c *fiber.Ctx) error {
	key := c.Params("id")

	var listing models.Listing
	err := s.DB.Preload("Photos").
		Where("id = ? OR slug = ?", key, key).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "listing not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	listing.CategoryLabel = categoryLabel(listing.Category)
	return c.JSON(listing)
}

// MyListings lists the caller's own listings in any status.
func (s *MarketplaceService) MyListings(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var listings []models.Listing
	err := s.DB.Preload("Photos").Where("seller_id = ?", userID).
		Order("created_at DESC").Find(&listings).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	for i := range listings {
		listings[i].CategoryLabel = categoryLabel(listings[i].Category)
	}
	return c.JSON(fiber.Map{"listings": listings, "count": len(listings)})
}

// UpdateListing edits a listing that isn't sold.
func (s *MarketplaceService) UpdateListing(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	listingID := c.Params("id")

	listing, errResp := s.loadOwnListing(c, listingID, userID)
	if listing == nil {
		return errResp
	}
	if listing.Status == models.ListingStatusSold {
		return c.Status(409).JSON(fiber.Map{"error": "sold listings cannot be edited"})
	}

	var req struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Category    *string  `json:"category"`
		Condition   *string  `json:"condition"`
		Price       *float64 `json:"price"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	if req.Title != nil && *req.Title != "" {
		listing.Title = *req.Title
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.Category != nil {
		cat := strings.ToLower(*req.Category)
		if !contains(models.ListingCategories, cat) {
			return c.Status(400).JSON(fiber.Map{"error": "invalid category", "accepted": models.ListingCategories})
		}
		listing.Category = cat
	}
	if req.Condition != nil {
		if !contains(listingConditions, *req.Condition) {
			return c.Status(400).JSON(fiber.Map{"error": "invalid condition", "accepted": listingConditions})
		}
		listing.Condition = *req.Condition
	}
	if req.Price != nil && *req.Price >= 0 {
		listing.Price = *req.Price
	}

	if err := s.DB.Save(listing).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to update listing"})
	}
	listing.CategoryLabel = categoryLabel(listing.Category)
	return c.JSON(listing)
}

// PublishListing makes a draft listing visible.
func (s *MarketplaceService) PublishListing(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	listingID := c.Params("id")

	listing, errResp := s.loadOwnListing(c, listingID, userID)
	if listing == nil {
		return errResp
	}
	if listing.Status != models.ListingStatusDraft {
		return c.Status(409).JSON(fiber.Map{"error": "only draft listings can be published"})
	}

	listing.Status = models.ListingStatusPublished
	if err := s.DB.Save(listing).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to publish listing"})
	}
	return c.JSON(fiber.Map{"message": "listing published", "id": listingID})
}

// MarkSold records the off-platform sale and closes the listing.
func (s *MarketplaceService) MarkSold(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	listingID := c.Params("id")

	var req struct {
		BuyerUserID string `json:"buyer_user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	listing, errResp := s.loadOwnListing(c, listingID, userID)
	if listing == nil {
		return errResp
	}
	if listing.Status == models.ListingStatusSold {
		return c.Status(409).JSON(fiber.Map{"error": "listing is already sold"})
	}

	now := time.Now()
	listing.Status = models.ListingStatusSold
	listing.SoldAt = &now
	if req.BuyerUserID != "" {
		listing.SoldToUserID = &req.BuyerUserID
	}
	if err := s.DB.Save(listing).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to mark listing sold"})
	}

	if s.Notify != nil && req.BuyerUserID != "" {
		s.Notify.Push(req.BuyerUserID, models.NotifKindSystem,
			"Purchase confirmed", "The seller marked "+listing.Title+" as sold to you.", listingID)
	}
	return c.JSON(listing)
}

// ArchiveListing soft-deletes a listing from public view.
func (s *MarketplaceService) ArchiveListing(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	listingID := c.Params("id")

	listing, errResp := s.loadOwnListing(c, listingID, userID)
	if listing == nil {
		return errResp
	}

	listing.Status = models.ListingStatusArchived
	if err := s.DB.Save(listing).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to archive listing"})
	}
	return c.JSON(fiber.Map{"message": "listing archived", "id": listingID})
}

func (s *MarketplaceService) loadOwnListing(c *fiber.Ctx, listingID, userID string) (*models.Listing, error) {
	var listing models.Listing
	if err := s.DB.First(&listing, "id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(404).JSON(fiber.Map{"error": "listing not found"})
		}
		return nil, c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if listing.SellerID != userID {
		return nil, c.Status(403).JSON(fiber.Map{"error": "not your listing"})
	}
	return &listing, nil
}

// categoryLabel turns a stored category slug into its display form,
// e.g. "like_new" → "Like New".
func categoryLabel(category string) string {
	return categoryTitler.String(strings.ReplaceAll(category, "_", " "))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
