package services

import (
	"errors"
	"log"
	"time"

	"topminton/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingHoldDuration is how long a pending booking reserves the slot
// before the scheduler expires it.
const BookingHoldDuration = 15 * time.Minute

type BookingService struct {
	DB     *gorm.DB
	Notify *NotificationService
}

func NewBookingService(db *gorm.DB, notify *NotificationService) *BookingService {
	return &BookingService{DB: db, Notify: notify}
}

// ListCourts returns courts, optionally filtered by venue.
func (s *BookingService) ListCourts(c *fiber.Ctx) error {
	venue := c.Query("venue", "")

	db := s.DB.Where("is_active = ?", true).Order("venue ASC, court_number ASC")
	if venue != "" {
		db = db.Where("venue = ?", venue)
	}

	var courts []models.Court
	if err := db.Find(&courts).Error; err != nil {
		log.Printf("DB Error listing courts: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"courts": courts, "count": len(courts)})
}

// CreateCourt registers a court. Intended for venue admins.
func (s *BookingService) CreateCourt(c *fiber.Ctx) error {
	var req struct {
		Venue       string  `json:"venue"`
		CourtNumber int     `json:"court_number"`
		Surface     string  `json:"surface"`
		HourlyRate  float64 `json:"hourly_rate"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Venue == "" || req.CourtNumber <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "venue and court_number are required"})
	}

	court := models.Court{
		ID:          uuid.NewString(),
		Venue:       req.Venue,
		CourtNumber: req.CourtNumber,
		Surface:     req.Surface,
		HourlyRate:  req.HourlyRate,
		IsActive:    true,
	}
	if err := s.DB.Create(&court).Error; err != nil {
		log.Printf("DB Error creating court: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create court"})
	}
	return c.Status(201).JSON(court)
}

// CourtAvailability lists bookings holding a court on a given day.
func (s *BookingService) CourtAvailability(c *fiber.Ctx) error {
	courtID := c.Params("id")
	dayStr := c.Query("date", time.Now().Format("2006-01-02"))

	day, err := time.Parse("2006-01-02", dayStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid date (use YYYY-MM-DD)"})
	}
	dayEnd := day.Add(24 * time.Hour)

	var bookings []models.CourtBooking
	err = s.DB.Where("court_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
		courtID,
		[]string{models.BookingStatusPending, models.BookingStatusConfirmed},
		dayEnd, day).
		Order("start_time ASC").Find(&bookings).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"court_id": courtID, "date": dayStr, "bookings": bookings})
}

// CreateBooking places a pending hold on a court. Overlapping holds are
// rejected; the hold expires if not confirmed within BookingHoldDuration.
func (s *BookingService) CreateBooking(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		CourtID   string `json:"court_id"`
		PartyID   string `json:"party_id"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.CourtID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "court_id is required"})
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid start_time (use RFC3339)"})
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid end_time (use RFC3339)"})
	}
	if !end.After(start) {
		return c.Status(400).JSON(fiber.Map{"error": "end_time must be after start_time"})
	}
	if start.Before(time.Now()) {
		return c.Status(400).JSON(fiber.Map{"error": "start_time must be in the future"})
	}

	var court models.Court
	if err := s.DB.First(&court, "id = ? AND is_active = ?", req.CourtID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "court not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	var partyID *string
	if req.PartyID != "" {
		var party models.Party
		if err := s.DB.First(&party, "id = ?", req.PartyID).Error; err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "party not found"})
		}
		if party.OrganizerID != userID {
			return c.Status(403).JSON(fiber.Map{"error": "only the organizer can book for a party"})
		}
		partyID = &req.PartyID
	}

	booking := models.CourtBooking{
		ID:             uuid.NewString(),
		CourtID:        req.CourtID,
		PartyID:        partyID,
		ExternalUserID: userID,
		StartTime:      start,
		EndTime:        end,
		Status:         models.BookingStatusPending,
		ExpiresAt:      time.Now().Add(BookingHoldDuration),
		TotalPrice:     court.HourlyRate * end.Sub(start).Hours(),
	}

	// Overlap check and insert in one transaction so two concurrent
	// requests can't both grab the slot.
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", req.CourtID)

		var overlapping int64
		tx.Model(&models.CourtBooking{}).
			Where("court_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
				req.CourtID,
				[]string{models.BookingStatusPending, models.BookingStatusConfirmed},
				end, start).
			Count(&overlapping)
		if overlapping > 0 {
			return errSlotTaken
		}
		return tx.Create(&booking).Error
	})
	if errors.Is(err, errSlotTaken) {
		return c.Status(409).JSON(fiber.Map{"error": "court is already booked for that time"})
	}
	if err != nil {
		log.Printf("DB Error creating booking: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create booking"})
	}

	return c.Status(201).JSON(booking)
}

var errSlotTaken = errors.New("slot taken")

// ConfirmBooking confirms a pending hold before it expires.
func (s *BookingService) ConfirmBooking(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	bookingID := c.Params("id")

	var booking models.CourtBooking
	if err := s.DB.First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "booking not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if booking.ExternalUserID != userID {
		return c.Status(403).JSON(fiber.Map{"error": "not your booking"})
	}
	if booking.Status != models.BookingStatusPending {
		return c.Status(409).JSON(fiber.Map{"error": "booking is not pending"})
	}
	if time.Now().After(booking.ExpiresAt) {
		s.DB.Model(&booking).Update("status", models.BookingStatusExpired)
		return c.Status(409).JSON(fiber.Map{"error": "booking hold has expired"})
	}

	booking.Status = models.BookingStatusConfirmed
	if err := s.DB.Save(&booking).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to confirm booking"})
	}
	return c.JSON(booking)
}

// CancelBooking cancels a pending or confirmed booking.
func (s *BookingService) CancelBooking(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	bookingID := c.Params("id")

	res := s.DB.Model(&models.CourtBooking{}).
		Where("id = ? AND external_user_id = ? AND status IN ?",
			bookingID, userID,
			[]string{models.BookingStatusPending, models.BookingStatusConfirmed}).
		Update("status", models.BookingStatusCancelled)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "booking not found or not cancellable"})
	}
	return c.JSON(fiber.Map{"message": "booking cancelled", "id": bookingID})
}

// MyBookings lists the caller's bookings, newest first.
func (s *BookingService) MyBookings(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var bookings []models.CourtBooking
	if err := s.DB.Where("external_user_id = ?", userID).
		Order("start_time DESC").Limit(100).Find(&bookings).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"bookings": bookings, "count": len(bookings)})
}

// ExpireStaleBookings flips pending holds past their expiry. Called by
// the scheduler.
func (s *BookingService) ExpireStaleBookings() {
	res := s.DB.Model(&models.CourtBooking{}).
		Where("status = ? AND expires_at < ?", models.BookingStatusPending, time.Now()).
		Update("status", models.BookingStatusExpired)
	if res.Error != nil {
		log.Printf("❌ [SCHEDULER] Failed to expire bookings: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("🔁 [SCHEDULER] Expired %d stale booking holds", res.RowsAffected)
	}
}
