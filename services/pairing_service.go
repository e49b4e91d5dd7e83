package services

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"topminton/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PairingService exposes the pairing engine over HTTP and implements
// its store against Postgres.
type PairingService struct {
	DB     *gorm.DB
	Engine *PairingEngine
	Points *PointsService
	Notify *NotificationService
}

func NewPairingService(db *gorm.DB, points *PointsService, notify *NotificationService) *PairingService {
	store := &gormPairingStore{db: db}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &PairingService{
		DB:     db,
		Engine: NewPairingEngine(store, rng),
		Points: points,
		Notify: notify,
	}
}

// pairingErrorResponse maps the engine's failure taxonomy onto HTTP.
func pairingErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInsufficientParticipants),
		errors.Is(err, ErrInvalidTeam),
		errors.Is(err, ErrInvalidDelta):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrPairingNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrPairingClosed):
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	}
	log.Printf("❌ Pairing operation failed: %v", err)
	return c.Status(500).JSON(fiber.Map{"error": "pairing operation failed"})
}

// GenerateRound creates a new room of randomized doubles pairings from
// the party's current roster. Organizer only.
func (s *PairingService) GenerateRound(c *fiber.Ctx) error {
	partyID := c.Params("id")
	userID := c.Locals("user_id").(string)

	var party models.Party
	if err := s.DB.First(&party, "id = ?", partyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "party not found"})
		}
		log.Printf("DB Error fetching party %s: %v", partyID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if party.OrganizerID != userID {
		return c.Status(403).JSON(fiber.Map{"error": "only the organizer can generate pairings"})
	}

	room, pairings, err := s.Engine.GenerateRound(c.Context(), partyID)
	if err != nil {
		return pairingErrorResponse(c, err)
	}

	if s.Notify != nil {
		for _, p := range pairings {
			for _, uid := range p.ParticipantIDs() {
				s.Notify.Push(uid, models.NotifKindPairingReady,
					"You're up!", room.Label+" pairings are out — find your court.", room.ID)
			}
		}
	}

	return c.Status(201).JSON(fiber.Map{
		"room":     room,
		"pairings": pairings,
		"count":    len(pairings),
	})
}

// ListRooms returns all rooms of a party with their pairings.
func (s *PairingService) ListRooms(c *fiber.Ctx) error {
	partyID := c.Params("id")

	var rooms []models.Room
	if err := s.DB.Preload("Pairings", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence_number ASC")
	}).Where("party_id = ?", partyID).Order("created_at ASC").Find(&rooms).Error; err != nil {
		log.Printf("DB Error listing rooms for party %s: %v", partyID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	return c.JSON(fiber.Map{"rooms": rooms, "count": len(rooms)})
}

// AdjustScore applies a +1/-1 to one team of a pending pairing.
func (s *PairingService) AdjustScore(c *fiber.Ctx) error {
	pairingID := c.Params("id")

	var req struct {
		Team  string `json:"team"`
		Delta int    `json:"delta"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	pairing, err := s.Engine.AdjustScore(c.Context(), pairingID, req.Team, req.Delta)
	if err != nil {
		return pairingErrorResponse(c, err)
	}
	return c.JSON(pairing)
}

// FinishMatch completes a pairing, freezes its scores, and hands the
// outcome to the points and notification pipelines.
func (s *PairingService) FinishMatch(c *fiber.Ctx) error {
	pairingID := c.Params("id")

	pairing, firstCompletion, err := s.Engine.FinishMatch(c.Context(), pairingID)
	if err != nil {
		return pairingErrorResponse(c, err)
	}

	// Award and notify only on the call that performed the transition,
	// not on idempotent repeats or lost races.
	if firstCompletion {
		if s.Points != nil {
			var winners []string
			if pairing.Winner != nil {
				winners = pairing.TeamIDs(*pairing.Winner)
			}
			if err := s.Points.RecordMatchOutcome(pairing.ParticipantIDs(), winners, pairing.ID); err != nil {
				log.Printf("⚠️ Failed to record match outcome for pairing %s: %v", pairing.ID, err)
			}
		}
		if s.Notify != nil {
			body := "Match finished in a tie."
			if pairing.Winner != nil {
				body = "Match finished — team " + *pairing.Winner + " takes it!"
			}
			for _, uid := range pairing.ParticipantIDs() {
				s.Notify.Push(uid, models.NotifKindMatchFinished, "Match finished", body, pairing.ID)
			}
		}
	}

	return c.JSON(pairing)
}

// Standings derives the party leaderboard from completed pairings.
func (s *PairingService) Standings(c *fiber.Ctx) error {
	partyID := c.Params("id")

	pairings, err := s.Engine.store.ListCompletedPairings(c.Context(), partyID)
	if err != nil {
		log.Printf("DB Error listing completed pairings for party %s: %v", partyID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	standings := ComputeStandings(pairings)
	return c.JSON(fiber.Map{"standings": standings, "count": len(standings)})
}

// gormPairingStore implements PairingStore against Postgres.
type gormPairingStore struct {
	db *gorm.DB
}

func (s *gormPairingStore) LoadRoster(ctx context.Context, partyID string) ([]models.PartyMember, error) {
	var members []models.PartyMember
	err := s.db.WithContext(ctx).
		Where("party_id = ? AND status = ?", partyID, models.MemberStatusActive).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *gormPairingStore) CountRooms(ctx context.Context, partyID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Room{}).
		Where("party_id = ?", partyID).Count(&count).Error
	return count, err
}

func (s *gormPairingStore) SaveRoom(ctx context.Context, room *models.Room, pairings []models.Pairing) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		if len(pairings) == 0 {
			return nil
		}
		return tx.Create(&pairings).Error
	})
}

func (s *gormPairingStore) GetPairing(ctx context.Context, pairingID string) (*models.Pairing, error) {
	var pairing models.Pairing
	if err := s.db.WithContext(ctx).First(&pairing, "id = ?", pairingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPairingNotFound
		}
		return nil, err
	}
	return &pairing, nil
}

func (s *gormPairingStore) ApplyScoreDelta(ctx context.Context, pairingID string, team string, delta int) (*models.Pairing, error) {
	column := "score_a"
	if team == models.TeamB {
		column = "score_b"
	}

	// Single atomic UPDATE with a floor at zero: concurrent deltas from
	// multiple scorekeepers add up instead of last-write-wins.
	res := s.db.WithContext(ctx).Model(&models.Pairing{}).
		Where("id = ? AND status = ?", pairingID, models.PairingStatusPending).
		Update(column, gorm.Expr("GREATEST(0, "+column+" + ?)", delta))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Either missing or completed between precondition check and
		// write; re-read to tell the two apart.
		pairing, err := s.GetPairing(ctx, pairingID)
		if err != nil {
			return nil, err
		}
		if pairing.Status == models.PairingStatusCompleted {
			return nil, ErrPairingClosed
		}
		return pairing, nil
	}
	return s.GetPairing(ctx, pairingID)
}

func (s *gormPairingStore) CompletePairing(ctx context.Context, pairing *models.Pairing) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Pairing{}).
		Where("id = ? AND status = ?", pairing.ID, models.PairingStatusPending).
		Updates(map[string]interface{}{
			"status":       models.PairingStatusCompleted,
			"winner":       pairing.Winner,
			"completed_at": pairing.CompletedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost a completion race: adopt whatever was committed first.
		stored, err := s.GetPairing(ctx, pairing.ID)
		if err != nil {
			return false, err
		}
		*pairing = *stored
		return false, nil
	}
	return true, nil
}

func (s *gormPairingStore) ListRoomPairings(ctx context.Context, roomID string) ([]models.Pairing, error) {
	var pairings []models.Pairing
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("sequence_number ASC").
		Find(&pairings).Error
	return pairings, err
}

func (s *gormPairingStore) ListCompletedPairings(ctx context.Context, partyID string) ([]models.Pairing, error) {
	var pairings []models.Pairing
	err := s.db.WithContext(ctx).
		Where("party_id = ? AND status = ?", partyID, models.PairingStatusCompleted).
		Order("completed_at ASC").
		Find(&pairings).Error
	return pairings, err
}

func (s *gormPairingStore) SetRoomStatus(ctx context.Context, roomID string, status string) error {
	return s.db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("status", status).Error
}
