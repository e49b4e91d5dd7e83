package services

import (
	"encoding/json"
	"log"
	"time"

	"topminton/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// trickPenalty is deducted from the 0–100 score per wrongly answered
// trick question.
const trickPenalty = 10

type AssessmentService struct {
	DB     *gorm.DB
	Points *PointsService
}

func NewAssessmentService(db *gorm.DB, points *PointsService) *AssessmentService {
	return &AssessmentService{DB: db, Points: points}
}

// GetQuestions returns the active question set. CorrectIndex is
// excluded via its json tag.
func (s *AssessmentService) GetQuestions(c *fiber.Ctx) error {
	var questions []models.AssessmentQuestion
	err := s.DB.Where("is_active = ?", true).
		Order("sort_order ASC, created_at ASC").Find(&questions).Error
	if err != nil {
		log.Printf("DB Error listing assessment questions: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"questions": questions, "count": len(questions)})
}

// SubmitAttempt grades a full set of answers, stores the attempt, and
// updates the player's skill tier.
func (s *AssessmentService) SubmitAttempt(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Answers []struct {
			QuestionID    string `json:"question_id"`
			SelectedIndex int    `json:"selected_index"`
		} `json:"answers"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if len(req.Answers) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "answers are required"})
	}

	var questions []models.AssessmentQuestion
	if err := s.DB.Where("is_active = ?", true).Find(&questions).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if len(questions) == 0 {
		return c.Status(409).JSON(fiber.Map{"error": "no active assessment available"})
	}

	byID := make(map[string]models.AssessmentQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	attempt := models.AssessmentAttempt{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Status:         models.AttemptStatusInProgress,
	}

	totalWeight := 0
	for _, q := range questions {
		totalWeight += q.Weight
	}

	earnedWeight := 0
	trickMisses := 0
	answered := make(map[string]bool, len(req.Answers))
	answers := make([]models.AssessmentAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return c.Status(400).JSON(fiber.Map{"error": "unknown question: " + a.QuestionID})
		}
		if answered[a.QuestionID] {
			return c.Status(400).JSON(fiber.Map{"error": "duplicate answer for question: " + a.QuestionID})
		}
		answered[a.QuestionID] = true

		correct := a.SelectedIndex == q.CorrectIndex
		if correct {
			earnedWeight += q.Weight
		} else if q.IsTrick {
			trickMisses++
		}
		answers = append(answers, models.AssessmentAnswer{
			ID:            uuid.NewString(),
			AttemptID:     attempt.ID,
			QuestionID:    a.QuestionID,
			SelectedIndex: a.SelectedIndex,
			Correct:       correct,
		})
	}

	score := GradeAssessment(earnedWeight, totalWeight, trickMisses)
	tier := TierForScore(score)

	now := time.Now()
	attempt.Status = models.AttemptStatusCompleted
	attempt.Score = score
	attempt.ResultTier = tier
	attempt.CompletedAt = &now

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&attempt).Error; err != nil {
			return err
		}
		if err := tx.Create(&answers).Error; err != nil {
			return err
		}
		// Tier follows the latest completed attempt.
		return tx.Model(&models.PlayerProfile{}).
			Where("external_user_id = ?", userID).
			Update("skill_tier", tier).Error
	})
	if err != nil {
		log.Printf("DB Error saving assessment attempt: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to save attempt"})
	}

	if s.Points != nil {
		if err := s.Points.RecordAssessment(userID, attempt.ID); err != nil {
			log.Printf("⚠️ Failed to record assessment points for %s: %v", userID, err)
		}
	}

	log.Printf("✅ Assessment completed: user=%s score=%d tier=%s", userID, score, tier)
	return c.Status(201).JSON(attempt)
}

// MyAttempts lists the caller's attempt history, newest first.
func (s *AssessmentService) MyAttempts(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var attempts []models.AssessmentAttempt
	err := s.DB.Where("external_user_id = ?", userID).
		Order("created_at DESC").Limit(20).Find(&attempts).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"attempts": attempts, "count": len(attempts)})
}

// CreateQuestion adds a question to the active set. Admin-facing.
func (s *AssessmentService) CreateQuestion(c *fiber.Ctx) error {
	var req struct {
		Prompt       string   `json:"prompt"`
		Options      []string `json:"options"`
		CorrectIndex int      `json:"correct_index"`
		Weight       int      `json:"weight"`
		IsTrick      bool     `json:"is_trick"`
		SortOrder    int      `json:"sort_order"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Prompt == "" || len(req.Options) < 2 {
		return c.Status(400).JSON(fiber.Map{"error": "prompt and at least two options are required"})
	}
	if req.CorrectIndex < 0 || req.CorrectIndex >= len(req.Options) {
		return c.Status(400).JSON(fiber.Map{"error": "correct_index out of range"})
	}
	if req.Weight <= 0 {
		req.Weight = 1
	}

	optionsJSON, _ := json.Marshal(req.Options)
	question := models.AssessmentQuestion{
		ID:           uuid.NewString(),
		Prompt:       req.Prompt,
		OptionsJSON:  string(optionsJSON),
		CorrectIndex: req.CorrectIndex,
		Weight:       req.Weight,
		IsTrick:      req.IsTrick,
		SortOrder:    req.SortOrder,
		IsActive:     true,
	}
	if err := s.DB.Create(&question).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to create question"})
	}
	return c.Status(201).JSON(question)
}

// DeactivateQuestion removes a question from the active set without
// deleting its history.
func (s *AssessmentService) DeactivateQuestion(c *fiber.Ctx) error {
	questionID := c.Params("id")

	res := s.DB.Model(&models.AssessmentQuestion{}).
		Where("id = ?", questionID).Update("is_active", false)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "question not found"})
	}
	return c.JSON(fiber.Map{"message": "question deactivated"})
}

// GradeAssessment converts earned/total weights and trick misses into a
// 0–100 score. Each trick miss costs a flat penalty; the result never
// goes below zero.
func GradeAssessment(earnedWeight, totalWeight, trickMisses int) int {
	if totalWeight <= 0 {
		return 0
	}
	score := earnedWeight * 100 / totalWeight
	score -= trickMisses * trickPenalty
	if score < 0 {
		score = 0
	}
	return score
}

// TierForScore maps a 0–100 score onto a skill tier.
func TierForScore(score int) string {
	switch {
	case score < 30:
		return models.TierBeginner
	case score < 50:
		return models.TierNovice
	case score < 70:
		return models.TierIntermediate
	case score < 85:
		return models.TierAdvanced
	default:
		return models.TierElite
	}
}
