package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"topminton/models"
	"topminton/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatService struct {
	DB  *gorm.DB
	Bus *storage.RedisBus
}

func NewChatService(db *gorm.DB, bus *storage.RedisBus) *ChatService {
	return &ChatService{DB: db, Bus: bus}
}

// EnsurePartyConversation returns the party's conversation, creating it
// on first use, and makes sure userID is a member.
func (s *ChatService) EnsurePartyConversation(partyID, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.Where("kind = ? AND party_id = ?", models.ConversationKindParty, partyID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		conv = models.Conversation{
			ID:      uuid.NewString(),
			Kind:    models.ConversationKindParty,
			PartyID: &partyID,
		}
		if err := s.DB.Create(&conv).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if err := s.ensureMember(conv.ID, userID); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ChatService) ensureMember(conversationID, userID string) error {
	var existing models.ConversationMember
	err := s.DB.Where("conversation_id = ? AND external_user_id = ?", conversationID, userID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.DB.Create(&models.ConversationMember{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		ExternalUserID: userID,
	}).Error
}

// StartDirectConversation opens (or returns) a 1:1 thread with another
// user.
func (s *ChatService) StartDirectConversation(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.UserID == "" || req.UserID == userID {
		return c.Status(400).JSON(fiber.Map{"error": "user_id must name another user"})
	}

	// Reuse an existing direct thread between these two users.
	var conv models.Conversation
	err := s.DB.Raw(`
		SELECT c.* FROM conversations c
		WHERE c.kind = ?
		  AND EXISTS (SELECT 1 FROM conversation_members m WHERE m.conversation_id = c.id AND m.external_user_id = ?)
		  AND EXISTS (SELECT 1 FROM conversation_members m WHERE m.conversation_id = c.id AND m.external_user_id = ?)
		LIMIT 1`,
		models.ConversationKindDirect, userID, req.UserID).Scan(&conv).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	if conv.ID == "" {
		conv = models.Conversation{
			ID:   uuid.NewString(),
			Kind: models.ConversationKindDirect,
		}
		if err := s.DB.Create(&conv).Error; err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to create conversation"})
		}
		for _, uid := range []string{userID, req.UserID} {
			if err := s.ensureMember(conv.ID, uid); err != nil {
				return c.Status(500).JSON(fiber.Map{"error": "failed to add member"})
			}
		}
	}
	return c.Status(201).JSON(conv)
}

// MyConversations lists the caller's conversations with unread counts.
func (s *ChatService) MyConversations(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var memberships []models.ConversationMember
	if err := s.DB.Where("external_user_id = ?", userID).Find(&memberships).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	out := make([]fiber.Map, 0, len(memberships))
	for _, m := range memberships {
		var conv models.Conversation
		if err := s.DB.First(&conv, "id = ?", m.ConversationID).Error; err != nil {
			continue
		}

		unreadQuery := s.DB.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ?", conv.ID, userID)
		if m.LastReadAt != nil {
			unreadQuery = unreadQuery.Where("created_at > ?", *m.LastReadAt)
		}
		var unread int64
		unreadQuery.Count(&unread)

		var last models.Message
		s.DB.Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").Limit(1).Find(&last)

		entry := fiber.Map{
			"conversation": conv,
			"unread_count": unread,
		}
		if last.ID != "" {
			entry["last_message"] = last
		}
		out = append(out, entry)
	}
	return c.JSON(fiber.Map{"conversations": out, "count": len(out)})
}

// SendMessage persists a message and publishes it on the conversation's
// Redis channel. Redis failure is logged, not surfaced — pollers still
// see the row.
func (s *ChatService) SendMessage(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	convID := c.Params("id")

	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Body == "" {
		return c.Status(400).JSON(fiber.Map{"error": "body is required"})
	}
	if len(req.Body) > 4000 {
		return c.Status(400).JSON(fiber.Map{"error": "message too long (max 4000 chars)"})
	}

	if errResp := s.requireMember(c, convID, userID); errResp != nil {
		return errResp
	}

	senderName := userID
	var profile models.PlayerProfile
	if err := s.DB.Where("external_user_id = ?", userID).First(&profile).Error; err == nil {
		senderName = profile.Username
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		SenderID:       userID,
		SenderName:     senderName,
		Body:           req.Body,
	}
	if err := s.DB.Create(&msg).Error; err != nil {
		log.Printf("DB Error saving message: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to send message"})
	}

	if s.Bus != nil {
		if err := s.Bus.Publish(c.Context(), storage.ChatChannel(convID), msg); err != nil {
			log.Printf("⚠️ Redis publish failed for conversation %s: %v", convID, err)
		}
	}
	return c.Status(201).JSON(msg)
}

// GetMessages returns conversation history. `?after=<RFC3339>` is the
// poll fallback for clients without a live subscription; without it the
// latest page is returned.
func (s *ChatService) GetMessages(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	convID := c.Params("id")

	if errResp := s.requireMember(c, convID, userID); errResp != nil {
		return errResp
	}

	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	db := s.DB.Where("conversation_id = ?", convID)
	if after := c.Query("after", ""); after != "" {
		cursor, err := time.Parse(time.RFC3339Nano, after)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid after cursor (use RFC3339)"})
		}
		db = db.Where("created_at > ?", cursor).Order("created_at ASC")
	} else {
		db = db.Order("created_at DESC")
	}

	var messages []models.Message
	if err := db.Limit(limit).Find(&messages).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"messages": messages, "count": len(messages)})
}

// MarkRead advances the caller's read cursor.
func (s *ChatService) MarkRead(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	convID := c.Params("id")

	now := time.Now()
	res := s.DB.Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND external_user_id = ?", convID, userID).
		Update("last_read_at", &now)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(403).JSON(fiber.Map{"error": "not a member of this conversation"})
	}
	return c.JSON(fiber.Map{"message": "read cursor updated"})
}

// StreamMessagesSSE streams new messages over SSE, fed by the Redis
// subscription for the conversation.
func (s *ChatService) StreamMessagesSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	convID := c.Params("id")

	if errResp := s.requireMember(c, convID, userID); errResp != nil {
		return errResp
	}
	if s.Bus == nil {
		return c.Status(503).JSON(fiber.Map{"error": "realtime stream unavailable, use polling"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(context.Background())
	sub := s.Bus.Subscribe(ctx, storage.ChatChannel(convID))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer sub.Close()

		ch := sub.Channel()
		heartbeat := time.NewTicker(25 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg.Payload)
				if err := w.Flush(); err != nil {
					return
				}
			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

func (s *ChatService) requireMember(c *fiber.Ctx, convID, userID string) error {
	var member models.ConversationMember
	err := s.DB.Where("conversation_id = ? AND external_user_id = ?", convID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(403).JSON(fiber.Map{"error": "not a member of this conversation"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return nil
}
