package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"topminton/models"
	"topminton/storage"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// NotificationService persists in-app notifications and streams them to
// connected clients. Redis fan-out is best effort; the DB poll in the
// SSE loop catches anything the push path missed.
type NotificationService struct {
	DB  *gorm.DB
	Bus *storage.RedisBus
}

func NewNotificationService(db *gorm.DB, bus *storage.RedisBus) *NotificationService {
	return &NotificationService{DB: db, Bus: bus}
}

// Push creates a notification row. Delivery happens asynchronously via
// the notification worker and the SSE stream; Push never blocks a
// caller on Redis.
func (s *NotificationService) Push(externalUserID, kind, title, body, referenceID string) {
	n := models.Notification{
		ExternalUserID: externalUserID,
		Kind:           kind,
		Title:          title,
		Body:           body,
		ReferenceID:    referenceID,
	}
	if err := s.DB.Create(&n).Error; err != nil {
		log.Printf("⚠️ Failed to create notification for %s: %v", externalUserID, err)
	}
}

// ListNotifications returns the user's notifications, newest first.
func (s *NotificationService) ListNotifications(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var notifications []models.Notification
	if err := s.DB.Where("external_user_id = ?", userID).
		Order("created_at DESC").Limit(limit).
		Find(&notifications).Error; err != nil {
		log.Printf("DB Error listing notifications for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	var unread int64
	s.DB.Model(&models.Notification{}).
		Where("external_user_id = ? AND read = false", userID).Count(&unread)

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	id := c.Params("id")

	res := s.DB.Model(&models.Notification{}).
		Where("id = ? AND external_user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "notification not found"})
	}
	return c.JSON(fiber.Map{"message": "marked as read", "id": id})
}

// MarkAllRead marks everything unread as read.
func (s *NotificationService) MarkAllRead(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := s.DB.Model(&models.Notification{}).
		Where("external_user_id = ? AND read = false", userID).
		Update("read", true).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"message": "all notifications marked as read"})
}

// StreamNotificationsSSE streams new notifications for the
// authenticated user. It polls the DB on a short ticker — the same
// cursor pattern whether or not Redis delivered a push first, so a
// Redis outage degrades latency, not correctness.
func (s *NotificationService) StreamNotificationsSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastMaxCreatedAt time.Time

		var latest models.Notification
		if err := s.DB.
			Where("external_user_id = ?", userID).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			lastMaxCreatedAt = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for user %s: %v", userID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var fresh []models.Notification
				err := s.DB.
					Where("external_user_id = ? AND created_at > ?", userID, lastMaxCreatedAt).
					Order("created_at ASC").
					Find(&fresh).Error
				if err != nil {
					log.Printf("SSE query error for user %s: %v", userID, err)
					continue
				}
				if len(fresh) == 0 {
					continue
				}

				lastMaxCreatedAt = fresh[len(fresh)-1].CreatedAt

				for _, n := range fresh {
					payload, _ := json.Marshal(n)
					fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
				}
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
