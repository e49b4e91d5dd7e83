package workers

import (
	"context"
	"log"
	"time"

	"topminton/models"
	"topminton/storage"

	"gorm.io/gorm"
)

// NotificationWorker pushes undelivered notification rows to each
// user's Redis channel. Delivery here is best-effort fan-out for
// connected clients; the rows stay readable via the list endpoint
// either way.
type NotificationWorker struct {
	db       *gorm.DB
	bus      *storage.RedisBus
	interval time.Duration
}

func NewNotificationWorker(db *gorm.DB, bus *storage.RedisBus) *NotificationWorker {
	return &NotificationWorker{
		db:       db,
		bus:      bus,
		interval: 5 * time.Second,
	}
}

func (w *NotificationWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Notification Worker (notifications → Redis)…")
	go w.run(ctx)
}

func (w *NotificationWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.deliverBatch(ctx)
		case <-ctx.Done():
			log.Println("⏹️ Notification Worker stopped")
			return
		}
	}
}

func (w *NotificationWorker) deliverBatch(ctx context.Context) {
	var pending []models.Notification
	err := w.db.Where("delivered = ?", false).
		Order("created_at ASC").Limit(200).Find(&pending).Error
	if err != nil {
		log.Printf("❌ Notification worker DB error: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	var delivered int
	now := time.Now()
	for _, n := range pending {
		if err := w.bus.Publish(ctx, storage.NotifyChannel(n.ExternalUserID), n); err != nil {
			// Leave the row undelivered; next tick retries.
			log.Printf("⚠️ Failed to publish notification %s: %v", n.ID, err)
			continue
		}
		err := w.db.Model(&models.Notification{}).Where("id = ?", n.ID).
			Updates(map[string]interface{}{"delivered": true, "delivered_at": &now}).Error
		if err != nil {
			log.Printf("⚠️ Failed to mark notification %s delivered: %v", n.ID, err)
			continue
		}
		delivered++
	}
	if delivered > 0 {
		log.Printf("✅ Delivered %d notification(s) via Redis", delivered)
	}
}
