package services

import (
	"log"
	"time"

	"topminton/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// StartScheduler runs the recurring background jobs: publishing
// scheduled parties, expiring stale booking holds, and finishing
// parties past their end time.
func StartScheduler(db *gorm.DB, bookings *BookingService, notify *NotificationService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: publish scheduled parties whose time has come.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var parties []models.Party
			now := time.Now()
			err := db.Where("status = ? AND publish_schedule <= ?",
				models.PartyStatusScheduled, now).Find(&parties).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for _, p := range parties {
				published := now
				p.Status = models.PartyStatusPublished
				p.PublishedAt = &published
				p.PublishSchedule = nil
				if err := db.Save(&p).Error; err != nil {
					log.Printf("[Scheduler] Failed to publish party %s: %v", p.ID, err)
					continue
				}
				log.Printf("✅ Auto-published party: %s", p.Name)
				if notify != nil {
					notify.Push(p.OrganizerID, models.NotifKindSystem,
						"Party published", p.Name+" is now visible to players.", p.ID)
				}
			}
		}),
	)

	// Every minute: release courts held by unconfirmed bookings.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(bookings.ExpireStaleBookings),
	)

	// Every 10 minutes: reset quest progress from previous periods.
	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			var quests []models.Quest
			if err := db.Where("is_active = true").Find(&quests).Error; err != nil {
				log.Printf("[Scheduler] Failed to load quests: %v", err)
				return
			}
			now := time.Now()
			for _, q := range quests {
				start := periodStart(q.Period, now)
				res := db.Model(&models.QuestProgress{}).
					Where("quest_id = ? AND period_start < ?", q.ID, start).
					Updates(map[string]interface{}{
						"progress":     0,
						"claimed":      false,
						"claimed_at":   nil,
						"period_start": start,
					})
				if res.Error != nil {
					log.Printf("[Scheduler] Failed to reset quest %s: %v", q.Code, res.Error)
					continue
				}
				if res.RowsAffected > 0 {
					log.Printf("🔁 [Scheduler] Reset %d progress rows for quest %s", res.RowsAffected, q.Code)
				}
			}
		}),
	)

	// Every 10 minutes: close published parties past their end time.
	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			res := db.Model(&models.Party{}).
				Where("status = ? AND end_time > ? AND end_time < ?",
					models.PartyStatusPublished, time.Time{}, time.Now()).
				Update("status", models.PartyStatusFinished)
			if res.Error != nil {
				log.Printf("[Scheduler] Failed to finish parties: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("🔁 [Scheduler] Finished %d parties past their end time", res.RowsAffected)
			}
		}),
	)
}
