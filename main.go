package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"topminton/handlers"
	"topminton/middleware"
	"topminton/models"
	"topminton/services"
	"topminton/storage"
	"topminton/utils"
	"topminton/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // 50MB — covers photo uploads
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.PlayerProfile{},
		&models.Party{},
		&models.PartyPhoto{},
		&models.PartyMember{},
		&models.Room{},
		&models.Pairing{},
		&models.Court{},
		&models.CourtBooking{},
		&models.AssessmentQuestion{},
		&models.AssessmentAttempt{},
		&models.AssessmentAnswer{},
		&models.PointsEntry{},
		&models.Quest{},
		&models.QuestProgress{},
		&models.PlayerProgress{},
		&models.AchievementType{},
		&models.PlayerAchievement{},
		&models.Listing{},
		&models.ListingPhoto{},
		&models.Conversation{},
		&models.ConversationMember{},
		&models.Message{},
		&models.Notification{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	// Redis fan-out for chat and notifications.
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			redisDB = n
		}
	}
	bus, err := storage.NewRedisBus(redisAddr, os.Getenv("REDIS_PASSWORD"), redisDB)
	if err != nil {
		log.Fatal("failed to connect to Redis:", err)
	}
	defer bus.Close()

	notifService := services.NewNotificationService(db, bus)
	pointsService := services.NewPointsService(db, notifService)
	chatService := services.NewChatService(db, bus)
	partyService := services.NewPartyService(db, pointsService, notifService, chatService)
	pairingService := services.NewPairingService(db, pointsService, notifService)
	bookingService := services.NewBookingService(db, notifService)
	assessmentService := services.NewAssessmentService(db, pointsService)
	marketplaceService := services.NewMarketplaceService(db, notifService)
	playerService := services.NewPlayerService(db)

	if err := pointsService.SeedDefaults(); err != nil {
		log.Fatal("failed to seed quests and achievements:", err)
	}

	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("TOPMINTON_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("TOPMINTON_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profileSync := workers.NewProfileSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)
	profileSync.Start(ctx)

	notifWorker := workers.NewNotificationWorker(db, bus)
	notifWorker.Start(ctx)

	services.StartScheduler(db, bookingService, notifService)

	handlers.SetupPartyRoutes(app, partyService, pairingService)
	handlers.SetupBookingRoutes(app, bookingService)
	handlers.SetupAssessmentRoutes(app, assessmentService)
	handlers.SetupProgressionRoutes(app, pointsService)
	handlers.SetupMarketplaceRoutes(app, marketplaceService)
	handlers.SetupChatRoutes(app, chatService, notifService)
	handlers.SetupPlayerRoutes(app, playerService)

	app.Static("/uploads", "./uploads")

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Profile Sync Worker running")
	log.Println("✅ Notification Worker running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
