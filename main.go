package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"battle-arena-system/handlers"
	"battle-arena-system/middleware"
	"battle-arena-system/models"
	"battle-arena-system/services"
	"battle-arena-system/utils"
	"battle-arena-system/workers"

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

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Player{},
		&models.Battle{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := services.NewLiveHub()
	hub.StartConnectionSweeper(30 * time.Second)

	battleService := services.NewBattleService(db, nil)
	statsService := services.NewStatsService(db, hub)

	// The dispatcher resolves matches in-process unless a dedicated battle
	// service is configured.
	var runner services.MatchRunner
	if battleServiceURL := os.Getenv("BATTLE_SERVICE_URL"); battleServiceURL != "" {
		log.Printf("✅ Remote battle resolution via %s", battleServiceURL)
		runner = services.NewRemoteMatchRunner(battleServiceURL, os.Getenv("STATS_SERVICE_URL"))
	} else {
		runner = services.NewLocalMatchRunner(battleService, statsService)
	}

	// Durable admissions bridge — audit trail only, pairing never depends
	// on it.
	var bridge *workers.QueueBridge
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		bridge, err = workers.NewQueueBridge(natsURL)
		if err != nil {
			log.Printf("❌ Queue bridge unavailable, admissions will not be mirrored: %v", err)
			bridge = nil
		}
	} else {
		log.Println("⚠️  NATS_URL not set — admission audit trail disabled")
	}

	var matchmakingService *services.MatchmakingService
	if bridge != nil {
		matchmakingService = services.NewMatchmakingService(db, runner, bridge)

		handle := func(entry services.QueueEntry) {
			log.Printf("📨 [BRIDGE] Consumed admission: %s (ID: %s)", entry.Username, entry.PlayerID)
		}
		if utils.R2Configured() {
			if err := utils.InitR2(); err != nil {
				log.Fatal("failed to initialize R2 client:", err)
			}
			archiver := workers.NewAuditArchiver()
			go archiver.Start(ctx, 30*time.Second)
			handle = archiver.Record
		} else {
			log.Println("⚠️  R2 not configured — consumed admissions are logged, not archived")
		}
		if err := bridge.StartConsumer(ctx, handle); err != nil {
			log.Printf("❌ Failed to start bridge consumer: %v", err)
		}
		defer bridge.Close()
	} else {
		matchmakingService = services.NewMatchmakingService(db, runner, nil)
	}

	if userServiceURL := os.Getenv("USER_SERVICE_URL"); userServiceURL != "" {
		serviceToken := os.Getenv("ARENA_SERVICE_TOKEN")
		syncWorker := workers.NewPlayerSyncWorker(db, userServiceURL, "/api/v1/public/players", serviceToken)
		syncWorker.Start(ctx)
	} else {
		log.Println("⚠️  USER_SERVICE_URL not set — player sync worker disabled")
	}

	handlers.SetupMatchmakingRoutes(app, matchmakingService)
	handlers.SetupBattleRoutes(app, battleService)
	handlers.SetupStatsRoutes(app, statsService, hub)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":         "ok",
			"service":        "battle-arena-system",
			"playersInQueue": matchmakingService.PlayersInQueue(),
		})
	})

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Matchmaking queue and dispatcher ready")
	log.Println("✅ Live leaderboard updates on ws://localhost:5300/stats/live")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
