package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alumninexus/server/internal/ai"
	"alumninexus/server/internal/changefeed"
	"alumninexus/server/internal/config"
	"alumninexus/server/internal/connections"
	"alumninexus/server/internal/conversations"
	"alumninexus/server/internal/database"
	"alumninexus/server/internal/directory"
	"alumninexus/server/internal/handlers"
	"alumninexus/server/internal/logger"
	"alumninexus/server/internal/messaging"
	"alumninexus/server/internal/presence"
	"alumninexus/server/internal/repository"
	"alumninexus/server/internal/routes"
	"alumninexus/server/internal/session"
	"alumninexus/server/internal/transcripts"
	ws "alumninexus/server/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/jessevdk/go-flags"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("main")

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Stdout.WriteString(ferr.Message + "\n")
			return
		}
		log.Fatalf("Failed to load configuration: %v", err)
	}

	closer := logger.Setup(cfg.Log.Level, cfg.Log.File)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if !cfg.SkipMigrate {
		if err := database.Migrate(ctx, db.Pool); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	profiles := repository.NewProfileRepository(db.Gorm)
	connectionRepo := repository.NewConnectionRepository(db.Gorm)
	conversationRepo := repository.NewConversationRepository(db.Gorm)
	messageRepo := repository.NewMessageRepository(db.Gorm)

	broker := changefeed.NewBroker()
	go func() {
		if err := changefeed.NewListener(db.Pool, broker).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("Change feed stopped: %v", err)
		}
	}()

	heartbeat := presence.NewHeartbeat(profiles, cfg.Presence.TTL, cfg.Presence.SweepInterval)
	go heartbeat.Run(ctx)

	hub := ws.NewHub(heartbeat, conversationRepo)
	go hub.Run(ctx)
	log.Info("WebSocket Hub initialized")

	var recorder transcripts.Recorder = transcripts.Nop{}
	if cfg.Mongo.URI != "" {
		mongoRecorder, err := transcripts.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoRecorder.Close(closeCtx)
		}()
		recorder = mongoRecorder
	}
	if cfg.AI.APIKey == "" {
		log.Warning("OPENROUTER_API_KEY is not set, assistant replies will use fallbacks")
	}

	h := &handlers.Handler{
		Deps: session.Deps{
			Broker:        broker,
			Connections:   connections.NewService(connectionRepo, profiles),
			Conversations: conversations.NewService(conversationRepo, profiles, messageRepo),
			Messages:      messaging.NewService(messageRepo, conversationRepo),
			Directory:     directory.NewService(profiles, connectionRepo),
		},
		AI: ai.NewService(ai.NewClient(ai.ClientConfig{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Referer: cfg.AppURL,
			Timeout: cfg.AI.Timeout,
		}), recorder),
		Hub: hub,
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "Alumni Nexus API v1.0",
	})

	// Middleware
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowCredentials: true,
	}))

	// Setup routes
	routes.SetupRoutes(app, h, []byte(cfg.JWTSecret))

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("Shutdown: %v", err)
		}
	}()

	log.Infof("Server starting on %s", cfg.Addr())
	if err := app.Listen(cfg.Addr()); err != nil {
		log.Fatal(err)
	}
}
