package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipstream/video-app/internal/api"
	"clipstream/video-app/internal/config"
	"clipstream/video-app/internal/encoder"
	"clipstream/video-app/internal/events"
	"clipstream/video-app/internal/progress"
	"clipstream/video-app/internal/repository/mongo"
	"clipstream/video-app/internal/service"
	"clipstream/video-app/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting Clipstream Video Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	log.Println("Ensuring database indexes...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureVideoIndexes(ctx, appDB.Collection("videos"))
		mongo.EnsureQualityIndexes(ctx, appDB.Collection("video_qualities"))
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Storage ---
	log.Println("Initializing object storage...")
	objects, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
	}

	// --- Initialize Event Bus ---
	log.Println("Connecting to event bus...")
	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()
	bus, err := events.NewRedisBus(busCtx, cfg.Events)
	if err != nil {
		log.Fatalf("FATAL: Failed to connect to Redis event bus: %v", err)
	}

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	videoRepo := mongo.NewMongoVideoRepository(appDB)
	qualityRepo := mongo.NewMongoQualityRepository(appDB)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	tracker := progress.NewTracker(progress.Options{
		CompletedTTL:  cfg.Progress.CompletedTTL,
		FailedTTL:     cfg.Progress.FailedTTL,
		SweepInterval: cfg.Progress.SweepInterval,
		StaleAfter:    cfg.Progress.StaleAfter,
	})
	defer tracker.Stop()

	thumbnailer := encoder.NewThumbnailExtractor(cfg.Encoder.FFmpegPath, cfg.Encoder.FFprobePath, cfg.Encoder.ThumbnailTimeout)
	runner := encoder.NewRunner(cfg.Encoder.FFmpegPath, cfg.Encoder.Timeout, cfg.Encoder.SegmentDuration, cfg.Encoder.UseFilterGraph)

	qualityStore := service.NewQualityStore(qualityRepo)
	uploadService := service.NewUploadService(videoRepo, objects, bus, tracker, thumbnailer, cfg.S3, cfg.Events)
	deliveryService := service.NewDeliveryService(videoRepo, qualityRepo, objects)
	transcodeService := service.NewTranscodeService(objects, runner, qualityStore, cfg.S3)

	// --- Start Transcoding Consumers ---
	log.Printf("Subscribing to transcoding jobs on topic %s...", cfg.Events.TranscodeTopic)
	go func() {
		err := bus.Subscribe(busCtx, cfg.Events.TranscodeTopic, cfg.Events.ConsumerGroup, transcodeService.HandleJobMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("FATAL: Transcoding subscription stopped: %v", err)
		}
	}()

	// --- Initialize Gin Engine ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, uploadService, deliveryService, tracker)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
		// No ReadTimeout: uploads of multi-gigabyte videos legitimately take
		// a long time. Header reads are still bounded.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	busCancel() // stop event consumers before refusing new work

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
