package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/watchover/internal/api/http"
	"github.com/i474232898/watchover/internal/cache"
	"github.com/i474232898/watchover/internal/config"
	"github.com/i474232898/watchover/internal/geocode"
	"github.com/i474232898/watchover/internal/scheduler"
	"github.com/i474232898/watchover/internal/telemetry"
	"github.com/i474232898/watchover/internal/tracker"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls to the feed and the geocoder.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Durable cache backing every other component.
	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		log.Fatalf("failed to open cache: %v", err)
	}
	defer store.Close()

	feed := telemetry.NewClient(httpClient, cfg.FeedBaseURL, cfg.ChannelID, cfg.ReadAPIKey)

	resolver := geocode.NewResolver(httpClient, store, geocode.Options{
		BaseURL:      cfg.NominatimBaseURL,
		UserAgent:    cfg.UserAgent,
		GoogleAPIKey: cfg.GeocoderAPIKey,
		CacheTTL:     cfg.GeocodeTTL,
		GroupSize:    cfg.GeocodeGroupSize,
		GroupDelay:   cfg.GeocodeGroupDelay,
	})

	// Core service reconciling feed, geocoder, and cache.
	service := tracker.New(feed, resolver, store, tracker.Options{
		LocationTTL: cfg.LocationTTL,
		HistoryTTL:  cfg.HistoryTTL,
		HistorySize: cfg.HistorySize,
	})

	// Scheduler is armed by login and disarmed by logout via the API layer.
	sched := scheduler.New(service, scheduler.Intervals{
		Poll:    cfg.PollInterval,
		Label:   cfg.LabelInterval,
		History: cfg.HistoryInterval,
	})
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "watchover",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "watchover",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, sched)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
