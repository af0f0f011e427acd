package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"engage/internal/apperr"
	"engage/internal/coach"
	"engage/internal/config"
	"engage/internal/httpmiddleware"
	"engage/internal/registry"
	"engage/internal/skills"
	"engage/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("analysis service failed: %v", err)
	}
}

func run(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	adviser := coach.New(cfg.CoachAPIURL, cfg.CoachAPIKey, cfg.CoachSkip)
	svc := skills.NewService(skills.NewRepository(db.Client), adviser)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port, err := strconv.Atoi(cfg.HTTPPort)
	if err != nil {
		return err
	}
	reg := registry.New(cfg.RegistryAddr)
	go func() {
		if err := reg.RegisterWithRetry(ctx, cfg.AnalysisServiceName, cfg.HTTPHost, port, cfg.RegisterAttempts, cfg.RegisterDelay); err != nil {
			log.Printf("startup degraded, service not discoverable: %v", err)
			return
		}
		reg.StartHeartbeat(ctx, cfg.AnalysisServiceName, cfg.HTTPHost, port, cfg.HeartbeatInterval)
	}()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy})
	})

	r.GET("/internal/skill-summary/:studentID", func(c *gin.Context) {
		summary, err := svc.Summarize(c.Request.Context(), c.Param("studentID"))
		if err != nil {
			if apperr.KindOf(err) == apperr.Internal {
				log.Printf("internal error: %v", err)
			}
			c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("analysis service listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down analysis service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("analysis service exited")
	return nil
}
