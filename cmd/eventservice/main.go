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
	"engage/internal/auth"
	"engage/internal/cloudinary"
	"engage/internal/config"
	"engage/internal/event"
	"engage/internal/httpmiddleware"
	"engage/internal/registry"
	"engage/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("event service failed: %v", err)
	}
}

func run(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	repo := event.NewRepository(db.Client)
	svc := event.NewService(repo)

	var cdn *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdn = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("cloudinary not configured, event images disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port, err := strconv.Atoi(cfg.HTTPPort)
	if err != nil {
		return err
	}
	reg := registry.New(cfg.RegistryAddr)
	go func() {
		if err := reg.RegisterWithRetry(ctx, cfg.EventServiceName, cfg.HTTPHost, port, cfg.RegisterAttempts, cfg.RegisterDelay); err != nil {
			log.Printf("startup degraded, service not discoverable: %v", err)
			return
		}
		reg.StartHeartbeat(ctx, cfg.EventServiceName, cfg.HTTPHost, port, cfg.HeartbeatInterval)
	}()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.GET("/events", func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		result, err := svc.ListEvents(c.Request.Context(),
			event.ListFilter(c.DefaultQuery("filter", "all")),
			c.Query("search"), c.Query("tag"), page)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"page":       result.Page,
			"pageSize":   result.PageSize,
			"totalCount": result.TotalCount,
			"totalPages": result.TotalPages,
			"events":     result.Items,
		})
	})

	r.GET("/events/:id", func(c *gin.Context) {
		id, ok := eventID(c)
		if !ok {
			return
		}
		e, err := svc.GetEvent(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	})

	// Aggregation endpoint for the user service; not exposed to browsers.
	r.GET("/internal/event-history/:studentID", func(c *gin.Context) {
		result, err := svc.ListForStudent(c.Request.Context(), c.Param("studentID"), event.FilterAll, 1)
		if err != nil {
			fail(c, err)
			return
		}
		items := result.Items
		if items == nil {
			items = []event.StudentEvent{}
		}
		c.JSON(http.StatusOK, gin.H{"eventHistory": items, "total": result.TotalCount})
	})

	authed := r.Group("/", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer))

	authed.POST("/events/:id/register", func(c *gin.Context) {
		id, ok := eventID(c)
		if !ok {
			return
		}
		claims := auth.FromContext(c)
		t, err := svc.Register(c.Request.Context(), claims.StudentID, id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "registration successful", "ticketID": t.TicketID})
	})

	authed.POST("/events/:id/checkin", func(c *gin.Context) {
		id, ok := eventID(c)
		if !ok {
			return
		}
		claims := auth.FromContext(c)
		award, err := svc.CheckIn(c.Request.Context(), claims.StudentID, id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "checked in", "pointsAwarded": award})
	})

	authed.GET("/students/me/events", func(c *gin.Context) {
		claims := auth.FromContext(c)
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		result, err := svc.ListForStudent(c.Request.Context(), claims.StudentID,
			event.ListFilter(c.DefaultQuery("filter", "all")), page)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"page":       result.Page,
			"pageSize":   result.PageSize,
			"totalCount": result.TotalCount,
			"totalPages": result.TotalPages,
			"events":     result.Items,
		})
	})

	admin := authed.Group("/admin", auth.RequireRole("admin"))

	admin.POST("/events", func(c *gin.Context) {
		var req createEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		e := req.toEvent()
		if req.ImageData != "" {
			url, err := uploadImage(cdn, req.ImageData)
			if err != nil {
				fail(c, err)
				return
			}
			e.ImageURL = url
		}
		id, err := svc.CreateEvent(c.Request.Context(), e)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "event created successfully", "eventID": id})
	})

	admin.PUT("/events/:id", func(c *gin.Context) {
		id, ok := eventID(c)
		if !ok {
			return
		}
		var req updateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		existing, err := svc.GetEvent(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}

		upd := req.toUpdate()
		if req.ClearImage {
			empty := ""
			upd.ImageURL = &empty
		} else if req.ImageData != "" {
			url, err := uploadImage(cdn, req.ImageData)
			if err != nil {
				fail(c, err)
				return
			}
			upd.ImageURL = &url
		}

		if err := svc.UpdateEvent(c.Request.Context(), id, upd); err != nil {
			fail(c, err)
			return
		}
		if upd.ImageURL != nil && existing.ImageURL != "" {
			destroyImage(cdn, existing.ImageURL)
		}
		c.JSON(http.StatusOK, gin.H{"message": "event updated successfully"})
	})

	admin.DELETE("/events/:id", func(c *gin.Context) {
		id, ok := eventID(c)
		if !ok {
			return
		}
		imageURL, err := svc.DeleteEvent(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		if imageURL != "" {
			destroyImage(cdn, imageURL)
		}
		c.JSON(http.StatusOK, gin.H{"message": "event deleted successfully"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("event service listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down event service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("event service exited")
	return nil
}

type createEventRequest struct {
	Name         string             `json:"name" binding:"required"`
	Location     string             `json:"location"`
	ExternalLink string             `json:"externalLink"`
	Start        time.Time          `json:"start" binding:"required"`
	End          time.Time          `json:"end" binding:"required"`
	Summary      string             `json:"summary"`
	Description  string             `json:"description"`
	Tag          string             `json:"tag"`
	Organizer    string             `json:"organizer"`
	SkillPoints  event.SkillWeights `json:"skillPoints"`
	ImageData    string             `json:"imageData"`
}

func (r createEventRequest) toEvent() event.Event {
	return event.Event{
		Name:         r.Name,
		Location:     r.Location,
		ExternalLink: r.ExternalLink,
		StartTime:    r.Start,
		EndTime:      r.End,
		Summary:      r.Summary,
		Description:  r.Description,
		Tag:          r.Tag,
		Organizer:    r.Organizer,
		Skills:       r.SkillPoints,
	}
}

type updateEventRequest struct {
	Name         *string             `json:"name"`
	Location     *string             `json:"location"`
	ExternalLink *string             `json:"externalLink"`
	Start        *time.Time          `json:"start"`
	End          *time.Time          `json:"end"`
	Summary      *string             `json:"summary"`
	Description  *string             `json:"description"`
	Tag          *string             `json:"tag"`
	Organizer    *string             `json:"organizer"`
	SkillPoints  *event.SkillWeights `json:"skillPoints"`
	ImageData    string              `json:"imageData"`
	ClearImage   bool                `json:"clearImage"`
}

func (r updateEventRequest) toUpdate() event.Update {
	return event.Update{
		Name:         r.Name,
		Location:     r.Location,
		ExternalLink: r.ExternalLink,
		StartTime:    r.Start,
		EndTime:      r.End,
		Summary:      r.Summary,
		Description:  r.Description,
		Tag:          r.Tag,
		Organizer:    r.Organizer,
		Skills:       r.SkillPoints,
	}
}

func uploadImage(cdn *cloudinary.Client, data string) (string, error) {
	if cdn == nil {
		return "", apperr.New(apperr.Unavailable, "image storage not configured")
	}
	result, err := cdn.UploadBase64(data)
	if err != nil {
		log.Printf("cloudinary upload failed: %v", err)
		return "", apperr.Wrap(apperr.Unavailable, "image upload failed", err)
	}
	return result.SecureURL, nil
}

func destroyImage(cdn *cloudinary.Client, imageURL string) {
	if cdn == nil {
		return
	}
	publicID := cloudinary.PublicIDFromURL(imageURL)
	if publicID == "" {
		return
	}
	if err := cdn.Destroy(publicID); err != nil {
		log.Printf("cloudinary destroy %s failed: %v", publicID, err)
	}
}

func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return 0, false
	}
	return id, true
}

func fail(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.Internal {
		log.Printf("internal error: %v", err)
	}
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
}
