package main

import (
	"context"
	"errors"
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
	"engage/internal/config"
	"engage/internal/httpmiddleware"
	"engage/internal/profile"
	"engage/internal/queue"
	"engage/internal/registry"
	"engage/internal/rewards"
	"engage/internal/store"
	"engage/internal/user"
	"engage/internal/verify"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("user service failed: %v", err)
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

	var mailQ queue.Queue
	if cfg.QueueBackend == "memory" {
		mailQ = queue.NewInMemory(64)
	} else {
		mailQ = queue.NewRedisQueue(redisClient.Client, "engage:emails")
	}

	codes := verify.NewCodeStore(redisClient.Client, cfg.VerifyCodeTTL)
	userRepo := user.NewRepository(db.Client)
	userSvc := user.NewService(userRepo, codes, mailQ)
	rewardSvc := rewards.NewService(rewards.NewRepository(db.Client))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port, err := strconv.Atoi(cfg.HTTPPort)
	if err != nil {
		return err
	}
	reg := registry.New(cfg.RegistryAddr)
	go func() {
		if err := reg.RegisterWithRetry(ctx, cfg.UserServiceName, cfg.HTTPHost, port, cfg.RegisterAttempts, cfg.RegisterDelay); err != nil {
			log.Printf("startup degraded, service not discoverable: %v", err)
			return
		}
		reg.StartHeartbeat(ctx, cfg.UserServiceName, cfg.HTTPHost, port, cfg.HeartbeatInterval)
	}()

	profileSvc := profile.NewService(userRepo, reg, cfg.EventServiceName, cfg.AnalysisServiceName, cfg.RemoteCallTimeout)

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

	r.POST("/register", func(c *gin.Context) {
		var req user.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := userSvc.Register(c.Request.Context(), req); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "user registered successfully"})
	})

	r.POST("/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		studentID, role, err := userSvc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, user.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			fail(c, err)
			return
		}
		token, expiresAt, err := auth.Issue(studentID, role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":    "login successful",
			"studentID":  studentID,
			"role":       role,
			"token":      token,
			"expires_at": expiresAt.Unix(),
		})
	})

	r.POST("/send-email-code", func(c *gin.Context) {
		email, ok := bindEmail(c)
		if !ok {
			return
		}
		if err := userSvc.SendRegistrationCode(c.Request.Context(), email); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "verification code sent, please check your email"})
	})

	r.POST("/validate-and-send", func(c *gin.Context) {
		email, ok := bindEmail(c)
		if !ok {
			return
		}
		if err := userSvc.SendResetCode(c.Request.Context(), email); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "verification code sent, please check your email"})
	})

	r.POST("/reset-password", func(c *gin.Context) {
		var req struct {
			Email       string `json:"email" binding:"required,email"`
			Code        string `json:"code" binding:"required"`
			NewPassword string `json:"new_password" binding:"required,min=8"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := userSvc.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password has been reset successfully"})
	})

	authed := r.Group("/", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer))

	authed.GET("/profile", func(c *gin.Context) {
		claims := auth.FromContext(c)
		p, err := profileSvc.GetProfile(c.Request.Context(), claims.StudentID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	})

	authed.POST("/rewards/redeem", func(c *gin.Context) {
		var req struct {
			RewardID int `json:"rewardID" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims := auth.FromContext(c)
		if err := rewardSvc.Redeem(c.Request.Context(), claims.StudentID, req.RewardID); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "reward redeemed"})
	})

	authed.GET("/rewards/status", func(c *gin.Context) {
		claims := auth.FromContext(c)
		status, err := rewardSvc.RewardStatus(c.Request.Context(), claims.StudentID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	authed.GET("/userlist", auth.RequireRole("admin"), func(c *gin.Context) {
		users, err := userSvc.ListStudents(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("user service listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down user service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("user service exited")
	return nil
}

func bindEmail(c *gin.Context) (string, bool) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return "", false
	}
	return req.Email, true
}

func fail(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.Internal {
		log.Printf("internal error: %v", err)
	}
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
}
