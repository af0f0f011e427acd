package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"engage/internal/config"
	"engage/internal/mailer"
	"engage/internal/queue"
	"engage/internal/store"
)

// Mail worker consumes verification-code jobs queued by the user service
// and delivers them over SMTP.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "engage:emails")
	}

	m := mailer.New(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPassword)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("mail worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeVerifyEmail {
			continue
		}
		job, err := queue.DecodeEmail(msg)
		if err != nil {
			log.Printf("malformed email job: %v", err)
			continue
		}
		if err := m.SendCode(job.Email, job.Code, job.Purpose); err != nil {
			log.Printf("send code to %s failed: %v", job.Email, err)
			continue
		}
		log.Printf("verification code sent to %s (%s)", job.Email, job.Purpose)
	}

	log.Println("mail worker stopped")
}
