package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/udxhq/udx-backend/internal/api"
	"github.com/udxhq/udx-backend/internal/auth"
	"github.com/udxhq/udx-backend/internal/config"
	"github.com/udxhq/udx-backend/internal/events"
	"github.com/udxhq/udx-backend/internal/logger"
	"github.com/udxhq/udx-backend/internal/presence"
	"github.com/udxhq/udx-backend/internal/store"
	"github.com/udxhq/udx-backend/internal/ws"
)

func main() {
	cfgPath := os.Getenv("UDX_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	lg, err := logger.New(cfg.Development())
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if cfg.App.JWTSecret == "" {
		lg.Fatal("app.jwt_secret is required")
	}
	if cfg.App.UDXSecret == "" {
		lg.Fatal("app.udx_secret is required")
	}
	verifier := auth.NewJWTVerifier(cfg.App.JWTSecret)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			lg.Warnw("redis unreachable, presence mirror and rate limiting degraded", "error", err)
		}
	}

	var mongoClient *mongo.Client
	if cfg.Mongo.URI != "" {
		mongoClient, err = store.Connect(context.Background(), cfg.Mongo.URI)
		if err != nil {
			lg.Fatalw("mongo connect", "error", err)
		}
	}

	var audit ws.AuditPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrgMessage)
		defer func() { _ = producer.Close() }()
		audit = producer
	}

	var mirror ws.PresenceMirror
	if redisClient != nil {
		mirror = presence.NewStore(redisClient, cfg.Redis.Prefix)
	}

	wsSrv := ws.NewServer(ws.Options{
		Verifier:       verifier,
		Logger:         lg,
		PingInterval:   cfg.PingInterval,
		WriteDeadline:  cfg.WriteDeadline,
		MaxMessageSize: cfg.WS.MaxMessageSizeBytes,
		PollWait:       cfg.PollWait,
		PollSessionTTL: cfg.PollSessionTTL,
		Audit:          audit,
		Presence:       mirror,
	})
	defer wsSrv.Close()

	var users *store.UserRepository
	var orgs *store.OrgRepository
	if mongoClient != nil {
		db := mongoClient.Database(cfg.Mongo.Database)
		users = store.NewUserRepository(db)
		orgs = store.NewOrgRepository(db)
	}

	var limiter *api.RateLimiter
	if redisClient != nil {
		limiter = api.NewRateLimiter(redisClient, cfg.Redis.Prefix, cfg.RateLimit.Requests, cfg.RateWindow, lg)
	}

	app := api.New(api.Deps{
		Config:      cfg,
		Logger:      lg,
		WS:          wsSrv,
		Verifier:    verifier,
		Users:       users,
		Orgs:        orgs,
		Mongo:       mongoClient,
		RateLimiter: limiter,
	})

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		lg.Infow("UDX server running", "addr", addr, "pid", os.Getpid())
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		lg.Fatalw("server error", "error", err)
	case received := <-sig:
		lg.Infow("signal received, closing UDX HTTP server", "signal", received.String())
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		lg.Errorw("shutdown", "error", err)
	}
	if mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	}
	lg.Info("UDX HTTP server closed")
}
