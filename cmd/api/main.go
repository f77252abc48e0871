package main

import (
	"context"
	"log"

	"piazza-chat/internal/config"
	"piazza-chat/internal/handler"
	"piazza-chat/internal/redis"
	"piazza-chat/internal/repository"
	"piazza-chat/internal/server"
	"piazza-chat/internal/services"
	"piazza-chat/internal/storage"
	"piazza-chat/internal/websocket"
	"piazza-chat/pkg/database"
	"piazza-chat/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	l := logger.New(cfg.Server.Environment)
	defer l.Logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(cfg.Redis)
	defer redisClient.Close()

	store, err := storage.NewClient(ctx, cfg.S3)
	if err != nil {
		log.Fatalf("object storage: %v", err)
	}

	publisher := redis.NewPublisher(redisClient)
	subscriber := redis.NewSubscriber(redisClient)
	typingStore := redis.NewTypingStore(redisClient, publisher, cfg.Chat.TypingSignalTTL)
	limiter := redis.NewRateLimiter(redisClient, redis.DefaultRateLimitConfig())

	messageRepo := repository.NewMessageRepository(pool)
	reactionRepo := repository.NewReactionRepository(pool)
	topicRepo := repository.NewTopicRepository(pool)

	authService := services.NewAuthService(cfg.Auth.JWTSecret)
	topicService := services.NewTopicService(topicRepo)
	messageService := services.NewMessageService(messageRepo, reactionRepo, topicRepo, publisher, l)
	reactionService := services.NewReactionService(reactionRepo, messageRepo, topicRepo, publisher, l)
	typingService := services.NewTypingService(typingStore, topicRepo)
	mediaService := services.NewMediaService(store, cfg.Chat, l)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	bridge := websocket.NewRedisBridge(subscriber, hub)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			l.Errorf("redis bridge stopped: %v", err)
		}
	}()

	authorizer := websocket.NewChannelAuthorizer(topicService)

	handlers := &server.Handlers{
		Topic:    handler.NewTopicHandler(topicService),
		Message:  handler.NewMessageHandler(messageService),
		Reaction: handler.NewReactionHandler(reactionService),
		Typing:   handler.NewTypingHandler(typingService),
		Upload:   handler.NewUploadHandler(mediaService, messageService, cfg.Chat.MaxAttachmentBytes),
		WS:       websocket.NewHandler(authService, authorizer, hub, limiter, l),
	}

	srv := server.New(cfg, l, pool)
	srv.SetupRoutes(handlers, authService, limiter)

	if err := srv.Start(); err != nil {
		l.Errorf("server stopped: %v", err)
	}
}
