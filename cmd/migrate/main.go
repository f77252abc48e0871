package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"piazza-chat/internal/config"
	"piazza-chat/internal/domain/topic"
	"piazza-chat/internal/repository"
	"piazza-chat/pkg/database"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("schema up to date")

	if err := seed(ctx, repository.NewTopicRepository(pool)); err != nil {
		log.Fatalf("seed: %v", err)
	}
}

// seed creates a starter topic so a fresh install has somewhere to chat.
func seed(ctx context.Context, topics repository.TopicRepository) error {
	t := topic.Topic{
		ID:         uuid.New().String(),
		Name:       "Benvenuti",
		Visibility: topic.VisibilityPublic,
		CreatedAt:  time.Now(),
	}
	err := topics.Create(ctx, &t)
	if err != nil {
		return err
	}
	log.Printf("seeded topic %s (%s)", t.Name, t.ID)
	return nil
}
