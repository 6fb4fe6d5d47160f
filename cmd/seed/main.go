package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/oksasatya/go-post-feed/config"
	pginfra "github.com/oksasatya/go-post-feed/internal/infrastructure/postgres"
	"github.com/oksasatya/go-post-feed/pkg/helpers"
)

type seedUser struct {
	email, name, username string
}

var demoUsers = []seedUser{
	{"alice@example.com", "Alice", "alice"},
	{"bob@example.com", "Bob", "bob"},
	{"carol@example.com", "Carol", "carol"},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), 2, 1, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	password := "password123"
	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	ids := make(map[string]string, len(demoUsers))
	for _, u := range demoUsers {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO users (email, password_hash, name, username)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, u.email, hash, u.name, u.username).Scan(&id)
		if err != nil {
			log.Fatalf("failed to seed user %s: %v", u.username, err)
		}
		ids[u.username] = id
		fmt.Printf("seeded user: id=%s email=%s username=%s password=%s\n", id, u.email, u.username, password)
	}

	// alice follows bob and carol so her feed is not empty
	for _, followee := range []string{"bob", "carol"} {
		if _, err := pool.Exec(ctx, `
			INSERT INTO follows (follower_id, followee_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, ids["alice"], ids[followee]); err != nil {
			log.Fatalf("failed to seed follow alice->%s: %v", followee, err)
		}
	}

	var postID string
	err = pool.QueryRow(ctx, `
		INSERT INTO posts (posted_by, text)
		SELECT $1, $2
		WHERE NOT EXISTS (SELECT 1 FROM posts WHERE posted_by = $1)
		RETURNING id
	`, ids["bob"], "hello from bob").Scan(&postID)
	switch {
	case err == nil:
		fmt.Printf("seeded post: id=%s by=bob\n", postID)
	case errors.Is(err, pgx.ErrNoRows):
		fmt.Println("bob already has posts; skipping")
	default:
		log.Fatalf("failed to seed post: %v", err)
	}
}
