package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	// Get command
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go [drop|up]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Connect to database
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Usage: go run main.go [drop|up]")
		os.Exit(1)
	}
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`DROP TABLE IF EXISTS ledger_events CASCADE`,
		`DROP TABLE IF EXISTS allocations CASCADE`,
		`DROP TABLE IF EXISTS hackathons CASCADE`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Dropped: %s\n", query)
	}

	return nil
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		// Hackathon ids are assigned by the ledger engine, not the database.
		`CREATE TABLE IF NOT EXISTS hackathons (
			id BIGINT PRIMARY KEY,
			token VARCHAR(64) NOT NULL,
			total_prize_pool BIGINT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			total_allocated BIGINT NOT NULL DEFAULT 0,
			organizer VARCHAR(64) NOT NULL,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS allocations (
			hackathon_id BIGINT REFERENCES hackathons(id) ON DELETE CASCADE,
			winner VARCHAR(64) NOT NULL,
			amount BIGINT NOT NULL,
			claimed BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW(),
			PRIMARY KEY (hackathon_id, winner)
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_events (
			id BIGSERIAL PRIMARY KEY,
			hackathon_id BIGINT,
			event_type VARCHAR(40) NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_allocations_winner ON allocations(winner)`,
		`CREATE INDEX IF NOT EXISTS idx_allocations_claimed ON allocations(hackathon_id, claimed)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_events_hackathon ON ledger_events(hackathon_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_events_type ON ledger_events(event_type)`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nQuery: %s", err, query)
		}
		fmt.Printf("  Created: %s\n", getTableName(query))
	}

	return nil
}

func getTableName(query string) string {
	if len(query) > 50 {
		return query[:50] + "..."
	}
	return query
}
