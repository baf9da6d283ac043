package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"staff-portal/internal/config"
	"staff-portal/internal/database"
)

func main() {
	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)

	fmt.Printf("Connected to database: %s\n", cfg.Database.Database)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := database.ApplySchema(ctx, db); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	fmt.Printf("Applied %d statements\n", len(database.Statements()))
	fmt.Println("Schema is up to date")
}
