package main

import (
	"log"
	"os"

	"ai-interview-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Printf("Running migration for %d tables...", len(database.Models()))
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Error: migration failed: %v", err)
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
