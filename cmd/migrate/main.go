package main

import (
	"context"
	"flag"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/gurkanbulca/tasktracker/internal/config"
	"github.com/gurkanbulca/tasktracker/internal/database"
)

func main() {
	sqlitePath := flag.String("sqlite", "", "migrate this SQLite accounts database instead of PostgreSQL")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var db *sqlx.DB
	if *sqlitePath != "" {
		db, err = database.NewSQLite(*sqlitePath)
	} else {
		db, err = database.NewPostgres(cfg.ToDatabaseConfig())
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("✅ Migrations completed successfully!")
}
