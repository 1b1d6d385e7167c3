package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/skpttrack/tracker/internal/db"
	"github.com/skpttrack/tracker/internal/logging"
)

// migrate applies the schema without starting the server. Opening the
// database runs the idempotent migrations.
func main() {
	_ = godotenv.Load()

	defaultPath := os.Getenv("TRACKER_DB_PATH")
	if defaultPath == "" {
		defaultPath = "./tracker.db"
	}
	dbPath := flag.String("db", defaultPath, "path to the SQLite database")
	flag.Parse()

	level := os.Getenv("TRACKER_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	logging.Setup(level, os.Getenv("TRACKER_LOG_FORMAT"))
	log := logging.For("migrate")

	start := time.Now()
	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	defer database.Close()

	if err := db.Ping(context.Background(), database, 5*time.Second); err != nil {
		log.Fatalf("ping: %v", err)
	}

	var tables int
	if err := database.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`).Scan(&tables); err != nil {
		log.Fatalf("inspect schema: %v", err)
	}
	log.WithFields(logrus.Fields{
		"db":       *dbPath,
		"tables":   tables,
		"duration": time.Since(start).String(),
	}).Info("schema up to date")
}
