package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"teamboard/configs"
)

// PostgresDSN builds the lib/pq connection string for dbName.
func PostgresDSN(cfg configs.Config, dbName string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, dbName)
}

// ConnectDB opens and pings the postgres pool.
func ConnectDB(cfg configs.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", PostgresDSN(cfg, cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
