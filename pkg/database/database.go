package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const advertsSchema = `
	CREATE TABLE IF NOT EXISTS adverts (
		id                 CHAR(36)       NOT NULL PRIMARY KEY,
		creation_date_time DATETIME(6)    NOT NULL,
		status             VARCHAR(16)    NOT NULL,
		title              VARCHAR(100)   NOT NULL,
		description        TEXT           NOT NULL,
		price              DOUBLE         NOT NULL
	)`

func NewDatabase(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the adverts table if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, advertsSchema); err != nil {
		return fmt.Errorf("failed to create adverts table: %w", err)
	}
	return nil
}
