package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/vogiaan1904/ticketbottle-settlement/config"
	pkgPostgres "github.com/vogiaan1904/ticketbottle-settlement/pkg/postgres"
)

func Connect(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := pkgPostgres.Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	log.Println("Connected to Postgres.")

	return db, nil
}

func Disconnect(db *sql.DB) {
	if db == nil {
		return
	}

	db.Close()

	log.Println("Connection to Postgres closed.")
}
