package pipeline

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/aluiziolira/commute-matrix/models"
)

// PostgresWriter mirrors the matrix log into PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter connects, ensures the schema exists and returns a
// ready-to-use writer.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 3; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS commute_scans (
			id          SERIAL PRIMARY KEY,
			scanned_at  TIMESTAMPTZ NOT NULL,
			anchor_week DATE        NOT NULL,
			itin_type   TEXT        NOT NULL,
			dept_date   DATE        NOT NULL,
			return_date DATE        NOT NULL,
			airport     VARCHAR(3)  NOT NULL,
			total_cost  INTEGER     NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_commute_scans_anchor  ON commute_scans(anchor_week);
		CREATE INDEX IF NOT EXISTS idx_commute_scans_airport ON commute_scans(airport);
	`)
	return err
}

// Write inserts records in one transaction.
func (pw *PostgresWriter) Write(records []*models.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO commute_scans (scanned_at, anchor_week, itin_type, dept_date, return_date, airport, total_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("postgres: prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(
			rec.ScannedAt,
			rec.AnchorWeek.Format(models.DateLayout),
			rec.ItineraryType,
			rec.Departure.Format(models.DateLayout),
			rec.Return.Format(models.DateLayout),
			rec.Airport,
			rec.TotalCost,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("postgres: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Count returns the number of rows stored for an anchor week.
func (pw *PostgresWriter) Count(anchor time.Time) (int, error) {
	var n int
	err := pw.db.QueryRow(`SELECT COUNT(*) FROM commute_scans WHERE anchor_week = $1`, anchor.Format(models.DateLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// Validate checks the database is still reachable.
func (pw *PostgresWriter) Validate() error {
	if err := pw.db.Ping(); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}
