// Package archive keeps every newly seen listing in PostgreSQL for offline
// analysis of the market (price and fee distribution per source).
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/rsilvagit/deptos/internal/model"
)

const (
	batchSize    = 50
	insertParams = 8
)

// PostgresArchive writes listings to the listings table.
type PostgresArchive struct {
	db *sql.DB
}

// Open connects to dsn, waits for the server and runs the schema migration.
func Open(ctx context.Context, dsn string) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	for attempt := 0; attempt < 5; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if attempt < 4 {
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				db.Close()
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: ping failed after retries: %w", err)
	}

	a := &PostgresArchive{db: db}
	if err := a.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return a, nil
}

func (a *PostgresArchive) migrate(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id            TEXT        PRIMARY KEY,
			source        VARCHAR(32) NOT NULL,
			price         INTEGER,
			expensas      INTEGER,
			rooms         INTEGER,
			address       TEXT        NOT NULL DEFAULT '',
			url           TEXT        NOT NULL,
			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_source     ON listings(source);
		CREATE INDEX IF NOT EXISTS idx_listings_first_seen ON listings(first_seen_at);
	`)
	return err
}

// Archive inserts listings first seen at seenAt. Listings already archived
// are left untouched. It returns the number of rows inserted.
func (a *PostgresArchive) Archive(ctx context.Context, listings []model.Listing, seenAt time.Time) (int64, error) {
	var inserted int64
	for i := 0; i < len(listings); i += batchSize {
		end := min(i+batchSize, len(listings))

		query, args := insertQuery(listings[i:end], seenAt)
		res, err := a.db.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("archive: insert batch: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}
	return inserted, nil
}

func insertQuery(batch []model.Listing, seenAt time.Time) (string, []any) {
	values := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*insertParams)

	for idx, l := range batch {
		base := idx * insertParams
		placeholders := make([]string, insertParams)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ",")+")")
		args = append(args,
			l.ID, string(l.Source), nullInt(l.Price), nullInt(l.Expensas), nullInt(l.Rooms),
			l.Address, l.URL, seenAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (id, source, price, expensas, rooms, address, url, first_seen_at)
		VALUES %s
		ON CONFLICT (id) DO NOTHING
	`, strings.Join(values, ","))
	return query, args
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// SourceStats summarizes the archived listings of one source.
type SourceStats struct {
	Source       model.Source
	Listings     int
	Complete     int
	MinPrice     int
	AvgPrice     int
	MaxPrice     int
	AvgExpensas  int
	MedianPrice  int
	RoomsCounter map[int]int
}

// Stats aggregates the listings first seen since since.
func (a *PostgresArchive) Stats(ctx context.Context, since time.Time) ([]SourceStats, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT source,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE price IS NOT NULL AND rooms IS NOT NULL AND expensas IS NOT NULL),
		       COALESCE(MIN(price), 0),
		       COALESCE(AVG(price), 0)::BIGINT,
		       COALESCE(MAX(price), 0),
		       COALESCE(AVG(expensas), 0)::BIGINT,
		       COALESCE(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY price), 0)::BIGINT
		FROM listings
		WHERE first_seen_at >= $1
		GROUP BY source
		ORDER BY source
	`, since)
	if err != nil {
		return nil, fmt.Errorf("archive: stats: %w", err)
	}
	defer rows.Close()

	var stats []SourceStats
	index := map[model.Source]int{}
	for rows.Next() {
		var s SourceStats
		var src string
		if err := rows.Scan(&src, &s.Listings, &s.Complete, &s.MinPrice, &s.AvgPrice,
			&s.MaxPrice, &s.AvgExpensas, &s.MedianPrice); err != nil {
			return nil, fmt.Errorf("archive: scan stats: %w", err)
		}
		s.Source = model.Source(src)
		s.RoomsCounter = map[int]int{}
		index[s.Source] = len(stats)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: stats rows: %w", err)
	}

	roomRows, err := a.db.QueryContext(ctx, `
		SELECT source, rooms, COUNT(*)
		FROM listings
		WHERE first_seen_at >= $1 AND rooms IS NOT NULL
		GROUP BY source, rooms
	`, since)
	if err != nil {
		return nil, fmt.Errorf("archive: rooms stats: %w", err)
	}
	defer roomRows.Close()

	for roomRows.Next() {
		var src string
		var rooms, count int
		if err := roomRows.Scan(&src, &rooms, &count); err != nil {
			return nil, fmt.Errorf("archive: scan rooms: %w", err)
		}
		if i, ok := index[model.Source(src)]; ok {
			stats[i].RoomsCounter[rooms] = count
		}
	}
	return stats, roomRows.Err()
}

// Close closes the database handle.
func (a *PostgresArchive) Close() error {
	return a.db.Close()
}
