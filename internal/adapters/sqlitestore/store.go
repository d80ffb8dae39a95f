package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"jobwatch/internal/core/domain"
)

// Store implements ports.Store on a local SQLite database. Job counts are
// small (tens, not thousands), so lookups by URL are plain scans over an
// unindexed column.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and ensures the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.init(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	schema := `create table if not exists jobs(
		job_id text primary key,
		url text not null,
		platform text not null default '',
		item_id text not null default '',
		start_time DATETIME not null,
		last_check DATETIME not null
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts the record by job id.
func (s *Store) Save(ctx context.Context, rec *domain.JobRecord) error {
	statement := `insert into jobs (job_id, url, platform, item_id, start_time, last_check)
		values (?,?,?,?,?,?)
		on conflict(job_id) do update set
			url=excluded.url,
			platform=excluded.platform,
			item_id=excluded.item_id,
			start_time=excluded.start_time,
			last_check=excluded.last_check;`
	_, err := s.db.ExecContext(ctx, statement,
		rec.JobID, rec.URL, rec.Platform, rec.ItemID, rec.StartTime, rec.LastCheck)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", rec.JobID, err)
	}
	return nil
}

// Get returns the record for jobID, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select job_id, url, platform, item_id, start_time, last_check from jobs where job_id = ?;`, jobID)
	return scanRecord(row)
}

// GetByURL returns the first record for url, or (nil, nil) when absent.
func (s *Store) GetByURL(ctx context.Context, url string) (*domain.JobRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select job_id, url, platform, item_id, start_time, last_check from jobs where url = ? order by start_time limit 1;`, url)
	return scanRecord(row)
}

// List returns all persisted records.
func (s *Store) List(ctx context.Context) ([]domain.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`select job_id, url, platform, item_id, start_time, last_check from jobs;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var records []domain.JobRecord
	for rows.Next() {
		var rec domain.JobRecord
		if err := rows.Scan(&rec.JobID, &rec.URL, &rec.Platform, &rec.ItemID, &rec.StartTime, &rec.LastCheck); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Remove deletes the record for jobID. Removing an absent record is not an
// error.
func (s *Store) Remove(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `delete from jobs where job_id = ?;`, jobID); err != nil {
		return fmt.Errorf("failed to remove job %s: %w", jobID, err)
	}
	return nil
}

// Touch updates the record's last-check time to now.
func (s *Store) Touch(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx,
		`update jobs set last_check = ? where job_id = ?;`, time.Now().UTC(), jobID); err != nil {
		return fmt.Errorf("failed to touch job %s: %w", jobID, err)
	}
	return nil
}

func scanRecord(row *sql.Row) (*domain.JobRecord, error) {
	var rec domain.JobRecord
	err := row.Scan(&rec.JobID, &rec.URL, &rec.Platform, &rec.ItemID, &rec.StartTime, &rec.LastCheck)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return &rec, nil
}
