package subsystem

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for config entry persistence.
type Repository interface {
	// GetByID retrieves an entry by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*ConfigEntry, error)

	// List retrieves all entries.
	List(ctx context.Context) ([]ConfigEntry, error)

	// Insert stores a new entry. Returns ErrEntryExists on duplicate ID.
	Insert(ctx context.Context, entry *ConfigEntry) error

	// Delete removes an entry by ID. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entryColumns = `id, domain, title, supports_remove_device, created_at, updated_at`

// GetByID retrieves an entry by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*ConfigEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM config_entries WHERE id = ?`

	entry, err := scanConfigEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying config entry by id: %w", err)
	}
	return entry, nil
}

// List retrieves all entries.
func (r *SQLiteRepository) List(ctx context.Context) ([]ConfigEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM config_entries`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying config entries: %w", err)
	}
	defer rows.Close()

	var entries []ConfigEntry
	for rows.Next() {
		entry, err := scanConfigEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning config entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating config entries: %w", err)
	}

	return entries, nil
}

// Insert stores a new entry.
func (r *SQLiteRepository) Insert(ctx context.Context, entry *ConfigEntry) error {
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	supports := 0
	if entry.SupportsRemoveDevice {
		supports = 1
	}

	query := `INSERT INTO config_entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Domain,
		entry.Title,
		supports,
		entry.CreatedAt.Format(time.RFC3339),
		entry.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntryExists
		}
		return fmt.Errorf("inserting config entry: %w", err)
	}

	return nil
}

// Delete removes an entry by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM config_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting config entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfigEntry(scanner rowScanner) (*ConfigEntry, error) {
	var e ConfigEntry
	var supports int
	var createdAt, updatedAt string

	err := scanner.Scan(&e.ID, &e.Domain, &e.Title, &supports, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	e.SupportsRemoveDevice = supports != 0

	var parseErr error
	e.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	e.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &e, nil
}
