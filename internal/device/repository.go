package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device entry persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves an entry by its unique identifier.
	// Returns ErrNotFound if the entry does not exist.
	GetByID(ctx context.Context, id string) (*DeviceEntry, error)

	// List retrieves all entries in storage order.
	List(ctx context.Context) ([]DeviceEntry, error)

	// Insert stores a new entry.
	// Returns ErrDeviceExists if an entry with the same ID already exists.
	Insert(ctx context.Context, entry *DeviceEntry) error

	// Replace overwrites an existing entry wholesale.
	// Returns ErrNotFound if the entry does not exist.
	Replace(ctx context.Context, entry *DeviceEntry) error

	// Delete removes an entry by ID.
	// Returns ErrNotFound if the entry does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite. Set-valued fields
// are stored as JSON arrays in TEXT columns; they are read and written
// whole and never queried element-wise.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, name_by_user, manufacturer, model, sw_version,
	hw_version, configuration_url, entry_type, area_id, disabled_by,
	via_device_id, connections, identifiers, config_entries, created_at, updated_at`

// GetByID retrieves an entry by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*DeviceEntry, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return entry, nil
}

// List retrieves all entries. Order follows rowid, the table's insertion
// order; callers must not rely on it being stable across restarts.
func (r *SQLiteRepository) List(ctx context.Context) ([]DeviceEntry, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var entries []DeviceEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return entries, nil
}

// Insert stores a new entry.
func (r *SQLiteRepository) Insert(ctx context.Context, entry *DeviceEntry) error {
	connections, identifiers, configEntries, err := marshalSets(entry)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Name,
		nullableString(entry.NameByUser),
		nullableString(entry.Manufacturer),
		nullableString(entry.Model),
		nullableString(entry.SWVersion),
		nullableString(entry.HWVersion),
		nullableString(entry.ConfigurationURL),
		nullableString(string(entry.EntryType)),
		nullableString(entry.AreaID),
		nullableString(string(entry.DisabledBy)),
		nullableString(entry.ViaDeviceID),
		connections,
		identifiers,
		configEntries,
		entry.CreatedAt.Format(time.RFC3339),
		entry.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Replace overwrites an existing entry wholesale.
func (r *SQLiteRepository) Replace(ctx context.Context, entry *DeviceEntry) error {
	connections, identifiers, configEntries, err := marshalSets(entry)
	if err != nil {
		return err
	}

	entry.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			name = ?, name_by_user = ?, manufacturer = ?, model = ?,
			sw_version = ?, hw_version = ?, configuration_url = ?,
			entry_type = ?, area_id = ?, disabled_by = ?, via_device_id = ?,
			connections = ?, identifiers = ?, config_entries = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		entry.Name,
		nullableString(entry.NameByUser),
		nullableString(entry.Manufacturer),
		nullableString(entry.Model),
		nullableString(entry.SWVersion),
		nullableString(entry.HWVersion),
		nullableString(entry.ConfigurationURL),
		nullableString(string(entry.EntryType)),
		nullableString(entry.AreaID),
		nullableString(string(entry.DisabledBy)),
		nullableString(entry.ViaDeviceID),
		connections,
		identifiers,
		configEntries,
		entry.UpdatedAt.Format(time.RFC3339),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
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

// Delete removes an entry by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
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

// marshalSets encodes the three set-valued fields as JSON array strings.
func marshalSets(entry *DeviceEntry) (connections, identifiers, configEntries string, err error) {
	c, err := json.Marshal(emptyIfNilPairs(entry.Connections))
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling connections: %w", err)
	}
	i, err := json.Marshal(emptyIfNilPairs(entry.Identifiers))
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling identifiers: %w", err)
	}
	e, err := json.Marshal(emptyIfNilStrings(entry.ConfigEntries))
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling config_entries: %w", err)
	}
	return string(c), string(i), string(e), nil
}

func emptyIfNilPairs(p []Pair) []Pair {
	if p == nil {
		return []Pair{}
	}
	return p
}

func emptyIfNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a row or rows result into a DeviceEntry.
func scanEntry(scanner rowScanner) (*DeviceEntry, error) {
	var e DeviceEntry
	var nameByUser, manufacturer, model, swVersion, hwVersion sql.NullString
	var configurationURL, entryType, areaID, disabledBy, viaDeviceID sql.NullString
	var connectionsJSON, identifiersJSON, configEntriesJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&e.ID,
		&e.Name,
		&nameByUser,
		&manufacturer,
		&model,
		&swVersion,
		&hwVersion,
		&configurationURL,
		&entryType,
		&areaID,
		&disabledBy,
		&viaDeviceID,
		&connectionsJSON,
		&identifiersJSON,
		&configEntriesJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.NameByUser = nameByUser.String
	e.Manufacturer = manufacturer.String
	e.Model = model.String
	e.SWVersion = swVersion.String
	e.HWVersion = hwVersion.String
	e.ConfigurationURL = configurationURL.String
	e.EntryType = EntryType(entryType.String)
	e.AreaID = areaID.String
	e.DisabledBy = DisabledBy(disabledBy.String)
	e.ViaDeviceID = viaDeviceID.String

	if err := json.Unmarshal([]byte(connectionsJSON), &e.Connections); err != nil {
		return nil, fmt.Errorf("unmarshalling connections: %w", err)
	}
	if err := json.Unmarshal([]byte(identifiersJSON), &e.Identifiers); err != nil {
		return nil, fmt.Errorf("unmarshalling identifiers: %w", err)
	}
	if err := json.Unmarshal([]byte(configEntriesJSON), &e.ConfigEntries); err != nil {
		return nil, fmt.Errorf("unmarshalling config_entries: %w", err)
	}

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

// nullableString returns a sql.NullString that maps "" to NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
