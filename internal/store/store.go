package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ticket-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Record namespaces. Each holds one JSON array.
const (
	NamespacePrefix    = "tm_ticket_"
	NamespaceMaterials = NamespacePrefix + "materials_db"
	NamespaceEquipment = NamespacePrefix + "equipment_db"
	NamespaceTickets   = NamespacePrefix + "tickets"
)

// Namespaces lists every namespace owned by the service
var Namespaces = []string{NamespaceMaterials, NamespaceEquipment, NamespaceTickets}

// CatalogNamespace returns the namespace backing a catalog
func CatalogNamespace(kind models.CatalogKind) string {
	if kind == models.CatalogEquipment {
		return NamespaceEquipment
	}
	return NamespaceMaterials
}

// RecordStore persists whole namespaced records.
// Save must replace the previous payload atomically: a failed Save leaves the
// previously committed payload readable.
type RecordStore interface {
	// Load returns models.ErrNotFound when the namespace has never been written
	Load(ctx context.Context, namespace string) ([]byte, error)
	Save(ctx context.Context, namespace string, payload []byte) error
	Remove(ctx context.Context, namespace string) error
	Close() error
}

// SQLStore keeps records in a single table keyed by namespace
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

const createRecordsTable = `
	CREATE TABLE IF NOT EXISTS records (
		namespace  TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

// NewSQLStore connects to a sqlite or postgres database and prepares the records table
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	if driver == "sqlite" && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// a single writer keeps sqlite free of SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if _, err := db.Exec(createRecordsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create records table: %w", err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *SQLStore) GetDB() *sqlx.DB {
	return s.db
}

// Load retrieves the payload stored under namespace
func (s *SQLStore) Load(ctx context.Context, namespace string) ([]byte, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload,
		s.db.Rebind("SELECT payload FROM records WHERE namespace = ?"), namespace)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", namespace, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

// Save upserts the payload inside a transaction
func (s *SQLStore) Save(ctx context.Context, namespace string, payload []byte) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO records (namespace, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (namespace) DO UPDATE
		SET payload = excluded.payload, updated_at = excluded.updated_at`),
		namespace, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", namespace, err)
	}

	return tx.Commit()
}

// Remove deletes the record; removing a missing record is not an error
func (s *SQLStore) Remove(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM records WHERE namespace = ?"), namespace)
	return err
}
