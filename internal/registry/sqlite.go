package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite. It is the
// embedded single-node backend; semantics match the PostgreSQL store.
type SQLiteStore struct {
	db     *sql.DB
	q      querier
	dbPath string
}

// NewSQLiteStore creates a new SQLite registry store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL mode for better concurrency; busy_timeout makes concurrent
	// import workers wait for the single write lock instead of failing
	// with SQLITE_BUSY. The pragmas go on the DSN so every pooled
	// connection carries them.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createRegistrySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, q: db, dbPath: dbPath}, nil
}

// createRegistrySchema creates the registry tables and indexes.
func createRegistrySchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mrn TEXT NOT NULL,
		full_name TEXT NOT NULL,
		age INTEGER NOT NULL DEFAULT 0,
		weight_kg REAL NOT NULL DEFAULT 0,
		height_cm INTEGER NOT NULL DEFAULT 0,
		bmi REAL NOT NULL DEFAULT 0,
		gestational_weeks INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_patients_active_mrn
		ON patients(mrn) WHERE deleted = 0;
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		patient_id INTEGER NOT NULL REFERENCES patients(id),
		metrics TEXT NOT NULL,
		disposition TEXT NOT NULL,
		threshold_version TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_patient ON results(patient_id);
	`
	_, err := db.Exec(schema)
	return err
}

// mapSQLiteConflict converts a unique-violation into the retryable
// reconciliation conflict the callers look for.
func mapSQLiteConflict(mrn string, err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.NewReconciliationConflictError(mrn, err)
	}
	return err
}

// FindActiveByMRN returns the non-deleted patient carrying the MRN.
func (s *SQLiteStore) FindActiveByMRN(ctx context.Context, mrn string) (*domain.PatientIdentity, error) {
	query := `
		SELECT id, mrn, full_name, age, weight_kg, height_cm, bmi,
			gestational_weeks, notes, deleted, created_at
		FROM patients
		WHERE mrn = ? AND deleted = 0
	`

	p := &domain.PatientIdentity{}
	err := s.q.QueryRowContext(ctx, query, mrn).Scan(
		&p.ID, &p.MRN, &p.FullName, &p.Age, &p.WeightKg, &p.HeightCm,
		&p.BMI, &p.GestationalWeeks, &p.Notes, &p.Deleted, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find patient by MRN: %w", err)
	}
	return p, nil
}

// CountResults returns the number of results attached to a patient.
func (s *SQLiteStore) CountResults(ctx context.Context, patientID int64) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM results WHERE patient_id = ?", patientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}

// CreatePatient inserts a new registry row and fills in ID and CreatedAt.
func (s *SQLiteStore) CreatePatient(ctx context.Context, p *domain.PatientIdentity) error {
	now := time.Now()
	query := `
		INSERT INTO patients (
			mrn, full_name, age, weight_kg, height_cm, bmi,
			gestational_weeks, notes, deleted, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`

	res, err := s.q.ExecContext(ctx, query,
		p.MRN, p.FullName, p.Age, p.WeightKg, p.HeightCm, p.BMI,
		p.GestationalWeeks, p.Notes, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", mapSQLiteConflict(p.MRN, err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	return nil
}

// UpdatePatient overwrites the demographic fields of an existing row.
func (s *SQLiteStore) UpdatePatient(ctx context.Context, p *domain.PatientIdentity) error {
	query := `
		UPDATE patients SET
			mrn = ?, full_name = ?, age = ?, weight_kg = ?,
			height_cm = ?, bmi = ?, gestational_weeks = ?, notes = ?
		WHERE id = ? AND deleted = 0
	`

	res, err := s.q.ExecContext(ctx, query,
		p.MRN, p.FullName, p.Age, p.WeightKg, p.HeightCm, p.BMI,
		p.GestationalWeeks, p.Notes, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", mapSQLiteConflict(p.MRN, err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDeletePatient marks a patient deleted and relabels its MRN so the
// original number becomes reusable immediately.
func (s *SQLiteStore) SoftDeletePatient(ctx context.Context, id int64) error {
	var mrn string
	err := s.q.QueryRowContext(ctx,
		"SELECT mrn FROM patients WHERE id = ? AND deleted = 0", id).Scan(&mrn)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load patient %d: %w", id, err)
	}

	now := time.Now()
	_, err = s.q.ExecContext(ctx, `
		UPDATE patients SET
			deleted = 1,
			mrn = ?,
			notes = TRIM(notes || ' ' || ?)
		WHERE id = ?
	`, relabelDeletedMRN(mrn, now), recoveryNote(mrn, now), id)
	if err != nil {
		return fmt.Errorf("failed to soft delete patient %d: %w", id, err)
	}
	return nil
}

// RestorePatient undoes a soft delete, recovering the original MRN.
func (s *SQLiteStore) RestorePatient(ctx context.Context, id int64) error {
	var mrn string
	err := s.q.QueryRowContext(ctx,
		"SELECT mrn FROM patients WHERE id = ? AND deleted = 1", id).Scan(&mrn)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load deleted patient %d: %w", id, err)
	}

	original, err := originalMRN(mrn)
	if err != nil {
		return fmt.Errorf("cannot restore patient %d: %w", id, err)
	}

	_, err = s.q.ExecContext(ctx,
		"UPDATE patients SET deleted = 0, mrn = ? WHERE id = ?", original, id)
	if err != nil {
		return fmt.Errorf("failed to restore patient %d: %w", id, mapSQLiteConflict(original, err))
	}
	return nil
}

// SaveResult persists one result record, generating its ID when empty.
func (s *SQLiteStore) SaveResult(ctx context.Context, r *domain.ResultRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	disposition, err := json.Marshal(r.Disposition)
	if err != nil {
		return fmt.Errorf("failed to encode disposition: %w", err)
	}

	var version string
	if r.Disposition != nil {
		version = r.Disposition.ThresholdVersion
	}

	now := time.Now()
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO results (id, patient_id, metrics, disposition, threshold_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.PatientID, string(metrics), string(disposition), version, now)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	r.CreatedAt = now
	return nil
}

// WithinTx runs fn against a transactional view of the store.
func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	if s.q != querier(s.db) {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, &SQLiteStore{db: s.db, q: tx, dbPath: s.dbPath}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (after: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
