package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// pq error code for unique constraint violations.
const pqUniqueViolation = "23505"

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	q  querier
}

// NewPostgresStore creates a new PostgreSQL registry store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db, q: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL registry store from
// a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// mapPQConflict converts a unique-violation into the retryable
// reconciliation conflict the callers look for.
func mapPQConflict(mrn string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return domain.NewReconciliationConflictError(mrn, err)
	}
	return err
}

// FindActiveByMRN returns the non-deleted patient carrying the MRN.
func (s *PostgresStore) FindActiveByMRN(ctx context.Context, mrn string) (*domain.PatientIdentity, error) {
	query := `
		SELECT id, mrn, full_name, age, weight_kg, height_cm, bmi,
			gestational_weeks, notes, deleted, created_at
		FROM patients
		WHERE mrn = $1 AND NOT deleted
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
func (s *PostgresStore) CountResults(ctx context.Context, patientID int64) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM results WHERE patient_id = $1", patientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}

// CreatePatient inserts a new registry row and fills in ID and CreatedAt.
func (s *PostgresStore) CreatePatient(ctx context.Context, p *domain.PatientIdentity) error {
	query := `
		INSERT INTO patients (
			mrn, full_name, age, weight_kg, height_cm, bmi,
			gestational_weeks, notes, deleted, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, NOW())
		RETURNING id, created_at
	`

	err := s.q.QueryRowContext(ctx, query,
		p.MRN, p.FullName, p.Age, p.WeightKg, p.HeightCm, p.BMI,
		p.GestationalWeeks, p.Notes,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", mapPQConflict(p.MRN, err))
	}
	return nil
}

// UpdatePatient overwrites the demographic fields of an existing row.
func (s *PostgresStore) UpdatePatient(ctx context.Context, p *domain.PatientIdentity) error {
	query := `
		UPDATE patients SET
			mrn = $1, full_name = $2, age = $3, weight_kg = $4,
			height_cm = $5, bmi = $6, gestational_weeks = $7, notes = $8
		WHERE id = $9 AND NOT deleted
	`

	res, err := s.q.ExecContext(ctx, query,
		p.MRN, p.FullName, p.Age, p.WeightKg, p.HeightCm, p.BMI,
		p.GestationalWeeks, p.Notes, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", mapPQConflict(p.MRN, err))
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
func (s *PostgresStore) SoftDeletePatient(ctx context.Context, id int64) error {
	var mrn string
	err := s.q.QueryRowContext(ctx,
		"SELECT mrn FROM patients WHERE id = $1 AND NOT deleted", id).Scan(&mrn)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load patient %d: %w", id, err)
	}

	now := time.Now()
	_, err = s.q.ExecContext(ctx, `
		UPDATE patients SET
			deleted = TRUE,
			mrn = $1,
			notes = TRIM(notes || ' ' || $2)
		WHERE id = $3
	`, relabelDeletedMRN(mrn, now), recoveryNote(mrn, now), id)
	if err != nil {
		return fmt.Errorf("failed to soft delete patient %d: %w", id, err)
	}
	return nil
}

// RestorePatient undoes a soft delete, recovering the original MRN.
func (s *PostgresStore) RestorePatient(ctx context.Context, id int64) error {
	var mrn string
	err := s.q.QueryRowContext(ctx,
		"SELECT mrn FROM patients WHERE id = $1 AND deleted", id).Scan(&mrn)
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
		"UPDATE patients SET deleted = FALSE, mrn = $1 WHERE id = $2", original, id)
	if err != nil {
		return fmt.Errorf("failed to restore patient %d: %w", id, mapPQConflict(original, err))
	}
	return nil
}

// SaveResult persists one result record, generating its ID when empty.
func (s *PostgresStore) SaveResult(ctx context.Context, r *domain.ResultRecord) error {
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

	query := `
		INSERT INTO results (id, patient_id, metrics, disposition, threshold_version, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	err = s.q.QueryRowContext(ctx, query,
		r.ID, r.PatientID, metrics, disposition, version,
	).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// WithinTx runs fn against a transactional view of the store.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	if s.q != querier(s.db) {
		// Already transactional, reuse the scope.
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, &PostgresStore{db: s.db, q: tx}); err != nil {
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
