// Package repository is the read-side query layer over the registry
// schema, used by the HTTP API for lookups and reporting.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// PatientRepository handles patient registry queries
type PatientRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *pgxpool.Pool, logger *logrus.Logger) *PatientRepository {
	return &PatientRepository{
		db:  db,
		log: logger,
	}
}

const patientColumns = `id, mrn, full_name, age, weight_kg, height_cm, bmi,
	gestational_weeks, notes, deleted, created_at`

func scanPatient(row pgx.Row) (*domain.PatientIdentity, error) {
	p := &domain.PatientIdentity{}
	err := row.Scan(
		&p.ID, &p.MRN, &p.FullName, &p.Age, &p.WeightKg, &p.HeightCm,
		&p.BMI, &p.GestationalWeeks, &p.Notes, &p.Deleted, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByID retrieves a patient by registry ID, deleted or not.
func (r *PatientRepository) GetByID(ctx context.Context, id int64) (*domain.PatientIdentity, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	p, err := scanPatient(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patient %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to get patient by ID")
		return nil, fmt.Errorf("getting patient by ID: %w", err)
	}
	return p, nil
}

// ListActive returns active patients ordered by creation time.
func (r *PatientRepository) ListActive(ctx context.Context, limit, offset int) ([]*domain.PatientIdentity, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM patients
		WHERE NOT deleted
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	var patients []*domain.PatientIdentity
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning patient row: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// SearchByName returns active patients whose name contains the term,
// case-insensitively.
func (r *PatientRepository) SearchByName(ctx context.Context, term string, limit int) ([]*domain.PatientIdentity, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM patients
		WHERE NOT deleted AND full_name ILIKE '%' || $1 || '%'
		ORDER BY full_name
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("searching patients: %w", err)
	}
	defer rows.Close()

	var patients []*domain.PatientIdentity
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning patient row: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// CountActive returns the number of active patients.
func (r *PatientRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM patients WHERE NOT deleted").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting patients: %w", err)
	}
	return count, nil
}
