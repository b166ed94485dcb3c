package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// ResultRepository handles result record queries
type ResultRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *pgxpool.Pool, logger *logrus.Logger) *ResultRepository {
	return &ResultRepository{
		db:  db,
		log: logger,
	}
}

func scanResult(row pgx.Row) (*domain.ResultRecord, error) {
	r := &domain.ResultRecord{}
	var metrics, disposition []byte

	err := row.Scan(&r.ID, &r.PatientID, &metrics, &disposition, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metrics, &r.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}
	r.Disposition = &domain.Disposition{}
	if err := json.Unmarshal(disposition, r.Disposition); err != nil {
		return nil, fmt.Errorf("decoding disposition: %w", err)
	}
	return r, nil
}

// GetByID retrieves one result record.
func (r *ResultRepository) GetByID(ctx context.Context, id string) (*domain.ResultRecord, error) {
	query := `
		SELECT id, patient_id, metrics, disposition, created_at
		FROM results
		WHERE id = $1
	`

	rec, err := scanResult(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"result_id": id,
			"error":     err,
		}).Error("Failed to get result by ID")
		return nil, fmt.Errorf("getting result by ID: %w", err)
	}
	return rec, nil
}

// ListByPatient returns a patient's results, newest first.
func (r *ResultRepository) ListByPatient(ctx context.Context, patientID int64) ([]*domain.ResultRecord, error) {
	query := `
		SELECT id, patient_id, metrics, disposition, created_at
		FROM results
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	var records []*domain.ResultRecord
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByCategory aggregates results per disposition category for
// reporting dashboards.
func (r *ResultRepository) CountByCategory(ctx context.Context) (map[domain.Category]int64, error) {
	query := `
		SELECT disposition->>'category', COUNT(*)
		FROM results
		GROUP BY disposition->>'category'
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("counting results by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Category]int64)
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		counts[domain.Category(category)] = count
	}
	return counts, rows.Err()
}
