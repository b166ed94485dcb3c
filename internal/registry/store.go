// Package registry reconciles candidate patient identities against the
// mutable patient registry and owns its storage contract.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// deletedMRNPrefix labels the MRN of a soft-deleted patient. The
// relabeled form is DELETED_<timestamp>_<original>, which frees the
// original number for immediate reuse while keeping it recoverable.
const deletedMRNPrefix = "DELETED"

// Store is the registry storage contract. Lookup misses return
// domain.ErrNotFound; uniqueness violations surface as
// domain.ReconciliationConflictError.
type Store interface {
	// FindActiveByMRN returns the non-deleted patient carrying the MRN.
	FindActiveByMRN(ctx context.Context, mrn string) (*domain.PatientIdentity, error)

	// CountResults returns the number of results attached to a patient.
	CountResults(ctx context.Context, patientID int64) (int, error)

	// CreatePatient inserts a new registry row and fills in ID and
	// CreatedAt.
	CreatePatient(ctx context.Context, p *domain.PatientIdentity) error

	// UpdatePatient overwrites the demographic fields of an existing
	// row. Orphan replacement reuses the row this way.
	UpdatePatient(ctx context.Context, p *domain.PatientIdentity) error

	// SoftDeletePatient marks a patient deleted and relabels its MRN so
	// the original number becomes reusable. The original MRN is
	// recorded in the patient notes.
	SoftDeletePatient(ctx context.Context, id int64) error

	// RestorePatient undoes a soft delete, recovering the original MRN.
	// Fails with a conflict when an active patient took the number.
	RestorePatient(ctx context.Context, id int64) error

	// SaveResult persists one result record, generating its ID when
	// empty.
	SaveResult(ctx context.Context, r *domain.ResultRecord) error

	// WithinTx runs fn against a transactional view of the store. fn
	// returning an error rolls the transaction back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error

	// Close releases the underlying connections.
	Close() error
}

// relabelDeletedMRN produces the tombstone MRN for a soft delete.
func relabelDeletedMRN(mrn string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s", deletedMRNPrefix, at.UTC().Format("20060102150405"), mrn)
}

// originalMRN recovers the pre-delete MRN from a tombstone label.
func originalMRN(relabeled string) (string, error) {
	parts := strings.SplitN(relabeled, "_", 3)
	if len(parts) != 3 || parts[0] != deletedMRNPrefix {
		return "", fmt.Errorf("MRN %q is not a soft-delete tombstone", relabeled)
	}
	return parts[2], nil
}

// recoveryNote is appended to the patient notes on soft delete so the
// original number survives even if the tombstone label is edited.
func recoveryNote(mrn string, at time.Time) string {
	return fmt.Sprintf("[deleted %s, original MRN %s]", at.UTC().Format(time.RFC3339), mrn)
}
