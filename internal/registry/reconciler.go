package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// DecisionAction is the outcome of reconciling one candidate identity.
type DecisionAction string

const (
	// DecisionCreateNew means no active patient carries the MRN.
	DecisionCreateNew DecisionAction = "CREATE_NEW"

	// DecisionReplaceOrphan means an active patient carries the MRN but
	// has no results; its row is reused for the candidate.
	DecisionReplaceOrphan DecisionAction = "REPLACE_ORPHAN"

	// DecisionSkipDuplicate means an active patient with results
	// already carries the MRN; the candidate is not imported.
	DecisionSkipDuplicate DecisionAction = "SKIP_DUPLICATE"
)

// Decision pairs the reconciliation action with the registry row it
// refers to, when one exists.
type Decision struct {
	Action     DecisionAction `json:"action"`
	ExistingID int64          `json:"existing_id,omitempty"`
}

// Reconciler decides how a candidate identity enters the registry.
// Soft-deleted patients are invisible to it: their MRNs are relabeled,
// so a re-import of the same number is a clean create.
type Reconciler struct {
	store  Store
	logger *logrus.Logger
}

// NewReconciler creates a new reconciler backed by the given store.
func NewReconciler(store Store, logger *logrus.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Reconcile decides the action for a candidate against the current
// registry state.
func (r *Reconciler) Reconcile(ctx context.Context, candidate domain.PatientIdentity) (Decision, error) {
	return r.Decide(ctx, r.store, candidate)
}

// Decide is Reconcile against an explicit store view, letting callers
// run the decision inside a transaction alongside the write it drives.
func (r *Reconciler) Decide(ctx context.Context, s Store, candidate domain.PatientIdentity) (Decision, error) {
	existing, err := s.FindActiveByMRN(ctx, candidate.MRN)
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.WithField("mrn", candidate.MRN).Debug("No active patient for MRN, creating")
		return Decision{Action: DecisionCreateNew}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("failed to look up MRN %q: %w", candidate.MRN, err)
	}

	count, err := s.CountResults(ctx, existing.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count results for patient %d: %w", existing.ID, err)
	}

	decision := Decision{Action: DecisionSkipDuplicate, ExistingID: existing.ID}
	if domain.Orphan(count) {
		decision.Action = DecisionReplaceOrphan
	}

	r.logger.WithFields(logrus.Fields{
		"mrn":         candidate.MRN,
		"existing_id": existing.ID,
		"results":     count,
		"action":      decision.Action,
	}).Debug("Reconciled candidate identity")

	return decision, nil
}

// Apply executes a decision for the candidate against the given store
// view. SkipDuplicate is a no-op; the other actions leave candidate.ID
// set to the row that now holds the identity.
func (r *Reconciler) Apply(ctx context.Context, s Store, decision Decision, candidate *domain.PatientIdentity) error {
	switch decision.Action {
	case DecisionCreateNew:
		if err := s.CreatePatient(ctx, candidate); err != nil {
			return fmt.Errorf("failed to create patient for MRN %q: %w", candidate.MRN, err)
		}
	case DecisionReplaceOrphan:
		candidate.ID = decision.ExistingID
		if err := s.UpdatePatient(ctx, candidate); err != nil {
			return fmt.Errorf("failed to replace orphan %d: %w", decision.ExistingID, err)
		}
	case DecisionSkipDuplicate:
		candidate.ID = decision.ExistingID
	default:
		return fmt.Errorf("unknown reconciliation action %q", decision.Action)
	}
	return nil
}
