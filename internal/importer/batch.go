// Package importer runs batch imports of patient records against the
// registry, one transaction per record.
package importer

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS/internal/domain"
	"github.com/AzizElGhezal/NRIS/internal/registry"
	"github.com/AzizElGhezal/NRIS/internal/service"
	"github.com/AzizElGhezal/NRIS/internal/thresholds"
)

const defaultWorkers = 4

// Record is one batch import entry: a candidate identity plus the
// metrics of the result accompanying it.
type Record struct {
	Patient domain.PatientIdentity `json:"patient"`
	Metrics domain.Metrics         `json:"metrics"`
}

// Outcome is the per-record import result. Records fail independently;
// a failed record never aborts its siblings.
type Outcome struct {
	Index     int                     `json:"index"`
	MRN       string                  `json:"mrn"`
	Action    registry.DecisionAction `json:"action,omitempty"`
	PatientID int64                   `json:"patient_id,omitempty"`
	ResultID  string                  `json:"result_id,omitempty"`
	Category  domain.Category         `json:"category,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// Summary aggregates a finished batch.
type Summary struct {
	Created  int       `json:"created"`
	Replaced int       `json:"replaced"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
}

// BatchImporter classifies and imports records through the registry.
type BatchImporter struct {
	store      registry.Store
	reconciler *registry.Reconciler
	classifier *service.ClassifierService
	provider   thresholds.Provider
	workers    int
	logger     *logrus.Logger
}

// NewBatchImporter creates a new batch importer.
func NewBatchImporter(
	store registry.Store,
	reconciler *registry.Reconciler,
	classifier *service.ClassifierService,
	provider thresholds.Provider,
	cfg domain.ImportConfig,
	logger *logrus.Logger,
) *BatchImporter {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &BatchImporter{
		store:      store,
		reconciler: reconciler,
		classifier: classifier,
		provider:   provider,
		workers:    workers,
		logger:     logger,
	}
}

// Import processes the batch with a bounded worker pool. Cancelling the
// context stops new records from being issued; records already
// committed stand. The summary covers every record in input order.
func (b *BatchImporter) Import(ctx context.Context, records []Record) *Summary {
	jobs := make(chan int)
	outcomes := make([]Outcome, len(records))

	var wg sync.WaitGroup
	for w := 0; w < b.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = b.importRecord(ctx, i, records[i])
			}
		}()
	}

feed:
	for i := range records {
		select {
		case <-ctx.Done():
			for j := i; j < len(records); j++ {
				outcomes[j] = Outcome{Index: j, MRN: records[j].Patient.MRN, Error: ctx.Err().Error()}
			}
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	summary := &Summary{Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			summary.Failed++
		case o.Action == registry.DecisionCreateNew:
			summary.Created++
		case o.Action == registry.DecisionReplaceOrphan:
			summary.Replaced++
		case o.Action == registry.DecisionSkipDuplicate:
			summary.Skipped++
		}
	}

	b.logger.WithFields(logrus.Fields{
		"records":  len(records),
		"created":  summary.Created,
		"replaced": summary.Replaced,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
	}).Info("Batch import completed")

	return summary
}

// importRecord runs one record's classify-reconcile-write sequence.
// The registry half runs in a single transaction; an MRN race detected
// by the store's uniqueness constraint is retried once against the new
// registry state.
func (b *BatchImporter) importRecord(ctx context.Context, index int, rec Record) Outcome {
	outcome := Outcome{Index: index, MRN: rec.Patient.MRN}

	ts, err := b.provider.Snapshot(ctx)
	if err != nil {
		outcome.Error = fmt.Sprintf("thresholds unavailable: %v", err)
		return outcome
	}

	disposition, err := b.classifier.Classify(rec.Metrics, ts)
	if err != nil {
		outcome.Error = fmt.Sprintf("classification failed: %v", err)
		return outcome
	}
	outcome.Category = disposition.Category

	err = b.writeRecord(ctx, rec, disposition, &outcome)
	if domain.IsReconciliationConflict(err) {
		b.logger.WithFields(logrus.Fields{
			"mrn":   rec.Patient.MRN,
			"index": index,
		}).Warn("Import lost an MRN race, retrying once")
		err = b.writeRecord(ctx, rec, disposition, &outcome)
	}
	if err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}

func (b *BatchImporter) writeRecord(ctx context.Context, rec Record, disposition *domain.Disposition, outcome *Outcome) error {
	return b.store.WithinTx(ctx, func(ctx context.Context, s registry.Store) error {
		candidate := rec.Patient

		decision, err := b.reconciler.Decide(ctx, s, candidate)
		if err != nil {
			return err
		}
		if err := b.reconciler.Apply(ctx, s, decision, &candidate); err != nil {
			return err
		}

		outcome.Action = decision.Action
		outcome.PatientID = candidate.ID

		if decision.Action == registry.DecisionSkipDuplicate {
			return nil
		}

		result := &domain.ResultRecord{
			PatientID:   candidate.ID,
			Metrics:     rec.Metrics,
			Disposition: disposition,
		}
		if err := s.SaveResult(ctx, result); err != nil {
			return err
		}
		outcome.ResultID = result.ID
		return nil
	})
}
