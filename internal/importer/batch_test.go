package importer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzizElGhezal/NRIS/internal/domain"
	"github.com/AzizElGhezal/NRIS/internal/registry"
	"github.com/AzizElGhezal/NRIS/internal/service"
	"github.com/AzizElGhezal/NRIS/internal/thresholds"
)

func newTestImporter(t *testing.T, workers int) (*BatchImporter, registry.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := registry.NewSQLiteStore(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider, err := thresholds.NewLocalProvider(nil)
	require.NoError(t, err)

	imp := NewBatchImporter(
		store,
		registry.NewReconciler(store, logger),
		service.NewClassifierService(logger),
		provider,
		domain.ImportConfig{Workers: workers},
		logger,
	)
	return imp, store
}

func cleanRecord(mrn string) Record {
	return Record{
		Patient: domain.PatientIdentity{MRN: mrn, FullName: "Jane Doe", Age: 32},
		Metrics: domain.Metrics{
			Panel:        domain.PanelStandard,
			ReadsM:       8.2,
			CFF:          9.8,
			GCContent:    41.2,
			QualityScore: 1.2,
			UniqueRate:   75.0,
			ErrorRate:    0.4,
			SCAType:      domain.SCAXX,
		},
	}
}

func TestImportCreatesAndClassifies(t *testing.T) {
	imp, store := newTestImporter(t, 2)

	summary := imp.Import(context.Background(), []Record{
		cleanRecord("100001"),
		cleanRecord("100002"),
	})

	assert.Equal(t, 2, summary.Created)
	assert.Zero(t, summary.Failed)
	for _, o := range summary.Outcomes {
		assert.Empty(t, o.Error)
		assert.Equal(t, registry.DecisionCreateNew, o.Action)
		assert.NotEmpty(t, o.ResultID)
		assert.Equal(t, domain.ScreenNegative, o.Category)
	}

	p, err := store.FindActiveByMRN(context.Background(), "100001")
	require.NoError(t, err)
	count, err := store.CountResults(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// Concurrent workers share the single SQLite write lock; every record
// must still commit rather than fail busy.
func TestImportConcurrentWorkersAllCommit(t *testing.T) {
	imp, store := newTestImporter(t, 4)
	ctx := context.Background()

	records := make([]Record, 12)
	for i := range records {
		records[i] = cleanRecord(fmt.Sprintf("%06d", 100001+i))
	}

	summary := imp.Import(ctx, records)
	assert.Equal(t, 12, summary.Created)
	assert.Zero(t, summary.Failed)

	for _, rec := range records {
		p, err := store.FindActiveByMRN(ctx, rec.Patient.MRN)
		require.NoError(t, err)
		count, err := store.CountResults(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}
}

func TestImportDuplicateSkipsWithoutNewResult(t *testing.T) {
	imp, store := newTestImporter(t, 1)
	ctx := context.Background()

	first := imp.Import(ctx, []Record{cleanRecord("100001")})
	require.Zero(t, first.Failed)

	second := imp.Import(ctx, []Record{cleanRecord("100001")})
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, second.Outcomes[0].ResultID)

	p, err := store.FindActiveByMRN(ctx, "100001")
	require.NoError(t, err)
	count, err := store.CountResults(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "duplicate import must not add results")
}

func TestImportReplacesOrphan(t *testing.T) {
	imp, store := newTestImporter(t, 1)
	ctx := context.Background()

	// An orphan row: a patient with no results.
	orphan := domain.PatientIdentity{MRN: "100001", FullName: "Old Name"}
	require.NoError(t, store.CreatePatient(ctx, &orphan))

	summary := imp.Import(ctx, []Record{cleanRecord("100001")})
	require.Zero(t, summary.Failed)
	assert.Equal(t, 1, summary.Replaced)
	assert.Equal(t, orphan.ID, summary.Outcomes[0].PatientID)

	p, err := store.FindActiveByMRN(ctx, "100001")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.FullName)
}

func TestImportRecordsFailIndependently(t *testing.T) {
	imp, _ := newTestImporter(t, 1)

	bad := cleanRecord("100002")
	bad.Metrics.Panel = "NIPT Extra"

	summary := imp.Import(context.Background(), []Record{
		cleanRecord("100001"),
		bad,
		cleanRecord("100003"),
	})

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, summary.Outcomes[0].Error)
	assert.Contains(t, summary.Outcomes[1].Error, "classification failed")
	assert.Empty(t, summary.Outcomes[2].Error)
}

func TestImportQCFailStillPersists(t *testing.T) {
	imp, store := newTestImporter(t, 1)

	rec := cleanRecord("100001")
	rec.Metrics.UniqueRate = 60.0

	summary := imp.Import(context.Background(), []Record{rec})
	require.Zero(t, summary.Failed)
	assert.Equal(t, domain.QCFail, summary.Outcomes[0].Category)
	assert.NotEmpty(t, summary.Outcomes[0].ResultID)

	p, err := store.FindActiveByMRN(context.Background(), "100001")
	require.NoError(t, err)
	count, err := store.CountResults(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportCancelledContext(t *testing.T) {
	imp, _ := newTestImporter(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := imp.Import(ctx, []Record{cleanRecord("100001"), cleanRecord("100002")})
	assert.Equal(t, 2, summary.Failed)
	for _, o := range summary.Outcomes {
		assert.Contains(t, o.Error, "context canceled")
	}
}
