package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzizElGhezal/NRIS/internal/domain"
	"github.com/AzizElGhezal/NRIS/internal/importer"
	"github.com/AzizElGhezal/NRIS/internal/registry"
	"github.com/AzizElGhezal/NRIS/internal/service"
	"github.com/AzizElGhezal/NRIS/internal/thresholds"
	"github.com/AzizElGhezal/NRIS/pkg/report"
)

// jsonMap builds ad hoc JSON request payloads.
type jsonMap = map[string]any

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() *domain.Config {
	cfg := &domain.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Import.Workers = 2
	cfg.Import.RatePerSecond = 1000
	cfg.Import.Burst = 1000
	cfg.Logging.Level = "error"
	return cfg
}

// newTestServer wires a full server against an on-disk SQLite registry
// and the baseline threshold set. The reporting repositories stay nil.
func newTestServer(t *testing.T, cfg *domain.Config) (*Server, registry.Store) {
	t.Helper()

	store, err := registry.NewSQLiteStore(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := testLogger()
	provider, err := thresholds.NewLocalProvider(nil)
	require.NoError(t, err)

	classifier := service.NewClassifierService(logger)
	reconciler := registry.NewReconciler(store, logger)

	deps := Dependencies{
		Extractor:  report.NewExtractor(cfg.Extraction, logger),
		Validator:  report.NewValidator(),
		Classifier: classifier,
		Provider:   provider,
		Store:      store,
		Importer:   importer.NewBatchImporter(store, reconciler, classifier, provider, cfg.Import, logger),
	}
	return NewServer(cfg, deps, logger), store
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func cleanMetrics() domain.Metrics {
	return domain.Metrics{
		Panel:        domain.PanelStandard,
		ReadsM:       8.2,
		CFF:          9.8,
		GCContent:    41.0,
		QualityScore: 1.2,
		UniqueRate:   75.0,
		ErrorRate:    0.4,
		ZScoreT13:    -0.2,
		ZScoreT18:    0.3,
		ZScoreT21:    1.1,
		SCAType:      domain.SCAXX,
	}
}

func TestHealthAndReady(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])

	rec = doJSON(t, s, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	echo := httptest.NewRecorder()
	s.router.ServeHTTP(echo, req)
	assert.Equal(t, "req-42", echo.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := doJSON(t, s, http.MethodOptions, "/api/v1/reports/extract", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestExtractEndpoint(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	text := "Patient Name: Jane Doe\nMRN: 123456\nMaternal Age: 32\n" +
		"Trisomy 21 (Z: 1.1)\nTrisomy 18 (Z: 0.3)\nTrisomy 13 (Z: -0.2)\n" +
		"Fetal Fraction: 9.8%\nGestational Age: 12 weeks\n"

	rec := doJSON(t, s, http.MethodPost, "/api/v1/reports/extract", jsonMap{"text": text})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "patient_name")
	assert.Contains(t, fields, "mrn")

	rec = doJSON(t, s, http.MethodPost, "/api/v1/reports/extract", jsonMap{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateFieldEndpoint(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := doJSON(t, s, http.MethodPost, "/api/v1/fields/validate",
		jsonMap{"field": "age", "value": "32"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["accepted"])

	rec = doJSON(t, s, http.MethodPost, "/api/v1/fields/validate",
		jsonMap{"field": "age", "value": "300"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["accepted"])

	rec = doJSON(t, s, http.MethodPost, "/api/v1/fields/validate", jsonMap{"value": "32"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassifyEndpoint(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := doJSON(t, s, http.MethodPost, "/api/v1/results/classify",
		jsonMap{"metrics": cleanMetrics()})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, string(domain.ScreenNegative), body["category"])
	assert.Equal(t, true, body["reportable"])
	assert.Equal(t, "baseline-v1", body["threshold_version"])
}

func TestClassifyEndpointRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	bad := cleanMetrics()
	bad.Panel = "NIPT Imaginary"
	rec := doJSON(t, s, http.MethodPost, "/api/v1/results/classify", jsonMap{"metrics": bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/results/classify",
		jsonMap{"metrics": cleanMetrics(), "threshold_version": "no-such-version"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportEndpoint(t *testing.T) {
	s, store := newTestServer(t, testConfig())

	records := []importer.Record{
		{
			Patient: domain.PatientIdentity{MRN: "123456", FullName: "Jane Doe", Age: 32},
			Metrics: cleanMetrics(),
		},
		{
			Patient: domain.PatientIdentity{MRN: "654321", FullName: "Mary Major", Age: 35},
			Metrics: cleanMetrics(),
		},
	}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/imports", jsonMap{"records": records})
	require.Equal(t, http.StatusOK, rec.Code)

	var summary importer.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, summary.Failed)

	p, err := store.FindActiveByMRN(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.FullName)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/imports", jsonMap{"records": []importer.Record{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportEndpointRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Import.RatePerSecond = 0.001
	cfg.Import.Burst = 1
	s, _ := newTestServer(t, cfg)

	records := []importer.Record{{
		Patient: domain.PatientIdentity{MRN: "123456", FullName: "Jane Doe", Age: 32},
		Metrics: cleanMetrics(),
	}}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/imports", jsonMap{"records": records})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/imports", jsonMap{"records": records})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestDeleteAndRestorePatient(t *testing.T) {
	s, store := newTestServer(t, testConfig())
	ctx := context.Background()

	p := &domain.PatientIdentity{MRN: "123456", FullName: "Jane Doe", Age: 32}
	require.NoError(t, store.CreatePatient(ctx, p))

	rec := doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/patients/%d", p.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := store.FindActiveByMRN(ctx, "123456")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/patients/%d/restore", p.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	restored, err := store.FindActiveByMRN(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, p.ID, restored.ID)

	rec = doJSON(t, s, http.MethodDelete, "/api/v1/patients/999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRestoreConflictsWithActiveMRN(t *testing.T) {
	s, store := newTestServer(t, testConfig())
	ctx := context.Background()

	first := &domain.PatientIdentity{MRN: "123456", FullName: "Jane Doe", Age: 32}
	require.NoError(t, store.CreatePatient(ctx, first))
	require.NoError(t, store.SoftDeletePatient(ctx, first.ID))

	second := &domain.PatientIdentity{MRN: "123456", FullName: "Mary Major", Age: 35}
	require.NoError(t, store.CreatePatient(ctx, second))

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/patients/%d/restore", first.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMaternalAgeRiskEndpoint(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := doJSON(t, s, http.MethodGet, "/api/v1/risk/maternal-age?age=38", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	risk, ok := body["risk"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 1.0/167, risk["t21"], 1e-9)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/risk/maternal-age?age=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportingEndpointsUnavailableWithoutDatabase(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := doJSON(t, s, http.MethodGet, "/api/v1/patients", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/stats/categories", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
