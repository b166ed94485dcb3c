package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS/internal/domain"
	"github.com/AzizElGhezal/NRIS/internal/importer"
)

// extractRequest carries raw report text for field extraction.
type extractRequest struct {
	Text string `json:"text" binding:"required"`
}

// validateFieldRequest carries one raw field value for validation.
type validateFieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// classifyRequest carries sequencing metrics plus an optional pinned
// threshold version. An empty version classifies against the current
// snapshot.
type classifyRequest struct {
	Metrics          domain.Metrics `json:"metrics" binding:"required"`
	ThresholdVersion string         `json:"threshold_version"`
}

// importRequest carries a batch of records to import.
type importRequest struct {
	Records []importer.Record `json:"records" binding:"required"`
}

// handleHealth reports process liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "nris",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports whether the server can serve clinical output. A
// classification without a usable threshold set must not happen, so
// readiness requires a threshold snapshot.
func (s *Server) handleReady(c *gin.Context) {
	if _, err := s.deps.Provider.Snapshot(c.Request.Context()); err != nil {
		s.logger.WithError(err).Warn("Readiness check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "thresholds unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// handleExtract extracts clinical fields from raw report text.
func (s *Server) handleExtract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	outcome, err := s.deps.Extractor.Extract(req.Text)
	if err != nil {
		var inputErr *domain.ExtractionInputError
		if errors.As(err, &inputErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": inputErr.Error()})
			return
		}
		s.logger.WithError(err).Error("Extraction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "extraction failed"})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// handleValidateField validates one raw field value. Rejections are a
// normal outcome and respond 200 with accepted=false.
func (s *Server) handleValidateField(c *gin.Context) {
	var req validateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "field is required"})
		return
	}

	value, err := s.deps.Validator.Validate(domain.Field(req.Field), req.Value)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusOK, gin.H{
				"accepted": false,
				"error":    validationErr,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted": true,
		"value":    value,
	})
}

// handleClassify classifies one set of sequencing metrics.
func (s *Server) handleClassify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "metrics are required"})
		return
	}

	ts, err := s.resolveThresholds(c, req.ThresholdVersion)
	if err != nil {
		return
	}

	disposition, err := s.deps.Classifier.Classify(req.Metrics, ts)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr})
			return
		}
		var configErr *domain.ClassificationConfigError
		if errors.As(err, &configErr) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": configErr.Error()})
			return
		}
		s.logger.WithError(err).Error("Classification failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "classification failed"})
		return
	}

	c.JSON(http.StatusOK, disposition)
}

// resolveThresholds fetches the requested threshold set, writing the
// error response itself when the lookup fails.
func (s *Server) resolveThresholds(c *gin.Context, version string) (*domain.ThresholdSet, error) {
	ctx := c.Request.Context()

	var (
		ts  *domain.ThresholdSet
		err error
	)
	if version == "" {
		ts, err = s.deps.Provider.Snapshot(ctx)
	} else {
		ts, err = s.deps.Provider.ByVersion(ctx, version)
	}
	if err == nil {
		return ts, nil
	}

	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown threshold version: " + version})
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"version": version,
		"error":   err,
	}).Error("Threshold lookup failed")
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "thresholds unavailable"})
	return nil, err
}

// handleImport runs a batch import. The batch itself always completes;
// per-record failures are reported in the summary.
func (s *Server) handleImport(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "records are required"})
		return
	}
	if len(req.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch is empty"})
		return
	}

	summary := s.deps.Importer.Import(c.Request.Context(), req.Records)
	c.JSON(http.StatusOK, summary)
}

// handleMaternalAgeRisk returns the age-based prior trisomy risks.
func (s *Server) handleMaternalAgeRisk(c *gin.Context) {
	age, err := strconv.Atoi(c.Query("age"))
	if err != nil || age < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "age must be a non-negative integer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"age":  age,
		"risk": domain.MaternalAgeRisk(age),
	})
}

// requireReporting guards endpoints backed by the reporting database.
func (s *Server) requireReporting(c *gin.Context) bool {
	if s.deps.Patients == nil || s.deps.Results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reporting database not configured"})
		return false
	}
	return true
}

// handleListPatients lists active patients, optionally filtered by a
// name search.
func (s *Server) handleListPatients(c *gin.Context) {
	if !s.requireReporting(c) {
		return
	}
	ctx := c.Request.Context()

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	if q := c.Query("q"); q != "" {
		patients, err := s.deps.Patients.SearchByName(ctx, q, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"patients": patients, "count": len(patients)})
		return
	}

	patients, err := s.deps.Patients.ListActive(ctx, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	total, err := s.deps.Patients.CountActive(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"patients": patients, "count": len(patients), "total": total})
}

func parsePatientID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patient id"})
		return 0, false
	}
	return id, true
}

// handleGetPatient fetches one patient row, deleted or not.
func (s *Server) handleGetPatient(c *gin.Context) {
	if !s.requireReporting(c) {
		return
	}
	id, ok := parsePatientID(c)
	if !ok {
		return
	}

	patient, err := s.deps.Patients.GetByID(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "patient not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, patient)
}

// handleListPatientResults returns a patient's results, newest first.
func (s *Server) handleListPatientResults(c *gin.Context) {
	if !s.requireReporting(c) {
		return
	}
	id, ok := parsePatientID(c)
	if !ok {
		return
	}

	records, err := s.deps.Results.ListByPatient(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": records, "count": len(records)})
}

// handleDeletePatient soft-deletes a patient, relabeling its MRN so the
// number becomes reusable immediately.
func (s *Server) handleDeletePatient(c *gin.Context) {
	id, ok := parsePatientID(c)
	if !ok {
		return
	}

	err := s.deps.Store.SoftDeletePatient(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "patient not found"})
		return
	}
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Soft delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "patient_id": id})
}

// handleRestorePatient undoes a soft delete. Restoring fails with a
// conflict when an active patient has taken the original MRN since.
func (s *Server) handleRestorePatient(c *gin.Context) {
	id, ok := parsePatientID(c)
	if !ok {
		return
	}

	err := s.deps.Store.RestorePatient(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "restored", "patient_id": id})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "patient not found"})
	case domain.IsReconciliationConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": "original MRN is in use by an active patient"})
	default:
		s.logger.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Restore failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "restore failed"})
	}
}

// handleGetResult fetches one result record by ID.
func (s *Server) handleGetResult(c *gin.Context) {
	if !s.requireReporting(c) {
		return
	}

	record, err := s.deps.Results.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleCategoryStats aggregates stored results per disposition
// category.
func (s *Server) handleCategoryStats(c *gin.Context) {
	if !s.requireReporting(c) {
		return
	}

	counts, err := s.deps.Results.CountByCategory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": counts})
}
