package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"grading-service/internal/ensemble"
	"grading-service/internal/metrics"
	"grading-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests
type Handler struct {
	grading *service.GradingService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(grading *service.GradingService, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		grading: grading,
		metrics: m,
		logger:  logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Grading
		api.POST("/grade", h.Grade)
		api.POST("/score/batch", h.ScoreBatch)
		api.GET("/jobs", h.ListJobs)
		api.GET("/jobs/:id", h.GetJobStatus)

		// Training and calibration
		api.POST("/training", h.IngestTraining)
		api.POST("/training/recalibrate", h.Recalibrate)
		api.GET("/calibrations", h.ListCalibrations)

		// Results
		api.GET("/submissions", h.ListSubmissions)
		api.GET("/submissions/:id", h.GetSubmission)
		api.DELETE("/submissions/:id", h.DeleteSubmission)
		api.GET("/results/:id/export", h.ExportResults)

		// Admin
		api.POST("/admin/purge", h.Purge)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

// Grade handles a single document upload
func (h *Handler) Grade(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	up, err := readUpload(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.grading.Grade(c.Request.Context(), up, c.PostForm("applicant_name"))
	if err != nil {
		h.respondError(c, "Failed to grade submission", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ScoreBatch queues many documents for background grading
func (h *Handler) ScoreBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with files is required"})
		return
	}

	headers := form.File["files"]
	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		uploads = append(uploads, up)
	}

	accepted, err := h.grading.SubmitBatch(c.Request.Context(), uploads)
	if err != nil {
		h.respondError(c, "Failed to start batch job", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":      accepted.JobID,
		"total":       accepted.Total,
		"eta_seconds": accepted.ETASeconds,
		"message":     "Batch grading started. Check /api/v1/jobs/" + accepted.JobID + " for status",
	})
}

// ListJobs returns recent batch jobs
func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.grading.ListJobs(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list jobs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetJobStatus returns batch job status
func (h *Handler) GetJobStatus(c *gin.Context) {
	status, err := h.grading.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// IngestTraining stores a human-graded example
func (h *Handler) IngestTraining(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	finalScore, err := strconv.ParseFloat(strings.TrimSpace(c.PostForm("final_score")), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "final_score must be a number"})
		return
	}

	doc, err := readUpload(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := service.TrainingRequest{
		Document:        doc,
		FinalScore:      finalScore,
		TrainingSetName: c.PostForm("training_set_name"),
		Notes:           c.PostForm("notes"),
		LineScoresJSON:  c.PostForm("line_scores_json"),
	}

	if sheet, err := c.FormFile("line_scores"); err == nil {
		up, err := readUpload(sheet)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.LineScoresFile = &up
	}

	out, err := h.grading.IngestTraining(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "Failed to ingest training example", err)
		return
	}

	c.JSON(http.StatusCreated, out)
}

// Recalibrate recomputes model calibrations
func (h *Handler) Recalibrate(c *gin.Context) {
	n, err := h.grading.Recalibrate(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to recalibrate", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// ListCalibrations returns stored calibrations
func (h *Handler) ListCalibrations(c *gin.Context) {
	cals, err := h.grading.Calibrations(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list calibrations", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"calibrations": cals,
		"total":        len(cals),
	})
}

// ListSubmissions returns the latest submissions
func (h *Handler) ListSubmissions(c *gin.Context) {
	subs, err := h.grading.ListSubmissions(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list submissions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submissions": subs,
		"total":       len(subs),
	})
}

// GetSubmission returns aggregated results for one submission
func (h *Handler) GetSubmission(c *gin.Context) {
	res, err := h.grading.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to get submission", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// DeleteSubmission removes a submission and its grades
func (h *Handler) DeleteSubmission(c *gin.Context) {
	id := c.Param("id")
	if err := h.grading.DeleteSubmission(c.Request.Context(), id); err != nil {
		h.respondError(c, "Failed to delete submission", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// ExportResults exports one submission's results as JSON or CSV
func (h *Handler) ExportResults(c *gin.Context) {
	id := c.Param("id")
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format != "json" && format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or csv"})
		return
	}

	res, err := h.grading.Results(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Failed to export results", err)
		return
	}

	if format == "json" {
		c.Header("Content-Type", "application/json")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=submission_%s.json", id))

		encoder := json.NewEncoder(c.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(res); err != nil {
			h.logger.Error("Failed to write JSON export", zap.String("submission_id", id), zap.Error(err))
		}
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=submission_%s_rubric.csv", id))

	if err := writeRubricCSV(c.Writer, res.Result); err != nil {
		h.logger.Error("Failed to write CSV export", zap.String("submission_id", id), zap.Error(err))
	}
}

// writeRubricCSV writes one row per rubric average and reports the first write error
func writeRubricCSV(w io.Writer, res *ensemble.Result) error {
	writer := csv.NewWriter(w)

	// Write header
	if err := writer.Write([]string{"rubric_id", "label", "points_possible", "avg_score", "num_models"}); err != nil {
		return err
	}

	// Write data
	for _, ra := range res.RubricAverages {
		points := ""
		if ra.PointsPossible != nil {
			points = strconv.FormatFloat(*ra.PointsPossible, 'f', -1, 64)
		}
		if err := writer.Write([]string{
			ra.RubricID,
			ra.Label,
			points,
			strconv.FormatFloat(ra.AvgScore, 'f', -1, 64),
			strconv.Itoa(ra.NumModels),
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// Purge deletes every ledger row, reporting each table
func (h *Handler) Purge(c *gin.Context) {
	results := h.grading.Purge(c.Request.Context())

	status := http.StatusOK
	for _, r := range results {
		if !r.OK {
			status = http.StatusMultiStatus
			break
		}
	}

	c.JSON(status, gin.H{"results": results})
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "grading-service",
	})
}

func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	var allFailed *ensemble.AllFailedError

	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &allFailed):
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    ensemble.ErrAllModelsFailed.Error(),
			"failures": allFailed.Failures,
		})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": strings.ToLower(msg[:1]) + msg[1:]})
	}
}

func readUpload(fh *multipart.FileHeader) (service.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return service.Upload{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.Upload{}, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}

	return service.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
