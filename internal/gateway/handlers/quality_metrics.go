package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/surgeonmatch/surgeonmatch/internal/gateway/cache"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/database"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

// QualityMetricStore is the persistence surface the metric handlers need.
type QualityMetricStore interface {
	CreateQualityMetric(ctx context.Context, m *models.QualityMetric) error
	GetQualityMetric(ctx context.Context, id string) (*models.QualityMetric, error)
	ListQualityMetrics(ctx context.Context, surgeonID string, limit, offset int) ([]*models.QualityMetric, error)
	UpdateQualityMetric(ctx context.Context, m *models.QualityMetric) error
	DeleteQualityMetric(ctx context.Context, id string) error
	GetSurgeon(ctx context.Context, id string) (*models.Surgeon, error)
}

// QualityMetricHandler serves the /api/v1/quality-metrics endpoints.
type QualityMetricHandler struct {
	store       QualityMetricStore
	invalidator *cache.Invalidator
}

func NewQualityMetricHandler(store QualityMetricStore, invalidator *cache.Invalidator) *QualityMetricHandler {
	return &QualityMetricHandler{store: store, invalidator: invalidator}
}

func (h *QualityMetricHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type qualityMetricRequest struct {
	SurgeonID     string  `json:"surgeon_id"`
	MetricName    string  `json:"metric_name"`
	MetricValue   float64 `json:"metric_value"`
	MetricUnit    *string `json:"metric_unit"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	ProcedureCode *string `json:"procedure_code"`
}

func (req *qualityMetricRequest) validate() (start, end time.Time, problems map[string]string) {
	problems = map[string]string{}
	if req.SurgeonID == "" {
		problems["surgeon_id"] = "surgeon_id is required"
	}
	if req.MetricName == "" {
		problems["metric_name"] = "metric_name is required"
	}

	var err error
	if req.StartDate == "" {
		problems["start_date"] = "start_date is required"
	} else if start, err = time.Parse("2006-01-02", req.StartDate); err != nil {
		problems["start_date"] = "start_date must be YYYY-MM-DD"
	}
	if req.EndDate == "" {
		problems["end_date"] = "end_date is required"
	} else if end, err = time.Parse("2006-01-02", req.EndDate); err != nil {
		problems["end_date"] = "end_date must be YYYY-MM-DD"
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		problems["end_date"] = "end_date must not precede start_date"
	}

	if len(problems) == 0 {
		problems = nil
	}
	return start, end, problems
}

func (h *QualityMetricHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	surgeonID := r.URL.Query().Get("surgeon_id")

	metrics, err := h.store.ListQualityMetrics(r.Context(), surgeonID, limit, offset)
	if err != nil {
		log.Printf("list quality metrics failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}
	if metrics == nil {
		metrics = []*models.QualityMetric{}
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *QualityMetricHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	metric, err := h.store.GetQualityMetric(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Quality metric not found")
		return
	}
	if err != nil {
		log.Printf("get quality metric %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, metric)
}

func (h *QualityMetricHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req qualityMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}
	start, end, problems := req.validate()
	if problems != nil {
		writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed", problems)
		return
	}

	if _, err := h.store.GetSurgeon(r.Context(), req.SurgeonID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed",
				map[string]string{"surgeon_id": "surgeon does not exist"})
			return
		}
		log.Printf("surgeon lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	metric := models.QualityMetric{
		SurgeonID:     req.SurgeonID,
		MetricName:    req.MetricName,
		MetricValue:   req.MetricValue,
		MetricUnit:    req.MetricUnit,
		StartDate:     start,
		EndDate:       end,
		ProcedureCode: req.ProcedureCode,
	}

	if err := h.store.CreateQualityMetric(r.Context(), &metric); err != nil {
		log.Printf("create quality metric failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	h.invalidator.Invalidate(r.Context(), cache.EntityQualityMetric, "")
	writeJSON(w, http.StatusCreated, &metric)
}

func (h *QualityMetricHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req qualityMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}
	start, end, problems := req.validate()
	if problems != nil {
		writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed", problems)
		return
	}

	metric, err := h.store.GetQualityMetric(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Quality metric not found")
		return
	}
	if err != nil {
		log.Printf("get quality metric %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	metric.MetricName = req.MetricName
	metric.MetricValue = req.MetricValue
	metric.MetricUnit = req.MetricUnit
	metric.StartDate = start
	metric.EndDate = end
	metric.ProcedureCode = req.ProcedureCode

	if err := h.store.UpdateQualityMetric(r.Context(), metric); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "Quality metric not found")
			return
		}
		log.Printf("update quality metric %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	h.invalidator.Invalidate(r.Context(), cache.EntityQualityMetric, id)
	writeJSON(w, http.StatusOK, metric)
}

func (h *QualityMetricHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteQualityMetric(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "Quality metric not found")
			return
		}
		log.Printf("delete quality metric %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	h.invalidator.Invalidate(r.Context(), cache.EntityQualityMetric, id)
	w.WriteHeader(http.StatusNoContent)
}
