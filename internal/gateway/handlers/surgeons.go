package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/surgeonmatch/surgeonmatch/internal/gateway/cache"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/database"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// parsePagination reads limit/offset query parameters with bounds applied.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// SurgeonStore is the persistence surface the surgeon handlers need.
type SurgeonStore interface {
	CreateSurgeon(ctx context.Context, s *models.Surgeon) error
	GetSurgeon(ctx context.Context, id string) (*models.Surgeon, error)
	GetSurgeonByNPI(ctx context.Context, npi string) (*models.Surgeon, error)
	ListSurgeons(ctx context.Context, filter database.SurgeonFilter, limit, offset int) ([]*models.Surgeon, error)
	UpdateSurgeon(ctx context.Context, s *models.Surgeon) error
	DeleteSurgeon(ctx context.Context, id string) error
}

// SurgeonHandler serves the /api/v1/surgeons endpoints. Every write
// invalidates the surgeon caches plus the dependent claim and quality-metric
// list caches.
type SurgeonHandler struct {
	store       SurgeonStore
	invalidator *cache.Invalidator
}

func NewSurgeonHandler(store SurgeonStore, invalidator *cache.Invalidator) *SurgeonHandler {
	return &SurgeonHandler{store: store, invalidator: invalidator}
}

func (h *SurgeonHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/npi/{npi}", h.GetByNPI)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type surgeonRequest struct {
	NPI                  string   `json:"npi"`
	FirstName            string   `json:"first_name"`
	LastName             string   `json:"last_name"`
	SpecialtyCode        string   `json:"specialty_code"`
	SpecialtyDescription *string  `json:"specialty_description"`
	AddressLine1         *string  `json:"address_line1"`
	AddressLine2         *string  `json:"address_line2"`
	City                 *string  `json:"city"`
	State                *string  `json:"state"`
	ZipCode              *string  `json:"zip_code"`
	Latitude             *float64 `json:"latitude"`
	Longitude            *float64 `json:"longitude"`
	AcceptsMedicare      bool     `json:"accepts_medicare"`
	IsActive             *bool    `json:"is_active"`
}

func (req *surgeonRequest) validate() map[string]string {
	problems := map[string]string{}
	if req.NPI == "" {
		problems["npi"] = "npi is required"
	} else if len(req.NPI) != 10 {
		problems["npi"] = "npi must be 10 digits"
	}
	if req.FirstName == "" {
		problems["first_name"] = "first_name is required"
	}
	if req.LastName == "" {
		problems["last_name"] = "last_name is required"
	}
	if req.SpecialtyCode == "" {
		problems["specialty_code"] = "specialty_code is required"
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}

func (req *surgeonRequest) apply(s *models.Surgeon) {
	s.NPI = req.NPI
	s.FirstName = req.FirstName
	s.LastName = req.LastName
	s.SpecialtyCode = req.SpecialtyCode
	s.SpecialtyDescription = req.SpecialtyDescription
	s.AddressLine1 = req.AddressLine1
	s.AddressLine2 = req.AddressLine2
	s.City = req.City
	s.State = req.State
	s.ZipCode = req.ZipCode
	s.Latitude = req.Latitude
	s.Longitude = req.Longitude
	s.AcceptsMedicare = req.AcceptsMedicare
	s.IsActive = true
	if req.IsActive != nil {
		s.IsActive = *req.IsActive
	}
}

func (h *SurgeonHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	filter := database.SurgeonFilter{
		Specialty: r.URL.Query().Get("specialty"),
		State:     r.URL.Query().Get("state"),
		City:      r.URL.Query().Get("city"),
	}

	surgeons, err := h.store.ListSurgeons(r.Context(), filter, limit, offset)
	if err != nil {
		log.Printf("list surgeons failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}
	if surgeons == nil {
		surgeons = []*models.Surgeon{}
	}
	writeJSON(w, http.StatusOK, surgeons)
}

func (h *SurgeonHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	surgeon, err := h.store.GetSurgeon(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Surgeon not found")
		return
	}
	if err != nil {
		log.Printf("get surgeon %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, surgeon)
}

func (h *SurgeonHandler) GetByNPI(w http.ResponseWriter, r *http.Request) {
	npi := chi.URLParam(r, "npi")

	surgeon, err := h.store.GetSurgeonByNPI(r.Context(), npi)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Surgeon not found")
		return
	}
	if err != nil {
		log.Printf("get surgeon by npi %s failed: %v", npi, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, surgeon)
}

func (h *SurgeonHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req surgeonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}
	if problems := req.validate(); problems != nil {
		writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed", problems)
		return
	}

	if _, err := h.store.GetSurgeonByNPI(r.Context(), req.NPI); err == nil {
		writeError(w, http.StatusConflict, CodeValidationError, "A surgeon with this NPI already exists")
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		log.Printf("npi lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	var surgeon models.Surgeon
	req.apply(&surgeon)

	if err := h.store.CreateSurgeon(r.Context(), &surgeon); err != nil {
		log.Printf("create surgeon failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	h.invalidator.Invalidate(r.Context(), cache.EntitySurgeon, "")
	writeJSON(w, http.StatusCreated, &surgeon)
}

func (h *SurgeonHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req surgeonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}
	if problems := req.validate(); problems != nil {
		writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed", problems)
		return
	}

	surgeon, err := h.store.GetSurgeon(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Surgeon not found")
		return
	}
	if err != nil {
		log.Printf("get surgeon %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	req.apply(surgeon)
	surgeon.ID = id

	if err := h.store.UpdateSurgeon(r.Context(), surgeon); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "Surgeon not found")
			return
		}
		log.Printf("update surgeon %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	h.invalidator.Invalidate(r.Context(), cache.EntitySurgeon, id)
	writeJSON(w, http.StatusOK, surgeon)
}

func (h *SurgeonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteSurgeon(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "Surgeon not found")
			return
		}
		log.Printf("delete surgeon %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	h.invalidator.Invalidate(r.Context(), cache.EntitySurgeon, id)
	w.WriteHeader(http.StatusNoContent)
}
