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

// ClaimStore is the persistence surface the claim handlers need.
type ClaimStore interface {
	CreateClaim(ctx context.Context, c *models.Claim) error
	GetClaim(ctx context.Context, id string) (*models.Claim, error)
	ListClaims(ctx context.Context, surgeonID string, limit, offset int) ([]*models.Claim, error)
	UpdateClaim(ctx context.Context, c *models.Claim) error
	DeleteClaim(ctx context.Context, id string) error
	GetSurgeon(ctx context.Context, id string) (*models.Surgeon, error)
}

// ClaimHandler serves the /api/v1/claims endpoints.
type ClaimHandler struct {
	store       ClaimStore
	invalidator *cache.Invalidator
}

func NewClaimHandler(store ClaimStore, invalidator *cache.Invalidator) *ClaimHandler {
	return &ClaimHandler{store: store, invalidator: invalidator}
}

func (h *ClaimHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type claimRequest struct {
	ClaimID              string  `json:"claim_id"`
	SurgeonID            string  `json:"surgeon_id"`
	PatientID            string  `json:"patient_id"`
	ProcedureCode        string  `json:"procedure_code"`
	ProcedureDescription *string `json:"procedure_description"`
	ClaimDate            string  `json:"claim_date"`
	PaidAmount           float64 `json:"paid_amount"`
	AllowedAmount        float64 `json:"allowed_amount"`
	PlaceOfService       *string `json:"place_of_service"`
}

func (req *claimRequest) validate() (time.Time, map[string]string) {
	problems := map[string]string{}
	if req.ClaimID == "" {
		problems["claim_id"] = "claim_id is required"
	}
	if req.SurgeonID == "" {
		problems["surgeon_id"] = "surgeon_id is required"
	}
	if req.PatientID == "" {
		problems["patient_id"] = "patient_id is required"
	}
	if req.ProcedureCode == "" {
		problems["procedure_code"] = "procedure_code is required"
	}
	if req.PaidAmount < 0 {
		problems["paid_amount"] = "paid_amount must not be negative"
	}
	if req.AllowedAmount < 0 {
		problems["allowed_amount"] = "allowed_amount must not be negative"
	}

	var claimDate time.Time
	if req.ClaimDate == "" {
		problems["claim_date"] = "claim_date is required"
	} else {
		var err error
		claimDate, err = time.Parse("2006-01-02", req.ClaimDate)
		if err != nil {
			problems["claim_date"] = "claim_date must be YYYY-MM-DD"
		}
	}

	if len(problems) == 0 {
		return claimDate, nil
	}
	return claimDate, problems
}

func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	surgeonID := r.URL.Query().Get("surgeon_id")

	claims, err := h.store.ListClaims(r.Context(), surgeonID, limit, offset)
	if err != nil {
		log.Printf("list claims failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}
	if claims == nil {
		claims = []*models.Claim{}
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	claim, err := h.store.GetClaim(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Claim not found")
		return
	}
	if err != nil {
		log.Printf("get claim %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}
	claimDate, problems := req.validate()
	if problems != nil {
		writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed", problems)
		return
	}

	// The referenced surgeon must exist; claims are never orphaned.
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

	claim := models.Claim{
		ClaimID:              req.ClaimID,
		SurgeonID:            req.SurgeonID,
		PatientID:            req.PatientID,
		ProcedureCode:        req.ProcedureCode,
		ProcedureDescription: req.ProcedureDescription,
		ClaimDate:            claimDate,
		PaidAmount:           req.PaidAmount,
		AllowedAmount:        req.AllowedAmount,
		PlaceOfService:       req.PlaceOfService,
	}

	if err := h.store.CreateClaim(r.Context(), &claim); err != nil {
		log.Printf("create claim failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	h.invalidator.Invalidate(r.Context(), cache.EntityClaim, "")
	writeJSON(w, http.StatusCreated, &claim)
}

func (h *ClaimHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}
	claimDate, problems := req.validate()
	if problems != nil {
		writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed", problems)
		return
	}

	claim, err := h.store.GetClaim(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Claim not found")
		return
	}
	if err != nil {
		log.Printf("get claim %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	claim.PatientID = req.PatientID
	claim.ProcedureCode = req.ProcedureCode
	claim.ProcedureDescription = req.ProcedureDescription
	claim.ClaimDate = claimDate
	claim.PaidAmount = req.PaidAmount
	claim.AllowedAmount = req.AllowedAmount
	claim.PlaceOfService = req.PlaceOfService

	if err := h.store.UpdateClaim(r.Context(), claim); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "Claim not found")
			return
		}
		log.Printf("update claim %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	h.invalidator.Invalidate(r.Context(), cache.EntityClaim, id)
	writeJSON(w, http.StatusOK, claim)
}

func (h *ClaimHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteClaim(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "Claim not found")
			return
		}
		log.Printf("delete claim %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	h.invalidator.Invalidate(r.Context(), cache.EntityClaim, id)
	w.WriteHeader(http.StatusNoContent)
}
