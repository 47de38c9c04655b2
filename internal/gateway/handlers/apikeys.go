package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/surgeonmatch/surgeonmatch/internal/gateway/auth"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/database"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

// APIKeyStore is the persistence surface the key management handlers need.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKey(ctx context.Context, keyID string) (*models.APIKey, error)
	ListAPIKeys(ctx context.Context, limit, offset int) ([]*models.APIKey, error)
	UpdateAPIKey(ctx context.Context, key *models.APIKey) error
	DeleteAPIKey(ctx context.Context, keyID string) error
	ListUsage(ctx context.Context, keyID string, limit int) ([]*models.UsageLog, error)
}

// APIKeyHandler manages API key records and admin token issuance. Management
// endpoints require a Bearer admin token obtained from the token endpoint.
type APIKeyHandler struct {
	store  APIKeyStore
	tokens *auth.TokenService
}

func NewAPIKeyHandler(store APIKeyStore, tokens *auth.TokenService) *APIKeyHandler {
	return &APIKeyHandler{store: store, tokens: tokens}
}

func (h *APIKeyHandler) Routes(r chi.Router) {
	r.Use(h.RequireAdmin)
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// RequireAdmin rejects requests without a valid Bearer admin token.
func (h *APIKeyHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Admin token required")
			return
		}
		if _, err := h.tokens.ValidateToken(raw); err != nil {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IssueToken exchanges the already-verified API key for a short-lived admin
// token. Mounted behind the authentication middleware so the identity is
// always present.
func (h *APIKeyHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Authentication required")
		return
	}

	token, err := h.tokens.IssueToken(identity)
	if err != nil {
		log.Printf("token issuance failed for key %s: %v", identity.ID, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

type createKeyRequest struct {
	Name            string  `json:"name"`
	CreatedBy       *string `json:"created_by"`
	ExpiresAt       *string `json:"expires_at"`
	RateLimit       *int    `json:"rate_limit"`
	RateLimitPeriod *int    `json:"rate_limit_period"`
}

// createdKeyResponse carries the raw key exactly once, at creation time.
type createdKeyResponse struct {
	*models.APIKey
	Key string `json:"key"`
}

func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed",
			map[string]string{"name": "name is required"})
		return
	}
	if req.RateLimit != nil && *req.RateLimit <= 0 {
		writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed",
			map[string]string{"rate_limit": "rate_limit must be positive"})
		return
	}
	if req.RateLimitPeriod != nil && *req.RateLimitPeriod <= 0 {
		writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed",
			map[string]string{"rate_limit_period": "rate_limit_period must be positive"})
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed",
				map[string]string{"expires_at": "expires_at must be RFC 3339"})
			return
		}
		expiresAt = &parsed
	}

	rawKey, keyHash, err := auth.GenerateKey()
	if err != nil {
		log.Printf("key generation failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	key := models.APIKey{
		KeyHash:         keyHash,
		Name:            req.Name,
		IsActive:        true,
		CreatedBy:       req.CreatedBy,
		ExpiresAt:       expiresAt,
		RateLimit:       req.RateLimit,
		RateLimitPeriod: req.RateLimitPeriod,
	}

	if err := h.store.CreateAPIKey(r.Context(), &key); err != nil {
		log.Printf("create api key failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, createdKeyResponse{APIKey: &key, Key: rawKey})
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	keys, err := h.store.ListAPIKeys(r.Context(), limit, offset)
	if err != nil {
		log.Printf("list api keys failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	writeJSON(w, http.StatusOK, keys)
}

type keyDetailResponse struct {
	*models.APIKey
	RecentUsage []*models.UsageLog `json:"recent_usage"`
}

func (h *APIKeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	key, err := h.store.GetAPIKey(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "API key not found")
		return
	}
	if err != nil {
		log.Printf("get api key %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	usage, err := h.store.ListUsage(r.Context(), id, 50)
	if err != nil {
		log.Printf("list usage for key %s failed: %v", id, err)
		usage = nil
	}
	if usage == nil {
		usage = []*models.UsageLog{}
	}

	writeJSON(w, http.StatusOK, keyDetailResponse{APIKey: key, RecentUsage: usage})
}

type updateKeyRequest struct {
	Name            *string `json:"name"`
	IsActive        *bool   `json:"is_active"`
	RateLimit       *int    `json:"rate_limit"`
	RateLimitPeriod *int    `json:"rate_limit_period"`
}

func (h *APIKeyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}

	key, err := h.store.GetAPIKey(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "API key not found")
		return
	}
	if err != nil {
		log.Printf("get api key %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed",
				map[string]string{"name": "name must not be empty"})
			return
		}
		key.Name = *req.Name
	}
	if req.IsActive != nil {
		key.IsActive = *req.IsActive
	}
	if req.RateLimit != nil {
		if *req.RateLimit <= 0 {
			writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed",
				map[string]string{"rate_limit": "rate_limit must be positive"})
			return
		}
		key.RateLimit = req.RateLimit
	}
	if req.RateLimitPeriod != nil {
		if *req.RateLimitPeriod <= 0 {
			writeErrorDetail(w, http.StatusUnprocessableEntity, CodeValidationError, "Validation failed",
				map[string]string{"rate_limit_period": "rate_limit_period must be positive"})
			return
		}
		key.RateLimitPeriod = req.RateLimitPeriod
	}

	if err := h.store.UpdateAPIKey(r.Context(), key); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "API key not found")
			return
		}
		log.Printf("update api key %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, key)
}

func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteAPIKey(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "API key not found")
			return
		}
		log.Printf("delete api key %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
