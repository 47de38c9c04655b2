package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/surgeonmatch/surgeonmatch/internal/gateway/cache"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/database"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

type fakeClaimStore struct {
	claims   map[string]*models.Claim
	surgeons map[string]*models.Surgeon
}

func newFakeClaimStore() *fakeClaimStore {
	return &fakeClaimStore{
		claims:   map[string]*models.Claim{},
		surgeons: map[string]*models.Surgeon{},
	}
}

func (s *fakeClaimStore) CreateClaim(ctx context.Context, c *models.Claim) error {
	if c.ID == "" {
		c.ID = "claim-id"
	}
	c.CreatedAt = time.Now().UTC()
	s.claims[c.ID] = c
	return nil
}

func (s *fakeClaimStore) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	c, ok := s.claims[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *fakeClaimStore) ListClaims(ctx context.Context, surgeonID string, limit, offset int) ([]*models.Claim, error) {
	var out []*models.Claim
	for _, c := range s.claims {
		if surgeonID != "" && c.SurgeonID != surgeonID {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeClaimStore) UpdateClaim(ctx context.Context, c *models.Claim) error {
	if _, ok := s.claims[c.ID]; !ok {
		return database.ErrNotFound
	}
	copied := *c
	s.claims[c.ID] = &copied
	return nil
}

func (s *fakeClaimStore) DeleteClaim(ctx context.Context, id string) error {
	if _, ok := s.claims[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.claims, id)
	return nil
}

func (s *fakeClaimStore) GetSurgeon(ctx context.Context, id string) (*models.Surgeon, error) {
	surgeon, ok := s.surgeons[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *surgeon
	return &copied, nil
}

func newClaimRouter(t *testing.T, store *fakeClaimStore) chi.Router {
	t.Helper()
	c := cache.New(newFakeBackend(), time.Minute)
	h := NewClaimHandler(store, cache.NewInvalidator(c))
	r := chi.NewRouter()
	r.Route("/api/v1/claims", h.Routes)
	return r
}

func doJSON(router chi.Router, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const validClaimBody = `{
	"claim_id": "CLM-001",
	"surgeon_id": "s1",
	"patient_id": "p1",
	"procedure_code": "27447",
	"claim_date": "2026-01-15",
	"paid_amount": 1250.50,
	"allowed_amount": 1500.00
}`

func TestClaimCreate(t *testing.T) {
	store := newFakeClaimStore()
	store.surgeons["s1"] = &models.Surgeon{ID: "s1", NPI: "1234567890"}
	r := newClaimRouter(t, store)

	rec := doJSON(r, http.MethodPost, "/api/v1/claims", validClaimBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if len(store.claims) != 1 {
		t.Errorf("stored claims = %d, want 1", len(store.claims))
	}
}

func TestClaimCreateRejectsUnknownSurgeon(t *testing.T) {
	r := newClaimRouter(t, newFakeClaimStore())

	rec := doJSON(r, http.MethodPost, "/api/v1/claims", validClaimBody)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "surgeon does not exist") {
		t.Errorf("body missing surgeon reference problem: %s", rec.Body.String())
	}
}

func TestClaimCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		problem string
	}{
		{"missing claim id", `{"surgeon_id":"s1","patient_id":"p1","procedure_code":"27447","claim_date":"2026-01-15"}`, "claim_id"},
		{"bad date", `{"claim_id":"C","surgeon_id":"s1","patient_id":"p1","procedure_code":"27447","claim_date":"Jan 15"}`, "claim_date"},
		{"negative amount", `{"claim_id":"C","surgeon_id":"s1","patient_id":"p1","procedure_code":"27447","claim_date":"2026-01-15","paid_amount":-1}`, "paid_amount"},
	}

	store := newFakeClaimStore()
	store.surgeons["s1"] = &models.Surgeon{ID: "s1"}
	r := newClaimRouter(t, store)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(r, http.MethodPost, "/api/v1/claims", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.problem) {
				t.Errorf("body missing %q: %s", tt.problem, rec.Body.String())
			}
		})
	}
}

func TestClaimListFiltersBySurgeon(t *testing.T) {
	store := newFakeClaimStore()
	store.claims["c1"] = &models.Claim{ID: "c1", SurgeonID: "s1", ClaimID: "CLM-1"}
	store.claims["c2"] = &models.Claim{ID: "c2", SurgeonID: "s2", ClaimID: "CLM-2"}
	r := newClaimRouter(t, store)

	rec := doJSON(r, http.MethodGet, "/api/v1/claims?surgeon_id=s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "CLM-1") || strings.Contains(body, "CLM-2") {
		t.Errorf("filter not applied: %s", body)
	}
}

func TestClaimUpdateNotFound(t *testing.T) {
	store := newFakeClaimStore()
	store.surgeons["s1"] = &models.Surgeon{ID: "s1"}
	r := newClaimRouter(t, store)

	rec := doJSON(r, http.MethodPut, "/api/v1/claims/missing", validClaimBody)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestClaimDelete(t *testing.T) {
	store := newFakeClaimStore()
	store.claims["c1"] = &models.Claim{ID: "c1", SurgeonID: "s1"}
	r := newClaimRouter(t, store)

	rec := doJSON(r, http.MethodDelete, "/api/v1/claims/c1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(store.claims) != 0 {
		t.Error("claim still present after delete")
	}
}
