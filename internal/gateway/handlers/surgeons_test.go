package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/surgeonmatch/surgeonmatch/internal/gateway/cache"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/database"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

type fakeSurgeonStore struct {
	surgeons map[string]*models.Surgeon
	err      error
}

func newFakeSurgeonStore() *fakeSurgeonStore {
	return &fakeSurgeonStore{surgeons: map[string]*models.Surgeon{}}
}

func (s *fakeSurgeonStore) CreateSurgeon(ctx context.Context, surgeon *models.Surgeon) error {
	if s.err != nil {
		return s.err
	}
	if surgeon.ID == "" {
		surgeon.ID = "generated-id"
	}
	surgeon.CreatedAt = time.Now().UTC()
	s.surgeons[surgeon.ID] = surgeon
	return nil
}

func (s *fakeSurgeonStore) GetSurgeon(ctx context.Context, id string) (*models.Surgeon, error) {
	if s.err != nil {
		return nil, s.err
	}
	surgeon, ok := s.surgeons[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *surgeon
	return &copied, nil
}

func (s *fakeSurgeonStore) GetSurgeonByNPI(ctx context.Context, npi string) (*models.Surgeon, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, surgeon := range s.surgeons {
		if surgeon.NPI == npi {
			copied := *surgeon
			return &copied, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeSurgeonStore) ListSurgeons(ctx context.Context, filter database.SurgeonFilter, limit, offset int) ([]*models.Surgeon, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.Surgeon
	for _, surgeon := range s.surgeons {
		if filter.State != "" && (surgeon.State == nil || *surgeon.State != filter.State) {
			continue
		}
		copied := *surgeon
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeSurgeonStore) UpdateSurgeon(ctx context.Context, surgeon *models.Surgeon) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.surgeons[surgeon.ID]; !ok {
		return database.ErrNotFound
	}
	copied := *surgeon
	s.surgeons[surgeon.ID] = &copied
	return nil
}

func (s *fakeSurgeonStore) DeleteSurgeon(ctx context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.surgeons[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.surgeons, id)
	return nil
}

type surgeonFixture struct {
	store   *fakeSurgeonStore
	backend *fakeBackend
	cache   *cache.Cache
	router  chi.Router
}

func newSurgeonFixture(t *testing.T) *surgeonFixture {
	t.Helper()
	f := &surgeonFixture{store: newFakeSurgeonStore(), backend: newFakeBackend()}
	f.cache = cache.New(f.backend, time.Minute)

	h := NewSurgeonHandler(f.store, cache.NewInvalidator(f.cache))
	r := chi.NewRouter()
	r.Route("/api/v1/surgeons", h.Routes)
	f.router = r
	return f
}

func (f *surgeonFixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

const validSurgeonBody = `{
	"npi": "1234567890",
	"first_name": "Jane",
	"last_name": "Rivera",
	"specialty_code": "208600000X",
	"state": "CA",
	"accepts_medicare": true
}`

func TestSurgeonCreate(t *testing.T) {
	f := newSurgeonFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/surgeons", validSurgeonBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if len(f.store.surgeons) != 1 {
		t.Errorf("stored surgeons = %d, want 1", len(f.store.surgeons))
	}
	if !strings.Contains(rec.Body.String(), `"npi":"1234567890"`) {
		t.Errorf("body missing npi: %s", rec.Body.String())
	}
}

func TestSurgeonCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing npi", `{"first_name":"A","last_name":"B","specialty_code":"X"}`},
		{"short npi", `{"npi":"123","first_name":"A","last_name":"B","specialty_code":"X"}`},
		{"missing names", `{"npi":"1234567890","specialty_code":"X"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSurgeonFixture(t)
			rec := f.do(http.MethodPost, "/api/v1/surgeons", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), CodeValidationError) {
				t.Errorf("body missing validation code: %s", rec.Body.String())
			}
		})
	}
}

func TestSurgeonCreateDuplicateNPI(t *testing.T) {
	f := newSurgeonFixture(t)
	f.do(http.MethodPost, "/api/v1/surgeons", validSurgeonBody)

	rec := f.do(http.MethodPost, "/api/v1/surgeons", validSurgeonBody)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestSurgeonGetNotFound(t *testing.T) {
	f := newSurgeonFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/surgeons/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), CodeNotFound) {
		t.Errorf("body missing not_found code: %s", rec.Body.String())
	}
}

func TestSurgeonGetByNPI(t *testing.T) {
	f := newSurgeonFixture(t)
	f.do(http.MethodPost, "/api/v1/surgeons", validSurgeonBody)

	rec := f.do(http.MethodGet, "/api/v1/surgeons/npi/1234567890", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"npi":"1234567890"`) {
		t.Errorf("body missing npi: %s", rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/api/v1/surgeons/npi/0000000000", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown npi status = %d, want 404", rec.Code)
	}
}

func TestSurgeonList(t *testing.T) {
	f := newSurgeonFixture(t)
	f.do(http.MethodPost, "/api/v1/surgeons", validSurgeonBody)

	rec := f.do(http.MethodGet, "/api/v1/surgeons", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "[") {
		t.Errorf("list body is not an array: %s", rec.Body.String())
	}
}

func TestSurgeonListEmptyIsArray(t *testing.T) {
	f := newSurgeonFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/surgeons", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list = %q, want []", rec.Body.String())
	}
}

func TestSurgeonUpdateInvalidatesCache(t *testing.T) {
	f := newSurgeonFixture(t)
	ctx := context.Background()

	created := f.do(http.MethodPost, "/api/v1/surgeons", validSurgeonBody)
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d", created.Code)
	}
	id := "generated-id"

	// Seed cached responses the way the gating pipeline would.
	surgeonDetail := cache.Key("/api/v1/surgeons/"+id, nil)
	claimList := cache.Key("/api/v1/claims", url.Values{"surgeon_id": {id}})
	claimDetail := cache.Key("/api/v1/claims/c1", nil)
	for _, k := range []string{surgeonDetail, claimList, claimDetail} {
		if err := f.cache.Set(ctx, k, &cache.Entry{StatusCode: 200}, 0); err != nil {
			t.Fatalf("seed %q: %v", k, err)
		}
	}

	rec := f.do(http.MethodPut, "/api/v1/surgeons/"+id, validSurgeonBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}

	if _, found, _ := f.cache.Get(ctx, surgeonDetail); found {
		t.Error("surgeon detail cache survived update")
	}
	if _, found, _ := f.cache.Get(ctx, claimList); found {
		t.Error("claim list cache survived surgeon cascade")
	}
	if _, found, _ := f.cache.Get(ctx, claimDetail); !found {
		t.Error("claim detail cleared; cascade is list-level only")
	}
}

func TestSurgeonDelete(t *testing.T) {
	f := newSurgeonFixture(t)
	f.do(http.MethodPost, "/api/v1/surgeons", validSurgeonBody)

	rec := f.do(http.MethodDelete, "/api/v1/surgeons/generated-id", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(f.store.surgeons) != 0 {
		t.Error("surgeon still present after delete")
	}

	rec = f.do(http.MethodDelete, "/api/v1/surgeons/generated-id", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}
