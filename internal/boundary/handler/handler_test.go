package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"caresignal/internal/boundary/service"
	boundarystore "caresignal/internal/boundary/store"
	id "caresignal/pkg/domain"
)

func newBoundaryRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := service.New(boundarystore.NewInMemoryStore())
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestBoundaryReplaceGetDelete(t *testing.T) {
	router := newBoundaryRouter(t)
	subject := id.SubjectID(uuid.New())
	path := "/subjects/" + subject.String() + "/boundary"

	body, _ := json.Marshal(map[string]any{
		"center_lat":    52.1,
		"center_lng":    4.3,
		"radius_meters": 250.0,
	})
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 replacing boundary, got %d: %s", rec.Code, rec.Body.String())
	}

	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, path, nil))
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching boundary, got %d", getRec.Code)
	}
	var resp struct {
		RadiusMeters float64 `json:"radius_meters"`
	}
	if err := json.NewDecoder(getRec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode boundary: %v", err)
	}
	if resp.RadiusMeters != 250 {
		t.Fatalf("expected radius 250, got %v", resp.RadiusMeters)
	}

	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, httptest.NewRequest(http.MethodDelete, path, nil))
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting boundary, got %d", delRec.Code)
	}

	missingRec := httptest.NewRecorder()
	router.ServeHTTP(missingRec, httptest.NewRequest(http.MethodGet, path, nil))
	if missingRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", missingRec.Code)
	}
}

func TestBoundaryReplaceRejectsInvalidRadius(t *testing.T) {
	router := newBoundaryRouter(t)
	subject := id.SubjectID(uuid.New())

	body, _ := json.Marshal(map[string]any{
		"center_lat":    52.1,
		"center_lng":    4.3,
		"radius_meters": 0.0,
	})
	req := httptest.NewRequest(http.MethodPut, "/subjects/"+subject.String()+"/boundary", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero radius, got %d", rec.Code)
	}
}
