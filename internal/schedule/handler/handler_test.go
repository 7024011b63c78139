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

	"caresignal/internal/schedule/service"
	schedulestore "caresignal/internal/schedule/store"
	id "caresignal/pkg/domain"
)

func newScheduleRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := service.New(schedulestore.NewInMemoryStore())
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestSlotUpsertListDelete(t *testing.T) {
	router := newScheduleRouter(t)
	subject := id.SubjectID(uuid.New())
	path := "/subjects/" + subject.String() + "/slots"

	body, _ := json.Marshal(map[string]any{
		"medicine_id": "med-a",
		"time_of_day": "08:30",
		"enabled":     true,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, path, bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 saving slot, got %d: %s", rec.Code, rec.Body.String())
	}

	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, path, nil))
	var resp struct {
		Slots []struct {
			MedicineID string `json:"medicine_id"`
			TimeOfDay  string `json:"time_of_day"`
			Enabled    bool   `json:"enabled"`
		} `json:"slots"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode slots: %v", err)
	}
	if len(resp.Slots) != 1 || resp.Slots[0].TimeOfDay != "08:30" || !resp.Slots[0].Enabled {
		t.Fatalf("expected one enabled 08:30 slot, got %+v", resp.Slots)
	}

	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, httptest.NewRequest(http.MethodDelete, path+"/med-a", nil))
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting slot, got %d", delRec.Code)
	}

	emptyRec := httptest.NewRecorder()
	router.ServeHTTP(emptyRec, httptest.NewRequest(http.MethodGet, path, nil))
	if err := json.NewDecoder(emptyRec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode slots: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Fatalf("expected no slots after delete, got %+v", resp.Slots)
	}
}

func TestSlotUpsertRejectsBadTimeOfDay(t *testing.T) {
	router := newScheduleRouter(t)
	subject := id.SubjectID(uuid.New())

	body, _ := json.Marshal(map[string]any{
		"medicine_id": "med-a",
		"time_of_day": "25:99",
		"enabled":     true,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/subjects/"+subject.String()+"/slots", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad time_of_day, got %d", rec.Code)
	}
}
