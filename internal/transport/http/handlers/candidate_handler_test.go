package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	pgrepo "github.com/campusmatch/backend/internal/repo/postgres"
	authsvc "github.com/campusmatch/backend/internal/services/auth"
	matchingsvc "github.com/campusmatch/backend/internal/services/matching"
	"github.com/campusmatch/backend/internal/transport/http/dto"
)

type candidateStoreStub struct {
	viewer pgrepo.ViewerContext
	rows   []pgrepo.CandidateRecord
}

func (s candidateStoreStub) GetViewerContext(_ context.Context, userID int64) (pgrepo.ViewerContext, error) {
	if userID != s.viewer.UserID {
		return pgrepo.ViewerContext{}, pgrepo.ErrViewerNotFound
	}
	return s.viewer, nil
}

func (s candidateStoreStub) ListCandidates(context.Context, pgrepo.CandidateQuery) ([]pgrepo.CandidateRecord, error) {
	return s.rows, nil
}

func withIdentity(req *http.Request, userID int64) *http.Request {
	return req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{
		UserID: userID,
		SID:    "sid-test",
	}))
}

func withURLParam(ctx context.Context, key, value string) context.Context {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
}

func TestCandidatesListReturns200(t *testing.T) {
	distance := 4.2
	service := matchingsvc.NewService(matchingsvc.Dependencies{
		Candidates: candidateStoreStub{
			viewer: pgrepo.ViewerContext{
				UserID:           10,
				University:       "student.bsu.by",
				Gender:           "male",
				InterestedIn:     "female",
				AgeMin:           18,
				AgeMax:           25,
				MaxDistanceKM:    30,
				Lat:              53.9,
				Lon:              27.56,
				ProfileCompleted: true,
			},
			rows: []pgrepo.CandidateRecord{
				{UserID: 200, FirstName: "Alena", LastName: "Ivanova", Age: 21, Gender: "female",
					University: "student.bsu.by", Course: "Design", StudyYear: 3,
					DistanceKM: &distance, LastActiveAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
			},
		},
	}, matchingsvc.Config{})
	handler := NewCandidateHandler(service)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/v1/candidates", nil), 10)
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}

	var payload dto.CandidatesResponse
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 {
		t.Fatalf("unexpected item count: %d", len(payload.Items))
	}
	item := payload.Items[0]
	if item.UserID != 200 || item.FirstName != "Alena" {
		t.Fatalf("unexpected payload: %+v", item)
	}
	if item.DistanceKM == nil || *item.DistanceKM != 4 {
		t.Fatalf("distance should be rounded to whole km: %v", item.DistanceKM)
	}
}

func TestCandidatesListRequiresAuth(t *testing.T) {
	handler := NewCandidateHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestCandidatesListIncompleteProfileReturns403(t *testing.T) {
	service := matchingsvc.NewService(matchingsvc.Dependencies{
		Candidates: candidateStoreStub{
			viewer: pgrepo.ViewerContext{UserID: 10, ProfileCompleted: false},
		},
	}, matchingsvc.Config{})
	handler := NewCandidateHandler(service)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/v1/candidates", nil), 10)
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusForbidden)
	}
}
