package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/campusmatch/backend/internal/services/auth"
	matchingsvc "github.com/campusmatch/backend/internal/services/matching"
	"github.com/campusmatch/backend/internal/transport/http/dto"
	httperrors "github.com/campusmatch/backend/internal/transport/http/errors"
)

type CandidateHandler struct {
	service *matchingsvc.Service
}

func NewCandidateHandler(service *matchingsvc.Service) *CandidateHandler {
	return &CandidateHandler{service: service}
}

func (h *CandidateHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHING_SERVICE_UNAVAILABLE", "matching service is unavailable")
		return
	}

	candidates, err := h.service.GetCandidates(r.Context(), identity.UserID)
	if err != nil {
		switch {
		case errors.Is(err, matchingsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid candidates request")
		case errors.Is(err, matchingsvc.ErrNotFound):
			writeNotFound(w, "NOT_FOUND", "viewer profile not found")
		case errors.Is(err, matchingsvc.ErrProfileIncomplete):
			writeForbidden(w, "PROFILE_INCOMPLETE", "complete your profile to browse candidates")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load candidates")
		}
		return
	}

	items := make([]dto.CandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, dto.CandidateResponse{
			UserID:       c.UserID,
			FirstName:    c.FirstName,
			LastName:     c.LastName,
			Age:          c.Age,
			Gender:       c.Gender,
			University:   c.University,
			Course:       c.Course,
			StudyYear:    c.StudyYear,
			Bio:          c.Bio,
			MainPhotoURL: c.MainPhotoURL,
			DistanceKM:   c.DistanceKM,
			LastActiveAt: c.LastActiveAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.CandidatesResponse{Items: items})
}
