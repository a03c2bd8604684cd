package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/campusmatch/backend/internal/services/auth"
	matchingsvc "github.com/campusmatch/backend/internal/services/matching"
	"github.com/campusmatch/backend/internal/transport/http/dto"
	httperrors "github.com/campusmatch/backend/internal/transport/http/errors"
)

type MatchesHandler struct {
	service *matchingsvc.Service
}

func NewMatchesHandler(service *matchingsvc.Service) *MatchesHandler {
	return &MatchesHandler{service: service}
}

func (h *MatchesHandler) Like(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHING_SERVICE_UNAVAILABLE", "matching service is unavailable")
		return
	}

	var req dto.LikeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.service.Like(r.Context(), identity.UserID, req.TargetID)
	if err != nil {
		handleMatchingError(w, err, "like")
		return
	}

	resp := dto.LikeResponse{IsMatch: result.IsMatch}
	if result.Matched != nil {
		resp.Matched = &dto.MatchedProfileResponse{
			UserID:       result.Matched.UserID,
			FirstName:    result.Matched.FirstName,
			LastName:     result.Matched.LastName,
			Age:          result.Matched.Age,
			MainPhotoURL: result.Matched.MainPhotoURL,
		}
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *MatchesHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHING_SERVICE_UNAVAILABLE", "matching service is unavailable")
		return
	}

	var req dto.DislikeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.service.Dislike(r.Context(), identity.UserID, req.TargetID); err != nil {
		handleMatchingError(w, err, "dislike")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHING_SERVICE_UNAVAILABLE", "matching service is unavailable")
		return
	}

	items, err := h.service.ListMatches(r.Context(), identity.UserID, parseIntOrDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		switch {
		case errors.Is(err, matchingsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid matches request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load matches")
		}
		return
	}

	responseItems := make([]dto.MatchItemResponse, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, dto.MatchItemResponse{
			ID:           item.ID,
			UserID:       item.UserID,
			FirstName:    item.FirstName,
			LastName:     item.LastName,
			Age:          item.Age,
			University:   item.University,
			MainPhotoURL: item.MainPhotoURL,
			MatchedAt:    item.MatchedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.MatchesResponse{Items: responseItems})
}

func (h *MatchesHandler) Unmatch(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHING_SERVICE_UNAVAILABLE", "matching service is unavailable")
		return
	}

	var req dto.UnmatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	deleted, err := h.service.Unmatch(r.Context(), identity.UserID, req.TargetID)
	if err != nil {
		switch {
		case errors.Is(err, matchingsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid unmatch request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to unmatch")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.UnmatchResponse{Deleted: deleted})
}

func handleMatchingError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, matchingsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid "+action+" request")
	case errors.Is(err, matchingsvc.ErrNotFound):
		writeNotFound(w, "NOT_FOUND", "target user not found")
	case errors.Is(err, matchingsvc.ErrAlreadyLiked):
		writeConflict(w, "ALREADY_LIKED", "target is already liked")
	case errors.Is(err, matchingsvc.ErrAlreadyDisliked):
		writeConflict(w, "ALREADY_DISLIKED", "target is already disliked")
	default:
		if tf, ok := matchingsvc.IsTooFast(err); ok {
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
				Code:          "TOO_FAST",
				Message:       "too many like actions, slow down",
				RetryAfterSec: tf.RetryAfter(),
			})
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to process "+action)
	}
}
