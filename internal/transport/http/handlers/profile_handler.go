package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/campusmatch/backend/internal/services/auth"
	profilesvc "github.com/campusmatch/backend/internal/services/profiles"
	"github.com/campusmatch/backend/internal/transport/http/dto"
	httperrors "github.com/campusmatch/backend/internal/transport/http/errors"
)

type ProfileHandler struct {
	service *profilesvc.Service
}

func NewProfileHandler(service *profilesvc.Service) *ProfileHandler {
	return &ProfileHandler{service: service}
}

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}

	view, err := h.service.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		handleProfileError(w, err, "load profile")
		return
	}

	photos := make([]dto.PhotoResponse, 0, len(view.Photos))
	for _, p := range view.Photos {
		photos = append(photos, dto.PhotoResponse{ID: p.ID, URL: p.URL, IsMain: p.IsMain, Position: p.Position})
	}

	httperrors.Write(w, http.StatusOK, dto.ProfileResponse{
		UserID:           view.UserID,
		FirstName:        view.FirstName,
		LastName:         view.LastName,
		Age:              view.Age,
		Gender:           view.Gender,
		InterestedIn:     view.InterestedIn,
		Course:           view.Course,
		StudyYear:        view.StudyYear,
		Bio:              view.Bio,
		AgeMin:           view.AgeMin,
		AgeMax:           view.AgeMax,
		MaxDistanceKM:    view.MaxDistanceKM,
		ProfileCompleted: view.ProfileCompleted,
		LastActiveAt:     view.LastActiveAt,
		Photos:           photos,
	})
}

func (h *ProfileHandler) Core(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}

	var req dto.ProfileCoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	completed, err := h.service.UpdateProfile(r.Context(), identity.UserID, profilesvc.CoreInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Age:          req.Age,
		Gender:       req.Gender,
		InterestedIn: req.InterestedIn,
		Course:       req.Course,
		StudyYear:    req.StudyYear,
		Bio:          req.Bio,
	})
	if err != nil {
		handleProfileError(w, err, "save profile")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ProfileCoreResponse{ProfileCompleted: completed})
}

func (h *ProfileHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}

	var req dto.PreferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.service.SetPreferences(r.Context(), identity.UserID, req.AgeMin, req.AgeMax, req.MaxDistanceKM); err != nil {
		handleProfileError(w, err, "save preferences")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *ProfileHandler) Location(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}

	var req dto.LocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.service.SaveLocation(r.Context(), identity.UserID, req.Lat, req.Lon); err != nil {
		handleProfileError(w, err, "save location")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *ProfileHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}

	var req dto.AddPhotoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	photo, err := h.service.AddPhoto(r.Context(), identity.UserID, req.URL)
	if err != nil {
		if errors.Is(err, profilesvc.ErrPhotoLimit) {
			writeConflict(w, "PHOTO_LIMIT_REACHED", "photo limit reached")
			return
		}
		handleProfileError(w, err, "add photo")
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.PhotoResponse{
		ID:       photo.ID,
		URL:      photo.URL,
		IsMain:   photo.IsMain,
		Position: photo.Position,
	})
}

func (h *ProfileHandler) RemovePhoto(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}

	photoID, ok := photoIDFromRequest(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid photo id")
		return
	}

	if err := h.service.RemovePhoto(r.Context(), identity.UserID, photoID); err != nil {
		handleProfileError(w, err, "remove photo")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *ProfileHandler) SetMainPhoto(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}

	photoID, ok := photoIDFromRequest(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid photo id")
		return
	}

	if err := h.service.SetMainPhoto(r.Context(), identity.UserID, photoID); err != nil {
		handleProfileError(w, err, "set main photo")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func handleProfileError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, profilesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid "+action+" request")
	case errors.Is(err, profilesvc.ErrNotFound):
		writeNotFound(w, "NOT_FOUND", "profile or photo not found")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to "+action)
	}
}

func photoIDFromRequest(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "photo_id"))
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}
