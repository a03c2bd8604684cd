package dto

import "time"

type CandidateResponse struct {
	UserID       int64     `json:"user_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Age          int       `json:"age"`
	Gender       string    `json:"gender"`
	University   string    `json:"university"`
	Course       string    `json:"course"`
	StudyYear    int       `json:"study_year"`
	Bio          string    `json:"bio"`
	MainPhotoURL *string   `json:"main_photo_url"`
	DistanceKM   *int      `json:"distance_km,omitempty"`
	LastActiveAt time.Time `json:"last_active_at"`
}

type CandidatesResponse struct {
	Items []CandidateResponse `json:"items"`
}

type LikeRequest struct {
	TargetID int64 `json:"target_id"`
}

type MatchedProfileResponse struct {
	UserID       int64   `json:"user_id"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Age          int     `json:"age"`
	MainPhotoURL *string `json:"main_photo_url"`
}

type LikeResponse struct {
	IsMatch bool                    `json:"is_match"`
	Matched *MatchedProfileResponse `json:"matched,omitempty"`
}

type DislikeRequest struct {
	TargetID int64 `json:"target_id"`
}

type MatchItemResponse struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Age          int       `json:"age"`
	University   string    `json:"university"`
	MainPhotoURL *string   `json:"main_photo_url"`
	MatchedAt    time.Time `json:"matched_at"`
}

type MatchesResponse struct {
	Items []MatchItemResponse `json:"items"`
}

type UnmatchRequest struct {
	TargetID int64 `json:"target_id"`
}

type UnmatchResponse struct {
	Deleted bool `json:"deleted"`
}
