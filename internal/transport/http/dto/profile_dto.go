package dto

import "time"

type ProfileCoreRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Age          int    `json:"age"`
	Gender       string `json:"gender"`
	InterestedIn string `json:"interested_in"`
	Course       string `json:"course"`
	StudyYear    int    `json:"study_year"`
	Bio          string `json:"bio"`
}

type ProfileCoreResponse struct {
	ProfileCompleted bool `json:"profile_completed"`
}

type PreferencesRequest struct {
	AgeMin        int `json:"age_min"`
	AgeMax        int `json:"age_max"`
	MaxDistanceKM int `json:"max_distance_km"`
}

type LocationRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type PhotoResponse struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	IsMain   bool   `json:"is_main"`
	Position int    `json:"position"`
}

type AddPhotoRequest struct {
	URL string `json:"url"`
}

type ProfileResponse struct {
	UserID           int64           `json:"user_id"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	Age              int             `json:"age"`
	Gender           string          `json:"gender"`
	InterestedIn     string          `json:"interested_in"`
	Course           string          `json:"course"`
	StudyYear        int             `json:"study_year"`
	Bio              string          `json:"bio"`
	AgeMin           int             `json:"age_min"`
	AgeMax           int             `json:"age_max"`
	MaxDistanceKM    int             `json:"max_distance_km"`
	ProfileCompleted bool            `json:"profile_completed"`
	LastActiveAt     time.Time       `json:"last_active_at"`
	Photos           []PhotoResponse `json:"photos"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
