package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusmatch/backend/internal/domain/enums"
	"github.com/campusmatch/backend/internal/domain/rules"
	pgrepo "github.com/campusmatch/backend/internal/repo/postgres"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrPhotoLimit = errors.New("photo limit reached")
)

type ProfileStore interface {
	Get(ctx context.Context, userID int64) (pgrepo.ProfileRecord, error)
	SaveCore(
		ctx context.Context,
		userID int64,
		firstName string,
		lastName string,
		age int,
		gender string,
		interestedIn string,
		course string,
		studyYear int,
		bio string,
		profileCompleted bool,
	) error
	SavePreferences(ctx context.Context, userID int64, ageMin, ageMax, maxDistanceKM int) error
	SaveLocation(ctx context.Context, userID int64, lat, lon float64, at time.Time) error
	SetCompleted(ctx context.Context, tx pgx.Tx, userID int64, completed bool) error
	TouchActivity(ctx context.Context, userID int64, at time.Time) error
}

type PhotoStore interface {
	ListForUser(ctx context.Context, userID int64) ([]pgrepo.PhotoRecord, error)
	CountForUser(ctx context.Context, userID int64) (int, error)
	CountInTx(ctx context.Context, tx pgx.Tx, userID int64) (int, error)
	Add(ctx context.Context, tx pgx.Tx, userID int64, url string, isMain bool, position int) (pgrepo.PhotoRecord, error)
	Remove(ctx context.Context, tx pgx.Tx, userID, photoID int64) (pgrepo.PhotoRecord, error)
	ClearMain(ctx context.Context, tx pgx.Tx, userID int64) error
	SetMain(ctx context.Context, tx pgx.Tx, userID, photoID int64) error
	PromoteFirst(ctx context.Context, tx pgx.Tx, userID int64) error
}

type CoreInput struct {
	FirstName    string
	LastName     string
	Age          int
	Gender       string
	InterestedIn string
	Course       string
	StudyYear    int
	Bio          string
}

type Photo struct {
	ID       int64
	URL      string
	IsMain   bool
	Position int
}

type ProfileView struct {
	pgrepo.ProfileRecord
	Photos []Photo
}

type Service struct {
	pool     *pgxpool.Pool
	profiles ProfileStore
	photos   PhotoStore
	now      func() time.Time

	runTx func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Pool     *pgxpool.Pool
	Profiles ProfileStore
	Photos   PhotoStore
}

func NewService(deps Dependencies) *Service {
	return &Service{
		pool:     deps.Pool,
		profiles: deps.Profiles,
		photos:   deps.Photos,
		now:      time.Now,
	}
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (ProfileView, error) {
	if userID <= 0 {
		return ProfileView{}, fmt.Errorf("invalid user id: %w", ErrValidation)
	}
	if s.profiles == nil || s.photos == nil {
		return ProfileView{}, fmt.Errorf("profile stores are not configured")
	}

	rec, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return ProfileView{}, ErrNotFound
		}
		return ProfileView{}, fmt.Errorf("get profile: %w", err)
	}

	rows, err := s.photos.ListForUser(ctx, userID)
	if err != nil {
		return ProfileView{}, fmt.Errorf("list photos: %w", err)
	}

	view := ProfileView{ProfileRecord: rec, Photos: make([]Photo, 0, len(rows))}
	for _, row := range rows {
		view.Photos = append(view.Photos, Photo{ID: row.ID, URL: row.URL, IsMain: row.IsMain, Position: row.Position})
	}
	return view, nil
}

// UpdateProfile saves the core card and reports whether the profile is
// now complete. Completion additionally requires at least one photo, so
// the flag can flip in either direction here.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in CoreInput) (bool, error) {
	if userID <= 0 {
		return false, fmt.Errorf("invalid user id: %w", ErrValidation)
	}
	if s.profiles == nil || s.photos == nil {
		return false, fmt.Errorf("profile stores are not configured")
	}

	normalized, err := normalizeAndValidateCore(in)
	if err != nil {
		return false, err
	}

	photoCount, err := s.photos.CountForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("count photos: %w", err)
	}

	completed := photoCount > 0
	if err := s.profiles.SaveCore(
		ctx,
		userID,
		normalized.FirstName,
		normalized.LastName,
		normalized.Age,
		normalized.Gender,
		normalized.InterestedIn,
		normalized.Course,
		normalized.StudyYear,
		normalized.Bio,
		completed,
	); err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("save profile core: %w", err)
	}

	return completed, nil
}

func (s *Service) SetPreferences(ctx context.Context, userID int64, ageMin, ageMax, maxDistanceKM int) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id: %w", ErrValidation)
	}
	if ageMin < rules.MinAge || ageMax > rules.MaxAge || ageMin > ageMax {
		return fmt.Errorf("invalid age range: %w", ErrValidation)
	}
	if !rules.DistanceAllowed(maxDistanceKM) {
		return fmt.Errorf("invalid max_distance_km: %w", ErrValidation)
	}

	if err := s.profiles.SavePreferences(ctx, userID, ageMin, ageMax, maxDistanceKM); err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// SaveLocation stores the caller's coordinates. The pair (0, 0) is
// reserved as the unset sentinel and is rejected as a real position.
func (s *Service) SaveLocation(ctx context.Context, userID int64, lat, lon float64) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id: %w", ErrValidation)
	}
	if !rules.ValidCoordinates(lat, lon) || !rules.LocationSet(lat, lon) {
		return fmt.Errorf("invalid coordinates: %w", ErrValidation)
	}

	if err := s.profiles.SaveLocation(ctx, userID, lat, lon, s.now()); err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

// AddPhoto appends a photo; the first one becomes main and may complete
// the profile.
func (s *Service) AddPhoto(ctx context.Context, userID int64, url string) (Photo, error) {
	if userID <= 0 {
		return Photo{}, fmt.Errorf("invalid user id: %w", ErrValidation)
	}
	url = strings.TrimSpace(url)
	if url == "" || (!strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://")) {
		return Photo{}, fmt.Errorf("invalid photo url: %w", ErrValidation)
	}

	var added Photo
	if err := s.tx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		count, err := s.photos.CountInTx(txCtx, tx, userID)
		if err != nil {
			return err
		}
		if count >= rules.MaxPhotos {
			return ErrPhotoLimit
		}

		rec, err := s.photos.Add(txCtx, tx, userID, url, count == 0, count)
		if err != nil {
			return err
		}
		added = Photo{ID: rec.ID, URL: rec.URL, IsMain: rec.IsMain, Position: rec.Position}

		if count == 0 {
			return s.recomputeCompletion(txCtx, tx, userID, true)
		}
		return nil
	}); err != nil {
		if errors.Is(err, ErrPhotoLimit) {
			return Photo{}, err
		}
		return Photo{}, fmt.Errorf("add photo: %w", err)
	}

	return added, nil
}

// RemovePhoto deletes a photo, promoting the earliest remaining one to
// main when needed. Removing the last photo marks the profile
// incomplete again.
func (s *Service) RemovePhoto(ctx context.Context, userID, photoID int64) error {
	if userID <= 0 || photoID <= 0 {
		return fmt.Errorf("invalid photo reference: %w", ErrValidation)
	}

	if err := s.tx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		removed, err := s.photos.Remove(txCtx, tx, userID, photoID)
		if err != nil {
			return err
		}

		remaining, err := s.photos.CountInTx(txCtx, tx, userID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return s.profiles.SetCompleted(txCtx, tx, userID, false)
		}
		if removed.IsMain {
			return s.photos.PromoteFirst(txCtx, tx, userID)
		}
		return nil
	}); err != nil {
		if errors.Is(err, pgrepo.ErrPhotoNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("remove photo: %w", err)
	}

	return nil
}

func (s *Service) SetMainPhoto(ctx context.Context, userID, photoID int64) error {
	if userID <= 0 || photoID <= 0 {
		return fmt.Errorf("invalid photo reference: %w", ErrValidation)
	}

	if err := s.tx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		if err := s.photos.ClearMain(txCtx, tx, userID); err != nil {
			return err
		}
		return s.photos.SetMain(txCtx, tx, userID, photoID)
	}); err != nil {
		if errors.Is(err, pgrepo.ErrPhotoNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set main photo: %w", err)
	}

	return nil
}

func (s *Service) Touch(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id: %w", ErrValidation)
	}
	return s.profiles.TouchActivity(ctx, userID, s.now())
}

// recomputeCompletion flips the completed flag when the core card is
// already filled in and the photo requirement just changed.
func (s *Service) recomputeCompletion(ctx context.Context, tx pgx.Tx, userID int64, hasPhotos bool) error {
	rec, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return nil
		}
		return err
	}

	completed := hasPhotos && coreFilled(rec)
	if completed == rec.ProfileCompleted {
		return nil
	}
	return s.profiles.SetCompleted(ctx, tx, userID, completed)
}

func coreFilled(rec pgrepo.ProfileRecord) bool {
	return rec.FirstName != "" &&
		rec.LastName != "" &&
		rec.Age >= rules.MinAge &&
		rec.Gender != "" &&
		rec.InterestedIn != "" &&
		rec.Course != "" &&
		rec.StudyYear >= rules.MinStudyYear &&
		rec.Bio != ""
}

func normalizeAndValidateCore(in CoreInput) (CoreInput, error) {
	out := CoreInput{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Age:          in.Age,
		Gender:       strings.ToLower(strings.TrimSpace(in.Gender)),
		InterestedIn: strings.ToLower(strings.TrimSpace(in.InterestedIn)),
		Course:       strings.TrimSpace(in.Course),
		StudyYear:    in.StudyYear,
		Bio:          strings.TrimSpace(in.Bio),
	}

	if out.FirstName == "" || out.LastName == "" || out.Course == "" || out.Bio == "" {
		return CoreInput{}, fmt.Errorf("required fields are missing: %w", ErrValidation)
	}
	if !rules.AgeAllowed(out.Age) {
		return CoreInput{}, fmt.Errorf("invalid age: %w", ErrValidation)
	}
	if !enums.Gender(out.Gender).Valid() {
		return CoreInput{}, fmt.Errorf("invalid gender: %w", ErrValidation)
	}
	if !enums.InterestedIn(out.InterestedIn).Valid() {
		return CoreInput{}, fmt.Errorf("invalid interested_in: %w", ErrValidation)
	}
	if !rules.StudyYearAllowed(out.StudyYear) {
		return CoreInput{}, fmt.Errorf("invalid study_year: %w", ErrValidation)
	}
	if utf8.RuneCountInString(out.Bio) > rules.MaxBioLen {
		return CoreInput{}, fmt.Errorf("bio is too long: %w", ErrValidation)
	}

	return out, nil
}

func (s *Service) tx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	if s.runTx != nil {
		return s.runTx(ctx, fn)
	}
	return pgrepo.WithTx(ctx, s.pool, fn)
}
