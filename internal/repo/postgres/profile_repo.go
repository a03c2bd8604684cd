package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepo struct {
	pool *pgxpool.Pool
}

type ProfileRecord struct {
	UserID           int64
	FirstName        string
	LastName         string
	Age              int
	Gender           string
	InterestedIn     string
	Course           string
	StudyYear        int
	Bio              string
	Lat              float64
	Lon              float64
	AgeMin           int
	AgeMax           int
	MaxDistanceKM    int
	ProfileCompleted bool
	LastActiveAt     time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProfileSummary is the short card shown in match notifications
// and conversation lists.
type ProfileSummary struct {
	UserID       int64
	FirstName    string
	LastName     string
	Age          int
	MainPhotoURL *string
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

// CreateEmpty seeds the profile row at registration so every later write
// can be a plain UPDATE.
func (r *ProfileRepo) CreateEmpty(ctx context.Context, userID int64) error {
	if r.pool == nil {
		return nil
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO profiles (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO NOTHING
`, userID); err != nil {
		return fmt.Errorf("create empty profile: %w", err)
	}

	return nil
}

func (r *ProfileRepo) Get(ctx context.Context, userID int64) (ProfileRecord, error) {
	if r.pool == nil {
		return ProfileRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var p ProfileRecord
	err := r.pool.QueryRow(ctx, `
SELECT user_id, first_name, last_name, age, gender, interested_in, course, study_year,
       bio, lat, lon, age_min, age_max, max_distance_km, profile_completed,
       last_active_at, created_at, updated_at
FROM profiles
WHERE user_id = $1
`, userID).Scan(
		&p.UserID, &p.FirstName, &p.LastName, &p.Age, &p.Gender, &p.InterestedIn,
		&p.Course, &p.StudyYear, &p.Bio, &p.Lat, &p.Lon, &p.AgeMin, &p.AgeMax,
		&p.MaxDistanceKM, &p.ProfileCompleted, &p.LastActiveAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileRecord{}, ErrProfileNotFound
		}
		return ProfileRecord{}, fmt.Errorf("get profile: %w", err)
	}

	return p, nil
}

func (r *ProfileRepo) GetSummary(ctx context.Context, userID int64) (ProfileSummary, error) {
	if r.pool == nil {
		return ProfileSummary{}, fmt.Errorf("postgres pool is nil")
	}

	var s ProfileSummary
	err := r.pool.QueryRow(ctx, `
SELECT p.user_id, p.first_name, p.last_name, p.age,
       (SELECT ph.url FROM photos ph WHERE ph.user_id = p.user_id AND ph.is_main LIMIT 1)
FROM profiles p
WHERE p.user_id = $1
`, userID).Scan(&s.UserID, &s.FirstName, &s.LastName, &s.Age, &s.MainPhotoURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileSummary{}, ErrProfileNotFound
		}
		return ProfileSummary{}, fmt.Errorf("get profile summary: %w", err)
	}

	return s, nil
}

func (r *ProfileRepo) SaveCore(
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
) error {
	if r.pool == nil {
		return nil
	}

	const query = `
UPDATE profiles SET
	first_name = $2,
	last_name = $3,
	age = $4,
	gender = $5,
	interested_in = $6,
	course = $7,
	study_year = $8,
	bio = $9,
	profile_completed = $10,
	updated_at = NOW()
WHERE user_id = $1
`

	tag, err := r.pool.Exec(ctx, query,
		userID, firstName, lastName, age, gender, interestedIn, course, studyYear, bio, profileCompleted,
	)
	if err != nil {
		return fmt.Errorf("save profile core: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func (r *ProfileRepo) SavePreferences(ctx context.Context, userID int64, ageMin, ageMax, maxDistanceKM int) error {
	if r.pool == nil {
		return nil
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE profiles SET
	age_min = $2,
	age_max = $3,
	max_distance_km = $4,
	updated_at = NOW()
WHERE user_id = $1
`, userID, ageMin, ageMax, maxDistanceKM)
	if err != nil {
		return fmt.Errorf("save profile preferences: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func (r *ProfileRepo) SaveLocation(ctx context.Context, userID int64, lat, lon float64, at time.Time) error {
	if r.pool == nil {
		return nil
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE profiles SET
	lat = $2,
	lon = $3,
	last_active_at = $4,
	updated_at = NOW()
WHERE user_id = $1
`, userID, lat, lon, at.UTC())
	if err != nil {
		return fmt.Errorf("save profile location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func (r *ProfileRepo) SetCompleted(ctx context.Context, tx pgx.Tx, userID int64, completed bool) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
UPDATE profiles SET
	profile_completed = $2,
	updated_at = NOW()
WHERE user_id = $1
`, userID, completed); err != nil {
		return fmt.Errorf("set profile completed: %w", err)
	}

	return nil
}

func (r *ProfileRepo) TouchActivity(ctx context.Context, userID int64, at time.Time) error {
	if r.pool == nil {
		return nil
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE profiles SET
	last_active_at = $2
WHERE user_id = $1
`, userID, at.UTC()); err != nil {
		return fmt.Errorf("touch profile activity: %w", err)
	}

	return nil
}
