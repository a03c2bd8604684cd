package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrViewerNotFound = errors.New("viewer profile not found")

type CandidateRepo struct {
	pool *pgxpool.Pool
}

func NewCandidateRepo(pool *pgxpool.Pool) *CandidateRepo {
	return &CandidateRepo{pool: pool}
}

type ViewerContext struct {
	UserID           int64
	University       string
	Gender           string
	InterestedIn     string
	AgeMin           int
	AgeMax           int
	MaxDistanceKM    int
	Lat              float64
	Lon              float64
	ProfileCompleted bool
}

type CandidateQuery struct {
	ViewerUserID       int64
	ViewerUniversity   string
	ViewerGender       string
	ViewerInterestedIn string
	AgeMin             int
	AgeMax             int
	RadiusKM           int
	ViewerLat          float64
	ViewerLon          float64
	HasLocation        bool
	Limit              int
}

type CandidateRecord struct {
	UserID       int64
	FirstName    string
	LastName     string
	Age          int
	Gender       string
	University   string
	Course       string
	StudyYear    int
	Bio          string
	MainPhotoURL *string
	DistanceKM   *float64
	LastActiveAt time.Time
}

func (r *CandidateRepo) GetViewerContext(ctx context.Context, userID int64) (ViewerContext, error) {
	if userID <= 0 {
		return ViewerContext{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return ViewerContext{}, ErrViewerNotFound
	}

	var viewer ViewerContext
	err := r.pool.QueryRow(ctx, `
SELECT
	p.user_id,
	u.university,
	p.gender,
	p.interested_in,
	p.age_min,
	p.age_max,
	p.max_distance_km,
	p.lat,
	p.lon,
	p.profile_completed
FROM profiles p
JOIN users u ON u.id = p.user_id
WHERE p.user_id = $1
LIMIT 1
`, userID).Scan(
		&viewer.UserID,
		&viewer.University,
		&viewer.Gender,
		&viewer.InterestedIn,
		&viewer.AgeMin,
		&viewer.AgeMax,
		&viewer.MaxDistanceKM,
		&viewer.Lat,
		&viewer.Lon,
		&viewer.ProfileCompleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ViewerContext{}, ErrViewerNotFound
		}
		return ViewerContext{}, fmt.Errorf("get viewer context: %w", err)
	}

	return viewer, nil
}

// ListCandidates returns discoverable profiles ranked by recent activity.
// The gender gate is mutual: the candidate must fit the viewer's
// preference and the viewer must fit the candidate's. When the viewer
// filters by radius, candidates without a recorded location are
// excluded along with everyone out of range.
func (r *CandidateRepo) ListCandidates(ctx context.Context, q CandidateQuery) ([]CandidateRecord, error) {
	if q.ViewerUserID <= 0 {
		return nil, fmt.Errorf("invalid viewer id")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if r.pool == nil {
		return []CandidateRecord{}, nil
	}

	viewerGender := strings.ToLower(strings.TrimSpace(q.ViewerGender))
	interestedIn := strings.ToLower(strings.TrimSpace(q.ViewerInterestedIn))
	applyGenderFilter := interestedIn != "" && interestedIn != "both"
	applyRadius := q.HasLocation && q.RadiusKM > 0

	rows, err := r.pool.Query(ctx, `
SELECT
	p.user_id,
	p.first_name,
	p.last_name,
	p.age,
	p.gender,
	u.university,
	p.course,
	p.study_year,
	p.bio,
	(SELECT ph.url FROM photos ph WHERE ph.user_id = p.user_id AND ph.is_main LIMIT 1),
	CASE
		WHEN $9::boolean = TRUE AND (p.lat <> 0 OR p.lon <> 0)
		THEN 2.0 * 6371.0 * ASIN(LEAST(1.0, SQRT(
			POWER(SIN(RADIANS(p.lat - $10::float8) / 2), 2)
			+ COS(RADIANS($10::float8)) * COS(RADIANS(p.lat))
			* POWER(SIN(RADIANS(p.lon - $11::float8) / 2), 2)
		)))
		ELSE NULL
	END AS distance_km,
	p.last_active_at
FROM profiles p
JOIN users u ON u.id = p.user_id
WHERE
	p.user_id <> $1
	AND p.profile_completed = TRUE
	AND u.email_verified = TRUE
	AND u.university = $2
	AND p.age BETWEEN $3 AND $4
	AND ($5::boolean = FALSE OR LOWER(p.gender) = $6)
	AND (LOWER(p.interested_in) = 'both' OR LOWER(p.interested_in) = $7)
	AND NOT EXISTS (
		SELECT 1
		FROM relationships rel
		WHERE rel.actor_id = $1 AND rel.target_id = p.user_id
	)
	AND NOT EXISTS (
		SELECT 1
		FROM matches m
		WHERE m.user_a_id = LEAST($1, p.user_id)
			AND m.user_b_id = GREATEST($1, p.user_id)
	)
	AND (
		$9::boolean = FALSE
		OR (
			(p.lat <> 0 OR p.lon <> 0)
			AND
			2.0 * 6371.0 * ASIN(LEAST(1.0, SQRT(
				POWER(SIN(RADIANS(p.lat - $10::float8) / 2), 2)
				+ COS(RADIANS($10::float8)) * COS(RADIANS(p.lat))
				* POWER(SIN(RADIANS(p.lon - $11::float8) / 2), 2)
			))) <= $12::float8
		)
	)
ORDER BY p.last_active_at DESC, p.user_id DESC
LIMIT $8
`,
		q.ViewerUserID,       // $1
		q.ViewerUniversity,   // $2
		q.AgeMin,             // $3
		q.AgeMax,             // $4
		applyGenderFilter,    // $5
		interestedIn,         // $6
		viewerGender,         // $7
		q.Limit,              // $8
		applyRadius,          // $9
		q.ViewerLat,          // $10
		q.ViewerLon,          // $11
		float64(q.RadiusKM),  // $12
	)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	items := make([]CandidateRecord, 0, q.Limit)
	for rows.Next() {
		var item CandidateRecord
		if err := rows.Scan(
			&item.UserID,
			&item.FirstName,
			&item.LastName,
			&item.Age,
			&item.Gender,
			&item.University,
			&item.Course,
			&item.StudyYear,
			&item.Bio,
			&item.MainPhotoURL,
			&item.DistanceKM,
			&item.LastActiveAt,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate candidates: %w", rows.Err())
	}

	return items, nil
}
