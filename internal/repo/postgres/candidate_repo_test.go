package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Candidate filtering lives in SQL, so these tests need a real database.
// Point TEST_POSTGRES_DSN at a disposable postgres to run them.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../../migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE users RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return pool
}

type seedProfile struct {
	email        string
	university   string
	gender       string
	interestedIn string
	age          int
	lat, lon     float64
}

func seedUser(t *testing.T, pool *pgxpool.Pool, p seedProfile) int64 {
	t.Helper()
	ctx := context.Background()

	var id int64
	err := pool.QueryRow(ctx, `
INSERT INTO users (email, password_hash, university, email_verified)
VALUES ($1, 'x', $2, TRUE)
RETURNING id
`, p.email, p.university).Scan(&id)
	if err != nil {
		t.Fatalf("seed user %s: %v", p.email, err)
	}

	_, err = pool.Exec(ctx, `
INSERT INTO profiles (user_id, first_name, last_name, age, gender, interested_in,
                      course, study_year, bio, lat, lon, profile_completed)
VALUES ($1, 'Test', 'User', $2, $3, $4, 'CS', 2, 'bio', $5, $6, TRUE)
`, id, p.age, p.gender, p.interestedIn, p.lat, p.lon)
	if err != nil {
		t.Fatalf("seed profile %s: %v", p.email, err)
	}

	return id
}

func containsCandidate(items []CandidateRecord, userID int64) bool {
	for _, item := range items {
		if item.UserID == userID {
			return true
		}
	}
	return false
}

func TestListCandidatesDistanceAndUniversity(t *testing.T) {
	pool := newTestPool(t)
	repo := NewCandidateRepo(pool)
	ctx := context.Background()

	// Viewer in central Minsk; nearby is ~10 km due north.
	viewerLat, viewerLon := 53.9, 27.5667
	viewerID := seedUser(t, pool, seedProfile{
		email: "viewer@bsu.by", university: "bsu.by",
		gender: "female", interestedIn: "male", age: 21,
		lat: viewerLat, lon: viewerLon,
	})
	nearbyID := seedUser(t, pool, seedProfile{
		email: "nearby@bsu.by", university: "bsu.by",
		gender: "male", interestedIn: "female", age: 22,
		lat: viewerLat + 0.09, lon: viewerLon,
	})
	otherCampusID := seedUser(t, pool, seedProfile{
		email: "away@bsuir.by", university: "bsuir.by",
		gender: "male", interestedIn: "female", age: 22,
		lat: viewerLat + 0.09, lon: viewerLon,
	})
	noLocationID := seedUser(t, pool, seedProfile{
		email: "ghost@bsu.by", university: "bsu.by",
		gender: "male", interestedIn: "female", age: 23,
		lat: 0, lon: 0,
	})

	query := func(radius int) []CandidateRecord {
		items, err := repo.ListCandidates(ctx, CandidateQuery{
			ViewerUserID:       viewerID,
			ViewerUniversity:   "bsu.by",
			ViewerGender:       "female",
			ViewerInterestedIn: "male",
			AgeMin:             18,
			AgeMax:             30,
			RadiusKM:           radius,
			ViewerLat:          viewerLat,
			ViewerLon:          viewerLon,
			HasLocation:        true,
			Limit:              20,
		})
		if err != nil {
			t.Fatalf("list candidates (radius %d): %v", radius, err)
		}
		return items
	}

	wide := query(50)
	if !containsCandidate(wide, nearbyID) {
		t.Fatalf("candidate 10 km away must pass a 50 km radius")
	}
	if containsCandidate(wide, otherCampusID) {
		t.Fatalf("a different university must never appear")
	}
	if containsCandidate(wide, noLocationID) {
		t.Fatalf("candidates without a location are out once radius filtering is on")
	}
	for _, item := range wide {
		if item.UserID != nearbyID {
			continue
		}
		if item.DistanceKM == nil || *item.DistanceKM < 9 || *item.DistanceKM > 11 {
			t.Fatalf("expected ~10 km distance, got %v", item.DistanceKM)
		}
	}

	narrow := query(5)
	if containsCandidate(narrow, nearbyID) {
		t.Fatalf("candidate 10 km away must fail a 5 km radius")
	}
}

func TestListCandidatesGenderGateIsMutual(t *testing.T) {
	pool := newTestPool(t)
	repo := NewCandidateRepo(pool)
	ctx := context.Background()

	viewerID := seedUser(t, pool, seedProfile{
		email: "viewer@bsu.by", university: "bsu.by",
		gender: "female", interestedIn: "male", age: 21,
	})
	mutualID := seedUser(t, pool, seedProfile{
		email: "mutual@bsu.by", university: "bsu.by",
		gender: "male", interestedIn: "female", age: 22,
	})
	notIntoViewerID := seedUser(t, pool, seedProfile{
		email: "elsewhere@bsu.by", university: "bsu.by",
		gender: "male", interestedIn: "male", age: 22,
	})
	wrongGenderID := seedUser(t, pool, seedProfile{
		email: "friend@bsu.by", university: "bsu.by",
		gender: "female", interestedIn: "male", age: 22,
	})
	openID := seedUser(t, pool, seedProfile{
		email: "open@bsu.by", university: "bsu.by",
		gender: "male", interestedIn: "both", age: 22,
	})

	items, err := repo.ListCandidates(ctx, CandidateQuery{
		ViewerUserID:       viewerID,
		ViewerUniversity:   "bsu.by",
		ViewerGender:       "female",
		ViewerInterestedIn: "male",
		AgeMin:             18,
		AgeMax:             30,
		Limit:              20,
	})
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}

	cases := []struct {
		name string
		id   int64
		want bool
	}{
		{"mutual interest", mutualID, true},
		{"candidate not interested in viewer", notIntoViewerID, false},
		{"candidate outside viewer preference", wrongGenderID, false},
		{"candidate open to both", openID, true},
	}
	for _, tc := range cases {
		if got := containsCandidate(items, tc.id); got != tc.want {
			t.Fatalf("%s: included=%v, want %v", tc.name, got, tc.want)
		}
	}

	if containsCandidate(items, viewerID) {
		t.Fatalf("the viewer must never see themselves")
	}
}
