package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusmatch/backend/internal/domain/rules"
	pgrepo "github.com/campusmatch/backend/internal/repo/postgres"
	"github.com/campusmatch/backend/internal/services/notify"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("user not found")
	ErrProfileIncomplete = errors.New("profile is not complete")
	ErrAlreadyLiked      = errors.New("target already liked")
	ErrAlreadyDisliked   = errors.New("target already disliked")
)

type TooFastError struct {
	RetryAfterSec int64
}

func (e TooFastError) Error() string {
	return "too fast"
}

func (e TooFastError) RetryAfter() int64 {
	if e.RetryAfterSec <= 0 {
		return 1
	}
	return e.RetryAfterSec
}

func IsTooFast(err error) (*TooFastError, bool) {
	var tf TooFastError
	if errors.As(err, &tf) {
		return &tf, true
	}
	return nil, false
}

type CandidateStore interface {
	GetViewerContext(ctx context.Context, userID int64) (pgrepo.ViewerContext, error)
	ListCandidates(ctx context.Context, q pgrepo.CandidateQuery) ([]pgrepo.CandidateRecord, error)
}

type RelationshipStore interface {
	Get(ctx context.Context, tx pgx.Tx, actorID, targetID int64) (pgrepo.RelationshipRecord, bool, error)
	Insert(ctx context.Context, tx pgx.Tx, actorID, targetID int64, kind string) error
	UpdateKind(ctx context.Context, tx pgx.Tx, actorID, targetID int64, kind string) error
	DeleteLikesBetween(ctx context.Context, tx pgx.Tx, userID, otherID int64) error
}

type MatchStore interface {
	CreateIfMutualLike(ctx context.Context, tx pgx.Tx, userID, targetID int64) (bool, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]pgrepo.MatchRecord, error)
	DeleteByUsers(ctx context.Context, tx pgx.Tx, userID, otherID int64) (bool, error)
}

type UserStore interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

type SummaryStore interface {
	GetSummary(ctx context.Context, userID int64) (pgrepo.ProfileSummary, error)
}

type ConversationStore interface {
	Deactivate(ctx context.Context, tx pgx.Tx, userID, otherID int64) error
}

type RateLimiter interface {
	AllowLike(ctx context.Context, userID int64) (int64, bool, error)
}

type Config struct {
	CandidateLimit  int
	DefaultRadiusKM int
}

type Candidate struct {
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
	DistanceKM   *int
	LastActiveAt time.Time
}

type LikeResult struct {
	IsMatch bool
	Matched *pgrepo.ProfileSummary
}

type MatchItem struct {
	ID           int64
	UserID       int64
	FirstName    string
	LastName     string
	Age          int
	University   string
	MainPhotoURL *string
	MatchedAt    time.Time
}

type Service struct {
	pool          *pgxpool.Pool
	candidates    CandidateStore
	relationships RelationshipStore
	matches       MatchStore
	users         UserStore
	summaries     SummaryStore
	conversations ConversationStore
	rateLimiter   RateLimiter
	bridge        notify.Bridge
	cfg           Config
	now           func() time.Time

	runPairTx func(ctx context.Context, a, b int64, fn func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Pool          *pgxpool.Pool
	Candidates    CandidateStore
	Relationships RelationshipStore
	Matches       MatchStore
	Users         UserStore
	Summaries     SummaryStore
	Conversations ConversationStore
	RateLimiter   RateLimiter
	Bridge        notify.Bridge
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = rules.CandidateLimit
	}
	if cfg.DefaultRadiusKM <= 0 {
		cfg.DefaultRadiusKM = rules.MaxDistanceKM / 2
	}

	bridge := deps.Bridge
	if bridge == nil {
		bridge = notify.NopBridge{}
	}

	return &Service{
		pool:          deps.Pool,
		candidates:    deps.Candidates,
		relationships: deps.Relationships,
		matches:       deps.Matches,
		users:         deps.Users,
		summaries:     deps.Summaries,
		conversations: deps.Conversations,
		rateLimiter:   deps.RateLimiter,
		bridge:        bridge,
		cfg:           cfg,
		now:           time.Now,
	}
}

// GetCandidates returns up to the configured number of discoverable
// profiles for the viewer, most recently active first. The read has no
// side effects.
func (s *Service) GetCandidates(ctx context.Context, userID int64) ([]Candidate, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.candidates == nil {
		return nil, fmt.Errorf("candidate store is not configured")
	}

	viewer, err := s.candidates.GetViewerContext(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrViewerNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get viewer context: %w", err)
	}
	if !viewer.ProfileCompleted {
		return nil, ErrProfileIncomplete
	}

	ageMin, ageMax := rules.ClampAgeRange(viewer.AgeMin, viewer.AgeMax)
	radius := viewer.MaxDistanceKM
	if !rules.DistanceAllowed(radius) {
		radius = s.cfg.DefaultRadiusKM
	}

	rows, err := s.candidates.ListCandidates(ctx, pgrepo.CandidateQuery{
		ViewerUserID:       viewer.UserID,
		ViewerUniversity:   viewer.University,
		ViewerGender:       viewer.Gender,
		ViewerInterestedIn: viewer.InterestedIn,
		AgeMin:             ageMin,
		AgeMax:             ageMax,
		RadiusKM:           radius,
		ViewerLat:          viewer.Lat,
		ViewerLon:          viewer.Lon,
		HasLocation:        rules.LocationSet(viewer.Lat, viewer.Lon),
		Limit:              s.cfg.CandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	items := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		item := Candidate{
			UserID:       row.UserID,
			FirstName:    row.FirstName,
			LastName:     row.LastName,
			Age:          row.Age,
			Gender:       row.Gender,
			University:   row.University,
			Course:       row.Course,
			StudyYear:    row.StudyYear,
			Bio:          row.Bio,
			MainPhotoURL: row.MainPhotoURL,
			LastActiveAt: row.LastActiveAt,
		}
		if row.DistanceKM != nil {
			km := rules.RoundKM(*row.DistanceKM)
			item.DistanceKM = &km
		}
		items = append(items, item)
	}

	return items, nil
}

// Like records the edge and forms a match when the target already liked
// the caller back. The whole decision runs under the pair lock, so out
// of two concurrent reciprocal likes exactly one reports the match.
func (s *Service) Like(ctx context.Context, userID, targetID int64) (LikeResult, error) {
	if err := s.checkPair(ctx, userID, targetID); err != nil {
		return LikeResult{}, err
	}

	if s.rateLimiter != nil {
		retryAfter, allowed, err := s.rateLimiter.AllowLike(ctx, userID)
		if err != nil {
			return LikeResult{}, fmt.Errorf("apply like rate limiter: %w", err)
		}
		if !allowed {
			return LikeResult{}, TooFastError{RetryAfterSec: retryAfter}
		}
	}

	matchCreated := false
	if err := s.pairTx(ctx, userID, targetID, func(txCtx context.Context, tx pgx.Tx) error {
		rel, found, err := s.relationships.Get(txCtx, tx, userID, targetID)
		if err != nil {
			return err
		}
		switch {
		case found && rel.Kind == pgrepo.RelationLike:
			return ErrAlreadyLiked
		case found:
			if err := s.relationships.UpdateKind(txCtx, tx, userID, targetID, pgrepo.RelationLike); err != nil {
				return err
			}
		default:
			if err := s.relationships.Insert(txCtx, tx, userID, targetID, pgrepo.RelationLike); err != nil {
				return err
			}
		}

		created, err := s.matches.CreateIfMutualLike(txCtx, tx, userID, targetID)
		if err != nil {
			return err
		}
		matchCreated = created
		return nil
	}); err != nil {
		return LikeResult{}, err
	}

	result := LikeResult{IsMatch: matchCreated}
	if matchCreated {
		if s.summaries != nil {
			if summary, err := s.summaries.GetSummary(ctx, targetID); err == nil {
				result.Matched = &summary
			}
		}
		s.bridge.MatchFormed(ctx, notify.MatchFormedEvent{
			MatchUserAID: userID,
			MatchUserBID: targetID,
			OccurredAt:   s.now().UTC(),
		})
	}

	return result, nil
}

// Dislike hides the target from future candidate reads. It is one
// directional and never touches the target's own state.
func (s *Service) Dislike(ctx context.Context, userID, targetID int64) error {
	if err := s.checkPair(ctx, userID, targetID); err != nil {
		return err
	}

	return s.pairTx(ctx, userID, targetID, func(txCtx context.Context, tx pgx.Tx) error {
		rel, found, err := s.relationships.Get(txCtx, tx, userID, targetID)
		if err != nil {
			return err
		}
		switch {
		case found && rel.Kind == pgrepo.RelationDislike:
			return ErrAlreadyDisliked
		case found:
			return s.relationships.UpdateKind(txCtx, tx, userID, targetID, pgrepo.RelationDislike)
		default:
			return s.relationships.Insert(txCtx, tx, userID, targetID, pgrepo.RelationDislike)
		}
	})
}

func (s *Service) ListMatches(ctx context.Context, userID int64, limit int) ([]MatchItem, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}

	rows, err := s.matches.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	items := make([]MatchItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, MatchItem{
			ID:           row.ID,
			UserID:       row.CounterpartID,
			FirstName:    row.FirstName,
			LastName:     row.LastName,
			Age:          row.Age,
			University:   row.University,
			MainPhotoURL: row.MainPhotoURL,
			MatchedAt:    row.CreatedAt,
		})
	}

	return items, nil
}

// Unmatch removes the pair's match and both like edges so neither side
// keeps a half-open door. Unmatching an absent pair is a no-op that
// reports deleted=false.
func (s *Service) Unmatch(ctx context.Context, userID, otherID int64) (bool, error) {
	if userID <= 0 || otherID <= 0 || userID == otherID {
		return false, ErrValidation
	}

	deleted := false
	if err := s.pairTx(ctx, userID, otherID, func(txCtx context.Context, tx pgx.Tx) error {
		removed, err := s.matches.DeleteByUsers(txCtx, tx, userID, otherID)
		if err != nil {
			return err
		}
		deleted = removed

		if err := s.relationships.DeleteLikesBetween(txCtx, tx, userID, otherID); err != nil {
			return err
		}

		if removed && s.conversations != nil {
			if err := s.conversations.Deactivate(txCtx, tx, userID, otherID); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return false, err
	}

	return deleted, nil
}

func (s *Service) checkPair(ctx context.Context, userID, targetID int64) error {
	if userID <= 0 || targetID <= 0 || userID == targetID {
		return ErrValidation
	}
	if s.relationships == nil || s.matches == nil {
		return fmt.Errorf("matching dependencies are not configured")
	}
	if s.users != nil {
		exists, err := s.users.Exists(ctx, targetID)
		if err != nil {
			return fmt.Errorf("check target exists: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (s *Service) pairTx(ctx context.Context, a, b int64, fn func(context.Context, pgx.Tx) error) error {
	if s.runPairTx != nil {
		return s.runPairTx(ctx, a, b, fn)
	}

	return pgrepo.WithTx(ctx, s.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if err := pgrepo.AcquirePairLock(txCtx, tx, a, b); err != nil {
			return err
		}
		return fn(txCtx, tx)
	})
}
